package notify

import (
	"context"
	"fmt"
	"net/http"
)

type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  newHTTPClient(),
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Send(ctx context.Context, msg Message) error {
	if s == nil || s.Webhook == "" {
		return ErrDisabled
	}
	err := postJSON(ctx, s.Client, s.Webhook, nil, slackPayload{Text: "*" + msg.Subject + "*\n" + msg.Body}, nil)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}
