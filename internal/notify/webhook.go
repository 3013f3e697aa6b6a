package notify

import (
	"context"
	"fmt"
	"net/http"
)

// Webhook posts {subject, body, targets} as JSON to an arbitrary URL.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{URL: url, Client: newHTTPClient()}
}

type webhookPayload struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Targets []string `json:"targets"`
}

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	if w == nil || w.URL == "" {
		return ErrDisabled
	}
	targets := msg.Targets
	if targets == nil {
		targets = []string{}
	}
	if err := postJSON(ctx, w.Client, w.URL, nil, webhookPayload{
		Subject: msg.Subject,
		Body:    msg.Body,
		Targets: targets,
	}, nil); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
