package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gotify/server/v2/model"

	"github.com/hamed0406/apihealth/internal/domain"
)

const gotifyMsgEndpoint = "/message"

const (
	gotifyPriorityDown = 8
	gotifyPriorityUp   = 2
)

type Gotify struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewGotify(url, token string) *Gotify {
	if url == "" || token == "" {
		return nil
	}
	return &Gotify{URL: strings.TrimRight(url, "/"), Token: token, Client: newHTTPClient()}
}

func (g *Gotify) Send(ctx context.Context, msg Message) error {
	if g == nil || g.URL == "" {
		return ErrDisabled
	}
	priority := gotifyPriorityUp
	if msg.State == domain.StateDown {
		priority = gotifyPriorityDown
	}
	payload := &model.MessageExternal{
		Title:    msg.Subject,
		Message:  msg.Body,
		Priority: &priority,
		Extras: map[string]interface{}{
			"client::display": map[string]string{
				"contentType": "text/plain",
			},
		},
	}
	err := postJSON(ctx, g.Client, g.URL+gotifyMsgEndpoint,
		map[string]string{"X-Gotify-Key": g.Token}, payload, decodeGotifyError)
	if err != nil {
		return fmt.Errorf("gotify: %w", err)
	}
	return nil
}

func decodeGotifyError(r io.Reader) string {
	var errm model.Error
	if err := json.NewDecoder(r).Decode(&errm); err != nil {
		return ""
	}
	return errm.Error + ": " + errm.ErrorDescription
}
