package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

func newHTTPClient() *http.Client {
	// deadlines come from the caller's context
	return &http.Client{}
}

// postJSON sends payload and treats any non-2xx answer as an error. decodeErr, if set,
// turns an error response body into a message.
func postJSON(ctx context.Context, c *http.Client, url string, headers map[string]string, payload any,
	decodeErr func(io.Reader) string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		if decodeErr != nil {
			if msg := decodeErr(io.LimitReader(resp.Body, 64<<10)); msg != "" {
				return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
			}
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}
