package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const senderTimeout = 10 * time.Second

// DeliveryError is a non-2xx reply from a chat API.
type DeliveryError struct {
	Channel    string
	Status     int
	Detail     string
	RetryAfter time.Duration // set on 429 when the API says how long to wait
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("%s: status %d", e.Channel, e.Status)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// postJSON sends payload to endpoint. A non-2xx reply is handed to reject,
// which turns the channel's error body into a DeliveryError.
func postJSON(ctx context.Context, client *http.Client, channel, endpoint string, payload any,
	reject func(status int, body []byte) *DeliveryError) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", channel, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return reject(resp.StatusCode, raw)
}
