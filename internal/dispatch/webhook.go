package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vigil/internal/model"
)

// WebhookChannel POSTs each message as JSON to a configured endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) SendOne(ctx context.Context, to model.Contact, subject, body string) error {
	payload := map[string]any{
		"recipient": to.Address,
		"subject":   subject,
		"body":      body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
