package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// Webhook HTTP delivery defaults.
const (
	webhookTimeout = 10 * time.Second
)

// WebhookDestination sends notifications as JSON POST requests to a URL.
type WebhookDestination struct {
	url    string
	client *http.Client
}

// NewWebhookDestination creates a webhook destination. A nil client gets a
// default client with a request timeout.
func NewWebhookDestination(rawURL string, client *http.Client) (*WebhookDestination, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("webhook URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL %q: host required", rawURL)
	}
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	return &WebhookDestination{url: u.String(), client: client}, nil
}

// Name returns the destination identifier.
func (d *WebhookDestination) Name() string { return "webhook" }

// Send posts the notification as JSON to the configured URL.
func (d *WebhookDestination) Send(ctx context.Context, n types.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
