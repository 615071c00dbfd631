package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookProvider delivers messages by POSTing them to a configured endpoint,
// typically a WhatsApp or SMS gateway relay. The endpoint answers with the
// gateway's message id.
type WebhookProvider struct {
	url    string
	client *http.Client
}

func NewWebhookProvider(url string, timeout time.Duration) *WebhookProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type webhookResponse struct {
	MessageID string `json:"message_id"`
}

func (p *WebhookProvider) Send(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(webhookRequest{To: to, Body: body})
	if err != nil {
		return "", fmt.Errorf("marshal webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("webhook status %d: %s", resp.StatusCode, snippet)
	}

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}
	if out.MessageID == "" {
		return "", fmt.Errorf("webhook response missing message_id")
	}
	return out.MessageID, nil
}
