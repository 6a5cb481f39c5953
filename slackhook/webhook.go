package slackhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// WebhookProvider posts payloads to a Slack incoming webhook. It owns one
// HTTP transport for all sends; call Close when done.
type WebhookProvider struct {
	client    *http.Client
	transport *http.Transport
	logger    *slog.Logger
	url       string
}

// NewWebhookProvider creates a provider for webhookURL.
func NewWebhookProvider(webhookURL string, logger *slog.Logger) *WebhookProvider {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &WebhookProvider{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &jsonHeaders{base: transport},
		},
		transport: transport,
		logger:    logger,
		url:       webhookURL,
	}
}

// jsonHeaders sets the fixed JSON headers on every request.
type jsonHeaders struct {
	base http.RoundTripper
}

func (h *jsonHeaders) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return h.base.RoundTrip(req)
}

// Send posts msg to the webhook once. There is no retry.
func (p *WebhookProvider) Send(ctx context.Context, msg *slack.WebhookMessage) error {
	p.logger.Info("Slack webhook request starting",
		"method", "POST",
		"channel", msg.Channel,
		"text_length", len(msg.Text),
		"attachments", len(msg.Attachments))

	startTime := time.Now()
	err := slack.PostWebhookCustomHTTPContext(ctx, p.url, p.client, msg)
	duration := time.Since(startTime)
	if err != nil {
		p.logger.Warn("Slack webhook request failed",
			"channel", msg.Channel,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return fmt.Errorf("post webhook: %w", err)
	}

	p.logger.Info("Slack webhook request completed",
		"channel", msg.Channel,
		"duration_ms", duration.Milliseconds(),
		"status", "success")
	return nil
}

// Close drops the idle connections held for the webhook host.
func (p *WebhookProvider) Close() error {
	p.transport.CloseIdleConnections()
	return nil
}
