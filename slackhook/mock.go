package slackhook

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"
)

// MockProvider is a dry-run provider for local development.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a new mock provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
	}
}

// Send logs the payload instead of posting it.
func (m *MockProvider) Send(ctx context.Context, msg *slack.WebhookMessage) error {
	m.logger.Info("MOCK SLACK MESSAGE",
		"channel", msg.Channel,
		"username", msg.Username,
		"text", msg.Text,
		"attachments", len(msg.Attachments))
	return nil
}

// Close is a no-op.
func (m *MockProvider) Close() error {
	return nil
}
