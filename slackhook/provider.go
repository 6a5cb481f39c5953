// Package slackhook formats HipChat messages for Slack and posts them to an incoming webhook.
package slackhook

import (
	"context"
	"log/slog"

	"hipchat-slack-relay/pkg/relay"

	"github.com/slack-go/slack"
)

// Provider delivers one payload.
type Provider interface {
	Send(ctx context.Context, msg *slack.WebhookMessage) error
	// Close releases the provider's connections after the last Send.
	Close() error
}

// Sender formats and delivers room messages through a pluggable provider.
type Sender struct {
	provider  Provider
	formatter *Formatter
	logger    *slog.Logger
}

// New creates a new sender.
func New(provider Provider, formatter *Formatter, logger *slog.Logger) *Sender {
	return &Sender{
		provider:  provider,
		formatter: formatter,
		logger:    logger,
	}
}

// RelayRoom sends the messages of one room in order, one payload per message.
// A failed send is logged and does not stop the remaining sends.
func (s *Sender) RelayRoom(ctx context.Context, room, channel string, messages []*relay.Message) relay.Delivery {
	var d relay.Delivery
	var g Grouper

	for _, msg := range messages {
		payload, ok := s.formatter.Format(room, channel, msg, &g)
		if !ok {
			s.logger.Debug("Skipping message", "room", room, "message_id", msg.ID, "from", msg.From)
			d.Skipped++
			continue
		}

		if err := s.provider.Send(ctx, payload); err != nil {
			s.logger.Warn("Failed to relay message",
				"room", room,
				"channel", channel,
				"message_id", msg.ID,
				"error", err)
			d.Failed++
			continue
		}
		d.Relayed++
	}

	s.logger.Info("Room relayed",
		"room", room,
		"channel", channel,
		"relayed", d.Relayed,
		"skipped", d.Skipped,
		"failed", d.Failed)

	return d
}

// Close releases the provider.
func (s *Sender) Close() error {
	return s.provider.Close()
}
