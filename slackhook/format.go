package slackhook

import (
	"fmt"
	"time"

	"hipchat-slack-relay/pkg/relay"

	"github.com/slack-go/slack"
)

// DefaultGroupWindow is used when FormatterConfig.GroupWindow is unset.
const DefaultGroupWindow = 5 * time.Minute

// Formatter turns HipChat messages into Slack webhook payloads.
type Formatter struct {
	username    string
	iconEmoji   string
	sourceLabel string
	groupWindow int64 // Seconds
}

// FormatterConfig configures a Formatter.
type FormatterConfig struct {
	Username    string
	IconEmoji   string
	SourceLabel string        // Shown in headings, e.g. "Hipchat"
	GroupWindow time.Duration // Max gap between grouped messages from one sender
}

// NewFormatter creates a new formatter.
func NewFormatter(cfg FormatterConfig) *Formatter {
	if cfg.GroupWindow <= 0 {
		cfg.GroupWindow = DefaultGroupWindow
	}
	return &Formatter{
		username:    cfg.Username,
		iconEmoji:   cfg.IconEmoji,
		sourceLabel: cfg.SourceLabel,
		groupWindow: int64(cfg.GroupWindow / time.Second),
	}
}

// Grouper remembers the previous message of a room so consecutive messages
// from one sender can share a heading. Use one Grouper per room.
type Grouper struct {
	prevFrom string
	prevTime int64
	seen     bool
}

// Format builds the payload for msg. It returns false for messages that must
// not be relayed (link previews). g is updated for every relayed message.
func (f *Formatter) Format(room, channel string, msg *relay.Message, g *Grouper) (*slack.WebhookMessage, bool) {
	if msg.From == relay.LinkSender {
		return nil, false
	}

	timestamp := parseTimestamp(msg.Date)
	text := msg.Body

	// Heading: omitted when the same person posts again within the window
	if !g.seen || msg.From != g.prevFrom || timestamp-g.prevTime > f.groupWindow {
		text = fmt.Sprintf("*[From %s, %s, %s, %s]*\n\n%s",
			f.sourceLabel,
			room,
			msg.From,
			msg.Date,
			msg.Body)
	}

	g.prevFrom = msg.From
	g.prevTime = timestamp
	g.seen = true

	payload := &slack.WebhookMessage{
		Text:      text,
		Channel:   channel,
		Username:  f.username,
		IconEmoji: f.iconEmoji,
	}
	if msg.File != nil {
		payload.Attachments = []slack.Attachment{attachment(msg.File)}
	}
	return payload, true
}

func attachment(file *relay.File) slack.Attachment {
	if file.ThumbURL != "" {
		// Image with a thumbnail
		return slack.Attachment{
			Title:    file.Name,
			ImageURL: file.URL,
			ThumbURL: file.ThumbURL,
		}
	}
	return slack.Attachment{
		Title:     fmt.Sprintf("%s (%d B)", file.Name, file.Size),
		TitleLink: file.URL,
	}
}

// parseTimestamp returns the Unix time of a HipChat date, or 0 if it can't be parsed.
func parseTimestamp(date string) int64 {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999Z0700", time.DateTime} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Unix()
		}
	}
	return 0
}
