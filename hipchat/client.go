// Package hipchat fetches room history from the HipChat v2 REST API.
package hipchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hipchat-slack-relay/pkg/relay"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Room       string
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d for room %q: %s", e.StatusCode, e.Room, e.Message)
	}
	return fmt.Sprintf("HTTP %d for room %q", e.StatusCode, e.Room)
}

// IsUnauthorized reports whether err is a 401 from the API (bad or expired token).
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the API (unknown room).
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	BaseURL    string // e.g. https://api.hipchat.com/v2
	Token      string
	Timezone   string
	MaxResults int // 0 leaves the server default
}

// Client reads room history.
type Client struct {
	client *http.Client
	logger *slog.Logger
	opts   Options
}

// New creates a new HipChat client.
func New(client *http.Client, opts Options, logger *slog.Logger) *Client {
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	return &Client{
		client: client,
		logger: logger,
		opts:   opts,
	}
}

type historyResponse struct {
	Items []historyItem `json:"items"`
}

type historyItem struct {
	File          *historyFile `json:"file"`
	From          sender       `json:"from"`
	ID            string       `json:"id"`
	Date          string       `json:"date"`
	Message       string       `json:"message"`
	MessageFormat string       `json:"message_format"`
}

type historyFile struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url"`
	Size     int64  `json:"size"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// sender is the "from" field: a plain string for notifications and link
// previews, an object for user messages.
type sender string

func (s *sender) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*s = sender(name)
		return nil
	}

	var user struct {
		Name        string `json:"name"`
		MentionName string `json:"mention_name"`
	}
	if err := json.Unmarshal(data, &user); err != nil {
		return fmt.Errorf("decode sender: %w", err)
	}
	if user.Name != "" {
		*s = sender(user.Name)
	} else {
		*s = sender(user.MentionName)
	}
	return nil
}

// RecentHistory returns the latest messages of room in chronological order.
// If notBefore is set, the history starts at that message ID (inclusive).
func (c *Client) RecentHistory(ctx context.Context, room string, notBefore string) ([]*relay.Message, error) {
	endpoint := c.historyURL(room, notBefore)

	c.logger.Info("HTTP request starting",
		"method", "GET",
		"url", endpoint,
		"room", room,
		"purpose", "fetch_room_history")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("HTTP request failed",
			"room", room,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	c.logger.Info("HTTP request completed",
		"room", room,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Room: room, StatusCode: resp.StatusCode}
		var apiErr errorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr); err == nil {
			se.Message = apiErr.Error.Message
		}
		return nil, se
	}

	var history historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	messages := make([]*relay.Message, 0, len(history.Items))
	for i := range history.Items {
		messages = append(messages, toMessage(&history.Items[i]))
	}

	if len(messages) > 0 {
		c.logger.Info("Room history parsed",
			"room", room,
			"messages", len(messages),
			"first_message_id", messages[0].ID,
			"last_message_id", messages[len(messages)-1].ID)
	}

	return messages, nil
}

func (c *Client) historyURL(room string, notBefore string) string {
	q := url.Values{}
	q.Set("timezone", c.opts.Timezone)
	if notBefore != "" {
		q.Set("not-before", notBefore)
	}
	if c.opts.MaxResults > 0 {
		q.Set("max-results", strconv.Itoa(c.opts.MaxResults))
	}
	// PathEscape encodes spaces as %20, not +
	return fmt.Sprintf("%s/room/%s/history/latest?%s", c.opts.BaseURL, url.PathEscape(room), q.Encode())
}

func toMessage(item *historyItem) *relay.Message {
	body := item.Message
	if item.MessageFormat == "html" {
		body = htmlToText(body)
	}

	msg := &relay.Message{
		ID:   item.ID,
		From: string(item.From),
		Date: item.Date,
		Body: body,
	}
	if item.File != nil {
		msg.File = &relay.File{
			Name:     item.File.Name,
			URL:      item.File.URL,
			ThumbURL: item.File.ThumbURL,
			Size:     item.File.Size,
		}
	}
	return msg
}
