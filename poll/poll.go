// Package poll runs one relay pass: fetch new HipChat messages per room and post them to Slack.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hipchat-slack-relay/pkg/relay"
	"hipchat-slack-relay/telemetry"
)

// Source interface for fetching room history.
type Source interface {
	RecentHistory(ctx context.Context, room string, notBefore string) ([]*relay.Message, error)
}

// Store interface for cursor persistence.
type Store interface {
	Load(ctx context.Context) (relay.Cursors, error)
	Save(ctx context.Context, cursors relay.Cursors) error
}

// Sender interface for relaying one room's messages.
type Sender interface {
	RelayRoom(ctx context.Context, room, channel string, messages []*relay.Message) relay.Delivery
	Close() error
}

// Options tunes a Monitor.
type Options struct {
	// SkipFailedRooms logs and skips a room whose fetch fails instead of
	// aborting the whole run. The skipped room's cursor is left unchanged.
	SkipFailedRooms bool
	// IsFatal reports fetch errors that abort the run even with
	// SkipFailedRooms set, such as a rejected API token.
	IsFatal func(error) bool
}

// ErrAllRoomsFailed is returned when every room fetch failed in skip mode.
var ErrAllRoomsFailed = errors.New("all room fetches failed")

// Result summarizes one run.
type Result struct {
	Rooms       int `json:"rooms"`
	FailedRooms int `json:"failed_rooms"`
	Fetched     int `json:"fetched"`
	Relayed     int `json:"relayed"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Monitor handles the relay run.
type Monitor struct {
	source Source
	store  Store
	sender Sender
	rooms  *relay.RoomMap
	logger *slog.Logger
	opts   Options
}

// New creates a new monitor.
func New(source Source, store Store, sender Sender, rooms *relay.RoomMap, opts Options, logger *slog.Logger) *Monitor {
	telemetry.Init()
	return &Monitor{
		source: source,
		store:  store,
		sender: sender,
		rooms:  rooms,
		logger: logger,
		opts:   opts,
	}
}

type roomBatch struct {
	messages []*relay.Message
	route    relay.Route
}

// RunOnce loads cursors, fetches every room, saves the cursors once, and
// then relays the fetched messages room by room in fetch order.
//
// A fetch error aborts the run before anything is saved or sent, unless
// Options.SkipFailedRooms is set. A failure to save cursors also aborts
// before sending. Send failures are counted, never fatal.
func (m *Monitor) RunOnce(ctx context.Context) (res *Result, err error) {
	startTime := time.Now()
	telemetry.Runs.Inc()
	defer func() {
		telemetry.RunDuration.Observe(time.Since(startTime).Seconds())
		if err != nil {
			telemetry.RunFailures.Inc()
		}
	}()

	// The sender's connection is released after the last send or on early exit
	defer func() {
		if closeErr := m.sender.Close(); closeErr != nil {
			m.logger.Warn("Failed to close sender", "error", closeErr)
		}
	}()

	cursors, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cursors: %w", err)
	}

	routes := m.rooms.Routes()
	m.logger.Info("Starting relay run", "rooms", m.rooms.Len(), "timestamp", startTime.Format(time.RFC3339))

	res = &Result{Rooms: len(routes)}
	batches := make([]roomBatch, 0, len(routes))

	for _, route := range routes {
		select {
		case <-ctx.Done():
			m.logger.Info("Context cancelled, stopping relay run", "error", ctx.Err())
			return nil, ctx.Err()
		default:
		}

		messages, err := m.fetchRoom(ctx, route.Room, cursors)
		if err != nil {
			telemetry.RoomFetchErrors.Inc()
			if !m.opts.SkipFailedRooms || m.isFatal(err) {
				return nil, fmt.Errorf("fetch room %q: %w", route.Room, err)
			}
			m.logger.Warn("Room fetch failed, skipping room", "room", route.Room, "error", err)
			res.FailedRooms++
			continue
		}

		res.Fetched += len(messages)
		batches = append(batches, roomBatch{route: route, messages: messages})
	}

	if res.Rooms > 0 && res.FailedRooms == res.Rooms {
		return nil, ErrAllRoomsFailed
	}

	// Saved before any send: messages of a run that dies mid-send are not resent
	if err := m.store.Save(ctx, cursors); err != nil {
		return nil, fmt.Errorf("save cursors: %w", err)
	}
	telemetry.MessagesFetched.Add(float64(res.Fetched))

	for _, b := range batches {
		if len(b.messages) == 0 {
			continue
		}
		d := m.sender.RelayRoom(ctx, b.route.Room, b.route.Channel, b.messages)
		res.Relayed += d.Relayed
		res.Skipped += d.Skipped
		res.Failed += d.Failed
	}

	telemetry.MessagesRelayed.Add(float64(res.Relayed))
	telemetry.MessagesSkipped.Add(float64(res.Skipped))
	telemetry.SendFailures.Add(float64(res.Failed))

	m.logger.Info("Relay run completed",
		"rooms", res.Rooms,
		"failed_rooms", res.FailedRooms,
		"fetched", res.Fetched,
		"relayed", res.Relayed,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration_ms", time.Since(startTime).Milliseconds())

	return res, nil
}

func (m *Monitor) isFatal(err error) bool {
	return m.opts.IsFatal != nil && m.opts.IsFatal(err)
}
