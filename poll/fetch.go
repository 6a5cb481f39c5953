package poll

import (
	"context"

	"hipchat-slack-relay/pkg/relay"
)

// fetchRoom returns the messages of room that have not been relayed yet and
// advances cursors[room] to the last message returned by the source.
//
// With a cursor, the source's history starts at the cursor message itself,
// which was relayed by an earlier run, so the first message is dropped. The
// new cursor is taken before the drop. An empty batch leaves the cursor alone.
func (m *Monitor) fetchRoom(ctx context.Context, room string, cursors relay.Cursors) ([]*relay.Message, error) {
	cursor := cursors[room]

	messages, err := m.source.RecentHistory(ctx, room, cursor)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		m.logger.Info("No messages returned", "room", room, "cursor", cursor)
		return nil, nil
	}

	latest := messages[len(messages)-1]
	if latest.ID != "" {
		cursors[room] = latest.ID
	}

	if cursor != "" {
		if messages[0].ID != cursor {
			m.logger.Warn("First message is not the cursor message - possible gap",
				"room", room,
				"cursor", cursor,
				"first_message_id", messages[0].ID)
		}
		messages = messages[1:]
	}

	m.logger.Info("Room history fetched",
		"room", room,
		"previous_cursor", cursor,
		"new_cursor", cursors[room],
		"new_messages", len(messages))

	return messages, nil
}
