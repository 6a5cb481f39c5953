// Package relay contains the core domain types for the HipChat to Slack relay.
package relay

// LinkSender is the sender name HipChat uses for the extra message it
// creates for every link shared in a room.
const LinkSender = "Link"

// File is a file attached to a HipChat message.
type File struct {
	Name     string
	URL      string
	ThumbURL string // Empty unless the file is an image
	Size     int64  // Bytes
}

// Message represents a single HipChat room message.
type Message struct {
	File *File
	ID   string
	From string // Sender display name
	Date string // Date string as returned by HipChat
	Body string // Plain text body
}

// Cursors maps a source room name to the ID of the last message seen in it.
// A missing room means it has never been synced.
type Cursors map[string]string

// Route pairs a source room with its destination channel.
type Route struct {
	Room    string
	Channel string
}

// RoomMap is an ordered source room -> destination channel mapping.
// Setting an existing room replaces its channel but keeps its position.
type RoomMap struct {
	index  map[string]int
	routes []Route
}

// NewRoomMap creates an empty room map.
func NewRoomMap() *RoomMap {
	return &RoomMap{index: make(map[string]int)}
}

// Set maps room to channel.
func (m *RoomMap) Set(room, channel string) {
	if i, ok := m.index[room]; ok {
		m.routes[i].Channel = channel
		return
	}
	m.index[room] = len(m.routes)
	m.routes = append(m.routes, Route{Room: room, Channel: channel})
}

// Routes returns the routes in insertion order.
func (m *RoomMap) Routes() []Route {
	out := make([]Route, len(m.routes))
	copy(out, m.routes)
	return out
}

// Len returns the number of rooms.
func (m *RoomMap) Len() int {
	return len(m.routes)
}

// Delivery counts the outcome of relaying one room's messages.
type Delivery struct {
	Relayed int
	Skipped int // Filtered out, e.g. link previews
	Failed  int
}
