package config

import (
	"testing"

	"hipchat-slack-relay/pkg/relay"

	"gopkg.in/yaml.v3"
)

func TestRoomListUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  RoomList
	}{
		{
			name:  "bare names",
			input: "- General\n- Random\n",
			want:  RoomList{{Room: "General"}, {Room: "Random"}},
		},
		{
			name:  "mixed entries",
			input: "- General\n- Dev: dev-chat\n- Ops: null\n- QA: ''\n- Support: ~\n",
			want: RoomList{
				{Room: "General"},
				{Room: "Dev", Channel: "dev-chat"},
				{Room: "Ops"},
				{Room: "QA"},
				{Room: "Support"},
			},
		},
		{
			name:  "top-level mapping keeps order",
			input: "Zeta: z\nAlpha: null\n",
			want:  RoomList{{Room: "Zeta", Channel: "z"}, {Room: "Alpha"}},
		},
		{
			name:  "room name with spaces",
			input: "- Design Team: design\n",
			want:  RoomList{{Room: "Design Team", Channel: "design"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RoomList
			if err := yaml.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestResolveRooms(t *testing.T) {
	entries := []RoomEntry{
		{Room: "General"},
		{Room: "Dev", Channel: "dev-chat"},
		{Room: "Ops"},
	}

	rooms := ResolveRooms(entries, "hipchat-archive")

	want := []relay.Route{
		{Room: "General", Channel: "hipchat-archive"},
		{Room: "Dev", Channel: "dev-chat"},
		{Room: "Ops", Channel: "hipchat-archive"},
	}
	got := rooms.Routes()
	if len(got) != len(want) {
		t.Fatalf("Routes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("route %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// Bare names and explicit null channels must resolve identically.
func TestResolveRoomsBareAndNullMatch(t *testing.T) {
	var list RoomList
	if err := yaml.Unmarshal([]byte("- A\n- B: null\n- C: ''\n"), &list); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	rooms := ResolveRooms(list, "default")
	for _, r := range rooms.Routes() {
		if r.Channel != "default" {
			t.Errorf("room %q resolved to %q, want default", r.Room, r.Channel)
		}
	}
}

func TestResolveRoomsNonEmptyWithDefault(t *testing.T) {
	entries := []RoomEntry{{Room: "A"}, {Room: "B", Channel: ""}, {Room: "C", Channel: "c"}}
	for _, r := range ResolveRooms(entries, "fallback").Routes() {
		if r.Channel == "" {
			t.Errorf("room %q has empty channel", r.Room)
		}
	}
}

func TestResolveRoomsDuplicateLastWins(t *testing.T) {
	entries := []RoomEntry{
		{Room: "General", Channel: "first"},
		{Room: "Dev"},
		{Room: "General", Channel: "second"},
	}

	rooms := ResolveRooms(entries, "default")

	if rooms.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rooms.Len())
	}
	// The overwritten key keeps its original position.
	if first := rooms.Routes()[0]; first.Room != "General" || first.Channel != "second" {
		t.Errorf("first route = %+v, want General -> second", first)
	}
}

func TestConfigRoomMap(t *testing.T) {
	cfg := &Config{
		Slack: SlackConfig{Channel: "general"},
		Rooms: RoomList{{Room: "Lobby"}},
	}
	routes := cfg.RoomMap().Routes()
	if len(routes) != 1 || routes[0] != (relay.Route{Room: "Lobby", Channel: "general"}) {
		t.Errorf("Routes() = %+v, want Lobby -> general", routes)
	}
}
