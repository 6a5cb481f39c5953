package config

import (
	"fmt"

	"hipchat-slack-relay/pkg/relay"

	"gopkg.in/yaml.v3"
)

// RoomEntry is one configured room. An empty Channel means "use the default channel".
type RoomEntry struct {
	Room    string
	Channel string
}

// RoomList is the configured room list. In YAML it is either a sequence whose
// items are bare room names or room: channel mappings, or a single mapping.
//
//	rooms:
//	  - General
//	  - Dev: dev-chat
//	  - Ops: null
type RoomList []RoomEntry

// UnmarshalYAML decodes a sequence or mapping node into room entries, keeping document order.
func (l *RoomList) UnmarshalYAML(node *yaml.Node) error {
	var entries []RoomEntry
	switch node.Kind {
	case yaml.SequenceNode:
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				if isNull(item) || item.Value == "" {
					return fmt.Errorf("line %d: empty room name", item.Line)
				}
				entries = append(entries, RoomEntry{Room: item.Value})
			case yaml.MappingNode:
				pairs, err := decodePairs(item)
				if err != nil {
					return err
				}
				entries = append(entries, pairs...)
			default:
				return fmt.Errorf("line %d: room entry must be a name or a name: channel pair", item.Line)
			}
		}
	case yaml.MappingNode:
		pairs, err := decodePairs(node)
		if err != nil {
			return err
		}
		entries = pairs
	case yaml.ScalarNode:
		if !isNull(node) {
			return fmt.Errorf("line %d: rooms must be a list or a mapping", node.Line)
		}
	default:
		return fmt.Errorf("line %d: rooms must be a list or a mapping", node.Line)
	}
	*l = entries
	return nil
}

func decodePairs(node *yaml.Node) ([]RoomEntry, error) {
	entries := make([]RoomEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return nil, fmt.Errorf("line %d: room name must be a non-empty string", key.Line)
		}
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: channel for room %q must be a string or null", val.Line, key.Value)
		}
		channel := val.Value
		if isNull(val) {
			channel = ""
		}
		entries = append(entries, RoomEntry{Room: key.Value, Channel: channel})
	}
	return entries, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

// ResolveRooms turns room entries into a concrete room -> channel mapping.
// An explicit channel wins; bare names and empty or null channels fall back to
// defaultChannel. When a room appears more than once the last entry wins.
func ResolveRooms(entries []RoomEntry, defaultChannel string) *relay.RoomMap {
	rooms := relay.NewRoomMap()
	for _, e := range entries {
		channel := e.Channel
		if channel == "" {
			channel = defaultChannel
		}
		rooms.Set(e.Room, channel)
	}
	return rooms
}
