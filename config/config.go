// Package config loads the relay configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"hipchat-slack-relay/pkg/relay"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone    = "UTC"
	defaultAPIBase     = "https://api.hipchat.com/v2"
	defaultUsername    = "Hipchat"
	defaultIconEmoji   = ":speech_balloon:"
	defaultSourceLabel = "Hipchat"
	defaultGroupWindow = 5 * time.Minute
	defaultCursorFile  = "last_message_ids.json"
)

// ErrMissing is returned by Validate when a required setting is absent.
var ErrMissing = errors.New("missing required setting")

// Config is the root relay configuration.
type Config struct {
	HipChat            HipChatConfig `yaml:"hipchat"`
	Slack              SlackConfig   `yaml:"slack"`
	Rooms              RoomList      `yaml:"rooms"`
	LastMessageIDsFile string        `yaml:"last_message_ids_file"`
	StorageBucket      string        `yaml:"storage_bucket"` // Store cursors in GCS instead of a local file
	SkipFailedRooms    bool          `yaml:"skip_failed_rooms"`
}

// HipChatConfig configures the source side.
type HipChatConfig struct {
	Token      string `yaml:"token"`
	Timezone   string `yaml:"timezone"`
	APIBase    string `yaml:"api_base"`
	MaxResults int    `yaml:"max_results"` // 0 leaves the server default
}

// SlackConfig configures the destination side.
type SlackConfig struct {
	WebhookURL  string        `yaml:"webhook_url"`
	Channel     string        `yaml:"channel"` // Default channel for rooms without one
	Username    string        `yaml:"username"`
	IconEmoji   string        `yaml:"icon_emoji"`
	SourceLabel string        `yaml:"source_label"`
	GroupWindow time.Duration `yaml:"group_window"`
	DryRun      bool          `yaml:"dry_run"` // Log payloads instead of posting them
}

// Load reads the YAML file at path, applies environment overrides and defaults.
// It does not validate; call Validate before using the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HIPCHAT_TOKEN"); v != "" {
		c.HipChat.Token = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		c.StorageBucket = v
	}
	if v := os.Getenv("CURSOR_FILE"); v != "" {
		c.LastMessageIDsFile = v
	}
}

func (c *Config) applyDefaults() {
	if c.HipChat.Timezone == "" {
		c.HipChat.Timezone = defaultTimezone
	}
	if c.HipChat.APIBase == "" {
		c.HipChat.APIBase = defaultAPIBase
	}
	if c.Slack.Username == "" {
		c.Slack.Username = defaultUsername
	}
	if c.Slack.IconEmoji == "" {
		c.Slack.IconEmoji = defaultIconEmoji
	}
	if c.Slack.SourceLabel == "" {
		c.Slack.SourceLabel = defaultSourceLabel
	}
	if c.Slack.GroupWindow <= 0 {
		c.Slack.GroupWindow = defaultGroupWindow
	}
	if c.LastMessageIDsFile == "" {
		c.LastMessageIDsFile = defaultCursorFile
	}
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.HipChat.Token == "" {
		return fmt.Errorf("hipchat.token (or HIPCHAT_TOKEN): %w", ErrMissing)
	}
	if c.Slack.WebhookURL == "" && !c.Slack.DryRun {
		return fmt.Errorf("slack.webhook_url (or SLACK_WEBHOOK_URL): %w", ErrMissing)
	}
	if len(c.Rooms) == 0 {
		return fmt.Errorf("rooms: %w", ErrMissing)
	}
	return nil
}

// RoomMap resolves the configured rooms against the default Slack channel.
func (c *Config) RoomMap() *relay.RoomMap {
	return ResolveRooms(c.Rooms, c.Slack.Channel)
}
