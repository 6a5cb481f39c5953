package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Setenv("HIPCHAT_TOKEN", "")
	t.Setenv("SLACK_WEBHOOK_URL", "")
	t.Setenv("STORAGE_BUCKET", "")
	t.Setenv("CURSOR_FILE", "")

	input := `
hipchat:
  token: abc123
  timezone: Europe/Berlin
slack:
  webhook_url: https://hooks.slack.com/services/T/B/X
  channel: general
  group_window: 10m
rooms:
  - General
  - Dev: dev-chat
  - Ops: null
last_message_ids_file: /var/lib/relay/ids.json
`
	cfg, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.HipChat.Token != "abc123" {
		t.Errorf("HipChat.Token = %q, want %q", cfg.HipChat.Token, "abc123")
	}
	if cfg.HipChat.Timezone != "Europe/Berlin" {
		t.Errorf("HipChat.Timezone = %q", cfg.HipChat.Timezone)
	}
	if cfg.HipChat.APIBase != defaultAPIBase {
		t.Errorf("HipChat.APIBase = %q, want default %q", cfg.HipChat.APIBase, defaultAPIBase)
	}
	if cfg.Slack.GroupWindow != 10*time.Minute {
		t.Errorf("Slack.GroupWindow = %v, want 10m", cfg.Slack.GroupWindow)
	}
	if cfg.Slack.Username != defaultUsername || cfg.Slack.IconEmoji != defaultIconEmoji {
		t.Errorf("Slack identity defaults not applied: %q %q", cfg.Slack.Username, cfg.Slack.IconEmoji)
	}
	if cfg.LastMessageIDsFile != "/var/lib/relay/ids.json" {
		t.Errorf("LastMessageIDsFile = %q", cfg.LastMessageIDsFile)
	}
	if len(cfg.Rooms) != 3 {
		t.Fatalf("len(Rooms) = %d, want 3", len(cfg.Rooms))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("CURSOR_FILE", "")

	cfg, err := Parse([]byte("rooms: [General]\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.HipChat.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", cfg.HipChat.Timezone)
	}
	if cfg.Slack.SourceLabel != "Hipchat" {
		t.Errorf("SourceLabel = %q, want Hipchat", cfg.Slack.SourceLabel)
	}
	if cfg.Slack.GroupWindow != 300*time.Second {
		t.Errorf("GroupWindow = %v, want 300s", cfg.Slack.GroupWindow)
	}
	if cfg.LastMessageIDsFile != "last_message_ids.json" {
		t.Errorf("LastMessageIDsFile = %q", cfg.LastMessageIDsFile)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HIPCHAT_TOKEN", "from-env")
	t.Setenv("SLACK_WEBHOOK_URL", "https://example.com/hook")
	t.Setenv("STORAGE_BUCKET", "relay-bucket")
	t.Setenv("CURSOR_FILE", "cursors.json")

	cfg, err := Parse([]byte("hipchat:\n  token: from-file\nrooms: [General]\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.HipChat.Token != "from-env" {
		t.Errorf("Token = %q, want from-env", cfg.HipChat.Token)
	}
	if cfg.Slack.WebhookURL != "https://example.com/hook" {
		t.Errorf("WebhookURL = %q", cfg.Slack.WebhookURL)
	}
	if cfg.StorageBucket != "relay-bucket" {
		t.Errorf("StorageBucket = %q", cfg.StorageBucket)
	}
	if cfg.LastMessageIDsFile != "cursors.json" {
		t.Errorf("LastMessageIDsFile = %q", cfg.LastMessageIDsFile)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HipChat: HipChatConfig{Token: "t"},
			Slack:   SlackConfig{WebhookURL: "https://example.com/hook"},
			Rooms:   RoomList{{Room: "General"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "complete", mutate: func(*Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.HipChat.Token = "" }, wantErr: true},
		{name: "missing webhook", mutate: func(c *Config) { c.Slack.WebhookURL = "" }, wantErr: true},
		{name: "missing webhook in dry run", mutate: func(c *Config) { c.Slack.WebhookURL = ""; c.Slack.DryRun = true }},
		{name: "no rooms", mutate: func(c *Config) { c.Rooms = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrMissing) {
					t.Errorf("Validate() error = %v, want ErrMissing", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want ErrNotExist", err)
	}
}

func TestParseInvalidRooms(t *testing.T) {
	inputs := []string{
		"rooms: General\n",
		"rooms:\n  - [a, b]\n",
		"rooms:\n  - Dev: [a]\n",
	}
	for _, in := range inputs {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
		}
	}
}
