// Command hipchat-slack-relay copies new HipChat room messages to Slack.
//
// Outside Cloud Run it performs one relay run and exits, which suits cron.
// On Cloud Run (K_SERVICE set) it serves POST /pollz for Cloud Scheduler.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"hipchat-slack-relay/config"
	"hipchat-slack-relay/hipchat"
	"hipchat-slack-relay/poll"
	"hipchat-slack-relay/server"
	"hipchat-slack-relay/slackhook"
	"hipchat-slack-relay/storage"

	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

const defaultConfigPath = "config.yaml"

func main() {
	ctx := context.Background()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to load .env", "error", err)
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	var storageClient *gcs.Client
	if cfg.StorageBucket != "" {
		storageClient, err = newStorageClient(ctx)
		if err != nil {
			logger.Error("Failed to initialize Storage client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
		logger.Info("Using GCS cursor storage", "bucket", cfg.StorageBucket)
	} else {
		logger.Info("Using local cursor storage", "path", cfg.LastMessageIDsFile)
	}

	rooms := cfg.RoomMap()
	logger.Info("Rooms configured", "rooms", rooms.Len())

	monitor := poll.New(
		hipchat.New(&http.Client{Timeout: 30 * time.Second}, hipchat.Options{
			BaseURL:    cfg.HipChat.APIBase,
			Token:      cfg.HipChat.Token,
			Timezone:   cfg.HipChat.Timezone,
			MaxResults: cfg.HipChat.MaxResults,
		}, logger),
		storage.New(storageClient, cfg.StorageBucket, cfg.LastMessageIDsFile, logger),
		slackhook.New(newProvider(cfg, logger), slackhook.NewFormatter(slackhook.FormatterConfig{
			Username:    cfg.Slack.Username,
			IconEmoji:   cfg.Slack.IconEmoji,
			SourceLabel: cfg.Slack.SourceLabel,
			GroupWindow: cfg.Slack.GroupWindow,
		}), logger),
		rooms,
		poll.Options{SkipFailedRooms: cfg.SkipFailedRooms, IsFatal: hipchat.IsUnauthorized},
		logger)

	if os.Getenv("K_SERVICE") != "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		if err := server.New(monitor, logger).ListenAndServe(port); err != nil {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if _, err := monitor.RunOnce(ctx); err != nil {
		logger.Error("Relay run failed", "error", err, "hint", failureHint(err))
		os.Exit(1)
	}
}

// failureHint points the operator at the setting behind common run failures.
func failureHint(err error) string {
	switch {
	case hipchat.IsUnauthorized(err):
		return "check hipchat.token or HIPCHAT_TOKEN"
	case hipchat.IsNotFound(err):
		return "check the room names under rooms"
	case errors.Is(err, poll.ErrAllRoomsFailed):
		return "check hipchat.api_base and network access"
	default:
		return ""
	}
}

func configPath() string {
	if p := os.Getenv("RELAY_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

func newProvider(cfg *config.Config, logger *slog.Logger) slackhook.Provider {
	if cfg.Slack.DryRun {
		logger.Info("Dry run enabled, Slack messages are logged only")
		return slackhook.NewMockProvider(logger)
	}
	return slackhook.NewWebhookProvider(cfg.Slack.WebhookURL, logger)
}

func newStorageClient(ctx context.Context) (*gcs.Client, error) {
	// Explicit credentials first, then Application Default Credentials
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON"); credsJSON != "" {
		return gcs.NewClient(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}
	return gcs.NewClient(ctx)
}
