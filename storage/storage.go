// Package storage handles persistence of per-room message cursors.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hipchat-slack-relay/pkg/relay"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
)

// emptyCursors is written when no cursor file exists yet.
var emptyCursors = []byte("{}")

// Store loads and saves the cursor set as a single JSON object, either in a
// local file or in a Cloud Storage object.
//
// There is no locking: two overlapping runs will race and the last Save wins.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
	object    string
}

// New creates a cursor store. If client is nil the store uses localPath on
// disk; otherwise it uses the object named by localPath's base name in bucket.
func New(client *storage.Client, bucket string, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
		object:    filepath.Base(localPath),
	}
}

// Load returns the stored cursors. A missing file or object is created
// holding an empty set; content that is not a JSON object of strings is
// treated as empty.
func (s *Store) Load(ctx context.Context) (relay.Cursors, error) {
	var data []byte
	var err error
	if s.client == nil {
		data, err = s.readLocal()
	} else {
		data, err = s.readObject(ctx)
	}
	if err != nil {
		return nil, err
	}

	cursors := relay.Cursors{}
	if err := json.Unmarshal(data, &cursors); err != nil {
		s.logger.Warn("Cursor data is not valid JSON, starting from empty cursors", "error", err, "bytes", len(data))
		return relay.Cursors{}, nil
	}
	if cursors == nil {
		cursors = relay.Cursors{}
	}

	s.logger.Info("Cursors loaded", "rooms", len(cursors))
	return cursors, nil
}

// Save overwrites the stored cursor set.
func (s *Store) Save(ctx context.Context, cursors relay.Cursors) error {
	if cursors == nil {
		cursors = relay.Cursors{}
	}
	data, err := json.Marshal(cursors)
	if err != nil {
		return fmt.Errorf("marshal cursors: %w", err)
	}

	if s.client == nil {
		if err := writeFileAtomic(s.localPath, data); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		s.logger.Info("Cursors saved to local storage", "path", s.localPath, "rooms", len(cursors))
		return nil
	}

	if err := s.writeObject(ctx, data); err != nil {
		return err
	}
	s.logger.Info("Cursors saved", "bucket", s.bucket, "object", s.object, "rooms", len(cursors))
	return nil
}

func (s *Store) readLocal() ([]byte, error) {
	data, err := os.ReadFile(s.localPath)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read from local storage: %w", err)
	}

	s.logger.Info("Cursor file not found, creating it", "path", s.localPath)
	if err := os.WriteFile(s.localPath, emptyCursors, 0o600); err != nil {
		return nil, fmt.Errorf("create cursor file: %w", err)
	}
	return emptyCursors, nil
}

// writeFileAtomic replaces path with data via a temp file in the same directory and a rename.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Store) readObject(ctx context.Context) ([]byte, error) {
	var data []byte
	notFound := false

	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
			if openErr != nil {
				// Don't retry on "not found" errors
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					notFound = true
					return retry.Unrecoverable(fmt.Errorf("open storage reader: %w", openErr))
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying load operation after error", "attempt", n, "object", s.object, "error", retryErr)
		}),
	)
	if notFound {
		s.logger.Info("Cursor object not found, creating it", "bucket", s.bucket, "object", s.object)
		if err := s.writeObject(ctx, emptyCursors); err != nil {
			return nil, fmt.Errorf("create cursor object: %w", err)
		}
		return emptyCursors, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return data, nil
}

func (s *Store) writeObject(ctx context.Context, data []byte) error {
	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying save operation after error", "attempt", n, "object", s.object, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}
	return nil
}
