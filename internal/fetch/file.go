package fetch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/campfinder/internal/listing"
)

// listingFile is the wrapped form of a fixture file: {listings: [...]}.
type listingFile struct {
	Listings []listing.Row `yaml:"listings"`
}

// LoadFile reads listings from a YAML or JSON file. The file holds either
// a list of rows or a mapping with a "listings" key.
func LoadFile(path string) ([]listing.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return Normalize(rows), nil
}

func decodeRows(data []byte) ([]listing.Row, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var rows []listing.Row
	listErr := yaml.Unmarshal(trimmed, &rows)
	if listErr == nil {
		return rows, nil
	}

	var wrapped listingFile
	if err := yaml.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, listErr
	}
	return wrapped.Listings, nil
}

// Normalize converts rows to listings, giving rows without an id a
// fresh UUID.
func Normalize(rows []listing.Row) []listing.Listing {
	out := make([]listing.Listing, 0, len(rows))
	for _, r := range rows {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		out = append(out, r.Listing())
	}
	return out
}

// FileSource serves a fixture file as a sync source.
type FileSource struct {
	Path string
}

// Name identifies the source in sync status and events.
func (f FileSource) Name() string {
	return "file/" + filepath.Base(f.Path)
}

// FetchAll reloads the file. ctx is only checked before reading.
func (f FileSource) FetchAll(ctx context.Context) ([]listing.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(f.Path)
}

// WatchFile calls onChange after path is written, created or renamed
// into place, once changes have been quiet for debounce. It blocks until
// ctx is cancelled.
func WatchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	// fire is nil while no change is pending.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			fire = time.After(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)

		case <-fire:
			fire = nil
			onChange()
		}
	}
}
