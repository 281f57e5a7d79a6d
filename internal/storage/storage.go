package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "hotbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free backend, one JSON file per feed
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	KeepPerFeed int // snapshots retained per (tab, sub_tab); sqlite only
}

// Item is one entry of a trending feed.
type Item struct {
	Rank    int    `json:"rank"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	URL     string `json:"url,omitempty"`
	Score   string `json:"score,omitempty"`
}

// Snapshot is the result of one collection run.
type Snapshot struct {
	Plugin    string    `json:"plugin"`
	Tab       string    `json:"tab"`
	SubTab    string    `json:"sub_tab"`
	FetchedAt time.Time `json:"fetched_at"`
	Items     []Item    `json:"items"`
}

// Store is the persistence API used by the snapshot recorder.
type Store interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
	LatestSnapshot(ctx context.Context, tab, subTab string) (*Snapshot, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
