package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "hotbot/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	plugin     TEXT NOT NULL,
	tab        TEXT NOT NULL,
	sub_tab    TEXT NOT NULL,
	fetched_at TEXT NOT NULL,
	items      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_feed
	ON snapshots(tab, sub_tab, fetched_at DESC);
`

type sqliteStore struct {
	db          *sql.DB
	log         logx.Logger
	keepPerFeed int
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	keep := cfg.KeepPerFeed
	if keep <= 0 {
		keep = 48
	}
	return &sqliteStore{db: db, log: log, keepPerFeed: keep}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	items, err := json.Marshal(snap.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots(plugin, tab, sub_tab, fetched_at, items) VALUES(?,?,?,?,?)`,
		snap.Plugin, snap.Tab, snap.SubTab, snap.FetchedAt.UTC().Format(time.RFC3339Nano), string(items),
	)
	if err != nil {
		return err
	}

	// Keep the newest N snapshots per feed.
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE tab = ? AND sub_tab = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE tab = ? AND sub_tab = ?
			ORDER BY fetched_at DESC LIMIT ?
		)`,
		snap.Tab, snap.SubTab, snap.Tab, snap.SubTab, s.keepPerFeed,
	)
	if err != nil {
		s.log.Warn("snapshot prune failed", logx.String("tab", snap.Tab), logx.Err(err))
	}
	return nil
}

func (s *sqliteStore) LatestSnapshot(ctx context.Context, tab, subTab string) (*Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT plugin, fetched_at, items FROM snapshots
		 WHERE tab = ? AND sub_tab = ? ORDER BY fetched_at DESC LIMIT 1`,
		tab, subTab,
	)

	var (
		plugin string
		at     string
		items  string
	)
	if err := row.Scan(&plugin, &at, &items); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	snap := &Snapshot{Plugin: plugin, Tab: tab, SubTab: subTab}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, err
	}
	snap.FetchedAt = t
	if err := json.Unmarshal([]byte(items), &snap.Items); err != nil {
		return nil, err
	}
	return snap, nil
}
