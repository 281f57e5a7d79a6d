package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
log:
  level: INFO
  console: true
  file:
    enabled: true
    path: ./data/hotbot.log
onebot:
  host: 127.0.0.1
  port: 3000
  rate_per_sec: 5
  timeout: 10s
hotsearch:
  base_url: https://api.rebang.today/v1/items
  auth_token: "Bearer test-token"
  timeout: 15s
storage:
  driver: sqlite
  path: ./data/hotbot.db
  keep_per_feed: 48
scheduler:
  enabled: true
plugins:
  weibo:
    enabled: true
    group_ids: [123456789]
    hot_count: 10
    start_minute: 0
    end_minute: 5
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.yaml", sampleYAML))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.OneBot.Port != 3000 {
		t.Fatalf("OneBot.Port = %d", cfg.OneBot.Port)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.KeepPerFeed != 48 {
		t.Fatalf("storage config mismatch: %+v", cfg.Storage)
	}

	p := cfg.Plugin("weibo")
	if !p.Enabled || p.HotCount != 10 || len(p.GroupIDs) != 1 || p.GroupIDs[0] != 123456789 {
		t.Fatalf("plugin config mismatch: %+v", p)
	}
	if got := cfg.Plugin("nonexistent"); got.Enabled {
		t.Fatal("missing plugin section should be zero-valued")
	}

	if m.Get() != cfg {
		t.Fatal("Get() did not return the committed config")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.yaml", "log:\n  level: INFO\n  verbosity: high\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSubscribeReceivesCommits(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.yaml", sampleYAML))
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	cfg := &Config{}
	m.commit(cfg)
	m.publish(cfg)

	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("received wrong config")
		}
	default:
		t.Fatal("no config published")
	}
}
