// Package pluginkit provides the shared skeleton for feed-collecting
// plugins. A Collector fetches one (tab, sub_tab) trending feed on a
// randomized hourly schedule, formats the top entries, delivers them to the
// configured chats and publishes a fetch event carrying the entries, which
// the snapshot recorder persists.
package pluginkit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"hotbot/internal/config"
	"hotbot/internal/eventbus"
	"hotbot/internal/hotsearch"
	"hotbot/internal/onebot"
	"hotbot/internal/plugin"
	"hotbot/internal/scheduler"
	"hotbot/pkg/logx"
)

// FormatFunc renders the message body for one collection run.
type FormatFunc func(at time.Time, items []hotsearch.Item) string

// Options describes one feed collector.
type Options struct {
	Name   string // plugin name, also the config section key
	Tab    string // rebang tab
	SubTab string // rebang sub_tab
	Header string // first line of the outgoing message

	DefaultHotCount int // top-N cap when the config leaves hot_count zero

	// Default collection window within the hour. End falls back to 5 when
	// both bounds are zero, mirroring the historical fetch window.
	DefaultStartMinute int
	DefaultEndMinute   int

	// Format overrides the default rendering. Nil uses FormatFeed.
	Format FormatFunc
}

// Collector implements plugin.Plugin and plugin.ConfigWatcher.
type Collector struct {
	opts Options

	log  logx.Logger
	deps plugin.Deps

	mu     sync.Mutex
	cfg    config.PluginConfig
	taskID string
}

// NewCollector builds a collector for one feed.
func NewCollector(opts Options) *Collector {
	if opts.DefaultHotCount <= 0 {
		opts.DefaultHotCount = 10
	}
	if opts.DefaultStartMinute == 0 && opts.DefaultEndMinute == 0 {
		opts.DefaultEndMinute = 5
	}
	return &Collector{opts: opts, log: logx.Nop()}
}

func (c *Collector) Name() string { return c.opts.Name }

// Init captures dependencies and the plugin's config section.
func (c *Collector) Init(ctx context.Context, deps plugin.Deps) error {
	if deps.Hot == nil {
		return fmt.Errorf("%s: no feed client", c.opts.Name)
	}
	if deps.Sender == nil {
		return fmt.Errorf("%s: no sender", c.opts.Name)
	}
	if deps.Scheduler == nil {
		return fmt.Errorf("%s: no scheduler", c.opts.Name)
	}
	c.deps = deps
	if !deps.Logger.IsZero() {
		c.log = deps.Logger.With(logx.String("plugin", c.opts.Name))
	}

	section := config.PluginConfig{}
	if deps.Config != nil {
		if cfg := deps.Config.Get(); cfg != nil {
			section = cfg.Plugin(c.opts.Name)
		}
	}
	c.mu.Lock()
	c.cfg = c.withDefaults(section)
	c.mu.Unlock()
	return nil
}

// Start registers the hourly collection task. The exact firing minute is
// picked at random inside the configured window, so a fleet of collectors
// does not hammer the API at the top of the hour.
func (c *Collector) Start(ctx context.Context) error {
	cfg := c.snapshot()
	id, err := c.deps.Scheduler.AddRandomMinute(
		c.opts.Name+":fetch",
		cfg.StartMinute, cfg.EndMinute, cfg.Hours,
		scheduler.JobFunc(c.Collect),
	)
	if err != nil {
		return fmt.Errorf("%s: schedule fetch: %w", c.opts.Name, err)
	}
	c.mu.Lock()
	c.taskID = id
	c.mu.Unlock()
	c.log.Info("collection scheduled",
		logx.String("task", id),
		logx.Int("start_minute", cfg.StartMinute),
		logx.Int("end_minute", cfg.EndMinute),
		logx.String("hours", cfg.Hours))
	return nil
}

// Stop removes the collection task so its id is free if the collector is
// started again.
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	id := c.taskID
	c.taskID = ""
	c.mu.Unlock()
	if id != "" && c.deps.Scheduler != nil {
		c.deps.Scheduler.Remove(id)
	}
	return nil
}

// OnConfigChange swaps in the new section. Delivery targets and hot_count
// apply from the next run; window changes need a plugin restart because the
// cron expression is fixed at registration.
func (c *Collector) OnConfigChange(cfg config.PluginConfig) {
	next := c.withDefaults(cfg)
	c.mu.Lock()
	prev := c.cfg
	c.cfg = next
	c.mu.Unlock()
	if prev.StartMinute != next.StartMinute || prev.EndMinute != next.EndMinute || prev.Hours != next.Hours {
		c.log.Warn("collection window changed, applies after restart")
	}
}

// Collect runs one fetch-format-deliver cycle. It is invoked by the
// scheduler but is also safe to call directly (manual trigger, tests).
func (c *Collector) Collect(ctx context.Context) error {
	cfg := c.snapshot()
	at := time.Now()

	feed, err := c.deps.Hot.Fetch(ctx, c.opts.Tab, c.opts.SubTab, 1)
	if err != nil {
		c.publish(eventbus.TypeFetchFailed, eventbus.FetchFailedEvent{
			Plugin: c.opts.Name, Tab: c.opts.Tab, Error: err.Error(),
		})
		return fmt.Errorf("%s: fetch: %w", c.opts.Name, err)
	}
	items := feed.Items
	if len(items) > cfg.HotCount {
		items = items[:cfg.HotCount]
	}
	if len(items) == 0 {
		c.log.Warn("feed returned no items")
		return nil
	}

	c.deliver(ctx, cfg, c.render(at, items))
	c.publish(eventbus.TypeFetched, eventbus.FetchedEvent{
		Plugin: c.opts.Name,
		Tab:    c.opts.Tab,
		SubTab: feed.SubTab,
		Count:  len(items),
		At:     at,
		Items:  toFeedItems(items),
	})
	return nil
}

func (c *Collector) render(at time.Time, items []hotsearch.Item) string {
	if c.opts.Format != nil {
		return c.opts.Format(at, items)
	}
	return FormatFeed(c.opts.Header, at, items)
}

// deliver fans the message out to every configured chat. Send failures are
// logged per target; one unreachable group must not starve the rest.
func (c *Collector) deliver(ctx context.Context, cfg config.PluginConfig, text string) {
	msg := onebot.Text(text)
	for _, gid := range cfg.GroupIDs {
		if err := c.deps.Sender.SendGroup(ctx, gid, msg); err != nil {
			c.log.Error("group send failed", logx.Int64("group_id", gid), logx.Err(err))
		}
	}
	for _, uid := range cfg.UserIDs {
		if err := c.deps.Sender.SendPrivate(ctx, uid, msg); err != nil {
			c.log.Error("private send failed", logx.Int64("user_id", uid), logx.Err(err))
		}
	}
}

func (c *Collector) publish(typ string, data any) {
	if c.deps.Bus == nil {
		return
	}
	c.deps.Bus.Publish(eventbus.Event{Type: typ, Data: data})
}

func (c *Collector) snapshot() config.PluginConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Collector) withDefaults(cfg config.PluginConfig) config.PluginConfig {
	if cfg.HotCount <= 0 {
		cfg.HotCount = c.opts.DefaultHotCount
	}
	if cfg.StartMinute == 0 && cfg.EndMinute == 0 {
		cfg.StartMinute = c.opts.DefaultStartMinute
		cfg.EndMinute = c.opts.DefaultEndMinute
	}
	if cfg.Hours == "" {
		cfg.Hours = "*"
	}
	return cfg
}

func toFeedItems(items []hotsearch.Item) []eventbus.FeedItem {
	out := make([]eventbus.FeedItem, 0, len(items))
	for i, it := range items {
		out = append(out, eventbus.FeedItem{
			Rank:    i + 1,
			Title:   it.Title,
			Summary: it.Summary,
			URL:     it.URL,
			Score:   it.Score,
		})
	}
	return out
}

// FormatFeed renders the default message layout: a header with the fetch
// time, then one numbered line per item with medal emoji for the top three
// and a condensed heat value.
func FormatFeed(header string, at time.Time, items []hotsearch.Item) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(" (")
	b.WriteString(at.Format("2006-01-02 15:04"))
	b.WriteString(")\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━\n")
	for i, it := range items {
		b.WriteString(RankPrefix(i + 1))
		b.WriteString(it.Title)
		if score := FormatScore(it.Score); score != "" {
			b.WriteString(" 🔥")
			b.WriteString(score)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RankPrefix returns medal emoji for the podium and "N. " for the rest.
func RankPrefix(rank int) string {
	switch rank {
	case 1:
		return "🥇 "
	case 2:
		return "🥈 "
	case 3:
		return "🥉 "
	default:
		return fmt.Sprintf("%d. ", rank)
	}
}

// FormatScore condenses a numeric heat value, rendering ten-thousands as
// "万". Non-numeric scores pass through untouched.
func FormatScore(score string) string {
	if score == "" {
		return ""
	}
	n, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return score
	}
	if n >= 10000 {
		return fmt.Sprintf("%.1f万", n/10000)
	}
	return score
}
