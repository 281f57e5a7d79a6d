// Package baidu collects the Baidu realtime hot-search feed. Baidu marks
// entries with single-character tags (热, 新, 爆, ...) and ships a short
// description per entry, so it carries its own message layout.
package baidu

import (
	"strings"
	"time"

	"hotbot/internal/hotsearch"
	"hotbot/internal/pluginkit"
)

// Name is the plugin's registry and config-section key.
const Name = "baidu"

var tagEmoji = map[string]string{
	"热": "🔥",
	"新": "✨",
	"爆": "💥",
	"沸": "♨️",
	"商": "🛒",
	"娱": "🎬",
	"体": "⚽",
	"情": "💖",
}

// New builds the Baidu collector.
func New() *pluginkit.Collector {
	return pluginkit.NewCollector(pluginkit.Options{
		Name:            Name,
		Tab:             "baidu",
		SubTab:          "realtime",
		Header:          "📱 百度热搜榜",
		DefaultHotCount: 10,
		Format:          formatFeed,
	})
}

func formatFeed(at time.Time, items []hotsearch.Item) string {
	var b strings.Builder
	b.WriteString("📱 百度热搜榜 (")
	b.WriteString(at.Format("2006-01-02 15:04"))
	b.WriteString(")\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━\n")
	for i, it := range items {
		b.WriteString(pluginkit.RankPrefix(i + 1))
		if emoji := tagEmoji[it.Tag]; emoji != "" {
			b.WriteString(emoji)
			b.WriteString(" ")
		}
		b.WriteString(it.Title)
		if score := pluginkit.FormatScore(it.Score); score != "" {
			b.WriteString(" 🔥")
			b.WriteString(score)
		}
		b.WriteString("\n")
		if it.Summary != "" {
			b.WriteString("　")
			b.WriteString(truncate(it.Summary, 40))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// truncate trims to max runes with an ellipsis; Baidu descriptions can run
// to paragraph length.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
