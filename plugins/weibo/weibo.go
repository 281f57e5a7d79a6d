// Package weibo collects the Weibo realtime trending feed once per hour and
// posts the top entries to the configured chats.
package weibo

import (
	"hotbot/internal/pluginkit"
)

// Name is the plugin's registry and config-section key.
const Name = "weibo"

// New builds the Weibo collector.
func New() *pluginkit.Collector {
	return pluginkit.NewCollector(pluginkit.Options{
		Name:            Name,
		Tab:             "weibo",
		SubTab:          "realtime",
		Header:          "🔥 微博热搜榜",
		DefaultHotCount: 10,
	})
}
