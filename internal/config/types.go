package config

// Config is the root of hotbot's configuration file (YAML or JSON).
//
// The file is decoded strictly: unknown keys are rejected so typos surface at
// startup instead of silently disabling features.
type Config struct {
	Log       LogConfig               `json:"log"`
	OneBot    OneBotConfig            `json:"onebot"`
	HotSearch HotSearchConfig         `json:"hotsearch"`
	Storage   StorageConfig           `json:"storage"`
	Scheduler SchedulerConfig         `json:"scheduler"`
	Plugins   map[string]PluginConfig `json:"plugins"`
}

type LogConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// OneBotConfig points at the local OneBot HTTP API used to deliver messages.
type OneBotConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Token      string `json:"token"`
	RatePerSec int    `json:"rate_per_sec"`
	Timeout    string `json:"timeout"` // Go duration, e.g. "10s"
}

// HotSearchConfig configures the trending-data API client.
type HotSearchConfig struct {
	BaseURL   string `json:"base_url"`
	AuthToken string `json:"auth_token"`
	Timeout   string `json:"timeout"`
}

type StorageConfig struct {
	// Driver is "sqlite", "file", or "" / "none" to disable persistence.
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// KeepPerFeed bounds how many snapshots are retained per (tab, sub_tab).
	KeepPerFeed int `json:"keep_per_feed"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
}

// PluginConfig is the shared shape of per-plugin settings. Individual plugins
// apply their own defaults for zero values.
type PluginConfig struct {
	Enabled  bool    `json:"enabled"`
	GroupIDs []int64 `json:"group_ids"`
	UserIDs  []int64 `json:"user_ids"`
	HotCount int     `json:"hot_count"`

	// Collection window: the plugin fires once per hour at a minute within
	// [StartMinute, EndMinute], restricted to Hours ("*" = every hour).
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Hours       string `json:"hours"`
}

// Plugin returns the named plugin section, or a zero config if absent.
func (c *Config) Plugin(name string) PluginConfig {
	if c == nil || c.Plugins == nil {
		return PluginConfig{}
	}
	return c.Plugins[name]
}
