// Package plugin defines the contract between the bot core and its
// collectors, and the manager that drives their lifecycle.
package plugin

import (
	"context"

	"hotbot/internal/config"
	"hotbot/internal/eventbus"
	"hotbot/internal/hotsearch"
	"hotbot/internal/onebot"
	"hotbot/internal/scheduler"
	"hotbot/internal/storage"
	"hotbot/pkg/logx"
)

// Plugin is one self-contained collector. Init wires dependencies, Start
// registers scheduled work, Stop releases whatever Start acquired. A plugin
// must tolerate Stop without a prior Start.
type Plugin interface {
	Name() string
	Init(ctx context.Context, deps Deps) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ConfigWatcher is an optional interface. Plugins that implement it are
// handed their section whenever the config file is reloaded.
type ConfigWatcher interface {
	OnConfigChange(cfg config.PluginConfig)
}

// Sender is the message delivery surface plugins see. *onebot.Sender
// satisfies it; tests swap in fakes.
type Sender interface {
	SendGroup(ctx context.Context, groupID int64, segs ...onebot.Segment) error
	SendPrivate(ctx context.Context, userID int64, segs ...onebot.Segment) error
}

// Fetcher is the trending-feed surface plugins see. *hotsearch.Client
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, tab, subTab string, page int) (*hotsearch.Feed, error)
}

// Deps is everything the core hands a plugin at Init time. Store may be nil
// when persistence is disabled.
type Deps struct {
	Logger    logx.Logger
	Scheduler *scheduler.Scheduler
	Sender    Sender
	Hot       Fetcher
	Bus       eventbus.Bus
	Store     storage.Store
	Config    *config.Manager
}
