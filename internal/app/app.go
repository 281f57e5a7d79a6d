// Package app wires the bot together: config, logging, storage, the
// scheduler, the OneBot sender, the feed client and the plugin set.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hotbot/internal/config"
	"hotbot/internal/eventbus"
	"hotbot/internal/hotsearch"
	"hotbot/internal/onebot"
	"hotbot/internal/plugin"
	"hotbot/internal/scheduler"
	"hotbot/internal/storage"
	"hotbot/pkg/logx"
	"hotbot/pkg/systemd"
)

// App owns every long-lived component. Construct with New, then Register
// plugins, Start once, Stop once.
type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	bus   eventbus.Bus
	store storage.Store
	sched *scheduler.Scheduler

	sender *onebot.Sender
	hot    *hotsearch.Client

	pm  *plugin.Manager
	rec *recorder

	mu          sync.Mutex
	started     bool
	stopped     bool
	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

// New loads the config file and builds every component. Nothing runs yet.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLogConfig(cfg.Log))
	log = log.With(logx.String("component", "app"))
	cfgm.SetLogger(logs.Logger().With(logx.String("component", "config")))

	bus := eventbus.New()

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		KeepPerFeed: cfg.Storage.KeepPerFeed,
	}, logs.Logger().With(logx.String("component", "storage")))
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
	}

	obTimeout, err := config.ParseDurationOrDefault("onebot.timeout", cfg.OneBot.Timeout, 10*time.Second)
	if err != nil {
		logs.Close()
		return nil, err
	}
	sender := onebot.NewSender(onebot.Config{
		Host:       cfg.OneBot.Host,
		Port:       cfg.OneBot.Port,
		Token:      cfg.OneBot.Token,
		RatePerSec: cfg.OneBot.RatePerSec,
		Timeout:    obTimeout,
	}, logs.Logger())

	hsTimeout, err := config.ParseDurationOrDefault("hotsearch.timeout", cfg.HotSearch.Timeout, 15*time.Second)
	if err != nil {
		logs.Close()
		return nil, err
	}
	hot := hotsearch.New(hotsearch.Config{
		BaseURL:   cfg.HotSearch.BaseURL,
		AuthToken: cfg.HotSearch.AuthToken,
		Timeout:   hsTimeout,
	}, logs.Logger())

	sched := scheduler.New(logs.Logger().With(logx.String("component", "scheduler")))

	pm := plugin.NewManager(logs.Logger(), plugin.Deps{
		Logger:    logs.Logger(),
		Scheduler: sched,
		Sender:    sender,
		Hot:       hot,
		Bus:       bus,
		Store:     store,
		Config:    cfgm,
	})

	return &App{
		cfgm:   cfgm,
		logs:   logs,
		log:    log,
		bus:    bus,
		store:  store,
		sched:  sched,
		sender: sender,
		hot:    hot,
		pm:     pm,
		rec:    newRecorder(logs.Logger(), bus, store),
	}, nil
}

// Plugins exposes the plugin manager for registration.
func (a *App) Plugins() *plugin.Manager { return a.pm }

// Scheduler exposes the task scheduler (status surfaces, tests).
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Register adds plugins, stopping at the first failure.
func (a *App) Register(ps ...plugin.Plugin) error {
	for _, p := range ps {
		if err := a.pm.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Start brings the bot up: recorder, plugins, config watcher, readiness
// notification. Idempotent Start is not supported; call it once.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("app: already started")
	}
	a.started = true
	a.mu.Unlock()

	a.rec.start()

	cfg := a.cfgm.Get()
	if cfg != nil && !cfg.Scheduler.Enabled {
		a.log.Warn("scheduler disabled in config, plugins will not start")
	} else {
		a.pm.StartAll(ctx)
	}

	a.startConfigWatch()

	if ok, err := systemd.NotifyReady(); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("systemd notified ready")
	}
	a.log.Info("bot started", logx.Any("plugins", a.pm.Running()))
	return nil
}

// Stop shuts everything down in reverse order. Safe to call once after
// Start; repeated calls are no-ops.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.started || a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	watchCancel := a.watchCancel
	a.mu.Unlock()

	systemd.NotifyStopping()

	if watchCancel != nil {
		watchCancel()
	}

	a.pm.StopAll(ctx)

	a.sched.StopAll()
	if err := a.sched.Wait(ctx); err != nil {
		a.log.Warn("scheduler drain timed out", logx.Err(err))
	}

	a.rec.stop()
	a.wg.Wait()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("bot stopped")
	return a.logs.Close()
}

// startConfigWatch reloads on file changes and pushes the result to the
// logger, the plugin manager and anyone else subscribed.
func (a *App) startConfigWatch() {
	ctx, cancel := context.WithCancel(context.Background())
	ch := a.cfgm.Subscribe(4)

	a.mu.Lock()
	a.watchCancel = cancel
	a.mu.Unlock()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-ch:
				if !ok {
					return
				}
				a.applyConfig(ctx, cfg)
			}
		}
	}()
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.log.Info("config reloaded")
	a.logs.Apply(mapLogConfig(cfg.Log))
	if cfg.Scheduler.Enabled {
		a.pm.OnConfigChange(ctx, cfg)
	}
}

func mapLogConfig(lc config.LogConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled:    lc.File.Enabled,
			Path:       lc.File.Path,
			MaxSizeMB:  lc.File.MaxSizeMB,
			MaxBackups: lc.File.MaxBackups,
			MaxAgeDays: lc.File.MaxAgeDays,
		},
	}
}
