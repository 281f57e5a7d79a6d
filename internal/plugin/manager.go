package plugin

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"hotbot/internal/config"
	"hotbot/internal/eventbus"
	"hotbot/pkg/logx"
)

// Lifecycle event types published on the bus.
const (
	EventStarted     = "plugin.started"
	EventStopped     = "plugin.stopped"
	EventStartFailed = "plugin.start_failed"
)

type lifecycleEvent struct {
	Plugin string `json:"plugin"`
	Stage  string `json:"stage,omitempty"`
	Err    string `json:"err,omitempty"`
}

// Manager owns plugin lifecycle. A failing plugin never takes down its
// siblings: Init/Start/Stop errors and panics are contained per plugin.
type Manager struct {
	mu sync.Mutex

	log  logx.Logger
	deps Deps

	reg map[string]Plugin
	// order preserves registration order for deterministic start/stop.
	order []string

	// inited tracks plugins whose Init succeeded at least once; Init is not
	// re-run on enable/disable cycles.
	inited  map[string]bool
	running map[string]bool

	// per-plugin run context, cancelled on stop.
	pcancel map[string]context.CancelFunc
}

// NewManager builds a manager around the shared dependency set.
func NewManager(log logx.Logger, deps Deps) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		log:     log.With(logx.String("component", "plugins")),
		deps:    deps,
		reg:     map[string]Plugin{},
		inited:  map[string]bool{},
		running: map[string]bool{},
		pcancel: map[string]context.CancelFunc{},
	}
}

// Register adds a plugin. Names must be unique and non-empty.
func (m *Manager) Register(p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin: empty name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.reg[name]; dup {
		return fmt.Errorf("plugin: duplicate name %q", name)
	}
	m.reg[name] = p
	m.order = append(m.order, name)
	return nil
}

// StartAll inits and starts every registered plugin whose config section is
// enabled. Without a config manager all plugins are considered enabled.
// Failures are logged and skipped.
func (m *Manager) StartAll(ctx context.Context) {
	for _, name := range m.names() {
		if !m.enabled(name) {
			m.log.Debug("plugin disabled, skipping", logx.String("plugin", name))
			continue
		}
		m.startOne(ctx, name)
	}
}

// StopAll stops running plugins in reverse registration order.
func (m *Manager) StopAll(ctx context.Context) {
	names := m.names()
	for i := len(names) - 1; i >= 0; i-- {
		m.stopOne(ctx, names[i])
	}
}

// OnConfigChange reconciles the running set against a freshly loaded config:
// newly enabled plugins start, newly disabled ones stop, and running plugins
// implementing ConfigWatcher receive their section.
func (m *Manager) OnConfigChange(ctx context.Context, cfg *config.Config) {
	if cfg == nil {
		return
	}
	for _, name := range m.names() {
		section := cfg.Plugin(name)
		switch {
		case section.Enabled && !m.isRunning(name):
			m.startOne(ctx, name)
		case !section.Enabled && m.isRunning(name):
			m.stopOne(ctx, name)
		case m.isRunning(name):
			m.notifyConfig(name, section)
		}
	}
}

// Running lists currently running plugins, sorted.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.running))
	for name, on := range m.running {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Manager) startOne(ctx context.Context, name string) {
	m.mu.Lock()
	p, ok := m.reg[name]
	if !ok || m.running[name] {
		m.mu.Unlock()
		return
	}
	needInit := !m.inited[name]
	m.mu.Unlock()

	started := time.Now()
	if needInit {
		err := m.guard(name, "init", ctx, func(c context.Context) error {
			return p.Init(c, m.deps)
		})
		if err != nil {
			m.log.Error("plugin init failed", logx.String("plugin", name), logx.Err(err))
			m.emit(EventStartFailed, lifecycleEvent{Plugin: name, Stage: "init", Err: err.Error()})
			return
		}
		m.mu.Lock()
		m.inited[name] = true
		m.mu.Unlock()
	}

	pctx, pcancel := context.WithCancel(context.Background())
	if err := m.guard(name, "start", pctx, p.Start); err != nil {
		pcancel()
		m.log.Error("plugin start failed", logx.String("plugin", name), logx.Err(err))
		m.emit(EventStartFailed, lifecycleEvent{Plugin: name, Stage: "start", Err: err.Error()})
		return
	}

	m.mu.Lock()
	m.running[name] = true
	m.pcancel[name] = pcancel
	m.mu.Unlock()

	m.log.Info("plugin started", logx.String("plugin", name), logx.Duration("took", time.Since(started)))
	m.emit(EventStarted, lifecycleEvent{Plugin: name})
}

func (m *Manager) stopOne(ctx context.Context, name string) {
	m.mu.Lock()
	p, ok := m.reg[name]
	if !ok || !m.running[name] {
		m.mu.Unlock()
		return
	}
	m.running[name] = false
	cancel := m.pcancel[name]
	delete(m.pcancel, name)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := m.guard(name, "stop", ctx, p.Stop); err != nil {
		m.log.Warn("plugin stop returned error", logx.String("plugin", name), logx.Err(err))
	}
	m.cancelTasks(name)

	m.log.Info("plugin stopped", logx.String("plugin", name))
	m.emit(EventStopped, lifecycleEvent{Plugin: name})
}

// cancelTasks sweeps the scheduler for tasks the plugin left behind. Plugins
// namespace their task IDs as "<plugin>:<task>", so a prefix match is enough.
// Removal (not just cancellation) frees the ids so a re-enabled plugin can
// register them again.
func (m *Manager) cancelTasks(name string) {
	sched := m.deps.Scheduler
	if sched == nil {
		return
	}
	prefix := name + ":"
	for id := range sched.Tasks() {
		if strings.HasPrefix(id, prefix) && sched.Remove(id) {
			m.log.Debug("removed leftover task", logx.String("plugin", name), logx.String("task", id))
		}
	}
}

func (m *Manager) notifyConfig(name string, section config.PluginConfig) {
	m.mu.Lock()
	p := m.reg[name]
	m.mu.Unlock()
	cw, ok := p.(ConfigWatcher)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("plugin config handler panicked",
				logx.String("plugin", name), logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	cw.OnConfigChange(section)
}

// guard runs one lifecycle step with panic containment.
func (m *Manager) guard(name, stage string, ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked in %s: %v\n%s", name, stage, r, debug.Stack())
		}
	}()
	return fn(ctx)
}

func (m *Manager) emit(typ string, data lifecycleEvent) {
	if m.deps.Bus == nil {
		return
	}
	m.deps.Bus.Publish(eventbus.Event{Type: typ, Data: data})
}

func (m *Manager) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Manager) isRunning(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[name]
}

func (m *Manager) enabled(name string) bool {
	if m.deps.Config == nil {
		return true
	}
	cfg := m.deps.Config.Get()
	if cfg == nil {
		return true
	}
	return cfg.Plugin(name).Enabled
}
