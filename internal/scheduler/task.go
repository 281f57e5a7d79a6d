package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	logx "hotbot/pkg/logx"
)

// Invocable is a unit of schedulable work.
type Invocable interface {
	Invoke(ctx context.Context) error
}

// JobFunc adapts a context-aware function. Cooperative jobs should honor ctx
// so cancellation and shutdown can interrupt them mid-run.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Invoke(ctx context.Context) error { return f(ctx) }

// SyncJob adapts a plain function that runs to completion once started.
// Cancellation of a SyncJob takes effect at the next loop boundary, not
// mid-run.
type SyncJob func() error

func (f SyncJob) Invoke(context.Context) error { return f() }

// State is a task's lifecycle state.
type State uint8

const (
	StateIdle      State = iota // scheduled, waiting for its next instant
	StateRunning                // executing its invocable
	StateDone                   // one-shot, executed
	StateExpired                // one-shot whose run time had already passed at registration
	StateCancelled              // terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateExpired:
		return "expired"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Task is one registered unit of work. It is created only by the Scheduler's
// Add* operations; its bookkeeping is mutated by its own driving goroutine
// and by Cancel.
type Task struct {
	id  string
	job Invocable

	// cancel force-wakes the task's current wait.
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	lastRun   time.Time
	nextRun   time.Time
	cancelled bool
}

// Status is a point-in-time snapshot of a task's observable run state.
type Status struct {
	ID        string
	State     State
	IsRunning bool
	LastRun   time.Time // zero if the task never ran
	NextRun   time.Time // zero if no run is scheduled
	Cancelled bool
}

// ID returns the task's identifier.
func (t *Task) ID() string { return t.id }

// Status returns a snapshot of the task's run state. Safe to call from any
// goroutine.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		ID:        t.id,
		State:     t.state,
		IsRunning: t.state == StateRunning,
		LastRun:   t.lastRun,
		NextRun:   t.nextRun,
		Cancelled: t.cancelled,
	}
}

// Cancel marks the task cancelled and wakes any wait it is currently in.
// The driving loop observes the flag at its next boundary.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	if t.state != StateRunning {
		t.state = StateCancelled
	}
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (t *Task) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *Task) setNextRun(at time.Time) {
	t.mu.Lock()
	t.nextRun = at
	t.mu.Unlock()
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// execute runs the task's invocable exactly once. Errors and panics are
// logged and swallowed; the task is back in StateIdle when execute returns,
// so one failing run never aborts the schedule.
func (t *Task) execute(ctx context.Context, log logx.Logger) {
	started := time.Now()
	t.mu.Lock()
	t.lastRun = started
	t.state = StateRunning
	t.mu.Unlock()

	err := invoke(ctx, t.job)

	t.mu.Lock()
	if t.cancelled {
		t.state = StateCancelled
	} else {
		t.state = StateIdle
	}
	t.mu.Unlock()

	if err != nil {
		log.Error("task run failed",
			logx.String("task", t.id),
			logx.Time("started", started),
			logx.Duration("took", time.Since(started)),
			logx.Err(err),
		)
		return
	}
	log.Debug("task run ok",
		logx.String("task", t.id),
		logx.Duration("took", time.Since(started)),
	)
}

// invoke calls the job, converting a panic into an error so a crashing
// invocable cannot take its task (or the process) down.
func invoke(ctx context.Context, job Invocable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return job.Invoke(ctx)
}
