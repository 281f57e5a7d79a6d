package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"hotbot/internal/cron"
	logx "hotbot/pkg/logx"
)

// ErrStopped is returned by Add* operations after StopAll.
var ErrStopped = errors.New("scheduler: stopped")

// Scheduler owns a registry of tasks and drives each one in its own
// goroutine. It performs no I/O of its own beyond logging run outcomes.
//
// The Scheduler is constructed once at process start and stopped once at
// shutdown; there is no package-level instance.
type Scheduler struct {
	log logx.Logger
	now func() time.Time

	mu      sync.Mutex
	tasks   map[string]*Task
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a started scheduler. Tasks can be registered immediately.
func New(log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:     log,
		now:     time.Now,
		tasks:   map[string]*Task{},
		running: true,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddInterval registers a task that runs forever at a fixed interval. The
// first run happens immediately; the wait between runs is the interval minus
// the previous execution time, floored at zero, so an overrunning job is
// followed straight away by the next run with no catch-up backlog.
//
// An empty id gets a generated one. The task id is returned.
func (s *Scheduler) AddInterval(id string, every time.Duration, job Invocable) (string, error) {
	if every <= 0 {
		return "", fmt.Errorf("scheduler: interval must be positive, got %s", every)
	}
	t, ctx, err := s.register("interval", id, job)
	if err != nil {
		return "", err
	}
	s.wg.Add(1)
	go s.runInterval(ctx, t, every)
	return t.id, nil
}

// AddCron registers a task driven by a five-field cron expression. The
// expression is parsed once here, so a malformed or unsatisfiable expression
// fails at registration rather than at run time.
func (s *Scheduler) AddCron(id, expr string, job Invocable) (string, error) {
	sched, err := cron.Parse(expr)
	if err != nil {
		return "", err
	}
	// An expression can parse and still never match (e.g. February 31st).
	// Probe once so that fails loudly here instead of inside the loop.
	if _, err := sched.Next(s.now()); err != nil {
		return "", fmt.Errorf("scheduler: %q: %w", expr, err)
	}
	t, ctx, err := s.register("cron", id, job)
	if err != nil {
		return "", err
	}
	s.wg.Add(1)
	go s.runCron(ctx, t, sched)
	return t.id, nil
}

// AddOnce registers a task that executes exactly once at runAt and never
// reschedules. A runAt already in the past is dropped: the task is kept in
// the registry with StateExpired and a warning is logged, but the job never
// runs.
func (s *Scheduler) AddOnce(id string, runAt time.Time, job Invocable) (string, error) {
	t, ctx, err := s.register("once", id, job)
	if err != nil {
		return "", err
	}
	s.wg.Add(1)
	go s.runOnce(ctx, t, runAt)
	return t.id, nil
}

// AddRandomMinute registers a cron task firing once per hour somewhere in
// [startMinute, endMinute]. Many collectors registered this way land on
// different minutes, which keeps them from stampeding a shared downstream at
// the top of the hour. hours narrows the hour field; empty means every hour.
func (s *Scheduler) AddRandomMinute(id string, startMinute, endMinute int, hours string, job Invocable) (string, error) {
	if hours == "" {
		hours = "*"
	}
	expr := fmt.Sprintf("%d-%d %s * * *", startMinute, endMinute, hours)
	return s.AddCron(id, expr, job)
}

// Cancel cancels the task with the given id, waking it immediately if it is
// sleeping. It reports whether the id was known.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Remove cancels the task with the given id and deletes it from the
// registry, freeing the id for re-registration. The driving goroutine winds
// down on its own after the forced wake. It reports whether the id was known.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Task returns the task with the given id.
func (s *Scheduler) Task(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Tasks returns a snapshot of the registry. Finished and cancelled tasks stay
// registered until explicitly removed; there is no automatic garbage
// collection.
func (s *Scheduler) Tasks() map[string]*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Task, len(s.tasks))
	for id, t := range s.tasks {
		out[id] = t
	}
	return out
}

// Status returns the run-state snapshot of a task.
func (s *Scheduler) Status(id string) (Status, bool) {
	t, ok := s.Task(id)
	if !ok {
		return Status{}, false
	}
	return t.Status(), true
}

// StopAll cancels every registered task and refuses further registrations.
// Idempotent; safe to call from a shutdown handler.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
	s.cancel()
	if wasRunning {
		s.log.Info("scheduler stopped", logx.Int("tasks", len(tasks)))
	}
}

// Wait blocks until every task goroutine has exited, or ctx expires.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) register(kind, id string, job Invocable) (*Task, context.Context, error) {
	if job == nil {
		return nil, nil, errors.New("scheduler: job is nil")
	}
	if id == "" {
		id = kind + ":" + uuid.NewString()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &Task{id: id, job: job, cancel: cancel}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		cancel()
		return nil, nil, ErrStopped
	}
	if _, exists := s.tasks[id]; exists {
		cancel()
		return nil, nil, fmt.Errorf("scheduler: task id %q already registered", id)
	}
	s.tasks[id] = t
	return t, ctx, nil
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// sleep waits for d or until the task is force-woken. It reports whether the
// full wait elapsed.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) runInterval(ctx context.Context, t *Task, every time.Duration) {
	defer s.wg.Done()
	for s.isRunning() && !t.isCancelled() {
		start := s.now()
		t.execute(ctx, s.log)

		wait := every - s.now().Sub(start)
		if wait < 0 {
			wait = 0
		}
		t.setNextRun(s.now().Add(wait))
		if !s.sleep(ctx, wait) {
			break
		}
	}
	t.finish()
}

func (s *Scheduler) runCron(ctx context.Context, t *Task, sched *cron.Schedule) {
	defer s.wg.Done()
	for s.isRunning() && !t.isCancelled() {
		now := s.now()
		next, err := sched.Next(now)
		if err != nil {
			// Pre-checked at registration; if the calendar still defeats us,
			// stop this task loudly rather than guessing a fallback.
			s.log.Error("cron schedule unsatisfiable, stopping task",
				logx.String("task", t.id),
				logx.String("expr", sched.String()),
				logx.Err(err),
			)
			t.Cancel()
			break
		}
		t.setNextRun(next)
		if !s.sleep(ctx, next.Sub(now)) {
			break
		}
		if t.isCancelled() {
			break
		}
		t.execute(ctx, s.log)
	}
	t.finish()
}

func (s *Scheduler) runOnce(ctx context.Context, t *Task, runAt time.Time) {
	defer s.wg.Done()
	t.setNextRun(runAt)

	now := s.now()
	if !runAt.After(now) {
		s.log.Warn("one-shot task run time already passed, dropping",
			logx.String("task", t.id),
			logx.Time("run_at", runAt),
		)
		t.setState(StateExpired)
		return
	}
	if !s.sleep(ctx, runAt.Sub(now)) {
		t.finish()
		return
	}
	if t.isCancelled() {
		t.finish()
		return
	}
	t.execute(ctx, s.log)
	if !t.isCancelled() {
		t.setState(StateDone)
	}
}

// finish settles the terminal state when a driving loop exits.
func (t *Task) finish() {
	t.mu.Lock()
	if t.cancelled {
		t.state = StateCancelled
	}
	t.mu.Unlock()
}
