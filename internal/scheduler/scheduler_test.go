package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotbot/internal/cron"
	logx "hotbot/pkg/logx"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(logx.Nop())
	t.Cleanup(func() {
		s.StopAll()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Wait(ctx)
	})
	return s
}

func waitForAtLeast(t *testing.T, counter *int64, expected int64, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(counter) >= expected
	}, timeout, 5*time.Millisecond)
}

func TestAddIntervalRunsImmediatelyAndRepeats(t *testing.T) {
	s := newTestScheduler(t)

	var counter int64
	id, err := s.AddInterval("tick", 30*time.Millisecond, JobFunc(func(context.Context) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "tick", id)

	waitForAtLeast(t, &counter, 3, 2*time.Second)

	st, ok := s.Status(id)
	require.True(t, ok)
	assert.Equal(t, id, st.ID)
	assert.False(t, st.LastRun.IsZero())
	assert.False(t, st.NextRun.IsZero())
	assert.False(t, st.Cancelled)
}

func TestIntervalWaitFlooredAtZero(t *testing.T) {
	s := newTestScheduler(t)

	// Execution takes longer than the interval: runs must follow each other
	// immediately, never overlap, and the measured gap between run starts
	// must be at least the execution time.
	var starts []time.Time
	var inFlight atomic.Int32
	done := make(chan struct{}, 8)

	_, err := s.AddInterval("slow", 10*time.Millisecond, JobFunc(func(context.Context) error {
		if inFlight.Add(1) != 1 {
			t.Error("task re-entered itself")
		}
		starts = append(starts, time.Now())
		time.Sleep(40 * time.Millisecond)
		inFlight.Add(-1)
		done <- struct{}{}
		return nil
	}))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for runs")
		}
	}
	s.StopAll()
	require.NoError(t, s.Wait(context.Background()))

	require.GreaterOrEqual(t, len(starts), 3)
	for i := 1; i < 3; i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, 40*time.Millisecond, "successive starts closer than the execution time")
	}
}

func TestSlowTaskDoesNotBlockOthers(t *testing.T) {
	s := newTestScheduler(t)

	var fast int64
	blocked := make(chan struct{})
	_, err := s.AddInterval("blocker", 10*time.Millisecond, JobFunc(func(ctx context.Context) error {
		<-blocked
		return nil
	}))
	require.NoError(t, err)

	_, err = s.AddInterval("fast", 10*time.Millisecond, JobFunc(func(context.Context) error {
		atomic.AddInt64(&fast, 1)
		return nil
	}))
	require.NoError(t, err)

	waitForAtLeast(t, &fast, 5, 2*time.Second)
	close(blocked)
}

func TestFailingJobNeverAbortsSchedule(t *testing.T) {
	s := newTestScheduler(t)

	var runs int64
	_, err := s.AddInterval("flaky", 10*time.Millisecond, JobFunc(func(context.Context) error {
		n := atomic.AddInt64(&runs, 1)
		if n%2 == 1 {
			return errors.New("boom")
		}
		return nil
	}))
	require.NoError(t, err)

	waitForAtLeast(t, &runs, 4, 2*time.Second)
}

func TestPanickingJobIsContained(t *testing.T) {
	s := newTestScheduler(t)

	var runs int64
	_, err := s.AddInterval("panicky", 10*time.Millisecond, SyncJob(func() error {
		atomic.AddInt64(&runs, 1)
		panic("kaboom")
	}))
	require.NoError(t, err)

	waitForAtLeast(t, &runs, 3, 2*time.Second)
}

func TestAddCronRejectsBadExpressions(t *testing.T) {
	s := newTestScheduler(t)

	job := JobFunc(func(context.Context) error { return nil })

	_, err := s.AddCron("", "not a cron", job)
	require.Error(t, err)
	var pe *cron.ParseError
	assert.ErrorAs(t, err, &pe)

	// Parses fine but can never fire: rejected at registration, not at run
	// time.
	_, err = s.AddCron("", "0 0 31 2 *", job)
	require.ErrorIs(t, err, cron.ErrUnsatisfiable)
}

func TestAddCronSetsNextRun(t *testing.T) {
	s := newTestScheduler(t)

	id, err := s.AddCron("daily", "0 9 * * *", JobFunc(func(context.Context) error { return nil }))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, ok := s.Status(id)
		return ok && !st.NextRun.IsZero()
	}, 2*time.Second, 5*time.Millisecond)

	st, _ := s.Status(id)
	assert.True(t, st.NextRun.After(time.Now()))
	assert.Equal(t, 9, st.NextRun.Hour())
	assert.Equal(t, 0, st.NextRun.Minute())
}

func TestAddRandomMinuteDelegatesToCron(t *testing.T) {
	s := newTestScheduler(t)

	id, err := s.AddRandomMinute("spread", 0, 5, "", JobFunc(func(context.Context) error { return nil }))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, ok := s.Status(id)
		return ok && !st.NextRun.IsZero()
	}, 2*time.Second, 5*time.Millisecond)

	st, _ := s.Status(id)
	assert.LessOrEqual(t, st.NextRun.Minute(), 5)

	// Bad minute bounds surface as parse errors.
	_, err = s.AddRandomMinute("", 0, 75, "*", JobFunc(func(context.Context) error { return nil }))
	require.Error(t, err)
}

func TestAddOnceInFutureRunsExactlyOnce(t *testing.T) {
	s := newTestScheduler(t)

	var runs int64
	id, err := s.AddOnce("shot", time.Now().Add(30*time.Millisecond), JobFunc(func(context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, ok := s.Status(id)
		return ok && st.State == StateDone
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&runs))

	// It stays in the registry afterwards.
	_, ok := s.Task(id)
	assert.True(t, ok)
}

func TestAddOnceInPastIsDropped(t *testing.T) {
	s := newTestScheduler(t)

	var runs int64
	id, err := s.AddOnce("stale", time.Now().Add(-time.Minute), JobFunc(func(context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, ok := s.Status(id)
		return ok && st.State == StateExpired
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&runs))
}

func TestCancelBeforeOnceFires(t *testing.T) {
	s := newTestScheduler(t)

	var runs int64
	id, err := s.AddOnce("doomed", time.Now().Add(time.Hour), JobFunc(func(context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}))
	require.NoError(t, err)

	require.True(t, s.Cancel(id))
	assert.False(t, s.Cancel("no-such-task"))

	// The cancel force-wakes the hour-long wait; the goroutine exits almost
	// immediately instead of sleeping it out.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.StopAll()
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, int64(0), atomic.LoadInt64(&runs))

	st, ok := s.Status(id)
	require.True(t, ok)
	assert.True(t, st.Cancelled)
	assert.Equal(t, StateCancelled, st.State)
}

func TestStopAllIsIdempotent(t *testing.T) {
	s := New(logx.Nop())

	_, err := s.AddInterval("a", 10*time.Millisecond, JobFunc(func(context.Context) error { return nil }))
	require.NoError(t, err)
	_, err = s.AddCron("b", "* * * * *", JobFunc(func(context.Context) error { return nil }))
	require.NoError(t, err)

	s.StopAll()
	s.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	for id, task := range s.Tasks() {
		assert.True(t, task.Status().Cancelled, "task %s not cancelled", id)
		assert.NotEqual(t, StateRunning, task.Status().State)
	}

	// No registrations after shutdown.
	_, err = s.AddInterval("late", time.Second, JobFunc(func(context.Context) error { return nil }))
	require.ErrorIs(t, err, ErrStopped)
}

func TestDuplicateTaskID(t *testing.T) {
	s := newTestScheduler(t)

	job := JobFunc(func(context.Context) error { return nil })
	_, err := s.AddInterval("dup", time.Hour, job)
	require.NoError(t, err)
	_, err = s.AddCron("dup", "* * * * *", job)
	require.Error(t, err)
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	s := newTestScheduler(t)

	job := JobFunc(func(context.Context) error { return nil })
	seen := map[string]struct{}{}
	for i := 0; i < 10; i++ {
		id, err := s.AddInterval("", time.Hour, job)
		require.NoError(t, err)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate generated id %q", id)
		}
		seen[id] = struct{}{}
	}
	assert.Len(t, s.Tasks(), 10)
}

func TestRemoveFreesTaskID(t *testing.T) {
	s := newTestScheduler(t)

	job := JobFunc(func(context.Context) error { return nil })
	_, err := s.AddCron("hourly", "0 * * * *", job)
	require.NoError(t, err)

	require.True(t, s.Remove("hourly"))
	_, ok := s.Status("hourly")
	assert.False(t, ok)

	// The id is reusable immediately; cancelled tasks linger only when
	// cancelled via Cancel, not Remove.
	_, err = s.AddCron("hourly", "30 * * * *", job)
	require.NoError(t, err)

	assert.False(t, s.Remove("unknown"))
}

func TestRemoveWakesSleepingTask(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.AddOnce("later", time.Now().Add(time.Hour), JobFunc(func(context.Context) error {
		t.Error("job ran after removal")
		return nil
	}))
	require.NoError(t, err)

	require.True(t, s.Remove("later"))

	done := make(chan struct{})
	go func() {
		s.Wait(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("removed task's goroutine did not exit")
	}
}
