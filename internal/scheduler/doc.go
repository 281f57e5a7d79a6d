// Package scheduler drives many independently scheduled units of work
// concurrently. Each registered task runs in its own goroutine, so one slow or
// misbehaving job never blocks another, and a single task's runs are strictly
// serialized: a task never re-enters itself.
//
// Four registration flavors exist: fixed interval, cron expression, one-shot
// at an instant, and random-minute (a cron convenience that spreads many
// periodic collectors across a minute window so they don't all hit a shared
// downstream at the same instant).
//
// Job errors and panics are caught, logged with the task id, and swallowed;
// the schedule continues as if the run had succeeded. Cancellation is
// cooperative with a force-wake: the cancelled flag is checked at every loop
// boundary and any in-progress wait is interrupted immediately.
package scheduler
