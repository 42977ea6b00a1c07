// Package task implements taskdeck's per-task scheduling core.
//
// # Overview
//
// A Task is one independent periodic job with a two-phase timing schedule:
// a one-time initial delay before the first automatic execution, then a
// recurring regular delay between subsequent ones. The short initial delay
// lets a freshly started roster show activity immediately even when the
// steady-state interval is measured in days.
//
// # Concurrency and overlap
//
// Each running task owns exactly one loop goroutine for its whole running
// lifetime; ExecuteManually spawns a short-lived goroutine per call. At most
// one execution of a task's work body (automatic or manual) is in flight at
// any instant, enforced by a compare-and-swap on the executing flag. The
// loser of a race does not queue: a manual request logs a skip, an automatic
// tick skips silently at debug level. No ordering is guaranteed between
// different tasks.
//
// The running/executing/hasRunInitial flags are atomics so a status poller
// can read them at sub-second cadence without locks.
//
// # Cancellation
//
// Stop cancels the loop context and waits up to StopGracePeriod for the loop
// to unwind; a work body interrupted mid-flight logs a distinct cancelled
// outcome. Manual executions use a standalone context and are deliberately
// not cancelled by Stop.
//
// # Errors
//
// Work-body failures and panics degrade to logged errors and never
// propagate; Start/Stop/ExecuteManually return nothing. The log stream and
// the event bus are the observable channels.
package task
