package parmap

import (
	"context"

	"github.com/erichare/parallel/internal/backend"
)

// TaskFunc processes one payload and produces a result. It must be
// safely invocable concurrently by multiple workers: any state beyond
// the payload has to come from env, never from hidden mutable globals.
//
// Type parameters:
//   - T: The payload type
//   - R: The result type
type TaskFunc[T any, R any] func(ctx context.Context, env *Env, payload T) (R, error)

// Env is the set of named bindings visible to the worker executing a
// task. Fork workers see all caller-side state; isolated workers see
// only what was explicitly exported.
type Env = backend.Env

// Outcome is the per-index container holding an item's eventual result.
// Exactly one of Value and Err is meaningful when the item completed;
// for items that never ran (aborted run) Err is nil and the index is
// listed in the AbortError returned alongside the outcomes.
//
// Fields:
//   - Index: The item's position in the original submission
//   - Value: The result produced by the task (only valid if Err is nil)
//   - Err: The task's own error, or one of the engine's typed errors
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// Ok reports whether the item completed successfully.
func (o Outcome[R]) Ok() bool { return o.Err == nil }

// Backend selects the worker acquisition strategy.
type Backend = backend.Kind

const (
	// BackendFork duplicates the caller's state for each worker.
	// Copy-on-write: worker mutations are invisible to siblings and to
	// the caller. Unsupported platforms fail at engine creation.
	BackendFork Backend = backend.Fork

	// BackendIsolated starts independent message-passing workers that
	// only see explicitly exported bindings. Works everywhere.
	BackendIsolated Backend = backend.Isolated
)

// CancelPolicy controls what happens to in-flight items when a run is
// canceled.
type CancelPolicy int

const (
	// CancelCooperative stops assigning new items and lets in-flight
	// items finish naturally.
	CancelCooperative CancelPolicy = iota

	// CancelHard additionally cancels the context of in-flight items.
	// Workers abandoned mid-item are treated as lost.
	CancelHard
)

func (p CancelPolicy) String() string {
	if p == CancelHard {
		return "hard"
	}
	return "cooperative"
}

// ProgressFunc is notified exactly once per completed item, after the
// item's outcome slot is populated. Invocations may arrive concurrently
// and in completion order, which is not submission order; the callback
// must serialize its own side effects.
type ProgressFunc func(index int, err error)

type workItem[T any] struct {
	index   int
	payload T
}
