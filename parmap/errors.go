package parmap

import (
	"errors"
	"fmt"
	"time"

	"github.com/erichare/parallel/internal/backend"
)

// UnsupportedBackendError reports that the requested backend cannot be
// honored on this platform. It is surfaced by New, before any item
// executes.
type UnsupportedBackendError = backend.UnsupportedBackendError

// MissingBindingError reports that a task referenced a name never
// exported to its worker. It fails only the referencing item.
type MissingBindingError = backend.MissingBindingError

// WorkerCrashedError reports that a worker died mid-item.
type WorkerCrashedError = backend.WorkerCrashedError

// ErrExportUnsupported is returned when bindings are exported to a fork
// engine, whose workers already see all caller-side state.
var ErrExportUnsupported = backend.ErrExportUnsupported

var (
	// ErrAllWorkersLost aborts a run once no live worker remains.
	ErrAllWorkersLost = errors.New("parmap: all workers lost")

	// ErrEngineClosed is returned for operations after Shutdown.
	ErrEngineClosed = errors.New("parmap: engine is shut down")

	// ErrRunInProgress is returned when an operation conflicts with an
	// active run, including starting a second run on the same engine.
	ErrRunInProgress = errors.New("parmap: a run is already in progress")

	// ErrRunCanceled is the abort cause when Cancel stopped a run.
	ErrRunCanceled = errors.New("parmap: run canceled")
)

// TimedOutError marks an item whose per-item deadline expired before
// the task returned. The task's own eventual outcome is discarded.
type TimedOutError struct {
	Index   int
	Timeout time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("parmap: item %d exceeded per-item timeout of %s", e.Index, e.Timeout)
}

// AbortError is returned by Run when the run ended before every item
// completed. The outcome slice returned alongside it still has length N;
// Unfinished lists the indices that never ran, so callers can tell
// "item failed" apart from "item never ran".
type AbortError struct {
	Unfinished []int
	Cause      error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("parmap: run aborted with %d unfinished items: %v", len(e.Unfinished), e.Cause)
}

func (e *AbortError) Unwrap() error { return e.Cause }
