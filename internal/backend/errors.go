package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrExportUnsupported is returned when bindings are exported to a
	// pool whose workers already share the caller's state.
	ErrExportUnsupported = errors.New("backend: exports are only valid for isolated pools")

	// ErrPoolClosed is returned for operations on a pool after Shutdown.
	ErrPoolClosed = errors.New("backend: pool is shut down")

	// ErrWorkerDead is returned when a task is handed to a worker that
	// already crashed or was abandoned.
	ErrWorkerDead = errors.New("backend: worker is dead")
)

// UnsupportedBackendError reports that the requested backend cannot be
// honored on the current platform. It is surfaced at pool creation,
// before any work is dispatched.
type UnsupportedBackendError struct {
	Kind Kind
	OS   string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("backend: %s backend is not supported on %s", e.Kind, e.OS)
}

// MissingBindingError reports that a task resolved a name that was never
// exported to its worker. It fails only the item that referenced it.
type MissingBindingError struct {
	Name string
}

func (e *MissingBindingError) Error() string {
	return fmt.Sprintf("backend: binding %q is not available to this worker", e.Name)
}

// WorkerCrashedError reports that a worker died while executing an item.
// Panic holds the recovered value and Stack the captured stack trace.
type WorkerCrashedError struct {
	WorkerID string
	Panic    any
	Stack    []byte
}

func (e *WorkerCrashedError) Error() string {
	return fmt.Sprintf("backend: worker %s crashed: %v", e.WorkerID, e.Panic)
}
