package parmap

import (
	"context"
	"errors"
	"sync"

	"github.com/erichare/parallel/internal/backend"
)

// Engine is a reusable parallel map executor bound to one worker pool.
// Create it with New, optionally ship bindings with Export, then call
// Run one batch at a time. The engine is stateless between runs.
//
// Type parameters:
//   - T: The payload type
//   - R: The result type
type Engine[T any, R any] struct {
	conf *config
	pool *backend.Pool

	mu        sync.Mutex
	running   bool
	closed    bool
	runQuit   chan struct{}
	runCancel context.CancelFunc
}

// New acquires a worker pool and returns an engine ready to run.
//
// Requesting the fork backend on a platform without address-space
// duplication fails here with *UnsupportedBackendError, before any item
// can execute, unless WithSequentialFallback was given. For isolated
// engines any bindings supplied via WithBindings are exported to every
// worker now, before the first dispatch.
func New[T any, R any](opts ...Option) (*Engine[T, R], error) {
	conf := newConfig(opts...)

	pool, err := backend.New(conf.backend, conf.workerCount, conf.bindings)
	if err != nil {
		var ube *UnsupportedBackendError
		if conf.seqFallback && errors.As(err, &ube) {
			conf.logger.WithField("backend", conf.backend.String()).
				Warn("backend unsupported on this platform, degrading to a sequential pool of one worker")
			pool = backend.NewSequential(conf.bindings)
		} else {
			return nil, err
		}
	}

	if pool.Kind() == backend.Isolated && len(conf.bindings) > 0 {
		if err := pool.Export(conf.bindings); err != nil {
			pool.Shutdown()
			return nil, err
		}
	}

	if par := AvailableParallelism(); conf.workerCount > oversubscribeWarnFactor*par {
		conf.logger.WithFields(map[string]any{
			"workers":     conf.workerCount,
			"parallelism": par,
		}).Warn("worker count far exceeds available parallelism; expect context-switch overhead, not speedup")
	}

	return &Engine[T, R]{conf: conf, pool: pool}, nil
}

// Run executes fn once per item and blocks until every item has an
// outcome or the run aborts.
//
// The returned slice always has length len(items), in submission order
// regardless of completion order. Each slot carries either the task's
// value or its error; per-item failures never stop sibling items. A
// non-nil error is always an *AbortError naming the indices that never
// ran.
func (e *Engine[T, R]) Run(ctx context.Context, items []T, fn TaskFunc[T, R]) ([]Outcome[R], error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	if e.running {
		e.mu.Unlock()
		return nil, ErrRunInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	quit := make(chan struct{})
	e.running = true
	e.runQuit = quit
	e.runCancel = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.runQuit = nil
		e.runCancel = nil
		e.mu.Unlock()
	}()

	if len(items) == 0 {
		return []Outcome[R]{}, nil
	}

	coll := newCollector[R](len(items))
	d := newDispatcher(e.conf, e.pool, coll, fn, quit)
	cause := d.run(runCtx, items)

	outcomes, unfinished := coll.finalize()
	if len(unfinished) == 0 {
		return outcomes, nil
	}

	if cause == nil {
		select {
		case <-quit:
			cause = ErrRunCanceled
		default:
			cause = ctx.Err()
			if cause == nil {
				cause = ErrRunCanceled
			}
		}
	} else if errors.Is(cause, context.Canceled) && ctx.Err() == nil {
		// The run-internal context was canceled by Cancel under the hard
		// policy, not by the caller. Both policies report the same cause.
		cause = ErrRunCanceled
	}
	return outcomes, &AbortError{Unfinished: unfinished, Cause: cause}
}

// Export ships named bindings to every worker, snapshotting their
// values now. Re-exporting a name is idempotent: last write wins. Only
// valid for isolated engines, and only between runs.
func (e *Engine[T, R]) Export(bindings map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.running {
		return ErrRunInProgress
	}
	return e.pool.Export(bindings)
}

// Cancel stops assigning new items to workers. Under the cooperative
// policy (default) in-flight items finish naturally; under the hard
// policy their contexts are canceled as well. Safe to call from any
// goroutine, including a progress callback; a no-op when no run is
// active.
func (e *Engine[T, R]) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runQuit == nil {
		return
	}
	select {
	case <-e.runQuit:
	default:
		close(e.runQuit)
	}
	if e.conf.cancelPolicy == CancelHard && e.runCancel != nil {
		e.runCancel()
	}
}

// Restart respawns workers lost to crashes, timeouts, or hard cancels,
// bringing the pool back to its configured size. This is the explicit
// restart after which fork workers are replaced.
func (e *Engine[T, R]) Restart() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.running {
		return ErrRunInProgress
	}
	return e.pool.Restart()
}

// Shutdown releases all worker handles. Safe to call multiple times;
// every call after the first is a no-op.
func (e *Engine[T, R]) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.pool.Shutdown()
	return nil
}

// Run is the one-shot entry point: it acquires a pool, maps fn over
// items, and releases the pool before returning.
//
// Example:
//
//	outcomes, err := parmap.Run(ctx, []float64{4, 9, 16, 25},
//	    func(ctx context.Context, env *parmap.Env, x float64) (float64, error) {
//	        return math.Sqrt(x), nil
//	    },
//	    parmap.WithWorkerCount(2),
//	)
func Run[T any, R any](ctx context.Context, items []T, fn TaskFunc[T, R], opts ...Option) ([]Outcome[R], error) {
	e, err := New[T, R](opts...)
	if err != nil {
		return nil, err
	}
	defer e.Shutdown()
	return e.Run(ctx, items, fn)
}
