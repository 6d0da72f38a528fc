package parmap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erichare/parallel/internal/backend"
	"github.com/erichare/parallel/internal/backoff"
)

// dispatcher fans items out to the pool and keeps workerCount items in
// flight while queue items remain. One slot goroutine is run per worker
// handle; each pulls the next unclaimed item FIFO, executes it on its
// worker, records the outcome, and immediately becomes eligible for the
// next item. Dispatch order follows submission order; completion order
// is unconstrained.
type dispatcher[T any, R any] struct {
	conf  *config
	pool  *backend.Pool
	coll  *collector[R]
	fn    TaskFunc[T, R]
	quit  <-chan struct{}
	retry backoff.Strategy

	live     atomic.Int64
	lost     chan struct{}
	lostOnce sync.Once
	down     chan struct{}
	downOnce sync.Once
}

func newDispatcher[T, R any](
	conf *config,
	pool *backend.Pool,
	coll *collector[R],
	fn TaskFunc[T, R],
	quit <-chan struct{},
) *dispatcher[T, R] {
	var retry backoff.Strategy
	if conf.retryJitter > 0 {
		retry = backoff.Jittered(conf.retryDelay, 5*time.Second, conf.retryJitter)
	} else {
		retry = backoff.Exponential(conf.retryDelay, 5*time.Second)
	}

	return &dispatcher[T, R]{
		conf:  conf,
		pool:  pool,
		coll:  coll,
		fn:    fn,
		quit:  quit,
		retry: retry,
		lost:  make(chan struct{}),
		down:  make(chan struct{}),
	}
}

// run blocks until every item has been resolved or the run aborted.
// The returned error is the abort cause, nil for a clean finish or a
// cooperative cancel.
func (d *dispatcher[T, R]) run(ctx context.Context, items []T) error {
	workers := d.pool.Workers()
	if len(workers) == 0 {
		return ErrAllWorkersLost
	}

	d.live.Store(int64(len(workers)))
	if d.conf.metrics != nil {
		d.conf.metrics.WorkersLive.Set(float64(len(workers)))
	}

	// Unbuffered: an item is claimed only when a worker goes idle.
	feed := make(chan workItem[T])

	var g errgroup.Group
	g.Go(func() error {
		return d.feed(ctx, items, feed)
	})
	for _, w := range workers {
		w := w
		g.Go(func() error {
			d.slot(ctx, w, feed)
			return nil
		})
	}
	err := g.Wait()

	// The gauge tracks in-run capacity only; a stale value between runs
	// would misreport a quiet engine as busy.
	if d.conf.metrics != nil {
		d.conf.metrics.WorkersLive.Set(0)
	}
	return err
}

func (d *dispatcher[T, R]) feed(ctx context.Context, items []T, feed chan<- workItem[T]) error {
	defer close(feed)
	for i, payload := range items {
		select {
		case feed <- workItem[T]{index: i, payload: payload}:
		case <-d.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-d.lost:
			return ErrAllWorkersLost
		case <-d.down:
			return ErrEngineClosed
		}
	}
	return nil
}

func (d *dispatcher[T, R]) slot(ctx context.Context, w *backend.Worker, feed <-chan workItem[T]) {
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-feed:
			if !ok {
				return
			}
			if w = d.execute(ctx, w, it); w == nil {
				d.workerLost()
				return
			}
		}
	}
}

// execute resolves a single item on the given worker, including retry,
// timeout, and crash handling. It returns the worker to use for the
// next item: the same handle, a recycled replacement, or nil when the
// worker was lost and not replaced.
func (d *dispatcher[T, R]) execute(ctx context.Context, w *backend.Worker, it workItem[T]) *backend.Worker {
	var zero R
	maxAttempts := d.conf.retries + 1

	for attempt := 0; ; attempt++ {
		if d.conf.rateLimiter != nil {
			if err := d.conf.rateLimiter.Wait(ctx); err != nil {
				return w // run is ending; item stays unfinished
			}
		}

		if d.conf.metrics != nil {
			d.conf.metrics.ItemsDispatched.Inc()
		}
		d.conf.logger.WithFields(map[string]any{
			"index":  it.index,
			"worker": w.ID(),
		}).Debug("dispatching item")

		itemCtx := ctx
		cancel := context.CancelFunc(func() {})
		if d.conf.perItemTimeout > 0 {
			itemCtx, cancel = context.WithTimeout(ctx, d.conf.perItemTimeout)
		}

		var value R
		var taskErr error
		start := time.Now()
		invokeErr := w.Invoke(itemCtx, func(env *Env) {
			value, taskErr = d.fn(itemCtx, env, it.payload)
		})
		cancel()

		if d.conf.metrics != nil {
			d.conf.metrics.ItemDuration.Observe(time.Since(start).Seconds())
		}

		switch {
		case invokeErr == nil && taskErr == nil:
			d.complete(it.index, value, nil)
			return w

		case invokeErr == nil:
			// The task itself failed. Missing bindings are
			// deterministic, so retrying them is pointless.
			var mbe *MissingBindingError
			if errors.As(taskErr, &mbe) || attempt >= maxAttempts-1 {
				d.complete(it.index, zero, taskErr)
				return w
			}
			d.conf.logger.WithField("index", it.index).WithError(taskErr).Debug("retrying item")
			if !d.pause(ctx, d.retry.NextDelay(attempt)) {
				d.complete(it.index, zero, taskErr)
				return w
			}

		case errors.Is(invokeErr, context.DeadlineExceeded) && ctx.Err() == nil:
			// Per-item deadline, not run cancellation. The worker may
			// still be chewing on the item; recycle it so one slow task
			// cannot permanently reduce pool capacity.
			d.complete(it.index, zero, &TimedOutError{Index: it.index, Timeout: d.conf.perItemTimeout})
			return d.replace(w, "timeout")

		case ctx.Err() != nil:
			// Hard cancel or caller context expired mid-item. The item
			// never completed; it is reported as unfinished.
			return w

		default:
			var crash *WorkerCrashedError
			if !errors.As(invokeErr, &crash) {
				if errors.Is(invokeErr, backend.ErrPoolClosed) {
					// Pool shut down mid-run. The item never executed, so
					// its slot stays empty and it is reported as
					// unfinished, not as a failure.
					d.downOnce.Do(func() { close(d.down) })
					return w
				}
				// Handle already dead; nothing more this slot can do.
				d.complete(it.index, zero, invokeErr)
				return w
			}

			d.conf.logger.WithFields(map[string]any{
				"index":  it.index,
				"worker": w.ID(),
			}).Warn("worker crashed mid-item")

			replacement := d.replace(w, "crash")
			if replacement != nil && attempt < maxAttempts-1 {
				w = replacement
				if !d.pause(ctx, d.retry.NextDelay(attempt)) {
					d.complete(it.index, zero, invokeErr)
					return w
				}
				continue
			}
			d.complete(it.index, zero, invokeErr)
			return replacement
		}
	}
}

func (d *dispatcher[T, R]) complete(index int, value R, err error) {
	d.coll.collect(index, value, err)
	if d.conf.metrics != nil {
		if err != nil {
			d.conf.metrics.ItemsFailed.Inc()
		} else {
			d.conf.metrics.ItemsCompleted.Inc()
		}
	}
	// Fired strictly after the slot is populated. Callbacks for
	// different items may run concurrently; the reporter serializes its
	// own side effects.
	if d.conf.onProgress != nil {
		d.conf.onProgress(index, err)
	}
}

// replace recycles a dead or abandoned worker. Fork workers are not
// replaced until the pool restarts, so the slot winds down.
func (d *dispatcher[T, R]) replace(w *backend.Worker, reason string) *backend.Worker {
	replacement, err := d.pool.Recycle(w)
	if err != nil || replacement == nil {
		d.conf.logger.WithFields(map[string]any{
			"worker": w.ID(),
			"reason": reason,
		}).Warn("worker lost and not replaced")
		return nil
	}
	d.conf.logger.WithFields(map[string]any{
		"worker":      w.ID(),
		"replacement": replacement.ID(),
		"reason":      reason,
	}).Debug("worker recycled")
	return replacement
}

func (d *dispatcher[T, R]) workerLost() {
	if d.conf.metrics != nil {
		d.conf.metrics.WorkersLive.Dec()
	}
	if d.live.Add(-1) == 0 {
		d.lostOnce.Do(func() { close(d.lost) })
	}
}

// pause waits out a retry delay, bailing early when the run is ending.
func (d *dispatcher[T, R]) pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-d.quit:
		return false
	}
}
