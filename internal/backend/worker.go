package backend

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
)

// Thunk is one unit of work bound to a worker's environment. The
// enclosing engine captures the payload and records the outcome itself,
// so the backend stays agnostic of task and result types.
type Thunk func(env *Env)

// Worker is a single long-lived execution unit. Work is handed to it by
// message passing; the worker goroutine executes thunks one at a time
// against its private Env.
type Worker struct {
	id   string
	in   chan *invocation
	stop chan struct{}
	env  *Env
	dead atomic.Bool
}

type invocation struct {
	run   Thunk
	done  chan struct{}
	crash *WorkerCrashedError
}

func newWorker(env *Env, stop chan struct{}) *Worker {
	w := &Worker{
		id:   uuid.NewString(),
		in:   make(chan *invocation),
		stop: stop,
		env:  env,
	}
	go w.loop()
	return w
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() string { return w.id }

func (w *Worker) loop() {
	for {
		select {
		case <-w.stop:
			return
		case inv := <-w.in:
			if !w.execute(inv) {
				// A panic killed this worker. The goroutine exits and
				// the pool decides whether a replacement is started.
				return
			}
		}
	}
}

func (w *Worker) execute(inv *invocation) (ok bool) {
	defer close(inv.done)
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			inv.crash = &WorkerCrashedError{WorkerID: w.id, Panic: r, Stack: buf[:n]}
			w.dead.Store(true)
			ok = false
		}
	}()
	inv.run(w.env)
	return true
}

// Invoke hands one thunk to the worker and waits for it to finish.
//
// It returns nil on completion, a *WorkerCrashedError if the thunk
// panicked (the worker is dead afterwards), or the context error if ctx
// expired first. In the latter case the thunk may still be running; the
// worker is marked dead and must be recycled, since its next message
// would queue behind a possibly hung item.
func (w *Worker) Invoke(ctx context.Context, run Thunk) error {
	if w.dead.Load() {
		return ErrWorkerDead
	}

	inv := &invocation{run: run, done: make(chan struct{})}

	select {
	case w.in <- inv:
	case <-w.stop:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-inv.done:
		if inv.crash != nil {
			return inv.crash
		}
		return nil
	case <-ctx.Done():
		w.dead.Store(true)
		return ctx.Err()
	}
}
