// Package backend provides the two worker acquisition strategies of the
// parallel map engine: fork pools, whose workers share the caller's
// state by construction with copy-on-write write semantics, and
// isolated pools, whose workers see only bindings explicitly exported
// to them before dispatch.
package backend

import (
	"fmt"
	"runtime"
	"sync"
)

// Kind selects a worker acquisition strategy.
type Kind int

const (
	// Fork spawns workers from the caller's state. Every caller-side
	// binding is visible without an export step. Only available on
	// platforms supporting address-space duplication.
	Fork Kind = iota + 1

	// Isolated starts long-lived message-passing workers that hold no
	// implicit state. Bindings must be shipped with Export before a
	// task may resolve them.
	Isolated
)

func (k Kind) String() string {
	switch k {
	case Fork:
		return "fork"
	case Isolated:
		return "isolated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Pool owns a fixed set of workers created under one strategy.
type Pool struct {
	kind Kind
	size int
	stop chan struct{}

	mu      sync.Mutex
	workers []*Worker
	exports map[string]any // isolated: canonical export snapshot
	shared  map[string]any // fork: caller state, referenced not copied
	closed  bool

	shutdownOnce sync.Once
}

// New acquires a pool of workerCount workers under the given strategy.
//
// callerState is the caller's named state. Fork workers see it by
// construction; isolated workers ignore it until it is shipped with
// Export. Requesting Fork on a platform without support fails with
// *UnsupportedBackendError before any worker is started.
func New(kind Kind, workerCount int, callerState map[string]any) (*Pool, error) {
	if workerCount < 1 {
		workerCount = 1
	}

	switch kind {
	case Fork:
		if !forkSupported() {
			return nil, &UnsupportedBackendError{Kind: kind, OS: runtime.GOOS}
		}
	case Isolated:
	default:
		return nil, fmt.Errorf("backend: unknown kind %d", int(kind))
	}

	p := &Pool{
		kind:    kind,
		size:    workerCount,
		stop:    make(chan struct{}),
		exports: make(map[string]any),
	}
	if kind == Fork {
		p.shared = callerState
	}

	for i := 0; i < workerCount; i++ {
		p.workers = append(p.workers, newWorker(p.workerEnv(), p.stop))
	}
	return p, nil
}

// NewSequential builds a single-worker pool sharing the caller's state
// directly. It is the explicit fallback for platforms where the fork
// backend is unavailable: one worker in the calling address space is
// trivially sequential, so no duplication support is needed.
func NewSequential(callerState map[string]any) *Pool {
	p := &Pool{
		kind:    Fork,
		size:    1,
		stop:    make(chan struct{}),
		exports: make(map[string]any),
		shared:  callerState,
	}
	p.workers = append(p.workers, newWorker(p.workerEnv(), p.stop))
	return p
}

func (p *Pool) workerEnv() *Env {
	if p.kind == Fork {
		return newEnv(p.shared)
	}
	return newEnv(copyBindings(p.exports))
}

// Kind returns the pool's acquisition strategy.
func (p *Pool) Kind() Kind { return p.kind }

// Size returns the worker count the pool was acquired with.
func (p *Pool) Size() int { return p.size }

// Workers returns the current worker handles.
func (p *Pool) Workers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws := make([]*Worker, len(p.workers))
	copy(ws, p.workers)
	return ws
}

// Export ships named bindings to every worker. Values are snapshotted
// at export time; later caller-side mutation of the originals is not
// reflected. Re-exporting is idempotent, last write wins per name.
//
// Export is only valid for isolated pools and must not run while items
// are in flight; the engine serializes it against runs.
func (p *Pool) Export(bindings map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.kind != Isolated {
		return ErrExportUnsupported
	}

	for name, v := range bindings {
		p.exports[name] = v
	}
	for _, w := range p.workers {
		for name, v := range bindings {
			w.env.bind(name, v)
		}
	}
	return nil
}

// Recycle tears down a dead or abandoned worker and, for isolated
// pools, starts a replacement carrying the current export snapshot so
// one slow or crashed task cannot permanently shrink pool capacity.
//
// Fork workers are not replaced: the returned handle is nil and the
// pool runs short until Restart.
func (p *Pool) Recycle(w *Worker) (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	w.dead.Store(true)

	if p.kind == Fork {
		p.workers = removeWorker(p.workers, w)
		return nil, nil
	}

	replacement := newWorker(newEnv(copyBindings(p.exports)), p.stop)
	replaced := false
	for i, old := range p.workers {
		if old == w {
			p.workers[i] = replacement
			replaced = true
			break
		}
	}
	if !replaced {
		p.workers = append(p.workers, replacement)
	}
	return replacement, nil
}

// Restart respawns workers lost to crashes or timeouts until the pool
// is back at its acquired size. No-op for pools already at capacity.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	alive := p.workers[:0]
	for _, w := range p.workers {
		if !w.dead.Load() {
			alive = append(alive, w)
		}
	}
	p.workers = alive

	for len(p.workers) < p.size {
		p.workers = append(p.workers, newWorker(p.workerEnv(), p.stop))
	}
	return nil
}

// Shutdown releases all worker handles. Safe to call multiple times.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.closed = true
		close(p.stop)
		p.workers = nil
	})
}

func removeWorker(ws []*Worker, victim *Worker) []*Worker {
	out := ws[:0]
	for _, w := range ws {
		if w != victim {
			out = append(out, w)
		}
	}
	return out
}
