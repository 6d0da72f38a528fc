// Package parmap is a parallel map execution engine: it distributes a
// sequence of independent computations across a pool of workers,
// assembles the results in submission order, and optionally reports
// progress as items complete.
//
// # Basic Usage
//
//	ctx := context.Background()
//	outcomes, err := parmap.Run(ctx, []float64{4, 9, 16, 25},
//	    func(ctx context.Context, env *parmap.Env, x float64) (float64, error) {
//	        return math.Sqrt(x), nil
//	    },
//	    parmap.WithWorkerCount(2),
//	)
//	// outcomes[i].Value == sqrt of items[i], in input order
//
// # Backends
//
// Two worker acquisition strategies are supported:
//
//   - BackendFork: workers are spawned from the caller's state and see
//     every binding without an export step. Worker-side writes are
//     copy-on-write, private to that worker. Only available on
//     platforms with address-space duplication; elsewhere New fails
//     with *UnsupportedBackendError unless WithSequentialFallback
//     explicitly opts into a single-worker degrade.
//   - BackendIsolated (default): long-lived message-passing workers
//     with no implicit access to caller-side state. Bindings must be
//     shipped with WithBindings or Engine.Export before a task can
//     resolve them; an unexported name fails that item with a
//     *MissingBindingError and nothing else.
//
// # Ordering
//
// Dispatch follows submission order, completion order is unconstrained,
// and the returned sequence always matches submission order. Completion
// order is a performance detail callers never observe in the result.
//
// # Progress Reporting
//
// A ProgressFunc attached with WithProgress fires exactly once per
// completed item, after that item's slot is populated. Reporting is
// opt-in and free when absent. ProgressBar adapts a terminal progress
// bar to this interface:
//
//	outcomes, err := parmap.Run(ctx, items, fn,
//	    parmap.WithProgress(parmap.ProgressBar(len(items), "crunching")))
//
// # Failure Semantics
//
// Per-item failures (task errors, missing bindings, crashes, timeouts)
// are recorded in that item's Outcome and never stop sibling items. The
// outcome slice always has length N. Run-level failures (unsupported
// backend, every worker lost, cancellation) return an *AbortError
// listing the indices that never ran, so "failed" and "never ran" stay
// distinguishable.
//
// # Configuration Options
//
//   - WithBackend(b): choose BackendFork or BackendIsolated
//   - WithWorkerCount(n): pool size, uncapped (default: AvailableParallelism)
//   - WithBindings(m): caller state / initial export set
//   - WithProgress(fn): per-item completion callback
//   - WithPerItemTimeout(d): per-item deadline, recycles the worker
//   - WithRetryPolicy(n, d): retries with exponential backoff
//   - WithCancelPolicy(p): cooperative drain or hard stop
//   - WithRateLimit(rps, burst): token-bucket throughput cap
//   - WithLogger(l), WithMetrics(m): observability hooks
package parmap
