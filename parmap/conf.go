package parmap

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Workers requested beyond this multiple of AvailableParallelism draw a
// warning. Oversubscription is never an error, only slower.
const oversubscribeWarnFactor = 4

// Option is a functional option for configuring an engine.
type Option func(*config)

type config struct {
	backend        Backend
	workerCount    int
	bindings       map[string]any
	onProgress     ProgressFunc
	perItemTimeout time.Duration
	retries        int
	retryDelay     time.Duration
	retryJitter    float64
	cancelPolicy   CancelPolicy
	rateLimiter    *rate.Limiter
	logger         logrus.FieldLogger
	metrics        *Metrics
	seqFallback    bool
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		backend:     BackendIsolated,
		workerCount: AvailableParallelism(),
		retryDelay:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.logger = l
	}
	return cfg
}

// WithBackend selects the worker acquisition strategy.
// Default: BackendIsolated, which works on every platform.
func WithBackend(b Backend) Option {
	return func(cfg *config) {
		cfg.backend = b
	}
}

// WithWorkerCount sets the number of workers. There is no ceiling:
// counts above the platform's available parallelism are accepted and
// merely degrade throughput. If not specified, defaults to
// AvailableParallelism().
func WithWorkerCount(count int) Option {
	return func(cfg *config) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithBindings supplies the caller's named state. Fork workers see it
// by construction; for isolated engines it is exported to every worker
// before the first dispatch, snapshotted at that point.
func WithBindings(bindings map[string]any) Option {
	return func(cfg *config) {
		cfg.bindings = bindings
	}
}

// WithProgress attaches a progress callback fired once per completed
// item. Reporting is strictly opt-in and adds no overhead when absent.
func WithProgress(fn ProgressFunc) Option {
	return func(cfg *config) {
		cfg.onProgress = fn
	}
}

// WithPerItemTimeout sets a deadline for each individual item. On
// expiry the item's slot is marked with a *TimedOutError and, on the
// isolated backend, the offending worker is recycled.
func WithPerItemTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.perItemTimeout = d
		}
	}
}

// WithRetryPolicy enables automatic retries for failed items. retries
// is the number of additional attempts after the first (default 0);
// delays between attempts grow exponentially from initialDelay.
// Missing-binding failures are never retried.
func WithRetryPolicy(retries int, initialDelay time.Duration) Option {
	return func(cfg *config) {
		if retries > 0 {
			cfg.retries = retries
		}
		if initialDelay > 0 {
			cfg.retryDelay = initialDelay
		}
	}
}

// WithRetryJitter adds a random factor of 1 ± factor to retry delays.
func WithRetryJitter(factor float64) Option {
	return func(cfg *config) {
		if factor > 0 {
			cfg.retryJitter = factor
		}
	}
}

// WithCancelPolicy chooses between cooperative drain (default) and hard
// stop for in-flight items when a run is canceled.
func WithCancelPolicy(p CancelPolicy) Option {
	return func(cfg *config) {
		cfg.cancelPolicy = p
	}
}

// WithRateLimit caps task throughput with a token bucket. Useful when
// the task function calls an external service.
func WithRateLimit(itemsPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if itemsPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(itemsPerSecond), burst)
		}
	}
}

// WithLogger attaches a structured logger. The engine logs dispatch and
// lifecycle events at debug level and anomalies (crashes, recycles,
// heavy oversubscription) at warn. Default: discard.
func WithLogger(log logrus.FieldLogger) Option {
	return func(cfg *config) {
		if log != nil {
			cfg.logger = log
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = m
	}
}

// WithSequentialFallback degrades a fork engine to a single worker in
// the calling address space when the platform cannot duplicate address
// spaces, instead of failing with *UnsupportedBackendError. The
// downgrade is logged; it is never applied silently without this
// option.
func WithSequentialFallback() Option {
	return func(cfg *config) {
		cfg.seqFallback = true
	}
}
