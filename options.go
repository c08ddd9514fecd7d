package bulkload

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/bulkload/batch"
	"github.com/zero-day-ai/bulkload/checkpoint"
	"github.com/zero-day-ai/bulkload/config"
	"github.com/zero-day-ai/bulkload/retry"
)

// Option configures a run.
type Option func(*batch.Options)

// WithConfig applies the worker and retry sections of a configuration file.
// Options given after it override its values.
func WithConfig(cfg *config.Config) Option {
	return func(o *batch.Options) {
		if cfg == nil {
			return
		}
		o.Concurrency = cfg.Worker.GetConcurrency()
		ex := retry.New(o.Logger)
		ex.MaxAttempts = cfg.Retry.GetMaxAttempts()
		ex.BaseDelay = cfg.Retry.GetBaseDelay()
		ex.MaxDelay = cfg.Retry.GetMaxDelay()
		o.Retry = ex
	}
}

// WithConcurrency bounds the backend calls in flight.
func WithConcurrency(n int) Option {
	return func(o *batch.Options) {
		o.Concurrency = n
	}
}

// WithRetry sets the retry policy for backend calls.
func WithRetry(ex *retry.Executor) Option {
	return func(o *batch.Options) {
		o.Retry = ex
	}
}

// WithCheckpoint saves progress in store under key so that an interrupted
// batch can be resumed.
func WithCheckpoint(store checkpoint.Store, key string) Option {
	return func(o *batch.Options) {
		o.Checkpoint = store
		o.BatchKey = key
	}
}

// WithLogger sets the logger. If not provided, nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *batch.Options) {
		o.Logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for the run, create and reinsert spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *batch.Options) {
		o.Tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for the loader's counters.
func WithMeter(meter metric.Meter) Option {
	return func(o *batch.Options) {
		o.Meter = meter
	}
}
