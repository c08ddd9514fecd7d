package batch

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// instrumentationName names the tracer and meter of the controller.
const instrumentationName = "github.com/zero-day-ai/bulkload/batch"

// metrics holds the counters of the controller.
type metrics struct {
	created       metric.Int64Counter
	failed        metric.Int64Counter
	blocked       metric.Int64Counter
	reinserted    metric.Int64Counter
	reinsertFails metric.Int64Counter
	retryAttempts metric.Int64Counter
}

func defaultTracer() trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer(instrumentationName)
}

func defaultMeter() metric.Meter {
	return metricnoop.NewMeterProvider().Meter(instrumentationName)
}

func newMetrics(m metric.Meter) (*metrics, error) {
	out := &metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&out.created, "bulkload.records.created", "Records created on the backend"},
		{&out.failed, "bulkload.records.failed", "Records the backend refused"},
		{&out.blocked, "bulkload.records.blocked", "Records skipped because a dependency was not created"},
		{&out.reinserted, "bulkload.stash.reinserted", "Stashed values written back"},
		{&out.reinsertFails, "bulkload.stash.failed", "Stashed values that could not be written back"},
		{&out.retryAttempts, "bulkload.retry.attempts", "Failed backend attempts, retried or not"},
	}
	for _, c := range counters {
		counter, err := m.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return out, nil
}
