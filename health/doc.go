// Package health checks the dependencies of a load before it starts.
//
// A load needs a reachable backend, a reachable checkpoint store when
// resuming is enabled, and readable input files. Each check returns a Status;
// Combine folds several into one.
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	overall := health.Combine(
//	    health.EndpointCheck(ctx, "http://localhost:3333").Named("backend"),
//	    health.PingCheck(ctx, store).Named("checkpoint"),
//	    health.FileCheck("batch.json").Named("batch"),
//	)
//	if overall.IsUnhealthy() {
//	    log.Printf("health check failed: %s %+v", overall.Message, overall.Details)
//	}
//
// When combining, unhealthy wins over degraded, which wins over healthy.
// Checks given a context without deadline apply DefaultTimeout.
package health
