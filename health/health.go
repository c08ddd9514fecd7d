package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// DefaultTimeout bounds a check whose context has no deadline.
const DefaultTimeout = 5 * time.Second

// Pinger is anything that can report its reachability, such as a checkpoint
// store or the HTTP backend client.
type Pinger interface {
	Ping(ctx context.Context) error
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}

// NetworkCheck verifies TCP connectivity to a host and port.
// It uses the provided context for timeout and cancellation control.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	status := health.NetworkCheck(ctx, "example.com", 443)
//	if status.IsUnhealthy() {
//	    log.Println("Cannot reach example.com:443")
//	}
func NetworkCheck(ctx context.Context, host string, port int) Status {
	if host == "" {
		return Unhealthy("host cannot be empty", nil)
	}
	if port <= 0 || port > 65535 {
		return Unhealthy(
			fmt.Sprintf("invalid port number: %d", port),
			map[string]any{"port": port},
		)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("failed to connect to %s", address),
			map[string]any{
				"host":  host,
				"port":  port,
				"error": err.Error(),
			},
		)
	}
	conn.Close()

	return Healthy(fmt.Sprintf("successfully connected to %s", address))
}

// EndpointCheck verifies TCP connectivity to the host of a URL. The port
// defaults to 80 for http, 443 for https and 6379 for redis.
func EndpointCheck(ctx context.Context, rawURL string) Status {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Unhealthy(
			fmt.Sprintf("invalid endpoint %q", rawURL),
			map[string]any{"url": rawURL},
		)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "redis", "rediss":
			port = "6379"
		default:
			port = "80"
		}
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return Unhealthy(fmt.Sprintf("invalid port in %q", rawURL), map[string]any{"url": rawURL})
	}
	return NetworkCheck(ctx, u.Hostname(), p)
}

// PingCheck reports p's reachability.
func PingCheck(ctx context.Context, p Pinger) Status {
	if p == nil {
		return Unhealthy("nothing to ping", nil)
	}
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return Unhealthy("ping failed", map[string]any{"error": err.Error()})
	}
	return Healthy(fmt.Sprintf("ping answered in %s", time.Since(start).Round(time.Millisecond)))
}

// FileCheck verifies that a file exists and is readable.
func FileCheck(path string) Status {
	if path == "" {
		return Unhealthy("path cannot be empty", nil)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Unhealthy(
				fmt.Sprintf("path '%s' does not exist", path),
				map[string]any{"path": path},
			)
		}
		return Unhealthy(
			fmt.Sprintf("cannot read '%s'", path),
			map[string]any{"path": path, "error": err.Error()},
		)
	}
	f.Close()

	return Healthy(fmt.Sprintf("file '%s' is readable", path))
}

// Combine aggregates multiple health checks into a single status.
// The result follows this priority:
//   - If any check is unhealthy, the result is unhealthy
//   - If any check is degraded (and none unhealthy), the result is degraded
//   - If all checks are healthy, the result is healthy
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks provided")
	}

	var unhealthy, degraded []string
	var healthyCount int
	label := func(s Status) string {
		switch {
		case s.Name != "" && s.Message != "":
			return s.Name + ": " + s.Message
		case s.Name != "":
			return s.Name
		case s.Message != "":
			return s.Message
		default:
			return "unnamed check"
		}
	}

	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			unhealthy = append(unhealthy, label(check))
		case StatusDegraded:
			degraded = append(degraded, label(check))
		case StatusHealthy:
			healthyCount++
		}
	}

	if len(unhealthy) > 0 {
		return Unhealthy(
			fmt.Sprintf("%d check(s) failed", len(unhealthy)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthy),
				"degraded":      len(degraded),
				"healthy":       healthyCount,
				"failed_checks": unhealthy,
			},
		)
	}
	if len(degraded) > 0 {
		return Degraded(
			fmt.Sprintf("%d check(s) degraded", len(degraded)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degraded),
				"healthy":         healthyCount,
				"degraded_checks": degraded,
			},
		)
	}
	return Healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
