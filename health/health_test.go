package health

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/zero-day-ai/bulkload/checkpoint"
)

func listen(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestNetworkCheck(t *testing.T) {
	host, port := listen(t)

	tests := []struct {
		name          string
		host          string
		port          int
		expectHealthy bool
	}{
		{name: "listening port", host: host, port: port, expectHealthy: true},
		{name: "closed port", host: "127.0.0.1", port: closedPort(t)},
		{name: "empty host", host: "", port: 80},
		{name: "port zero", host: "localhost", port: 0},
		{name: "port too large", host: "localhost", port: 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			status := NetworkCheck(ctx, tt.host, tt.port)
			if status.IsHealthy() != tt.expectHealthy {
				t.Errorf("NetworkCheck(%q, %d) = %s (%s), want healthy=%v",
					tt.host, tt.port, status.Status, status.Message, tt.expectHealthy)
			}
		})
	}
}

func TestNetworkCheckWithNilContext(t *testing.T) {
	host, port := listen(t)
	//nolint:staticcheck // nil context is part of the contract
	status := NetworkCheck(nil, host, port)
	if !status.IsHealthy() {
		t.Errorf("expected healthy, got %s: %s", status.Status, status.Message)
	}
}

func TestEndpointCheck(t *testing.T) {
	host, port := listen(t)

	tests := []struct {
		name          string
		url           string
		expectHealthy bool
	}{
		{name: "http with port", url: "http://" + net.JoinHostPort(host, strconv.Itoa(port)), expectHealthy: true},
		{name: "redis with port", url: "redis://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/0", expectHealthy: true},
		{name: "closed port", url: "http://127.0.0.1:" + strconv.Itoa(closedPort(t))},
		{name: "no host", url: "/just/a/path"},
		{name: "garbage", url: "://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := EndpointCheck(context.Background(), tt.url)
			if status.IsHealthy() != tt.expectHealthy {
				t.Errorf("EndpointCheck(%q) = %s (%s), want healthy=%v", tt.url, status.Status, status.Message, tt.expectHealthy)
			}
		})
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	if s := PingCheck(context.Background(), pingFunc(func(context.Context) error { return nil })); !s.IsHealthy() {
		t.Errorf("expected healthy, got %s", s.Status)
	}
	s := PingCheck(context.Background(), pingFunc(func(context.Context) error { return errors.New("down") }))
	if !s.IsUnhealthy() || s.Details["error"] != "down" {
		t.Errorf("expected unhealthy with error detail, got %+v", s)
	}
	if s := PingCheck(context.Background(), nil); !s.IsUnhealthy() {
		t.Errorf("expected unhealthy for nil pinger")
	}
}

func TestPingCheckRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := checkpoint.NewRedisStore(checkpoint.RedisOptions{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()

	if s := PingCheck(context.Background(), store); !s.IsHealthy() {
		t.Fatalf("expected healthy store, got %s: %+v", s.Status, s.Details)
	}

	mr.Close()
	if s := PingCheck(context.Background(), store); !s.IsUnhealthy() {
		t.Errorf("expected unhealthy after redis stopped, got %s", s.Status)
	}
}

func TestFileCheck(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(file, []byte(`{"records":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		path          string
		expectHealthy bool
	}{
		{name: "existing file", path: file, expectHealthy: true},
		{name: "missing file", path: filepath.Join(dir, "missing.json")},
		{name: "empty path", path: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileCheck(tt.path).IsHealthy(); got != tt.expectHealthy {
				t.Errorf("FileCheck(%q) healthy = %v, want %v", tt.path, got, tt.expectHealthy)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name   string
		checks []Status
		want   string
	}{
		{name: "no checks", want: StatusHealthy},
		{name: "all healthy", checks: []Status{Healthy("a"), Healthy("b")}, want: StatusHealthy},
		{name: "one degraded", checks: []Status{Healthy("a"), Degraded("slow", nil)}, want: StatusDegraded},
		{name: "unhealthy wins", checks: []Status{Degraded("slow", nil), Unhealthy("down", nil), Healthy("a")}, want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Combine(tt.checks...); got.Status != tt.want {
				t.Errorf("Combine() = %s, want %s", got.Status, tt.want)
			}
		})
	}
}

func TestCombineNamesFailedChecks(t *testing.T) {
	got := Combine(
		Healthy("ok").Named("batch"),
		Unhealthy("ping failed", nil).Named("checkpoint"),
	)
	failed, ok := got.Details["failed_checks"].([]string)
	if !ok || len(failed) != 1 || failed[0] != "checkpoint: ping failed" {
		t.Errorf("failed_checks = %v", got.Details["failed_checks"])
	}
}
