// Package httpapi speaks the loader's two backend operations over HTTP.
//
// Client is a backend.Backend that creates records with
// POST /v2/resources and writes values back with PUT /v2/values. Server
// exposes any backend.Backend under the same routes.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zero-day-ai/bulkload/backend"
	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/record"
)

// Routes served and called by this package.
const (
	ResourcesPath = "/v2/resources"
	ValuesPath    = "/v2/values"
	HealthPath    = "/health"
)

// ErrEmptyID indicates a create reply without an id.
var ErrEmptyID = errors.New("httpapi: backend returned an empty id")

// Options configures a Client.
type Options struct {
	// BaseURL is the backend root (e.g., "http://localhost:3333").
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds every request. Zero means 60s.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client implements backend.Backend over HTTP.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ backend.Backend = (*Client)(nil)

// New creates a client. Resty's own retries stay disabled; retrying is the
// caller's job.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("httpapi: base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if opts.Token != "" {
		hc.SetAuthToken(opts.Token)
	}

	return &Client{http: hc, logger: opts.Logger}, nil
}

// CreateRecord implements backend.Backend.
func (c *Client) CreateRecord(ctx context.Context, r record.Record) (string, error) {
	var out backend.CreateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(backend.NewCreateRequest(r)).
		SetResult(&out).
		Post(ResourcesPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", r.ID, err)
	}
	if resp.IsError() {
		return "", &loaderr.StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if out.ID == "" {
		return "", ErrEmptyID
	}
	c.logger.Debug("created resource", "record_id", r.ID, "global_id", out.ID, "duration", resp.Time())
	return out.ID, nil
}

// UpdateRecord implements backend.Backend.
func (c *Client) UpdateRecord(ctx context.Context, globalID string, u backend.Update) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(backend.UpdateRequest{Resource: globalID, Update: u}).
		Put(ValuesPath)
	if err != nil {
		return fmt.Errorf("update %s: %w", globalID, err)
	}
	if resp.StatusCode() == 404 {
		return fmt.Errorf("%w: %s", backend.ErrNotFound, globalID)
	}
	if resp.IsError() {
		return &loaderr.StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	c.logger.Debug("updated resource", "global_id", globalID, "property", u.Property)
	return nil
}

// Ping checks that the backend answers on its health route.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get(HealthPath)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &loaderr.StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
