package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/zero-day-ai/bulkload/backend"
	"github.com/zero-day-ai/bulkload/loaderr"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	// Token, when set, is required as a bearer token on every backend route.
	Token string

	Logger *slog.Logger
}

type handler struct {
	backend backend.Backend
	logger  *slog.Logger
}

// NewServer returns an HTTP handler serving b.
func NewServer(b backend.Backend, opts ServerOptions) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	h := &handler{backend: b, logger: logger}
	e.GET(HealthPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("")
	if opts.Token != "" {
		api.Use(middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
			return key == opts.Token, nil
		}))
	}
	api.POST(ResourcesPath, h.create)
	api.PUT(ValuesPath, h.update)
	return e
}

func (h *handler) create(c echo.Context) error {
	var req backend.CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	id, err := h.backend.CreateRecord(c.Request().Context(), req.Record(""))
	if err != nil {
		return h.fail(c, "create", err)
	}
	return c.JSON(http.StatusCreated, backend.CreateResponse{ID: id})
}

func (h *handler) update(c echo.Context) error {
	var req backend.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Resource == "" {
		return c.String(http.StatusBadRequest, "resource is required")
	}
	if err := h.backend.UpdateRecord(c.Request().Context(), req.Resource, req.Update); err != nil {
		return h.fail(c, "update", err)
	}
	return c.NoContent(http.StatusOK)
}

// fail maps a backend error to a status: the status of a *loaderr.StatusError,
// 404 for unknown resources, 503 for transient failures, 500 otherwise.
func (h *handler) fail(c echo.Context, op string, err error) error {
	status := http.StatusInternalServerError
	var se *loaderr.StatusError
	switch {
	case errors.As(err, &se):
		h.logger.Info("request refused", "op", op, "status", se.StatusCode, "reason", se.Body)
		return c.String(se.StatusCode, se.Body)
	case errors.Is(err, backend.ErrNotFound):
		status = http.StatusNotFound
	case loaderr.IsTransient(err):
		status = http.StatusServiceUnavailable
	}
	h.logger.Warn("request failed", "op", op, "status", status, "error", err)
	return c.String(status, err.Error())
}
