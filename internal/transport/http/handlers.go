package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	apierrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/operations"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts"
)

// RunSource exposes the state of the current run
type RunSource interface {
	Snapshot() operations.Snapshot
	Err() error
}

// HealthStatus is the /health response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// StatusResponse is the /status response
type StatusResponse struct {
	Run     operations.Snapshot         `json:"run"`
	Failure *apierrors.APIError         `json:"failure,omitempty"`
	Runtime infrastructure.RuntimeStats `json:"runtime"`
	Build   contracts.VersionInfo       `json:"build"`
}

// StatusHandler serves the health and run status endpoints
type StatusHandler struct {
	run     RunSource
	runtime *infrastructure.RuntimeMetrics
	started time.Time
	logger  *slog.Logger
}

// NewStatusHandler creates a status handler. run may be nil until a run
// starts; runtime may be nil to skip recording runtime gauges.
func NewStatusHandler(run RunSource, runtime *infrastructure.RuntimeMetrics, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{
		run:     run,
		runtime: runtime,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "status")),
	}
}

// Health handles GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
	})
}

// Status handles GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.run == nil {
		_ = render.Render(w, r, apierrors.ErrRunNotStarted)
		return
	}

	resp := StatusResponse{
		Run:     h.run.Snapshot(),
		Runtime: h.runtime.Collect(r.Context(), h.started),
		Build:   contracts.GetVersionInfo(),
	}
	if err := h.run.Err(); err != nil {
		resp.Failure = apierrors.FromPipelineError(err)
	}

	h.logger.DebugContext(r.Context(), "status served",
		slog.String("run_id", resp.Run.ID),
		slog.String("run_status", string(resp.Run.Status)))
	render.JSON(w, r, resp)
}

// NotFound renders the API error for unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, apierrors.ErrNotFound)
}

// MethodNotAllowed renders the API error for unsupported methods
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, apierrors.ErrMethodNotAllowed)
}
