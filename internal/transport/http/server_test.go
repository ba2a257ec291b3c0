package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/operations"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/shared/testutil"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts"
)

func newTestRouter(t *testing.T, run RunSource, opts ServerOptions) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	r, err := NewRouter(NewStatusHandler(run, nil, logger), opts, logger)
	require.NoError(t, err)
	return r
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestRouter(t, nil, DefaultServerOptions("")), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var got HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, contracts.Version, got.Version)
}

func TestStatus(t *testing.T) {
	run := operations.NewRunState("run-9", operations.Steps()...)
	run.Start()
	require.NoError(t, run.Track(operations.StepIngest, func() (map[string]interface{}, error) {
		return map[string]interface{}{"rows": 140}, nil
	}))

	rec := get(t, newTestRouter(t, run, DefaultServerOptions("")), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var got StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-9", got.Run.ID)
	assert.Equal(t, operations.RunStatusRunning, got.Run.Status)
	require.Len(t, got.Run.Steps, 4)
	assert.Equal(t, operations.StepStatusCompleted, got.Run.Steps[1].Status)
	assert.EqualValues(t, 140, got.Run.Steps[1].Metadata["rows"])
	assert.Nil(t, got.Failure)
	assert.Positive(t, got.Runtime.GoRoutines)
	assert.Equal(t, contracts.TensorFormatVersion, got.Build.TensorFormat)
}

func TestStatusFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"pipeline error", pipelineerrors.NewInsufficientFutureData("masking", "no test targets"), "PIPELINE_INSUFFICIENT_FUTURE_DATA"},
		{"plain error", errors.New("disk full"), "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := operations.NewRunState("r", operations.Steps()...)
			run.Start()
			run.Fail(tt.err)

			rec := get(t, newTestRouter(t, run, DefaultServerOptions("")), "/status")
			require.Equal(t, http.StatusOK, rec.Code)

			var got StatusResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, operations.RunStatusFailed, got.Run.Status)
			require.NotNil(t, got.Failure)
			assert.Equal(t, tt.wantCode, got.Failure.ErrorCode)
		})
	}
}

func TestStatusBeforeRun(t *testing.T) {
	rec := get(t, newTestRouter(t, nil, DefaultServerOptions("")), "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var got pipelineerrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "RUN_NOT_STARTED", got.ErrorCode)
}

func TestRouterErrors(t *testing.T) {
	h := newTestRouter(t, nil, DefaultServerOptions(""))

	rec := get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")

	post := httptest.NewRecorder()
	h.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
	assert.Contains(t, post.Body.String(), "METHOD_NOT_ALLOWED")
}

func TestMetricsRoute(t *testing.T) {
	tests := []struct {
		name     string
		metrics  bool
		wantCode int
	}{
		{"enabled", true, http.StatusOK},
		{"disabled", false, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultServerOptions("")
			opts.Metrics = tt.metrics
			rec := get(t, newTestRouter(t, nil, opts), "/metrics")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestServerLifecycle(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	opts := DefaultServerOptions("127.0.0.1:0")
	opts.Tracing = true
	srv, err := NewServer(NewStatusHandler(nil, nil, logger), opts, logger)
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestShutdownWithoutStart(t *testing.T) {
	srv, err := NewServer(NewStatusHandler(nil, nil, nil), DefaultServerOptions("127.0.0.1:0"), nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
