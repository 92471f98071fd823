package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(context.Context) error { return nil })
	down = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func healthRouter(tracker, ledger HealthChecker) stdhttp.Handler {
	r := chi.NewRouter()
	NewHealthHandler("1.2.0",
		HealthCheck{Name: "database", Checker: tracker, Critical: true},
		HealthCheck{Name: "alert_ledger", Checker: ledger},
	).WithInfo("task_source", "first_available(extension,column)").RegisterRoutes(r)
	return r
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		tracker    HealthChecker
		ledger     HealthChecker
		path       string
		wantStatus int
		wantBody   string
	}{
		{"live ignores dependencies", down, down, "/health/live", stdhttp.StatusOK, "healthy"},
		{"ready", up, up, "/health/ready", stdhttp.StatusOK, "healthy"},
		{"ready with ledger down", up, down, "/health/ready", stdhttp.StatusOK, "healthy"},
		{"not ready", down, up, "/health/ready", stdhttp.StatusServiceUnavailable, "unhealthy"},
		{"tracker not configured", nil, up, "/health/ready", stdhttp.StatusServiceUnavailable, "unhealthy"},
		{"detailed", up, up, "/health", stdhttp.StatusOK, "healthy"},
		{"detailed degraded", up, down, "/health", stdhttp.StatusOK, "degraded"},
		{"detailed unhealthy", down, up, "/health", stdhttp.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthRouter(tt.tracker, tt.ledger).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body.Status)
		})
	}
}

func TestHealthHandler_DetailedReport(t *testing.T) {
	rec := httptest.NewRecorder()
	healthRouter(up, down).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/health", nil))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1.2.0", body.Version)
	assert.Equal(t, "healthy", body.Checks["database"].Status)
	assert.Equal(t, "unhealthy", body.Checks["alert_ledger"].Status)
	assert.Equal(t, "connection refused", body.Checks["alert_ledger"].Message)
	assert.Equal(t, "configured", body.Checks["task_source"].Status)
	assert.Equal(t, "first_available(extension,column)", body.Checks["task_source"].Message)
}
