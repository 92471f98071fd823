package http

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// HealthChecker defines the interface for health check dependencies
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheck is one named dependency check. A failing critical check takes
// the service out of rotation; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Checker  HealthChecker
	Critical bool
}

// HealthHandler serves liveness, readiness and a detailed dependency report.
type HealthHandler struct {
	checks    []HealthCheck
	info      map[string]string
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		info:      map[string]string{},
		startTime: time.Now(),
		version:   version,
	}
}

// WithInfo adds a static entry to the detailed report, such as the active
// task source chain.
func (h *HealthHandler) WithInfo(name, value string) *HealthHandler {
	h.info[name] = value
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type memoryStats struct {
	Alloc      uint64 `json:"alloc_bytes"`
	TotalAlloc uint64 `json:"total_alloc_bytes"`
	Sys        uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

type detailedHealthResponse struct {
	HealthResponse
	Memory     memoryStats `json:"memory"`
	Goroutines int         `json:"goroutines"`
}

// HandleLiveness reports that the process is up. It never touches a
// dependency.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness answers 503 while any critical dependency is down.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks, criticalDown, _ := h.run(r.Context())

	status, code := "healthy", http.StatusOK
	if criticalDown {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	WriteJSON(w, code, h.response(status, checks))
}

// HandleHealth reports every dependency with runtime stats.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks, criticalDown, anyDown := h.run(r.Context())
	for name, value := range h.info {
		checks[name] = Check{Status: "configured", Message: value}
	}

	status, code := "healthy", http.StatusOK
	switch {
	case criticalDown:
		status, code = "unhealthy", http.StatusServiceUnavailable
	case anyDown:
		status = "degraded"
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	WriteJSON(w, code, detailedHealthResponse{
		HealthResponse: h.response(status, checks),
		Memory: memoryStats{
			Alloc:      ms.Alloc,
			TotalAlloc: ms.TotalAlloc,
			Sys:        ms.Sys,
			NumGC:      ms.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
	})
}

func (h *HealthHandler) response(status string, checks map[string]Check) HealthResponse {
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
}

// run checks every dependency concurrently.
func (h *HealthHandler) run(ctx context.Context) (checks map[string]Check, criticalDown, anyDown bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make([]Check, len(h.checks))
	var wg sync.WaitGroup
	for i, hc := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = checkDependency(ctx, hc.Checker)
		}()
	}
	wg.Wait()

	checks = make(map[string]Check, len(h.checks)+len(h.info))
	for i, hc := range h.checks {
		checks[hc.Name] = results[i]
		if results[i].Status != "healthy" {
			anyDown = true
			if hc.Critical {
				criticalDown = true
			}
		}
	}
	return checks, criticalDown, anyDown
}

func checkDependency(ctx context.Context, checker HealthChecker) Check {
	if checker == nil {
		return Check{Status: "unhealthy", Message: "not configured"}
	}

	start := time.Now()
	err := checker.Ping(ctx)
	latency := time.Since(start).String()
	if err != nil {
		return Check{Status: "unhealthy", Message: err.Error(), Latency: latency}
	}
	return Check{Status: "healthy", Latency: latency}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}
