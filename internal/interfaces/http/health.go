package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/sawpanic/crewrun/internal/application"
	"github.com/sawpanic/crewrun/internal/persistence"
)

// BreakerStater reports a circuit breaker state ("closed", "half-open", "open").
type BreakerStater interface {
	BreakerState() string
}

// HealthHandler provides system health status endpoint
type HealthHandler struct {
	svc       *application.Service
	mirror    persistence.RepositoryHealth
	remote    BreakerStater
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(svc *application.Service, version string) *HealthHandler {
	return &HealthHandler{svc: svc, startTime: time.Now(), version: version}
}

// WithMirror adds the SQL mirror to the checks.
func (h *HealthHandler) WithMirror(m persistence.RepositoryHealth) *HealthHandler {
	h.mirror = m
	return h
}

// WithRemote adds the remote sync breaker to the checks.
func (h *HealthHandler) WithRemote(r BreakerStater) *HealthHandler {
	h.remote = r
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Revision  string                 `json:"revision,omitempty"`
	System    SystemInfo             `json:"system"`
	Checks    map[string]CheckResult `json:"checks"`
}

// SystemInfo provides system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status   string        `json:"status"` // "pass", "warn", "fail"
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// ServeHTTP implements the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Timestamp: time.Now(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		System:    systemInfo(),
		Checks:    make(map[string]CheckResult),
	}

	start := time.Now()
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		resp.Checks["store"] = CheckResult{Status: "fail", Message: err.Error(), Duration: time.Since(start)}
	} else {
		resp.Revision = snap.Revision
		resp.Checks["store"] = CheckResult{
			Status:   "pass",
			Message:  fmt.Sprintf("%d influencers, %d assignments", len(snap.Roster), len(snap.History)),
			Duration: time.Since(start),
		}
	}

	if h.mirror != nil {
		hc := h.mirror.Health(r.Context())
		c := CheckResult{Status: "pass", Message: "mirror reachable", Duration: time.Duration(hc.ResponseTimeMS) * time.Millisecond}
		if len(hc.Errors) > 0 {
			c.Message = hc.Errors[0]
		}
		if !hc.Healthy {
			c.Status = "warn"
		}
		resp.Checks["mirror"] = c
	}

	if h.remote != nil {
		state := h.remote.BreakerState()
		c := CheckResult{Status: "pass", Message: "breaker " + state}
		if state != "closed" {
			c.Status = "warn"
		}
		resp.Checks["remote"] = c
	}

	resp.Status = overallStatus(resp.Checks)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if resp.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(resp)
}

func systemInfo() SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemAlloc:      mem.Alloc,
		NumGC:         mem.NumGC,
	}
}

// overallStatus: any fail is unhealthy, any warn is degraded.
func overallStatus(checks map[string]CheckResult) string {
	status := "healthy"
	for _, c := range checks {
		switch c.Status {
		case "fail":
			return "unhealthy"
		case "warn":
			status = "degraded"
		}
	}
	return status
}
