package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const version = "0.1.0"

// Pinger checks reachability of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health builds the health handler over the named backing dependencies
// (broker, store).
func Health(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]Check)
		allHealthy := true

		for name, dep := range deps {
			if dep == nil {
				checks[name] = Check{Status: "fail", Message: "not configured"}
				allHealthy = false
				continue
			}
			start := time.Now()
			if err := dep.Ping(ctx); err != nil {
				checks[name] = Check{Status: "fail", Message: "connection failed"}
				allHealthy = false
				continue
			}
			checks[name] = Check{Status: "pass", Latency: time.Since(start).String()}
		}

		status := "healthy"
		statusCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		resp := HealthResponse{
			Status:    status,
			Version:   version,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(resp)
	}
}
