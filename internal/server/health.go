package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ComponentHealth reports one dependency probe.
type ComponentHealth struct {
	Status    string  `json:"status"` // up | down
	Message   string  `json:"message,omitempty"`
	LatencyMs float64 `json:"latency_ms"`
}

type readiness struct {
	Status     string                     `json:"status"` // ok | degraded
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// readyHandler probes the record store and the object store. Answers 503
// when either dependency is down, so orchestrators hold traffic.
func (cfg Config) readyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		res := readiness{
			Status:     "ok",
			Timestamp:  time.Now().UTC(),
			Version:    cfg.Build.Version,
			Components: make(map[string]ComponentHealth),
		}

		probe := func(name string, fn func(context.Context) error) {
			start := time.Now()
			err := fn(ctx)
			c := ComponentHealth{
				Status:    "up",
				LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				c.Status = "down"
				c.Message = err.Error()
				res.Status = "degraded"
			}
			res.Components[name] = c
		}

		probe("database", func(ctx context.Context) error {
			return cfg.DB.PingContext(ctx)
		})
		if cfg.Objects != nil {
			probe("object_storage", cfg.Objects.Probe)
		}

		status := http.StatusOK
		if res.Status != "ok" {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(res)
	})
}
