package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger is implemented by stores that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	// Store is pinged by HealthHandler when it implements Pinger.
	Store any
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, map[string]string{"status": "degraded", "service": "intake", "store": err.Error()}, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok", "service": "intake"}, http.StatusOK)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version, "buildTime": buildTime}, http.StatusOK)
	}
}
