package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kidandcat/jobtracker/internal/tracker"
)

type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	if !verbose || s.opts.Health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{Status: "ok", Components: map[string]string{}}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.opts.Health.Ping(ctx); err != nil {
		logger(r).WithError(err).Warn("health check failed")
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy"
	} else {
		resp.Components["database"] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	period, err := tracker.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.writeServiceError(w, r, err, "not found")
		return
	}
	stats, err := s.stats.Stats(r.Context(), period)
	if err != nil {
		s.writeServiceError(w, r, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
