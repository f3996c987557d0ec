package api

import (
	"context"
	"net/http"
	"time"

	"github.com/seantiz/urlcheck/internal/handler"
)

const healthPingTimeout = 2 * time.Second

// healthResponse reports whether checks can be served and recorded: the
// database answers, and which handler chain and origin local checks use.
type healthResponse struct {
	Status   string         `json:"status"`
	Database string         `json:"database"`
	Origin   string         `json:"origin"`
	Handlers []handler.Info `json:"handlers"`
	InFlight int64          `json:"in_flight"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	local := s.engine.Local()
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Origin:   local.Origin(),
		Handlers: local.Handlers().List(),
		InFlight: s.engine.InFlight(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("healthz: database unavailable", "error", err)
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, resp)
}
