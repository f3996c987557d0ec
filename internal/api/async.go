package api

import "net/http"

func (s *Server) handleAsyncCheck(w http.ResponseWriter, r *http.Request) {
	c, ok := s.decodeCheckRequest(w, r)
	if !ok {
		return
	}

	if err := s.engine.Submit(r.Context(), c); err != nil {
		s.logger.Error("submit async check", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit check")
		return
	}
	apiChecksTotal.WithLabelValues(modeAsync).Inc()

	s.writeJSON(w, http.StatusAccepted, c)
}
