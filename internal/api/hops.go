package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seantiz/urlcheck/internal/model"
	"github.com/seantiz/urlcheck/internal/store"
)

// handleStreamHops streams the hops of a running check as SSE events, one
// JSON-encoded hop per event, followed by a "done" event.
func (s *Server) handleStreamHops(w http.ResponseWriter, r *http.Request) {
	id, ok := s.checkID(w, r)
	if !ok {
		return
	}

	c, err := s.store.GetCheck(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "check not found")
		return
	}
	if err != nil {
		s.logger.Error("get check for hops", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get check")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Finished checks have nothing left to stream; history serves their hops.
	if c.Status == model.StatusCompleted || c.Status == model.StatusFailed {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// A check finishing between the status read above and Subscribe leaves a
	// closed topic, so the loop below ends at once.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	hopStreamsActive.Inc()
	defer hopStreamsActive.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case hop, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(hop)
			if err != nil {
				s.logger.Error("encode hop", "check_id", id, "error", err)
				continue
			}
			if err := writeSSEData(w, string(data)); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// hopHistoryResponse is the JSON response for GET /v1/checks/{id}/hops/history.
type hopHistoryResponse struct {
	CheckID string          `json:"check_id"`
	Hops    []model.HopLine `json:"hops"`
}

func (s *Server) handleGetHopHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.checkID(w, r)
	if !ok {
		return
	}

	_, err := s.store.GetCheck(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "check not found")
		return
	}
	if err != nil {
		s.logger.Error("get check for hop history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get check")
		return
	}

	hops, err := s.store.GetHopLines(r.Context(), id)
	if err != nil {
		s.logger.Error("get hop lines", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get hops")
		return
	}

	s.writeJSON(w, http.StatusOK, hopHistoryResponse{
		CheckID: id,
		Hops:    hops,
	})
}

// writeSSEData writes data as an SSE data event. Multi-line strings are
// split so that each segment gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, data string) error {
	for seg := range strings.SplitSeq(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
