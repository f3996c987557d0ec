package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/seantiz/urlcheck/internal/checker"
)

const (
	maxBatchPaths           = 500
	defaultBatchConcurrency = 8
	maxBatchConcurrency     = 64
)

// batchCheckRequest is the JSON body for POST /v1/checks/batch.
type batchCheckRequest struct {
	Paths        []string `json:"paths"`
	Concurrency  int      `json:"concurrency"`
	MaxRedirects *int     `json:"max_redirects"`
}

type batchResult struct {
	Path       string `json:"path"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code,omitempty"`
	Hops       int    `json:"hops"`
	Error      string `json:"error,omitempty"`
}

type batchCheckResponse struct {
	Results   []batchResult `json:"results"`
	Total     int           `json:"total"`
	Reachable int           `json:"reachable"`
}

// handleBatchCheck checks many local paths at once. Results are not
// persisted and come back in request order.
func (s *Server) handleBatchCheck(w http.ResponseWriter, r *http.Request) {
	var req batchCheckRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if len(req.Paths) == 0 {
		s.writeError(w, http.StatusBadRequest, "paths is required")
		return
	}
	if len(req.Paths) > maxBatchPaths {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d paths per batch", maxBatchPaths))
		return
	}
	if req.MaxRedirects != nil && *req.MaxRedirects < 0 {
		s.writeError(w, http.StatusBadRequest, errMaxRedirects.Error())
		return
	}

	targets := make([]string, len(req.Paths))
	for i, p := range req.Paths {
		path, query, err := localTarget(p)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("paths[%d]: %v", i, err))
			return
		}
		targets[i] = path
		if query != "" {
			targets[i] += "?" + query
		}
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	concurrency = min(concurrency, maxBatchConcurrency)

	var opts []checker.Option
	if req.MaxRedirects != nil {
		opts = append(opts, checker.WithMaxRedirects(*req.MaxRedirects))
	}

	batchPaths.Observe(float64(len(targets)))
	apiChecksTotal.WithLabelValues(modeBatch).Add(float64(len(targets)))
	results := s.engine.Local().CheckAll(r.Context(), targets, concurrency, opts...)

	resp := batchCheckResponse{
		Results: make([]batchResult, len(results)),
		Total:   len(results),
	}
	for i, res := range results {
		br := batchResult{
			Path:       req.Paths[i],
			Reachable:  res.Reachable,
			StatusCode: res.StatusCode(),
			Hops:       len(res.Hops),
		}
		if res.Err != nil {
			br.Error = res.Err.Error()
		}
		if res.Reachable {
			resp.Reachable++
		}
		resp.Results[i] = br
	}

	s.writeJSON(w, http.StatusOK, resp)
}
