package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/urlcheck/internal/model"
	"github.com/seantiz/urlcheck/internal/store"
	"github.com/seantiz/urlcheck/internal/urlparts"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

var (
	errTargetRequired = errors.New("path or url is required")
	errBothTargets    = errors.New("set only one of path or url")
	errNotLocal       = errors.New("path must be a local path; use url for remote checks")
	errNotRemote      = errors.New("url must be an absolute http or https URL")
	errMaxRedirects   = errors.New("max_redirects must not be negative")
)

// createCheckRequest is the JSON body for POST /v1/checks and /v1/checks/async.
// Path selects a local check, URL a remote one.
type createCheckRequest struct {
	Path         string `json:"path"`
	Query        string `json:"query"`
	MaxRedirects *int   `json:"max_redirects"`
	URL          string `json:"url"`
}

// listChecksResponse wraps the paginated list response.
type listChecksResponse struct {
	Checks []*model.Check `json:"checks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// localTarget repairs stray percent signs in p and splits off an embedded
// query string.
func localTarget(p string) (path, query string, err error) {
	parts := urlparts.Split(urlparts.Fix(p))
	if parts.HasScheme || parts.HasAuthority {
		return "", "", errNotLocal
	}
	if parts.Path == "" {
		return "", "", errTargetRequired
	}
	return parts.Path, parts.Query, nil
}

// newCheck validates req and builds a pending check record.
func (req createCheckRequest) newCheck() (*model.Check, error) {
	if req.Path != "" && req.URL != "" {
		return nil, errBothTargets
	}
	if req.MaxRedirects != nil && *req.MaxRedirects < 0 {
		return nil, errMaxRedirects
	}

	c := &model.Check{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	switch {
	case req.URL != "":
		parts := urlparts.Split(req.URL)
		if (parts.Scheme != "http" && parts.Scheme != "https") || parts.Authority == "" {
			return nil, errNotRemote
		}
		c.Kind = model.KindRemote
		c.Target = req.URL
	case req.Path != "":
		path, query, err := localTarget(req.Path)
		if err != nil {
			return nil, err
		}
		if req.Query != "" {
			query = req.Query
		}
		c.Kind = model.KindLocal
		c.Target = path
		c.Query = query
		c.MaxRedirects = req.MaxRedirects
	default:
		return nil, errTargetRequired
	}

	return c, nil
}

// decodeCheckRequest reads the request body and builds the check, writing
// the error response itself when it fails.
func (s *Server) decodeCheckRequest(w http.ResponseWriter, r *http.Request) (*model.Check, bool) {
	var req createCheckRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}

	c, err := req.newCheck()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return c, true
}

func (s *Server) handleCreateCheck(w http.ResponseWriter, r *http.Request) {
	c, ok := s.decodeCheckRequest(w, r)
	if !ok {
		return
	}

	done, err := s.engine.Run(r.Context(), c)
	if err != nil {
		s.logger.Error("run check", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to run check")
		return
	}
	apiChecksTotal.WithLabelValues(modeSync).Inc()

	s.writeJSON(w, http.StatusCreated, done)
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
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
		s.logger.Error("get check", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get check")
		return
	}

	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	checks, total, err := s.store.ListChecks(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list checks", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list checks")
		return
	}

	if checks == nil {
		checks = []*model.Check{}
	}

	s.writeJSON(w, http.StatusOK, listChecksResponse{
		Checks: checks,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := s.checkID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteCheck(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "check not found")
			return
		}
		s.logger.Error("delete check", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete check")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// checkID returns the {id} URL parameter. Malformed IDs cannot name a stored
// check and are answered with 404.
func (s *Server) checkID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !model.ValidID(id) {
		s.writeError(w, http.StatusNotFound, "check not found")
		return "", false
	}
	return id, true
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
