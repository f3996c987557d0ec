package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/urlcheck/internal/urlparts"
)

// NameRoutes is the name of the application route handler.
const NameRoutes = "routes"

// RouteHandler serves requests through the application's http.Handler
// in-process. It never declines.
//
// Relative Location headers are made absolute against the local authority,
// so callers always see redirects of the form http://<authority>/path.
// Paths that cannot form a request URL are answered with 404.
// Panics raised by the application are not recovered here.
type RouteHandler struct {
	app       http.Handler
	scheme    string
	authority string
}

// NewRouteHandler wraps app. Requests are addressed to scheme://authority.
func NewRouteHandler(app http.Handler, scheme, authority string) *RouteHandler {
	return &RouteHandler{
		app:       app,
		scheme:    scheme,
		authority: authority,
	}
}

func (h *RouteHandler) Name() string { return NameRoutes }

// Handle runs the application for req and captures the complete response.
func (h *RouteHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	target := req.Path
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	target = urlparts.Join(urlparts.Parts{
		Scheme: h.scheme, HasScheme: true,
		Authority: h.authority, HasAuthority: true,
		Path:  target,
		Query: req.Query, HasQuery: req.Query != "",
	})

	if _, err := url.Parse(target); err != nil {
		return NotFound(), nil
	}

	// A chi route context inherited from the caller's request would make the
	// app route on the caller's path and share one context across dispatches.
	ctx = context.WithValue(ctx, chi.RouteCtxKey, nil)

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", req.Path, err)
	}
	r.RequestURI = r.URL.RequestURI()

	rec := httptest.NewRecorder()
	h.app.ServeHTTP(rec, r)

	// Result snapshots the headers as they were when the status was written.
	result := rec.Result()
	resp := &Response{
		StatusCode: result.StatusCode,
		Header:     result.Header,
		Body:       bytes.Clone(rec.Body.Bytes()),
	}
	h.absolutizeLocation(r.URL, resp)
	return resp, nil
}

func (h *RouteHandler) absolutizeLocation(base *url.URL, resp *Response) {
	loc := resp.Location()
	if loc == "" || urlparts.Split(loc).HasScheme {
		return
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return
	}
	resp.Header.Set("Location", base.ResolveReference(ref).String())
}
