package handler

import (
	"context"
	"net/http"
	"net/url"
)

// Handler answers a local request. A handler that does not serve the path
// declines by returning a nil response and a nil error.
type Handler interface {
	// Name identifies the handler in traces, metrics and listings.
	Name() string

	// Handle produces the complete response for req, or declines.
	Handle(ctx context.Context, req Request) (*Response, error)
}

// Request is a GET for a path with an optional raw query string. An empty
// Query means no query string.
type Request struct {
	Path  string
	Query string
}

// Values parses the query string, ignoring malformed pairs.
func (r Request) Values() url.Values {
	v, _ := url.ParseQuery(r.Query)
	return v
}

// Response is a complete in-memory response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Location returns the redirect target, if any.
func (r *Response) Location() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Location")
}

// IsRedirect reports whether the response is a 301 or 302 redirect.
func (r *Response) IsRedirect() bool {
	return r.StatusCode == http.StatusMovedPermanently || r.StatusCode == http.StatusFound
}

// NotFound returns an empty 404 response.
func NotFound() *Response {
	return &Response{StatusCode: http.StatusNotFound, Header: make(http.Header)}
}
