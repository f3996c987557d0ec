package checker

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seantiz/urlcheck/internal/handler"
	"github.com/seantiz/urlcheck/internal/runner"
	"github.com/seantiz/urlcheck/internal/urlparts"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultMaxRedirects = 10
	DefaultScheme       = "http"
	DefaultAuthority    = "testserver"
)

// Config controls a Checker.
type Config struct {
	// Scheme and Authority identify redirect targets that are followed
	// locally. Redirects anywhere else end the check.
	Scheme    string
	Authority string

	// MaxRedirects is the hop budget used when a call does not set one.
	MaxRedirects int

	// Timeout bounds each resolution. Zero waits indefinitely.
	Timeout time.Duration
}

// Hop is one dispatch performed while resolving a path.
type Hop struct {
	Seq        int    `json:"seq"`
	Path       string `json:"path"`
	Query      string `json:"query,omitempty"`
	Handler    string `json:"handler"`
	StatusCode int    `json:"status_code"`
	Location   string `json:"location,omitempty"`
}

// Result is the outcome of one check.
type Result struct {
	Path      string
	Query     string
	Reachable bool
	Response  *handler.Response
	Hops      []Hop
	Err       error
	Duration  time.Duration
}

// StatusCode returns the final status code, or 0 when no response was produced.
func (r Result) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// Option adjusts a single check.
type Option func(*callOptions)

type callOptions struct {
	query        string
	maxRedirects int
	trace        func(Hop)
}

// WithQuery sets the raw query string sent with the first dispatch. It takes
// precedence over a query embedded in the path.
func WithQuery(query string) Option {
	return func(o *callOptions) { o.query = query }
}

// WithMaxRedirects sets the hop budget. Zero disables redirect following.
func WithMaxRedirects(n int) Option {
	return func(o *callOptions) { o.maxRedirects = n }
}

// WithTrace registers fn to be called after every dispatch. fn runs on the
// resolution goroutine and may still be called after a timed-out check has
// returned.
func WithTrace(fn func(Hop)) Option {
	return func(o *callOptions) { o.trace = fn }
}

// Checker resolves paths against a local handler chain.
type Checker struct {
	chain        *handler.Chain
	scheme       string
	authority    string
	maxRedirects int
	timeout      time.Duration
	logger       *slog.Logger
}

// New creates a checker over chain. A nil logger selects slog.Default.
func New(chain *handler.Chain, cfg Config, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{
		chain:        chain,
		scheme:       cfg.Scheme,
		authority:    cfg.Authority,
		maxRedirects: cfg.MaxRedirects,
		timeout:      cfg.Timeout,
		logger:       logger,
	}
	if c.scheme == "" {
		c.scheme = DefaultScheme
	}
	if c.authority == "" {
		c.authority = DefaultAuthority
	}
	if c.maxRedirects <= 0 {
		c.maxRedirects = DefaultMaxRedirects
	}
	return c
}

// Origin returns the local scheme and authority, e.g. "http://testserver".
func (c *Checker) Origin() string {
	return c.scheme + "://" + c.authority
}

// Handlers returns the chain the checker dispatches to.
func (c *Checker) Handlers() *handler.Chain {
	return c.chain
}

// Check reports whether path resolves to a 200 response. Any failure,
// including a timeout or a panic in a handler, yields false.
func (c *Checker) Check(ctx context.Context, path string, opts ...Option) bool {
	return c.Inspect(ctx, path, opts...).Reachable
}

// Resolve returns the final response for path. Failures raised while
// dispatching are returned unchanged: the handler's own error, a
// *runner.PanicError, runner.ErrTimeout or the context's error.
func (c *Checker) Resolve(ctx context.Context, path string, opts ...Option) (*handler.Response, error) {
	res := c.Inspect(ctx, path, opts...)
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Response, nil
}

// Inspect resolves path and returns the verdict together with the final
// response, the hops taken and any failure.
func (c *Checker) Inspect(ctx context.Context, path string, opts ...Option) Result {
	o := callOptions{maxRedirects: c.maxRedirects}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	req := handler.Request{Path: path, Query: o.query}
	// A query embedded in path is used when none was given explicitly.
	if p, q, ok := strings.Cut(path, "?"); ok {
		req.Path = p
		if req.Query == "" {
			req.Query = q
		}
	}
	out, err := runner.Run(ctx, c.timeout, func(ctx context.Context) (resolution, error) {
		return c.follow(ctx, req, o.maxRedirects, o.trace)
	})

	res := Result{
		Path:     path,
		Query:    req.Query,
		Hops:     out.hops,
		Err:      err,
		Duration: time.Since(start),
	}
	if err == nil {
		res.Response = out.response
		res.Reachable = out.response.StatusCode == http.StatusOK
	}
	observe(kindLocal, res)

	if err != nil {
		c.logger.Warn("local check failed",
			"path", path,
			"hops", len(res.Hops),
			"duration_ms", res.Duration.Milliseconds(),
			"error", err,
		)
	} else {
		c.logger.Debug("local check",
			"path", path,
			"status", res.StatusCode(),
			"reachable", res.Reachable,
			"hops", len(res.Hops),
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	return res
}

// CheckAll inspects every path with at most concurrency checks in flight
// (unlimited when concurrency <= 0). Results are in input order.
func (c *Checker) CheckAll(ctx context.Context, paths []string, concurrency int, opts ...Option) []Result {
	results := make([]Result, len(paths))

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, p := range paths {
		g.Go(func() error {
			results[i] = c.Inspect(ctx, p, opts...)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// resolution is the value produced on the resolution goroutine. It is never
// shared with the caller until the goroutine has finished.
type resolution struct {
	response *handler.Response
	hops     []Hop
}

// follow dispatches req and keeps following 301/302 redirects to the local
// scheme and authority while budget remains. When the budget is spent or a
// redirect leaves the local host, the redirect response itself is returned.
func (c *Checker) follow(ctx context.Context, req handler.Request, remaining int, trace func(Hop)) (resolution, error) {
	var out resolution
	for {
		resp, name, err := c.chain.Dispatch(ctx, req)
		if err != nil {
			return out, err
		}
		dispatchTotal.WithLabelValues(name, strconv.Itoa(resp.StatusCode)).Inc()

		hop := Hop{
			Seq:        len(out.hops),
			Path:       req.Path,
			Query:      req.Query,
			Handler:    name,
			StatusCode: resp.StatusCode,
			Location:   resp.Location(),
		}
		out.hops = append(out.hops, hop)
		out.response = resp
		if trace != nil {
			trace(hop)
		}

		if !resp.IsRedirect() || remaining <= 0 {
			return out, nil
		}
		remaining--

		target := urlparts.Split(hop.Location)
		if !c.isLocal(target) {
			return out, nil
		}
		redirectsFollowed.Inc()
		req = handler.Request{Path: target.Path, Query: target.Query}
	}
}

func (c *Checker) isLocal(target urlparts.Parts) bool {
	return target.HasScheme && target.Scheme == c.scheme &&
		target.HasAuthority && target.Authority == c.authority
}
