package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/seantiz/urlcheck/internal/handler"
	"github.com/seantiz/urlcheck/internal/urlparts"
)

// DefaultUserAgent is sent by a RemoteChecker created without a user agent.
const DefaultUserAgent = "Urlmethods"

// ErrUnsupportedScheme is returned for remote URLs that are not http or https.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// maxRemoteBody caps how much of a remote body is kept on the Result.
const maxRemoteBody = 1 << 20

// RemoteChecker fetches absolute URLs over the network. A URL is reachable
// when the final response, after the client's own redirect handling, has a
// status below 400.
type RemoteChecker struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewRemoteChecker creates a remote checker. A nil client uses a client with
// a 30 second timeout and a nil logger selects slog.Default.
func NewRemoteChecker(client *http.Client, userAgent string, logger *slog.Logger) *RemoteChecker {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &RemoteChecker{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Check reports whether rawURL answers with a status below 400. Network
// failures and malformed URLs yield false.
func (rc *RemoteChecker) Check(ctx context.Context, rawURL string) bool {
	return rc.Inspect(ctx, rawURL).Reachable
}

// Inspect fetches rawURL and returns the verdict with the final response.
func (rc *RemoteChecker) Inspect(ctx context.Context, rawURL string) Result {
	start := time.Now()
	resp, err := rc.fetch(ctx, rawURL)

	res := Result{
		Path:     rawURL,
		Response: resp,
		Err:      err,
		Duration: time.Since(start),
	}
	if err == nil {
		res.Reachable = resp.StatusCode < http.StatusBadRequest
		res.Hops = []Hop{{
			Path:       rawURL,
			Handler:    kindRemote,
			StatusCode: resp.StatusCode,
			Location:   resp.Location(),
		}}
	}
	observe(kindRemote, res)

	if err != nil {
		rc.logger.Warn("remote check failed", "url", rawURL, "error", err)
	} else {
		rc.logger.Debug("remote check",
			"url", rawURL,
			"status", resp.StatusCode,
			"reachable", res.Reachable,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	return res
}

func (rc *RemoteChecker) fetch(ctx context.Context, rawURL string) (*handler.Response, error) {
	parts := urlparts.Split(rawURL)
	if parts.Scheme != "http" && parts.Scheme != "https" {
		return nil, fmt.Errorf("check %q: %w", rawURL, ErrUnsupportedScheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", rc.userAgent)
	req.Header.Set("Accept", "text/xml,application/xml,application/xhtml+xml,text/html;q=0.9,text/plain;q=0.8,image/png,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-us,en;q=0.5")
	req.Header.Set("Accept-Charset", "ISO-8859-1,utf-8;q=0.7,*;q=0.7")
	req.Close = true

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", rawURL, err)
	}

	return &handler.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
