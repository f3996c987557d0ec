package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/urlcheck/internal/handler"
)

func getHealth(t *testing.T, url string) (int, healthResponse) {
	t.Helper()
	resp, err := http.Get(url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealthzEndpoint(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	status, body := getHealth(t, ts.URL)
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if body.Status != "ok" || body.Database != "ok" {
		t.Errorf("status/database = %q/%q, want ok/ok", body.Status, body.Database)
	}
	if body.Origin != "http://testserver" {
		t.Errorf("origin = %q, want http://testserver", body.Origin)
	}
	var names []string
	for _, h := range body.Handlers {
		names = append(names, h.Name)
	}
	want := handler.NameMedia + "," + handler.NameStatic + "," + handler.NameRoutes
	if got := strings.Join(names, ","); got != want {
		t.Errorf("handlers = %s, want %s", got, want)
	}
	if body.InFlight != 0 {
		t.Errorf("in_flight = %d, want 0", body.InFlight)
	}
}

func TestHealthzDegradedWhenDatabaseUnavailable(t *testing.T) {
	srv := newTestServer(t)
	srv.store.Close()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	status, body := getHealth(t, ts.URL)
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Database == "ok" || body.Database == "" {
		t.Errorf("database = %q, want the ping error", body.Database)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	postJSON(t, ts.URL+"/v1/checks", `{"path":"/response"}`).Body.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") && !strings.Contains(contentType, "text/openmetrics") {
		t.Errorf("Content-Type = %q, expected prometheus format", contentType)
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	body := string(bodyBytes)

	for _, want := range []string{
		`urlcheck_http_requests_total{method="POST",route="/v1/checks`,
		"urlcheck_http_request_duration_seconds",
		"urlcheck_http_requests_in_flight",
		`urlcheck_api_checks_total{mode="sync"}`,
		`urlcheck_checks_total{kind="local",verdict="reachable"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	srv := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, ln) }()

	status, _ := getHealth(t, "http://"+ln.Addr().String())
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
