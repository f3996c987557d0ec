package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/urlcheck/internal/checker"
	"github.com/seantiz/urlcheck/internal/engine"
	"github.com/seantiz/urlcheck/internal/exampleapp"
	"github.com/seantiz/urlcheck/internal/handler"
	"github.com/seantiz/urlcheck/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	app := exampleapp.New()
	chain := handler.NewChain(
		handler.NewRouteHandler(app, checker.DefaultScheme, checker.DefaultAuthority),
		handler.NewMountHandler(handler.NameMedia, "/media/", exampleapp.MediaFS()),
		handler.NewMountHandler(handler.NameStatic, "/static/", exampleapp.StaticFS()),
	)
	local := checker.New(chain, checker.Config{}, logger)
	app.SetChecker(local)

	eng := engine.NewEngine(s, local, checker.NewRemoteChecker(nil, "", logger), logger)
	t.Cleanup(eng.Wait)

	return NewServer(":0", s, eng, logger)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/v1/checks", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /v1/checks: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestListHandlers(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/handlers")
	if err != nil {
		t.Fatalf("GET /v1/handlers: %v", err)
	}
	defer resp.Body.Close()

	var infos []handler.Info
	decodeJSON(t, resp, &infos)

	want := []string{handler.NameMedia, handler.NameStatic, handler.NameRoutes}
	if len(infos) != len(want) {
		t.Fatalf("got %d handlers, want %d: %+v", len(infos), len(want), infos)
	}
	for i, name := range want {
		if infos[i].Name != name {
			t.Errorf("handlers[%d] = %q, want %q", i, infos[i].Name, name)
		}
	}
	if !infos[2].Fallback {
		t.Error("routes handler should be the fallback")
	}
	if infos[0].Prefix != "/media/" {
		t.Errorf("media prefix = %q, want /media/", infos[0].Prefix)
	}
}
