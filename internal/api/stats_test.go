package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/urlcheck/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("avg_duration_ms = %f, want 0", stats.AvgDurationMS)
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, p := range []string{"/response", "/media/foo", "/notfound", "/http500"} {
		resp := postJSON(t, ts.URL+"/v1/checks", `{"path":"`+p+`"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("POST %s: status %d", p, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByStatus[model.StatusCompleted] != 3 {
		t.Errorf("by_status[completed] = %d, want 3", stats.ByStatus[model.StatusCompleted])
	}
	if stats.ByStatus[model.StatusFailed] != 1 {
		t.Errorf("by_status[failed] = %d, want 1", stats.ByStatus[model.StatusFailed])
	}
	if stats.ByKind[model.KindLocal] != 4 {
		t.Errorf("by_kind[local] = %d, want 4", stats.ByKind[model.KindLocal])
	}
	if stats.Reachable != 2 {
		t.Errorf("reachable = %d, want 2", stats.Reachable)
	}
	if stats.Unreachable != 2 {
		t.Errorf("unreachable = %d, want 2", stats.Unreachable)
	}
}
