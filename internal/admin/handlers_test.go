package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ferro-labs/review4d/internal/descriptor"
	"github.com/ferro-labs/review4d/internal/renderlog"
)

func setupTestRouter(t *testing.T, token string) (*renderlog.Store, chi.Router) {
	t.Helper()
	store, err := renderlog.NewSQLiteStore(filepath.Join(t.TempDir(), "renders.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := &Handlers{
		Logs:     store,
		LogAdmin: store,
		Report: func() descriptor.Report {
			return descriptor.Report{Loaded: []descriptor.Loaded{{File: descriptor.BuiltinName, Plugins: []string{"Animation"}}}}
		},
	}
	r := chi.NewRouter()
	r.Use(TokenAuth(token))
	r.Mount("/admin", h.Routes())
	return store, r
}

func seed(t *testing.T, store *renderlog.Store, entries ...renderlog.Entry) {
	t.Helper()
	for _, e := range entries {
		if err := store.Write(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func authedRequest(method, url, token string) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestTokenAuth(t *testing.T) {
	_, r := setupTestRouter(t, "s3cret")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, authedRequest(http.MethodGet, "/admin/renders", tt.token))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestListRenders(t *testing.T) {
	store, r := setupTestRouter(t, "")
	now := time.Now().UTC()
	seed(t, store,
		renderlog.Entry{Source: "/p/a.c4d", OutputPath: "/r/a.mp4", CreatedAt: now.Add(-time.Hour)},
		renderlog.Entry{Source: "/p/a.c4d", OutputPath: "/r/a.mp4", PostRender: "Copy To", Status: renderlog.StatusSucceeded, CreatedAt: now},
		renderlog.Entry{Source: "/p/b.c4d", OutputPath: "/r/b.mp4", CreatedAt: now},
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/admin/renders?source=/p/a.c4d&limit=1", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Data    []renderlog.Entry `json:"data"`
		Summary struct {
			Total    int `json:"total_entries"`
			Returned int `json:"returned_entries"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Summary.Total != 2 || body.Summary.Returned != 1 {
		t.Errorf("summary = %+v", body.Summary)
	}
	if len(body.Data) != 1 || body.Data[0].PostRender != "Copy To" {
		t.Errorf("expected newest entry first, got %+v", body.Data)
	}
}

func TestListRenders_InvalidParams(t *testing.T) {
	_, r := setupTestRouter(t, "")

	for _, q := range []string{"limit=0", "limit=x", "offset=-1", "since=yesterday"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, authedRequest(http.MethodGet, "/admin/renders?"+q, ""))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestDeleteRenders(t *testing.T) {
	store, r := setupTestRouter(t, "")
	now := time.Now().UTC()
	seed(t, store,
		renderlog.Entry{Source: "/p/a.c4d", OutputPath: "/r/a.mp4", CreatedAt: now.Add(-48 * time.Hour)},
		renderlog.Entry{Source: "/p/b.c4d", OutputPath: "/r/b.mp4", CreatedAt: now},
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodDelete, "/admin/renders", ""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without before, got %d", w.Code)
	}

	before := now.Add(-24 * time.Hour).Format(time.RFC3339)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodDelete, "/admin/renders?before="+before, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Deleted int64 `json:"deleted"`
	}
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", body.Deleted)
	}
}

func TestRenderStats(t *testing.T) {
	store, r := setupTestRouter(t, "")
	seed(t, store,
		renderlog.Entry{Source: "/p/a.c4d", OutputPath: "/r/a.mp4"},
		renderlog.Entry{Source: "/p/a.c4d", OutputPath: "/r/a.mp4", PostRender: "Copy To", Status: renderlog.StatusSucceeded},
		renderlog.Entry{Source: "/p/b.c4d", OutputPath: "/r/b.mp4", PostRender: "Copy To", Status: renderlog.StatusFailed, Error: "disk full"},
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/admin/renders/stats", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Summary struct {
			Total   int  `json:"total_entries"`
			Failed  int  `json:"failed_entries"`
			Sources int  `json:"sources"`
			Trunc   bool `json:"truncated"`
		} `json:"summary"`
		ByPostRender []countEntry `json:"by_post_render"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Summary.Total != 3 || body.Summary.Failed != 1 || body.Summary.Sources != 2 || body.Summary.Trunc {
		t.Errorf("summary = %+v", body.Summary)
	}
	if len(body.ByPostRender) != 2 || body.ByPostRender[0] != (countEntry{Name: "Copy To", Count: 2}) {
		t.Errorf("by_post_render = %+v", body.ByPostRender)
	}
}

func TestRenders_NotEnabled(t *testing.T) {
	r := chi.NewRouter()
	r.Mount("/admin", (&Handlers{}).Routes())

	for _, path := range []string{"/admin/renders", "/admin/renders/stats", "/admin/plugins"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotImplemented {
			t.Errorf("%s: expected 501, got %d", path, w.Code)
		}
	}
}

func TestPlugins(t *testing.T) {
	_, r := setupTestRouter(t, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/admin/plugins", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var report descriptor.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Loaded) != 1 || report.Loaded[0].Plugins[0] != "Animation" {
		t.Errorf("report = %+v", report)
	}
}

func TestSortedCounts(t *testing.T) {
	got := sortedCounts(map[string]int{"b": 1, "a": 1, "c": 3})
	want := []countEntry{{"c", 3}, {"a", 1}, {"b", 1}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	}
}
