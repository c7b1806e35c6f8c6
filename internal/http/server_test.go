package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/memory"
	"github.com/fyrsmithlabs/researchd/internal/quality"
)

func newTestServer(t *testing.T) (*Server, *memory.Store, *prometheus.Registry) {
	t.Helper()
	store, err := memory.NewStore(t.TempDir())
	require.NoError(t, err)

	mem, err := store.Open("alpha")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mem.WriteSection(ctx, "user_query", "Assess **solid-state** batteries"))
	require.NoError(t, mem.WriteSection(ctx, "phase1_plan", "- market_research: size the market"))

	reg := prometheus.NewRegistry()
	srv, err := NewServer(store, reg, logging.Nop(), nil)
	require.NoError(t, err)
	return srv, store, reg
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil, nil)
		assert.ErrorContains(t, err, "project store cannot be nil")
	})

	t.Run("defaults", func(t *testing.T) {
		store, err := memory.NewStore(t.TempDir())
		require.NoError(t, err)
		srv, err := NewServer(store, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", srv.config.Host)
		assert.Equal(t, 8080, srv.config.Port)
	})
}

func TestServer_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := get(t, srv, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestServer_ListProjects(t *testing.T) {
	srv, store, _ := newTestServer(t)
	_, err := store.Open("beta")
	require.NoError(t, err)

	rec := get(t, srv, "/api/v1/projects")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProjectsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"alpha", "beta"}, resp.Projects)
}

func TestServer_ListProjectsEmpty(t *testing.T) {
	store, err := memory.NewStore(t.TempDir())
	require.NoError(t, err)
	srv, err := NewServer(store, prometheus.NewRegistry(), nil, nil)
	require.NoError(t, err)

	rec := get(t, srv, "/api/v1/projects")
	assert.JSONEq(t, `{"projects":[]}`, rec.Body.String())
}

func TestServer_Project(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name        string
		target      string
		wantStatus  int
		contentType string
		contains    []string
	}{
		{
			name:        "json",
			target:      "/api/v1/projects/alpha",
			wantStatus:  http.StatusOK,
			contentType: "application/json",
			contains:    []string{`"project_id":"alpha"`, `"sections":["user_query","phase1_plan"]`, "PROJECT_MEMORY: alpha"},
		},
		{
			name:        "html",
			target:      "/api/v1/projects/alpha?format=html",
			wantStatus:  http.StatusOK,
			contentType: "text/html",
			contains:    []string{"<h1>PROJECT_MEMORY: alpha</h1>", "<h2>user_query</h2>", "<strong>solid-state</strong>"},
		},
		{
			name:        "markdown",
			target:      "/api/v1/projects/alpha?format=markdown",
			wantStatus:  http.StatusOK,
			contentType: "text/markdown",
			contains:    []string{"# PROJECT_MEMORY: alpha", "## user_query"},
		},
		{
			name:       "bad format",
			target:     "/api/v1/projects/alpha?format=pdf",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown project",
			target:     "/api/v1/projects/missing",
			wantStatus: http.StatusNotFound,
			contains:   []string{"project memory not found"},
		},
		{
			name:       "invalid project id",
			target:     "/api/v1/projects/..",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.contentType != "" {
				assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			}
			for _, want := range tt.contains {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestServer_Section(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv, "/api/v1/projects/alpha/sections/user_query")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, SectionResponse{ProjectID: "alpha", Name: "user_query", Content: "Assess **solid-state** batteries"}, resp)

	rec = get(t, srv, "/api/v1/projects/alpha/sections/user_query?format=html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<p>Assess <strong>solid-state</strong> batteries</p>")

	rec = get(t, srv, "/api/v1/projects/alpha/sections/phase9_results")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "section not found")
}

func TestServer_Metrics(t *testing.T) {
	srv, _, reg := newTestServer(t)
	quality.NewScorer(quality.WithScorerMetrics(quality.NewMetrics(reg))).Score("short report")

	rec := get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `researchd_quality_gate_total{outcome="failed"} 1`)
}

func TestServer_InternalErrorsHidden(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.projects = failingProjects{}

	rec := get(t, srv, "/api/v1/projects")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

type failingProjects struct{}

func (failingProjects) List() ([]string, error) { return nil, assert.AnError }

func (failingProjects) Get(string) (*memory.Memory, error) { return nil, assert.AnError }

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML("## h\n\n- a\n- b\n\n<script>alert(1)</script>\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<h2>h</h2>")
	assert.Contains(t, out, "<li>a</li>")
	assert.NotContains(t, out, "<script>")
}

func TestServer_Shutdown(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.config.Port = 0

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	assert.Eventually(t, func() bool { return srv.echo.ListenerAddr() != nil }, time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-done)
}
