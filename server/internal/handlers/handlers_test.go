package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/zhaobenny/ccsessions/internal/config"
	"github.com/zhaobenny/ccsessions/internal/engine"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/server/internal/middleware"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func newServer(t *testing.T, root string, limiter *middleware.IPRateLimiter) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.ProjectsPath = root
	cfg.Timezone = "UTC"

	e, err := engine.New(engine.Options{ProjectsPath: root, Workers: 2, Location: time.UTC, TopProjects: 3})
	require.NoError(t, err)
	t.Cleanup(e.Close)

	srv := httptest.NewServer(NewRouter(New(e, cfg, nil), limiter))
	t.Cleanup(srv.Close)
	return srv
}

func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeLines(t, filepath.Join(root, "p1", "s1.jsonl"),
		`{"type":"user","uuid":"u1","timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"hi"}}`,
		`{"type":"assistant","uuid":"a1","parentUuid":"u1","timestamp":"2025-01-15T10:00:01Z","message":{"model":"claude-sonnet-4-5","usage":{"input_tokens":1000000}}}`,
		`{"type":"assistant","uuid":"a2","parentUuid":"a1","timestamp":"2025-01-15T10:00:02Z","message":{"model":"claude-sonnet-4-5","usage":{"output_tokens":500000}}}`,
	)
	return root
}

func get(t *testing.T, srv *httptest.Server, path string, v any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newServer(t, fixture(t), nil)
	var body map[string]string
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/health", &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSummary(t *testing.T) {
	srv := newServer(t, fixture(t), nil)
	var rows []model.Summary
	require.Equal(t, http.StatusOK, get(t, srv, "/api/summary?project=p1", &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 10.5, rows[0].TotalCost)
}

func TestUsageRoutes(t *testing.T) {
	srv := newServer(t, fixture(t), nil)
	tests := map[string]string{
		"/api/usage/daily":   "2025-01-15",
		"/api/usage/weekly":  "2025-01-13",
		"/api/usage/monthly": "2025-01",
	}
	for path, bucket := range tests {
		t.Run(path, func(t *testing.T) {
			var rows []model.AggregateRow
			require.Equal(t, http.StatusOK, get(t, srv, path, &rows))
			require.Len(t, rows, 1)
			assert.Equal(t, bucket, rows[0].Bucket)
		})
	}
}

func TestBadDays(t *testing.T) {
	srv := newServer(t, fixture(t), nil)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/usage/daily?days=week", nil))
}

func TestTopProjectsDefaultWindow(t *testing.T) {
	srv := newServer(t, fixture(t), nil)

	// The fixture is far outside the default window.
	var rows []model.AggregateRow
	require.Equal(t, http.StatusOK, get(t, srv, "/api/usage/top-projects-weekly", &rows))
	assert.Empty(t, rows)

	require.Equal(t, http.StatusOK, get(t, srv, "/api/usage/top-projects-weekly?days=0", &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ProjectID)
}

func TestTimeline(t *testing.T) {
	srv := newServer(t, fixture(t), nil)
	var events []model.TimelineEvent
	require.Equal(t, http.StatusOK, get(t, srv, "/api/timeline/events/p1", &events))
	require.Len(t, events, 3)
	assert.Equal(t, int64(500_000), events[2].CumulativeOutputTokens)
}

func TestSessionDetail(t *testing.T) {
	srv := newServer(t, fixture(t), nil)

	var events []engine.SessionEvent
	require.Equal(t, http.StatusOK, get(t, srv, "/api/sessions/p1/s1?event_uuid=a1", &events))
	require.Len(t, events, 2)
	assert.Equal(t, "a1", events[0].UUID)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/sessions/p1/nope", nil))
}

func TestMissingProjectsDir(t *testing.T) {
	srv := newServer(t, filepath.Join(t.TempDir(), "missing"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/api/summary", nil))
}

func TestRateLimited(t *testing.T) {
	srv := newServer(t, fixture(t), middleware.NewIPRateLimiter(rate.Limit(0.001), 1))
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, get(t, srv, "/api/health", nil))
}
