package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tailrisk/internal/scheduler"
	testingpkg "github.com/aristath/tailrisk/internal/testing"
)

type stubJob struct {
	name string
	err  error
	runs int
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

type directRunner struct{}

func (directRunner) RunNow(job scheduler.Job) error { return job.Run() }

func newTestServer(t *testing.T, jobs ...scheduler.Job) *Server {
	t.Helper()
	db := testingpkg.NewTestDB(t, "cache")

	return New(Config{
		Log:     zerolog.New(nil).Level(zerolog.Disabled),
		CacheDB: db,
		Port:    0,
		DevMode: true,
		Runner:  directRunner{},
		Jobs:    jobs,
	})
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "tailrisk", body["service"])
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_SystemStatus(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/system/status")

	require.Equal(t, http.StatusOK, w.Code)
	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.CacheDB)
	assert.Positive(t, resp.Goroutines)
}

func TestServer_Jobs(t *testing.T) {
	summary := &stubJob{name: "tail_risk_summary"}
	broken := &stubJob{name: "fit_cache_purge", err: errors.New("locked")}
	s := newTestServer(t, summary, broken, nil)

	w := serve(s, http.MethodGet, "/api/system/jobs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":["fit_cache_purge","tail_risk_summary"]}`, w.Body.String())

	w = serve(s, http.MethodPost, "/api/system/jobs/tail_risk_summary")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, summary.runs)

	w = serve(s, http.MethodPost, "/api/system/jobs/fit_cache_purge")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "locked")

	w = serve(s, http.MethodPost, "/api/system/jobs/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/system/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
