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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/fincorpus/internal/metrics"
	"github.com/JakeFAU/fincorpus/internal/progress"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestServer_StatusReportsTracker(t *testing.T) {
	t.Parallel()

	tracker := progress.NewTracker("run-1", "papers", fixedClock{now: time.Unix(100, 0).UTC()})
	tracker.Begin("query", "zakat")
	tracker.AddLines(4)

	server := NewServer(tracker, nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var got progress.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "papers", got.Command)
	assert.Equal(t, 4, got.Lines)
	require.NotNil(t, got.Current)
	assert.Equal(t, "zakat", got.Current.Source)
}

func TestServer_StatusWithoutTracker(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got progress.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Empty(t, got.Sources)
}

func TestServer_MetricsExposesCorpusCollectors(t *testing.T) {
	t.Parallel()

	metrics.ObserveLine("papers", "__label__zakat")
	server := NewServer(nil, nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "corpus_lines_total")
}

func TestServer_RecordsRequestMetrics(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `corpus_status_request_duration_seconds_count{method="GET",route="/readyz"}`)
}

func TestServer_LogsRequestID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	server := NewServer(nil, zap.New(core))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	id := rr.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ContextMap()["request_id"])
	assert.Equal(t, "/healthz", entries[0].ContextMap()["route"])
}

func TestRequestIDWithoutMiddleware(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RequestID(context.Background()))
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil)
	handler := server.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal server error")
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	server := NewServer(nil, nil)
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.True(t, strings.Contains(string(body), "ok"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
