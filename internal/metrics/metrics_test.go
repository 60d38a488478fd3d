package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestObserversUpdateCounters(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(corpusLinesTotal.WithLabelValues("papers", "zakat"))
	ObserveLine("papers", "zakat")
	ObserveLine("papers", "zakat")
	assert.Equal(t, before+2, testutil.ToFloat64(corpusLinesTotal.WithLabelValues("papers", "zakat")))

	beforePages := testutil.ToFloat64(corpusPagesTotal.WithLabelValues("bank.co.id", "ok"))
	ObservePage("https://bank.co.id/a", "ok", 128)
	assert.Equal(t, beforePages+1, testutil.ToFloat64(corpusPagesTotal.WithLabelValues("bank.co.id", "ok")))

	beforeFailures := testutil.ToFloat64(corpusCheckpointFailuresTotal)
	ObserveCheckpointFailure()
	assert.Equal(t, beforeFailures+1, testutil.ToFloat64(corpusCheckpointFailuresTotal))

	beforeWrites := testutil.ToFloat64(corpusWriteFailuresTotal.WithLabelValues("sites"))
	ObserveWriteFailure("sites")
	assert.Equal(t, beforeWrites+1, testutil.ToFloat64(corpusWriteFailuresTotal.WithLabelValues("sites")))
	assert.Equal(t, beforeFailures+1, testutil.ToFloat64(corpusCheckpointFailuresTotal))

	beforeLookups := testutil.ToFloat64(corpusLookupFailuresTotal.WithLabelValues("unpaywall"))
	beforeRetries := testutil.ToFloat64(corpusAPIRetriesTotal.WithLabelValues("unpaywall"))
	ObserveLookupFailure("unpaywall")
	assert.Equal(t, beforeLookups+1, testutil.ToFloat64(corpusLookupFailuresTotal.WithLabelValues("unpaywall")))
	assert.Equal(t, beforeRetries, testutil.ToFloat64(corpusAPIRetriesTotal.WithLabelValues("unpaywall")))

	ObserveAPIRetry("crossref")
	ObserveExtractionFailure("pdf")
	ObserveSource("query", "completed")
	ObserveDownload("https://repo.example.org/x.pdf", 10)
	ObserveRateLimitDelay("api.crossref.org", 150*time.Millisecond)
}

func TestWriteTextfile(t *testing.T) {
	ObserveLine("sites", "utilitas")

	path := filepath.Join(t.TempDir(), "corpus.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "corpus_lines_total")
}

func TestHandlerServesMetrics(t *testing.T) {
	ObserveSource("site", "completed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "corpus_sources_total"))
}
