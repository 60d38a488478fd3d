// Package metrics exposes Prometheus collectors for the corpus builder.
//
// Batch runs dump the registry to a node-exporter textfile at exit; the
// optional status listener serves the same registry over HTTP.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	corpusPagesTotal              *prometheus.CounterVec
	corpusBytesTotal              *prometheus.CounterVec
	corpusLinesTotal              *prometheus.CounterVec
	corpusAPIRetriesTotal         *prometheus.CounterVec
	corpusExtractionFailuresTotal *prometheus.CounterVec
	corpusCheckpointFailuresTotal prometheus.Counter
	corpusWriteFailuresTotal      *prometheus.CounterVec
	corpusLookupFailuresTotal     *prometheus.CounterVec
	corpusSourcesTotal            *prometheus.CounterVec
	corpusRateLimitDelaysSeconds  *prometheus.HistogramVec
	statusRequestsTotal           *prometheus.CounterVec
	statusRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		corpusPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_pages_total",
				Help: "Pages visited by the crawl frontier, labeled by site and outcome.",
			},
			[]string{"site", "status"},
		)

		corpusBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_bytes_total",
				Help: "Bytes of documents downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		corpusLinesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_lines_total",
				Help: "Training lines written, labeled by source kind and label.",
			},
			[]string{"source", "label"},
		)

		corpusAPIRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_api_retries_total",
				Help: "Failed API attempts that triggered a retry or abandonment.",
			},
			[]string{"api"},
		)

		corpusExtractionFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_extraction_failures_total",
				Help: "Documents that yielded no text, labeled by document kind.",
			},
			[]string{"kind"},
		)

		corpusCheckpointFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "corpus_checkpoint_failures_total",
				Help: "Checkpoint saves that failed and were skipped.",
			},
		)

		corpusWriteFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_write_failures_total",
				Help: "Training lines that could not be written, labeled by source kind.",
			},
			[]string{"source"},
		)

		corpusLookupFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_lookup_failures_total",
				Help: "Single-shot API lookups that failed and were skipped.",
			},
			[]string{"api"},
		)

		corpusSourcesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_sources_total",
				Help: "Sources drained, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		corpusRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corpus_rate_limit_delays_seconds",
				Help:    "Histogram of API rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		statusRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_status_requests_total",
				Help: "Requests served by the status listener, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		statusRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corpus_status_request_duration_seconds",
				Help:    "Histogram of status listener latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// WriteTextfile writes every registered metric to path in the text
// exposition format.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObservePage records one frontier visit.
func ObservePage(site, status string, bytesFetched int) {
	Init()
	sanitized := SanitizeSite(site)
	corpusPagesTotal.WithLabelValues(sanitized, status).Inc()
	if bytesFetched > 0 {
		corpusBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// ObserveDownload records bytes of a document fetched outside the frontier.
func ObserveDownload(site string, bytesFetched int) {
	Init()
	if bytesFetched > 0 {
		corpusBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObserveLine counts one training line.
func ObserveLine(source, label string) {
	Init()
	corpusLinesTotal.WithLabelValues(source, label).Inc()
}

// ObserveAPIRetry counts one failed API attempt.
func ObserveAPIRetry(api string) {
	Init()
	corpusAPIRetriesTotal.WithLabelValues(api).Inc()
}

// ObserveExtractionFailure counts one document without text.
func ObserveExtractionFailure(kind string) {
	Init()
	corpusExtractionFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveCheckpointFailure counts one swallowed persistence failure.
func ObserveCheckpointFailure() {
	Init()
	corpusCheckpointFailuresTotal.Inc()
}

// ObserveWriteFailure counts one training line lost to an output error.
func ObserveWriteFailure(source string) {
	Init()
	corpusWriteFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveLookupFailure counts one failed lookup that is not retried.
func ObserveLookupFailure(api string) {
	Init()
	corpusLookupFailuresTotal.WithLabelValues(api).Inc()
}

// ObserveSource counts one drained source.
func ObserveSource(kind, outcome string) {
	Init()
	corpusSourcesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	corpusRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one request served by the status listener.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	statusRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	statusRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
