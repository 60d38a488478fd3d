package crawler

import (
	"net/http"
	"time"
)

// FetchResponse captures the result of a single HTTP GET.
type FetchResponse struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// OK reports whether the response has a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// CachedPage is a page persisted in a PageCache.
type CachedPage struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Seed describes one site crawl.
type Seed struct {
	URL   string
	Limit int
	// Politeness is the pause applied after every network fetch.
	Politeness time.Duration
	// LinkSelector restricts link discovery to matching elements (or their
	// first descendant anchor). Empty means every a[href].
	LinkSelector string
}

// Page is a successfully fetched page handed to the visitor.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
	FromCache   bool
}

// Result summarizes one crawl.
type Result struct {
	// Visited lists URLs in visitation order, including failures.
	Visited   []string
	Succeeded int
	Failed    int
	Blocked   int
	CacheHits int
	// MaxQueued is the largest pending queue length observed.
	MaxQueued int
}
