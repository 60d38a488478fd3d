package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/metrics"
)

// QueueFactor bounds pending entries relative to the page limit.
const QueueFactor = 3

// Visitor receives every successfully fetched page in visitation order.
type Visitor func(ctx context.Context, page Page)

// Frontier runs breadth-first crawls.
type Frontier struct {
	fetcher Fetcher
	sleeper Sleeper
	robots  RobotsPolicy
	cache   PageCache
	logger  *zap.Logger
}

// Option customizes a Frontier.
type Option func(*Frontier)

// WithRobots gates every URL through policy.
func WithRobots(policy RobotsPolicy) Option {
	return func(f *Frontier) { f.robots = policy }
}

// WithCache serves and stores pages through cache.
func WithCache(cache PageCache) Option {
	return func(f *Frontier) { f.cache = cache }
}

// NewFrontier wires a Frontier.
func NewFrontier(fetcher Fetcher, sleeper Sleeper, logger *zap.Logger, opts ...Option) *Frontier {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Frontier{
		fetcher: fetcher,
		sleeper: sleeper,
		logger:  logger.Named("frontier"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Crawl visits up to seed.Limit pages reachable from seed.URL within the
// seed's registrable domain. It only returns an error for an invalid seed or
// a canceled context; page failures are recorded in the Result.
func (f *Frontier) Crawl(ctx context.Context, seed Seed, visit Visitor) (Result, error) {
	var result Result

	start, err := NormalizeURL(seed.URL)
	if err != nil {
		return result, fmt.Errorf("invalid seed: %w", err)
	}
	seedURL, err := url.Parse(start)
	if err != nil {
		return result, fmt.Errorf("invalid seed: %w", err)
	}
	limit := seed.Limit
	if limit <= 0 {
		limit = 1
	}

	visited := newVisitTracker()
	queue := newBoundedQueue(QueueFactor * limit)
	queue.Push(start, 0)
	result.MaxQueued = queue.Len()

	logger := f.logger.With(zap.String("seed", start), zap.Int("limit", limit))

	for visited.Len() < limit {
		if err := ctx.Err(); err != nil {
			result.Visited = visited.order
			return result, fmt.Errorf("crawl canceled: %w", err)
		}
		next, ok := queue.Pop()
		if !ok {
			break
		}
		if !visited.MarkIfNew(next) {
			continue
		}

		if f.robots != nil && !f.robots.Allowed(ctx, next) {
			logger.Debug("blocked by robots.txt", zap.String("url", next))
			metrics.ObservePage(next, "robots_blocked", 0)
			result.Blocked++
			continue
		}

		page, fetched, ok := f.load(ctx, next, logger)
		if fetched {
			if err := pause(ctx, f.sleeper, seed.Politeness); err != nil {
				result.Visited = visited.order
				return result, fmt.Errorf("crawl canceled: %w", err)
			}
		}
		if !ok {
			result.Failed++
			continue
		}
		result.Succeeded++
		if page.FromCache {
			result.CacheHits++
		}

		if visit != nil {
			visit(ctx, page)
		}

		f.enqueueLinks(page, seedURL, seed.LinkSelector, visited, queue, logger)
		if queue.Len() > result.MaxQueued {
			result.MaxQueued = queue.Len()
		}
	}

	result.Visited = visited.order
	return result, nil
}

// load returns the page from cache or network. fetched reports whether the
// network was used; ok reports whether a usable 2xx page was obtained.
func (f *Frontier) load(ctx context.Context, rawURL string, logger *zap.Logger) (page Page, fetched, ok bool) {
	if f.cache != nil {
		cached, hit, err := f.cache.Get(ctx, rawURL)
		if err != nil {
			logger.Debug("page cache read failed", zap.String("url", rawURL), zap.Error(err))
		}
		if hit {
			metrics.ObservePage(rawURL, "cached", 0)
			return Page{URL: rawURL, ContentType: cached.ContentType, Body: cached.Body, FromCache: true}, false, true
		}
	}

	resp, err := f.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Info("fetch failed", zap.String("url", rawURL), zap.Error(err))
			metrics.ObservePage(rawURL, "error", 0)
		}
		return Page{}, true, false
	}
	if !resp.OK() {
		logger.Info("non-success status", zap.String("url", rawURL), zap.Int("status", resp.StatusCode))
		metrics.ObservePage(rawURL, strconv.Itoa(resp.StatusCode), len(resp.Body))
		return Page{}, true, false
	}
	metrics.ObservePage(rawURL, "ok", len(resp.Body))

	page = Page{URL: rawURL, ContentType: resp.ContentType, Body: resp.Body}
	if f.cache != nil {
		cp := CachedPage{URL: rawURL, ContentType: resp.ContentType, Body: resp.Body}
		if err := f.cache.Put(ctx, cp); err != nil {
			logger.Debug("page cache write failed", zap.String("url", rawURL), zap.Error(err))
		}
	}
	return page, true, true
}

func (f *Frontier) enqueueLinks(
	page Page,
	seedURL *url.URL,
	selector string,
	visited *visitTracker,
	queue *boundedQueue,
	logger *zap.Logger,
) {
	if !isHTML(page) {
		return
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return
	}
	links, err := DiscoverLinks(page.Body, base, selector)
	if err != nil {
		logger.Debug("link discovery failed", zap.String("url", page.URL), zap.Error(err))
		return
	}
	for _, link := range links {
		norm, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		u, err := url.Parse(norm)
		if err != nil || !SameSite(seedURL, u) {
			continue
		}
		if visited.Has(norm) {
			continue
		}
		if visited.Len()+queue.Len() >= queue.capacity {
			return
		}
		queue.Push(norm, visited.Len())
	}
}

func isHTML(page Page) bool {
	ct := strings.ToLower(page.ContentType)
	if ct == "" {
		return !strings.HasPrefix(string(page.Body), "%PDF")
	}
	return strings.Contains(ct, "html")
}
