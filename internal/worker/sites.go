package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/checkpoint"
	"github.com/JakeFAU/fincorpus/internal/crawler"
	"github.com/JakeFAU/fincorpus/internal/extract"
	"github.com/JakeFAU/fincorpus/internal/label"
	"github.com/JakeFAU/fincorpus/internal/logging"
	"github.com/JakeFAU/fincorpus/internal/manifest"
	"github.com/JakeFAU/fincorpus/internal/metrics"
	"github.com/JakeFAU/fincorpus/internal/progress"
	"github.com/JakeFAU/fincorpus/internal/segment"
)

// DefaultMaxLinesPerPage caps lines taken from a single page.
const DefaultMaxLinesPerPage = 10

// SiteCrawler walks one seed site.
type SiteCrawler interface {
	Crawl(ctx context.Context, seed crawler.Seed, visit crawler.Visitor) (crawler.Result, error)
}

// SiteConfig tunes page labeling.
type SiteConfig struct {
	MaxLinesPerPage int
	MinChars        int
}

// SiteRunner crawls manifest sites sequentially and labels their pages.
type SiteRunner struct {
	crawler   SiteCrawler
	extractor *extract.Extractor
	filter    *label.SiteFilter
	writer    LineWriter
	store     *checkpoint.Store
	tracker   *progress.Tracker
	cfg       SiteConfig
	logger    *zap.Logger
}

// NewSiteRunner wires a SiteRunner. store may be nil to disable checkpoints.
func NewSiteRunner(
	siteCrawler SiteCrawler,
	extractor *extract.Extractor,
	filter *label.SiteFilter,
	writer LineWriter,
	store *checkpoint.Store,
	tracker *progress.Tracker,
	cfg SiteConfig,
	logger *zap.Logger,
) *SiteRunner {
	if cfg.MaxLinesPerPage <= 0 {
		cfg.MaxLinesPerPage = DefaultMaxLinesPerPage
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = segment.MinCrawlChars
	}
	return &SiteRunner{
		crawler:   siteCrawler,
		extractor: extractor,
		filter:    filter,
		writer:    writer,
		store:     store,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("sites"),
	}
}

// Run crawls every entry in order. Pages recorded as processed by an earlier
// run are still crawled for link discovery but never labeled again.
func (r *SiteRunner) Run(ctx context.Context, entries []manifest.Entry, resume bool) (Summary, error) {
	var summary Summary

	ledger := checkpoint.NewCrawlLedger()
	if resume && r.store != nil {
		loaded, err := checkpoint.LoadCrawlLedger(r.store, r.logger)
		if err != nil {
			return summary, err
		}
		ledger = loaded
	}
	saver := persister{store: r.store, logger: r.logger}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Sources++
		lines, err := r.crawlSite(ctx, entry, ledger, saver)
		summary.Lines += lines
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				saver.save(ledger)
				return summary, err
			}
			r.logger.Warn("Failed crawling site", zap.String("seed", entry.Seed.URL), zap.Error(err))
		}
	}
	saver.save(ledger)
	return summary, nil
}

func (r *SiteRunner) crawlSite(ctx context.Context, entry manifest.Entry, ledger *checkpoint.CrawlLedger, saver persister) (int, error) {
	seed := entry.Seed
	site := ledger.Site(seed.URL)
	logger := r.logger.With(zap.String("seed", seed.URL), zap.String("category", entry.Category))
	r.tracker.Begin("site", seed.URL)

	if entry.MaxLines > 0 && site.Written >= entry.MaxLines {
		logger.Info("Site already at target, skipping", zap.Int("written", site.Written))
		r.tracker.End(progress.OutcomeCapped)
		metrics.ObserveSource("site", progress.OutcomeCapped)
		return 0, nil
	}

	logger.Info("Crawling site", zap.Int("limit", seed.Limit))
	lines := 0
	visit := func(_ context.Context, page crawler.Page) {
		r.tracker.AddPages(1)
		if ledger.Processed(page.URL) {
			logger.Debug("Page already processed", zap.String("url", page.URL))
			return
		}
		if entry.MaxLines > 0 && site.Written >= entry.MaxLines {
			return
		}
		// The page is recorded before any of its lines so an interrupted run
		// never relabels it.
		ledger.MarkProcessed(page.URL)
		saver.save(ledger)
		lines += r.labelPage(logger, page, entry, site, func() { saver.save(ledger) })
	}

	result, err := r.crawler.Crawl(ctx, seed, visit)
	outcome := progress.OutcomeCompleted
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = progress.OutcomeCanceled
	case err != nil:
		outcome = progress.OutcomeFailed
		r.tracker.Fail(err)
	case entry.MaxLines > 0 && site.Written >= entry.MaxLines:
		outcome = progress.OutcomeCapped
	}
	r.tracker.End(outcome)
	metrics.ObserveSource("site", outcome)
	logger.Info("Site drained",
		zap.String("outcome", outcome),
		zap.Int("lines", lines),
		zap.Int("visited", len(result.Visited)),
		zap.Int("failed", result.Failed),
		zap.Int("blocked", result.Blocked),
		zap.Int("cache_hits", result.CacheHits))
	return lines, err
}

// labelPage writes accepted sentences from one page and returns the count.
// onWrite runs after every written line.
func (r *SiteRunner) labelPage(
	logger *zap.Logger,
	page crawler.Page,
	entry manifest.Entry,
	site *checkpoint.SiteProgress,
	onWrite func(),
) int {
	text, ok := r.extractor.Document(page.Body, page.ContentType, page.URL)
	if !ok {
		metrics.ObserveExtractionFailure("html")
		return 0
	}
	if r.filter.PageExcluded(text) {
		logger.Debug("Page excluded by keyword", zap.String("url", page.URL))
		return 0
	}

	written := 0
	for _, sentence := range segment.Split(text, r.cfg.MinChars) {
		name, ok := r.filter.Accept(sentence, entry.Category)
		if !ok {
			continue
		}
		if err := r.writer.Write(name, sentence); err != nil {
			logger.Warn("Failed to write line", zap.String("url", page.URL), zap.Error(err))
			metrics.ObserveWriteFailure("sites")
			continue
		}
		written++
		site.Written++
		onWrite()
		r.tracker.AddLines(1)
		metrics.ObserveLine("sites", name)
		if written >= r.cfg.MaxLinesPerPage {
			break
		}
		if entry.MaxLines > 0 && site.Written >= entry.MaxLines {
			break
		}
	}
	return written
}
