package papers

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/checkpoint"
	"github.com/JakeFAU/fincorpus/internal/crawler"
	"github.com/JakeFAU/fincorpus/internal/extract"
	"github.com/JakeFAU/fincorpus/internal/label"
	"github.com/JakeFAU/fincorpus/internal/logging"
	"github.com/JakeFAU/fincorpus/internal/metrics"
	"github.com/JakeFAU/fincorpus/internal/retry"
	"github.com/JakeFAU/fincorpus/internal/segment"
)

// Defaults for a Paginator.
const (
	DefaultRows      = 50
	DefaultCap       = 50
	// DefaultMaxOffset is also the ceiling; larger values are clamped.
	DefaultMaxOffset = 1000
)

// WorkLister pages search results.
type WorkLister interface {
	Works(ctx context.Context, query string, rows, offset int) ([]Work, error)
}

// LocationFinder resolves a DOI to open-access locations.
type LocationFinder interface {
	Lookup(ctx context.Context, doi string) (*Record, error)
}

// Sink receives accepted sentences and persists progress.
type Sink interface {
	// Emit writes one labeled line. An error means the line was not written.
	Emit(label, sentence string) error
	// Snapshot persists the current progress. Failures are the sink's concern.
	Snapshot()
}

// Config tunes a Paginator.
type Config struct {
	Rows int
	// Cap is the per-query line budget.
	Cap       int
	MaxOffset int
	// MinChars is the minimum sentence length in runes.
	MinChars int
	// Politeness is the pause after every processed work.
	Politeness time.Duration
}

// Stats summarizes one query run.
type Stats struct {
	Pages     int
	Works     int
	Skipped   int
	Emitted   int
	Downloads int
	Abandoned bool
	Capped    bool
}

// Paginator drains one query at a time.
type Paginator struct {
	cfg       Config
	works     WorkLister
	locations LocationFinder
	fetcher   crawler.Fetcher
	extractor *extract.Extractor
	table     *label.Table
	policy    *retry.Policy
	sleeper   crawler.Sleeper
	logger    *zap.Logger
}

// NewPaginator wires a Paginator. locations and fetcher may be nil, in which
// case only CrossRef abstracts are used.
func NewPaginator(
	cfg Config,
	works WorkLister,
	locations LocationFinder,
	fetcher crawler.Fetcher,
	extractor *extract.Extractor,
	table *label.Table,
	policy *retry.Policy,
	sleeper crawler.Sleeper,
	logger *zap.Logger,
) *Paginator {
	if cfg.Rows <= 0 {
		cfg.Rows = DefaultRows
	}
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultCap
	}
	if cfg.MaxOffset <= 0 || cfg.MaxOffset > DefaultMaxOffset {
		cfg.MaxOffset = DefaultMaxOffset
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = segment.MinPaperChars
	}
	if policy == nil {
		policy = retry.New(0, 0, false, nil)
	}
	return &Paginator{
		cfg:       cfg,
		works:     works,
		locations: locations,
		fetcher:   fetcher,
		extractor: extractor,
		table:     table,
		policy:    policy,
		sleeper:   sleeper,
		logger:    logging.OrNop(logger).Named("paginator"),
	}
}

// Run drains query into sink, resuming from progress. progress is mutated in
// place; sink.Snapshot is called whenever it changes in a way worth keeping.
// A canceled context stops the run with ctx.Err() after the last completed
// emission was snapshotted.
func (p *Paginator) Run(ctx context.Context, query string, progress *checkpoint.QueryProgress, sink Sink) (Stats, error) {
	var stats Stats
	logger := p.logger.With(zap.String("query", query))

	if progress.Written >= p.cfg.Cap {
		logger.Info("Query already at target, skipping",
			zap.Int("written", progress.Written), zap.Int("cap", p.cfg.Cap))
		stats.Capped = true
		return stats, nil
	}

	for progress.Written < p.cfg.Cap && progress.Offset < p.cfg.MaxOffset {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		items, ok := p.page(ctx, logger, query, progress.Offset, sink)
		if !ok {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			logger.Warn("Giving up on query", zap.Int("offset", progress.Offset))
			stats.Abandoned = true
			break
		}
		if len(items) == 0 {
			break
		}
		stats.Pages++

		complete := true
		for _, work := range items {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if progress.Written >= p.cfg.Cap {
				complete = false
				break
			}
			doi := strings.TrimSpace(work.DOI)
			if doi == "" || !progress.MarkSeen(doi) {
				stats.Skipped++
				continue
			}
			stats.Works++
			p.processWork(ctx, logger, doi, work, progress, sink, &stats)
			if progress.Written >= p.cfg.Cap {
				continue
			}
			if p.sleeper != nil && p.cfg.Politeness > 0 {
				if err := p.sleeper.Sleep(ctx, p.cfg.Politeness); err != nil {
					return stats, err
				}
			}
		}
		if !complete {
			break
		}
		progress.Offset += p.cfg.Rows
		sink.Snapshot()
	}

	stats.Capped = progress.Written >= p.cfg.Cap
	sink.Snapshot()
	logger.Info("Query finished",
		zap.Int("emitted", stats.Emitted),
		zap.Int("written", progress.Written),
		zap.Int("offset", progress.Offset),
		zap.Bool("abandoned", stats.Abandoned))
	return stats, nil
}

func (p *Paginator) page(ctx context.Context, logger *zap.Logger, query string, offset int, sink Sink) ([]Work, bool) {
	return retry.Do(ctx, p.policy,
		func(ctx context.Context) ([]Work, error) {
			return p.works.Works(ctx, query, p.cfg.Rows, offset)
		},
		func(attempt int, err error) {
			logger.Warn("CrossRef query failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", p.policy.MaxAttempts),
				zap.Int("offset", offset),
				zap.Error(err))
			metrics.ObserveAPIRetry("crossref")
			sink.Snapshot()
		})
}

func (p *Paginator) processWork(
	ctx context.Context,
	logger *zap.Logger,
	doi string,
	work Work,
	progress *checkpoint.QueryProgress,
	sink Sink,
	stats *Stats,
) {
	if work.Abstract != "" {
		text := extract.Markup(work.Abstract)
		if text == "" {
			metrics.ObserveExtractionFailure("abstract")
		}
		p.emitText(logger, text, progress, sink, stats)
		if progress.Written >= p.cfg.Cap {
			return
		}
	}

	if p.locations == nil || p.fetcher == nil {
		return
	}
	rec, err := p.locations.Lookup(ctx, doi)
	if err != nil {
		logger.Debug("Unpaywall lookup failed", zap.String("doi", doi), zap.Error(err))
		metrics.ObserveLookupFailure("unpaywall")
		return
	}
	target, isPDF := rec.BestLocation()
	if target == "" {
		return
	}
	text, ok := p.download(ctx, logger, target, isPDF)
	if !ok {
		return
	}
	stats.Downloads++
	p.emitText(logger, text, progress, sink, stats)
}

func (p *Paginator) download(ctx context.Context, logger *zap.Logger, target string, isPDF bool) (string, bool) {
	kind := "html"
	if isPDF {
		kind = "pdf"
	}
	logger.Info("Downloading open-access copy", zap.String("url", target), zap.String("kind", kind))
	resp, err := p.fetcher.Fetch(ctx, target)
	if err != nil {
		logger.Debug("Download failed", zap.String("url", target), zap.Error(err))
		return "", false
	}
	if !resp.OK() {
		logger.Debug("Download returned non-success status",
			zap.String("url", target), zap.Int("status", resp.StatusCode))
		return "", false
	}
	metrics.ObserveDownload(target, len(resp.Body))

	var (
		text string
		ok   bool
	)
	if isPDF {
		text, ok = p.extractor.PDF(resp.Body)
	} else {
		text, ok = p.extractor.Document(resp.Body, resp.ContentType, resp.URL)
	}
	if !ok {
		metrics.ObserveExtractionFailure(kind)
		return "", false
	}
	return text, true
}

func (p *Paginator) emitText(logger *zap.Logger, text string, progress *checkpoint.QueryProgress, sink Sink, stats *Stats) {
	for _, sentence := range segment.Split(text, p.cfg.MinChars) {
		name, ok := p.table.Label(sentence)
		if !ok {
			continue
		}
		if err := sink.Emit(name, sentence); err != nil {
			logger.Warn("Failed to write line", zap.String("label", name), zap.Error(err))
			continue
		}
		progress.Written++
		stats.Emitted++
		metrics.ObserveLine("papers", name)
		sink.Snapshot()
		if progress.Written >= p.cfg.Cap {
			return
		}
	}
}
