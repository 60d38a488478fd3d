package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/checkpoint"
	"github.com/JakeFAU/fincorpus/internal/logging"
	"github.com/JakeFAU/fincorpus/internal/metrics"
	"github.com/JakeFAU/fincorpus/internal/papers"
	"github.com/JakeFAU/fincorpus/internal/progress"
)

// QueryPaginator drains one query.
type QueryPaginator interface {
	Run(ctx context.Context, query string, progress *checkpoint.QueryProgress, sink papers.Sink) (papers.Stats, error)
}

// QueryRunner processes search queries sequentially.
type QueryRunner struct {
	paginator QueryPaginator
	writer    LineWriter
	store     *checkpoint.Store
	tracker   *progress.Tracker
	logger    *zap.Logger
}

// NewQueryRunner wires a QueryRunner. store may be nil to disable checkpoints.
func NewQueryRunner(
	paginator QueryPaginator,
	writer LineWriter,
	store *checkpoint.Store,
	tracker *progress.Tracker,
	logger *zap.Logger,
) *QueryRunner {
	return &QueryRunner{
		paginator: paginator,
		writer:    writer,
		store:     store,
		tracker:   tracker,
		logger:    logging.OrNop(logger).Named("queries"),
	}
}

// Run processes queries in order. With resume set, progress is restored from
// the checkpoint; otherwise every query starts empty. Only an unreadable
// checkpoint schema or a canceled context is returned as an error.
func (r *QueryRunner) Run(ctx context.Context, queries []string, resume bool) (Summary, error) {
	var summary Summary

	ledger := checkpoint.NewQueryLedger()
	if resume && r.store != nil {
		loaded, err := checkpoint.LoadQueryLedger(r.store, r.logger)
		if err != nil {
			return summary, err
		}
		ledger = loaded
	}
	saver := persister{store: r.store, logger: r.logger}

	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r.tracker.Begin("query", query)
		r.logger.Info("Searching CrossRef", zap.String("query", query))

		sink := &querySink{writer: r.writer, tracker: r.tracker, snapshot: func() { saver.save(ledger) }}
		stats, err := r.paginator.Run(ctx, query, ledger.Progress(query), sink)
		summary.Sources++
		summary.Lines += stats.Emitted
		r.tracker.AddPages(stats.Works)

		outcome := queryOutcome(stats, err)
		r.tracker.End(outcome)
		metrics.ObserveSource("query", outcome)
		r.logger.Info("Query drained",
			zap.String("query", query),
			zap.String("outcome", outcome),
			zap.Int("lines", stats.Emitted),
			zap.Int("works", stats.Works))

		if err != nil {
			saver.save(ledger)
			return summary, err
		}
	}
	return summary, nil
}

func queryOutcome(stats papers.Stats, err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return progress.OutcomeCanceled
	case err != nil:
		return progress.OutcomeFailed
	case stats.Abandoned:
		return progress.OutcomeAbandoned
	case stats.Capped:
		return progress.OutcomeCapped
	default:
		return progress.OutcomeCompleted
	}
}

type querySink struct {
	writer   LineWriter
	tracker  *progress.Tracker
	snapshot func()
}

func (s *querySink) Emit(label, sentence string) error {
	if err := s.writer.Write(label, sentence); err != nil {
		metrics.ObserveWriteFailure("papers")
		return err
	}
	s.tracker.AddLines(1)
	return nil
}

func (s *querySink) Snapshot() { s.snapshot() }
