// Package worker drives acquisition runs: it loads resumable state, walks the
// configured sources in order, and keeps the training file and checkpoint in
// lockstep.
package worker

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/checkpoint"
	"github.com/JakeFAU/fincorpus/internal/metrics"
)

// LineWriter appends one training line.
type LineWriter interface {
	Write(label, text string) error
}

// Summary totals one run.
type Summary struct {
	Sources int
	Lines   int
}

// persister saves a ledger and swallows failures after logging them.
type persister struct {
	store  *checkpoint.Store
	logger *zap.Logger
}

func (p persister) save(ledger any) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(ledger); err != nil {
		p.logger.Warn("Failed to save checkpoint", zap.String("path", p.store.Path()), zap.Error(err))
		metrics.ObserveCheckpointFailure()
	}
}
