package checkpoint

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/logging"
)

// ErrUnsupportedSchema is returned for state written by an incompatible version.
var ErrUnsupportedSchema = errors.New("unsupported checkpoint schema")

// LoadQueryLedger restores a query ledger. Missing or corrupt files yield an
// empty ledger; only an unknown schema tag is an error.
func LoadQueryLedger(store *Store, logger *zap.Logger) (*QueryLedger, error) {
	logger = logging.OrNop(logger)
	ledger := NewQueryLedger()
	if err := store.Load(ledger); err != nil {
		logger.Warn("checkpoint unreadable; starting empty", zap.String("path", store.Path()), zap.Error(err))
		return NewQueryLedger(), nil
	}
	if ledger.Schema != QuerySchema {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnsupportedSchema, ledger.Schema, store.Path())
	}
	return ledger, nil
}

// LoadCrawlLedger restores a crawl ledger with the same rules as LoadQueryLedger.
func LoadCrawlLedger(store *Store, logger *zap.Logger) (*CrawlLedger, error) {
	logger = logging.OrNop(logger)
	ledger := NewCrawlLedger()
	if err := store.Load(ledger); err != nil {
		logger.Warn("checkpoint unreadable; starting empty", zap.String("path", store.Path()), zap.Error(err))
		return NewCrawlLedger(), nil
	}
	if ledger.Schema != CrawlSchema {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnsupportedSchema, ledger.Schema, store.Path())
	}
	return ledger, nil
}
