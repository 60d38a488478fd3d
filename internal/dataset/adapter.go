package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/logging"
	"github.com/JakeFAU/fincorpus/internal/storage/postgres"
)

// ErrNoAdapter is returned when no adapter yields examples.
var ErrNoAdapter = errors.New("no schema adapter matched the database")

// Querier is the subset of pgxpool.Pool used by adapters.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Adapter extracts examples from one known table layout.
type Adapter interface {
	Name() string
	Extract(ctx context.Context, q Querier) ([]Example, error)
}

// SQLAdapter runs a query returning (text, label) rows.
type SQLAdapter struct {
	Table string
	Query string
	Args  []any
}

// ColumnAdapter reads textColumn and labelColumn from table.
func ColumnAdapter(table, textColumn, labelColumn string) (*SQLAdapter, error) {
	if err := checkIdentifiers(table, textColumn, labelColumn); err != nil {
		return nil, err
	}
	return &SQLAdapter{
		Table: table,
		Query: fmt.Sprintf("SELECT %s AS text, %s AS label FROM %s WHERE %s IS NOT NULL",
			textColumn, labelColumn, table, textColumn),
	}, nil
}

// ConstantAdapter reads textColumn from table and tags every row with label.
func ConstantAdapter(table, textColumn, label string) (*SQLAdapter, error) {
	if err := checkIdentifiers(table, textColumn); err != nil {
		return nil, err
	}
	return &SQLAdapter{
		Table: table,
		Query: fmt.Sprintf("SELECT %s AS text, $1::text AS label FROM %s WHERE %s IS NOT NULL",
			textColumn, table, textColumn),
		Args: []any{label},
	}, nil
}

// DefaultAdapters returns the known layouts in the order they are tried: chat messages,
// parsed messages, then transaction descriptions tagged "create".
func DefaultAdapters() []Adapter {
	messages, _ := ColumnAdapter("messages", "text", "intent")
	parsed, _ := ColumnAdapter("parsed_messages", "raw_text", "intent")
	transactions, _ := ConstantAdapter("transactions", "description", "create")
	return []Adapter{messages, parsed, transactions}
}

// Name returns the table the adapter reads.
func (a *SQLAdapter) Name() string { return a.Table }

// Extract runs the query. Rows with empty text are skipped; empty labels
// become UnknownLabel.
func (a *SQLAdapter) Extract(ctx context.Context, q Querier) ([]Example, error) {
	rows, err := q.Query(ctx, a.Query, a.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", a.Table, err)
	}
	defer rows.Close()

	var out []Example
	for rows.Next() {
		var text, name pgtype.Text
		if err := rows.Scan(&text, &name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", a.Table, err)
		}
		body := strings.TrimSpace(text.String)
		if !text.Valid || body == "" {
			continue
		}
		ex := Example{Label: UnknownLabel, Text: body}
		if v := strings.TrimSpace(name.String); name.Valid && v != "" {
			ex.Label = v
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", a.Table, err)
	}
	return out, nil
}

// FirstMatch tries adapters in order and returns the first that succeeds
// with at least one example.
func FirstMatch(ctx context.Context, q Querier, adapters []Adapter, logger *zap.Logger) (string, []Example, error) {
	logger = logging.OrNop(logger)
	for _, a := range adapters {
		examples, err := a.Extract(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			logger.Debug("schema adapter failed", zap.String("adapter", a.Name()), zap.Error(err))
			continue
		}
		if len(examples) == 0 {
			logger.Debug("schema adapter returned no rows", zap.String("adapter", a.Name()))
			continue
		}
		logger.Info("schema adapter matched", zap.String("adapter", a.Name()), zap.Int("examples", len(examples)))
		return a.Name(), examples, nil
	}
	return "", nil, ErrNoAdapter
}

func checkIdentifiers(names ...string) error {
	for _, n := range names {
		if !postgres.ValidIdentifier(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}
