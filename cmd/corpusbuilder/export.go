package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/config"
	"github.com/JakeFAU/fincorpus/internal/dataset"
	"github.com/JakeFAU/fincorpus/internal/keywords"
	"github.com/JakeFAU/fincorpus/internal/metrics"
	"github.com/JakeFAU/fincorpus/internal/output"
	"github.com/JakeFAU/fincorpus/internal/progress"
	"github.com/JakeFAU/fincorpus/internal/storage/postgres"
)

// exportBindings maps config keys to the flags shared by the export commands.
var exportBindings = map[string]string{
	"db.dsn": "dsn",
}

// addSourceFlags registers the example source flags and returns the CSV path.
func addSourceFlags(cmd *cobra.Command) *string {
	csvPath := cmd.Flags().String("csv", "", "Labeled CSV export")
	cmd.Flags().String("dsn", "", "Postgres connection string")
	return csvPath
}

func newKeywordsCmd(root *rootOptions) *cobra.Command {
	var (
		out  string
		topK int
	)
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Build a per-label keyword report from labeled examples",
		Args:  noArgs,
	}
	csvPath := addSourceFlags(cmd)
	cmd.Flags().StringVar(&out, "out", "", "Keyword report to write")
	cmd.Flags().IntVar(&topK, "topk", keywords.DefaultTopK, "Keywords kept per label")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if out == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "keywords: --out is required")
			return errUsage
		}
		if topK <= 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "keywords: --topk must be > 0")
			return errUsage
		}
		rt, err := bootstrap(cmd.Context(), cmd.Name(), root.configPath, config.WithFlags(cmd.Flags(), exportBindings))
		if err != nil {
			return err
		}
		defer rt.close()
		return runKeywords(cmd.Context(), rt, *csvPath, out, topK)
	}
	return cmd
}

func runKeywords(ctx context.Context, rt *session, csvPath, out string, topK int) error {
	examples, err := loadExamples(ctx, rt, csvPath)
	if err != nil {
		return err
	}
	model := keywords.Build(examples, topK)

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := model.WriteReport(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	rt.logger.Info("Keyword report written",
		zap.String("path", out),
		zap.Int("labels", len(model.Rules)),
		zap.Int("examples", len(examples)))
	return nil
}

func newDatasetCmd(root *rootOptions) *cobra.Command {
	var (
		out         string
		maxExamples int
	)
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Export labeled examples as fastText lines",
		Args:  noArgs,
	}
	csvPath := addSourceFlags(cmd)
	cmd.Flags().StringVar(&out, "out", "", "Training file to write")
	cmd.Flags().IntVar(&maxExamples, "max-examples", 0, "Stop after this many lines; 0 writes all")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if out == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "dataset: --out is required")
			return errUsage
		}
		rt, err := bootstrap(cmd.Context(), cmd.Name(), root.configPath, config.WithFlags(cmd.Flags(), exportBindings))
		if err != nil {
			return err
		}
		defer rt.close()
		return runDataset(cmd.Context(), rt, *csvPath, out, maxExamples)
	}
	return cmd
}

func runDataset(ctx context.Context, rt *session, csvPath, out string, maxExamples int) error {
	examples, err := loadExamples(ctx, rt, csvPath)
	if err != nil {
		return err
	}
	writer, err := output.Open(out, false)
	if err != nil {
		return err
	}
	rt.tracker.Begin("dataset", out)
	written := 0
	for _, ex := range examples {
		if maxExamples > 0 && written >= maxExamples {
			break
		}
		lbl := fastTextLabel(ex.Label)
		if err := writer.Write(lbl, ex.Text); err != nil {
			if errors.Is(err, output.ErrEmptyLine) {
				continue
			}
			_ = writer.Close()
			rt.tracker.End(progress.OutcomeFailed)
			return err
		}
		written++
		rt.tracker.AddLines(1)
		metrics.ObserveLine("dataset", lbl)
	}
	rt.tracker.End(progress.OutcomeCompleted)
	if err := writer.Close(); err != nil {
		return err
	}
	rt.logger.Info("Dataset written", zap.String("path", out), zap.Int("lines", written))
	return nil
}

// loadExamples reads the CSV when given, otherwise tries the database adapters.
func loadExamples(ctx context.Context, rt *session, csvPath string) ([]dataset.Example, error) {
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		examples, err := dataset.ReadCSV(f)
		if err != nil {
			return nil, err
		}
		rt.logger.Info("Loaded CSV examples", zap.String("path", csvPath), zap.Int("examples", len(examples)))
		return examples, nil
	}
	if rt.cfg.DB.DSN == "" {
		return nil, fmt.Errorf("one of --csv or --dsn (db.dsn) is required")
	}
	pool, err := postgres.NewPool(ctx, postgres.Config{DSN: rt.cfg.DB.DSN, MaxConns: rt.cfg.DB.MaxConns})
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	name, examples, err := dataset.FirstMatch(ctx, pool, dataset.DefaultAdapters(), rt.logger)
	if err != nil {
		return nil, err
	}
	rt.logger.Info("Loaded database examples", zap.String("adapter", name), zap.Int("examples", len(examples)))
	return examples, nil
}

// fastTextLabel makes a label safe for a single-token fastText marker.
func fastTextLabel(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return dataset.UnknownLabel
	}
	return strings.Join(fields, "_")
}
