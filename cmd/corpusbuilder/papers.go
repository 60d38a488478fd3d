package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/checkpoint"
	"github.com/JakeFAU/fincorpus/internal/config"
	"github.com/JakeFAU/fincorpus/internal/extract"
	collyfetcher "github.com/JakeFAU/fincorpus/internal/fetcher/colly"
	"github.com/JakeFAU/fincorpus/internal/label"
	"github.com/JakeFAU/fincorpus/internal/output"
	"github.com/JakeFAU/fincorpus/internal/papers"
	"github.com/JakeFAU/fincorpus/internal/policy/ratelimit"
	"github.com/JakeFAU/fincorpus/internal/retry"
	"github.com/JakeFAU/fincorpus/internal/worker"
)

// papersBindings maps config keys to the papers flags that override them.
var papersBindings = map[string]string{
	"api.email":         "email",
	"api.max_per_query": "max-per-query",
	"api.rows":          "rows",
	"output.path":       "out",
	"output.resume":     "resume",
	"output.state_path": "state-file",
	"labels.file":       "labels",
}

func newPapersCmd(root *rootOptions) *cobra.Command {
	var queries string
	cmd := &cobra.Command{
		Use:   "papers",
		Short: "Label sentences from CrossRef abstracts and open-access papers",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := splitQueries(queries)
			if len(list) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "papers: --queries is required")
				return errUsage
			}
			rt, err := bootstrap(cmd.Context(), cmd.Name(), root.configPath, config.WithFlags(cmd.Flags(), papersBindings))
			if err != nil {
				return err
			}
			defer rt.close()
			return runPapers(cmd.Context(), rt, list)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&queries, "queries", "", "Comma-separated search queries")
	flags.String("email", "", "Contact email sent to CrossRef and Unpaywall")
	flags.String("out", "", "Training file to write")
	flags.Int("max-per-query", papers.DefaultCap, "Lines to collect per query")
	flags.Int("rows", papers.DefaultRows, "CrossRef page size")
	flags.Bool("resume", false, "Resume from the checkpoint and append to the training file")
	flags.String("state-file", "", "Checkpoint path (default <out>.state.json)")
	flags.String("labels", "", "Label table file (default built-in scholarly table)")
	return cmd
}

func runPapers(ctx context.Context, rt *session, list []string) error {
	cfg := rt.cfg

	if cfg.Output.Path == "" {
		return fmt.Errorf("output path is required (--out or output.path)")
	}
	table, err := label.Resolve(cfg.Labels.File, presetOr(cfg.Labels.Preset, label.PresetScholarly))
	if err != nil {
		return fmt.Errorf("label table: %w", err)
	}
	writer, err := output.Open(cfg.Output.Path, cfg.Output.Resume)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			rt.logger.Warn("Failed closing training file", zap.Error(cerr))
		}
	}()

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	})
	client := papers.ClientConfig{
		Email:     cfg.API.Email,
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
		Limiter:   limiter,
	}
	crossrefCfg := client
	crossrefCfg.BaseURL = cfg.API.CrossRefURL

	var locations papers.LocationFinder
	if cfg.API.Email != "" {
		unpaywallCfg := client
		unpaywallCfg.BaseURL = cfg.API.UnpaywallURL
		locations = papers.NewUnpaywall(unpaywallCfg)
	} else {
		rt.logger.Warn("No contact email configured; Unpaywall lookups disabled, abstracts only")
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.HTTPTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
	})
	extractor := extract.New(extract.Config{
		ScratchDir:   cfg.Extract.ScratchDir,
		HTMLStrategy: cfg.Extract.HTMLStrategy,
		MaxPDFPages:  cfg.Extract.MaxPDFPages,
	}, rt.logger)
	policy := retry.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay(), cfg.Retry.Jitter, rt.clock)

	paginator := papers.NewPaginator(papers.Config{
		Rows:       cfg.API.Rows,
		Cap:        cfg.API.MaxPerQuery,
		MaxOffset:  cfg.API.MaxOffset,
		MinChars:   cfg.API.MinSentenceChars,
		Politeness: cfg.API.Politeness(),
	}, papers.NewCrossRef(crossrefCfg), locations, fetcher, extractor, table, policy, rt.clock, rt.logger)

	store := checkpoint.NewStore(statePath(cfg.Output))
	runner := worker.NewQueryRunner(paginator, writer, store, rt.tracker, rt.logger)
	summary, err := runner.Run(ctx, list, cfg.Output.Resume)
	rt.logger.Info("Papers run complete",
		zap.Int("queries", summary.Sources),
		zap.Int("lines", summary.Lines),
		zap.String("output", cfg.Output.Path),
		zap.String("state", store.Path()))
	if err != nil {
		rt.tracker.Fail(err)
	}
	return err
}

// splitQueries splits a comma-separated list, dropping blanks.
func splitQueries(raw string) []string {
	var out []string
	for _, q := range strings.Split(raw, ",") {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func statePath(cfg config.OutputConfig) string {
	if cfg.StatePath != "" {
		return cfg.StatePath
	}
	return checkpoint.DefaultPath(cfg.Path)
}

func presetOr(preset, fallback string) string {
	if preset != "" {
		return preset
	}
	return fallback
}

