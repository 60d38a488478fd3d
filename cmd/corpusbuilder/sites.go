package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/checkpoint"
	"github.com/JakeFAU/fincorpus/internal/config"
	"github.com/JakeFAU/fincorpus/internal/crawler"
	"github.com/JakeFAU/fincorpus/internal/extract"
	collyfetcher "github.com/JakeFAU/fincorpus/internal/fetcher/colly"
	"github.com/JakeFAU/fincorpus/internal/label"
	"github.com/JakeFAU/fincorpus/internal/manifest"
	"github.com/JakeFAU/fincorpus/internal/output"
	"github.com/JakeFAU/fincorpus/internal/storage/local"
	"github.com/JakeFAU/fincorpus/internal/worker"
)

// sitesBindings maps config keys to the sites flags that override them.
var sitesBindings = map[string]string{
	"crawl.default_limit": "limit-per-site",
	"output.path":         "out",
	"output.resume":       "resume",
	"output.state_path":   "state-file",
	"labels.file":         "labels",
}

func newSitesCmd(root *rootOptions) *cobra.Command {
	var manifestPath string
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Crawl a site manifest and label page sentences",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if manifestPath == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "sites: --manifest is required")
				return errUsage
			}
			rt, err := bootstrap(cmd.Context(), cmd.Name(), root.configPath, config.WithFlags(cmd.Flags(), sitesBindings))
			if err != nil {
				return err
			}
			defer rt.close()
			return runSites(cmd.Context(), rt, manifestPath)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&manifestPath, "manifest", "", "Site manifest (JSON or YAML)")
	flags.String("out", "", "Training file to write")
	flags.Int("limit-per-site", 3, "Pages to visit per site when the manifest sets no limit")
	flags.Bool("resume", false, "Resume from the checkpoint and append to the training file")
	flags.String("state-file", "", "Checkpoint path (default <out>.state.json)")
	flags.String("labels", "", "Label table file (default built-in web table)")
	return cmd
}

func runSites(ctx context.Context, rt *session, manifestPath string) error {
	cfg := rt.cfg

	if cfg.Output.Path == "" {
		return fmt.Errorf("output path is required (--out or output.path)")
	}
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	entries, err := m.Entries(manifest.Defaults{
		Limit:      cfg.Crawl.DefaultLimit,
		Politeness: cfg.Crawl.Politeness(),
	})
	if err != nil {
		return err
	}
	table, err := label.Resolve(cfg.Labels.File, presetOr(cfg.Labels.Preset, label.PresetWeb))
	if err != nil {
		return fmt.Errorf("label table: %w", err)
	}
	cache, err := local.New(local.Config{BaseDir: pageCacheDir(cfg.Crawl, cfg.Output.Path)})
	if err != nil {
		return fmt.Errorf("page cache: %w", err)
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

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:         cfg.HTTP.UserAgent,
		Timeout:           cfg.HTTPTimeout(),
		MaxBodySize:       cfg.HTTP.MaxBodyBytes,
		SameSiteRedirects: true,
	})
	robots := crawler.NewRobotsEnforcer(cfg.Crawl.RespectRobots, cfg.HTTP.UserAgent, cfg.Crawl.RobotsTimeout(), rt.logger)
	frontier := crawler.NewFrontier(fetcher, rt.clock, rt.logger, crawler.WithRobots(robots), crawler.WithCache(cache))
	extractor := extract.New(extract.Config{
		ScratchDir:   cfg.Extract.ScratchDir,
		HTMLStrategy: cfg.Extract.HTMLStrategy,
		MaxPDFPages:  cfg.Extract.MaxPDFPages,
	}, rt.logger)

	store := checkpoint.NewStore(statePath(cfg.Output))
	runner := worker.NewSiteRunner(frontier, extractor, m.Filter(table), writer, store, rt.tracker, worker.SiteConfig{
		MaxLinesPerPage: cfg.Crawl.MaxLinesPerPage,
		MinChars:        cfg.Crawl.MinSentenceChars,
	}, rt.logger)
	summary, err := runner.Run(ctx, entries, cfg.Output.Resume)
	rt.logger.Info("Sites run complete",
		zap.Int("sites", summary.Sources),
		zap.Int("lines", summary.Lines),
		zap.String("output", cfg.Output.Path),
		zap.String("state", store.Path()))
	if err != nil {
		rt.tracker.Fail(err)
	}
	return err
}

// pageCacheDir keeps fetched pages beside the training file unless a cache
// directory is configured, so a resumed crawl does not refetch them.
func pageCacheDir(cfg config.CrawlConfig, outPath string) string {
	if cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return outPath + ".pages"
}
