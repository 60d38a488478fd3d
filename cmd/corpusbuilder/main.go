package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/api"
	"github.com/JakeFAU/fincorpus/internal/clock/system"
	"github.com/JakeFAU/fincorpus/internal/config"
	"github.com/JakeFAU/fincorpus/internal/id/uuid"
	"github.com/JakeFAU/fincorpus/internal/logging"
	"github.com/JakeFAU/fincorpus/internal/metrics"
	"github.com/JakeFAU/fincorpus/internal/progress"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and maps the outcome to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "interrupted; progress saved")
		return 130
	default:
		name := root.Name()
		if cmd != nil {
			name = cmd.Name()
		}
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
}

// session carries the ambient pieces every subcommand shares.
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	clock   *system.Clock
	tracker *progress.Tracker
	runID   string
	stopAPI context.CancelFunc
	apiDone chan struct{}
}

// bootstrap loads configuration with any bound flags, builds the logger, and
// starts the optional observability listener. Configuration errors are
// returned before any work.
func bootstrap(ctx context.Context, name, cfgPath string, opts ...config.Option) (*session, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	runID := uuid.RunIDOrRandom()
	logger = logger.With(zap.String("run_id", runID), zap.String("command", name))
	zap.ReplaceGlobals(logger)
	metrics.Init()

	clock := system.New()
	rt := &session{
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
		tracker: progress.NewTracker(runID, name, clock),
		runID:   runID,
	}
	if cfg.Metrics.ListenAddr != "" {
		apiCtx, cancel := context.WithCancel(ctx)
		rt.stopAPI = cancel
		rt.apiDone = make(chan struct{})
		server := api.NewServer(rt.tracker, logger.Named("api"))
		go func() {
			defer close(rt.apiDone)
			if err := server.ListenAndServe(apiCtx, cfg.Metrics.ListenAddr); err != nil {
				logger.Error("observability listener failed", zap.Error(err))
			}
		}()
	}
	logger.Info("Run started")
	return rt, nil
}

// close finishes the run: the status is marked done, the metrics textfile is
// written, and the listener is stopped.
func (rt *session) close() {
	rt.tracker.Finish()
	status := rt.tracker.Snapshot()
	rt.logger.Info("Run finished",
		zap.Int("lines", status.Lines),
		zap.Int("sources", len(status.Sources)))
	if path := rt.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			rt.logger.Warn("Failed writing metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	if rt.stopAPI != nil {
		rt.stopAPI()
		<-rt.apiDone
	}
	_ = rt.logger.Sync()
}
