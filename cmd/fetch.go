package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"ghtfetch/internal/app"
	"ghtfetch/internal/downloader"
	"ghtfetch/internal/orchestrator"
	"ghtfetch/internal/restore"
	"ghtfetch/internal/util"
)

var (
	fetchForce        bool
	fetchKeepArchives bool
	fetchNoRepack     bool
	fetchTUI          bool
	fetchPrintRestore bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download, extract, prune and repackage the dumps in the date range.",
	Long: `Fetch discovers the dump archives on the listing page, keeps the ones
whose date falls inside the configured range, and runs each through the full
pipeline: download (resuming partial files), extract, prune to the issue
collections, and repackage. Dumps recorded as completed in the state
database are skipped unless --force is given. The command exits non-zero if
any dump fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		if fetchForce {
			cfg.Force = true
		}
		if fetchKeepArchives {
			cfg.KeepArchives = true
		}
		if fetchNoRepack {
			cfg.Repackage = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		filter, err := downloader.NewDateFilter(cfg.Pattern)
		if err != nil {
			return err
		}
		rng := downloader.DateRange{Start: cfg.Start(), End: cfg.End()}

		descs, err := downloader.Discover(ctx, util.DefaultHTTPClient(), cfg.ListingURL, filter, rng, logger)
		if err != nil {
			return fmt.Errorf("discover dumps: %w", err)
		}
		if len(descs) == 0 {
			logger.Info("No dumps in the requested date range.",
				slog.String("start", cfg.StartDate),
				slog.String("end", cfg.EndDate))
			return nil
		}

		completed := map[string]bool{}
		if !cfg.Force {
			completed, err = getStore().CompletedDumps(ctx)
			if err != nil {
				logger.Warn("Could not read completed dumps, every dump will be processed.", "error", err)
				completed = map[string]bool{}
			}
		}

		var sum orchestrator.Summary
		if fetchTUI {
			// The inline dashboard owns the terminal. Default stderr logging
			// would tear its frames, so pipeline logs are dropped unless the
			// user pointed them at a file.
			runLogger := logger
			if strings.ToLower(logOutput) == "stderr" {
				runLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
			}
			orch := orchestrator.New(afero.NewOsFs(), *cfg, getStore(), runLogger)
			sum, err = runWithDashboard(ctx, orch, descs, completed)
		} else {
			orch := orchestrator.New(afero.NewOsFs(), *cfg, getStore(), logger)
			sum, err = orch.Run(ctx, descs, completed, orchestrator.NewLogReporter(logger))
		}
		if err != nil {
			return err
		}

		if fetchPrintRestore {
			printCandidates(restore.FromResults(sum.Results, cfg.PruneSubdir))
		}

		if !sum.Ok() {
			return fmt.Errorf("%d of %d dumps failed", sum.Failed, sum.Total)
		}
		return nil
	},
}

// runWithDashboard runs the pipeline behind a bubbletea dashboard. The
// program exits when the run finishes or the user quits; quitting cancels
// the run's context and the pipeline winds down at its next checkpoint.
func runWithDashboard(ctx context.Context, orch *orchestrator.Orchestrator, descs []downloader.Descriptor, completed map[string]bool) (orchestrator.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(app.NewModel())
	rep := app.NewReporter(p)

	type outcome struct {
		sum orchestrator.Summary
		err error
	}
	runDone := make(chan outcome, 1)
	go func() {
		sum, err := orch.Run(ctx, descs, completed, rep)
		runDone <- outcome{sum: sum, err: err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-runDone
		return orchestrator.Summary{}, fmt.Errorf("dashboard failed: %w", err)
	}

	cancel()
	out := <-runDone
	return out.sum, out.err
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "Process dumps even if recorded as completed")
	fetchCmd.Flags().BoolVar(&fetchKeepArchives, "keep-archives", false, "Keep downloaded archives after extraction (requires --no-repack)")
	fetchCmd.Flags().BoolVar(&fetchNoRepack, "no-repack", false, "Leave pruned dump trees on disk instead of repackaging them")
	fetchCmd.Flags().BoolVar(&fetchTUI, "tui", false, "Render a live dashboard instead of log output")
	fetchCmd.Flags().BoolVar(&fetchPrintRestore, "print-restore", false, "After the run, print restore candidates for the completed dumps")
}
