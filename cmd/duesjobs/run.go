package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duesjobs/duesjobs/internal/config"
	"github.com/duesjobs/duesjobs/internal/notifier"
	"github.com/duesjobs/duesjobs/internal/pipeline"
	"github.com/duesjobs/duesjobs/internal/runlock"
	"github.com/duesjobs/duesjobs/internal/store"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and exit",
	Long:  "Fetch, dedupe, match and notify once. Exits 1 if the run fails.",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "use an in-memory store and log-only notifications")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var p *pipeline.Pipeline
	if dryRun {
		logger.Info("dry-run mode: nothing is persisted and digests are only logged")
		mem := store.NewMemoryStore()
		copyPreferences(ctx, cfg, mem, logger)

		fetchers := buildFetchers(cfg, newHTTPClient(), logger)
		if len(fetchers) == 0 {
			return fmt.Errorf("no usable sources configured")
		}
		p = pipeline.New(fetchers, mem, notifier.NewDispatcher(logger, notifier.NewLogChannel(logger)),
			pipelineOptions(cfg), logger, pipeline.WithLock(runlock.NewLocal()))
	} else {
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		p = a.pipeline
	}

	res, err := p.Run(ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		logger.Warn("another run holds the run lock, nothing to do")
		return nil
	}
	if res != nil {
		printResult(res)
	}
	return err
}

// copyPreferences seeds a dry run with the stored user profiles so the log
// shows what each user would have received.
// A missing SQLite file is left alone so the dry run never creates one.
func copyPreferences(ctx context.Context, cfg *config.Config, dst *store.MemoryStore, logger *slog.Logger) {
	if cfg.Store.Driver != "postgres" {
		if _, err := os.Stat(cfg.Store.Path); err != nil {
			logger.Info("dry-run: no database file, running without users", "path", cfg.Store.Path)
			return
		}
	}

	src, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Warn("dry-run: could not open store, running without users", "error", err)
		return
	}
	defer src.Close()

	prefs, err := src.ListPreferences(ctx)
	if err != nil {
		logger.Warn("dry-run: could not load preferences, running without users", "error", err)
		return
	}
	for _, pref := range prefs {
		if _, err := dst.PutPreferences(ctx, pref); err != nil {
			logger.Warn("dry-run: skipping user", "user_id", pref.UserID, "error", err)
		}
	}
	logger.Info("dry-run: loaded user preferences", "users", len(prefs))
}

func printResult(res *pipeline.Result) {
	fmt.Printf("\nRun %s: %s\n", res.RunID, res.State)
	if res.State == pipeline.StateFailed {
		fmt.Printf("  failed while %s: %v\n", res.FailedIn, res.Err)
	}
	fmt.Printf("  fetched %d, kept %d, inserted %d, in scope %d\n", res.Fetched, res.Kept, res.Inserted, res.InScope)
	fmt.Printf("  users %d (%d failed), new matches %d\n", res.Users, res.UsersFailed, res.NewMatches)
	for _, err := range res.SourceErrors {
		fmt.Printf("  source error: %v\n", err)
	}
}
