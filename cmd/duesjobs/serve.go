package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/duesjobs/duesjobs/internal/api"
	"github.com/duesjobs/duesjobs/internal/scheduler"
	"github.com/duesjobs/duesjobs/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long:  "Serve the HTTP API. Optionally also runs the cron schedule and the Telegram chat-id assistant.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.CronSecret == "" {
		logger.Warn("server.cron_secret is empty, manual run triggers are disabled")
	}

	var sched *scheduler.Scheduler
	if cfg.Server.Schedule {
		if sched, err = scheduler.New(cfg.Schedule.Cron, cfg.Schedule.RunOnStart, a.pipeline.RunAndLog, logger); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.Deps{
			Store:      a.store,
			Trigger:    a.pipeline.RunAndLog,
			CronSecret: cfg.Server.CronSecret,
			RunContext: ctx,
			Logger:     logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	tg := cfg.Notification.Telegram
	if tg.Assist {
		if telegram.Configured(tg.BotToken) {
			bot := telegram.NewBot(telegram.NewClient(tg.BotToken, tg.BaseURL, &http.Client{Timeout: 45 * time.Second}), logger)
			g.Go(func() error {
				bot.Run(gctx)
				return nil
			})
		} else {
			logger.Warn("telegram assistant requested but no bot token is configured")
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("goodbye")
	return nil
}
