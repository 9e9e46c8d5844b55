package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/duesjobs/duesjobs/internal/adapter"
	"github.com/duesjobs/duesjobs/internal/config"
	"github.com/duesjobs/duesjobs/internal/model"
	"github.com/duesjobs/duesjobs/internal/notifier"
	"github.com/duesjobs/duesjobs/internal/pipeline"
	"github.com/duesjobs/duesjobs/internal/ratelimit"
	"github.com/duesjobs/duesjobs/internal/retry"
	"github.com/duesjobs/duesjobs/internal/runlock"
	"github.com/duesjobs/duesjobs/internal/store"
	"github.com/duesjobs/duesjobs/internal/telegram"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "duesjobs",
	Short: "Job aggregation and daily match digests",
	Long:  "duesjobs pulls postings from job boards, dedupes them, matches them against each user's preferences and sends digests of new matches.",
	// Default to `start` so that `duesjobs` with no args runs the daemon.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: DUESJOBS_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > DUESJOBS_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("DUESJOBS_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool, format string) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// mustLoad loads the config and builds the logger, exiting on a bad config.
func mustLoad() (*config.Config, *slog.Logger) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		setupLogger(debug, "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg, setupLogger(debug, cfg.Log.Format)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// createFetcher builds the bare adapter for one configured source.
func createFetcher(src config.SourceConfig, httpClient *http.Client, logger *slog.Logger) (model.JobFetcher, bool) {
	switch src.Type {
	case "remotive":
		return adapter.NewRemotiveAdapter(src.Category, src.Limit, httpClient), true
	case "remoteok":
		return adapter.NewRemoteOKAdapter(httpClient), true
	case "adzuna":
		return adapter.NewAdzunaAdapter(src.AppID, src.AppKey, src.Country, src.What, src.Limit, httpClient, logger), true
	case "sample":
		board, ok := adapter.NewSampleBoard(src.Name, nil)
		if !ok {
			logger.Warn("unknown sample board, skipping", "source", src.Name, "boards", adapter.SampleBoardNames())
			return nil, false
		}
		return board, true
	case "greenhouse":
		return adapter.NewGreenhouseAdapter(src.Token, src.Name, httpClient), true
	case "lever":
		return adapter.NewLeverAdapter(src.Token, src.Name, httpClient), true
	case "ashby":
		return adapter.NewAshbyAdapter(src.Token, src.Name, httpClient), true
	default:
		logger.Warn("unsupported source type, skipping", "source", src.Name, "type", src.Type)
		return nil, false
	}
}

// buildFetchers wraps every enabled source in the fetch decorators. ATS boards
// of the same type share one limiter so per-company configs cannot add up to
// a burst against the same vendor.
func buildFetchers(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) []model.JobFetcher {
	limiters := make(map[string]*ratelimit.KeyedLimiter)

	var fetchers []model.JobFetcher
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		f, ok := createFetcher(src, httpClient, logger)
		if !ok {
			continue
		}
		if config.IsATS(src.Type) {
			lim, ok := limiters[src.Type]
			if !ok {
				lim = ratelimit.NewKeyedLimiter(cfg.RateLimit.MinDelayFor(src.Type))
				limiters[src.Type] = lim
			}
			f = ratelimit.NewRateLimitedFetcher(f, lim, src.Type)
		}
		if cfg.Pipeline.FetchRetries > 0 {
			f = retry.NewRetryFetcher(f, cfg.Pipeline.FetchRetries, cfg.Pipeline.FetchRetryDelay, logger)
		}
		fetchers = append(fetchers, f)
		logger.Debug("registered source", "source", f.Name(), "type", src.Type)
	}
	return fetchers
}

func buildStore(ctx context.Context, cfg *config.Config) (model.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Store.DSN)
	default:
		return store.NewSQLiteStore(cfg.Store.Path)
	}
}

func retryPolicy(cfg *config.Config) notifier.RetryPolicy {
	return notifier.RetryPolicy{Attempts: cfg.Notification.RetryAttempts, Delay: cfg.Notification.RetryDelay}
}

func buildEmailSender(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) notifier.EmailSender {
	e := cfg.Notification.Email
	switch e.Provider {
	case "smtp":
		return notifier.NewSMTPSender(notifier.SMTPConfig{
			Host:     e.SMTPHost,
			Port:     e.SMTPPort,
			Username: e.SMTPUser,
			Password: e.SMTPPass,
			From:     e.From,
			FromName: e.FromName,
		}, retryPolicy(cfg), logger)
	case "brevo":
		return notifier.NewBrevoSender(e.BrevoAPIKey, e.From, e.FromName, "", httpClient, retryPolicy(cfg), logger)
	default:
		return notifier.NewLogSender(logger)
	}
}

// buildNotifier wires the email and Telegram channels, each paced by its own
// minimum delay.
func buildNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *notifier.Dispatcher {
	n := cfg.Notification
	email := notifier.NewEmailChannel(buildEmailSender(cfg, httpClient, logger), logger)
	tg := notifier.NewTelegramChannel(
		n.Telegram.BotToken,
		telegram.NewClient(n.Telegram.BotToken, n.Telegram.BaseURL, httpClient),
		retryPolicy(cfg),
		logger,
	)
	if !telegram.Configured(n.Telegram.BotToken) {
		logger.Info("telegram bot token not set, telegram digests are logged only")
	}
	return notifier.NewDispatcher(logger,
		notifier.NewPacedChannel(email, ratelimit.NewKeyedLimiter(n.Email.MinDelay)),
		notifier.NewPacedChannel(tg, ratelimit.NewKeyedLimiter(n.Telegram.MinDelay)),
	)
}

// buildLock returns the run lock and a cleanup func. A Redis URL turns on the
// cross-process lock; otherwise runs are only serialised within this process.
func buildLock(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Locker, func(), error) {
	if cfg.Lock.RedisURL == "" {
		return runlock.NewLocal(), func() {}, nil
	}
	l, err := runlock.NewRedisLock(ctx, cfg.Lock.RedisURL, cfg.Lock.Key, cfg.Lock.TTL, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis run lock", "key", cfg.Lock.Key, "ttl", cfg.Lock.TTL.String())
	return l, func() { l.Close() }, nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Window:          cfg.Pipeline.Window,
		AdapterTimeout:  cfg.Pipeline.AdapterTimeout,
		UserConcurrency: cfg.Pipeline.UserConcurrency,
		Reload:          pipeline.ReloadMode(cfg.Pipeline.Reload),
	}
}

// app bundles the long-lived pieces shared by run, start and serve.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    model.Store
	pipeline *pipeline.Pipeline
	cleanup  []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// newApp opens the store and run lock and wires the pipeline.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: st}
	a.cleanup = append(a.cleanup, func() { st.Close() })

	lock, release, err := buildLock(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect run lock: %w", err)
	}
	a.cleanup = append(a.cleanup, release)

	httpClient := newHTTPClient()
	fetchers := buildFetchers(cfg, httpClient, logger)
	if len(fetchers) == 0 {
		a.Close()
		return nil, fmt.Errorf("no usable sources configured")
	}

	opts := []pipeline.Option{pipeline.WithLock(lock)}
	if cfg.Notification.SlackWebhook != "" {
		opts = append(opts, pipeline.WithReporter(
			notifier.NewSlackReporter(cfg.Notification.SlackWebhook, httpClient, retryPolicy(cfg), logger),
		))
	}

	a.pipeline = pipeline.New(fetchers, st, buildNotifier(cfg, httpClient, logger), pipelineOptions(cfg), logger, opts...)
	logger.Info("pipeline ready",
		"sources", a.pipeline.Sources(),
		"store", cfg.Store.Driver,
		"window", cfg.Pipeline.Window.String(),
		"reload", cfg.Pipeline.Reload,
	)
	return a, nil
}
