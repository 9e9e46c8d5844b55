package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for duesjobs.
type Config struct {
	Schedule     ScheduleConfig
	Pipeline     PipelineConfig
	Sources      []SourceConfig
	RateLimit    RateLimitConfig
	Store        StoreConfig
	Lock         LockConfig
	Notification NotificationConfig
	Server       ServerConfig
	Log          LogConfig
}

// ScheduleConfig drives the cron daemon.
type ScheduleConfig struct {
	Cron       string // standard five-field spec or a descriptor, e.g. "@every 24h"
	RunOnStart bool
}

// PipelineConfig tunes a single run.
type PipelineConfig struct {
	Window          time.Duration // postings older than this are dropped before insert
	AdapterTimeout  time.Duration
	UserConcurrency int
	Reload          string // "hashes" or "window"
	FetchRetries    int
	FetchRetryDelay time.Duration
}

// SourceConfig describes one job source. Which fields apply depends on Type.
type SourceConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"` // remotive, remoteok, adzuna, sample, greenhouse, lever, ashby
	Enabled  bool   `yaml:"enabled"`
	Token    string `yaml:"token"`    // ATS board token or slug
	Category string `yaml:"category"` // remotive
	Limit    int    `yaml:"limit"`    // remotive, adzuna results per page
	Country  string `yaml:"country"`  // adzuna
	What     string `yaml:"what"`     // adzuna search terms
	AppID    string `yaml:"app_id"`   // adzuna
	AppKey   string `yaml:"app_key"`  // adzuna
}

// RateLimitConfig controls ATS-level rate limiting.
type RateLimitConfig struct {
	MinDelay     time.Duration            // minimum gap between requests to the same ATS
	ATSOverrides map[string]time.Duration // per-ATS overrides, keyed by source type
}

// MinDelayFor returns the configured delay for the given ATS, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(ats string) time.Duration {
	if d, ok := r.ATSOverrides[ats]; ok {
		return d
	}
	return r.MinDelay
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // postgres connection URL
}

// LockConfig enables the cross-process run lock when RedisURL is set.
type LockConfig struct {
	RedisURL string
	Key      string
	TTL      time.Duration
}

// NotificationConfig configures user channels and the run report.
type NotificationConfig struct {
	RetryAttempts uint
	RetryDelay    time.Duration
	Email         EmailConfig
	Telegram      TelegramConfig
	SlackWebhook  string
}

// EmailConfig selects and configures the email provider.
type EmailConfig struct {
	Provider    string // "smtp", "brevo" or "log"
	From        string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	BrevoAPIKey string
	MinDelay    time.Duration
}

// TelegramConfig configures digests and the chat-id assistant.
type TelegramConfig struct {
	BotToken string // empty or "mock_token" keeps Telegram in log-only mode
	BaseURL  string
	MinDelay time.Duration
	Assist   bool // run the chat-id assistant alongside the API server
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr       string
	CronSecret string
	Schedule   bool // also run the cron schedule inside "serve"
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string // "text" or "json"
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Pipeline struct {
		Window          string `yaml:"window"`
		AdapterTimeout  string `yaml:"adapter_timeout"`
		UserConcurrency int    `yaml:"user_concurrency"`
		Reload          string `yaml:"reload"`
		FetchRetries    *int   `yaml:"fetch_retries"`
		FetchRetryDelay string `yaml:"fetch_retry_delay"`
	} `yaml:"pipeline"`
	Sources   []SourceConfig `yaml:"sources"`
	RateLimit struct {
		MinDelay     string            `yaml:"min_delay"`
		ATSOverrides map[string]string `yaml:"ats_overrides"`
	} `yaml:"rate_limit"`
	Store StoreConfig `yaml:"store"`
	Lock  struct {
		RedisURL string `yaml:"redis_url"`
		Key      string `yaml:"key"`
		TTL      string `yaml:"ttl"`
	} `yaml:"lock"`
	Notification struct {
		RetryAttempts uint   `yaml:"retry_attempts"`
		RetryDelay    string `yaml:"retry_delay"`
		Email         struct {
			Provider string `yaml:"provider"`
			From     string `yaml:"from"`
			FromName string `yaml:"from_name"`
			SMTP     struct {
				Host     string `yaml:"host"`
				Port     int    `yaml:"port"`
				Username string `yaml:"username"`
				Password string `yaml:"password"`
			} `yaml:"smtp"`
			BrevoAPIKey string `yaml:"brevo_api_key"`
			MinDelay    string `yaml:"min_delay"`
		} `yaml:"email"`
		Telegram struct {
			BotToken string `yaml:"bot_token"`
			BaseURL  string `yaml:"base_url"`
			MinDelay string `yaml:"min_delay"`
			Assist   bool   `yaml:"assist"`
		} `yaml:"telegram"`
		Slack struct {
			WebhookURL string `yaml:"webhook_url"`
		} `yaml:"slack"`
	} `yaml:"notification"`
	Server struct {
		Addr       string `yaml:"addr"`
		CronSecret string `yaml:"cron_secret"`
		Schedule   bool   `yaml:"schedule"`
	} `yaml:"server"`
	Log LogConfig `yaml:"log"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationOr parses s, returning def when s is empty.
func durationOr(field, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func fromRaw(raw rawConfig) (*Config, error) {
	cfg := &Config{
		Schedule: ScheduleConfig{
			Cron:       orDefault(raw.Schedule.Cron, "0 8 * * *"),
			RunOnStart: raw.Schedule.RunOnStart,
		},
		Sources: raw.Sources,
		Store: StoreConfig{
			Driver: orDefault(raw.Store.Driver, "sqlite"),
			Path:   orDefault(raw.Store.Path, "duesjobs.db"),
			DSN:    raw.Store.DSN,
		},
		Server: ServerConfig{
			Addr:       orDefault(raw.Server.Addr, ":8080"),
			CronSecret: raw.Server.CronSecret,
			Schedule:   raw.Server.Schedule,
		},
		Log: LogConfig{Format: orDefault(raw.Log.Format, "text")},
	}

	var err error
	p := &cfg.Pipeline
	if p.Window, err = durationOr("pipeline.window", raw.Pipeline.Window, 72*time.Hour); err != nil {
		return nil, err
	}
	if p.AdapterTimeout, err = durationOr("pipeline.adapter_timeout", raw.Pipeline.AdapterTimeout, 60*time.Second); err != nil {
		return nil, err
	}
	if p.FetchRetryDelay, err = durationOr("pipeline.fetch_retry_delay", raw.Pipeline.FetchRetryDelay, 2*time.Second); err != nil {
		return nil, err
	}
	p.UserConcurrency = raw.Pipeline.UserConcurrency
	if p.UserConcurrency == 0 {
		p.UserConcurrency = 4
	}
	p.Reload = orDefault(raw.Pipeline.Reload, "hashes")
	p.FetchRetries = 3
	if raw.Pipeline.FetchRetries != nil {
		p.FetchRetries = *raw.Pipeline.FetchRetries
	}

	if cfg.RateLimit.MinDelay, err = durationOr("rate_limit.min_delay", raw.RateLimit.MinDelay, time.Second); err != nil {
		return nil, err
	}
	cfg.RateLimit.ATSOverrides = make(map[string]time.Duration)
	for ats, s := range raw.RateLimit.ATSOverrides {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.ats_overrides[%q]: %w", ats, err)
		}
		cfg.RateLimit.ATSOverrides[ats] = d
	}

	cfg.Lock = LockConfig{
		RedisURL: raw.Lock.RedisURL,
		Key:      orDefault(raw.Lock.Key, "duesjobs:pipeline"),
	}
	if cfg.Lock.TTL, err = durationOr("lock.ttl", raw.Lock.TTL, 30*time.Minute); err != nil {
		return nil, err
	}

	rn := raw.Notification
	n := &cfg.Notification
	n.RetryAttempts = rn.RetryAttempts
	if n.RetryAttempts == 0 {
		n.RetryAttempts = 3
	}
	if n.RetryDelay, err = durationOr("notification.retry_delay", rn.RetryDelay, time.Second); err != nil {
		return nil, err
	}
	n.Email = EmailConfig{
		Provider:    orDefault(rn.Email.Provider, "log"),
		From:        rn.Email.From,
		FromName:    orDefault(rn.Email.FromName, "Dues Jobs"),
		SMTPHost:    rn.Email.SMTP.Host,
		SMTPPort:    rn.Email.SMTP.Port,
		SMTPUser:    rn.Email.SMTP.Username,
		SMTPPass:    rn.Email.SMTP.Password,
		BrevoAPIKey: rn.Email.BrevoAPIKey,
	}
	if n.Email.MinDelay, err = durationOr("notification.email.min_delay", rn.Email.MinDelay, 0); err != nil {
		return nil, err
	}
	n.Telegram = TelegramConfig{
		BotToken: rn.Telegram.BotToken,
		BaseURL:  rn.Telegram.BaseURL,
		Assist:   rn.Telegram.Assist,
	}
	// Bot API allows roughly 30 messages per second across chats.
	if n.Telegram.MinDelay, err = durationOr("notification.telegram.min_delay", rn.Telegram.MinDelay, 50*time.Millisecond); err != nil {
		return nil, err
	}
	n.SlackWebhook = rn.Slack.WebhookURL

	return cfg, nil
}

var knownSourceTypes = map[string]bool{
	"remotive":   true,
	"remoteok":   true,
	"adzuna":     true,
	"sample":     true,
	"greenhouse": true,
	"lever":      true,
	"ashby":      true,
}

// IsATS reports whether a source type is a per-company applicant tracking board.
func IsATS(sourceType string) bool {
	switch sourceType {
	case "greenhouse", "lever", "ashby":
		return true
	}
	return false
}

func validate(cfg *Config) error {
	enabled := 0
	for i, s := range cfg.Sources {
		if !knownSourceTypes[s.Type] {
			return fmt.Errorf("sources[%d]: unknown type %q", i, s.Type)
		}
		if IsATS(s.Type) && s.Token == "" {
			return fmt.Errorf("sources[%d]: token is required for %s", i, s.Type)
		}
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	p := cfg.Pipeline
	if p.Window < 0 {
		return fmt.Errorf("pipeline.window must not be negative, got %v", p.Window)
	}
	if p.UserConcurrency < 1 {
		return fmt.Errorf("pipeline.user_concurrency must be at least 1, got %d", p.UserConcurrency)
	}
	switch p.Reload {
	case "hashes":
	case "window":
		if p.Window == 0 {
			return fmt.Errorf("pipeline.reload \"window\" requires a non-zero pipeline.window")
		}
	default:
		return fmt.Errorf("pipeline.reload must be \"hashes\" or \"window\", got %q", p.Reload)
	}
	if p.FetchRetries < 0 {
		return fmt.Errorf("pipeline.fetch_retries must not be negative, got %d", p.FetchRetries)
	}

	switch cfg.Store.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is \"postgres\"")
		}
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Store.Driver)
	}

	e := cfg.Notification.Email
	switch e.Provider {
	case "log":
	case "smtp":
		if e.SMTPHost == "" || e.From == "" {
			return fmt.Errorf("notification.email.smtp.host and notification.email.from are required for smtp")
		}
	case "brevo":
		if e.BrevoAPIKey == "" || e.From == "" {
			return fmt.Errorf("notification.email.brevo_api_key and notification.email.from are required for brevo")
		}
	default:
		return fmt.Errorf("notification.email.provider must be smtp, brevo or log, got %q", e.Provider)
	}

	if hook := cfg.Notification.SlackWebhook; hook != "" && !strings.HasPrefix(hook, "https://hooks.slack.com/") {
		return fmt.Errorf("notification.slack.webhook_url must start with https://hooks.slack.com/")
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", cfg.Log.Format)
	}

	return nil
}
