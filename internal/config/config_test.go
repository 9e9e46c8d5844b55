package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalSources = `
sources:
  - name: remotive
    type: remotive
    enabled: true
`

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
schedule:
  cron: "@every 6h"
  run_on_start: true
pipeline:
  window: 48h
  adapter_timeout: 30s
  user_concurrency: 8
  reload: window
  fetch_retries: 0
sources:
  - name: remotive
    type: remotive
    enabled: true
    category: software-dev
    limit: 50
  - name: acme
    type: greenhouse
    token: acme
    enabled: true
rate_limit:
  min_delay: 2s
  ats_overrides:
    lever: 500ms
store:
  driver: postgres
  dsn: postgres://localhost/duesjobs
lock:
  redis_url: redis://localhost:6379/0
  ttl: 10m
notification:
  retry_attempts: 5
  email:
    provider: smtp
    from: jobs@example.com
    smtp:
      host: smtp.example.com
      port: 2525
  telegram:
    bot_token: "123:abc"
    assist: true
  slack:
    webhook_url: https://hooks.slack.com/services/T/B/X
server:
  addr: ":9000"
  cron_secret: s3cret
log:
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule.Cron != "@every 6h" || !cfg.Schedule.RunOnStart {
		t.Errorf("Schedule = %+v", cfg.Schedule)
	}
	p := cfg.Pipeline
	if p.Window != 48*time.Hour || p.AdapterTimeout != 30*time.Second || p.UserConcurrency != 8 || p.Reload != "window" {
		t.Errorf("Pipeline = %+v", p)
	}
	if p.FetchRetries != 0 {
		t.Errorf("FetchRetries = %d, want explicit 0", p.FetchRetries)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[0].Category != "software-dev" || cfg.Sources[1].Token != "acme" {
		t.Errorf("Sources = %+v", cfg.Sources)
	}
	if got := cfg.RateLimit.MinDelayFor("lever"); got != 500*time.Millisecond {
		t.Errorf("MinDelayFor(lever) = %v, want 500ms", got)
	}
	if got := cfg.RateLimit.MinDelayFor("greenhouse"); got != 2*time.Second {
		t.Errorf("MinDelayFor(greenhouse) = %v, want 2s", got)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN == "" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Lock.TTL != 10*time.Minute || cfg.Lock.Key != "duesjobs:pipeline" {
		t.Errorf("Lock = %+v", cfg.Lock)
	}
	n := cfg.Notification
	if n.RetryAttempts != 5 || n.Email.SMTPPort != 2525 || n.Email.FromName != "Dues Jobs" {
		t.Errorf("Notification = %+v", n)
	}
	if !n.Telegram.Assist || n.Telegram.BotToken != "123:abc" {
		t.Errorf("Telegram = %+v", n.Telegram)
	}
	if cfg.Server.Addr != ":9000" || cfg.Log.Format != "json" {
		t.Errorf("Server = %+v, Log = %+v", cfg.Server, cfg.Log)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalSources))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule.Cron != "0 8 * * *" {
		t.Errorf("Cron = %q", cfg.Schedule.Cron)
	}
	p := cfg.Pipeline
	if p.Window != 72*time.Hour || p.AdapterTimeout != 60*time.Second || p.UserConcurrency != 4 || p.Reload != "hashes" || p.FetchRetries != 3 {
		t.Errorf("Pipeline defaults = %+v", p)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "duesjobs.db" {
		t.Errorf("Store defaults = %+v", cfg.Store)
	}
	if cfg.Notification.Email.Provider != "log" || cfg.Notification.RetryAttempts != 3 {
		t.Errorf("Notification defaults = %+v", cfg.Notification)
	}
	if cfg.Server.Addr != ":8080" || cfg.Log.Format != "text" {
		t.Errorf("Server = %+v, Log = %+v", cfg.Server, cfg.Log)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("DUESJOBS_TEST_SECRET", "from-env")
	cfg, err := Load(writeConfig(t, minimalSources+`
server:
  cron_secret: ${DUESJOBS_TEST_SECRET}
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.CronSecret != "from-env" {
		t.Errorf("CronSecret = %q, want from-env", cfg.Server.CronSecret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "sources: [broken")); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "no enabled sources",
			content: `
sources:
  - name: remotive
    type: remotive
    enabled: false
`,
			wantErr: "at least one source",
		},
		{
			name: "unknown source type",
			content: `
sources:
  - name: x
    type: workday
    enabled: true
`,
			wantErr: "unknown type",
		},
		{
			name: "ats without token",
			content: `
sources:
  - name: acme
    type: lever
    enabled: true
`,
			wantErr: "token is required",
		},
		{
			name:    "bad duration",
			content: minimalSources + "pipeline:\n  window: soon\n",
			wantErr: "pipeline.window",
		},
		{
			name:    "bad reload mode",
			content: minimalSources + "pipeline:\n  reload: everything\n",
			wantErr: "pipeline.reload",
		},
		{
			name:    "window reload with zero window",
			content: minimalSources + "pipeline:\n  reload: window\n  window: 0s\n",
			wantErr: "non-zero",
		},
		{
			name:    "postgres without dsn",
			content: minimalSources + "store:\n  driver: postgres\n",
			wantErr: "store.dsn",
		},
		{
			name:    "unknown driver",
			content: minimalSources + "store:\n  driver: mongo\n",
			wantErr: "store.driver",
		},
		{
			name:    "smtp without host",
			content: minimalSources + "notification:\n  email:\n    provider: smtp\n    from: a@b.c\n",
			wantErr: "smtp.host",
		},
		{
			name:    "brevo without key",
			content: minimalSources + "notification:\n  email:\n    provider: brevo\n    from: a@b.c\n",
			wantErr: "brevo_api_key",
		},
		{
			name:    "bad slack webhook",
			content: minimalSources + "notification:\n  slack:\n    webhook_url: http://example.com\n",
			wantErr: "hooks.slack.com",
		},
		{
			name:    "bad log format",
			content: minimalSources + "log:\n  format: xml\n",
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Load: expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestIsATS(t *testing.T) {
	for _, typ := range []string{"greenhouse", "lever", "ashby"} {
		if !IsATS(typ) {
			t.Errorf("IsATS(%q) = false", typ)
		}
	}
	for _, typ := range []string{"remotive", "adzuna", "sample"} {
		if IsATS(typ) {
			t.Errorf("IsATS(%q) = true", typ)
		}
	}
}
