// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work, normally a pipeline run.
type Job func(ctx context.Context)

// Scheduler owns the cron loop. Ticks that fire while the previous job is
// still running are skipped.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	job        Job
	runOnStart bool
	logger     *slog.Logger
}

// New validates spec (standard five-field or a descriptor such as
// "@every 24h") and returns a scheduler for job.
func New(spec string, runOnStart bool, job Job, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec:       spec,
		job:        job,
		runOnStart: runOnStart,
		logger:     logger,
	}, nil
}

// Run registers the job, optionally runs it once immediately, and blocks
// until ctx is cancelled. It waits for an in-flight job before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.job(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.logger.Info("starting scheduler", "schedule", s.spec, "run_on_start", s.runOnStart)
	s.cron.Start()

	if s.runOnStart {
		s.job(ctx)
	}

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// cronLogger routes robfig/cron's logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
