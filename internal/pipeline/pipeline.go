// Package pipeline runs one aggregation cycle: fetch every source, normalize,
// persist, reload the authoritative rows, then match, record and notify per
// user.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/duesjobs/duesjobs/internal/matcher"
	"github.com/duesjobs/duesjobs/internal/model"
	"github.com/duesjobs/duesjobs/internal/normalizer"
	"github.com/duesjobs/duesjobs/internal/recorder"
)

// State is a step of a run. Done and Failed are terminal.
type State string

const (
	StateLocking     State = "locking"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StateInserting   State = "inserting"
	StateReloading   State = "reloading"
	StateMatching    State = "matching"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// ReloadMode selects which persisted jobs are in scope for matching.
type ReloadMode string

const (
	// ReloadByHash scopes matching to the jobs fetched in this run.
	ReloadByHash ReloadMode = "hashes"
	// ReloadByWindow scopes matching to every stored job inside the window,
	// including ones fetched by earlier runs.
	ReloadByWindow ReloadMode = "window"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Options tunes a Pipeline.
type Options struct {
	// Window drops postings older than now-Window before insert. Zero keeps all.
	Window          time.Duration
	AdapterTimeout  time.Duration
	UserConcurrency int
	Reload          ReloadMode
}

// DefaultOptions keeps three days of postings and matches four users at a time.
func DefaultOptions() Options {
	return Options{
		Window:          72 * time.Hour,
		AdapterTimeout:  60 * time.Second,
		UserConcurrency: 4,
		Reload:          ReloadByHash,
	}
}

// Locker guards against overlapping runs.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// RunReporter receives the completion record of every run.
type RunReporter interface {
	Report(ctx context.Context, l model.FetchLog) error
}

// Result summarises one run.
type Result struct {
	RunID        string
	State        State
	FailedIn     State // state the run was in when it failed
	Fetched      int
	Kept         int // after the recency window
	Inserted     int
	InScope      int
	Users        int
	UsersFailed  int
	NewMatches   int
	SourceErrors []error
	Err          error
}

// Pipeline is the run orchestrator. It is safe to call Run concurrently only
// when a Locker is configured.
type Pipeline struct {
	fetchers   []model.JobFetcher
	store      model.Store
	normalizer *normalizer.Normalizer
	recorder   *recorder.Recorder
	notifier   model.Notifier
	reporter   RunReporter
	lock       Locker
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithReporter posts every completion record to r.
func WithReporter(r RunReporter) Option { return func(p *Pipeline) { p.reporter = r } }

// WithLock makes Run skip with ErrRunInProgress while l is held elsewhere.
func WithLock(l Locker) Option { return func(p *Pipeline) { p.lock = l } }

// WithClock replaces the wall clock used for the window and the run log.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
		p.normalizer = normalizer.NewWithClock(now)
	}
}

// New wires a Pipeline.
func New(fetchers []model.JobFetcher, store model.Store, notifier model.Notifier, opts Options, logger *slog.Logger, options ...Option) *Pipeline {
	if opts.UserConcurrency <= 0 {
		opts.UserConcurrency = 1
	}
	if opts.Reload == "" {
		opts.Reload = ReloadByHash
	}
	p := &Pipeline{
		fetchers:   fetchers,
		store:      store,
		normalizer: normalizer.New(),
		recorder:   recorder.New(store),
		notifier:   notifier,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Sources returns the configured adapter names in run order.
func (p *Pipeline) Sources() []string {
	names := make([]string, len(p.fetchers))
	for i, f := range p.fetchers {
		names[i] = f.Name()
	}
	return names
}

// Run executes one cycle and writes its completion record. The returned error
// is non-nil only when the run reached Failed or could not start.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.lock != nil {
		release, ok, err := p.lock.TryAcquire(ctx)
		if err != nil {
			return p.failToStart(ctx, fmt.Errorf("acquiring run lock: %w", err))
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer release()
	}

	res := &Result{RunID: uuid.NewString()}
	started := p.now()
	p.logger.Info("pipeline run started", "run_id", res.RunID, "sources", len(p.fetchers))

	err := p.execute(ctx, res)
	if err != nil {
		res.FailedIn = res.State
		res.State = StateFailed
		res.Err = err
		p.logger.Error("pipeline run failed", "run_id", res.RunID, "state", res.FailedIn, "error", err)
	} else {
		res.State = StateDone
		p.logger.Info("pipeline run completed",
			"run_id", res.RunID,
			"fetched", res.Fetched,
			"inserted", res.Inserted,
			"in_scope", res.InScope,
			"users", res.Users,
			"new", res.NewMatches,
			"duration", p.now().Sub(started).Round(time.Millisecond).String(),
		)
	}

	p.finish(ctx, res, started)
	return res, err
}

// failToStart logs and records a run that never reached Fetching.
func (p *Pipeline) failToStart(ctx context.Context, err error) (*Result, error) {
	started := p.now()
	res := &Result{RunID: uuid.NewString(), State: StateFailed, FailedIn: StateLocking, Err: err}
	p.logger.Error("pipeline run could not start", "run_id", res.RunID, "error", err)
	p.finish(ctx, res, started)
	return res, err
}

// RunAndLog runs once and only logs the outcome. Cron ticks and API
// triggers use it.
func (p *Pipeline) RunAndLog(ctx context.Context) {
	if _, err := p.Run(ctx); errors.Is(err, ErrRunInProgress) {
		p.logger.Warn("skipping run: previous run still in progress")
	}
}

func (p *Pipeline) enter(res *Result, s State) {
	res.State = s
	p.logger.Debug("pipeline state", "run_id", res.RunID, "state", s)
}

func (p *Pipeline) execute(ctx context.Context, res *Result) error {
	p.enter(res, StateFetching)
	raws := p.fetchAll(ctx, res)
	res.Fetched = len(raws)
	if err := ctx.Err(); err != nil {
		return err
	}

	p.enter(res, StateNormalizing)
	jobs := p.withinWindow(p.normalizer.NormalizeAll(raws))
	res.Kept = len(jobs)
	p.logger.Info("normalized jobs", "run_id", res.RunID, "fetched", res.Fetched, "kept", res.Kept)

	p.enter(res, StateInserting)
	inserted, err := p.store.UpsertJobs(ctx, jobs)
	if err != nil {
		return &model.StoreWriteError{Op: "insert", Err: err}
	}
	res.Inserted = inserted

	p.enter(res, StateReloading)
	scope, err := p.reload(ctx, jobs)
	if err != nil {
		return &model.StoreWriteError{Op: "reload", Err: err}
	}
	res.InScope = len(scope)
	if len(scope) == 0 {
		p.logger.Info("no jobs in scope, skipping matching", "run_id", res.RunID)
		return nil
	}

	p.enter(res, StateMatching)
	prefs, err := p.store.ListPreferences(ctx)
	if err != nil {
		return &model.StoreWriteError{Op: "load preferences", Err: err}
	}
	res.Users = len(prefs)
	p.matchUsers(ctx, res, prefs, scope)
	return nil
}

// fetchAll runs every adapter concurrently under its own timeout. Failures
// are recorded and contribute nothing. Results keep adapter order.
func (p *Pipeline) fetchAll(ctx context.Context, res *Result) []model.RawJob {
	results := make([][]model.RawJob, len(p.fetchers))
	errs := make([]error, len(p.fetchers))
	var g errgroup.Group

	for i, f := range p.fetchers {
		g.Go(func() error {
			jobs, err := p.fetchOne(ctx, f)
			if err != nil {
				errs[i] = &model.SourceFetchError{Source: f.Name(), Err: err}
				p.logger.Warn("source fetch failed", "run_id", res.RunID, "source", f.Name(), "error", err)
				return nil
			}
			p.logger.Info("fetched source", "run_id", res.RunID, "source", f.Name(), "fetched", len(jobs))
			results[i] = jobs
			return nil
		})
	}
	_ = g.Wait()

	var all []model.RawJob
	for i, jobs := range results {
		if errs[i] != nil {
			res.SourceErrors = append(res.SourceErrors, errs[i])
			continue
		}
		all = append(all, jobs...)
	}
	return all
}

func (p *Pipeline) fetchOne(ctx context.Context, f model.JobFetcher) (jobs []model.RawJob, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panicked: %v", r)
		}
	}()
	if p.opts.AdapterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AdapterTimeout)
		defer cancel()
	}
	return f.FetchJobs(ctx)
}

func (p *Pipeline) withinWindow(jobs []model.Job) []model.Job {
	if p.opts.Window <= 0 {
		return jobs
	}
	cutoff := p.now().Add(-p.opts.Window)
	kept := jobs[:0:0]
	for _, j := range jobs {
		if !j.PostedAt.Before(cutoff) {
			kept = append(kept, j)
		}
	}
	return kept
}

// reload reads back the persisted rows so matching works on store ids,
// including jobs that already existed before this run.
func (p *Pipeline) reload(ctx context.Context, jobs []model.Job) ([]model.Job, error) {
	if p.opts.Reload == ReloadByWindow && p.opts.Window > 0 {
		return p.store.FindJobsPostedSince(ctx, p.now().Add(-p.opts.Window))
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	hashes := make([]string, len(jobs))
	for i, j := range jobs {
		hashes[i] = j.CanonicalHash
	}
	return p.store.FindJobsByHashes(ctx, hashes)
}

// matchUsers processes every profile with bounded concurrency. One user's
// failure is logged and never stops the others.
func (p *Pipeline) matchUsers(ctx context.Context, res *Result, prefs []model.UserPreferences, jobs []model.Job) {
	var failed, fresh atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.opts.UserConcurrency)

	for _, pref := range prefs {
		g.Go(func() error {
			n, err := p.processUser(ctx, pref, jobs)
			if err != nil {
				uerr := &model.UserProcessingError{UserID: pref.UserID, Err: err}
				p.logger.Error("user processing failed", "run_id", res.RunID, "user_id", pref.UserID, "error", uerr)
				failed.Add(1)
				return nil
			}
			fresh.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	res.UsersFailed = int(failed.Load())
	res.NewMatches = int(fresh.Load())
}

func (p *Pipeline) processUser(ctx context.Context, pref model.UserPreferences, jobs []model.Job) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	matched := matcher.Match(pref, jobs)
	if len(matched) == 0 {
		return 0, nil
	}

	fresh, err := p.recorder.RecordMatches(ctx, pref.UserID, matched)
	if err != nil {
		return 0, fmt.Errorf("recording matches: %w", err)
	}
	if len(fresh) == 0 {
		p.logger.Debug("no new matches", "user_id", pref.UserID, "matched", len(matched))
		return 0, nil
	}

	p.logger.Info("new matches for user", "user_id", pref.UserID, "matched", len(matched), "new", len(fresh))
	p.notifier.Notify(ctx, pref, fresh)
	return len(fresh), nil
}

// finish writes the completion record. It runs even when ctx is cancelled.
func (p *Pipeline) finish(ctx context.Context, res *Result, started time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	entry := model.FetchLog{
		RunID:        res.RunID,
		Status:       model.RunSuccess,
		JobsFetched:  res.Fetched,
		JobsInserted: res.Inserted,
		Sources:      p.Sources(),
		Details:      joinErrors(res.SourceErrors),
		StartedAt:    started,
		CompletedAt:  p.now(),
	}
	if res.State == StateFailed {
		entry.Status = model.RunError
		entry.Details = res.Err.Error()
	}

	if err := p.store.WriteFetchLog(ctx, entry); err != nil {
		p.logger.Error("writing fetch log failed", "run_id", res.RunID, "error", err)
	}
	if p.reporter != nil {
		if err := p.reporter.Report(ctx, entry); err != nil {
			p.logger.Error("run report failed", "run_id", res.RunID, "error", err)
		}
	}
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
