// Package worker implements one crawl run: assignment, crawl, cleanup and report.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/crawler"
	"github.com/JakeFAU/distcrawl/internal/metrics"
)

// DefaultMaxReportAttempts bounds batch delivery, counting the first attempt.
const DefaultMaxReportAttempts = 4

// Run states.
const (
	StateIdle               = "idle"
	StateFetchingAssignment = "fetching_assignment"
	StateCrawling           = "crawling"
	StateReporting          = "reporting"
	StateRetryingReport     = "retrying_report"
	StateDone               = "done"
)

// Final run results recorded in metrics.
const (
	ResultReported         = "reported"
	ResultAssignmentFailed = "assignment_failed"
	ResultReportDropped    = "report_dropped"
)

// Assigner returns the seeds assigned to a worker identity.
type Assigner interface {
	Seeds(ctx context.Context, identity string) ([]string, error)
}

// Reporter delivers a result batch to the collector.
type Reporter interface {
	Submit(ctx context.Context, batch crawler.Batch) (crawler.IngestAck, error)
}

// SeedCrawler crawls one seed with the profile bound at startup.
type SeedCrawler interface {
	Kind() crawler.ProfileKind
	Crawl(ctx context.Context, seed string) []crawler.Outcome
}

// Config controls Runner behavior.
type Config struct {
	Identity          string
	MaxReportAttempts int
	// PushURL is the Pushgateway that receives run metrics. Empty disables pushing.
	PushURL string
	PushJob string
}

// Result summarizes one run.
type Result struct {
	Outcome   string
	Seeds     int
	Batch     crawler.Batch
	Attempts  int
	Ack       crawler.IngestAck
	Delivered bool
}

// Runner executes a single worker run.
type Runner struct {
	cfg      Config
	assigner Assigner
	crawler  SeedCrawler
	store    crawler.ScratchStore
	reporter Reporter
	logger   *zap.Logger
	state    string
}

// New constructs a Runner. seedCrawler and store are nil when the identity has no site profile.
func New(
	cfg Config,
	assigner Assigner,
	seedCrawler SeedCrawler,
	store crawler.ScratchStore,
	reporter Reporter,
	logger *zap.Logger,
) *Runner {
	if cfg.MaxReportAttempts <= 0 {
		cfg.MaxReportAttempts = DefaultMaxReportAttempts
	}
	if cfg.PushJob == "" {
		cfg.PushJob = "distcrawl_worker"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		assigner: assigner,
		crawler:  seedCrawler,
		store:    store,
		reporter: reporter,
		logger:   logger.With(zap.String("worker_id", cfg.Identity)),
		state:    StateIdle,
	}
}

// State returns the runner's current state.
func (r *Runner) State() string {
	return r.state
}

// Run fetches the assignment, crawls every seed, removes the scratch directory and
// reports the batch. Failures are absorbed and surface only in logs, metrics and Result.
func (r *Runner) Run(ctx context.Context) Result {
	result := r.run(ctx)
	r.transition(StateDone)
	metrics.ObserveRun(result.Outcome)
	r.pushMetrics()
	return result
}

func (r *Runner) run(ctx context.Context) Result {
	r.transition(StateFetchingAssignment)
	seeds, err := r.assigner.Seeds(ctx, r.cfg.Identity)
	if err != nil {
		r.logger.Error("assignment fetch failed", zap.Error(err))
		return Result{Outcome: ResultAssignmentFailed}
	}
	r.logger.Info("assignment received", zap.Int("seeds", len(seeds)))

	r.transition(StateCrawling)
	batch := r.crawl(ctx, seeds)
	succeeded, failed := batch.Counts()
	r.logger.Info("crawl finished",
		zap.Int("outcomes", len(batch)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)

	result := r.report(ctx, batch)
	result.Seeds = len(seeds)
	return result
}

func (r *Runner) crawl(ctx context.Context, seeds []string) crawler.Batch {
	batch := crawler.Batch{}
	if r.crawler == nil {
		if len(seeds) > 0 {
			r.logger.Warn("no site profile bound to worker, skipping seeds", zap.Int("seeds", len(seeds)))
		}
		return batch
	}
	for _, seed := range seeds {
		batch = append(batch, r.crawler.Crawl(ctx, seed)...)
	}
	r.cleanup()
	return batch
}

func (r *Runner) cleanup() {
	if r.store == nil {
		return
	}
	err := r.store.Purge()
	metrics.ObserveCleanup(err)
	if err != nil {
		r.logger.Error("scratch cleanup failed", zap.String("dir", r.store.Dir()), zap.Error(err))
		return
	}
	r.logger.Debug("scratch directory removed", zap.String("dir", r.store.Dir()))
}

func (r *Runner) report(ctx context.Context, batch crawler.Batch) Result {
	result := Result{Outcome: ResultReportDropped, Batch: batch}
	r.transition(StateReporting)

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxReportAttempts; attempt++ {
		if attempt > 1 {
			r.transition(StateRetryingReport)
		}
		result.Attempts = attempt
		ack, err := r.reporter.Submit(ctx, batch)
		metrics.ObserveReportAttempt(err)
		if err == nil {
			result.Outcome = ResultReported
			result.Delivered = true
			result.Ack = ack
			r.logger.Info("batch reported",
				zap.Int("attempt", attempt),
				zap.Int("outcomes", len(batch)),
				zap.Int("inserted", ack.InsertedCount),
			)
			return result
		}
		lastErr = err
		r.logger.Warn("batch report failed", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}

	err := fmt.Errorf("%w after %d attempts: %w", crawler.ErrReportDelivery, result.Attempts, lastErr)
	r.logger.Error("dropping batch", zap.Int("outcomes", len(batch)), zap.Error(err))
	return result
}

func (r *Runner) transition(state string) {
	r.logger.Debug("state transition", zap.String("from", r.state), zap.String("to", state))
	r.state = state
}

func (r *Runner) pushMetrics() {
	if r.cfg.PushURL == "" {
		return
	}
	if err := metrics.Push(r.cfg.PushURL, r.cfg.PushJob, r.cfg.Identity); err != nil {
		r.logger.Warn("metrics push failed", zap.Error(err))
	}
}
