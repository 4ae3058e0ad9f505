// Package jobs runs periodic maintenance tasks next to the HTTP server.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/school-scheduler/internal/application"
)

// Auditor checks stored recurrence rules.
type Auditor interface {
	Audit(ctx context.Context) (application.AuditReport, error)
}

// AuditJob runs the recurrence rule audit on a cron schedule.
type AuditJob struct {
	cron    *cron.Cron
	auditor Auditor
	timeout time.Duration
	logger  *slog.Logger
	base    context.Context
}

// NewAuditJob schedules auditor with a standard five field cron spec
// evaluated in loc. Each run is bounded by timeout when it is positive.
func NewAuditJob(auditor Auditor, spec string, loc *time.Location, timeout time.Duration, logger *slog.Logger) (*AuditJob, error) {
	if auditor == nil {
		return nil, errors.New("jobs: auditor is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("job", "rule_audit")

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	job := &AuditJob{cron: c, auditor: auditor, timeout: timeout, logger: logger, base: context.Background()}
	if _, err := c.AddFunc(spec, func() { job.RunOnce(job.base) }); err != nil {
		return nil, fmt.Errorf("jobs: invalid audit schedule %q: %w", spec, err)
	}
	return job, nil
}

// Start runs the schedule in the background. Runs derive their context from
// ctx.
func (j *AuditJob) Start(ctx context.Context) {
	j.base = ctx
	j.cron.Start()
	j.logger.InfoContext(ctx, "audit job started", "next_run", j.NextRun())
}

// Stop halts the schedule and returns a context that is done once a
// running audit has finished.
func (j *AuditJob) Stop() context.Context {
	return j.cron.Stop()
}

// NextRun reports when the audit fires next. It is zero before Start.
func (j *AuditJob) NextRun() time.Time {
	entries := j.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce performs a single audit and logs the outcome.
func (j *AuditJob) RunOnce(ctx context.Context) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	report, err := j.auditor.Audit(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "rule audit failed", "error", err)
		return
	}
	level := slog.LevelInfo
	if len(report.Malformed) > 0 {
		level = slog.LevelWarn
	}
	j.logger.Log(ctx, level, "rule audit finished",
		"checked", report.Checked,
		"recurring", report.Recurring,
		"malformed", len(report.Malformed),
		"duration", report.Duration,
	)
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
