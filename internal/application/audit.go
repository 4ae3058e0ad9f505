package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/school-scheduler/internal/recurrence"
)

// EventLister lists every stored event across schools.
type EventLister interface {
	ListAllEvents(ctx context.Context) ([]Event, error)
}

// MalformedRule identifies a stored event whose rule no longer parses.
type MalformedRule struct {
	EventID  string
	SchoolID string
	Rule     string
	Reason   string
}

// AuditReport summarizes one audit run.
type AuditReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Checked   int
	Recurring int
	Malformed []MalformedRule
}

// RuleAuditor re-parses every stored recurrence rule so that corrupted rows
// are reported before a user trips over them.
type RuleAuditor struct {
	events EventLister
	now    func() time.Time
	logger *slog.Logger
}

// NewRuleAuditor constructs a rule auditor.
func NewRuleAuditor(events EventLister, now func() time.Time, logger *slog.Logger) *RuleAuditor {
	if now == nil {
		now = time.Now
	}
	return &RuleAuditor{events: events, now: now, logger: defaultLogger(logger)}
}

// Audit checks every stored rule. Malformed rules are logged and reported;
// they are not an error.
func (a *RuleAuditor) Audit(ctx context.Context) (report AuditReport, err error) {
	if a == nil || a.events == nil {
		return AuditReport{}, fmt.Errorf("rule auditor not configured")
	}
	logger := serviceLogger(ctx, a.logger, "RuleAuditor", "Audit")
	report.StartedAt = a.now()

	events, err := a.events.ListAllEvents(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list events", "error", err)
		return AuditReport{}, err
	}
	for _, event := range events {
		report.Checked++
		if event.RecurrenceRule == "" {
			continue
		}
		report.Recurring++
		if _, pErr := recurrence.Parse(event.RecurrenceRule); pErr != nil {
			reason := pErr.Error()
			var mErr *recurrence.MalformedRuleError
			if errors.As(pErr, &mErr) {
				reason = mErr.Reason
			}
			report.Malformed = append(report.Malformed, MalformedRule{
				EventID:  event.ID,
				SchoolID: event.SchoolID,
				Rule:     event.RecurrenceRule,
				Reason:   reason,
			})
			logger.WarnContext(ctx, "stored recurrence rule is malformed",
				"event_id", event.ID,
				"school_id", event.SchoolID,
				"rule", event.RecurrenceRule,
				"reason", reason,
			)
		}
	}
	report.Duration = a.now().Sub(report.StartedAt)

	logger.InfoContext(ctx, "recurrence audit finished",
		"checked", report.Checked,
		"recurring", report.Recurring,
		"malformed", len(report.Malformed),
		"duration", report.Duration,
	)
	return report, nil
}
