package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRuleAuditor_Audit(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	events := newMemEvents(
		Event{ID: "single", SchoolID: "s1", Start: start, End: start.Add(time.Hour)},
		Event{ID: "weekly", SchoolID: "s1", Start: start, End: start.Add(time.Hour), RecurrenceRule: "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO"},
		Event{ID: "broken", SchoolID: "s2", Start: start, End: start.Add(time.Hour), RecurrenceRule: "FREQ=WEEKLY;UNTIL=2024-01-10;COUNT=5"},
	)

	var buf bytes.Buffer
	auditor := NewRuleAuditor(events, nil, slog.New(slog.NewTextHandler(&buf, nil)))

	report, err := auditor.Audit(context.Background())
	if err != nil {
		t.Fatalf("Audit returned error: %v", err)
	}
	if report.Checked != 3 || report.Recurring != 2 || len(report.Malformed) != 1 {
		t.Fatalf("unexpected report %#v", report)
	}
	bad := report.Malformed[0]
	if bad.EventID != "broken" || bad.SchoolID != "s2" || bad.Reason == "" {
		t.Fatalf("unexpected malformed entry %#v", bad)
	}
	if !strings.Contains(buf.String(), "event_id=broken") {
		t.Fatalf("expected malformed rule to be logged, got %q", buf.String())
	}
}

func TestRuleAuditor_ListFailure(t *testing.T) {
	t.Parallel()

	events := newMemEvents()
	events.listErr = errors.New("disk on fire")
	if _, err := NewRuleAuditor(events, nil, nil).Audit(context.Background()); err == nil {
		t.Fatalf("expected list failure to be returned")
	}
	if _, err := (*RuleAuditor)(nil).Audit(context.Background()); err == nil {
		t.Fatalf("expected nil auditor to fail")
	}
}
