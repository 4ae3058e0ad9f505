package testfixtures

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSeed(t *testing.T) {
	storage := NewStorage(t)
	school := NewSchoolFixture(WithSchoolTimeZone("Asia/Tokyo"))
	lesson := NewEventFixture(school, WithRecurrence("FREQ=WEEKLY;INTERVAL=1;BYDAY=MO"))
	broken := NewEventFixture(school,
		WithRecurrence("FREQ=FORTNIGHTLY"),
		WithEventWindow(ReferenceTime().Add(2*time.Hour), ReferenceTime().Add(3*time.Hour)),
	)
	Seed(t, storage, school, lesson, broken)

	ctx := context.Background()
	stored, err := storage.Directory.GetSchool(ctx, school.ID)
	if err != nil {
		t.Fatalf("GetSchool failed: %v", err)
	}
	if stored.TimeZone != "Asia/Tokyo" {
		t.Fatalf("unexpected school %+v", stored)
	}
	if !strings.HasPrefix(school.ClassID, "class-") || strings.TrimPrefix(school.ClassID, "class-") != strings.TrimPrefix(school.ID, "school-") {
		t.Fatalf("reference IDs should share the school suffix: %+v", school)
	}

	events, err := storage.Events.ListEventsForSchool(ctx, school.ID)
	if err != nil {
		t.Fatalf("ListEventsForSchool failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	if events[1].RecurrenceRule != "FREQ=FORTNIGHTLY" {
		t.Fatalf("rules must be stored verbatim, got %q", events[1].RecurrenceRule)
	}
}
