package recurrence_test

import (
	"testing"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/school-scheduler/internal/recurrence"
)

// Calendar widgets expand the stored text with an RFC 5545 library, so the
// canonical encoding must produce the same instants there as in the engine.
func TestCanonicalTextAgreesWithRRuleGo(t *testing.T) {
	t.Parallel()

	engine := recurrence.NewEngine(time.UTC)
	window := recurrence.Window{
		Start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		text   string
		anchor time.Time
	}{
		{name: "weekly mon wed", text: "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE", anchor: time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)},
		{name: "biweekly with until", text: "FREQ=WEEKLY;INTERVAL=2;BYDAY=TU,TH;UNTIL=2024-06-27", anchor: time.Date(2024, time.January, 4, 13, 0, 0, 0, time.UTC)},
		{name: "weekly anchor not selected", text: "FREQ=WEEKLY;BYDAY=MO,FR;COUNT=7", anchor: time.Date(2024, time.January, 3, 8, 0, 0, 0, time.UTC)},
		{name: "daily count", text: "FREQ=DAILY;INTERVAL=2;COUNT=15", anchor: time.Date(2024, time.February, 20, 7, 45, 0, 0, time.UTC)},
		{name: "monthly day 31", text: "FREQ=MONTHLY;INTERVAL=1", anchor: time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)},
		{name: "monthly last monday", text: "FREQ=MONTHLY;BYDAY=MO;BYMONTHPOS=-1", anchor: time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)},
		{name: "monthly third friday", text: "FREQ=MONTHLY;INTERVAL=2;BYDAY=3FR;UNTIL=2025-03-31", anchor: time.Date(2024, time.January, 19, 15, 0, 0, 0, time.UTC)},
		{name: "yearly leap day", text: "FREQ=YEARLY;INTERVAL=1;COUNT=3", anchor: time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)},
		{name: "until on occurrence day", text: "FREQ=DAILY;UNTIL=20240110", anchor: time.Date(2024, time.January, 1, 18, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule, err := recurrence.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			series := recurrence.Series{ID: tt.name, Start: tt.anchor, End: tt.anchor.Add(time.Hour), Rule: &rule}
			ours, err := engine.Expand(series, window)
			if err != nil {
				t.Fatalf("Expand returned error: %v", err)
			}

			canonical := "DTSTART=" + tt.anchor.Format("20060102T150405Z") + ";" + rule.String()
			theirs, err := rrule.StrToRRule(canonical)
			if err != nil {
				t.Fatalf("rrule-go rejected %q: %v", canonical, err)
			}
			var expected []time.Time
			for _, instant := range theirs.Between(window.Start, window.End, true) {
				if instant.Before(window.End) {
					expected = append(expected, instant)
				}
			}

			if len(ours) != len(expected) {
				t.Fatalf("%q: engine produced %d occurrences, rrule-go %d", canonical, len(ours), len(expected))
			}
			for i := range expected {
				if !ours[i].Start.Equal(expected[i]) {
					t.Fatalf("%q: occurrence %d engine=%s rrule-go=%s", canonical, i, ours[i].Start, expected[i])
				}
			}
		})
	}
}
