package recurrence

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		freq     Frequency
		interval int
		weekdays []Weekday
		position int
		end      EndCondition
	}{
		{
			name:     "weekly with weekdays",
			text:     "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE",
			freq:     FrequencyWeekly,
			interval: 1,
			weekdays: []Weekday{Monday, Wednesday},
			end:      Never(),
		},
		{
			name:     "interval defaults to one",
			text:     "FREQ=DAILY",
			freq:     FrequencyDaily,
			interval: 1,
			end:      Never(),
		},
		{
			name:     "month position as separate component",
			text:     "FREQ=MONTHLY;BYDAY=MO;BYMONTHPOS=-1",
			freq:     FrequencyMonthly,
			interval: 1,
			weekdays: []Weekday{Monday},
			position: -1,
			end:      Never(),
		},
		{
			name:     "month position as BYSETPOS",
			text:     "FREQ=MONTHLY;INTERVAL=2;BYDAY=TH;BYSETPOS=2",
			freq:     FrequencyMonthly,
			interval: 2,
			weekdays: []Weekday{Thursday},
			position: 2,
			end:      Never(),
		},
		{
			name:     "month position as ordinal prefix",
			text:     "RRULE:FREQ=MONTHLY;INTERVAL=1;BYDAY=+3FR",
			freq:     FrequencyMonthly,
			interval: 1,
			weekdays: []Weekday{Friday},
			position: 3,
			end:      Never(),
		},
		{
			name:     "until as ISO date",
			text:     "FREQ=WEEKLY;INTERVAL=1;UNTIL=2024-01-10",
			freq:     FrequencyWeekly,
			interval: 1,
			end:      Until(Date{2024, time.January, 10}),
		},
		{
			name:     "until as UTC date-time keeps the date",
			text:     "freq=weekly;until=20251231T235959Z",
			freq:     FrequencyWeekly,
			interval: 1,
			end:      Until(Date{2025, time.December, 31}),
		},
		{
			name:     "count",
			text:     "FREQ=YEARLY;INTERVAL=1;COUNT=3;WKST=MO",
			freq:     FrequencyYearly,
			interval: 1,
			end:      Count(3),
		},
		{
			name:     "weekday order and duplicates normalised",
			text:     "FREQ=WEEKLY;BYDAY=FR,MO,FR",
			freq:     FrequencyWeekly,
			interval: 1,
			weekdays: []Weekday{Monday, Friday},
			end:      Never(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.text, err)
			}
			if rule.Frequency() != tt.freq {
				t.Fatalf("frequency = %v, want %v", rule.Frequency(), tt.freq)
			}
			if rule.Interval() != tt.interval {
				t.Fatalf("interval = %d, want %d", rule.Interval(), tt.interval)
			}
			got := rule.Weekdays()
			if len(got) != len(tt.weekdays) {
				t.Fatalf("weekdays = %v, want %v", got, tt.weekdays)
			}
			for i := range got {
				if got[i] != tt.weekdays[i] {
					t.Fatalf("weekdays = %v, want %v", got, tt.weekdays)
				}
			}
			if rule.MonthPosition() != tt.position {
				t.Fatalf("month position = %d, want %d", rule.MonthPosition(), tt.position)
			}
			if rule.End() != tt.end {
				t.Fatalf("end = %+v, want %+v", rule.End(), tt.end)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{name: "until and count together", text: "FREQ=WEEKLY;INTERVAL=1;UNTIL=2024-01-10;COUNT=5", reason: "mutually exclusive"},
		{name: "missing frequency", text: "INTERVAL=2;BYDAY=MO", reason: "FREQ is required"},
		{name: "unknown frequency", text: "FREQ=HOURLY", reason: "not recognized"},
		{name: "empty text", text: "  ", reason: "empty"},
		{name: "position without monthly", text: "FREQ=WEEKLY;BYDAY=MO;BYMONTHPOS=1", reason: "requires MONTHLY"},
		{name: "position with two weekdays", text: "FREQ=MONTHLY;BYDAY=MO,TU;BYSETPOS=-1", reason: "exactly one weekday"},
		{name: "position without weekday", text: "FREQ=MONTHLY;BYMONTHPOS=2", reason: "exactly one weekday"},
		{name: "position out of range", text: "FREQ=MONTHLY;BYDAY=5MO", reason: "1, 2, 3, 4 or -1"},
		{name: "weekdays on monthly without position", text: "FREQ=MONTHLY;BYDAY=MO", reason: "weekdays require"},
		{name: "zero interval", text: "FREQ=DAILY;INTERVAL=0", reason: "positive integer"},
		{name: "zero count", text: "FREQ=DAILY;COUNT=0", reason: "positive integer"},
		{name: "bad weekday", text: "FREQ=WEEKLY;BYDAY=XX", reason: "not a weekday"},
		{name: "bad until", text: "FREQ=DAILY;UNTIL=tomorrow", reason: "not a recognised date"},
		{name: "duplicate key", text: "FREQ=DAILY;FREQ=WEEKLY", reason: "more than once"},
		{name: "unknown key", text: "FREQ=DAILY;BYHOUR=9", reason: "unsupported component"},
		{name: "sunday week start", text: "FREQ=WEEKLY;WKST=SU", reason: "weeks start on Monday"},
		{name: "conflicting positions", text: "FREQ=MONTHLY;BYDAY=-1MO;BYMONTHPOS=2", reason: "more than once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.text)
			var mErr *MalformedRuleError
			if !errors.As(err, &mErr) {
				t.Fatalf("Parse(%q) error = %v, want MalformedRuleError", tt.text, err)
			}
			if !strings.Contains(mErr.Reason, tt.reason) {
				t.Fatalf("reason = %q, want it to contain %q", mErr.Reason, tt.reason)
			}
			if mErr.Text != strings.TrimSpace(tt.text) {
				t.Fatalf("error text = %q, want %q", mErr.Text, tt.text)
			}
		})
	}
}

func TestRule_StringRoundTrip(t *testing.T) {
	t.Parallel()

	rules := []Rule{
		mustNewRule(t, FrequencyDaily),
		mustNewRule(t, FrequencyDaily, WithInterval(3), WithEnd(Count(10))),
		mustNewRule(t, FrequencyWeekly, WithWeekdays(Wednesday, Monday)),
		mustNewRule(t, FrequencyWeekly, WithInterval(2), WithWeekdays(Tuesday, Thursday), WithEnd(Until(Date{2025, time.December, 31}))),
		mustNewRule(t, FrequencyMonthly),
		mustNewRule(t, FrequencyMonthly, WithWeekdays(Monday), WithMonthPosition(-1)),
		mustNewRule(t, FrequencyMonthly, WithInterval(2), WithWeekdays(Friday), WithMonthPosition(4), WithEnd(Count(6))),
		mustNewRule(t, FrequencyYearly, WithEnd(Until(Date{2030, time.February, 28}))),
	}

	for _, rule := range rules {
		text := rule.String()
		parsed, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", text, err)
		}
		if !parsed.Equal(rule) {
			t.Fatalf("round trip of %q produced %+v, want %+v", text, parsed, rule)
		}
		if again := parsed.String(); again != text {
			t.Fatalf("serialisation is not stable: %q then %q", text, again)
		}
	}
}

func TestRule_StringCanonicalForm(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"FREQ=MONTHLY;BYDAY=MO;BYMONTHPOS=-1":       "FREQ=MONTHLY;INTERVAL=1;BYDAY=-1MO",
		"FREQ=WEEKLY;BYDAY=WE,MO;UNTIL=2024-01-10":  "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;UNTIL=20240110T235959",
		"RRULE:freq=daily;interval=2;count=4":       "FREQ=DAILY;INTERVAL=2;COUNT=4",
		"FREQ=YEARLY;INTERVAL=1;UNTIL=20270101":     "FREQ=YEARLY;INTERVAL=1;UNTIL=20270101T235959",
		"FREQ=WEEKLY;INTERVAL=1;BYDAY=MO;WKST=MO":   "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO",
		"FREQ=MONTHLY;INTERVAL=1;BYDAY=2TU;COUNT=3": "FREQ=MONTHLY;INTERVAL=1;BYDAY=2TU;COUNT=3",
	}

	for input, want := range tests {
		if got := MustParse(input).String(); got != want {
			t.Fatalf("String() of %q = %q, want %q", input, got, want)
		}
	}
}

func TestNewRule_EnforcesInvariants(t *testing.T) {
	t.Parallel()

	if _, err := NewRule(FrequencyUnspecified); !IsMalformed(err) {
		t.Fatalf("expected malformed error for missing frequency, got %v", err)
	}
	if _, err := NewRule(FrequencyWeekly, WithMonthPosition(1), WithWeekdays(Monday)); !IsMalformed(err) {
		t.Fatalf("expected malformed error for weekly month position, got %v", err)
	}
	if _, err := NewRule(FrequencyDaily, WithEnd(Until(Date{2024, time.February, 30}))); !IsMalformed(err) {
		t.Fatalf("expected malformed error for invalid until date, got %v", err)
	}
	if _, err := NewRule(FrequencyWeekly, WithWeekdays(Weekday(9))); !IsMalformed(err) {
		t.Fatalf("expected malformed error for out of range weekday, got %v", err)
	}
}

func TestRule_Describe(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;UNTIL=2025-12-31": "every 2 weeks on Mon, Wed until Dec 31, 2025",
		"FREQ=DAILY;INTERVAL=1":                               "daily",
		"FREQ=MONTHLY;BYDAY=-1MO;COUNT=5":                     "monthly on the last Monday, 5 times",
		"FREQ=YEARLY;INTERVAL=1;COUNT=1":                      "yearly, once",
		"FREQ=MONTHLY;INTERVAL=3":                             "every 3 months",
	}

	for text, want := range tests {
		if got := MustParse(text).Describe(); got != want {
			t.Fatalf("Describe(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestWeekdayOf(t *testing.T) {
	t.Parallel()

	if got := WeekdayOf(time.Sunday); got != Sunday {
		t.Fatalf("WeekdayOf(Sunday) = %v, want SU", got)
	}
	if got := WeekdayOf(time.Monday); got != Monday {
		t.Fatalf("WeekdayOf(Monday) = %v, want MO", got)
	}
	for day := Monday; day <= Sunday; day++ {
		if WeekdayOf(day.Std()) != day {
			t.Fatalf("Std round trip failed for %v", day)
		}
	}
}

func mustNewRule(t *testing.T, freq Frequency, opts ...Option) Rule {
	t.Helper()
	rule, err := NewRule(freq, opts...)
	if err != nil {
		t.Fatalf("NewRule returned error: %v", err)
	}
	return rule
}
