package recurrence

import (
	"fmt"
	"slices"
	"time"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats every N days.
	FrequencyDaily
	// FrequencyWeekly repeats every N weeks on the selected weekdays.
	FrequencyWeekly
	// FrequencyMonthly repeats every N months on the anchor day or a month position.
	FrequencyMonthly
	// FrequencyYearly repeats every N years on the anchor month and day.
	FrequencyYearly
)

var frequencyTokens = map[Frequency]string{
	FrequencyDaily:   "DAILY",
	FrequencyWeekly:  "WEEKLY",
	FrequencyMonthly: "MONTHLY",
	FrequencyYearly:  "YEARLY",
}

// String returns the wire token for the frequency.
func (f Frequency) String() string {
	if token, ok := frequencyTokens[f]; ok {
		return token
	}
	return "UNSPECIFIED"
}

// Weekday numbers days Monday=0 through Sunday=6 regardless of locale.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayTokens = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

var weekdayNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayOf converts a time.Weekday into the Monday-based numbering.
func WeekdayOf(day time.Weekday) Weekday {
	return Weekday((int(day) + 6) % 7)
}

// Valid reports whether the weekday is within Monday..Sunday.
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

// Std converts the weekday back to the time package numbering.
func (w Weekday) Std() time.Weekday {
	return time.Weekday((int(w) + 1) % 7)
}

// String returns the two-letter wire token.
func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayTokens[w]
}

// Date is a calendar date without clock or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return d.Day <= daysIn(d.Year, d.Month)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// EndKind tags the variant held by an EndCondition.
type EndKind int

const (
	// EndNever leaves the rule unbounded.
	EndNever EndKind = iota
	// EndUntil bounds the rule by an inclusive calendar date.
	EndUntil
	// EndCount bounds the rule by a total number of occurrences.
	EndCount
)

// EndCondition is exactly one of Never, Until(date) or Count(n).
type EndCondition struct {
	kind  EndKind
	until Date
	count int
}

// Never returns an unbounded end condition.
func Never() EndCondition { return EndCondition{kind: EndNever} }

// Until bounds the rule by an inclusive date.
func Until(d Date) EndCondition { return EndCondition{kind: EndUntil, until: d} }

// Count bounds the rule by n occurrences, the first one included.
func Count(n int) EndCondition { return EndCondition{kind: EndCount, count: n} }

// Kind reports which variant is held.
func (c EndCondition) Kind() EndKind { return c.kind }

// UntilDate returns the inclusive end date when Kind is EndUntil.
func (c EndCondition) UntilDate() (Date, bool) {
	return c.until, c.kind == EndUntil
}

// CountLimit returns the occurrence limit when Kind is EndCount.
func (c EndCondition) CountLimit() (int, bool) {
	return c.count, c.kind == EndCount
}

// Rule is a validated recurrence rule. The zero value is not valid; build one
// with NewRule or Parse.
type Rule struct {
	frequency     Frequency
	interval      int
	weekdays      []Weekday
	monthPosition int
	end           EndCondition
}

// Option customises a rule under construction.
type Option func(*Rule)

// WithInterval sets the step between periods. Defaults to 1.
func WithInterval(n int) Option {
	return func(r *Rule) { r.interval = n }
}

// WithWeekdays sets the weekday selection.
func WithWeekdays(days ...Weekday) Option {
	return func(r *Rule) { r.weekdays = append([]Weekday(nil), days...) }
}

// WithMonthPosition selects the Nth (1..4) or last (-1) weekday of the month.
func WithMonthPosition(pos int) Option {
	return func(r *Rule) { r.monthPosition = pos }
}

// WithEnd sets the end condition. Defaults to Never.
func WithEnd(end EndCondition) Option {
	return func(r *Rule) { r.end = end }
}

// NewRule builds a rule and enforces its structural invariants.
func NewRule(freq Frequency, opts ...Option) (Rule, error) {
	rule := Rule{frequency: freq, interval: 1, end: Never()}
	for _, opt := range opts {
		opt(&rule)
	}
	rule.weekdays = normalizeWeekdays(rule.weekdays)
	if err := rule.validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Frequency returns the repetition unit.
func (r Rule) Frequency() Frequency { return r.frequency }

// Interval returns the number of units between periods.
func (r Rule) Interval() int { return r.interval }

// Weekdays returns a copy of the weekday selection in Monday..Sunday order.
func (r Rule) Weekdays() []Weekday { return slices.Clone(r.weekdays) }

// MonthPosition returns the month position, or 0 when unset.
func (r Rule) MonthPosition() int { return r.monthPosition }

// End returns the end condition.
func (r Rule) End() EndCondition { return r.end }

// Equal reports structural equality.
func (r Rule) Equal(other Rule) bool {
	return r.frequency == other.frequency &&
		r.interval == other.interval &&
		slices.Equal(r.weekdays, other.weekdays) &&
		r.monthPosition == other.monthPosition &&
		r.end == other.end
}

func (r Rule) validate() error {
	if _, ok := frequencyTokens[r.frequency]; !ok {
		return malformed("", "frequency is missing or unrecognized")
	}
	if r.interval < 1 {
		return malformed("", "interval must be a positive integer")
	}
	for _, day := range r.weekdays {
		if !day.Valid() {
			return malformed("", fmt.Sprintf("weekday %d is out of range", int(day)))
		}
	}
	switch r.monthPosition {
	case 0:
		if len(r.weekdays) > 0 && r.frequency != FrequencyWeekly {
			return malformed("", "weekdays require WEEKLY, or MONTHLY with a month position")
		}
	case 1, 2, 3, 4, -1:
		if r.frequency != FrequencyMonthly {
			return malformed("", "month position requires MONTHLY frequency")
		}
		if len(r.weekdays) != 1 {
			return malformed("", "month position requires exactly one weekday")
		}
	default:
		return malformed("", "month position must be one of 1, 2, 3, 4 or -1")
	}
	switch r.end.kind {
	case EndNever:
	case EndUntil:
		if !r.end.until.valid() {
			return malformed("", "until date is not a valid calendar date")
		}
	case EndCount:
		if r.end.count < 1 {
			return malformed("", "count must be a positive integer")
		}
	default:
		return malformed("", "unknown end condition")
	}
	return nil
}

func normalizeWeekdays(days []Weekday) []Weekday {
	if len(days) == 0 {
		return nil
	}
	out := slices.Clone(days)
	slices.Sort(out)
	return slices.Compact(out)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
