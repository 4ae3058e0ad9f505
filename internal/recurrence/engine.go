package recurrence

import (
	"iter"
	"strings"
	"time"
)

// defaultPeriodLimit caps how many periods a single expansion may walk.
const defaultPeriodLimit = 1 << 20

var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Occurrence is one concrete instance of a series. It is computed on demand
// and never stored.
type Occurrence struct {
	SourceID string
	Start    time.Time
	End      time.Time
}

// Overlaps reports half-open interval overlap.
func (o Occurrence) Overlaps(other Occurrence) bool {
	return o.Start.Before(other.End) && other.Start.Before(o.End)
}

// Series is the anchor of a recurring (or single) event. A nil Rule means the
// event happens once.
type Series struct {
	ID     string
	Start  time.Time
	End    time.Time
	AllDay bool
	Rule   *Rule
}

// SeriesFromText parses ruleText into a Series. Empty text means no recurrence.
// Parse failures are annotated with id.
func SeriesFromText(id string, start, end time.Time, allDay bool, ruleText string) (Series, error) {
	series := Series{ID: id, Start: start, End: end, AllDay: allDay}
	if strings.TrimSpace(ruleText) == "" {
		return series, nil
	}
	rule, err := Parse(ruleText)
	if err != nil {
		return Series{}, WithEvent(err, id)
	}
	series.Rule = &rule
	return series, nil
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate rejects empty and inverted windows.
func (w Window) Validate() error {
	if !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Engine expands series into occurrences using wall-clock arithmetic in a
// fixed location.
type Engine struct {
	location    *time.Location
	periodLimit int
}

// NewEngine constructs an Engine that evaluates rules in loc. If loc is nil,
// UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc, periodLimit: defaultPeriodLimit}
}

// Location returns the zone used for date arithmetic.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// NormalizeAllDay snaps an all-day range to local midnights covering at least
// one whole day.
func NormalizeAllDay(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	start, end = start.In(loc), end.In(loc)
	from := DateOf(start).In(loc)
	to := DateOf(end).In(loc)
	if end.After(to) {
		to = to.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		to = from.AddDate(0, 0, 1)
	}
	return from, to
}

// Occurrences returns the occurrences of series whose start lies in window, in
// ascending order. The sequence is restartable and always finite.
//
// A series without a rule follows the same test: it is emitted only when its
// start lies in window, even if it is still running at window.Start. Callers
// that need every occurrence overlapping window move window.Start back by the
// event duration and drop occurrences that end before the original start, as
// scheduler.Project does.
func (e *Engine) Occurrences(series Series, window Window) (iter.Seq[Occurrence], error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	loc := e.Location()
	anchor, anchorEnd := series.Start.In(loc), series.End.In(loc)
	if series.AllDay {
		anchor, anchorEnd = NormalizeAllDay(anchor, anchorEnd, loc)
	}
	if !anchorEnd.After(anchor) {
		return nil, ErrInvalidDuration
	}
	duration := anchorEnd.Sub(anchor)

	if series.Rule == nil {
		return func(yield func(Occurrence) bool) {
			if window.Contains(anchor) {
				yield(Occurrence{SourceID: series.ID, Start: anchor, End: anchorEnd})
			}
		}, nil
	}

	rule := *series.Rule
	if err := rule.validate(); err != nil {
		return nil, WithEvent(err, series.ID)
	}
	walk := walker{
		id:       series.ID,
		rule:     rule,
		anchor:   anchor,
		duration: duration,
		window:   Window{Start: window.Start.In(loc), End: window.End.In(loc)},
		limit:    e.periodLimit,
	}
	return walk.run, nil
}

// Expand collects Occurrences into a slice.
func (e *Engine) Expand(series Series, window Window) ([]Occurrence, error) {
	seq, err := e.Occurrences(series, window)
	if err != nil {
		return nil, err
	}
	var out []Occurrence
	for occ := range seq {
		out = append(out, occ)
	}
	return out, nil
}

// LastEnd returns the end of the final occurrence of a bounded series. The
// boolean is false for rules that never end.
func (e *Engine) LastEnd(series Series) (time.Time, bool, error) {
	if series.Rule != nil && series.Rule.end.kind == EndNever {
		return time.Time{}, false, nil
	}
	seq, err := e.Occurrences(series, Window{End: farFuture})
	if err != nil {
		return time.Time{}, false, err
	}
	last := series.Start.In(e.Location())
	for occ := range seq {
		last = occ.End
	}
	return last, true, nil
}

type walker struct {
	id       string
	rule     Rule
	anchor   time.Time
	duration time.Duration
	window   Window
	limit    int
}

func (w walker) run(yield func(Occurrence) bool) {
	countLimit, counted := w.rule.end.CountLimit()
	until, bounded := w.rule.end.UntilDate()

	first := 0
	if !counted {
		// Without COUNT nothing before the window affects the result.
		first = w.skipTo(w.window.Start)
	}

	emitted := 0
	var buf []time.Time
	for k := first; k < first+w.limit; k++ {
		periodStart := w.periodStart(k)
		if !periodStart.Before(w.window.End) {
			return
		}
		if bounded && DateOf(periodStart).Compare(until) > 0 {
			return
		}
		buf = w.candidates(k, buf[:0])
		for _, start := range buf {
			if start.Before(w.anchor) {
				continue
			}
			if bounded && DateOf(start).Compare(until) > 0 {
				return
			}
			if counted && emitted >= countLimit {
				return
			}
			if !start.Before(w.window.End) {
				return
			}
			emitted++
			if start.Before(w.window.Start) {
				continue
			}
			if !yield(Occurrence{SourceID: w.id, Start: start, End: start.Add(w.duration)}) {
				return
			}
		}
	}
}

// skipTo returns the first period index that can produce an occurrence at or
// after from.
func (w walker) skipTo(from time.Time) int {
	if !from.After(w.anchor) {
		return 0
	}
	from = from.In(w.anchor.Location())
	interval := w.rule.interval
	a, f := DateOf(w.anchor), DateOf(from)
	var units int
	switch w.rule.frequency {
	case FrequencyDaily:
		units = dayNumber(f) - dayNumber(a)
	case FrequencyWeekly:
		units = (mondayNumber(f) - mondayNumber(a)) / 7
	case FrequencyMonthly:
		units = (f.Year-a.Year)*12 + int(f.Month) - int(a.Month)
	case FrequencyYearly:
		units = f.Year - a.Year
	}
	if units <= 0 {
		return 0
	}
	return units / interval
}

func (w walker) periodStart(k int) time.Time {
	loc := w.anchor.Location()
	y, m, d := w.anchor.Date()
	step := k * w.rule.interval
	switch w.rule.frequency {
	case FrequencyDaily:
		return time.Date(y, m, d+step, 0, 0, 0, 0, loc)
	case FrequencyWeekly:
		monday := d - int(WeekdayOf(w.anchor.Weekday()))
		return time.Date(y, m, monday+7*step, 0, 0, 0, 0, loc)
	case FrequencyMonthly:
		return time.Date(y, m+time.Month(step), 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y+step, time.January, 1, 0, 0, 0, 0, loc)
	}
}

// candidates appends the starts generated by period k in ascending order.
func (w walker) candidates(k int, buf []time.Time) []time.Time {
	loc := w.anchor.Location()
	y, m, d := w.anchor.Date()
	hh, mm, ss := w.anchor.Clock()
	ns := w.anchor.Nanosecond()
	at := func(year int, month time.Month, day int) time.Time {
		return time.Date(year, month, day, hh, mm, ss, ns, loc)
	}
	step := k * w.rule.interval

	switch w.rule.frequency {
	case FrequencyDaily:
		return append(buf, at(y, m, d+step))
	case FrequencyWeekly:
		monday := d - int(WeekdayOf(w.anchor.Weekday())) + 7*step
		days := w.rule.weekdays
		if len(days) == 0 {
			days = []Weekday{WeekdayOf(w.anchor.Weekday())}
		}
		for _, day := range days {
			buf = append(buf, at(y, m, monday+int(day)))
		}
		return buf
	case FrequencyMonthly:
		first := time.Date(y, m+time.Month(step), 1, 0, 0, 0, 0, time.UTC)
		ty, tm := first.Year(), first.Month()
		if w.rule.monthPosition != 0 {
			if day := nthWeekday(ty, tm, w.rule.weekdays[0], w.rule.monthPosition); day > 0 {
				buf = append(buf, at(ty, tm, day))
			}
			return buf
		}
		if d <= daysIn(ty, tm) {
			buf = append(buf, at(ty, tm, d))
		}
		return buf
	case FrequencyYearly:
		ty := y + step
		if d <= daysIn(ty, m) {
			buf = append(buf, at(ty, m, d))
		}
		return buf
	}
	return buf
}

// nthWeekday returns the day of month of the pos-th (or last, for -1) given
// weekday, or 0 when the month has no such day.
func nthWeekday(year int, month time.Month, day Weekday, pos int) int {
	last := daysIn(year, month)
	if pos < 0 {
		lastDay := WeekdayOf(time.Date(year, month, last, 0, 0, 0, 0, time.UTC).Weekday())
		return last - (int(lastDay)-int(day)+7)%7
	}
	firstDay := WeekdayOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday())
	dom := 1 + (int(day)-int(firstDay)+7)%7 + 7*(pos-1)
	if dom > last {
		return 0
	}
	return dom
}

// dayNumber counts days since the Unix epoch for a civil date.
func dayNumber(d Date) int {
	return int(d.In(time.UTC).Unix() / 86400)
}

func mondayNumber(d Date) int {
	n := dayNumber(d)
	return n - int(WeekdayOf(d.In(time.UTC).Weekday()))
}
