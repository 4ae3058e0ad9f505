package scheduler

import (
	"slices"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/recurrence"
)

// DefaultLookAhead bounds conflict expansion when both events never end.
const DefaultLookAhead = 365 * 24 * time.Hour

// Event is the scheduling view of a persisted schedule event.
type Event struct {
	ID             string
	SchoolID       string
	ClassID        string
	SubjectID      string
	TeacherID      string
	Title          string
	Start          time.Time
	End            time.Time
	AllDay         bool
	RecurrenceRule string
}

// Series converts the event into an expandable series.
func (e Event) Series() (recurrence.Series, error) {
	return recurrence.SeriesFromText(e.ID, e.Start, e.End, e.AllDay, e.RecurrenceRule)
}

// ConflictField names the shared resource behind a conflict.
type ConflictField string

const (
	// ConflictFieldClass indicates the class is double-booked.
	ConflictFieldClass ConflictField = "class"
	// ConflictFieldTeacher indicates the teacher is double-booked.
	ConflictFieldTeacher ConflictField = "teacher"
)

// Result is the outcome of a conflict check. The zero value means no conflict.
type Result struct {
	Conflict    bool
	WithEventID string
	Field       ConflictField
	// Candidate and Existing are the first pair of overlapping occurrences.
	Candidate recurrence.Occurrence
	Existing  recurrence.Occurrence
}

// Detector decides whether a candidate event overlaps existing events that
// share its class or teacher.
type Detector struct {
	engine    *recurrence.Engine
	lookAhead time.Duration
}

// NewDetector constructs a Detector. A non-positive lookAhead uses DefaultLookAhead.
func NewDetector(engine *recurrence.Engine, lookAhead time.Duration) *Detector {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if lookAhead <= 0 {
		lookAhead = DefaultLookAhead
	}
	return &Detector{engine: engine, lookAhead: lookAhead}
}

// Check compares candidate against existing. Events with the candidate's ID are
// ignored so an edited event never conflicts with its stored version. Class
// conflicts are reported before teacher conflicts; within each, events are
// visited in ID order.
func (d *Detector) Check(candidate Event, existing []Event) (Result, error) {
	candidateSeries, err := candidate.Series()
	if err != nil {
		return Result{}, err
	}

	ordered := slices.Clone(existing)
	slices.SortFunc(ordered, func(a, b Event) int { return strings.Compare(a.ID, b.ID) })

	for _, field := range []ConflictField{ConflictFieldClass, ConflictFieldTeacher} {
		for _, other := range ordered {
			if candidate.ID != "" && other.ID == candidate.ID {
				continue
			}
			if !shares(field, candidate, other) {
				continue
			}
			if field == ConflictFieldTeacher && shares(ConflictFieldClass, candidate, other) {
				continue
			}
			otherSeries, err := other.Series()
			if err != nil {
				return Result{}, err
			}
			a, b, found, err := d.firstOverlap(candidateSeries, otherSeries)
			if err != nil {
				return Result{}, err
			}
			if found {
				return Result{Conflict: true, WithEventID: other.ID, Field: field, Candidate: a, Existing: b}, nil
			}
		}
	}
	return Result{}, nil
}

func shares(field ConflictField, a, b Event) bool {
	switch field {
	case ConflictFieldClass:
		return a.ClassID != "" && a.ClassID == b.ClassID
	case ConflictFieldTeacher:
		return a.TeacherID != "" && a.TeacherID == b.TeacherID
	}
	return false
}

// horizon returns the expansion window for a pair. It depends only on the
// unordered pair, which keeps Check symmetric.
func (d *Detector) horizon(a, b recurrence.Series) (recurrence.Window, error) {
	start := a.Start
	if b.Start.Before(start) {
		start = b.Start
	}
	// All-day anchors snap back to local midnight.
	start = start.Add(-24 * time.Hour)

	var (
		end     time.Time
		bounded bool
	)
	for _, s := range []recurrence.Series{a, b} {
		last, ok, err := d.engine.LastEnd(s)
		if err != nil {
			return recurrence.Window{}, err
		}
		if ok && (!bounded || last.Before(end)) {
			end, bounded = last, true
		}
	}
	if !bounded {
		latest := a.Start
		if b.Start.After(latest) {
			latest = b.Start
		}
		end = latest.Add(d.lookAhead)
	}
	if !end.After(start) {
		end = start.Add(time.Nanosecond)
	}
	return recurrence.Window{Start: start, End: end}, nil
}

func (d *Detector) firstOverlap(a, b recurrence.Series) (recurrence.Occurrence, recurrence.Occurrence, bool, error) {
	var none recurrence.Occurrence
	window, err := d.horizon(a, b)
	if err != nil {
		return none, none, false, err
	}
	left, err := d.engine.Expand(a, window)
	if err != nil {
		return none, none, false, err
	}
	right, err := d.engine.Expand(b, window)
	if err != nil {
		return none, none, false, err
	}

	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch {
		case left[i].Overlaps(right[j]):
			return left[i], right[j], true, nil
		case !left[i].End.After(right[j].Start):
			i++
		case !right[j].End.After(left[i].Start):
			j++
		default:
			// Unreachable for half-open intervals.
			i++
		}
	}
	return none, none, false, nil
}
