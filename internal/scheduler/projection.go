package scheduler

import (
	"slices"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/recurrence"
)

// FilterDimension selects how the calendar is narrowed.
type FilterDimension string

const (
	// FilterNone shows every event.
	FilterNone FilterDimension = ""
	// FilterClass shows one class's timetable.
	FilterClass FilterDimension = "class"
	// FilterTeacher shows one teacher's timetable.
	FilterTeacher FilterDimension = "teacher"
)

// Filter narrows a projection to one class or one teacher.
type Filter struct {
	Dimension FilterDimension
	Value     string
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(e Event) bool {
	switch f.Dimension {
	case FilterClass:
		return e.ClassID == f.Value
	case FilterTeacher:
		return e.TeacherID == f.Value
	default:
		return true
	}
}

// Labels maps reference IDs to display names.
type Labels struct {
	Classes  map[string]string
	Subjects map[string]string
	Teachers map[string]string
}

func lookup(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

// ViewEvent is one rendered occurrence. EventID plus Start/End identify the
// occurrence; edits always target the base event.
type ViewEvent struct {
	EventID         string    `json:"event_id"`
	Title           string    `json:"title"`
	SubjectName     string    `json:"subject_name"`
	CounterpartName string    `json:"counterpart_name"`
	ClassID         string    `json:"class_id"`
	ClassName       string    `json:"class_name"`
	SubjectID       string    `json:"subject_id"`
	TeacherID       string    `json:"teacher_id"`
	TeacherName     string    `json:"teacher_name"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	AllDay          bool      `json:"all_day"`
	RecurrenceRule  string    `json:"recurrence_rule,omitempty"`
}

// Unrenderable records an event whose schedule could not be expanded.
type Unrenderable struct {
	EventID string
	Title   string
	Err     error
}

// Projection is the calendar content for one window.
type Projection struct {
	Window       recurrence.Window
	Events       []ViewEvent
	Unrenderable []Unrenderable
}

// Project expands the filtered events over window and annotates each
// occurrence with display names. Occurrences that started before the window
// but are still running inside it are included. Output is ordered by start,
// then event ID.
func Project(engine *recurrence.Engine, events []Event, window recurrence.Window, filter Filter, labels Labels) (Projection, error) {
	if err := window.Validate(); err != nil {
		return Projection{}, err
	}
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}

	out := Projection{Window: window}
	for _, event := range events {
		if !filter.Matches(event) {
			continue
		}
		series, err := event.Series()
		if err != nil {
			out.Unrenderable = append(out.Unrenderable, Unrenderable{EventID: event.ID, Title: event.Title, Err: err})
			continue
		}
		lead := event.End.Sub(event.Start) + 24*time.Hour
		occurrences, err := engine.Expand(series, recurrence.Window{Start: window.Start.Add(-lead), End: window.End})
		if err != nil {
			out.Unrenderable = append(out.Unrenderable, Unrenderable{EventID: event.ID, Title: event.Title, Err: recurrence.WithEvent(err, event.ID)})
			continue
		}
		for _, occ := range occurrences {
			if !occ.End.After(window.Start) {
				continue
			}
			out.Events = append(out.Events, viewEvent(event, occ, filter, labels))
		}
	}

	slices.SortStableFunc(out.Events, func(a, b ViewEvent) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.EventID, b.EventID)
	})
	return out, nil
}

func viewEvent(event Event, occ recurrence.Occurrence, filter Filter, labels Labels) ViewEvent {
	view := ViewEvent{
		EventID:        event.ID,
		Title:          event.Title,
		SubjectName:    lookup(labels.Subjects, event.SubjectID),
		ClassID:        event.ClassID,
		ClassName:      lookup(labels.Classes, event.ClassID),
		SubjectID:      event.SubjectID,
		TeacherID:      event.TeacherID,
		TeacherName:    lookup(labels.Teachers, event.TeacherID),
		Start:          occ.Start,
		End:            occ.End,
		AllDay:         event.AllDay,
		RecurrenceRule: event.RecurrenceRule,
	}
	if view.Title == "" {
		view.Title = view.SubjectName
	}
	switch filter.Dimension {
	case FilterClass:
		view.CounterpartName = view.TeacherName
	case FilterTeacher:
		view.CounterpartName = view.ClassName
	default:
		view.CounterpartName = view.ClassName + " / " + view.TeacherName
	}
	return view
}

// DayWindow returns the local day containing t.
func DayWindow(t time.Time, loc *time.Location) recurrence.Window {
	start := recurrence.DateOf(t.In(loc)).In(loc)
	return recurrence.Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekWindow returns the Monday-based week containing t.
func WeekWindow(t time.Time, loc *time.Location) recurrence.Window {
	day := DayWindow(t, loc).Start
	monday := day.AddDate(0, 0, -int(recurrence.WeekdayOf(day.Weekday())))
	return recurrence.Window{Start: monday, End: monday.AddDate(0, 0, 7)}
}

// SeriesRecord is the shape handed to calendar widgets that expand rules
// themselves.
type SeriesRecord struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AllDay         bool      `json:"all_day"`
	RecurrenceRule string    `json:"recurrence_rule,omitempty"`
	Description    string    `json:"description,omitempty"`
}

// SeriesRecords converts events into one record per series with the rule in
// canonical text. Events with malformed rules are returned separately.
func SeriesRecords(events []Event, filter Filter, labels Labels) ([]SeriesRecord, []Unrenderable) {
	var (
		records []SeriesRecord
		failed  []Unrenderable
	)
	for _, event := range events {
		if !filter.Matches(event) {
			continue
		}
		series, err := event.Series()
		if err != nil {
			failed = append(failed, Unrenderable{EventID: event.ID, Title: event.Title, Err: err})
			continue
		}
		record := SeriesRecord{
			ID:     event.ID,
			Title:  event.Title,
			Start:  event.Start,
			End:    event.End,
			AllDay: event.AllDay,
		}
		if record.Title == "" {
			record.Title = lookup(labels.Subjects, event.SubjectID)
		}
		if series.Rule != nil {
			record.RecurrenceRule = series.Rule.String()
			record.Description = series.Rule.Describe()
		}
		records = append(records, record)
	}
	slices.SortStableFunc(records, func(a, b SeriesRecord) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return records, failed
}
