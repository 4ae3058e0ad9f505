// Package http exposes the schedule engine over JSON.
//
// Every route except /schools and /healthz is scoped to the school named by
// the X-School-ID header; requests without it are rejected with 400.
//
//   - GET /events, POST /events: list or create events. Body fields are
//     class_id, subject_id, teacher_id, title, start, end, all_day and
//     recurrence_rule. Times without an offset are read in the school's zone.
//   - GET, PUT, DELETE /events/{id}: PUT applies a partial update; an empty
//     recurrence_rule turns a series into a single event.
//   - POST /events/check: dry-run conflict check. Returns 200 with
//     {"conflict":bool,"details":{...}}.
//   - GET /calendar?view=day|week&date=YYYY-MM-DD&class_id=|teacher_id=:
//     rendered occurrences. Events whose rule cannot be expanded are listed
//     under "unrenderable" instead of failing the view.
//   - GET /calendar/series: one record per series with its canonical rule.
//   - GET /calendar.ics: the same series as an iCalendar feed.
//   - POST /schools, GET /schools/{id}; GET/POST /classes, /subjects,
//     /teachers: directory maintenance.
//   - GET /healthz.
//
// Errors use {"error_code","message","errors","event_id","conflict"}:
// 422 for validation and malformed rules, 409 for schedule conflicts and
// duplicates, 404 for unknown events and 403 for events of another school.
package http
