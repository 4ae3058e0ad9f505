// Package ics renders schedule series as an iCalendar feed. Each series
// becomes one VEVENT whose RRULE is the canonical rule text with UNTIL in the
// form RFC 5545 requires, so calendar clients expand occurrences themselves.
//
// Timed events carry TZID with the school's IANA zone name and the feed sets
// X-WR-TIMEZONE. No VTIMEZONE component is written; clients resolve the IANA
// name from their own zone database.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/school-scheduler/internal/recurrence"
	"github.com/example/school-scheduler/internal/scheduler"
)

// ContentType is the media type of an encoded feed.
const ContentType = "text/calendar; charset=utf-8"

const (
	productID   = "-//school-scheduler//timetable//EN"
	localLayout = "20060102T150405"
	utcLayout   = "20060102T150405Z"
	dateLayout  = "20060102"
	uidDomain   = "@school-scheduler"
)

// Feed describes the calendar wrapping the series.
type Feed struct {
	Name string
	// TimeZone is the IANA zone the series' wall clock times refer to.
	TimeZone string
	// Stamp is written as DTSTAMP on every event.
	Stamp time.Time
}

// Encode writes records as a VCALENDAR document to w.
func Encode(w io.Writer, feed Feed, records []scheduler.SeriesRecord) error {
	if w == nil {
		return errors.New("ics: nil writer")
	}
	loc, err := time.LoadLocation(feed.TimeZone)
	if err != nil {
		return err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if feed.Name != "" {
		cal.SetXWRCalName(feed.Name)
	}
	cal.SetXWRTimezone(loc.String())

	stamp := feed.Stamp.UTC()
	if feed.Stamp.IsZero() {
		stamp = time.Now().UTC()
	}

	for _, record := range records {
		event := cal.AddEvent(record.ID + uidDomain)
		event.SetDtStampTime(stamp)
		event.SetSummary(record.Title)
		if record.Description != "" {
			event.SetDescription(record.Description)
		}
		if record.AllDay {
			event.SetAllDayStartAt(record.Start.In(loc))
			event.SetAllDayEndAt(record.End.In(loc))
		} else {
			// Wall clock plus TZID keeps weekly series on the same local
			// time across DST changes.
			tzid := ical.WithTZID(loc.String())
			event.SetProperty(ical.ComponentPropertyDtStart, record.Start.In(loc).Format(localLayout), tzid)
			event.SetProperty(ical.ComponentPropertyDtEnd, record.End.In(loc).Format(localLayout), tzid)
		}
		if text := strings.TrimSpace(record.RecurrenceRule); text != "" {
			rule, err := feedRule(text, loc, record.AllDay)
			if err != nil {
				return fmt.Errorf("ics: event %s: %w", record.ID, err)
			}
			event.AddRrule(rule)
		}
	}

	return cal.SerializeTo(w)
}

// feedRule rewrites the floating UNTIL of canonical rule text into the form
// RFC 5545 pairs with the event's DTSTART: a DATE for all-day events, and the
// end of the UNTIL day in loc as UTC for timed events.
func feedRule(text string, loc *time.Location, allDay bool) (string, error) {
	rule, err := recurrence.Parse(text)
	if err != nil {
		return "", err
	}
	canonical := rule.String()
	until, ok := rule.End().UntilDate()
	if !ok {
		return canonical, nil
	}

	var value string
	if allDay {
		value = until.In(time.UTC).Format(dateLayout)
	} else {
		value = until.In(loc).AddDate(0, 0, 1).Add(-time.Second).UTC().Format(utcLayout)
	}
	parts := strings.Split(canonical, ";")
	for i, part := range parts {
		if strings.HasPrefix(part, "UNTIL=") {
			parts[i] = "UNTIL=" + value
		}
	}
	return strings.Join(parts, ";"), nil
}
