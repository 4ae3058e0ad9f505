package recurrence

import (
	"fmt"
	"strings"
	"time"
)

var unitNames = map[Frequency][2]string{
	FrequencyDaily:   {"day", "daily"},
	FrequencyWeekly:  {"week", "weekly"},
	FrequencyMonthly: {"month", "monthly"},
	FrequencyYearly:  {"year", "yearly"},
}

var positionNames = map[int]string{
	1:  "first",
	2:  "second",
	3:  "third",
	4:  "fourth",
	-1: "last",
}

// Describe renders the rule as English text, e.g.
// "every 2 weeks on Mon, Wed until Dec 31, 2025". The output is advisory.
func (r Rule) Describe() string {
	names, ok := unitNames[r.frequency]
	if !ok {
		return "invalid recurrence"
	}

	var b strings.Builder
	if r.interval == 1 {
		b.WriteString(names[1])
	} else {
		fmt.Fprintf(&b, "every %d %ss", r.interval, names[0])
	}

	switch {
	case r.monthPosition != 0 && len(r.weekdays) == 1:
		fmt.Fprintf(&b, " on the %s %s", positionNames[r.monthPosition], r.weekdays[0].Std())
	case len(r.weekdays) > 0:
		labels := make([]string, len(r.weekdays))
		for i, day := range r.weekdays {
			labels[i] = weekdayNames[day]
		}
		b.WriteString(" on ")
		b.WriteString(strings.Join(labels, ", "))
	}

	switch r.end.kind {
	case EndUntil:
		b.WriteString(" until ")
		b.WriteString(r.end.until.In(time.UTC).Format("Jan 2, 2006"))
	case EndCount:
		if r.end.count == 1 {
			b.WriteString(", once")
		} else {
			fmt.Fprintf(&b, ", %d times", r.end.count)
		}
	}
	return b.String()
}
