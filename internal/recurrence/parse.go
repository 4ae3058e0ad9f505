package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// untilLayouts lists the accepted UNTIL encodings. Only the calendar date is kept.
var untilLayouts = []string{
	"2006-01-02",
	"20060102",
	"20060102T150405",
	"20060102T150405Z",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// Parse decodes rule text such as "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE".
func Parse(text string) (Rule, error) {
	raw := strings.TrimSpace(text)
	body := raw
	if len(body) >= 6 && strings.EqualFold(body[:6], "RRULE:") {
		body = body[6:]
	}
	if body == "" {
		return Rule{}, malformed(raw, "rule text is empty")
	}

	fields := make(map[string]string)
	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.ToUpper(strings.TrimSpace(value))
		if !ok || key == "" || value == "" {
			return Rule{}, malformed(raw, fmt.Sprintf("component %q is not KEY=VALUE", part))
		}
		if _, dup := fields[key]; dup {
			return Rule{}, malformed(raw, fmt.Sprintf("%s appears more than once", key))
		}
		fields[key] = value
	}

	var (
		rule = Rule{interval: 1, end: Never()}
		err  error
	)

	freq, ok := fields["FREQ"]
	if !ok {
		return Rule{}, malformed(raw, "FREQ is required")
	}
	rule.frequency, err = parseFrequency(freq)
	if err != nil {
		return Rule{}, malformed(raw, err.Error())
	}

	_, hasUntil := fields["UNTIL"]
	_, hasCount := fields["COUNT"]
	if hasUntil && hasCount {
		return Rule{}, malformed(raw, "UNTIL and COUNT are mutually exclusive")
	}

	for key, value := range fields {
		switch key {
		case "FREQ":
		case "INTERVAL":
			rule.interval, err = parsePositive(key, value)
		case "BYDAY":
			var pos int
			rule.weekdays, pos, err = parseByDay(value)
			if err == nil && pos != 0 {
				err = rule.setPosition(pos)
			}
		case "BYMONTHPOS", "BYSETPOS":
			var pos int
			pos, err = strconv.Atoi(value)
			if err != nil {
				err = fmt.Errorf("%s %q is not an integer", key, value)
				break
			}
			err = rule.setPosition(pos)
		case "UNTIL":
			var d Date
			d, err = parseUntil(value)
			rule.end = Until(d)
		case "COUNT":
			var n int
			n, err = parsePositive(key, value)
			rule.end = Count(n)
		case "WKST":
			if value != "MO" {
				err = fmt.Errorf("WKST=%s is not supported, weeks start on Monday", value)
			}
		default:
			err = fmt.Errorf("unsupported component %s", key)
		}
		if err != nil {
			return Rule{}, malformed(raw, err.Error())
		}
	}

	rule.weekdays = normalizeWeekdays(rule.weekdays)
	if err := rule.validate(); err != nil {
		var mErr *MalformedRuleError
		if errors.As(err, &mErr) {
			mErr.Text = raw
		}
		return Rule{}, err
	}
	return rule, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(text string) Rule {
	rule, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return rule
}

// String serializes the rule into its canonical text form.
func (r Rule) String() string {
	if _, ok := frequencyTokens[r.frequency]; !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(r.frequency.String())
	b.WriteString(";INTERVAL=")
	b.WriteString(strconv.Itoa(r.interval))
	if len(r.weekdays) > 0 {
		b.WriteString(";BYDAY=")
		for i, day := range r.weekdays {
			if i > 0 {
				b.WriteByte(',')
			}
			if r.monthPosition != 0 {
				b.WriteString(strconv.Itoa(r.monthPosition))
			}
			b.WriteString(day.String())
		}
	}
	switch r.end.kind {
	case EndUntil:
		d := r.end.until
		fmt.Fprintf(&b, ";UNTIL=%04d%02d%02dT235959", d.Year, int(d.Month), d.Day)
	case EndCount:
		b.WriteString(";COUNT=")
		b.WriteString(strconv.Itoa(r.end.count))
	}
	return b.String()
}

func (r *Rule) setPosition(pos int) error {
	if pos == 0 {
		return errors.New("month position must not be zero")
	}
	if r.monthPosition != 0 && r.monthPosition != pos {
		return errors.New("month position is given more than once")
	}
	r.monthPosition = pos
	return nil
}

func parseFrequency(value string) (Frequency, error) {
	for freq, token := range frequencyTokens {
		if token == value {
			return freq, nil
		}
	}
	return FrequencyUnspecified, fmt.Errorf("FREQ=%s is not recognized", value)
}

func parsePositive(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}

// parseByDay returns the weekdays and the shared ordinal prefix, if any.
func parseByDay(value string) ([]Weekday, int, error) {
	var (
		days     []Weekday
		position int
	)
	for _, token := range strings.Split(value, ",") {
		token = strings.TrimSpace(token)
		if len(token) < 2 {
			return nil, 0, fmt.Errorf("BYDAY token %q is invalid", token)
		}
		prefix, code := token[:len(token)-2], token[len(token)-2:]
		day, ok := weekdayFromToken(code)
		if !ok {
			return nil, 0, fmt.Errorf("BYDAY token %q is not a weekday", token)
		}
		if prefix != "" {
			n, err := strconv.Atoi(prefix)
			if err != nil || n == 0 {
				return nil, 0, fmt.Errorf("BYDAY ordinal %q is invalid", prefix)
			}
			if position != 0 && position != n {
				return nil, 0, errors.New("BYDAY mixes different ordinals")
			}
			position = n
		} else if position != 0 {
			return nil, 0, errors.New("BYDAY mixes ordinal and plain weekdays")
		}
		days = append(days, day)
	}
	if position != 0 && len(days) != len(normalizeWeekdays(days)) {
		return nil, 0, errors.New("BYDAY repeats a weekday")
	}
	return days, position, nil
}

func weekdayFromToken(code string) (Weekday, bool) {
	for i, token := range weekdayTokens {
		if token == code {
			return Weekday(i), true
		}
	}
	return 0, false
}

func parseUntil(value string) (Date, error) {
	for _, layout := range untilLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("UNTIL=%s is not a recognised date", value)
}
