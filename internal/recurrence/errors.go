package recurrence

import (
	"errors"
	"fmt"
)

// MalformedRuleError reports rule text that cannot be parsed or that violates
// the rule invariants.
type MalformedRuleError struct {
	EventID string
	Text    string
	Reason  string
}

// Error implements the error interface.
func (e *MalformedRuleError) Error() string {
	if e == nil {
		return ""
	}
	msg := "recurrence: malformed rule"
	if e.EventID != "" {
		msg += fmt.Sprintf(" on event %s", e.EventID)
	}
	if e.Text != "" {
		msg += fmt.Sprintf(" %q", e.Text)
	}
	return msg + ": " + e.Reason
}

func malformed(text, reason string) *MalformedRuleError {
	return &MalformedRuleError{Text: text, Reason: reason}
}

// WithEvent annotates a malformed rule error with the owning event ID. Other
// errors are returned unchanged.
func WithEvent(err error, eventID string) error {
	var mErr *MalformedRuleError
	if !errors.As(err, &mErr) {
		return err
	}
	annotated := *mErr
	annotated.EventID = eventID
	return &annotated
}

// IsMalformed reports whether err carries a MalformedRuleError.
func IsMalformed(err error) bool {
	var mErr *MalformedRuleError
	return errors.As(err, &mErr)
}

// ErrInvalidWindow indicates the generation window is empty or inverted.
var ErrInvalidWindow = errors.New("recurrence: window end must be after start")

// ErrInvalidDuration indicates the base event duration is not positive.
var ErrInvalidDuration = errors.New("recurrence: event duration must be positive")
