package http

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const (
	notBlankTag = "notblank"
	instantTag  = "instant"
)

// Layouts accepted for event times and calendar dates. Values without an
// offset are wall clock times in the school's time zone.
var (
	offsetLayouts   = []string{time.RFC3339Nano, time.RFC3339}
	floatingLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}
)

// requestValidator validates decoded request DTOs and reports failures keyed
// by JSON field name.
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation(instantTag, func(fl validator.FieldLevel) bool {
		return validInstant(fl.Field().String())
	})

	noop := func(ut.Translator) error { return nil }
	_ = v.RegisterTranslation(notBlankTag, translator, noop, func(_ ut.Translator, fe validator.FieldError) string {
		return fe.Field() + " cannot be blank"
	})
	_ = v.RegisterTranslation(instantTag, translator, noop, func(_ ut.Translator, fe validator.FieldError) string {
		return fe.Field() + " must be an RFC 3339 timestamp, a local date-time or a YYYY-MM-DD date"
	})

	return &requestValidator{validate: v, translator: translator}
}

// check returns nil when dto is valid, otherwise the field errors.
func (v *requestValidator) check(dto any) map[string]string {
	err := v.validate.Struct(dto)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

func validInstant(value string) bool {
	_, ok := parseInstant(value, time.UTC)
	return ok
}

// parseInstant parses value, reading offset-free values in loc.
func parseInstant(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range offsetLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range floatingLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
