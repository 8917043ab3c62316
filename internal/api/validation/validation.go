// Package validation checks decoded request bodies before they reach the
// services. Each Validate function returns every field error it finds; an
// empty result means the request is valid.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DateLayout is the calendar date format used by every date field.
const DateLayout = "2006-01-02"

// Password length bounds. bcrypt ignores bytes past 72.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,64}$`)
	colorRegex    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	settingRegex  = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
)

func requireText(errs []FieldError, field, value string, max int) []FieldError {
	v := strings.TrimSpace(value)
	if v == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	return maxText(errs, field, v, max)
}

func maxText(errs []FieldError, field, value string, max int) []FieldError {
	if utf8.RuneCountInString(value) > max {
		return append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, max)})
	}
	return errs
}

func optionalText(errs []FieldError, field string, value *string, max int) []FieldError {
	if value == nil {
		return errs
	}
	return maxText(errs, field, *value, max)
}

func checkPassword(errs []FieldError, field, value string) []FieldError {
	switch {
	case value == "":
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	case len(value) < MinPasswordLength:
		return append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s must be at least %d characters", field, MinPasswordLength)})
	case len(value) > MaxPasswordLength:
		return append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s must be at most %d bytes", field, MaxPasswordLength)})
	}
	return errs
}

func checkUsername(errs []FieldError, field, value string) []FieldError {
	if value == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	if !usernameRegex.MatchString(value) {
		return append(errs, FieldError{Field: field, Message: field + " may only contain letters, digits and . _ @ -, up to 64 characters"})
	}
	return errs
}

func checkEmail(errs []FieldError, field, value string, required bool) []FieldError {
	if value == "" {
		if required {
			return append(errs, FieldError{Field: field, Message: field + " is required"})
		}
		return errs
	}
	if _, err := mail.ParseAddress(value); err != nil {
		return append(errs, FieldError{Field: field, Message: field + " must be a valid email address"})
	}
	return errs
}

// checkDate accepts nil and the empty string, which clears a date.
func checkDate(errs []FieldError, field string, value *string) []FieldError {
	if value == nil || *value == "" {
		return errs
	}
	if _, err := time.Parse(DateLayout, *value); err != nil {
		return append(errs, FieldError{Field: field, Message: field + " must be a date in YYYY-MM-DD format"})
	}
	return errs
}

func oneOf(errs []FieldError, field string, value *string, allowed ...string) []FieldError {
	if value == nil || *value == "" {
		return errs
	}
	for _, a := range allowed {
		if *value == a {
			return errs
		}
	}
	return append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", "))})
}

func nonNegative[T int | int64](errs []FieldError, field string, value *T) []FieldError {
	if value != nil && *value < 0 {
		return append(errs, FieldError{Field: field, Message: field + " must not be negative"})
	}
	return errs
}
