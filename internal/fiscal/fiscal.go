// Package fiscal computes fiscal periods ("期") from a company's fiscal start
// year and month.
package fiscal

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSettings is returned when settings would produce a nonsensical period.
var ErrInvalidSettings = errors.New("invalid fiscal settings")

// Defaults for a newly provisioned company.
const (
	DefaultStartYear       = 2000
	DefaultStartMonth      = 8
	DefaultStaffCodeDigits = 3
)

// Settings are the inputs to the period calculation.
type Settings struct {
	StartYear       int `json:"fiscalStartYear"`
	StartMonth      int `json:"fiscalStartMonth"`
	StaffCodeDigits int `json:"staffCodeDigits"`
}

// Default returns the settings seeded into every new store.
func Default() Settings {
	return Settings{
		StartYear:       DefaultStartYear,
		StartMonth:      DefaultStartMonth,
		StaffCodeDigits: DefaultStaffCodeDigits,
	}
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	if s.StartMonth < 1 || s.StartMonth > 12 {
		return fmt.Errorf("%w: start month %d must be between 1 and 12", ErrInvalidSettings, s.StartMonth)
	}
	if s.StartYear < 1900 || s.StartYear > 9999 {
		return fmt.Errorf("%w: start year %d is out of range", ErrInvalidSettings, s.StartYear)
	}
	if s.StaffCodeDigits < 1 || s.StaffCodeDigits > 10 {
		return fmt.Errorf("%w: staff code digits %d must be between 1 and 10", ErrInvalidSettings, s.StaffCodeDigits)
	}
	return nil
}

// PeriodAt returns the fiscal period containing t. Period 1 begins on the
// first day of StartMonth in StartYear.
func (s Settings) PeriodAt(t time.Time) int {
	if int(t.Month()) >= s.StartMonth {
		return t.Year() - s.StartYear + 1
	}
	return t.Year() - s.StartYear
}

// Range is an inclusive date range.
type Range struct {
	Start time.Time
	End   time.Time
}

// PeriodRange returns the first and last day of the given period.
func (s Settings) PeriodRange(period int) Range {
	startYear := s.StartYear + period - 1
	start := time.Date(startYear, time.Month(s.StartMonth), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, -1)
	return Range{Start: start, End: end}
}

// Contains reports whether day falls inside the range, ignoring time of day.
func (r Range) Contains(day time.Time) bool {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(r.Start) && !d.After(r.End)
}
