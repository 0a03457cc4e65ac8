package greenaudit

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrInvalidPeriodMonth indicates that a raw month value does not match YYYY-MM.
var ErrInvalidPeriodMonth = errors.New("greenaudit: invalid period month")

var periodMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// PeriodMonth identifies one calendar reporting period. The zero value is invalid.
type PeriodMonth struct {
	year  int
	month time.Month
}

// ParsePeriodMonth validates raw input in YYYY-MM form and returns a PeriodMonth.
func ParsePeriodMonth(rawInput string) (PeriodMonth, error) {
	if !periodMonthPattern.MatchString(rawInput) {
		return PeriodMonth{}, fmt.Errorf("%w: %q", ErrInvalidPeriodMonth, rawInput)
	}
	parsed, err := time.Parse("2006-01", rawInput)
	if err != nil {
		return PeriodMonth{}, fmt.Errorf("%w: %q", ErrInvalidPeriodMonth, rawInput)
	}
	return PeriodMonth{year: parsed.Year(), month: parsed.Month()}, nil
}

// PeriodMonthOf returns the period containing the provided instant, evaluated in UTC.
func PeriodMonthOf(instant time.Time) PeriodMonth {
	utc := instant.UTC()
	return PeriodMonth{year: utc.Year(), month: utc.Month()}
}

// ResolvePeriodMonth parses the raw month parameter, falling back to the month
// preceding now when the parameter is absent or malformed.
func ResolvePeriodMonth(rawInput string, now time.Time) PeriodMonth {
	if parsed, err := ParsePeriodMonth(rawInput); err == nil {
		return parsed
	}
	return PeriodMonthOf(now).Previous()
}

// String renders the period as YYYY-MM, the canonical storage key.
func (p PeriodMonth) String() string {
	return fmt.Sprintf("%04d-%02d", p.year, int(p.month))
}

// IsZero reports whether the period is unset.
func (p PeriodMonth) IsZero() bool {
	return p.year == 0
}

// Start returns the first instant of the period in UTC.
func (p PeriodMonth) Start() time.Time {
	return time.Date(p.year, p.month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the exclusive upper bound of the period window in UTC.
func (p PeriodMonth) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Previous returns the calendar month immediately before this one.
func (p PeriodMonth) Previous() PeriodMonth {
	previous := p.Start().AddDate(0, -1, 0)
	return PeriodMonth{year: previous.Year(), month: previous.Month()}
}
