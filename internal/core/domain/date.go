package domain

import (
	"fmt"
	"time"
)

// Date is a calendar date. Daily channels are keyed by it.
type Date struct {
	Year  int
	Month int
	Day   int
}

// NewDate builds a date without validating it.
func NewDate(day, month, year int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// DateFromTimestamp returns the UTC calendar date of a Unix timestamp in seconds.
func DateFromTimestamp(secs int64) Date {
	return DateOf(time.Unix(secs, 0))
}

// Today returns the current UTC date.
func Today() Date {
	return DateOf(time.Now())
}

// dateLayout accepts "dd/mm/yyyy"; the zero padding of day and month is
// optional.
const dateLayout = "2/1/2006"

// ParseDate parses the "dd/mm/yyyy" form and validates the result. The
// whole input must match.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrValidation.Detailf("malformed date %q, want dd/mm/yyyy", s).WithCause(err)
	}
	d := DateOf(t)
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

// Validate rejects dates that do not exist, such as 31/04.
func (d Date) Validate() error {
	if d.Year < 1 || d.Year > 9999 || d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return ErrValidation.Detailf("invalid date %s", d)
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	if t.Day() != d.Day || int(t.Month()) != d.Month {
		return ErrValidation.Detailf("invalid date %s", d)
	}
	return nil
}

// Midnight returns 00:00:00 UTC of the date.
func (d Date) Midnight() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// Timestamp returns Midnight as Unix seconds.
func (d Date) Timestamp() int64 {
	return d.Midnight().Unix()
}

// String returns "dd/mm/yyyy".
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%d", d.Day, d.Month, d.Year)
}
