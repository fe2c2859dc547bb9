// Package calendar holds the date and time helpers used to build the
// reservation slot grid. Times are venue-local "HH:mm" strings and dates are
// "YYYY-MM-DD" strings.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

const (
	// SlotStepMinutes is the slot granularity.
	SlotStepMinutes = 30

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format, expected HH:mm")
	ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")
)

// TimeToMinutes converts "HH:mm" into minutes since midnight.
func TimeToMinutes(hhmm string) (int, error) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, hhmm)
	}
	h, okH := twoDigits(hhmm[0], hhmm[1])
	m, okM := twoDigits(hhmm[3], hhmm[4])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, hhmm)
	}
	return h*60 + m, nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// MinutesToTime converts minutes since midnight into "HH:mm".
func MinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SlotGrid lists every slot start from open to lastStart inclusive. Hours
// that end before they start yield no slots.
func SlotGrid(open, lastStart string) ([]string, error) {
	from, err := TimeToMinutes(open)
	if err != nil {
		return nil, err
	}
	to, err := TimeToMinutes(lastStart)
	if err != nil {
		return nil, err
	}
	if to < from {
		return []string{}, nil
	}

	slots := make([]string, 0, (to-from)/SlotStepMinutes+1)
	for m := from; m <= to; m += SlotStepMinutes {
		slots = append(slots, MinutesToTime(m))
	}
	return slots, nil
}

// ParseDate parses a strict "YYYY-MM-DD" date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	return d, nil
}

// StartAt combines a date and an "HH:mm" time into an instant in loc.
func StartAt(date, hhmm string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	m, err := TimeToMinutes(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, loc), nil
}

// Today returns the calendar date of now in loc, formatted as YYYY-MM-DD.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}
