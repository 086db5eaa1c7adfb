package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTimeFormat = errors.New("invalid time format, use 'HH:MM AM/PM'")

// TimeOfDay is a wall-clock time without a date, stored as seconds since midnight.
type TimeOfDay int

const (
	secondsPerDay = 24 * 60 * 60

	// SlotStep is the fixed width of a bookable slot.
	SlotStep = 30 * time.Minute

	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
)

// clock12Pattern requires whitespace before the meridiem and none around the value.
var clock12Pattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s+([AaPp][Mm])$`)

// NewTimeOfDay builds a TimeOfDay from 24-hour clock parts.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60)
}

// TimeOfDayOf returns the wall-clock time of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// ParseClock12 parses a 12-hour "HH:MM AM/PM" string. Hours run 1-12.
func ParseClock12(s string) (TimeOfDay, error) {
	m := clock12Pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidTimeFormat
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, ErrInvalidTimeFormat
	}

	hour %= 12
	if strings.EqualFold(m[3], "pm") {
		hour += 12
	}

	return NewTimeOfDay(hour, minute), nil
}

// ParseClock24 parses "15:04" or "15:04:05".
func ParseClock24(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid 24-hour time %q", s)
}

// ParseClock accepts either the 12-hour wire format or a 24-hour clock.
func ParseClock(s string) (TimeOfDay, error) {
	if tod, err := ParseClock12(s); err == nil {
		return tod, nil
	}
	if tod, err := ParseClock24(s); err == nil {
		return tod, nil
	}
	return 0, ErrInvalidTimeFormat
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Valid reports whether t falls within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < secondsPerDay
}

// Add returns t shifted by d. The result may run past midnight; callers check Valid.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Second)
}

// Sub returns the duration t-u.
func (t TimeOfDay) Sub(u TimeOfDay) time.Duration {
	return time.Duration(t-u) * time.Second
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

// On places t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, date.Location())
}

// Clock12 formats t as "09:00 AM".
func (t TimeOfDay) Clock12() string {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	suffix := "AM"
	if t.Hour() >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%02d:%02d %s", h, t.Minute(), suffix)
}

// Clock24 formats t as "15:04:05".
func (t TimeOfDay) Clock24() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) String() string {
	return t.Clock12()
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return d, nil
}

// DateOf truncates t to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// SameDate compares calendar days, ignoring time and location offsets.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.Clock12()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	tod, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*t = tod
	return nil
}
