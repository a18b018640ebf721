package departure

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// Clock is a wall-clock time of day with minute precision.
// The zero value is an absent time.
type Clock struct {
	minutes int
	set     bool
}

func NewClock(hour, minute int) (Clock, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %02d:%02d must be between 00:00 and 23:59", ErrInvalidClock, hour, minute)
	}
	return Clock{minutes: hour*60 + minute, set: true}, nil
}

// MustClock is NewClock for literals known to be valid.
func MustClock(hour, minute int) Clock {
	c, err := NewClock(hour, minute)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseClock reads "HH:MM" or "H:MM".
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return Clock{}, fmt.Errorf("%w: %q is not in HH:MM format", ErrInvalidClock, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q is not in HH:MM format", ErrInvalidClock, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q is not in HH:MM format", ErrInvalidClock, s)
	}
	return NewClock(hour, minute)
}

func (c Clock) IsZero() bool {
	return !c.set
}

func (c Clock) Hour() int {
	return c.minutes / 60
}

func (c Clock) Minute() int {
	return c.minutes % 60
}

// AddMinutes wraps around midnight in either direction.
func (c Clock) AddMinutes(n int) Clock {
	m := (c.minutes + n) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return Clock{minutes: m, set: true}
}

// Sub returns c-other in minutes, without wrapping.
func (c Clock) Sub(other Clock) int {
	return c.minutes - other.minutes
}

func (c Clock) Before(other Clock) bool {
	return c.minutes < other.minutes
}

func (c Clock) After(other Clock) bool {
	return c.minutes > other.minutes
}

func (c Clock) Equal(other Clock) bool {
	return c.set == other.set && c.minutes == other.minutes
}

// Compare orders clocks for slices.SortStableFunc.
func (c Clock) Compare(other Clock) int {
	return c.minutes - other.minutes
}

func (c Clock) String() string {
	if !c.set {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}
