// Package shell is the operator console of the departure board: a line
// oriented command loop over one station's register.
package shell

import (
	"context"
	"errors"
	"fmt"

	"departure-board/internal/departure"

	"github.com/google/uuid"
)

var ErrTimeBackwards = errors.New("the time cannot be before the current time")

// Session is the state of one console run. It is built once at startup and
// passed to the shell; nothing about it is global.
type Session struct {
	ID       string
	Station  string
	Now      departure.Clock
	Register *departure.InstrumentedRegister
}

func NewSession(station string, start departure.Clock, register *departure.InstrumentedRegister) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Station:  station,
		Now:      start,
		Register: register,
	}
}

// AdvanceTo moves the station clock forward and drops departures that have
// left in the meantime. It returns how many were dropped.
func (s *Session) AdvanceTo(ctx context.Context, t departure.Clock) (int, error) {
	if t.IsZero() {
		return 0, departure.ErrNullTime
	}
	if t.Before(s.Now) {
		return 0, fmt.Errorf("%w (%s)", ErrTimeBackwards, s.Now)
	}
	s.Now = t
	return s.Register.RemoveBefore(ctx, t)
}

// Seed loads the demo timetable the console starts with.
func Seed(ctx context.Context, register *departure.InstrumentedRegister) error {
	timetable := []struct {
		hour, minute int
		line         string
		id           int
		destination  string
		delay, track int
	}{
		{13, 20, "F1", 1, "Oslo", 1, 1},
		{10, 0, "F2", 2, "Stavanger", 0, 2},
		{12, 20, "F3", 4, "Bergen", 0, -1},
		{3, 0, "F4", 5, "Trondheim", 78, 6},
		{1, 50, "F5", 6, "Oslo", 5, -1},
		{23, 27, "F3", 7, "Bergen", 9, 4},
		{15, 46, "F2", 8, "Trondheim", 2, -1},
		{19, 20, "F2", 9, "Bergen", 0, -1},
	}

	for _, e := range timetable {
		err := register.Add(ctx, departure.MustClock(e.hour, e.minute), e.line, e.id, e.destination, e.delay, e.track)
		if err != nil {
			return fmt.Errorf("seeding departure %d: %w", e.id, err)
		}
	}
	return nil
}
