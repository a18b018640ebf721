package departure

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTime   = errors.New("departure time is required")
	ErrBlankField    = errors.New("value cannot be blank")
	ErrInvalidID     = errors.New("departure id must be positive")
	ErrNegativeDelay = errors.New("delay cannot be negative")
	ErrInvalidTrack  = errors.New("there are 15 tracks at the station, track must be between 1 and 15 or -1 for unassigned")

	ErrDuplicateID   = errors.New("departure id is already in use")
	ErrTrackConflict = errors.New("track is already occupied at that time")

	ErrNullTime      = errors.New("time cannot be empty")
	ErrEmptyRegister = errors.New("register has no departures")
	ErrInvalidClock  = errors.New("invalid time of day")
)

// ValidationError reports a single field that broke a departure invariant.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ConflictError reports a cross-record invariant broken by Add.
type ConflictError struct {
	DepartureID int
	Track       int
	Time        Clock
	Err         error
}

func (e *ConflictError) Error() string {
	if errors.Is(e.Err, ErrTrackConflict) {
		return fmt.Sprintf("departure %d: %v (track %d at %s)", e.DepartureID, e.Err, e.Track, e.Time)
	}
	return fmt.Sprintf("departure %d: %v", e.DepartureID, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
