package departure

import "strings"

const (
	// UnassignedTrack marks a departure that has no track yet.
	UnassignedTrack = -1
	MinTrack        = 1
	MaxTrack        = 15
)

func validateTime(field string, c Clock) error {
	if c.IsZero() {
		return &ValidationError{Field: field, Value: "<none>", Err: ErrMissingTime}
	}
	return nil
}

func validateNotBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Value: "\"" + value + "\"", Err: ErrBlankField}
	}
	return nil
}

func validateID(id int) error {
	if id <= 0 {
		return &ValidationError{Field: "departure id", Value: id, Err: ErrInvalidID}
	}
	return nil
}

func validateDelay(minutes int) error {
	if minutes < 0 {
		return &ValidationError{Field: "delay", Value: minutes, Err: ErrNegativeDelay}
	}
	return nil
}

func validateTrack(track int) error {
	if track == UnassignedTrack || (track >= MinTrack && track <= MaxTrack) {
		return nil
	}
	return &ValidationError{Field: "track", Value: track, Err: ErrInvalidTrack}
}
