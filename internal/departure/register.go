package departure

import (
	"slices"
	"strings"
)

// Register owns every departure of the station. It is not safe for
// concurrent use; see InstrumentedRegister.
type Register struct {
	departures []*Departure
	byID       map[int]*Departure
}

func NewRegister() *Register {
	return &Register{
		byID: make(map[int]*Departure),
	}
}

// Add validates and inserts a new departure. Nothing is written unless the
// departure is valid, its id is free and its track is free at its delayed
// time.
func (r *Register) Add(departureTime Clock, trainLine string, id int, destination string, delay, track int) error {
	d, err := NewDeparture(departureTime, trainLine, id, destination, delay, track)
	if err != nil {
		return err
	}

	if _, ok := r.byID[id]; ok {
		return &ConflictError{DepartureID: id, Err: ErrDuplicateID}
	}
	for _, existing := range r.departures {
		if existing.ConflictsWith(d) {
			return &ConflictError{
				DepartureID: id,
				Track:       d.track,
				Time:        d.delayedTime,
				Err:         ErrTrackConflict,
			}
		}
	}

	r.departures = append(r.departures, d)
	r.byID[id] = d
	return nil
}

// RemoveByID deletes the departure with the given id. Unknown ids are ignored.
func (r *Register) RemoveByID(id int) error {
	if err := validateID(id); err != nil {
		return err
	}
	if _, ok := r.byID[id]; !ok {
		return nil
	}
	delete(r.byID, id)
	r.departures = slices.DeleteFunc(r.departures, func(d *Departure) bool {
		return d.id == id
	})
	return nil
}

// RemoveBefore deletes every departure whose delayed time is strictly before
// cutoff, i.e. trains that have already left. It returns how many were removed.
func (r *Register) RemoveBefore(cutoff Clock) (int, error) {
	if cutoff.IsZero() {
		return 0, ErrNullTime
	}
	before := len(r.departures)
	r.departures = slices.DeleteFunc(r.departures, func(d *Departure) bool {
		if d.delayedTime.Before(cutoff) {
			delete(r.byID, d.id)
			return true
		}
		return false
	})
	return before - len(r.departures), nil
}

// AssignDelay sets the delay of a departure. Unknown ids are ignored.
func (r *Register) AssignDelay(id, minutes int) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := validateDelay(minutes); err != nil {
		return err
	}
	d, ok := r.byID[id]
	if !ok {
		return nil
	}
	return d.SetDelay(minutes)
}

// AssignTrack sets the track of a departure. Unknown ids are ignored.
func (r *Register) AssignTrack(id, track int) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := validateTrack(track); err != nil {
		return err
	}
	d, ok := r.byID[id]
	if !ok {
		return nil
	}
	return d.SetTrack(track)
}

func (r *Register) Exists(id int) (bool, error) {
	if id < 0 {
		return false, &ValidationError{Field: "departure id", Value: id, Err: ErrInvalidID}
	}
	_, ok := r.byID[id]
	return ok, nil
}

func (r *Register) DestinationExists(name string) (bool, error) {
	if err := validateNotBlank("destination", name); err != nil {
		return false, err
	}
	return slices.ContainsFunc(r.departures, func(d *Departure) bool {
		return d.MatchesDestination(name)
	}), nil
}

// FindByID returns a copy of the departure with the given id.
func (r *Register) FindByID(id int) (Departure, bool) {
	d, ok := r.byID[id]
	if !ok {
		return Departure{}, false
	}
	return *d, true
}

// FindByDestination returns copies of every departure going to name, in
// register order.
func (r *Register) FindByDestination(name string) ([]Departure, error) {
	if err := validateNotBlank("destination", name); err != nil {
		return nil, err
	}
	var matches []Departure
	for _, d := range r.departures {
		if d.MatchesDestination(name) {
			matches = append(matches, *d)
		}
	}
	return matches, nil
}

// Sorted returns copies of all departures by ascending departure time.
// Departures sharing a time keep their insertion order.
func (r *Register) Sorted() []Departure {
	sorted := r.snapshot()
	slices.SortStableFunc(sorted, func(a, b Departure) int {
		return a.departureTime.Compare(b.departureTime)
	})
	return sorted
}

// Destinations lists every destination once, in the order first seen.
func (r *Register) Destinations() []string {
	seen := make(map[string]struct{}, len(r.departures))
	var names []string
	for _, d := range r.departures {
		key := strings.ToLower(d.destination)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, d.destination)
	}
	return names
}

func (r *Register) Count() int {
	return len(r.departures)
}

// MinutesUntilNextDeparture returns the minutes from now until the earliest
// scheduled departure actually leaves, or -1 when the register is empty.
// A departure that has already left counts as 0.
func (r *Register) MinutesUntilNextDeparture(now Clock) (int, error) {
	if now.IsZero() {
		return 0, ErrNullTime
	}
	if len(r.departures) == 0 {
		return -1, nil
	}
	next := r.Sorted()[0]
	return max(0, next.delayedTime.Sub(now)), nil
}

// InterquartileRange returns the departure times at the first and third
// quartile positions (n/4 and 3n/4) of the sorted register.
func (r *Register) InterquartileRange() (Clock, Clock, error) {
	n := len(r.departures)
	if n == 0 {
		return Clock{}, Clock{}, ErrEmptyRegister
	}
	sorted := r.Sorted()
	return sorted[n/4].departureTime, sorted[3*n/4].departureTime, nil
}

func (r *Register) snapshot() []Departure {
	out := make([]Departure, len(r.departures))
	for i, d := range r.departures {
		out[i] = *d
	}
	return out
}
