// Package departure holds the departure board of a single station: the
// Departure entity, the Register that owns every departure, and an
// instrumented, lock-guarded wrapper used by the shell and the ops server.
package departure

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Departure is one scheduled train. Only delay and track change after
// creation; delayedTime follows delay.
type Departure struct {
	departureTime Clock
	trainLine     string
	id            int
	destination   string
	delay         int
	delayedTime   Clock
	track         int
}

func NewDeparture(departureTime Clock, trainLine string, id int, destination string, delay, track int) (*Departure, error) {
	if err := validateTime("departure time", departureTime); err != nil {
		return nil, err
	}
	if err := validateNotBlank("train line", trainLine); err != nil {
		return nil, err
	}
	if err := validateNotBlank("destination", destination); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := validateDelay(delay); err != nil {
		return nil, err
	}
	if err := validateTrack(track); err != nil {
		return nil, err
	}

	return &Departure{
		departureTime: departureTime,
		trainLine:     trainLine,
		id:            id,
		destination:   destination,
		delay:         delay,
		delayedTime:   departureTime.AddMinutes(delay),
		track:         track,
	}, nil
}

func (d *Departure) DepartureTime() Clock { return d.departureTime }
func (d *Departure) TrainLine() string    { return d.trainLine }
func (d *Departure) ID() int              { return d.id }
func (d *Departure) Destination() string  { return d.destination }
func (d *Departure) Delay() int           { return d.delay }
func (d *Departure) DelayedTime() Clock   { return d.delayedTime }
func (d *Departure) Track() int           { return d.track }

func (d *Departure) HasTrack() bool {
	return d.track != UnassignedTrack
}

// SetDelay replaces the delay and moves the delayed time with it.
func (d *Departure) SetDelay(minutes int) error {
	if err := validateDelay(minutes); err != nil {
		return err
	}
	d.delay = minutes
	d.delayedTime = d.departureTime.AddMinutes(minutes)
	return nil
}

// SetTrack assigns a track, or unassigns it with UnassignedTrack.
func (d *Departure) SetTrack(track int) error {
	if err := validateTrack(track); err != nil {
		return err
	}
	d.track = track
	return nil
}

// SameID reports whether both records describe the same departure.
func (d *Departure) SameID(other *Departure) bool {
	return d.id == other.id
}

// ConflictsWith reports whether both departures would leave from the same
// assigned track at the same delayed time.
func (d *Departure) ConflictsWith(other *Departure) bool {
	if !d.HasTrack() || !other.HasTrack() {
		return false
	}
	return d.track == other.track && d.delayedTime.Equal(other.delayedTime)
}

// MatchesDestination compares destinations case-insensitively.
func (d *Departure) MatchesDestination(name string) bool {
	return strings.EqualFold(d.destination, strings.TrimSpace(name))
}

// Render formats the departure as one row of the departure table.
func (d *Departure) Render() string {
	delayed := ""
	if d.delay > 0 {
		delayed = d.delayedTime.String()
	}
	track := ""
	if d.HasTrack() {
		track = strconv.Itoa(d.track)
	}
	return fmt.Sprintf("| %s | %s | %s | %s | %s | %s |",
		runewidth.FillRight(d.departureTime.String(), 10),
		runewidth.FillRight(d.trainLine, 10),
		runewidth.FillRight(strconv.Itoa(d.id), 10),
		runewidth.FillRight(DisplayName(d.destination), 20),
		runewidth.FillRight(delayed, 10),
		runewidth.FillRight(track, 5),
	)
}

func (d *Departure) String() string {
	return d.Render()
}

// DisplayName upper-cases the first letter and lower-cases the rest.
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return cases.Upper(language.Norwegian).String(name[:size]) +
		cases.Lower(language.Norwegian).String(name[size:])
}
