package departure

import (
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func drawClock(t *rapid.T, label string) Clock {
	return MustClock(
		rapid.IntRange(0, 23).Draw(t, label+"_hour"),
		rapid.IntRange(0, 59).Draw(t, label+"_minute"),
	)
}

func checkInvariants(t *rapid.T, r *Register) {
	seen := make(map[int]bool)
	for _, d := range r.departures {
		if seen[d.id] {
			t.Fatalf("duplicate id %d", d.id)
		}
		seen[d.id] = true
		if d.track != UnassignedTrack && (d.track < MinTrack || d.track > MaxTrack) {
			t.Fatalf("departure %d has track %d", d.id, d.track)
		}
		if d.delay < 0 {
			t.Fatalf("departure %d has delay %d", d.id, d.delay)
		}
		if !d.delayedTime.Equal(d.departureTime.AddMinutes(d.delay)) {
			t.Fatalf("departure %d: delayed %s != %s + %d", d.id, d.delayedTime, d.departureTime, d.delay)
		}
		if r.byID[d.id] != d {
			t.Fatalf("index out of sync for departure %d", d.id)
		}
	}
	if len(r.byID) != len(r.departures) {
		t.Fatalf("index has %d entries, register has %d", len(r.byID), len(r.departures))
	}
}

// TestProperty_InvariantsHoldAfterAnyOperation drives the register with
// random operations, valid or not, and checks every record after each one.
func TestProperty_InvariantsHoldAfterAnyOperation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegister()
		steps := rapid.IntRange(1, 60).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			label := fmt.Sprintf("step%d", i)
			id := rapid.IntRange(-2, 20).Draw(t, label+"_id")

			switch rapid.IntRange(0, 4).Draw(t, label+"_op") {
			case 0:
				before := r.Count()
				_, dup := r.byID[id]
				err := r.Add(drawClock(t, label), "L1", id, "Oslo",
					rapid.IntRange(-5, 120).Draw(t, label+"_delay"),
					rapid.IntRange(-3, 17).Draw(t, label+"_track"))
				if dup && err == nil {
					t.Fatalf("duplicate id %d accepted", id)
				}
				if err != nil && r.Count() != before {
					t.Fatalf("failed add changed the register")
				}
			case 1:
				_ = r.AssignDelay(id, rapid.IntRange(-5, 200).Draw(t, label+"_delay"))
			case 2:
				_ = r.AssignTrack(id, rapid.IntRange(-3, 17).Draw(t, label+"_track"))
			case 3:
				_ = r.RemoveByID(id)
			case 4:
				_, _ = r.RemoveBefore(drawClock(t, label))
			}

			checkInvariants(t, r)
		}
	})
}

func TestProperty_DuplicateIDAlwaysRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegister()
		id := rapid.IntRange(1, 1000).Draw(t, "id")
		if err := r.Add(drawClock(t, "first"), "L1", id, "Oslo", 0, UnassignedTrack); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err := r.Add(drawClock(t, "second"), "L2", id, "Bergen", 0, UnassignedTrack)
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
		if r.Count() != 1 {
			t.Fatalf("expected 1 departure, got %d", r.Count())
		}
	})
}

func TestProperty_SortIsStableAndIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegister()
		n := rapid.IntRange(0, 30).Draw(t, "n")
		// few distinct times so ties are common
		for i := 1; i <= n; i++ {
			hour := rapid.IntRange(8, 10).Draw(t, fmt.Sprintf("hour%d", i))
			if err := r.Add(MustClock(hour, 0), "L1", i, "Oslo", 0, UnassignedTrack); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		sorted := r.Sorted()
		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			if prev.departureTime.After(cur.departureTime) {
				t.Fatalf("not sorted at %d: %s after %s", i, prev.departureTime, cur.departureTime)
			}
			// ids were inserted in ascending order
			if prev.departureTime.Equal(cur.departureTime) && prev.id > cur.id {
				t.Fatalf("tie at %s reordered: %d before %d", cur.departureTime, prev.id, cur.id)
			}
		}

		again := r.Sorted()
		if len(again) != len(sorted) {
			t.Fatalf("second sort returned %d departures, first %d", len(again), len(sorted))
		}
		for i := range sorted {
			if sorted[i] != again[i] {
				t.Fatalf("sort not idempotent at %d", i)
			}
		}
	})
}

func TestProperty_RemoveBeforeIsExact(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegister()
		n := rapid.IntRange(0, 25).Draw(t, "n")
		for i := 1; i <= n; i++ {
			label := fmt.Sprintf("dep%d", i)
			delay := rapid.IntRange(0, 90).Draw(t, label+"_delay")
			if err := r.Add(drawClock(t, label), "L1", i, "Oslo", delay, UnassignedTrack); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		cutoff := drawClock(t, "cutoff")

		var keep, drop []int
		for _, d := range r.departures {
			if d.delayedTime.Before(cutoff) {
				drop = append(drop, d.id)
			} else {
				keep = append(keep, d.id)
			}
		}

		removed, err := r.RemoveBefore(cutoff)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if removed != len(drop) {
			t.Fatalf("removed %d, expected %d", removed, len(drop))
		}
		for _, id := range drop {
			if _, ok := r.FindByID(id); ok {
				t.Fatalf("departure %d should have been removed", id)
			}
		}
		for _, id := range keep {
			if _, ok := r.FindByID(id); !ok {
				t.Fatalf("departure %d should have been kept", id)
			}
		}
	})
}
