package availability

import (
	"testing"
	"time"

	"github.com/tareq-mahmood/schedulr/internal/model"
)

func at(day time.Time, h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestGridSlots_Basic(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	open := at(day, 9, 0)
	close := at(day, 10, 0)

	busy := []Interval{
		{Start: at(day, 9, 15), End: at(day, 9, 45)},
	}

	slots := GridSlots(open, close, 15*time.Minute, model.RoundingContinuous, busy, time.Time{})
	want := []time.Time{at(day, 9, 0), at(day, 9, 45)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(slots), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestGridSlots_OccupiedMustFitBeforeClose(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	open := at(day, 9, 0)
	close := at(day, 10, 0)

	// 45 minutes of service + buffer: only 09:00 and 09:15 leave room.
	slots := GridSlots(open, close, 45*time.Minute, model.RoundingContinuous, nil, time.Time{})
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %v", len(slots), slots)
	}
	if !slots[1].Equal(at(day, 9, 15)) {
		t.Fatalf("expected last slot 09:15, got %s", slots[1])
	}
}

func TestGridSlots_SkipsPast(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	open := at(day, 9, 0)
	close := at(day, 10, 0)

	now := at(day, 9, 31)
	slots := GridSlots(open, close, 15*time.Minute, model.RoundingContinuous, nil, now)
	// 09:00, 09:15, 09:30 are in the past. 09:45 remains.
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Equal(at(day, 9, 45)) {
		t.Fatalf("expected slot 09:45, got %s", slots[0])
	}
}

func TestGridSlots_Rounding(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	open := at(day, 9, 0)
	close := at(day, 11, 0)

	cases := []struct {
		rounding model.RoundingStrategy
		want     int
	}{
		{model.RoundingContinuous, 8}, // every quarter hour with room before close
		{model.RoundingEvery15, 8},
		{model.RoundingEvery30, 4}, // 09:00 09:30 10:00 10:30
		{model.RoundingOnTheHour, 2},
	}
	for _, tc := range cases {
		slots := GridSlots(open, close, 15*time.Minute, tc.rounding, nil, time.Time{})
		if len(slots) != tc.want {
			t.Fatalf("%s: expected %d slots, got %d (%v)", tc.rounding, tc.want, len(slots), slots)
		}
	}
}

func TestGridSlots_HalfOpenBoundaries(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	open := at(day, 9, 0)
	close := at(day, 10, 30)

	// Busy [09:30, 10:00): a slot ending exactly at 09:30 or starting exactly
	// at 10:00 does not conflict.
	busy := []Interval{{Start: at(day, 9, 30), End: at(day, 10, 0)}}
	slots := GridSlots(open, close, 30*time.Minute, model.RoundingContinuous, busy, time.Time{})
	want := []time.Time{at(day, 9, 0), at(day, 10, 0)}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestGridSlots_DegenerateInputs(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	if got := GridSlots(at(day, 9, 0), at(day, 9, 0), 15*time.Minute, model.RoundingContinuous, nil, time.Time{}); got != nil {
		t.Fatalf("zero-width window should yield nil, got %v", got)
	}
	if got := GridSlots(at(day, 9, 0), at(day, 17, 0), 0, model.RoundingContinuous, nil, time.Time{}); got != nil {
		t.Fatalf("zero occupied length should yield nil, got %v", got)
	}
}
