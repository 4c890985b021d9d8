package availability

import (
	"time"

	"github.com/tareq-mahmood/schedulr/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses the half-open rule: [a,b) overlaps [c,d) iff a < d && c < b.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

func OverlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// GridStep is the reference grid cadence. The rounding strategy filters which
// grid points become candidates; it does not change the walk itself.
const GridStep = 15 * time.Minute

// GridSlots walks [open, close) by GridStep and returns the start times where
// a booking occupying [t, t+occupied) fits before closing time and overlaps
// none of the busy intervals. The occupied length includes the service buffer
// so the predicate here is exactly the booking transaction's conflict rule.
// Grid points before now are skipped.
func GridSlots(open, close time.Time, occupied time.Duration, rounding model.RoundingStrategy, busy []Interval, now time.Time) []time.Time {
	if occupied <= 0 || !close.After(open) {
		return nil
	}

	var slots []time.Time
	for t := open; !t.Add(occupied).After(close); t = t.Add(GridStep) {
		if t.Before(now) {
			continue
		}
		if !aligned(t, rounding) {
			continue
		}
		if OverlapsAny(Interval{Start: t, End: t.Add(occupied)}, busy) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

func aligned(t time.Time, rounding model.RoundingStrategy) bool {
	switch rounding {
	case model.RoundingOnTheHour:
		return t.Minute() == 0
	case model.RoundingEvery30:
		return t.Minute()%30 == 0
	default:
		// continuous and every_15 both emit every quarter hour.
		return true
	}
}
