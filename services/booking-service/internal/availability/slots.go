package availability

import (
	"sort"
	"time"
)

// Slot is a bookable, fixed-length window. Slots are derived on every request
// and never stored.
type Slot struct {
	Start time.Time
	End   time.Time
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// GenerateSlots chops each interval into back-to-back slots of length
// duration, starting at the interval's start. A trailing remainder shorter
// than duration is dropped. Intervals may arrive in any order (for example
// from several shifts), so the result is sorted by start time.
func GenerateSlots(intervals []Interval, duration time.Duration) []Slot {
	if duration <= 0 {
		return nil
	}

	var slots []Slot
	for _, iv := range intervals {
		if !iv.Valid() {
			continue
		}
		for start := iv.Start; !start.Add(duration).After(iv.End); start = start.Add(duration) {
			slots = append(slots, Slot{Start: start, End: start.Add(duration)})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

// DropStarted removes slots whose start is at or before now.
func DropStarted(slots []Slot, now time.Time) []Slot {
	out := slots[:0]
	for _, s := range slots {
		if s.Start.After(now) {
			out = append(out, s)
		}
	}
	return out
}
