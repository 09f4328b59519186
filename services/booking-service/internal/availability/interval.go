package availability

import "time"

// Interval is the half-open range [Start, End). Intervals that only share an
// endpoint are adjacent, not overlapping.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether [a.Start,a.End) and [b.Start,b.End) intersect:
// a.Start < b.End && b.Start < a.End.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely inside iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// OverlapsAny reports whether iv intersects any of set.
func OverlapsAny(iv Interval, set []Interval) bool {
	for _, b := range set {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}
