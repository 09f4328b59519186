package availability

// Subtract removes every blocked interval from available.
//
// Blocks are applied one at a time, in the order given, against the result of
// the previous step; they are not merged first. Overlapping blocks therefore
// remove the shared time twice, which leaves the same result. Invalid blocks
// (End <= Start) are ignored. Cost is O(len(available) * len(blocked)).
func Subtract(available, blocked []Interval) []Interval {
	result := make([]Interval, 0, len(available))
	for _, iv := range available {
		if iv.Valid() {
			result = append(result, iv)
		}
	}

	for _, block := range blocked {
		if !block.Valid() {
			continue
		}
		next := make([]Interval, 0, len(result)+1)
		for _, iv := range result {
			next = append(next, cut(iv, block)...)
		}
		result = next
	}
	return result
}

// cut returns what is left of iv after removing block.
func cut(iv, block Interval) []Interval {
	switch {
	case !block.Start.Before(iv.End) || !block.End.After(iv.Start):
		// No overlap; touching at a boundary is adjacency.
		return []Interval{iv}
	case !block.Start.After(iv.Start) && !block.End.Before(iv.End):
		// Block covers the whole interval.
		return nil
	case !block.Start.After(iv.Start):
		// Block overlaps the start only.
		return []Interval{{Start: block.End, End: iv.End}}
	case !block.End.Before(iv.End):
		// Block overlaps the end only.
		return []Interval{{Start: iv.Start, End: block.Start}}
	default:
		// Block is strictly inside.
		return []Interval{
			{Start: iv.Start, End: block.Start},
			{Start: block.End, End: iv.End},
		}
	}
}
