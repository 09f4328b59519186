package availability

import (
	"testing"
	"time"
)

func TestGenerateSlots_Basic(t *testing.T) {
	slots := GenerateSlots([]Interval{iv(9, 0, 10, 0)}, 15*time.Minute)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(9, 0)) || !slots[3].End.Equal(at(10, 0)) {
		t.Fatalf("unexpected bounds %s-%s", slots[0].Start.Format("15:04"), slots[3].End.Format("15:04"))
	}
}

func TestGenerateSlots_NoPartialTrailingSlot(t *testing.T) {
	slots := GenerateSlots([]Interval{iv(9, 0, 10, 50)}, 30*time.Minute)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[2].End.Equal(at(10, 30)) {
		t.Fatalf("last slot should end at 10:30, got %s", slots[2].End.Format("15:04"))
	}
	if len(GenerateSlots([]Interval{iv(9, 0, 9, 20)}, 30*time.Minute)) != 0 {
		t.Fatal("interval shorter than duration yields no slot")
	}
}

func TestGenerateSlots_SortedAcrossIntervals(t *testing.T) {
	evening := iv(16, 0, 17, 0)
	morning := iv(9, 0, 10, 0)
	slots := GenerateSlots([]Interval{evening, morning}, 30*time.Minute)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i-1].Start.Before(slots[i].Start) {
			t.Fatalf("slots not sorted at %d", i)
		}
	}
	if !slots[0].Start.Equal(at(9, 0)) {
		t.Fatalf("first slot should be 09:00, got %s", slots[0].Start.Format("15:04"))
	}
}

func TestGenerateSlots_NonOverlappingAndContained(t *testing.T) {
	sources := []Interval{iv(9, 0, 10, 0), iv(10, 30, 12, 10), iv(13, 5, 14, 0)}
	duration := 25 * time.Minute
	slots := GenerateSlots(sources, duration)
	for i, s := range slots {
		if s.End.Sub(s.Start) != duration {
			t.Fatalf("slot %d has wrong duration %s", i, s.End.Sub(s.Start))
		}
		contained := false
		for _, src := range sources {
			if src.Contains(s.Interval()) {
				contained = true
			}
		}
		if !contained {
			t.Fatalf("slot %d (%s) escapes its interval", i, s.Start.Format("15:04"))
		}
		for j := i + 1; j < len(slots); j++ {
			if s.Interval().Overlaps(slots[j].Interval()) {
				t.Fatalf("slots %d and %d overlap", i, j)
			}
		}
	}
}

func TestGenerateSlots_NonPositiveDuration(t *testing.T) {
	if GenerateSlots([]Interval{iv(9, 0, 10, 0)}, 0) != nil {
		t.Fatal("zero duration yields nil")
	}
}

func TestDropStarted(t *testing.T) {
	slots := GenerateSlots([]Interval{iv(9, 0, 10, 0)}, 15*time.Minute)
	// 09:00 and 09:15 have started; 09:30 starts exactly now and is dropped too.
	left := DropStarted(slots, at(9, 30))
	if len(left) != 1 || !left[0].Start.Equal(at(9, 45)) {
		t.Fatalf("expected only 09:45, got %v", left)
	}
}
