package model

import (
	"fmt"
	"time"
)

type Provider struct {
	ID       string
	Name     string
	Timezone string
}

// Location resolves the provider's IANA timezone; empty means UTC.
func (p Provider) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("provider %s timezone %q: %w", p.ID, p.Timezone, err)
	}
	return loc, nil
}

type ShiftType string

const (
	ShiftMorning ShiftType = "MORNING"
	ShiftEvening ShiftType = "EVENING"
	ShiftFullDay ShiftType = "FULL_DAY"
)

type WorkingShift struct {
	ProviderID string
	Weekday    time.Weekday
	ShiftType  ShiftType
	Start      string // HH:MM wall clock
	End        string // HH:MM wall clock
	Active     bool
}

// Bounds anchors the shift's wall-clock range on day (midnight in the provider's location).
func (s WorkingShift) Bounds(day time.Time) (time.Time, time.Time, error) {
	start, err := clockOn(day, s.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("shift start: %w", err)
	}
	end, err := clockOn(day, s.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("shift end: %w", err)
	}
	return start, end, nil
}

func clockOn(day time.Time, hhmm string) (time.Time, error) {
	c, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location()), nil
}

type Holiday struct {
	ProviderID string
	Date       time.Time
	Title      string
}

type Break struct {
	ProviderID string
	Title      string
	StartTime  time.Time
	EndTime    time.Time
}
