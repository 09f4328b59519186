package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
)

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Providers []SeedProvider `json:"providers"`
}

type SeedProvider struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Timezone     string        `json:"timezone"`
	WorkingHours []SeedShift   `json:"working_hours"`
	Holidays     []SeedHoliday `json:"holidays"`
	Breaks       []SeedBreak   `json:"breaks"`
}

type SeedShift struct {
	Weekday   int    `json:"weekday"` // 0 = Sunday
	ShiftType string `json:"shift_type"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Active    *bool  `json:"active"`
}

type SeedHoliday struct {
	Date  string `json:"date"`
	Title string `json:"title"`
}

type SeedBreak struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func LoadSeedFile(store *MemoryStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return LoadSeed(store, f)
}

func LoadSeed(store *MemoryStore, r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, p := range seed.Providers {
		if p.ID == "" {
			return fmt.Errorf("seed provider without id")
		}
		provider := model.Provider{ID: p.ID, Name: p.Name, Timezone: p.Timezone}
		loc, err := provider.Location()
		if err != nil {
			return err
		}
		store.AddProvider(provider)

		for _, s := range p.WorkingHours {
			if s.Weekday < 0 || s.Weekday > 6 {
				return fmt.Errorf("provider %s: weekday %d out of range", p.ID, s.Weekday)
			}
			active := s.Active == nil || *s.Active
			shiftType := model.ShiftType(s.ShiftType)
			if shiftType == "" {
				shiftType = model.ShiftFullDay
			}
			store.AddWorkingShift(model.WorkingShift{
				ProviderID: p.ID,
				Weekday:    time.Weekday(s.Weekday),
				ShiftType:  shiftType,
				Start:      s.Start,
				End:        s.End,
				Active:     active,
			})
		}
		for _, h := range p.Holidays {
			date, err := time.ParseInLocation(time.DateOnly, h.Date, loc)
			if err != nil {
				return fmt.Errorf("provider %s: holiday %q: %w", p.ID, h.Date, err)
			}
			store.AddHoliday(model.Holiday{ProviderID: p.ID, Date: date, Title: h.Title})
		}
		for _, b := range p.Breaks {
			if !b.EndTime.After(b.StartTime) {
				return fmt.Errorf("provider %s: break %q ends before it starts", p.ID, b.Title)
			}
			store.AddBreak(model.Break{ProviderID: p.ID, Title: b.Title, StartTime: b.StartTime, EndTime: b.EndTime})
		}
	}
	return nil
}
