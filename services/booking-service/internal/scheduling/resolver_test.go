package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
)

type fakeSource struct {
	providers map[string]model.Provider
	shifts    []model.WorkingShift
	holidays  map[string]bool
	breaks    []availability.Interval
	booked    []availability.Interval
	calls     int
}

func (f *fakeSource) GetProvider(_ context.Context, id string) (model.Provider, error) {
	f.calls++
	p, ok := f.providers[id]
	if !ok {
		return model.Provider{}, model.NotFoundf("provider %s", id)
	}
	return p, nil
}

func (f *fakeSource) GetWorkingShifts(_ context.Context, id string, wd time.Weekday) ([]model.WorkingShift, error) {
	f.calls++
	var out []model.WorkingShift
	for _, s := range f.shifts {
		if s.ProviderID == id && s.Weekday == wd && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) HasHoliday(_ context.Context, _ string, date time.Time) (bool, error) {
	f.calls++
	return f.holidays[date.Format(DateLayout)], nil
}

func (f *fakeSource) GetBreaks(_ context.Context, _ string, from, to time.Time) ([]availability.Interval, error) {
	f.calls++
	return overlapping(f.breaks, from, to), nil
}

func (f *fakeSource) GetBlockingAppointments(_ context.Context, _ string, from, to time.Time) ([]availability.Interval, error) {
	f.calls++
	return overlapping(f.booked, from, to), nil
}

func overlapping(in []availability.Interval, from, to time.Time) []availability.Interval {
	window := availability.Interval{Start: from, End: to}
	var out []availability.Interval
	for _, iv := range in {
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	return out
}

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func clock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullDaySource() *fakeSource {
	return &fakeSource{
		providers: map[string]model.Provider{"prov-1": {ID: "prov-1", Name: "Dr. Rahman", Timezone: "UTC"}},
		shifts: []model.WorkingShift{
			{ProviderID: "prov-1", Weekday: time.Monday, ShiftType: model.ShiftFullDay, Start: "09:00", End: "18:00", Active: true},
		},
		holidays: map[string]bool{},
		booked: []availability.Interval{
			{Start: monday.Add(10 * time.Hour), End: monday.Add(10*time.Hour + 30*time.Minute)},
		},
	}
}

func TestListAvailableSlots_FullDayMinusOneAppointment(t *testing.T) {
	r := NewResolver(fullDaySource(), quietLogger(), clock(monday.AddDate(0, 0, -1)))

	slots, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 30)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 17 {
		t.Fatalf("expected 17 slots, got %d", len(slots))
	}
	want := []string{"09:00", "09:30", "10:30", "11:00"}
	for i, w := range want {
		if got := slots[i].Start.Format("15:04"); got != w {
			t.Fatalf("slot %d: expected %s, got %s", i, w, got)
		}
	}
	if last := slots[len(slots)-1]; last.Start.Format("15:04") != "17:30" || last.End.Format("15:04") != "18:00" {
		t.Fatalf("unexpected last slot %s-%s", last.Start.Format("15:04"), last.End.Format("15:04"))
	}
}

func TestListAvailableSlots_HolidayIsEmpty(t *testing.T) {
	src := fullDaySource()
	src.holidays["2026-03-02"] = true
	r := NewResolver(src, quietLogger(), clock(monday.AddDate(0, 0, -1)))

	slots, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 30)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slots, got %v", slots)
	}
}

func TestListAvailableSlots_NoShiftsIsEmpty(t *testing.T) {
	src := fullDaySource()
	r := NewResolver(src, quietLogger(), clock(monday.AddDate(0, 0, -1)))

	slots, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-03", 30)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a day without shifts, got %d", len(slots))
	}

	src.shifts[0].Active = false
	slots, err = r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 30)
	if err != nil || len(slots) != 0 {
		t.Fatalf("inactive shift should give no slots, got %d (%v)", len(slots), err)
	}
}

func TestListAvailableSlots_UnknownProvider(t *testing.T) {
	src := fullDaySource()
	r := NewResolver(src, quietLogger())
	_, err := r.ListAvailableSlots(context.Background(), "nobody", "2026-03-02", 30)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("provider check must come before any schedule lookups, saw %d calls", src.calls)
	}
}

func TestListAvailableSlots_ValidationBeforeIO(t *testing.T) {
	cases := []struct {
		provider string
		date     string
		duration int
	}{
		{"", "2026-03-02", 30},
		{"prov-1", "02/03/2026", 30},
		{"prov-1", "2026-03-02", 0},
		{"prov-1", "2026-03-02", MaxDurationMinutes + 1},
	}
	for _, tc := range cases {
		src := fullDaySource()
		r := NewResolver(src, quietLogger())
		_, err := r.ListAvailableSlots(context.Background(), tc.provider, tc.date, tc.duration)
		if !errors.Is(err, model.ErrValidation) {
			t.Fatalf("%+v: expected validation error, got %v", tc, err)
		}
		if src.calls != 0 {
			t.Fatalf("%+v: validation must not touch the source", tc)
		}
	}
}

func TestListAvailableSlots_Idempotent(t *testing.T) {
	r := NewResolver(fullDaySource(), quietLogger(), clock(monday.AddDate(0, 0, -1)))
	first, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 45)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 45)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("results differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("results differ at %d", i)
		}
	}
}

func TestListAvailableSlots_TodayDropsStartedSlots(t *testing.T) {
	r := NewResolver(fullDaySource(), quietLogger(), clock(monday.Add(10*time.Hour+10*time.Minute)))
	slots, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 30)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("expected 15 remaining slots, got %d", len(slots))
	}
	if slots[0].Start.Format("15:04") != "10:30" {
		t.Fatalf("first remaining slot should be 10:30, got %s", slots[0].Start.Format("15:04"))
	}
}

func TestListAvailableSlots_TwoShiftsAndSpanningBreak(t *testing.T) {
	src := fullDaySource()
	src.booked = nil
	src.shifts = []model.WorkingShift{
		{ProviderID: "prov-1", Weekday: time.Monday, ShiftType: model.ShiftEvening, Start: "14:00", End: "18:00", Active: true},
		{ProviderID: "prov-1", Weekday: time.Monday, ShiftType: model.ShiftMorning, Start: "09:00", End: "13:00", Active: true},
	}
	src.breaks = []availability.Interval{
		{Start: monday.Add(12*time.Hour + 30*time.Minute), End: monday.Add(14*time.Hour + 30*time.Minute)},
		// A break on another day must not leak in.
		{Start: monday.AddDate(0, 0, 1).Add(9 * time.Hour), End: monday.AddDate(0, 0, 1).Add(17 * time.Hour)},
	}
	r := NewResolver(src, quietLogger(), clock(monday.AddDate(0, 0, -1)))

	slots, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 30)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 14 {
		t.Fatalf("expected 14 slots, got %d", len(slots))
	}
	if slots[0].Start.Format("15:04") != "09:00" || slots[6].Start.Format("15:04") != "12:00" || slots[7].Start.Format("15:04") != "14:30" {
		t.Fatalf("unexpected ordering around the break: %s %s %s",
			slots[0].Start.Format("15:04"), slots[6].Start.Format("15:04"), slots[7].Start.Format("15:04"))
	}
}

func TestListAvailableSlots_ProviderTimezone(t *testing.T) {
	if _, err := time.LoadLocation("America/New_York"); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	src := fullDaySource()
	src.booked = nil
	src.providers["prov-1"] = model.Provider{ID: "prov-1", Timezone: "America/New_York"}
	src.shifts[0].Start, src.shifts[0].End = "09:00", "10:00"
	r := NewResolver(src, quietLogger(), clock(monday.AddDate(0, 0, -1)))

	slots, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 30)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("09:00 New York should be 14:00 UTC, got %s", slots[0].Start.UTC())
	}
}

func TestListAvailableSlots_SkipsMalformedShift(t *testing.T) {
	src := fullDaySource()
	src.booked = nil
	src.shifts = append(src.shifts, model.WorkingShift{
		ProviderID: "prov-1", Weekday: time.Monday, ShiftType: model.ShiftEvening, Start: "20:00", End: "19:00", Active: true,
	})
	r := NewResolver(src, quietLogger(), clock(monday.AddDate(0, 0, -1)))
	slots, err := r.ListAvailableSlots(context.Background(), "prov-1", "2026-03-02", 60)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 9 {
		t.Fatalf("expected 9 hourly slots from the valid shift, got %d", len(slots))
	}
}

func TestIsSlotAvailable(t *testing.T) {
	r := NewResolver(fullDaySource(), quietLogger(), clock(monday.AddDate(0, 0, -1)))
	ctx := context.Background()

	ok, err := r.IsSlotAvailable(ctx, "prov-1", monday.Add(9*time.Hour), monday.Add(9*time.Hour+30*time.Minute))
	if err != nil || !ok {
		t.Fatalf("09:00-09:30 should be available, got %v (%v)", ok, err)
	}
	ok, _ = r.IsSlotAvailable(ctx, "prov-1", monday.Add(10*time.Hour), monday.Add(10*time.Hour+30*time.Minute))
	if ok {
		t.Fatal("10:00-10:30 is booked")
	}
	ok, _ = r.IsSlotAvailable(ctx, "prov-1", monday.Add(9*time.Hour+15*time.Minute), monday.Add(9*time.Hour+45*time.Minute))
	if ok {
		t.Fatal("09:15-09:45 is not on the slot grid")
	}
}
