package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/clinicslots/libs/otel"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DateLayout         = "2006-01-02"
	MaxDurationMinutes = 24 * 60
)

var tracer = otel.Tracer("booking-service/scheduling")

// Resolver computes the bookable slots of one provider on one day. It holds
// no lock and caches nothing: every call recomputes from the source, so the
// answer is advisory and the write path re-checks it.
type Resolver struct {
	source Source
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Resolver)

// WithClock overrides the clock used to drop slots that already started.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(source Source, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{source: source, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListAvailableSlots returns the slots of durationMinutes on date (YYYY-MM-DD,
// interpreted in the provider's timezone), ascending by start.
func (r *Resolver) ListAvailableSlots(ctx context.Context, providerID, date string, durationMinutes int) (slots []availability.Slot, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.ListAvailableSlots")
	span.SetAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("date", date),
		attribute.Int("duration_minutes", durationMinutes),
	)
	defer func() {
		span.SetAttributes(attribute.Int("slots.count", len(slots)))
		otelx.EndSpan(span, err)
	}()

	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, model.Validationf("provider_id is required")
	}
	if durationMinutes <= 0 || durationMinutes > MaxDurationMinutes {
		return nil, model.Validationf("duration_minutes must be between 1 and %d", MaxDurationMinutes)
	}
	date = strings.TrimSpace(date)
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, model.Validationf("date must be YYYY-MM-DD (got %q)", date)
	}

	provider, err := r.source.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	loc, err := provider.Location()
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return nil, err
	}
	return r.slotsForDay(ctx, provider, day, time.Duration(durationMinutes)*time.Minute)
}

func (r *Resolver) slotsForDay(ctx context.Context, provider model.Provider, day time.Time, duration time.Duration) ([]availability.Slot, error) {
	holiday, err := r.source.HasHoliday(ctx, provider.ID, day)
	if err != nil {
		return nil, fmt.Errorf("load holiday: %w", err)
	}
	if holiday {
		return []availability.Slot{}, nil
	}

	shifts, err := r.source.GetWorkingShifts(ctx, provider.ID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load shifts: %w", err)
	}
	working := r.workingIntervals(provider.ID, day, shifts)
	if len(working) == 0 {
		return []availability.Slot{}, nil
	}

	// AddDate keeps the next midnight correct across DST changes.
	dayStart, dayEnd := day, day.AddDate(0, 0, 1)

	breaks, err := r.source.GetBreaks(ctx, provider.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load breaks: %w", err)
	}
	booked, err := r.source.GetBlockingAppointments(ctx, provider.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	free := availability.Subtract(working, breaks)
	free = availability.Subtract(free, booked)
	slots := availability.GenerateSlots(free, duration)

	now := r.now().In(day.Location())
	if sameDay(now, day) {
		slots = availability.DropStarted(slots, now)
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	return slots, nil
}

func (r *Resolver) workingIntervals(providerID string, day time.Time, shifts []model.WorkingShift) []availability.Interval {
	out := make([]availability.Interval, 0, len(shifts))
	for _, sh := range shifts {
		if !sh.Active {
			continue
		}
		start, end, err := sh.Bounds(day)
		if err != nil || !end.After(start) {
			r.logger.Warn("skipping malformed shift",
				"provider_id", providerID,
				"shift_type", sh.ShiftType,
				"start", sh.Start,
				"end", sh.End,
				"err", err,
			)
			continue
		}
		out = append(out, availability.Interval{Start: start, End: end})
	}
	return out
}

// IsSlotAvailable reports whether [start, end) is exactly one of the slots
// currently offered for its day.
func (r *Resolver) IsSlotAvailable(ctx context.Context, providerID string, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, model.Validationf("end_time must be after start_time")
	}
	duration := end.Sub(start)
	if duration%time.Minute != 0 {
		return false, nil
	}

	provider, err := r.source.GetProvider(ctx, providerID)
	if err != nil {
		return false, err
	}
	loc, err := provider.Location()
	if err != nil {
		return false, err
	}
	local := start.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	slots, err := r.slotsForDay(ctx, provider, day, duration)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Start.Equal(start) && s.End.Equal(end) {
			return true, nil
		}
	}
	return false, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
