package scheduling

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
)

// ProviderLookup resolves a provider; it returns model.ErrNotFound when the
// provider does not exist.
type ProviderLookup interface {
	GetProvider(ctx context.Context, providerID string) (model.Provider, error)
}

// Source supplies the per-day configuration and bookings the resolver needs.
// Ranges are half-open [from, to); implementations return every interval
// that overlaps the range.
type Source interface {
	ProviderLookup
	GetWorkingShifts(ctx context.Context, providerID string, weekday time.Weekday) ([]model.WorkingShift, error)
	HasHoliday(ctx context.Context, providerID string, date time.Time) (bool, error)
	GetBreaks(ctx context.Context, providerID string, from, to time.Time) ([]availability.Interval, error)
	GetBlockingAppointments(ctx context.Context, providerID string, from, to time.Time) ([]availability.Interval, error)
}
