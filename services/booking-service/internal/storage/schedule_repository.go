package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicslots/libs/db"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
)

// ScheduleRepository reads provider configuration and blocking appointments
// from Postgres for the availability resolver.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) GetProvider(ctx context.Context, providerID string) (model.Provider, error) {
	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone
		FROM providers
		WHERE id = $1
	`, providerID).Scan(&p.ID, &p.Name, &p.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Provider{}, model.NotFoundf("provider %s", providerID)
	}
	return p, err
}

func (r *ScheduleRepository) GetWorkingShifts(ctx context.Context, providerID string, weekday time.Weekday) ([]model.WorkingShift, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, weekday, shift_type, start_time, end_time, active
		FROM working_hours
		WHERE provider_id = $1 AND weekday = $2 AND active
		ORDER BY start_time
	`, providerID, int16(weekday))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.WorkingShift, error) {
		var s model.WorkingShift
		var day int16
		err := row.Scan(&s.ProviderID, &day, &s.ShiftType, &s.Start, &s.End, &s.Active)
		s.Weekday = time.Weekday(day)
		return s, err
	})
}

func (r *ScheduleRepository) HasHoliday(ctx context.Context, providerID string, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM holidays WHERE provider_id = $1 AND day = $2::date)
	`, providerID, date.Format(time.DateOnly)).Scan(&exists)
	return exists, err
}

func (r *ScheduleRepository) GetBreaks(ctx context.Context, providerID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM breaks
		WHERE provider_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectIntervals(rows)
}

func (r *ScheduleRepository) GetBlockingAppointments(ctx context.Context, providerID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE provider_id = $1
			AND status IN ('PENDING', 'CONFIRMED')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectIntervals(rows)
}

func collectIntervals(rows pgx.Rows) ([]availability.Interval, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (availability.Interval, error) {
		var iv availability.Interval
		err := row.Scan(&iv.Start, &iv.End)
		return iv, err
	})
}
