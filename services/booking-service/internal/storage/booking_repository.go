package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clinicslots/libs/db"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/outbox"
)

const appointmentColumns = `id::text, provider_id, user_id, service_id, start_time, end_time, status, notes, created_at, updated_at`

// BookingRepository is the Postgres appointment ledger. Each write takes a
// transaction-scoped advisory lock keyed by provider, so writes for one
// provider are serialized while other providers proceed in parallel. The
// appointments_no_overlap exclusion constraint backs the check up.
type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, events *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: events}
}

func (r *BookingRepository) InsertAppointmentIfNoOverlap(ctx context.Context, na model.NewAppointment) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	// Once the scope is entered it runs to commit or rollback even if the
	// caller goes away.
	ctx = context.WithoutCancel(ctx)

	var appt model.Appointment
	err := r.pool.InTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if err := lockProvider(ctx, tx, na.ProviderID); err != nil {
			return err
		}

		var overlap bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE provider_id = $1
					AND status IN ('PENDING', 'CONFIRMED')
					AND start_time < $3
					AND end_time > $2
			)
		`, na.ProviderID, na.StartTime, na.EndTime).Scan(&overlap); err != nil {
			return err
		}
		if overlap {
			return model.Conflictf("slot %s-%s is no longer available",
				na.StartTime.Format(time.RFC3339), na.EndTime.Format(time.RFC3339))
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (provider_id, user_id, service_id, start_time, end_time, status, notes)
			VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)
			RETURNING `+appointmentColumns,
			na.ProviderID, na.UserID, na.ServiceID, na.StartTime, na.EndTime, na.Notes)
		var err error
		if appt, err = scanAppointment(row); err != nil {
			return err
		}

		evt, err := outbox.AppointmentRequested(appt)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Appointment{}, translate(err)
	}
	return appt, nil
}

func (r *BookingRepository) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id::text = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, model.NotFoundf("appointment %s", id)
	}
	return appt, err
}

func (r *BookingRepository) ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	filter = filter.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR provider_id = $1)
			AND ($2 = '' OR user_id = $2)
			AND ($3 = '' OR status = $3)
		ORDER BY start_time DESC, id
		LIMIT $4 OFFSET $5
	`, filter.ProviderID, filter.UserID, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	appts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
	if err != nil {
		return nil, err
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return appts, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, to model.AppointmentStatus, check func(from model.AppointmentStatus) error) (model.Appointment, error) {
	var appt model.Appointment
	err := r.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE id::text = $1
			FOR UPDATE
		`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NotFoundf("appointment %s", id)
		}
		if err != nil {
			return err
		}
		if err := check(current.Status); err != nil {
			return err
		}
		if current.Status == to {
			appt = current
			return nil
		}
		if to.Blocking() {
			if err := lockProvider(ctx, tx, current.ProviderID); err != nil {
				return err
			}
		}

		appt, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2, updated_at = now()
			WHERE id = $1::uuid
			RETURNING `+appointmentColumns,
			current.ID, string(to)))
		if err != nil {
			return err
		}

		evt, err := outbox.AppointmentStatusChanged(appt, current.Status)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Appointment{}, translate(err)
	}
	return appt, nil
}

func lockProvider(ctx context.Context, tx pgx.Tx, providerID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, providerID)
	return err
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.ProviderID,
		&appt.UserID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.EndTime,
		&status,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	appt.Status = model.AppointmentStatus(status)
	appt.StartTime = appt.StartTime.UTC()
	appt.EndTime = appt.EndTime.UTC()
	return appt, err
}

// translate maps constraint violations onto domain errors.
func translate(err error) error {
	switch {
	case IsConflict(err):
		return model.Conflictf("slot overlaps an existing appointment")
	case IsForeignKeyViolation(err):
		return model.NotFoundf("provider does not exist")
	}
	return err
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, model.ErrNotFound)
}
