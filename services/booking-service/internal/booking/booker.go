package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/clinicslots/libs/otel"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/scheduling"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("booking-service/booking")

// Ledger is the appointment store seen by the write path.
//
// InsertAppointmentIfNoOverlap must run the overlap check and the insert in
// one atomic scope keyed by provider: while it runs, no other call for the
// same provider may observe or change that provider's blocking appointments.
// On overlap it returns an error wrapping model.ErrConflict and writes
// nothing. The created appointment has status PENDING.
type Ledger interface {
	InsertAppointmentIfNoOverlap(ctx context.Context, appt model.NewAppointment) (model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error)
	// UpdateStatus applies check to the current status under the same
	// provider scope and persists the new status when check passes.
	UpdateStatus(ctx context.Context, id string, to model.AppointmentStatus, check func(from model.AppointmentStatus) error) (model.Appointment, error)
}

type Booker struct {
	providers scheduling.ProviderLookup
	ledger    Ledger
	logger    *slog.Logger
}

func NewBooker(providers scheduling.ProviderLookup, ledger Ledger, logger *slog.Logger) *Booker {
	return &Booker{providers: providers, ledger: ledger, logger: logger}
}

type BookRequest struct {
	ProviderID string
	UserID     string
	ServiceID  string
	StartTime  time.Time
	EndTime    time.Time
	Notes      string
}

// BookSlot reserves [StartTime, EndTime) for the user. It fails with a
// validation error on bad input, not found when the provider is unknown and
// conflict when another blocking appointment overlaps. Conflicts are never
// retried here; the caller re-queries availability.
func (b *Booker) BookSlot(ctx context.Context, req BookRequest) (appt model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "booking.BookSlot")
	span.SetAttributes(
		attribute.String("provider.id", req.ProviderID),
		attribute.String("slot.start", req.StartTime.UTC().Format(time.RFC3339)),
		attribute.String("slot.end", req.EndTime.UTC().Format(time.RFC3339)),
	)
	defer func() {
		if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrValidation) {
			span.SetAttributes(attribute.String("booking.outcome", outcome(err)))
			span.End()
			return
		}
		otelx.EndSpan(span, err)
	}()

	na := model.NewAppointment{
		ProviderID: strings.TrimSpace(req.ProviderID),
		UserID:     strings.TrimSpace(req.UserID),
		ServiceID:  strings.TrimSpace(req.ServiceID),
		StartTime:  req.StartTime.UTC(),
		EndTime:    req.EndTime.UTC(),
		Notes:      strings.TrimSpace(req.Notes),
	}
	if err := na.Validate(); err != nil {
		return model.Appointment{}, err
	}

	if _, err := b.providers.GetProvider(ctx, na.ProviderID); err != nil {
		return model.Appointment{}, err
	}

	appt, err = b.ledger.InsertAppointmentIfNoOverlap(ctx, na)
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			b.logger.Info("booking conflict",
				"provider_id", na.ProviderID,
				"start_time", na.StartTime.Format(time.RFC3339),
				"end_time", na.EndTime.Format(time.RFC3339),
			)
		}
		return model.Appointment{}, err
	}

	span.SetAttributes(attribute.String("appointment.id", appt.ID), attribute.String("booking.outcome", "committed"))
	b.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"start_time", appt.StartTime.Format(time.RFC3339),
	)
	return appt, nil
}

// TransitionStatus moves an appointment along the status graph. Moving to the
// current status is a no-op and returns the appointment unchanged.
func (b *Booker) TransitionStatus(ctx context.Context, id string, to model.AppointmentStatus) (model.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Appointment{}, model.Validationf("appointment id is required")
	}
	appt, err := b.ledger.UpdateStatus(ctx, id, to, func(from model.AppointmentStatus) error {
		return model.CheckTransition(from, to)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	b.logger.Info("appointment status changed", "appointment_id", id, "status", appt.Status)
	return appt, nil
}

func (b *Booker) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	return b.TransitionStatus(ctx, id, model.StatusCancelled)
}

func (b *Booker) Get(ctx context.Context, id string) (model.Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return model.Appointment{}, model.Validationf("appointment id is required")
	}
	return b.ledger.GetAppointment(ctx, strings.TrimSpace(id))
}

func (b *Booker) List(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	return b.ledger.ListAppointments(ctx, filter.Normalize())
}

func outcome(err error) string {
	if errors.Is(err, model.ErrConflict) {
		return "conflicted"
	}
	return "rejected"
}
