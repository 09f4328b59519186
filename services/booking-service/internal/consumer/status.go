package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// StatusTransitioner applies an appointment status change.
type StatusTransitioner interface {
	TransitionStatus(ctx context.Context, id string, to model.AppointmentStatus) (model.Appointment, error)
}

type statusChanged struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

// StatusChangeHandler applies status_changed events from clinic systems.
// Unknown appointments and illegal moves are logged and dropped so the
// partition keeps moving.
func StatusChangeHandler(target StatusTransitioner, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt statusChanged
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode status change: %w", err)
		}
		status, err := model.ParseStatus(evt.Status)
		if err != nil {
			return err
		}

		appt, err := target.TransitionStatus(ctx, evt.AppointmentID, status)
		switch {
		case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrValidation):
			logger.Warn("status change rejected", "appointment_id", evt.AppointmentID, "status", status, "err", err)
			return nil
		case err != nil:
			return err
		}
		logger.Info("status change applied", "appointment_id", appt.ID, "status", appt.Status)
		return nil
	}
}
