package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
)

const (
	AggregateAppointment = "appointment"

	EventAppointmentRequested     = "booking.appointment.requested.v1"
	EventAppointmentStatusChanged = "booking.appointment.status_changed.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type appointmentPayload struct {
	AppointmentID  string `json:"appointment_id"`
	ProviderID     string `json:"provider_id"`
	UserID         string `json:"user_id"`
	ServiceID      string `json:"service_id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

func AppointmentRequested(appt model.Appointment) (Event, error) {
	return appointmentEvent(EventAppointmentRequested, appt, "")
}

func AppointmentStatusChanged(appt model.Appointment, previous model.AppointmentStatus) (Event, error) {
	return appointmentEvent(EventAppointmentStatusChanged, appt, previous)
}

func appointmentEvent(eventType string, appt model.Appointment, previous model.AppointmentStatus) (Event, error) {
	occurred := appt.UpdatedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	payload, err := json.Marshal(appointmentPayload{
		AppointmentID:  appt.ID,
		ProviderID:     appt.ProviderID,
		UserID:         appt.UserID,
		ServiceID:      appt.ServiceID,
		StartTime:      appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:        appt.EndTime.UTC().Format(time.RFC3339),
		Status:         string(appt.Status),
		PreviousStatus: string(previous),
		OccurredAt:     occurred.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   appt.ProviderID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
