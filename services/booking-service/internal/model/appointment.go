package model

import (
	"fmt"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// BlockingStatuses occupy provider time and take part in overlap checks.
var BlockingStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

func (s AppointmentStatus) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func ParseStatus(raw string) (AppointmentStatus, error) {
	s := AppointmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return s, nil
	}
	return "", Validationf("unknown appointment status %q", raw)
}

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CheckTransition reports whether from may move to to. Moving to the same
// status is allowed and is a no-op for callers.
func CheckTransition(from, to AppointmentStatus) error {
	if from == to {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return Conflictf("appointment cannot move from %s to %s", from, to)
}

type Appointment struct {
	ID         string
	ProviderID string
	UserID     string
	ServiceID  string
	StartTime  time.Time
	EndTime    time.Time
	Status     AppointmentStatus
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewAppointment is the write-path input; the ledger assigns id, status and timestamps.
type NewAppointment struct {
	ProviderID string
	UserID     string
	ServiceID  string
	StartTime  time.Time
	EndTime    time.Time
	Notes      string
}

func (a NewAppointment) Validate() error {
	var missing []string
	if strings.TrimSpace(a.ProviderID) == "" {
		missing = append(missing, "provider_id")
	}
	if strings.TrimSpace(a.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(a.ServiceID) == "" {
		missing = append(missing, "service_id")
	}
	if len(missing) > 0 {
		return Validationf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return Validationf("start_time and end_time are required")
	}
	if !a.EndTime.After(a.StartTime) {
		return Validationf("end_time must be after start_time")
	}
	return nil
}

// AppointmentFilter narrows appointment listings; empty fields match everything.
type AppointmentFilter struct {
	ProviderID string
	UserID     string
	Status     AppointmentStatus
	Limit      int
	Offset     int
}

func (f AppointmentFilter) Normalize() AppointmentFilter {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (a Appointment) String() string {
	return fmt.Sprintf("%s[%s %s-%s]", a.ID, a.Status, a.StartTime.Format(time.RFC3339), a.EndTime.Format(time.RFC3339))
}
