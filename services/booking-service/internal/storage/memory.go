package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
)

// MemoryStore keeps providers, schedules and appointments in process memory.
// Writes for one provider are serialized through that provider's lock so the
// overlap check and the insert form one atomic step.
type MemoryStore struct {
	mu           sync.RWMutex
	providers    map[string]model.Provider
	shifts       map[string][]model.WorkingShift
	holidays     map[string]map[string]model.Holiday
	breaks       map[string][]model.Break
	appointments map[string]model.Appointment

	locks providerLocks
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers:    map[string]model.Provider{},
		shifts:       map[string][]model.WorkingShift{},
		holidays:     map[string]map[string]model.Holiday{},
		breaks:       map[string][]model.Break{},
		appointments: map[string]model.Appointment{},
		now:          time.Now,
	}
}

type providerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *providerLocks) lock(providerID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*sync.Mutex{}
	}
	m, ok := l.locks[providerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[providerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (s *MemoryStore) AddProvider(p model.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
}

func (s *MemoryStore) AddWorkingShift(shift model.WorkingShift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[shift.ProviderID] = append(s.shifts[shift.ProviderID], shift)
}

func (s *MemoryStore) AddHoliday(h model.Holiday) {
	s.mu.Lock()
	defer s.mu.Unlock()
	days, ok := s.holidays[h.ProviderID]
	if !ok {
		days = map[string]model.Holiday{}
		s.holidays[h.ProviderID] = days
	}
	days[h.Date.Format(time.DateOnly)] = h
}

func (s *MemoryStore) AddBreak(b model.Break) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breaks[b.ProviderID] = append(s.breaks[b.ProviderID], b)
}

// PutAppointment stores appt as-is, bypassing the overlap check. Used for seeding.
func (s *MemoryStore) PutAppointment(appt model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	s.appointments[appt.ID] = appt
}

func (s *MemoryStore) GetProvider(_ context.Context, providerID string) (model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[providerID]
	if !ok {
		return model.Provider{}, model.NotFoundf("provider %s", providerID)
	}
	return p, nil
}

func (s *MemoryStore) GetWorkingShifts(_ context.Context, providerID string, weekday time.Weekday) ([]model.WorkingShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.WorkingShift
	for _, shift := range s.shifts[providerID] {
		if shift.Weekday == weekday && shift.Active {
			out = append(out, shift)
		}
	}
	return out, nil
}

func (s *MemoryStore) HasHoliday(_ context.Context, providerID string, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.holidays[providerID][date.Format(time.DateOnly)]
	return ok, nil
}

func (s *MemoryStore) GetBreaks(_ context.Context, providerID string, from, to time.Time) ([]availability.Interval, error) {
	window := availability.Interval{Start: from, End: to}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []availability.Interval
	for _, b := range s.breaks[providerID] {
		iv := availability.Interval{Start: b.StartTime, End: b.EndTime}
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetBlockingAppointments(_ context.Context, providerID string, from, to time.Time) ([]availability.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blockingLocked(providerID, availability.Interval{Start: from, End: to}), nil
}

func (s *MemoryStore) blockingLocked(providerID string, window availability.Interval) []availability.Interval {
	var out []availability.Interval
	for _, appt := range s.appointments {
		if appt.ProviderID != providerID || !appt.Status.Blocking() {
			continue
		}
		iv := availability.Interval{Start: appt.StartTime, End: appt.EndTime}
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	return out
}

func (s *MemoryStore) InsertAppointmentIfNoOverlap(ctx context.Context, na model.NewAppointment) (model.Appointment, error) {
	unlock := s.locks.lock(na.ProviderID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blockingLocked(na.ProviderID, availability.Interval{Start: na.StartTime, End: na.EndTime})) > 0 {
		return model.Appointment{}, model.Conflictf("slot %s-%s is no longer available",
			na.StartTime.Format(time.RFC3339), na.EndTime.Format(time.RFC3339))
	}

	now := s.now().UTC()
	appt := model.Appointment{
		ID:         uuid.NewString(),
		ProviderID: na.ProviderID,
		UserID:     na.UserID,
		ServiceID:  na.ServiceID,
		StartTime:  na.StartTime,
		EndTime:    na.EndTime,
		Status:     model.StatusPending,
		Notes:      na.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.appointments[appt.ID] = appt
	return appt, nil
}

func (s *MemoryStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, model.NotFoundf("appointment %s", id)
	}
	return appt, nil
}

func (s *MemoryStore) ListAppointments(_ context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	filter = filter.Normalize()
	s.mu.RLock()
	var out []model.Appointment
	for _, appt := range s.appointments {
		if filter.ProviderID != "" && appt.ProviderID != filter.ProviderID {
			continue
		}
		if filter.UserID != "" && appt.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && appt.Status != filter.Status {
			continue
		}
		out = append(out, appt)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset >= len(out) {
		return []model.Appointment{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, to model.AppointmentStatus, check func(from model.AppointmentStatus) error) (model.Appointment, error) {
	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	unlock := s.locks.lock(current.ProviderID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	appt := s.appointments[id]
	if err := check(appt.Status); err != nil {
		return model.Appointment{}, err
	}
	if appt.Status == to {
		return appt, nil
	}
	appt.Status = to
	appt.UpdatedAt = s.now().UTC()
	s.appointments[id] = appt
	return appt, nil
}
