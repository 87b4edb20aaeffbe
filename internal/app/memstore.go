package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-scheduler/internal/schedule"
)

// MemoryStore keeps everything in process. It enforces the same active-slot
// uniqueness as the Postgres partial index and is used for local runs
// (STORE=memory) and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	physicians   map[uuid.UUID]*Physician
	appointments map[uuid.UUID]*Appointment
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		physicians:   make(map[uuid.UUID]*Physician),
		appointments: make(map[uuid.UUID]*Appointment),
		now:          time.Now,
	}
}

func (m *MemoryStore) CreatePhysician(_ context.Context, p *Physician) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.physicians {
		if other.RegistrationNumber == p.RegistrationNumber {
			return fmt.Errorf("%w: registration number %s already exists", ErrConflict, p.RegistrationNumber)
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = m.now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.physicians[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetPhysician(_ context.Context, id uuid.UUID) (*Physician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.physicians[id]
	if !ok {
		return nil, fmt.Errorf("physician %s: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListPhysicians(_ context.Context, activeOnly bool) ([]Physician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Physician{}
	for _, p := range m.physicians {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) UpdateSchedule(_ context.Context, id uuid.UUID, cfg schedule.Config, active bool) (*Physician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.physicians[id]
	if !ok {
		return nil, fmt.Errorf("physician %s: %w", id, ErrNotFound)
	}
	p.Schedule = cfg
	p.Active = active
	p.UpdatedAt = m.now().UTC()
	cp := *p
	return &cp, nil
}

// slotTaken must be called with mu held.
func (m *MemoryStore) slotTaken(ap *Appointment) bool {
	if !ap.Status.Active() {
		return false
	}
	for id, other := range m.appointments {
		if id == ap.ID || other.PhysicianID != ap.PhysicianID || !other.Status.Active() {
			continue
		}
		if other.StartsAt.Equal(ap.StartsAt) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateAppointment(_ context.Context, ap *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.physicians[ap.PhysicianID]; !ok {
		return fmt.Errorf("physician %s: %w", ap.PhysicianID, ErrNotFound)
	}
	if ap.ID == uuid.Nil {
		ap.ID = uuid.New()
	}
	if m.slotTaken(ap) {
		return fmt.Errorf("%w: slot already booked", ErrConflict)
	}
	ap.CreatedAt = m.now().UTC()
	ap.UpdatedAt = ap.CreatedAt
	cp := *ap
	m.appointments[ap.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ap, ok := m.appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	cp := *ap
	return &cp, nil
}

func (m *MemoryStore) UpdateAppointment(_ context.Context, ap *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.appointments[ap.ID]
	if !ok {
		return fmt.Errorf("appointment %s: %w", ap.ID, ErrNotFound)
	}
	if m.slotTaken(ap) {
		return fmt.Errorf("%w: slot already booked", ErrConflict)
	}
	ap.CreatedAt = cur.CreatedAt
	ap.UpdatedAt = m.now().UTC()
	cp := *ap
	m.appointments[ap.ID] = &cp
	return nil
}

func (m *MemoryStore) CancelAppointment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ap, ok := m.appointments[id]
	if !ok {
		return fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	if ap.Status == StatusCancelled {
		return fmt.Errorf("%w: appointment already cancelled", ErrConflict)
	}
	ap.Status = StatusCancelled
	ap.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryStore) ListAppointments(_ context.Context, f AppointmentFilter) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Appointment{}
	for _, ap := range m.appointments {
		if f.PhysicianID != uuid.Nil && ap.PhysicianID != f.PhysicianID {
			continue
		}
		if f.Status != "" && ap.Status != f.Status {
			continue
		}
		if !f.Date.IsZero() && !startOfDay(ap.StartsAt).Equal(startOfDay(f.Date)) {
			continue
		}
		out = append(out, *ap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

func (m *MemoryStore) FindActiveAppointments(_ context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Appointment
	for _, ap := range m.appointments {
		if ap.PhysicianID != physicianID || !ap.Status.Active() {
			continue
		}
		if ap.StartsAt.Before(from) || ap.StartsAt.After(to) {
			continue
		}
		out = append(out, *ap)
	}
	return out, nil
}
