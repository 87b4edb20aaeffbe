package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinic-scheduler/internal/schedule"
)

type BookingRequest struct {
	PhysicianID uuid.UUID
	PatientID   string
	StartsAt    time.Time // clinic wall-clock
	Reason      string
	Notes       string
	Status      Status
	CreatedBy   string
}

// BookAppointment creates an appointment on a currently free slot. The slot
// check is advisory; a concurrent booking of the same slot is rejected by the
// store with ErrConflict, which callers should surface as "slot no longer
// available" rather than retry.
func (a *App) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if strings.TrimSpace(req.PatientID) == "" {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	if !req.Status.Active() {
		return nil, fmt.Errorf("%w: new appointments must be pending, confirmed or in progress", ErrInvalidInput)
	}

	p, err := a.Store.GetPhysician(ctx, req.PhysicianID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrInactivePhysician
	}
	if err := a.checkSlot(ctx, p, req.StartsAt, nil); err != nil {
		return nil, err
	}

	ap := &Appointment{
		PhysicianID: p.ID,
		PatientID:   req.PatientID,
		StartsAt:    req.StartsAt,
		Reason:      req.Reason,
		Status:      req.Status,
		Notes:       req.Notes,
		CreatedBy:   req.CreatedBy,
	}
	if err := a.Store.CreateAppointment(ctx, ap); err != nil {
		if errors.Is(err, ErrConflict) {
			a.Log.Info("booking lost slot race",
				zap.String("physician_id", p.ID.String()),
				zap.Time("starts_at", req.StartsAt))
		}
		return nil, err
	}

	a.Log.Info("appointment booked",
		zap.String("appointment_id", ap.ID.String()),
		zap.String("physician_id", p.ID.String()),
		zap.Time("starts_at", ap.StartsAt),
		zap.String("created_by", ap.CreatedBy))
	return ap, nil
}

// checkSlot verifies that startsAt is in the future and is one of the free
// slots of p on that date. self, when set, is the appointment being edited
// and keeps its own slot selectable.
func (a *App) checkSlot(ctx context.Context, p *Physician, startsAt time.Time, self *Appointment) error {
	if startsAt.IsZero() {
		return fmt.Errorf("%w: starts_at is required", ErrInvalidInput)
	}
	if startsAt.Before(a.wallNow()) {
		return ErrPastDate
	}
	slots, err := a.availableSlots(ctx, p, startsAt)
	if err != nil {
		return err
	}
	if self != nil {
		slots = ownSlot(slots, self, p.ID, startsAt)
	}
	if !schedule.Contains(slots, schedule.TimeOfDayOf(startsAt)) {
		return ErrSlotUnavailable
	}
	return nil
}

// AppointmentUpdate carries the fields to change; nil means unchanged.
type AppointmentUpdate struct {
	PhysicianID *uuid.UUID
	PatientID   *string
	StartsAt    *time.Time
	Reason      *string
	Status      *Status
	Notes       *string
	Diagnosis   *string
	Treatment   *string
}

// UpdateAppointment applies upd. Moving an active appointment to another
// physician or time, or reactivating a cancelled or completed one,
// re-validates the target slot; an active appointment's current slot still
// counts as free for itself.
func (a *App) UpdateAppointment(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	cur, err := a.Store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *cur

	if upd.PhysicianID != nil {
		next.PhysicianID = *upd.PhysicianID
	}
	if upd.StartsAt != nil {
		next.StartsAt = *upd.StartsAt
	}
	if upd.PatientID != nil {
		next.PatientID = *upd.PatientID
	}
	if upd.Reason != nil {
		next.Reason = *upd.Reason
	}
	if upd.Status != nil {
		next.Status = *upd.Status
	}
	if upd.Notes != nil {
		next.Notes = *upd.Notes
	}
	if upd.Diagnosis != nil {
		next.Diagnosis = *upd.Diagnosis
	}
	if upd.Treatment != nil {
		next.Treatment = *upd.Treatment
	}

	reassigned := next.PhysicianID != cur.PhysicianID
	moved := reassigned || !next.StartsAt.Equal(cur.StartsAt)
	reactivated := !cur.Status.Active() && next.Status.Active()
	recheck := (moved || reactivated) && next.Status.Active()

	if reassigned || recheck {
		p, err := a.Store.GetPhysician(ctx, next.PhysicianID)
		if err != nil {
			return nil, err
		}
		if recheck {
			if !p.Active {
				return nil, ErrInactivePhysician
			}
			if err := a.checkSlot(ctx, p, next.StartsAt, cur); err != nil {
				return nil, err
			}
		}
	}

	if err := a.Store.UpdateAppointment(ctx, &next); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("appointment_id", id.String()),
		zap.String("status", string(next.Status)),
	}
	if moved {
		fields = append(fields, zap.Time("from", cur.StartsAt), zap.Time("to", next.StartsAt))
	}
	a.Log.Info("appointment updated", fields...)
	return &next, nil
}

// CancelAppointment marks the appointment cancelled, freeing its slot.
// Appointments are never deleted.
func (a *App) CancelAppointment(ctx context.Context, id uuid.UUID) error {
	if err := a.Store.CancelAppointment(ctx, id); err != nil {
		return err
	}
	a.Log.Info("appointment cancelled", zap.String("appointment_id", id.String()))
	return nil
}

func (a *App) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return a.Store.GetAppointment(ctx, id)
}

func (a *App) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	return a.Store.ListAppointments(ctx, f)
}
