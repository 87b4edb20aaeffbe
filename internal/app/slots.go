package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clinic-scheduler/internal/schedule"
)

// GetAvailableSlots returns the free slot start times of the physician on
// date, in ascending order. An empty result means the physician does not work
// that weekday or every slot is held by an active appointment. Results are
// always computed from the current appointments, never cached.
func (a *App) GetAvailableSlots(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]schedule.TimeOfDay, error) {
	p, err := a.Store.GetPhysician(ctx, physicianID)
	if err != nil {
		return nil, err
	}
	return a.availableSlots(ctx, p, date)
}

func (a *App) availableSlots(ctx context.Context, p *Physician, date time.Time) ([]schedule.TimeOfDay, error) {
	candidates, err := p.Schedule.Slots(date)
	if err != nil {
		return nil, fmt.Errorf("physician %s: %w", p.ID, err)
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	dayStart := startOfDay(date)
	dayEnd := dayStart.Add(24*time.Hour - time.Microsecond)
	appts, err := a.Store.FindActiveAppointments(ctx, p.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("find active appointments: %w", err)
	}

	taken := make([]time.Time, 0, len(appts))
	for _, ap := range appts {
		taken = append(taken, ap.StartsAt)
	}
	return schedule.Available(candidates, taken), nil
}

// SlotsForEdit is GetAvailableSlots for rescheduling an existing appointment:
// the appointment's own slot stays selectable when it falls on the same
// physician and date.
func (a *App) SlotsForEdit(ctx context.Context, physicianID uuid.UUID, date time.Time, appointmentID uuid.UUID) ([]schedule.TimeOfDay, error) {
	slots, err := a.GetAvailableSlots(ctx, physicianID, date)
	if err != nil {
		return nil, err
	}
	ap, err := a.Store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return ownSlot(slots, ap, physicianID, date), nil
}

func ownSlot(slots []schedule.TimeOfDay, ap *Appointment, physicianID uuid.UUID, date time.Time) []schedule.TimeOfDay {
	if ap.PhysicianID != physicianID || !ap.Status.Active() || !startOfDay(ap.StartsAt).Equal(startOfDay(date)) {
		return slots
	}
	return schedule.WithSlot(slots, schedule.TimeOfDayOf(ap.StartsAt))
}
