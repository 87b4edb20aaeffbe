package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinic-scheduler/internal/schedule"
)

// CreatePhysician registers a physician. The schedule is validated here, at
// configuration time, so slot generation never sees a broken pattern.
func (a *App) CreatePhysician(ctx context.Context, p *Physician) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.RegistrationNumber) == "" {
		return fmt.Errorf("%w: registration_number is required", ErrInvalidInput)
	}
	if err := p.Schedule.Validate(); err != nil {
		return err
	}
	if err := a.Store.CreatePhysician(ctx, p); err != nil {
		return err
	}
	a.Log.Info("physician registered",
		zap.String("physician_id", p.ID.String()),
		zap.String("working_days", p.Schedule.WorkingDays.String()))
	return nil
}

func (a *App) GetPhysician(ctx context.Context, id uuid.UUID) (*Physician, error) {
	return a.Store.GetPhysician(ctx, id)
}

func (a *App) ListPhysicians(ctx context.Context, activeOnly bool) ([]Physician, error) {
	return a.Store.ListPhysicians(ctx, activeOnly)
}

// UpdateSchedule replaces the physician's working pattern. Existing
// appointments are left untouched even when they fall outside the new pattern.
func (a *App) UpdateSchedule(ctx context.Context, id uuid.UUID, cfg schedule.Config, active bool) (*Physician, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := a.Store.UpdateSchedule(ctx, id, cfg, active)
	if err != nil {
		return nil, err
	}
	a.Log.Info("physician schedule updated", zap.String("physician_id", id.String()))
	return p, nil
}
