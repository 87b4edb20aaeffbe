package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinic-scheduler/internal/schedule"
)

var (
	// Sunday morning; the dates below are all in the following week.
	fixedNow = time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	monday   = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	tuesday  = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)
)

func at(day time.Time, hour, minute int) time.Time {
	return schedule.Clock(hour, minute).On(day)
}

func newTestApp(t *testing.T) (*App, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	a := New(store, zap.NewNop())
	a.Now = func() time.Time { return fixedNow }
	return a, store
}

// seedPhysician registers a Mon–Fri physician with morning 08:30–12:30,
// afternoon 13:30–17:00 and 30 minute consultations.
func seedPhysician(t *testing.T, a *App) *Physician {
	t.Helper()
	p := &Physician{
		Name:               "Dr. Rojas",
		Specialty:          "General medicine",
		RegistrationNumber: uuid.NewString(),
		Active:             true,
		Schedule:           schedule.DefaultConfig(),
	}
	require.NoError(t, a.CreatePhysician(context.Background(), p))
	return p
}

// seedAppointment writes straight to the store, skipping booking checks.
func seedAppointment(t *testing.T, store Store, physicianID uuid.UUID, startsAt time.Time, status Status) *Appointment {
	t.Helper()
	ap := &Appointment{
		PhysicianID: physicianID,
		PatientID:   "patient-" + uuid.NewString()[:8],
		StartsAt:    startsAt,
		Reason:      "check-up",
		Status:      status,
	}
	require.NoError(t, store.CreateAppointment(context.Background(), ap))
	return ap
}
