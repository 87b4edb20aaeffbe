package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"clinic-scheduler/internal/schedule"
)

// Store is the persistence collaborator. Implementations must reject a second
// active appointment on the same (physician, starts_at) pair with ErrConflict.
type Store interface {
	CreatePhysician(ctx context.Context, p *Physician) error
	GetPhysician(ctx context.Context, id uuid.UUID) (*Physician, error)
	ListPhysicians(ctx context.Context, activeOnly bool) ([]Physician, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, cfg schedule.Config, active bool) (*Physician, error)

	CreateAppointment(ctx context.Context, ap *Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointment(ctx context.Context, ap *Appointment) error
	CancelAppointment(ctx context.Context, id uuid.UUID) error
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	// FindActiveAppointments returns pending, confirmed and in-progress
	// appointments of the physician with starts_at in [from, to].
	FindActiveAppointments(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error)
}

type App struct {
	Store    Store
	Log      *zap.Logger
	Calendar *oauth2.Config // nil when Google Calendar is not configured

	// Location is the clinic's time zone; appointment wall-clock times and
	// "today" are interpreted in it.
	Location *time.Location
	Now      func() time.Time
}

func New(store Store, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		Store:    store,
		Log:      log,
		Location: time.UTC,
		Now:      time.Now,
	}
}

// wallNow is the current clinic wall-clock time, in the UTC carrier used for
// appointment times.
func (a *App) wallNow() time.Time {
	n := a.Now().In(a.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), n.Second(), n.Nanosecond(), time.UTC)
}

func (a *App) today() time.Time {
	return startOfDay(a.wallNow())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func zapRequest(c *gin.Context, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	}
}
