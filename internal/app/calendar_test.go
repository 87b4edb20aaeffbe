package app

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-scheduler/internal/schedule"
)

func TestGoogleCalendarConfig(t *testing.T) {
	assert.Nil(t, GoogleCalendarConfig("", "secret", "http://localhost/oauth2callback"))
	assert.Nil(t, GoogleCalendarConfig("id", "", "http://localhost/oauth2callback"))

	cfg := GoogleCalendarConfig("id", "secret", "http://localhost/oauth2callback")
	require.NotNil(t, cfg)
	assert.Equal(t, "id", cfg.ClientID)
	assert.Len(t, cfg.Scopes, 1)
}

func TestAppointmentEvent(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	cfg := schedule.DefaultConfig()
	cfg.ConsultationDuration = 45
	p := &Physician{ID: uuid.New(), Name: "Dr. Ana Ferreira", Schedule: cfg}
	ap := &Appointment{
		ID:          uuid.New(),
		PhysicianID: p.ID,
		PatientID:   "patient-7",
		StartsAt:    at(monday, 14, 30),
		Reason:      "palpitations",
		Status:      StatusConfirmed,
	}

	ev := appointmentEvent(ap, p, loc)
	assert.Equal(t, "Consultation with Dr. Ana Ferreira", ev.Summary)
	assert.Contains(t, ev.Description, "Patient: patient-7")
	assert.Contains(t, ev.Description, "Reason: palpitations")
	assert.Equal(t, "2026-10-19T14:30:00-03:00", ev.Start.DateTime)
	assert.Equal(t, "2026-10-19T15:15:00-03:00", ev.End.DateTime)
	assert.Equal(t, "America/Sao_Paulo", ev.Start.TimeZone)
	assert.Equal(t, ap.ID.String(), ev.ExtendedProperties.Private["appointment_id"])
}

func TestCalendarHandlers_NotConfigured(t *testing.T) {
	a, store := newTestApp(t)
	p := seedPhysician(t, a)
	ap := seedAppointment(t, store, p.ID, at(monday, 9, 0), StatusConfirmed)
	router := newTestRouter(a)

	w := do(router, http.MethodGet, "/api/calendar/auth", testAdminToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(router, http.MethodPost, "/api/appointments/"+ap.ID.String()+"/calendar", testAdminToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(router, http.MethodGet, "/oauth2callback?code=abc", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCalendarHandlers_Configured(t *testing.T) {
	a, store := newTestApp(t)
	a.Calendar = GoogleCalendarConfig("id", "secret", "http://localhost/oauth2callback")
	p := seedPhysician(t, a)
	ap := seedAppointment(t, store, p.ID, at(monday, 9, 0), StatusConfirmed)
	router := newTestRouter(a)

	w := do(router, http.MethodGet, "/api/calendar/auth", testAdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "accounts.google.com")

	w = do(router, http.MethodPost, "/api/appointments/"+ap.ID.String()+"/calendar", testAdminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "X-Google-Token")

	w = do(router, http.MethodGet, "/oauth2callback", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
