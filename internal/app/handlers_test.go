package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret     = "test-hmac-secret"
	testAdminToken = "admin-token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(a *App) *gin.Engine {
	router := gin.New()
	a.Routes(router, AuthMiddleware(testSecret, []string{testAdminToken}))
	return router
}

func tokenFor(t *testing.T, role Role, physicianID uuid.UUID) string {
	t.Helper()
	tok, err := IssueToken(testSecret, role, physicianID, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type slotsResponse struct {
	Date  string       `json:"date"`
	Slots []slotOption `json:"slots"`
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	a, _ := newTestApp(t)
	w := do(newTestRouter(a), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	a, _ := newTestApp(t)
	router := newTestRouter(a)

	w := do(router, http.MethodGet, "/api/physicians", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(router, http.MethodGet, "/api/physicians", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/physicians", nil)
	req.Header.Set("Authorization", "Token "+testAdminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid authorization format")

	w = do(router, http.MethodGet, "/api/physicians", testAdminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetSlotsHandler(t *testing.T) {
	a, store := newTestApp(t)
	p := seedPhysician(t, a)
	seedAppointment(t, store, p.ID, at(monday, 9, 0), StatusConfirmed)
	router := newTestRouter(a)
	base := "/api/physicians/" + p.ID.String() + "/slots"

	t.Run("working day", func(t *testing.T) {
		w := do(router, http.MethodGet, base+"?date=2026-10-19", testAdminToken, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp slotsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "2026-10-19", resp.Date)
		require.Len(t, resp.Slots, 14)
		assert.Equal(t, slotOption{Value: "08:30", Text: "08:30"}, resp.Slots[0])
		assert.Equal(t, "09:30", resp.Slots[1].Value)
		assert.Equal(t, "16:30", resp.Slots[13].Value)
	})

	t.Run("weekend is empty", func(t *testing.T) {
		w := do(router, http.MethodGet, base+"?date=2026-10-24", testAdminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp slotsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotNil(t, resp.Slots)
		assert.Empty(t, resp.Slots)
	})

	t.Run("today is allowed", func(t *testing.T) {
		w := do(router, http.MethodGet, base+"?date=2026-10-18", testAdminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name  string
		query string
		code  int
		msg   string
	}{
		{"missing date", "", http.StatusBadRequest, "date required"},
		{"bad date", "?date=19-10-2026", http.StatusBadRequest, "invalid date format"},
		{"past date", "?date=2026-10-17", http.StatusBadRequest, "past dates"},
		{"bad appointment id", "?date=2026-10-19&appointment_id=nope", http.StatusBadRequest, "invalid appointment_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodGet, base+tt.query, testAdminToken, nil)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
		})
	}

	t.Run("unknown physician", func(t *testing.T) {
		w := do(router, http.MethodGet, "/api/physicians/"+uuid.NewString()+"/slots?date=2026-10-19", testAdminToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetSlotsHandler_ForEdit(t *testing.T) {
	a, store := newTestApp(t)
	p := seedPhysician(t, a)
	ap := seedAppointment(t, store, p.ID, at(monday, 9, 0), StatusConfirmed)
	router := newTestRouter(a)

	path := "/api/physicians/" + p.ID.String() + "/slots?date=2026-10-19&appointment_id=" + ap.ID.String()
	w := do(router, http.MethodGet, path, testAdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp slotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 15)
	assert.Equal(t, "09:00", resp.Slots[1].Value)
}

func appointmentBody(p *Physician, date, clock string) map[string]string {
	return map[string]string{
		"physician_id": p.ID.String(),
		"patient_id":   "patient-42",
		"date":         date,
		"time":         clock,
		"reason":       "annual check-up",
	}
}

func TestCreateAppointmentHandler(t *testing.T) {
	a, _ := newTestApp(t)
	p := seedPhysician(t, a)
	router := newTestRouter(a)

	w := do(router, http.MethodPost, "/api/appointments", testAdminToken, appointmentBody(p, "2026-10-19", "10:30"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var ap Appointment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ap))
	assert.Equal(t, StatusPending, ap.Status)
	assert.True(t, ap.StartsAt.Equal(at(monday, 10, 30)))

	// the slot is no longer offered, so a second request is rejected up front
	w = do(router, http.MethodPost, "/api/appointments", testAdminToken, appointmentBody(p, "2026-10-19", "10:30"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrSlotUnavailable.Error())

	tests := []struct {
		name string
		body any
		code int
	}{
		{"past date", appointmentBody(p, "2026-10-16", "10:30"), http.StatusBadRequest},
		{"off grid", appointmentBody(p, "2026-10-19", "10:45"), http.StatusBadRequest},
		{"bad time", appointmentBody(p, "2026-10-19", "half past ten"), http.StatusBadRequest},
		{"missing reason", map[string]string{"physician_id": p.ID.String(), "patient_id": "x", "date": "2026-10-19", "time": "11:00"}, http.StatusBadRequest},
		{"unknown physician", map[string]string{"physician_id": uuid.NewString(), "patient_id": "x", "date": "2026-10-19", "time": "11:00", "reason": "r"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/appointments", testAdminToken, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

// staleStore hides existing appointments from the availability query, as if
// another request booked the slot between the check and the insert.
type staleStore struct {
	*MemoryStore
}

func (staleStore) FindActiveAppointments(context.Context, uuid.UUID, time.Time, time.Time) ([]Appointment, error) {
	return nil, nil
}

func TestCreateAppointmentHandler_LostRace(t *testing.T) {
	mem := NewMemoryStore()
	a := New(staleStore{mem}, nil)
	a.Now = func() time.Time { return fixedNow }
	p := seedPhysician(t, a)
	router := newTestRouter(a)

	w := do(router, http.MethodPost, "/api/appointments", testAdminToken, appointmentBody(p, "2026-10-19", "14:00"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(router, http.MethodPost, "/api/appointments", testAdminToken, appointmentBody(p, "2026-10-19", "14:00"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "slot no longer available")
}

func TestRolePermissions(t *testing.T) {
	a, store := newTestApp(t)
	p := seedPhysician(t, a)
	other := seedPhysician(t, a)
	own := seedAppointment(t, store, p.ID, at(monday, 9, 0), StatusConfirmed)
	foreign := seedAppointment(t, store, other.ID, at(monday, 9, 0), StatusConfirmed)
	router := newTestRouter(a)

	nurse := tokenFor(t, RoleNurse, uuid.Nil)
	reception := tokenFor(t, RoleReceptionist, uuid.Nil)
	doctor := tokenFor(t, RolePhysician, p.ID)

	t.Run("nurse cannot book", func(t *testing.T) {
		w := do(router, http.MethodPost, "/api/appointments", nurse, appointmentBody(p, "2026-10-19", "10:00"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("nurse can read slots", func(t *testing.T) {
		w := do(router, http.MethodGet, "/api/physicians/"+p.ID.String()+"/slots?date=2026-10-19", nurse, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("receptionist can book", func(t *testing.T) {
		w := do(router, http.MethodPost, "/api/appointments", reception, appointmentBody(p, "2026-10-19", "10:00"))
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("receptionist cannot register physicians", func(t *testing.T) {
		w := do(router, http.MethodPost, "/api/physicians", reception, map[string]string{"name": "Dr. X", "registration_number": "RN-X"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("physician records a diagnosis", func(t *testing.T) {
		body := map[string]string{"status": "completed", "diagnosis": "tension headache"}
		w := do(router, http.MethodPut, "/api/appointments/"+own.ID.String(), doctor, body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var got Appointment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, StatusCompleted, got.Status)
		assert.Equal(t, "tension headache", got.Diagnosis)
	})

	t.Run("physician cannot reschedule", func(t *testing.T) {
		w := do(router, http.MethodPut, "/api/appointments/"+own.ID.String(), doctor, map[string]string{"time": "11:00"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("physician cannot see another physician's appointment", func(t *testing.T) {
		w := do(router, http.MethodGet, "/api/appointments/"+foreign.ID.String(), doctor, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = do(router, http.MethodGet, "/api/physicians/"+other.ID.String()+"/appointments", doctor, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("physician lists own appointments", func(t *testing.T) {
		w := do(router, http.MethodGet, "/api/physicians/"+p.ID.String()+"/appointments?date=2026-10-19", doctor, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var list []Appointment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		assert.Len(t, list, 2)
	})

	t.Run("nurse cannot update", func(t *testing.T) {
		w := do(router, http.MethodPut, "/api/appointments/"+own.ID.String(), nurse, map[string]string{"notes": "x"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestUpdateAppointmentHandler_Reschedule(t *testing.T) {
	a, store := newTestApp(t)
	p := seedPhysician(t, a)
	ap := seedAppointment(t, store, p.ID, at(monday, 9, 0), StatusConfirmed)
	seedAppointment(t, store, p.ID, at(monday, 9, 30), StatusConfirmed)
	router := newTestRouter(a)
	path := "/api/appointments/" + ap.ID.String()

	w := do(router, http.MethodPut, path, testAdminToken, map[string]string{"time": "09:30"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPut, path, testAdminToken, map[string]string{"date": "2026-10-20"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got Appointment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.StartsAt.Equal(at(tuesday, 9, 0)))

	w = do(router, http.MethodPut, path, testAdminToken, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelAppointmentHandler(t *testing.T) {
	a, store := newTestApp(t)
	p := seedPhysician(t, a)
	ap := seedAppointment(t, store, p.ID, at(monday, 9, 0), StatusPending)
	router := newTestRouter(a)
	path := "/api/appointments/" + ap.ID.String()

	w := do(router, http.MethodDelete, path, testAdminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodDelete, path, testAdminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodDelete, "/api/appointments/"+uuid.NewString(), testAdminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodDelete, "/api/appointments/not-a-uuid", testAdminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPhysicianHandlers(t *testing.T) {
	a, _ := newTestApp(t)
	router := newTestRouter(a)

	w := do(router, http.MethodPost, "/api/physicians", testAdminToken, map[string]string{
		"name":                "Dr. Ana Ferreira",
		"specialty":           "Cardiology",
		"registration_number": "CRM-1001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p Physician
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.True(t, p.Active)
	assert.Equal(t, 30, p.Schedule.ConsultationDuration)
	assert.Contains(t, w.Body.String(), `"working_days":"1,2,3,4,5"`)

	w = do(router, http.MethodPost, "/api/physicians", testAdminToken, map[string]string{
		"name":                "Dr. Duplicate",
		"registration_number": "CRM-1001",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	schedulePath := "/api/physicians/" + p.ID.String() + "/schedule"
	body := `{"consultation_duration":45,"morning_enabled":true,"morning_start":"09:00","morning_end":"10:00",
		"afternoon_enabled":false,"afternoon_start":"00:00","afternoon_end":"00:00","working_days":"6"}`
	req := httptest.NewRequest(http.MethodPut, schedulePath, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Saturday now works with two slots, the second running past 10:00
	w = do(router, http.MethodGet, "/api/physicians/"+p.ID.String()+"/slots?date=2026-10-24", testAdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp slotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []slotOption{{"09:00", "09:00"}, {"09:45", "09:45"}}, resp.Slots)

	bad := `{"consultation_duration":0,"morning_enabled":true,"morning_start":"09:00","morning_end":"10:00","working_days":"1"}`
	req = httptest.NewRequest(http.MethodPut, schedulePath, strings.NewReader(bad))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = do(router, http.MethodGet, "/api/physicians?active=true", testAdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []Physician
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestCreatePhysicianHandler_RejectsOverflowingDuration(t *testing.T) {
	a, _ := newTestApp(t)
	router := newTestRouter(a)

	body := `{"name":"Dr. Long","registration_number":"CRM-9","schedule":{"consultation_duration":9007199254740992,
		"morning_enabled":true,"morning_start":"08:00","morning_end":"12:00","working_days":"1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/physicians", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "consultation_duration")
}

func TestUpdateAppointmentHandler_PhysicianReactivationChecked(t *testing.T) {
	a, store := newTestApp(t)
	p := seedPhysician(t, a)
	ap := seedAppointment(t, store, p.ID, time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC), StatusCancelled)
	router := newTestRouter(a)

	w := do(router, http.MethodPut, "/api/appointments/"+ap.ID.String(), tokenFor(t, RolePhysician, p.ID),
		map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrPastDate.Error())
}
