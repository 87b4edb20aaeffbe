package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinic-scheduler/internal/schedule"
)

const dateLayout = "2006-01-02"

// Routes mounts the API on router. auth guards everything under /api.
func (a *App) Routes(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := router.Group("/api", auth)
	{
		physicians := api.Group("/physicians")
		{
			physicians.POST("", RequireRole(Role.CanConfigurePhysicians), a.CreatePhysicianHandler)
			physicians.GET("", a.ListPhysiciansHandler)
			physicians.GET("/:id", a.GetPhysicianHandler)
			physicians.PUT("/:id/schedule", RequireRole(Role.CanConfigurePhysicians), a.UpdateScheduleHandler)
			physicians.GET("/:id/slots", a.GetSlotsHandler)
			physicians.GET("/:id/appointments", a.ListPhysicianAppointmentsHandler)
		}

		appointments := api.Group("/appointments")
		{
			appointments.POST("", RequireRole(Role.CanManageAppointments), a.CreateAppointmentHandler)
			appointments.GET("/:id", a.GetAppointmentHandler)
			appointments.PUT("/:id", a.UpdateAppointmentHandler)
			appointments.DELETE("/:id", RequireRole(Role.CanManageAppointments), a.CancelAppointmentHandler)
			appointments.POST("/:id/calendar", a.ExportToCalendarHandler)
		}

		api.GET("/calendar/auth", a.GoogleAuthHandler)
	}
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

type createPhysicianReq struct {
	Name               string           `json:"name" binding:"required"`
	Specialty          string           `json:"specialty"`
	RegistrationNumber string           `json:"registration_number" binding:"required"`
	Active             *bool            `json:"active"`
	Schedule           *schedule.Config `json:"schedule"`
}

// POST /api/physicians
func (a *App) CreatePhysicianHandler(c *gin.Context) {
	var req createPhysicianReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &Physician{
		Name:               req.Name,
		Specialty:          req.Specialty,
		RegistrationNumber: req.RegistrationNumber,
		Active:             true,
		Schedule:           schedule.DefaultConfig(),
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.Schedule != nil {
		p.Schedule = *req.Schedule
	}
	if err := a.CreatePhysician(c.Request.Context(), p); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GET /api/physicians?active=true
func (a *App) ListPhysiciansHandler(c *gin.Context) {
	list, err := a.ListPhysicians(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/physicians/:id
func (a *App) GetPhysicianHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := a.GetPhysician(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type updateScheduleReq struct {
	schedule.Config
	Active *bool `json:"active"`
}

// PUT /api/physicians/:id/schedule
func (a *App) UpdateScheduleHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateScheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	var active bool
	if req.Active != nil {
		active = *req.Active
	} else {
		cur, err := a.GetPhysician(ctx, id)
		if err != nil {
			a.writeError(c, err)
			return
		}
		active = cur.Active
	}

	p, err := a.UpdateSchedule(ctx, id, req.Config, active)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type slotOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// GET /api/physicians/:id/slots?date=YYYY-MM-DD[&appointment_id=]
// appointment_id keeps that appointment's own slot selectable while it is
// being rescheduled.
func (a *App) GetSlotsHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}
	date, err := parseDate(dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format"})
		return
	}
	if date.Before(a.today()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrPastDate.Error()})
		return
	}

	ctx := c.Request.Context()
	var slots []schedule.TimeOfDay
	if raw := c.Query("appointment_id"); raw != "" {
		apID, perr := uuid.Parse(raw)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment_id"})
			return
		}
		slots, err = a.SlotsForEdit(ctx, id, date, apID)
	} else {
		slots, err = a.GetAvailableSlots(ctx, id, date)
	}
	if err != nil {
		a.writeError(c, err)
		return
	}

	out := make([]slotOption, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotOption{Value: s.String(), Text: s.String()})
	}
	c.JSON(http.StatusOK, gin.H{"date": dateStr, "slots": out})
}

func appointmentFilter(c *gin.Context) (AppointmentFilter, error) {
	var f AppointmentFilter
	if s := c.Query("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return f, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		f.Status = st
	}
	if d := c.Query("date"); d != "" {
		date, err := parseDate(d)
		if err != nil {
			return f, fmt.Errorf("%w: invalid date format", ErrInvalidInput)
		}
		f.Date = date
	}
	return f, nil
}

// GET /api/physicians/:id/appointments?status=&date=
func (a *App) ListPhysicianAppointmentsHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if cl := claimsFrom(c); cl.Role == RolePhysician && cl.PhysicianID != id {
		a.writeError(c, ErrForbidden)
		return
	}
	f, err := appointmentFilter(c)
	if err != nil {
		a.writeError(c, err)
		return
	}
	f.PhysicianID = id

	list, err := a.ListAppointments(c.Request.Context(), f)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type createAppointmentReq struct {
	PhysicianID string `json:"physician_id" binding:"required"`
	PatientID   string `json:"patient_id" binding:"required"`
	Date        string `json:"date" binding:"required"` // YYYY-MM-DD
	Time        string `json:"time" binding:"required"` // HH:MM, one of the offered slots
	Reason      string `json:"reason" binding:"required"`
	Notes       string `json:"notes,omitempty"`
	Status      string `json:"status,omitempty"`
}

func combine(dateStr, timeStr string) (time.Time, error) {
	date, err := parseDate(dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date format", ErrInvalidInput)
	}
	tod, err := schedule.ParseTimeOfDay(timeStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return tod.On(date), nil
}

// POST /api/appointments
func (a *App) CreateAppointmentHandler(c *gin.Context) {
	var req createAppointmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	physicianID, err := uuid.Parse(req.PhysicianID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid physician_id"})
		return
	}
	startsAt, err := combine(req.Date, req.Time)
	if err != nil {
		a.writeError(c, err)
		return
	}
	var status Status
	if req.Status != "" {
		if status, err = ParseStatus(req.Status); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ap, err := a.BookAppointment(c.Request.Context(), BookingRequest{
		PhysicianID: physicianID,
		PatientID:   req.PatientID,
		StartsAt:    startsAt,
		Reason:      req.Reason,
		Notes:       req.Notes,
		Status:      status,
		CreatedBy:   claimsFrom(c).Subject,
	})
	if errors.Is(err, ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "slot no longer available, please choose another time"})
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ap)
}

// GET /api/appointments/:id
func (a *App) GetAppointmentHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ap, err := a.GetAppointment(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	cl := claimsFrom(c)
	if cl.Role == RolePhysician && ap.PhysicianID != cl.PhysicianID {
		a.writeError(c, ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, ap)
}

type updateAppointmentReq struct {
	PhysicianID *string `json:"physician_id"`
	PatientID   *string `json:"patient_id"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Reason      *string `json:"reason"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
	Diagnosis   *string `json:"diagnosis"`
	Treatment   *string `json:"treatment"`
}

func (r updateAppointmentReq) touchesBooking() bool {
	return r.PhysicianID != nil || r.PatientID != nil || r.Date != nil || r.Time != nil || r.Reason != nil
}

// PUT /api/appointments/:id
// Administrators and receptionists may change everything; physicians only the
// status and clinical fields of their own appointments.
func (a *App) UpdateAppointmentHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateAppointmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	cur, err := a.GetAppointment(ctx, id)
	if err != nil {
		a.writeError(c, err)
		return
	}

	cl := claimsFrom(c)
	switch {
	case cl.Role.CanManageAppointments():
	case cl.Role == RolePhysician:
		if cur.PhysicianID != cl.PhysicianID || req.touchesBooking() {
			a.writeError(c, ErrForbidden)
			return
		}
	default:
		a.writeError(c, ErrForbidden)
		return
	}

	upd := AppointmentUpdate{
		PatientID: req.PatientID,
		Reason:    req.Reason,
		Notes:     req.Notes,
		Diagnosis: req.Diagnosis,
		Treatment: req.Treatment,
	}
	if req.PhysicianID != nil {
		pid, err := uuid.Parse(*req.PhysicianID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid physician_id"})
			return
		}
		upd.PhysicianID = &pid
	}
	if req.Date != nil || req.Time != nil {
		dateStr := cur.StartsAt.Format(dateLayout)
		timeStr := schedule.TimeOfDayOf(cur.StartsAt).String()
		if req.Date != nil {
			dateStr = *req.Date
		}
		if req.Time != nil {
			timeStr = *req.Time
		}
		startsAt, err := combine(dateStr, timeStr)
		if err != nil {
			a.writeError(c, err)
			return
		}
		upd.StartsAt = &startsAt
	}
	if req.Status != nil {
		st, err := ParseStatus(*req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		upd.Status = &st
	}

	ap, err := a.UpdateAppointment(ctx, id, upd)
	if errors.Is(err, ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "slot no longer available, please choose another time"})
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ap)
}

// DELETE /api/appointments/:id
// Cancels; appointments are never removed.
func (a *App) CancelAppointmentHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := a.CancelAppointment(c.Request.Context(), id); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
