package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendarConfig builds the OAuth2 config for exporting appointments
// to Google Calendar. It returns nil when any credential is missing.
func GoogleCalendarConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}

// GET /api/calendar/auth
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	state := fmt.Sprintf("%s_%d", claimsFrom(c).Subject, time.Now().Unix())
	c.JSON(http.StatusOK, gin.H{
		"auth_url": a.Calendar.AuthCodeURL(state, oauth2.AccessTypeOffline),
		"state":    state,
	})
}

// GET /oauth2callback
// The token is handed back to the client, which sends it in X-Google-Token
// when exporting.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}

	token, err := a.Calendar.Exchange(c.Request.Context(), code)
	if err != nil {
		a.Log.Warn("oauth2 code exchange failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state": c.Query("state"),
		"token": string(tokenJSON),
	})
}

// appointmentEvent renders the appointment as a calendar event in the clinic
// time zone, lasting one consultation.
func appointmentEvent(ap *Appointment, p *Physician, loc *time.Location) *calendar.Event {
	start := time.Date(ap.StartsAt.Year(), ap.StartsAt.Month(), ap.StartsAt.Day(),
		ap.StartsAt.Hour(), ap.StartsAt.Minute(), ap.StartsAt.Second(), 0, loc)
	end := start.Add(time.Duration(p.Schedule.ConsultationDuration) * time.Minute)

	return &calendar.Event{
		Summary:     fmt.Sprintf("Consultation with %s", p.Name),
		Description: fmt.Sprintf("Patient: %s\nReason: %s\nStatus: %s", ap.PatientID, ap.Reason, ap.Status),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()},
		Status:      "confirmed",
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{"appointment_id": ap.ID.String()},
		},
	}
}

func (a *App) calendarService(ctx context.Context, tokenStr string) (*calendar.Service, error) {
	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenStr), &token); err != nil {
		return nil, fmt.Errorf("%w: invalid token format", ErrInvalidInput)
	}
	client := a.Calendar.Client(ctx, &token)
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

// POST /api/appointments/:id/calendar?calendar_id=primary
func (a *App) ExportToCalendarHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tokenStr := c.GetHeader("X-Google-Token")
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Google token required in X-Google-Token header"})
		return
	}
	ctx := c.Request.Context()

	ap, err := a.GetAppointment(ctx, id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if cl := claimsFrom(c); cl.Role == RolePhysician && ap.PhysicianID != cl.PhysicianID {
		a.writeError(c, ErrForbidden)
		return
	}
	p, err := a.GetPhysician(ctx, ap.PhysicianID)
	if err != nil {
		a.writeError(c, err)
		return
	}

	srv, err := a.calendarService(ctx, tokenStr)
	if err != nil {
		a.writeError(c, err)
		return
	}
	ev, err := srv.Events.Insert(c.DefaultQuery("calendar_id", "primary"), appointmentEvent(ap, p, a.Location)).
		Context(ctx).Do()
	if err != nil {
		a.Log.Warn("calendar export failed", zap.String("appointment_id", id.String()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create calendar event"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event_id": ev.Id, "html_link": ev.HtmlLink})
}
