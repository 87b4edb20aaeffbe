package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-scheduler/internal/schedule"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSlotUnavailable   = errors.New("slot not available")
	ErrPastDate          = errors.New("cannot book appointments on past dates")
	ErrInactivePhysician = errors.New("physician is not accepting appointments")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, schedule.ErrInvalidConfig),
		errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrPastDate),
		errors.Is(err, ErrInactivePhysician),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError replies with the status mapped from err. Internal errors are
// logged and hidden from the client.
func (a *App) writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		a.Log.Error("request failed", zapRequest(c, err)...)
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
