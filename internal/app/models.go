package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"clinic-scheduler/internal/schedule"
)

type Physician struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Specialty          string          `json:"specialty"`
	RegistrationNumber string          `json:"registration_number"`
	Active             bool            `json:"active"`
	Schedule           schedule.Config `json:"schedule"`
	CreatedAt          time.Time       `json:"created_at,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at,omitempty"`
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ActiveStatuses occupy a slot; completed and cancelled appointments free it.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusInProgress}

func (s Status) Active() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("invalid appointment status: %s", s)
}

// Appointment times are clinic wall-clock times carried in UTC, mirroring the
// timestamp-without-time-zone column they are stored in.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	PhysicianID uuid.UUID `json:"physician_id"`
	PatientID   string    `json:"patient_id"`
	StartsAt    time.Time `json:"starts_at"`
	Reason      string    `json:"reason"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	Diagnosis   string    `json:"diagnosis,omitempty"`
	Treatment   string    `json:"treatment,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// AppointmentFilter narrows ListAppointments. Zero values mean "any".
type AppointmentFilter struct {
	PhysicianID uuid.UUID
	Status      Status
	Date        time.Time
}
