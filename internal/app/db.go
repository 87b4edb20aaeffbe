package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinic-scheduler/internal/schedule"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	// activeSlotIndex is the partial unique index over (physician_id, starts_at)
	// restricted to active statuses.
	activeSlotIndex = "appointments_active_slot"
)

// PGStore implements Store on Postgres.
type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{DB: pool}
}

func mapPgError(err error, what string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		if pgErr.ConstraintName == activeSlotIndex {
			return fmt.Errorf("%w: slot already booked", ErrConflict)
		}
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case foreignKeyViolation:
		return fmt.Errorf("%w: %s references a missing record (%s)", ErrNotFound, what, pgErr.ConstraintName)
	}
	return err
}

const physicianColumns = `id, name, specialty, registration_number, active,
	consultation_duration,
	morning_enabled, morning_start::text, morning_end::text,
	afternoon_enabled, afternoon_start::text, afternoon_end::text,
	working_days, created_at, updated_at`

func scanPhysician(row pgx.Row) (*Physician, error) {
	var (
		p                  Physician
		ms, me, as, ae, wd string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.RegistrationNumber, &p.Active,
		&p.Schedule.ConsultationDuration,
		&p.Schedule.MorningEnabled, &ms, &me,
		&p.Schedule.AfternoonEnabled, &as, &ae,
		&wd, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	// working days are parsed once here, not on every slot computation
	if p.Schedule.WorkingDays, err = schedule.ParseWorkingDays(wd); err != nil {
		return nil, fmt.Errorf("physician %s: %w", p.ID, err)
	}
	for _, f := range []struct {
		dst *schedule.TimeOfDay
		src string
	}{
		{&p.Schedule.MorningStart, ms}, {&p.Schedule.MorningEnd, me},
		{&p.Schedule.AfternoonStart, as}, {&p.Schedule.AfternoonEnd, ae},
	} {
		if *f.dst, err = schedule.ParseTimeOfDay(f.src); err != nil {
			return nil, fmt.Errorf("physician %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (s *PGStore) CreatePhysician(ctx context.Context, p *Physician) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	c := p.Schedule
	q := `INSERT INTO physicians
	      (id, name, specialty, registration_number, active, consultation_duration,
	       morning_enabled, morning_start, morning_end,
	       afternoon_enabled, afternoon_start, afternoon_end,
	       working_days, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8::time,$9::time,$10,$11::time,$12::time,$13,$14,$14)`
	_, err := s.DB.Exec(ctx, q,
		p.ID, p.Name, p.Specialty, p.RegistrationNumber, p.Active, c.ConsultationDuration,
		c.MorningEnabled, c.MorningStart.String(), c.MorningEnd.String(),
		c.AfternoonEnabled, c.AfternoonStart.String(), c.AfternoonEnd.String(),
		c.WorkingDays.String(), now)
	if err != nil {
		return fmt.Errorf("create physician: %w", mapPgError(err, "registration number"))
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (s *PGStore) GetPhysician(ctx context.Context, id uuid.UUID) (*Physician, error) {
	q := `SELECT ` + physicianColumns + ` FROM physicians WHERE id=$1`
	p, err := scanPhysician(s.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("physician %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get physician: %w", err)
	}
	return p, nil
}

func (s *PGStore) ListPhysicians(ctx context.Context, activeOnly bool) ([]Physician, error) {
	q := `SELECT ` + physicianColumns + ` FROM physicians
	      WHERE (NOT $1::boolean OR active) ORDER BY name`
	rows, err := s.DB.Query(ctx, q, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list physicians: %w", err)
	}
	defer rows.Close()

	out := []Physician{}
	for rows.Next() {
		p, err := scanPhysician(rows)
		if err != nil {
			return nil, fmt.Errorf("scan physician: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateSchedule(ctx context.Context, id uuid.UUID, c schedule.Config, active bool) (*Physician, error) {
	q := `UPDATE physicians
	      SET consultation_duration=$1,
	          morning_enabled=$2, morning_start=$3::time, morning_end=$4::time,
	          afternoon_enabled=$5, afternoon_start=$6::time, afternoon_end=$7::time,
	          working_days=$8, active=$9, updated_at=$10
	      WHERE id=$11
	      RETURNING ` + physicianColumns
	p, err := scanPhysician(s.DB.QueryRow(ctx, q,
		c.ConsultationDuration,
		c.MorningEnabled, c.MorningStart.String(), c.MorningEnd.String(),
		c.AfternoonEnabled, c.AfternoonStart.String(), c.AfternoonEnd.String(),
		c.WorkingDays.String(), active, time.Now().UTC(), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("physician %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return p, nil
}

const appointmentColumns = `id, physician_id, patient_id, starts_at, reason, status,
	notes, diagnosis, treatment, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var ap Appointment
	err := row.Scan(&ap.ID, &ap.PhysicianID, &ap.PatientID, &ap.StartsAt, &ap.Reason, &ap.Status,
		&ap.Notes, &ap.Diagnosis, &ap.Treatment, &ap.CreatedBy, &ap.CreatedAt, &ap.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ap, nil
}

func (s *PGStore) CreateAppointment(ctx context.Context, ap *Appointment) error {
	if ap.ID == uuid.Nil {
		ap.ID = uuid.New()
	}
	now := time.Now().UTC()
	q := `INSERT INTO appointments
	      (id, physician_id, patient_id, starts_at, reason, status, notes, diagnosis, treatment,
	       created_by, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`
	_, err := s.DB.Exec(ctx, q,
		ap.ID, ap.PhysicianID, ap.PatientID, ap.StartsAt, ap.Reason, ap.Status,
		ap.Notes, ap.Diagnosis, ap.Treatment, ap.CreatedBy, now)
	if err != nil {
		return fmt.Errorf("create appointment: %w", mapPgError(err, "appointment"))
	}
	ap.CreatedAt, ap.UpdatedAt = now, now
	return nil
}

func (s *PGStore) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1`
	ap, err := scanAppointment(s.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return ap, nil
}

func (s *PGStore) UpdateAppointment(ctx context.Context, ap *Appointment) error {
	q := `UPDATE appointments
	      SET physician_id=$1, patient_id=$2, starts_at=$3, reason=$4, status=$5,
	          notes=$6, diagnosis=$7, treatment=$8, updated_at=$9
	      WHERE id=$10
	      RETURNING created_at, updated_at`
	err := s.DB.QueryRow(ctx, q,
		ap.PhysicianID, ap.PatientID, ap.StartsAt, ap.Reason, ap.Status,
		ap.Notes, ap.Diagnosis, ap.Treatment, time.Now().UTC(), ap.ID,
	).Scan(&ap.CreatedAt, &ap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("appointment %s: %w", ap.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", mapPgError(err, "appointment"))
	}
	return nil
}

func (s *PGStore) CancelAppointment(ctx context.Context, id uuid.UUID) error {
	var current Status
	err := s.DB.QueryRow(ctx, `SELECT status FROM appointments WHERE id=$1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if current == StatusCancelled {
		return fmt.Errorf("%w: appointment already cancelled", ErrConflict)
	}

	res, err := s.DB.Exec(ctx,
		`UPDATE appointments SET status=$1, updated_at=$2 WHERE id=$3 AND status <> $1`,
		StatusCancelled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	// lost a race with another cancel
	if res.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment already cancelled", ErrConflict)
	}
	return nil
}

func (s *PGStore) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE true`
	var args []any
	if f.PhysicianID != uuid.Nil {
		args = append(args, f.PhysicianID)
		q += fmt.Sprintf(" AND physician_id=$%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if !f.Date.IsZero() {
		day := startOfDay(f.Date)
		args = append(args, day, day.AddDate(0, 0, 1))
		q += fmt.Sprintf(" AND starts_at >= $%d AND starts_at < $%d", len(args)-1, len(args))
	}
	q += " ORDER BY starts_at DESC"
	return s.queryAppointments(ctx, q, args...)
}

func (s *PGStore) FindActiveAppointments(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments
	      WHERE physician_id=$1 AND starts_at BETWEEN $2 AND $3
	        AND status IN ('pending','confirmed','in_progress')`
	return s.queryAppointments(ctx, q, physicianID, from, to)
}

func (s *PGStore) queryAppointments(ctx context.Context, q string, args ...any) ([]Appointment, error) {
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		ap, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, *ap)
	}
	return out, rows.Err()
}
