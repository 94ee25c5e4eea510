package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanScheduleDay(row pgx.Row) (*ScheduleDay, error) {
	var d ScheduleDay
	var weekday, start, end int
	var breakStart, breakEnd *int

	err := row.Scan(
		&weekday,
		&start,
		&end,
		&breakStart,
		&breakEnd,
		&d.Active,
	)
	if err != nil {
		return nil, err
	}

	d.Weekday = time.Weekday(weekday)
	d.Start = TimeOfDay(start)
	d.End = TimeOfDay(end)
	if breakStart != nil {
		bs := TimeOfDay(*breakStart)
		d.BreakStart = &bs
	}
	if breakEnd != nil {
		be := TimeOfDay(*breakEnd)
		d.BreakEnd = &be
	}
	return &d, nil
}

func scanVacation(row pgx.Row) (*Vacation, error) {
	var v Vacation

	err := row.Scan(
		&v.ID,
		&v.StartDate,
		&v.EndDate,
		&v.Reason,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVacationNotFound
		}
		return nil, err
	}

	return &v, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var slotTime, endTime int
	var cancelledBy *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.Date,
		&slotTime,
		&endTime,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.AdminNotes,
		&a.CancellationReason,
		&cancelledBy,
		&a.ConfirmedAt,
		&a.CancelledAt,
		&a.CompletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(a.Date)
	a.SlotTime = TimeOfDay(slotTime)
	a.EndTime = TimeOfDay(endTime)
	if cancelledBy != nil {
		a.CancelledBy = CancelledBy(*cancelledBy)
	}
	return &a, nil
}

const appointmentColumns = `id, patient_id, date, slot_time, end_time, status, reason, notes,
		admin_notes, cancellation_reason, cancelled_by,
		confirmed_at, cancelled_at, completed_at, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetScheduleDay(ctx context.Context, weekday time.Weekday) (*ScheduleDay, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT weekday, start_minutes, end_minutes, break_start_minutes, break_end_minutes, active
		FROM schedule_days
		WHERE weekday = $1
	`, int(weekday))

	day, err := scanScheduleDay(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no entry means closed, not an error
		}
		return nil, err
	}
	return day, nil
}

func (r *PgRepository) ListScheduleDays(ctx context.Context) ([]ScheduleDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minutes, end_minutes, break_start_minutes, break_end_minutes, active
		FROM schedule_days
		ORDER BY weekday
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleDay
	for rows.Next() {
		d, err := scanScheduleDay(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) ReplaceSchedule(ctx context.Context, days []ScheduleDay) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_days`); err != nil {
		return err
	}

	for _, d := range days {
		var breakStart, breakEnd *int
		if d.BreakStart != nil {
			bs := int(*d.BreakStart)
			breakStart = &bs
		}
		if d.BreakEnd != nil {
			be := int(*d.BreakEnd)
			breakEnd = &be
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_days (weekday, start_minutes, end_minutes, break_start_minutes, break_end_minutes, active)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, int(d.Weekday), int(d.Start), int(d.End), breakStart, breakEnd, d.Active)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) ListVacations(ctx context.Context) ([]Vacation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_date, end_date, reason, created_at
		FROM vacations
		ORDER BY start_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Vacation
	for rows.Next() {
		v, err := scanVacation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

func (r *PgRepository) VacationCovering(ctx context.Context, date time.Time) (*Vacation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, start_date, end_date, reason, created_at
		FROM vacations
		WHERE start_date <= $1 AND end_date >= $1
		LIMIT 1
	`, DateOf(date))

	v, err := scanVacation(row)
	if err != nil {
		if errors.Is(err, ErrVacationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (r *PgRepository) CreateVacation(ctx context.Context, v Vacation) (*Vacation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO vacations (id, start_date, end_date, reason, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, start_date, end_date, reason, created_at
	`, uuid.New(), v.StartDate, v.EndDate, v.Reason)
	return scanVacation(row)
}

func (r *PgRepository) DeleteVacation(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vacations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVacationNotFound
	}
	return nil
}

func (r *PgRepository) GetClinicSettings(ctx context.Context) (ClinicSettings, error) {
	var s ClinicSettings
	err := r.pool.QueryRow(ctx, `
		SELECT slot_duration_minutes, max_patients_per_slot, advance_booking_days, cancellation_hours
		FROM clinic_settings
		WHERE id = 1
	`).Scan(&s.SlotDurationMinutes, &s.MaxPatientsPerSlot, &s.AdvanceBookingDays, &s.CancellationHours)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClinicSettings{}, ErrSettingsNotFound
		}
		return ClinicSettings{}, err
	}
	return s, nil
}

func (r *PgRepository) UpdateClinicSettings(ctx context.Context, s ClinicSettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinic_settings (id, slot_duration_minutes, max_patients_per_slot, advance_booking_days, cancellation_hours)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET slot_duration_minutes = EXCLUDED.slot_duration_minutes,
		    max_patients_per_slot = EXCLUDED.max_patients_per_slot,
		    advance_booking_days = EXCLUDED.advance_booking_days,
		    cancellation_hours = EXCLUDED.cancellation_hours
	`, s.SlotDurationMinutes, s.MaxPatientsPerSlot, s.AdvanceBookingDays, s.CancellationHours)
	return err
}

func (r *PgRepository) CountActiveBySlot(ctx context.Context, date time.Time) (map[TimeOfDay]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_time, count(*)
		FROM appointments
		WHERE date = $1 AND status <> 'cancelled'
		GROUP BY slot_time
	`, DateOf(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[TimeOfDay]int)
	for rows.Next() {
		var slot, n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		counts[TimeOfDay(slot)] = n
	}
	return counts, rows.Err()
}

// CreateAppointment serializes inserts per (date, slot_time) with a
// transaction-scoped advisory lock, then rechecks capacity and the
// same-patient duplicate guard before inserting. Together with the Redis
// slot lock at the service layer this keeps concurrently-committed active
// appointments within max_patients_per_slot.
func (r *PgRepository) CreateAppointment(ctx context.Context, p CreateParams) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	slotKey := fmt.Sprintf("%s:%s", p.Date.Format("2006-01-02"), p.SlotTime)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotKey); err != nil {
		return nil, fmt.Errorf("acquire slot advisory lock: %w", err)
	}

	var total, mine int
	err = tx.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE patient_id = $3)
		FROM appointments
		WHERE date = $1 AND slot_time = $2 AND status <> 'cancelled'
	`, p.Date, int(p.SlotTime), p.PatientID).Scan(&total, &mine)
	if err != nil {
		return nil, fmt.Errorf("recheck slot capacity: %w", err)
	}
	if mine > 0 {
		return nil, ErrDuplicateBooking
	}
	if total >= p.MaxPatientsPerSlot {
		return nil, ErrSlotFull
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, date, slot_time, end_time, status, reason, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, now(), now())
		RETURNING `+appointmentColumns+`
	`, uuid.New(), p.PatientID, p.Date, int(p.SlotTime), int(p.EndTime), p.Reason, p.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*Appointment, error) {
	var row pgx.Row

	switch change.To {
	case StatusConfirmed:
		row = r.pool.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2, confirmed_at = $3, updated_at = now()
			WHERE id = $1 AND status = $4
			RETURNING `+appointmentColumns, id, change.To, change.At, change.From)
	case StatusCompleted:
		row = r.pool.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2, completed_at = $3, admin_notes = COALESCE(NULLIF($5, ''), admin_notes), updated_at = now()
			WHERE id = $1 AND status = $4
			RETURNING `+appointmentColumns, id, change.To, change.At, change.From, change.AdminNotes)
	case StatusCancelled:
		row = r.pool.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2, cancelled_at = $3, cancelled_by = $5, cancellation_reason = $6, updated_at = now()
			WHERE id = $1 AND status = $4
			RETURNING `+appointmentColumns, id, change.To, change.At, change.From, string(change.CancelledBy), change.CancellationReason)
	case StatusNoShow:
		row = r.pool.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2, updated_at = $3
			WHERE id = $1 AND status = $4
			RETURNING `+appointmentColumns, id, change.To, change.At, change.From)
	default:
		return nil, &InvalidTransitionError{From: change.From, Attempted: change.To}
	}

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []any{}

	if f.Date != nil {
		args = append(args, DateOf(*f.Date))
		query += fmt.Sprintf(" AND date = $%d", len(args))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY date, slot_time LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) FindElapsedConfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	// dates and slot times carry no timezone; the cutoff arrives as clinic
	// wall time and is compared as a naive timestamp.
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND date::timestamp + make_interval(mins => slot_time) <= $1::timestamp
	`, cutoff.Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
