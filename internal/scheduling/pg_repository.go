package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAvailability(row pgx.Row) (*Availability, error) {
	var av Availability
	var weekday int

	err := row.Scan(
		&av.ID,
		&av.PhysicianID,
		&weekday,
		&av.StartMinute,
		&av.EndMinute,
		&av.SlotMinutes,
		&av.CreatedAt,
		&av.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}

	av.Weekday = time.Weekday(weekday)
	return &av, nil
}

func scanBlock(row pgx.Row) (*Block, error) {
	var b Block
	var reason *string

	err := row.Scan(
		&b.ID,
		&b.PhysicianID,
		&b.StartAt,
		&b.EndAt,
		&reason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	b.Reason = reason
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var reason *string

	err := row.Scan(
		&a.ID,
		&a.PhysicianID,
		&a.PatientID,
		&a.SpecialtyID,
		&a.StartAt,
		&a.DurationMinutes,
		&a.Status,
		&reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Reason = reason
	return &a, nil
}

const appointmentColumns = `id, physician_id, patient_id, specialty_id, start_at, duration_minutes, status, reason, created_at, updated_at`

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Directory

func (r *PgRepository) GetPhysicianByID(ctx context.Context, id uuid.UUID) (*Physician, error) {
	var p Physician
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM physicians
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPhysicianNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT specialty_id
		FROM physician_specialties
		WHERE physician_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sid uuid.UUID
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		p.SpecialtyIDs = append(p.SpecialtyIDs, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetSpecialtyByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	var sp Specialty
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM specialties
		WHERE id = $1
	`, id).Scan(&sp.ID, &sp.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpecialtyNotFound
		}
		return nil, err
	}
	return &sp, nil
}

// Availability

func (r *PgRepository) CreateAvailability(ctx context.Context, av Availability) (*Availability, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availabilities (id, physician_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, physician_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at
	`, av.ID, av.PhysicianID, int(av.Weekday), av.StartMinute, av.EndMinute, av.SlotMinutes)
	return scanAvailability(row)
}

func (r *PgRepository) UpdateAvailability(ctx context.Context, av Availability) (*Availability, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availabilities
		SET weekday = $2,
		    start_minute = $3,
		    end_minute = $4,
		    slot_minutes = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, physician_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at
	`, av.ID, int(av.Weekday), av.StartMinute, av.EndMinute, av.SlotMinutes)
	return scanAvailability(row)
}

func (r *PgRepository) DeleteAvailability(ctx context.Context, physicianID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availabilities
		WHERE id = $1 AND physician_id = $2
	`, id, physicianID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

func (r *PgRepository) GetAvailabilityByID(ctx context.Context, id uuid.UUID) (*Availability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, physician_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at
		FROM availabilities
		WHERE id = $1
	`, id)
	return scanAvailability(row)
}

func (r *PgRepository) ListAvailability(ctx context.Context, physicianID uuid.UUID) ([]Availability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, physician_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at
		FROM availabilities
		WHERE physician_id = $1
		ORDER BY weekday, start_minute
	`, physicianID)
	if err != nil {
		return nil, err
	}
	return collectAvailabilities(rows)
}

func (r *PgRepository) ListAvailabilityForWeekday(ctx context.Context, physicianID uuid.UUID, weekday time.Weekday) ([]Availability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, physician_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at
		FROM availabilities
		WHERE physician_id = $1 AND weekday = $2
		ORDER BY start_minute
	`, physicianID, int(weekday))
	if err != nil {
		return nil, err
	}
	return collectAvailabilities(rows)
}

func collectAvailabilities(rows pgx.Rows) ([]Availability, error) {
	defer rows.Close()

	var result []Availability
	for rows.Next() {
		av, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *av)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Blocks

func (r *PgRepository) CreateBlock(ctx context.Context, b Block) (*Block, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocks (id, physician_id, start_at, end_at, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, physician_id, start_at, end_at, reason, created_at, updated_at
	`, b.ID, b.PhysicianID, b.StartAt, b.EndAt, b.Reason)
	return scanBlock(row)
}

func (r *PgRepository) UpdateBlock(ctx context.Context, b Block) (*Block, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE blocks
		SET start_at = $2,
		    end_at = $3,
		    reason = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, physician_id, start_at, end_at, reason, created_at, updated_at
	`, b.ID, b.StartAt, b.EndAt, b.Reason)
	return scanBlock(row)
}

func (r *PgRepository) DeleteBlock(ctx context.Context, physicianID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocks
		WHERE id = $1 AND physician_id = $2
	`, id, physicianID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) GetBlockByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, physician_id, start_at, end_at, reason, created_at, updated_at
		FROM blocks
		WHERE id = $1
	`, id)
	return scanBlock(row)
}

func (r *PgRepository) ListBlocks(ctx context.Context, physicianID uuid.UUID) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, physician_id, start_at, end_at, reason, created_at, updated_at
		FROM blocks
		WHERE physician_id = $1
		ORDER BY start_at
	`, physicianID)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func (r *PgRepository) ListBlocksInRange(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, physician_id, start_at, end_at, reason, created_at, updated_at
		FROM blocks
		WHERE physician_id = $1
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at
	`, physicianID, from, to)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func collectBlocks(rows pgx.Rows) ([]Block, error) {
	defer rows.Close()

	var result []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, physician_id, patient_id, specialty_id, start_at, duration_minutes, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.PhysicianID, appt.PatientID, appt.SpecialtyID, appt.StartAt, appt.DurationMinutes, appt.Status, appt.Reason)

	created, err := scanAppointment(row)
	if err != nil {
		// The overlap exclusion constraint is the storage backstop when a
		// lock expires mid-commit; its violation is a lost race, not a
		// server fault.
		if isExclusionViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	return created, nil
}

// Postgres error code for exclusion_violation, raised by the
// appointments_no_physician_overlap constraint.
const pgExclusionViolation = "23P01"

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, reason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    reason = COALESCE($4, reason),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, reason)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListActiveAppointmentsInRange(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE physician_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_minutes) > $2
		ORDER BY start_at
	`, physicianID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveAppointmentsForPatient(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_minutes) > $2
		ORDER BY start_at
	`, patientID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByPhysician(ctx context.Context, physicianID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE physician_id = $1
		  AND ($2::timestamptz IS NULL OR start_at >= $2)
		  AND ($3::timestamptz IS NULL OR start_at < $3)
		ORDER BY start_at
	`, physicianID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND ($2::timestamptz IS NULL OR start_at >= $2)
		  AND ($3::timestamptz IS NULL OR start_at < $3)
		ORDER BY start_at
	`, patientID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND start_at >= $1
		  AND start_at < $2
		ORDER BY start_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
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
