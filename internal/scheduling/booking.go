package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/medsched/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentCreated      = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed    = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled    = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted    = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow       = "APPOINTMENT_NO_SHOW"
	EventAppointmentAdminDeleted = "APPOINTMENT_ADMIN_DELETED"
	EventAppointmentReminded     = "APPOINTMENT_REMINDED"
)

// BookingEngine is the only component that mutates appointment state. Every
// lifecycle change goes through its state machine and lands one event-log row.
type BookingEngine struct {
	repo   Repository
	locker redisclient.Locker
	now    func() time.Time
	log    zerolog.Logger
}

func NewBookingEngine(repo Repository, locker redisclient.Locker, log zerolog.Logger) *BookingEngine {
	return &BookingEngine{
		repo:   repo,
		locker: locker,
		now:    time.Now,
		log:    log,
	}
}

type CreateAppointmentParams struct {
	PhysicianID     uuid.UUID
	PatientID       uuid.UUID
	SpecialtyID     uuid.UUID
	StartAt         time.Time
	DurationMinutes int
	Reason          *string
}

// CreateAppointment books an interval for a patient. The availability
// checks and the insert run inside per-physician and per-patient critical
// sections, so two concurrent bookings for overlapping intervals cannot
// both succeed whether they share the physician or only the patient: the
// loser gets ErrSlotUnavailable and should re-resolve slots.
func (e *BookingEngine) CreateAppointment(ctx context.Context, p CreateAppointmentParams) (*Appointment, error) {
	if p.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if p.StartAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled instant is required", ErrValidation)
	}
	if !p.StartAt.After(e.now()) {
		return nil, fmt.Errorf("%w: scheduled instant must be in the future", ErrValidation)
	}

	physician, err := e.repo.GetPhysicianByID(ctx, p.PhysicianID)
	if err != nil {
		return nil, err
	}
	if _, err := e.repo.GetPatientByID(ctx, p.PatientID); err != nil {
		return nil, err
	}
	if _, err := e.repo.GetSpecialtyByID(ctx, p.SpecialtyID); err != nil {
		return nil, err
	}
	if !physician.HasSpecialty(p.SpecialtyID) {
		return nil, fmt.Errorf("%w: physician does not carry the requested specialty", ErrValidation)
	}

	end := p.StartAt.Add(time.Duration(p.DurationMinutes) * time.Minute)

	var created *Appointment

	// The physician lock alone cannot stop the same patient double-booking
	// under two different physicians, so both locks are held across the
	// re-checks and the insert. Physician first, patient second, always.
	err = e.locker.WithPhysicianLock(ctx, p.PhysicianID, func(physCtx context.Context) error {
		return e.locker.WithPatientLock(physCtx, p.PatientID, func(lockCtx context.Context) error {
			return e.insertChecked(lockCtx, p, end, &created)
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Someone else is booking this physician or patient right now;
			// from the caller's point of view the slot is simply unavailable.
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	e.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("physician_id", p.PhysicianID.String()).
		Time("start_at", p.StartAt).
		Msg("appointment created")

	return created, nil
}

// insertChecked runs the availability re-checks and the insert. It must be
// called with both the physician and patient locks held.
func (e *BookingEngine) insertChecked(lockCtx context.Context, p CreateAppointmentParams, end time.Time, created **Appointment) error {
	// Re-check inside the critical section: the caller may be acting on
	// a slot list that is already stale.
	blocks, err := e.repo.ListBlocksInRange(lockCtx, p.PhysicianID, p.StartAt, end)
	if err != nil {
		return fmt.Errorf("check blocks: %w", err)
	}
	if len(blocks) > 0 {
		return ErrSlotUnavailable
	}

	busy, err := e.repo.ListActiveAppointmentsInRange(lockCtx, p.PhysicianID, p.StartAt, end)
	if err != nil {
		return fmt.Errorf("check physician appointments: %w", err)
	}
	if len(busy) > 0 {
		return ErrSlotUnavailable
	}

	patientBusy, err := e.repo.ListActiveAppointmentsForPatient(lockCtx, p.PatientID, p.StartAt, end)
	if err != nil {
		return fmt.Errorf("check patient appointments: %w", err)
	}
	if len(patientBusy) > 0 {
		return ErrSlotUnavailable
	}

	appt, err := e.repo.CreateAppointment(lockCtx, Appointment{
		ID:              uuid.New(),
		PhysicianID:     p.PhysicianID,
		PatientID:       p.PatientID,
		SpecialtyID:     p.SpecialtyID,
		StartAt:         p.StartAt,
		DurationMinutes: p.DurationMinutes,
		Status:          StatusPending,
		Reason:          p.Reason,
	})
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	*created = appt

	e.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
		"physician_id": p.PhysicianID.String(),
		"patient_id":   p.PatientID.String(),
		"start_at":     p.StartAt,
		"duration":     p.DurationMinutes,
	})

	return nil
}

// Confirm moves a pending appointment to confirmed.
func (e *BookingEngine) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	updated, err := e.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusConfirmed, nil)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another transition.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	e.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	return updated, nil
}

// Cancel moves a pending or confirmed appointment to cancelled. The row is
// kept for the audit trail; reason, when given, replaces the stored text.
func (e *BookingEngine) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*Appointment, error) {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	updated, err := e.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled, reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	payload := map[string]any{"from": string(appt.Status)}
	if reason != nil {
		payload["reason"] = *reason
	}
	e.logEvent(ctx, updated.ID, EventAppointmentCancelled, payload)
	return updated, nil
}

// MarkCompleted records that the patient attended. Only pending or
// confirmed appointments whose scheduled instant has passed qualify.
func (e *BookingEngine) MarkCompleted(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.closeOut(ctx, id, StatusCompleted, EventAppointmentCompleted)
}

// MarkNoShow records that the patient did not attend.
func (e *BookingEngine) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.closeOut(ctx, id, StatusNoShow, EventAppointmentNoShow)
}

func (e *BookingEngine) closeOut(ctx context.Context, id uuid.UUID, to AppointmentStatus, eventType string) (*Appointment, error) {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.Active() {
		return nil, ErrInvalidTransition
	}
	if !appt.StartAt.Before(e.now()) {
		return nil, ErrInvalidTransition
	}

	updated, err := e.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to, nil)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("close out appointment: %w", err)
	}

	e.logEvent(ctx, updated.ID, eventType, map[string]any{"from": string(appt.Status)})
	return updated, nil
}

// AdminDelete hard-deletes an appointment, bypassing the state machine.
// The deletion itself is recorded as a distinct event.
func (e *BookingEngine) AdminDelete(ctx context.Context, id uuid.UUID) error {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}

	if err := e.repo.DeleteAppointment(ctx, appt.ID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	e.logEvent(ctx, appt.ID, EventAppointmentAdminDeleted, map[string]any{
		"physician_id": appt.PhysicianID.String(),
		"patient_id":   appt.PatientID.String(),
		"status":       string(appt.Status),
		"start_at":     appt.StartAt,
	})

	e.log.Warn().
		Str("appointment_id", appt.ID.String()).
		Str("status", string(appt.Status)).
		Msg("appointment hard-deleted by administrative override")

	return nil
}

func (e *BookingEngine) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.repo.GetAppointmentByID(ctx, id)
}

// ListByPhysician returns a physician's appointments, optionally bounded by
// a date range.
func (e *BookingEngine) ListByPhysician(ctx context.Context, physicianID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	if _, err := e.repo.GetPhysicianByID(ctx, physicianID); err != nil {
		return nil, err
	}
	return e.repo.ListAppointmentsByPhysician(ctx, physicianID, from, to)
}

// ListByPatient returns a patient's appointments, optionally bounded by a
// date range.
func (e *BookingEngine) ListByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	if _, err := e.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return e.repo.ListAppointmentsByPatient(ctx, patientID, from, to)
}

// RemindUpcoming emits a reminder event for every confirmed appointment
// starting within half an hour either side of now+lead. Delivery is left to
// a collaborator consuming the event log.
func (e *BookingEngine) RemindUpcoming(ctx context.Context, lead time.Duration) (int, error) {
	center := e.now().Add(lead)
	from := center.Add(-30 * time.Minute)
	to := center.Add(30 * time.Minute)

	due, err := e.repo.FindConfirmedStartingBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("find upcoming appointments: %w", err)
	}

	for _, appt := range due {
		e.logEvent(ctx, appt.ID, EventAppointmentReminded, map[string]any{
			"patient_id": appt.PatientID.String(),
			"start_at":   appt.StartAt,
		})
	}

	if len(due) > 0 {
		e.log.Info().Int("count", len(due)).Msg("reminders emitted")
	}

	return len(due), nil
}

func (e *BookingEngine) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     e.now(),
	}

	if err := e.repo.InsertEvent(ctx, ev); err != nil {
		e.log.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
