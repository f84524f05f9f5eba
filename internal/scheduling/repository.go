package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the resolver, the
// booking engine and the schedule manager. Physician, patient and specialty
// rows are read-only reference data owned elsewhere.
type Repository interface {
	GetPhysicianByID(ctx context.Context, id uuid.UUID) (*Physician, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetSpecialtyByID(ctx context.Context, id uuid.UUID) (*Specialty, error)

	// Recurring weekly templates
	CreateAvailability(ctx context.Context, av Availability) (*Availability, error)
	UpdateAvailability(ctx context.Context, av Availability) (*Availability, error)
	DeleteAvailability(ctx context.Context, physicianID, id uuid.UUID) error
	GetAvailabilityByID(ctx context.Context, id uuid.UUID) (*Availability, error)
	ListAvailability(ctx context.Context, physicianID uuid.UUID) ([]Availability, error)
	ListAvailabilityForWeekday(ctx context.Context, physicianID uuid.UUID, weekday time.Weekday) ([]Availability, error)

	// Absence blocks
	CreateBlock(ctx context.Context, b Block) (*Block, error)
	UpdateBlock(ctx context.Context, b Block) (*Block, error)
	DeleteBlock(ctx context.Context, physicianID, id uuid.UUID) error
	GetBlockByID(ctx context.Context, id uuid.UUID) (*Block, error)
	ListBlocks(ctx context.Context, physicianID uuid.UUID) ([]Block, error)
	ListBlocksInRange(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Block, error)

	// Appointments
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus is a compare-and-swap: the row moves from
	// `from` to `to` only if it is still in `from`, otherwise
	// ErrAppointmentNotFound is returned. A non-nil reason replaces the
	// stored reason text.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, reason *string) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	// Pending/confirmed appointments intersecting [from,to), for conflict checks.
	ListActiveAppointmentsInRange(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListActiveAppointmentsForPatient(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListAppointmentsByPhysician(ctx context.Context, physicianID uuid.UUID, from, to *time.Time) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time) ([]Appointment, error)
	// Confirmed appointments whose scheduled instant falls in [from,to),
	// used by the reminder worker.
	FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
