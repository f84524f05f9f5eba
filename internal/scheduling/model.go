package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the appointment occupies its time interval
// for overlap purposes.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// DayStatus classifies a single date of a resolved schedule so that the
// caller can tell a blocked day from a day with no template from a fully
// booked day.
type DayStatus string

const (
	DayBlocked       DayStatus = "BLOCKED"
	DayEmptyTemplate DayStatus = "EMPTY_TEMPLATE"
	DayHasSlots      DayStatus = "HAS_SLOTS"
	DayFullyBooked   DayStatus = "FULLY_BOOKED"
)

type Specialty struct {
	ID   uuid.UUID
	Name string
}

type Physician struct {
	ID           uuid.UUID
	Name         string
	SpecialtyIDs []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSpecialty reports whether the physician carries the given specialty.
func (p *Physician) HasSpecialty(id uuid.UUID) bool {
	for _, s := range p.SpecialtyIDs {
		if s == id {
			return true
		}
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Availability is one recurring weekly window during which a physician
// accepts bookings. Start and end are minutes since midnight in the clinic
// timezone; SlotMinutes is the default slot length cut from the window.
type Availability struct {
	ID          uuid.UUID
	PhysicianID uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	SlotMinutes int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Block is an explicit absence window (vacation, conference, admin time).
// Blocks for the same physician may stack; any instant inside any block is
// blocked.
type Block struct {
	ID          uuid.UUID
	PhysicianID uuid.UUID
	StartAt     time.Time
	EndAt       time.Time
	Reason      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Appointment struct {
	ID              uuid.UUID
	PhysicianID     uuid.UUID
	PatientID       uuid.UUID
	SpecialtyID     uuid.UUID
	StartAt         time.Time
	DurationMinutes int
	Status          AppointmentStatus
	Reason          *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndAt is the instant the appointment finishes. An appointment occupies
// exactly its own duration, not the slot-template duration.
func (a *Appointment) EndAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Slot is a derived bookable interval. Slots are never persisted; they
// exist only as resolver output.
type Slot struct {
	PhysicianID     uuid.UUID
	StartAt         time.Time
	DurationMinutes int
}

// DaySchedule is the resolver output for one calendar date.
type DaySchedule struct {
	Date   time.Time // midnight in the clinic timezone
	Status DayStatus
	Slots  []Slot
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// intervalsOverlap reports whether [aStart,aEnd) intersects [bStart,bEnd).
func intervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// minutesOverlap reports whether the half-open minute ranges intersect.
func minutesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
