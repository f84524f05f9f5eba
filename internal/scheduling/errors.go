package scheduling

import "errors"

var (
	// ErrValidation covers malformed input: start >= end, non-positive
	// durations, unknown weekdays. Callers fix their input, they do not retry.
	ErrValidation = errors.New("invalid input")

	// ErrOverlappingAvailability is a write-time conflict between recurring
	// template windows for the same physician and weekday.
	ErrOverlappingAvailability = errors.New("availability window overlaps an existing one")

	// ErrSlotUnavailable means the requested interval is blocked, already
	// occupied, or the booking race was lost between resolution and commit.
	// An expected user-facing condition, not a system fault.
	ErrSlotUnavailable = errors.New("slot is unavailable")

	// ErrInvalidTransition means the appointment state machine was violated.
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	ErrPhysicianNotFound    = errors.New("physician not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrSpecialtyNotFound    = errors.New("specialty not found")
	ErrAvailabilityNotFound = errors.New("availability not found")
	ErrBlockNotFound        = errors.New("block not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)
