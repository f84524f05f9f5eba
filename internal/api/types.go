package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/clinic-scheduling/internal/scheduling"
)

type CreateAppointmentRequest struct {
	PhysicianID     string    `json:"physician_id"`
	PatientID       string    `json:"patient_id"`
	SpecialtyID     string    `json:"specialty_id"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          *string   `json:"reason,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	PhysicianID     uuid.UUID `json:"physician_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	SpecialtyID     uuid.UUID `json:"specialty_id"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Reason          *string   `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PhysicianID:     a.PhysicianID,
		PatientID:       a.PatientID,
		SpecialtyID:     a.SpecialtyID,
		StartAt:         a.StartAt,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Reason:          a.Reason,
		CreatedAt:       a.CreatedAt,
	}
}

func toAppointmentResponses(appts []scheduling.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

// AvailabilityRequest carries a weekly template window; start and end are
// clinic-local clock times like "09:00".
type AvailabilityRequest struct {
	Weekday     int    `json:"weekday"`
	Start       string `json:"start"`
	End         string `json:"end"`
	SlotMinutes int    `json:"slot_minutes"`
}

type AvailabilityResponse struct {
	ID          uuid.UUID `json:"id"`
	PhysicianID uuid.UUID `json:"physician_id"`
	Weekday     int       `json:"weekday"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	SlotMinutes int       `json:"slot_minutes"`
}

func toAvailabilityResponse(av *scheduling.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ID:          av.ID,
		PhysicianID: av.PhysicianID,
		Weekday:     int(av.Weekday),
		Start:       formatClock(av.StartMinute),
		End:         formatClock(av.EndMinute),
		SlotMinutes: av.SlotMinutes,
	}
}

type BlockRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  *string   `json:"reason,omitempty"`
}

type BlockResponse struct {
	ID          uuid.UUID `json:"id"`
	PhysicianID uuid.UUID `json:"physician_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Reason      *string   `json:"reason,omitempty"`
}

func toBlockResponse(b *scheduling.Block) BlockResponse {
	return BlockResponse{
		ID:          b.ID,
		PhysicianID: b.PhysicianID,
		StartAt:     b.StartAt,
		EndAt:       b.EndAt,
		Reason:      b.Reason,
	}
}

type SlotResponse struct {
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

type DayScheduleResponse struct {
	Date   string         `json:"date"`
	Status string         `json:"status"`
	Slots  []SlotResponse `json:"slots"`
}

func toDayScheduleResponses(days []scheduling.DaySchedule) []DayScheduleResponse {
	out := make([]DayScheduleResponse, 0, len(days))
	for _, d := range days {
		slots := make([]SlotResponse, 0, len(d.Slots))
		for _, s := range d.Slots {
			slots = append(slots, SlotResponse{
				StartAt:         s.StartAt,
				DurationMinutes: s.DurationMinutes,
			})
		}
		out = append(out, DayScheduleResponse{
			Date:   d.Date.Format("2006-01-02"),
			Status: string(d.Status),
			Slots:  slots,
		})
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// parseClock turns "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("clock time must look like 09:00: %w", err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
