package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SlotResolver merges a physician's weekly templates, absence blocks and
// booked appointments into bookable slots. It is a pure read over current
// store state: no locking, no hidden cursor, identical output for identical
// state.
type SlotResolver struct {
	repo Repository
	loc  *time.Location
}

func NewSlotResolver(repo Repository, loc *time.Location) *SlotResolver {
	if loc == nil {
		loc = time.UTC
	}
	return &SlotResolver{repo: repo, loc: loc}
}

// ResolveSlots returns one DaySchedule per calendar date in [from,to]
// (dates taken in the clinic timezone, both ends inclusive). Slots are
// emitted in ascending chronological order. overrideMinutes replaces the
// per-template slot duration when positive; a trailing window remainder is
// dropped, never padded.
//
// Past dates are not rejected here; whether a slot is still bookable is
// decided by the booking engine at commit time.
func (r *SlotResolver) ResolveSlots(ctx context.Context, physicianID uuid.UUID, from, to time.Time, overrideMinutes int) ([]DaySchedule, error) {
	if overrideMinutes < 0 {
		return nil, fmt.Errorf("%w: slot duration override must be positive", ErrValidation)
	}
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("%w: date range is required", ErrValidation)
	}

	startDate := r.dateOf(from)
	endDate := r.dateOf(to)
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("%w: range start is after range end", ErrValidation)
	}

	if _, err := r.repo.GetPhysicianByID(ctx, physicianID); err != nil {
		return nil, err
	}

	rangeEnd := endDate.AddDate(0, 0, 1)

	blocks, err := r.repo.ListBlocksInRange(ctx, physicianID, startDate, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	booked, err := r.repo.ListActiveAppointmentsInRange(ctx, physicianID, startDate, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	var days []DaySchedule
	for day := startDate; day.Before(rangeEnd); day = day.AddDate(0, 0, 1) {
		sched, err := r.resolveDay(ctx, physicianID, day, overrideMinutes, blocks, booked)
		if err != nil {
			return nil, err
		}
		days = append(days, sched)
	}

	return days, nil
}

func (r *SlotResolver) resolveDay(ctx context.Context, physicianID uuid.UUID, day time.Time, overrideMinutes int, blocks []Block, booked []Appointment) (DaySchedule, error) {
	templates, err := r.repo.ListAvailabilityForWeekday(ctx, physicianID, day.Weekday())
	if err != nil {
		return DaySchedule{}, fmt.Errorf("list availability: %w", err)
	}
	if len(templates) == 0 {
		return DaySchedule{Date: day, Status: DayEmptyTemplate}, nil
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].StartMinute < templates[j].StartMinute
	})

	allWindowsBlocked := true
	var slots []Slot

	for _, tpl := range templates {
		winStart := r.instantAt(day, tpl.StartMinute)
		winEnd := r.instantAt(day, tpl.EndMinute)

		if !coveredByBlocks(winStart, winEnd, blocks) {
			allWindowsBlocked = false
		}

		step := tpl.SlotMinutes
		if overrideMinutes > 0 {
			step = overrideMinutes
		}
		stepDur := time.Duration(step) * time.Minute

		// Step in absolute time from the window start so a DST transition
		// inside the window cannot make slots drift.
		for t := winStart; !t.Add(stepDur).After(winEnd); t = t.Add(stepDur) {
			end := t.Add(stepDur)
			if intersectsAnyBlock(t, end, blocks) {
				continue
			}
			if intersectsAnyAppointment(t, end, booked) {
				continue
			}
			slots = append(slots, Slot{
				PhysicianID:     physicianID,
				StartAt:         t,
				DurationMinutes: step,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartAt.Before(slots[j].StartAt)
	})

	status := DayFullyBooked
	if allWindowsBlocked {
		status = DayBlocked
	} else if len(slots) > 0 {
		status = DayHasSlots
	}

	return DaySchedule{Date: day, Status: status, Slots: slots}, nil
}

// dateOf truncates an instant to midnight of its calendar date in the
// clinic timezone.
func (r *SlotResolver) dateOf(t time.Time) time.Time {
	local := t.In(r.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
}

// instantAt resolves a minutes-since-midnight template offset to an
// absolute instant on the given date.
func (r *SlotResolver) instantAt(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, r.loc)
}

func intersectsAnyBlock(start, end time.Time, blocks []Block) bool {
	for _, b := range blocks {
		if intervalsOverlap(start, end, b.StartAt, b.EndAt) {
			return true
		}
	}
	return false
}

func intersectsAnyAppointment(start, end time.Time, appts []Appointment) bool {
	for _, a := range appts {
		if !a.Status.Active() {
			continue
		}
		if intervalsOverlap(start, end, a.StartAt, a.EndAt()) {
			return true
		}
	}
	return false
}

// coveredByBlocks reports whether the union of the blocks covers the whole
// window [start,end). Blocks may stack, so coverage is a sweep over the
// sorted intersecting blocks.
func coveredByBlocks(start, end time.Time, blocks []Block) bool {
	var hits []Block
	for _, b := range blocks {
		if intervalsOverlap(start, end, b.StartAt, b.EndAt) {
			hits = append(hits, b)
		}
	}
	if len(hits) == 0 {
		return false
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].StartAt.Before(hits[j].StartAt)
	})

	cursor := start
	for _, b := range hits {
		if b.StartAt.After(cursor) {
			return false
		}
		if b.EndAt.After(cursor) {
			cursor = b.EndAt
		}
		if !cursor.Before(end) {
			return true
		}
	}
	return !cursor.Before(end)
}
