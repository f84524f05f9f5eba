package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nextWeekday returns the first instant at midnight UTC on or after base
// that falls on the given weekday.
func nextWeekday(base time.Time, weekday time.Weekday) time.Time {
	d := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

type testFixture struct {
	repo        *MemoryRepository
	resolver    *SlotResolver
	physicianID uuid.UUID
	patientID   uuid.UUID
	specialtyID uuid.UUID
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	repo := NewMemoryRepository()

	specialtyID := uuid.New()
	repo.PutSpecialty(Specialty{ID: specialtyID, Name: "Cardiology"})

	physicianID := uuid.New()
	repo.PutPhysician(Physician{
		ID:           physicianID,
		Name:         "Dr. Example",
		SpecialtyIDs: []uuid.UUID{specialtyID},
	})

	patientID := uuid.New()
	repo.PutPatient(Patient{ID: patientID, Name: "Pat Example"})

	return &testFixture{
		repo:        repo,
		resolver:    NewSlotResolver(repo, time.UTC),
		physicianID: physicianID,
		patientID:   patientID,
		specialtyID: specialtyID,
	}
}

func (f *testFixture) addAvailability(t *testing.T, weekday time.Weekday, startMinute, endMinute, slotMinutes int) {
	t.Helper()
	_, err := f.repo.CreateAvailability(context.Background(), Availability{
		ID:          uuid.New(),
		PhysicianID: f.physicianID,
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		SlotMinutes: slotMinutes,
	})
	require.NoError(t, err)
}

func (f *testFixture) addBlock(t *testing.T, start, end time.Time) {
	t.Helper()
	_, err := f.repo.CreateBlock(context.Background(), Block{
		ID:          uuid.New(),
		PhysicianID: f.physicianID,
		StartAt:     start,
		EndAt:       end,
	})
	require.NoError(t, err)
}

func slotStarts(days []DaySchedule) []time.Time {
	var out []time.Time
	for _, d := range days {
		for _, s := range d.Slots {
			out = append(out, s.StartAt)
		}
	}
	return out
}

func TestResolveSlots_OpenMonday(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 11*60, 30)

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)
	require.Len(t, days, 1)

	assert.Equal(t, DayHasSlots, days[0].Status)
	assert.Equal(t, []time.Time{
		monday.Add(9 * time.Hour),
		monday.Add(9*time.Hour + 30*time.Minute),
		monday.Add(10 * time.Hour),
		monday.Add(10*time.Hour + 30*time.Minute),
	}, slotStarts(days))
}

func TestResolveSlots_PartialBlockRemovesSlot(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 11*60, 30)
	f.addBlock(t, monday.Add(10*time.Hour), monday.Add(10*time.Hour+30*time.Minute))

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)
	require.Len(t, days, 1)

	assert.Equal(t, DayHasSlots, days[0].Status)
	assert.Equal(t, []time.Time{
		monday.Add(9 * time.Hour),
		monday.Add(9*time.Hour + 30*time.Minute),
		monday.Add(10*time.Hour + 30*time.Minute),
	}, slotStarts(days))
}

func TestResolveSlots_BookedSlotDisappears(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 11*60, 30)
	f.addBlock(t, monday.Add(10*time.Hour), monday.Add(10*time.Hour+30*time.Minute))

	_, err := f.repo.CreateAppointment(context.Background(), Appointment{
		ID:              uuid.New(),
		PhysicianID:     f.physicianID,
		PatientID:       f.patientID,
		SpecialtyID:     f.specialtyID,
		StartAt:         monday.Add(9 * time.Hour),
		DurationMinutes: 30,
		Status:          StatusPending,
	})
	require.NoError(t, err)

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		monday.Add(9*time.Hour + 30*time.Minute),
		monday.Add(10*time.Hour + 30*time.Minute),
	}, slotStarts(days))
}

func TestResolveSlots_CancelledAppointmentFreesSlot(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 11*60, 30)

	_, err := f.repo.CreateAppointment(context.Background(), Appointment{
		ID:              uuid.New(),
		PhysicianID:     f.physicianID,
		PatientID:       f.patientID,
		SpecialtyID:     f.specialtyID,
		StartAt:         monday.Add(9 * time.Hour),
		DurationMinutes: 30,
		Status:          StatusCancelled,
	})
	require.NoError(t, err)

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)
	assert.Len(t, slotStarts(days), 4)
}

func TestResolveSlots_LongAppointmentShadowsMultipleSlots(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 11*60, 30)

	// A 45-minute appointment at 09:00 intersects both the 09:00 and
	// 09:30 template slots.
	_, err := f.repo.CreateAppointment(context.Background(), Appointment{
		ID:              uuid.New(),
		PhysicianID:     f.physicianID,
		PatientID:       f.patientID,
		SpecialtyID:     f.specialtyID,
		StartAt:         monday.Add(9 * time.Hour),
		DurationMinutes: 45,
		Status:          StatusConfirmed,
	})
	require.NoError(t, err)

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		monday.Add(10 * time.Hour),
		monday.Add(10*time.Hour + 30*time.Minute),
	}, slotStarts(days))
}

func TestResolveSlots_DurationOverrideDropsTrailingRemainder(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 10*60, 30)

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 45)
	require.NoError(t, err)

	// 09:00+45 fits, 09:45+45 would spill past 10:00 and is dropped.
	assert.Equal(t, []time.Time{monday.Add(9 * time.Hour)}, slotStarts(days))
	assert.Equal(t, 45, days[0].Slots[0].DurationMinutes)
}

func TestResolveSlots_DayClassification(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	wednesday := monday.AddDate(0, 0, 2)

	f.addAvailability(t, time.Monday, 9*60, 10*60, 30)
	f.addAvailability(t, time.Wednesday, 9*60, 10*60, 30)

	// Monday is wholly covered by a block; Tuesday has no template;
	// Wednesday is fully booked.
	f.addBlock(t, monday, monday.AddDate(0, 0, 1))

	for _, start := range []time.Time{wednesday.Add(9 * time.Hour), wednesday.Add(9*time.Hour + 30*time.Minute)} {
		_, err := f.repo.CreateAppointment(context.Background(), Appointment{
			ID:              uuid.New(),
			PhysicianID:     f.physicianID,
			PatientID:       f.patientID,
			SpecialtyID:     f.specialtyID,
			StartAt:         start,
			DurationMinutes: 30,
			Status:          StatusConfirmed,
		})
		require.NoError(t, err)
	}

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, wednesday, 0)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, DayBlocked, days[0].Status)
	assert.Empty(t, days[0].Slots)
	assert.Equal(t, DayEmptyTemplate, days[1].Status)
	assert.Equal(t, DayFullyBooked, days[2].Status)
	assert.Empty(t, days[2].Slots)
}

func TestResolveSlots_StackedBlocksUseUnionSemantics(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 11*60, 30)

	// Two overlapping blocks together cover the whole window.
	f.addBlock(t, monday.Add(8*time.Hour), monday.Add(10*time.Hour))
	f.addBlock(t, monday.Add(9*time.Hour+30*time.Minute), monday.Add(12*time.Hour))

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)
	require.Len(t, days, 1)

	assert.Equal(t, DayBlocked, days[0].Status)
	assert.Empty(t, days[0].Slots)
}

func TestResolveSlots_MultipleWindowsAscendingOrder(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	// Afternoon window created first; output must still be chronological.
	f.addAvailability(t, time.Monday, 14*60, 15*60, 30)
	f.addAvailability(t, time.Monday, 9*60, 10*60, 30)

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)

	starts := slotStarts(days)
	require.Len(t, starts, 4)
	for i := 1; i < len(starts); i++ {
		assert.True(t, starts[i-1].Before(starts[i]))
	}
}

func TestResolveSlots_Idempotent(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 11*60, 30)
	f.addAvailability(t, time.Tuesday, 10*60, 12*60, 20)
	f.addBlock(t, monday.Add(10*time.Hour), monday.Add(10*time.Hour+30*time.Minute))

	first, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday.AddDate(0, 0, 6), 0)
	require.NoError(t, err)
	second, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday.AddDate(0, 0, 6), 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolveSlots_PastRangeIsNotRejected(t *testing.T) {
	f := newTestFixture(t)

	pastMonday := nextWeekday(time.Now().UTC().AddDate(-1, 0, 0), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 10*60, 30)

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, pastMonday, pastMonday, 0)
	require.NoError(t, err)
	assert.Len(t, slotStarts(days), 2)
}

func TestResolveSlots_Validation(t *testing.T) {
	f := newTestFixture(t)

	monday := nextWeekday(time.Now().UTC(), time.Monday)

	_, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday.AddDate(0, 0, -1), 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, -15)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.resolver.ResolveSlots(context.Background(), uuid.New(), monday, monday, 0)
	assert.ErrorIs(t, err, ErrPhysicianNotFound)
}

func TestResolveSlots_DSTTransitionKeepsAbsoluteStepping(t *testing.T) {
	f := newTestFixture(t)

	// A fixed-offset zone stands in for the clinic timezone; the resolver
	// must produce instants, not wall-clock arithmetic, either way.
	loc := time.FixedZone("clinic", -3*60*60)
	resolver := NewSlotResolver(f.repo, loc)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, monday.In(loc).Weekday(), 9*60, 10*60, 30)

	days, err := resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)

	starts := slotStarts(days)
	require.Len(t, starts, 2)
	assert.Equal(t, 30*time.Minute, starts[1].Sub(starts[0]))
}
