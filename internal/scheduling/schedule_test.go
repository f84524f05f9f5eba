package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(f *testFixture) *ScheduleManager {
	return NewScheduleManager(f.repo, zerolog.Nop())
}

func (f *testFixture) availabilityParams(weekday time.Weekday, startMinute, endMinute, slotMinutes int) AvailabilityParams {
	return AvailabilityParams{
		PhysicianID: f.physicianID,
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		SlotMinutes: slotMinutes,
	}
}

func TestAddAvailability(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	av, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 12*60, 30))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, av.ID)
	assert.Equal(t, time.Monday, av.Weekday)
	assert.Equal(t, 9*60, av.StartMinute)
}

func TestAddAvailability_Validation(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	cases := []struct {
		name   string
		params AvailabilityParams
	}{
		{"weekday out of range", f.availabilityParams(7, 9*60, 12*60, 30)},
		{"negative start", f.availabilityParams(time.Monday, -30, 12*60, 30)},
		{"end past midnight", f.availabilityParams(time.Monday, 9*60, 25*60, 30)},
		{"start equals end", f.availabilityParams(time.Monday, 9*60, 9*60, 30)},
		{"start after end", f.availabilityParams(time.Monday, 12*60, 9*60, 30)},
		{"zero slot duration", f.availabilityParams(time.Monday, 9*60, 12*60, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mgr.AddAvailability(context.Background(), tc.params)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAddAvailability_UnknownPhysician(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	p := f.availabilityParams(time.Monday, 9*60, 12*60, 30)
	p.PhysicianID = uuid.New()

	_, err := mgr.AddAvailability(context.Background(), p)
	assert.ErrorIs(t, err, ErrPhysicianNotFound)
}

func TestAddAvailability_OverlapRejected(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	_, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 12*60, 30))
	require.NoError(t, err)

	// Intersecting window on the same weekday.
	_, err = mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 11*60, 14*60, 30))
	assert.ErrorIs(t, err, ErrOverlappingAvailability)

	// Adjacent window is fine: ranges are half-open.
	_, err = mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 12*60, 14*60, 30))
	assert.NoError(t, err)

	// Same window on a different weekday is fine.
	_, err = mgr.AddAvailability(context.Background(), f.availabilityParams(time.Tuesday, 9*60, 12*60, 30))
	assert.NoError(t, err)
}

func TestAddAvailability_OverlapScopedToPhysician(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	other := uuid.New()
	f.repo.PutPhysician(Physician{ID: other, Name: "Dr. Other"})

	_, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 12*60, 30))
	require.NoError(t, err)

	p := f.availabilityParams(time.Monday, 9*60, 12*60, 30)
	p.PhysicianID = other
	_, err = mgr.AddAvailability(context.Background(), p)
	assert.NoError(t, err)
}

func TestUpdateAvailability(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	av, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 12*60, 30))
	require.NoError(t, err)

	// Shifting a window within its own footprint must not trip the
	// overlap check against itself.
	updated, err := mgr.UpdateAvailability(context.Background(), av.ID, f.availabilityParams(time.Monday, 10*60, 12*60, 20))
	require.NoError(t, err)
	assert.Equal(t, 10*60, updated.StartMinute)
	assert.Equal(t, 20, updated.SlotMinutes)
}

func TestUpdateAvailability_OverlapWithOtherWindow(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	_, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 11*60, 30))
	require.NoError(t, err)
	second, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 14*60, 16*60, 30))
	require.NoError(t, err)

	_, err = mgr.UpdateAvailability(context.Background(), second.ID, f.availabilityParams(time.Monday, 10*60, 15*60, 30))
	assert.ErrorIs(t, err, ErrOverlappingAvailability)
}

func TestUpdateAvailability_WrongPhysician(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	av, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 12*60, 30))
	require.NoError(t, err)

	other := uuid.New()
	f.repo.PutPhysician(Physician{ID: other, Name: "Dr. Other"})

	p := f.availabilityParams(time.Monday, 9*60, 12*60, 30)
	p.PhysicianID = other
	_, err = mgr.UpdateAvailability(context.Background(), av.ID, p)
	assert.ErrorIs(t, err, ErrAvailabilityNotFound)
}

func TestRemoveAvailability(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	av, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 12*60, 30))
	require.NoError(t, err)

	require.NoError(t, mgr.RemoveAvailability(context.Background(), f.physicianID, av.ID))

	listed, err := mgr.ListAvailability(context.Background(), f.physicianID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	assert.ErrorIs(t,
		mgr.RemoveAvailability(context.Background(), f.physicianID, av.ID),
		ErrAvailabilityNotFound)
}

func TestRemoveAvailability_DoesNotCascadeToAppointments(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	av, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 12*60, 30))
	require.NoError(t, err)

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)
	apptID := f.putAppointment(t, start, StatusConfirmed)

	require.NoError(t, mgr.RemoveAvailability(context.Background(), f.physicianID, av.ID))

	appt, err := f.repo.GetAppointmentByID(context.Background(), apptID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
}

func TestListAvailability_Ordering(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	_, err := mgr.AddAvailability(context.Background(), f.availabilityParams(time.Friday, 9*60, 12*60, 30))
	require.NoError(t, err)
	_, err = mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 14*60, 16*60, 30))
	require.NoError(t, err)
	_, err = mgr.AddAvailability(context.Background(), f.availabilityParams(time.Monday, 9*60, 12*60, 30))
	require.NoError(t, err)

	listed, err := mgr.ListAvailability(context.Background(), f.physicianID)
	require.NoError(t, err)
	require.Len(t, listed, 3)

	assert.Equal(t, time.Monday, listed[0].Weekday)
	assert.Equal(t, 9*60, listed[0].StartMinute)
	assert.Equal(t, time.Monday, listed[1].Weekday)
	assert.Equal(t, 14*60, listed[1].StartMinute)
	assert.Equal(t, time.Friday, listed[2].Weekday)
}

func TestAddBlock(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	reason := "conference"

	b, err := mgr.AddBlock(context.Background(), BlockParams{
		PhysicianID: f.physicianID,
		StartAt:     start,
		EndAt:       start.Add(8 * time.Hour),
		Reason:      &reason,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, b.ID)
	require.NotNil(t, b.Reason)
	assert.Equal(t, reason, *b.Reason)
}

func TestAddBlock_Validation(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	start := time.Now().UTC().Add(24 * time.Hour)

	_, err := mgr.AddBlock(context.Background(), BlockParams{
		PhysicianID: f.physicianID,
		StartAt:     start,
		EndAt:       start,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mgr.AddBlock(context.Background(), BlockParams{
		PhysicianID: f.physicianID,
		StartAt:     start,
		EndAt:       start.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mgr.AddBlock(context.Background(), BlockParams{PhysicianID: f.physicianID})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddBlock_StackingAllowed(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)

	_, err := mgr.AddBlock(context.Background(), BlockParams{
		PhysicianID: f.physicianID,
		StartAt:     start,
		EndAt:       start.Add(4 * time.Hour),
	})
	require.NoError(t, err)

	// Overlapping block is allowed; absence windows stack.
	_, err = mgr.AddBlock(context.Background(), BlockParams{
		PhysicianID: f.physicianID,
		StartAt:     start.Add(2 * time.Hour),
		EndAt:       start.Add(6 * time.Hour),
	})
	assert.NoError(t, err)

	listed, err := mgr.ListBlocks(context.Background(), f.physicianID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestUpdateBlock(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)

	b, err := mgr.AddBlock(context.Background(), BlockParams{
		PhysicianID: f.physicianID,
		StartAt:     start,
		EndAt:       start.Add(4 * time.Hour),
	})
	require.NoError(t, err)

	updated, err := mgr.UpdateBlock(context.Background(), b.ID, BlockParams{
		PhysicianID: f.physicianID,
		StartAt:     start,
		EndAt:       start.Add(6 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, updated.EndAt.Equal(start.Add(6*time.Hour)))

	other := uuid.New()
	f.repo.PutPhysician(Physician{ID: other, Name: "Dr. Other"})

	_, err = mgr.UpdateBlock(context.Background(), b.ID, BlockParams{
		PhysicianID: other,
		StartAt:     start,
		EndAt:       start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestRemoveBlock_FreesSlots(t *testing.T) {
	f := newTestFixture(t)
	mgr := newTestManager(f)

	monday := nextWeekday(time.Now().UTC(), time.Monday)
	f.addAvailability(t, time.Monday, 9*60, 10*60, 30)

	b, err := mgr.AddBlock(context.Background(), BlockParams{
		PhysicianID: f.physicianID,
		StartAt:     monday,
		EndAt:       monday.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	days, err := f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)
	assert.Equal(t, DayBlocked, days[0].Status)

	require.NoError(t, mgr.RemoveBlock(context.Background(), f.physicianID, b.ID))

	days, err = f.resolver.ResolveSlots(context.Background(), f.physicianID, monday, monday, 0)
	require.NoError(t, err)
	assert.Equal(t, DayHasSlots, days[0].Status)
	assert.Len(t, days[0].Slots, 2)
}
