package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minutesPerDay = 24 * 60

// ScheduleManager validates and mutates a physician's recurring templates
// and absence blocks. Removing either never cascades to existing
// appointments; only the booking engine touches appointment state.
type ScheduleManager struct {
	repo Repository
	log  zerolog.Logger
}

func NewScheduleManager(repo Repository, log zerolog.Logger) *ScheduleManager {
	return &ScheduleManager{repo: repo, log: log}
}

type AvailabilityParams struct {
	PhysicianID uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	SlotMinutes int
}

func (p AvailabilityParams) validate() error {
	if p.Weekday < time.Sunday || p.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday must be between 0 and 6", ErrValidation)
	}
	if p.StartMinute < 0 || p.EndMinute > minutesPerDay {
		return fmt.Errorf("%w: window must fall within a single day", ErrValidation)
	}
	if p.StartMinute >= p.EndMinute {
		return fmt.Errorf("%w: window start must be before window end", ErrValidation)
	}
	if p.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrValidation)
	}
	return nil
}

// AddAvailability creates a weekly template window. Windows for the same
// physician and weekday must not overlap.
func (m *ScheduleManager) AddAvailability(ctx context.Context, p AvailabilityParams) (*Availability, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if _, err := m.repo.GetPhysicianByID(ctx, p.PhysicianID); err != nil {
		return nil, err
	}

	if err := m.checkWindowFree(ctx, p, uuid.Nil); err != nil {
		return nil, err
	}

	created, err := m.repo.CreateAvailability(ctx, Availability{
		ID:          uuid.New(),
		PhysicianID: p.PhysicianID,
		Weekday:     p.Weekday,
		StartMinute: p.StartMinute,
		EndMinute:   p.EndMinute,
		SlotMinutes: p.SlotMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("create availability: %w", err)
	}

	m.log.Info().
		Str("physician_id", p.PhysicianID.String()).
		Int("weekday", int(p.Weekday)).
		Msg("availability added")

	return created, nil
}

// UpdateAvailability rewrites an existing template window, re-running the
// overlap check against every other window on the target weekday.
func (m *ScheduleManager) UpdateAvailability(ctx context.Context, id uuid.UUID, p AvailabilityParams) (*Availability, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	existing, err := m.repo.GetAvailabilityByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.PhysicianID != p.PhysicianID {
		return nil, ErrAvailabilityNotFound
	}

	if err := m.checkWindowFree(ctx, p, id); err != nil {
		return nil, err
	}

	updated, err := m.repo.UpdateAvailability(ctx, Availability{
		ID:          id,
		PhysicianID: p.PhysicianID,
		Weekday:     p.Weekday,
		StartMinute: p.StartMinute,
		EndMinute:   p.EndMinute,
		SlotMinutes: p.SlotMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("update availability: %w", err)
	}

	return updated, nil
}

func (m *ScheduleManager) RemoveAvailability(ctx context.Context, physicianID, id uuid.UUID) error {
	if err := m.repo.DeleteAvailability(ctx, physicianID, id); err != nil {
		return err
	}
	m.log.Info().
		Str("physician_id", physicianID.String()).
		Str("availability_id", id.String()).
		Msg("availability removed")
	return nil
}

func (m *ScheduleManager) ListAvailability(ctx context.Context, physicianID uuid.UUID) ([]Availability, error) {
	if _, err := m.repo.GetPhysicianByID(ctx, physicianID); err != nil {
		return nil, err
	}
	return m.repo.ListAvailability(ctx, physicianID)
}

// checkWindowFree rejects a [start,end) window intersecting any other
// window for the same physician and weekday. exclude skips the row being
// updated.
func (m *ScheduleManager) checkWindowFree(ctx context.Context, p AvailabilityParams, exclude uuid.UUID) error {
	others, err := m.repo.ListAvailabilityForWeekday(ctx, p.PhysicianID, p.Weekday)
	if err != nil {
		return fmt.Errorf("list availability: %w", err)
	}
	for _, other := range others {
		if other.ID == exclude {
			continue
		}
		if minutesOverlap(p.StartMinute, p.EndMinute, other.StartMinute, other.EndMinute) {
			return ErrOverlappingAvailability
		}
	}
	return nil
}

type BlockParams struct {
	PhysicianID uuid.UUID
	StartAt     time.Time
	EndAt       time.Time
	Reason      *string
}

func (p BlockParams) validate() error {
	if p.StartAt.IsZero() || p.EndAt.IsZero() {
		return fmt.Errorf("%w: block range is required", ErrValidation)
	}
	if !p.StartAt.Before(p.EndAt) {
		return fmt.Errorf("%w: block start must be before block end", ErrValidation)
	}
	return nil
}

// AddBlock creates an absence window. Blocks may stack, so there is no
// overlap rejection, only start < end.
func (m *ScheduleManager) AddBlock(ctx context.Context, p BlockParams) (*Block, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if _, err := m.repo.GetPhysicianByID(ctx, p.PhysicianID); err != nil {
		return nil, err
	}

	created, err := m.repo.CreateBlock(ctx, Block{
		ID:          uuid.New(),
		PhysicianID: p.PhysicianID,
		StartAt:     p.StartAt,
		EndAt:       p.EndAt,
		Reason:      p.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("create block: %w", err)
	}

	m.log.Info().
		Str("physician_id", p.PhysicianID.String()).
		Time("start_at", p.StartAt).
		Time("end_at", p.EndAt).
		Msg("block added")

	return created, nil
}

func (m *ScheduleManager) UpdateBlock(ctx context.Context, id uuid.UUID, p BlockParams) (*Block, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	existing, err := m.repo.GetBlockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.PhysicianID != p.PhysicianID {
		return nil, ErrBlockNotFound
	}

	updated, err := m.repo.UpdateBlock(ctx, Block{
		ID:          id,
		PhysicianID: p.PhysicianID,
		StartAt:     p.StartAt,
		EndAt:       p.EndAt,
		Reason:      p.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("update block: %w", err)
	}

	return updated, nil
}

func (m *ScheduleManager) RemoveBlock(ctx context.Context, physicianID, id uuid.UUID) error {
	if err := m.repo.DeleteBlock(ctx, physicianID, id); err != nil {
		return err
	}
	m.log.Info().
		Str("physician_id", physicianID.String()).
		Str("block_id", id.String()).
		Msg("block removed")
	return nil
}

func (m *ScheduleManager) ListBlocks(ctx context.Context, physicianID uuid.UUID) ([]Block, error) {
	if _, err := m.repo.GetPhysicianByID(ctx, physicianID); err != nil {
		return nil, err
	}
	return m.repo.ListBlocks(ctx, physicianID)
}
