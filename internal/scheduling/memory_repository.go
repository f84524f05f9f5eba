package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory store. It backs unit tests
// and single-process deployments; paired with the in-process locker it
// satisfies the same booking serializability guarantee as the Postgres
// store behind the Redis lock.
type MemoryRepository struct {
	mu sync.RWMutex

	physicians     map[uuid.UUID]Physician
	patients       map[uuid.UUID]Patient
	specialties    map[uuid.UUID]Specialty
	availabilities map[uuid.UUID]Availability
	blocks         map[uuid.UUID]Block
	appointments   map[uuid.UUID]Appointment
	events         []EventLog
	eventSeq       int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		physicians:     make(map[uuid.UUID]Physician),
		patients:       make(map[uuid.UUID]Patient),
		specialties:    make(map[uuid.UUID]Specialty),
		availabilities: make(map[uuid.UUID]Availability),
		blocks:         make(map[uuid.UUID]Block),
		appointments:   make(map[uuid.UUID]Appointment),
	}
}

// Directory seeding; physicians, patients and specialties are reference
// data owned by a collaborator, so the store only needs put operations.

func (s *MemoryRepository) PutPhysician(p Physician) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.physicians[p.ID] = p
}

func (s *MemoryRepository) PutPatient(p Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

func (s *MemoryRepository) PutSpecialty(sp Specialty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specialties[sp.ID] = sp
}

func (s *MemoryRepository) GetPhysicianByID(_ context.Context, id uuid.UUID) (*Physician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.physicians[id]
	if !ok {
		return nil, ErrPhysicianNotFound
	}
	cp := p
	cp.SpecialtyIDs = append([]uuid.UUID(nil), p.SpecialtyIDs...)
	return &cp, nil
}

func (s *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := p
	return &cp, nil
}

func (s *MemoryRepository) GetSpecialtyByID(_ context.Context, id uuid.UUID) (*Specialty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.specialties[id]
	if !ok {
		return nil, ErrSpecialtyNotFound
	}
	cp := sp
	return &cp, nil
}

// Availability

func (s *MemoryRepository) CreateAvailability(_ context.Context, av Availability) (*Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	av.CreatedAt = now
	av.UpdatedAt = now
	s.availabilities[av.ID] = av
	cp := av
	return &cp, nil
}

func (s *MemoryRepository) UpdateAvailability(_ context.Context, av Availability) (*Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.availabilities[av.ID]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	av.CreatedAt = existing.CreatedAt
	av.UpdatedAt = time.Now()
	s.availabilities[av.ID] = av
	cp := av
	return &cp, nil
}

func (s *MemoryRepository) DeleteAvailability(_ context.Context, physicianID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	av, ok := s.availabilities[id]
	if !ok || av.PhysicianID != physicianID {
		return ErrAvailabilityNotFound
	}
	delete(s.availabilities, id)
	return nil
}

func (s *MemoryRepository) GetAvailabilityByID(_ context.Context, id uuid.UUID) (*Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	av, ok := s.availabilities[id]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	cp := av
	return &cp, nil
}

func (s *MemoryRepository) ListAvailability(_ context.Context, physicianID uuid.UUID) ([]Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Availability
	for _, av := range s.availabilities {
		if av.PhysicianID == physicianID {
			out = append(out, av)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out, nil
}

func (s *MemoryRepository) ListAvailabilityForWeekday(_ context.Context, physicianID uuid.UUID, weekday time.Weekday) ([]Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Availability
	for _, av := range s.availabilities {
		if av.PhysicianID == physicianID && av.Weekday == weekday {
			out = append(out, av)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartMinute < out[j].StartMinute
	})
	return out, nil
}

// Blocks

func (s *MemoryRepository) CreateBlock(_ context.Context, b Block) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	s.blocks[b.ID] = b
	cp := b
	return &cp, nil
}

func (s *MemoryRepository) UpdateBlock(_ context.Context, b Block) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.blocks[b.ID]
	if !ok {
		return nil, ErrBlockNotFound
	}
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now()
	s.blocks[b.ID] = b
	cp := b
	return &cp, nil
}

func (s *MemoryRepository) DeleteBlock(_ context.Context, physicianID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok || b.PhysicianID != physicianID {
		return ErrBlockNotFound
	}
	delete(s.blocks, id)
	return nil
}

func (s *MemoryRepository) GetBlockByID(_ context.Context, id uuid.UUID) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	cp := b
	return &cp, nil
}

func (s *MemoryRepository) ListBlocks(_ context.Context, physicianID uuid.UUID) ([]Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Block
	for _, b := range s.blocks {
		if b.PhysicianID == physicianID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, nil
}

func (s *MemoryRepository) ListBlocksInRange(_ context.Context, physicianID uuid.UUID, from, to time.Time) ([]Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Block
	for _, b := range s.blocks {
		if b.PhysicianID == physicianID && intervalsOverlap(from, to, b.StartAt, b.EndAt) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, nil
}

// Appointments

func (s *MemoryRepository) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	s.appointments[appt.ID] = appt
	cp := appt
	return &cp, nil
}

func (s *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := appt
	return &cp, nil
}

func (s *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, reason *string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = to
	if reason != nil {
		appt.Reason = reason
	}
	appt.UpdatedAt = time.Now()
	s.appointments[id] = appt
	cp := appt
	return &cp, nil
}

func (s *MemoryRepository) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(s.appointments, id)
	return nil
}

func (s *MemoryRepository) ListActiveAppointmentsInRange(_ context.Context, physicianID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.PhysicianID == physicianID && a.Status.Active() && intervalsOverlap(from, to, a.StartAt, a.EndAt()) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryRepository) ListActiveAppointmentsForPatient(_ context.Context, patientID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.PatientID == patientID && a.Status.Active() && intervalsOverlap(from, to, a.StartAt, a.EndAt()) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryRepository) ListAppointmentsByPhysician(_ context.Context, physicianID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.PhysicianID == physicianID && inOptionalRange(a.StartAt, from, to) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.PatientID == patientID && inOptionalRange(a.StartAt, from, to) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryRepository) FindConfirmedStartingBetween(_ context.Context, from, to time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.Status == StatusConfirmed && !a.StartAt.Before(from) && a.StartAt.Before(to) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSeq++
	ev.ID = s.eventSeq
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the recorded event log, oldest first.
func (s *MemoryRepository) Events() []EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]EventLog(nil), s.events...)
}

func sortByStart(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].StartAt.Before(appts[j].StartAt)
	})
}

func inOptionalRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}
