package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps slots in process. Booking is serialized per slot with
// a dedicated mutex, which gives the same compare-and-swap guarantee as the
// predicate guarded transaction in PgRepository.
type MemoryRepository struct {
	mu           sync.RWMutex
	slots        map[uuid.UUID]*AppointmentSlot
	appointments map[uuid.UUID]*Appointment
	events       []EventLog

	slotLocks sync.Map // uuid.UUID -> *sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots:        make(map[uuid.UUID]*AppointmentSlot),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (m *MemoryRepository) slotLock(id uuid.UUID) *sync.Mutex {
	l, _ := m.slotLocks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (m *MemoryRepository) BookSlot(ctx context.Context, slotID, patientID, bookedBy uuid.UUID) (*Appointment, error) {
	lock := m.slotLock(slotID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[slotID]
	if !ok || slot.IsBooked {
		return nil, ErrSlotUnavailable
	}

	payload, err := bookedEventPayload(slotID, patientID, bookedBy)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	appt := &Appointment{
		ID:        uuid.New(),
		SlotID:    slotID,
		PatientID: patientID,
		BookedBy:  bookedBy,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	slot.IsBooked = true
	slot.UpdatedAt = now
	m.appointments[appt.ID] = appt

	apptID := appt.ID
	m.events = append(m.events, EventLog{
		ID:            int64(len(m.events) + 1),
		EventType:     EventAppointmentBooked,
		AppointmentID: &apptID,
		Payload:       payload,
		CreatedAt:     now,
	})

	cp := *appt
	return &cp, nil
}

func (m *MemoryRepository) CreateSlot(_ context.Context, slot *AppointmentSlot) error {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	now := time.Now()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	slot.IsBooked = false

	cp := *slot
	m.mu.Lock()
	m.slots[slot.ID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) GetSlotByID(_ context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (m *MemoryRepository) ListOpenSlots(_ context.Context, filter SlotFilter) ([]AppointmentSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []AppointmentSlot
	for _, s := range m.slots {
		if s.IsBooked {
			continue
		}
		if filter.ClinicianID != uuid.Nil && s.ClinicianID != filter.ClinicianID {
			continue
		}
		if !filter.From.IsZero() && s.StartTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && s.StartTime.After(filter.To) {
			continue
		}
		result = append(result, *s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Appointments returns every appointment booked for slotID.
func (m *MemoryRepository) Appointments(slotID uuid.UUID) []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.SlotID == slotID {
			result = append(result, *a)
		}
	}
	return result
}

// Events returns a copy of the audit log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EventLog(nil), m.events...)
}
