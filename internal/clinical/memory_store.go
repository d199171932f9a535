package clinical

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	snapshots   []ProgressSnapshot
	events      []AdherenceEvent
	assignments map[uuid.UUID]Assignment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assignments: make(map[uuid.UUID]Assignment)}
}

// Assign registers a catalog assignment and returns it with a fresh id.
func (m *MemoryStore) Assign(patientID uuid.UUID, kind EventKind, itemName string, assignedBy uuid.UUID) Assignment {
	a := Assignment{
		ID:         uuid.New(),
		PatientID:  patientID,
		Kind:       kind,
		ItemID:     uuid.New(),
		ItemName:   itemName,
		AssignedBy: assignedBy,
	}

	m.mu.Lock()
	m.assignments[a.ID] = a
	m.mu.Unlock()

	return a
}

func (m *MemoryStore) AdherenceEvents(_ context.Context, patientID uuid.UUID, kind EventKind, w Window) ([]AdherenceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []AdherenceEvent
	for _, e := range m.events {
		if e.PatientID == patientID && e.Kind == kind && w.Contains(e.LoggedAt) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LoggedAt.Before(result[j].LoggedAt)
	})
	return result, nil
}

func (m *MemoryStore) AssignmentNames(_ context.Context, kind EventKind, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if a, ok := m.assignments[id]; ok && a.Kind == kind {
			names[id] = a.ItemName
		}
	}
	return names, nil
}

func (m *MemoryStore) Snapshots(_ context.Context, patientID uuid.UUID, w Window, order SortOrder) ([]ProgressSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ProgressSnapshot
	for _, s := range m.snapshots {
		if s.PatientID == patientID && w.Contains(s.RecordedAt) {
			result = append(result, s)
		}
	}
	sortSnapshots(result, order)
	return result, nil
}

func (m *MemoryStore) RecentSnapshots(ctx context.Context, patientID uuid.UUID, limit int) ([]ProgressSnapshot, error) {
	all, err := m.Snapshots(ctx, patientID, AllTime, Descending)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) AppendSnapshot(_ context.Context, s *ProgressSnapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	m.mu.Lock()
	m.snapshots = append(m.snapshots, *s)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) AppendAdherenceEvent(_ context.Context, e *AdherenceEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[e.AssignmentID]
	if !ok || a.PatientID != e.PatientID || a.Kind != e.Kind {
		return apperr.NotFound(string(e.Kind)+" assignment", nil)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *MemoryStore) ActivePatients(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	var result []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	for _, s := range m.snapshots {
		if !s.RecordedAt.Before(since) {
			add(s.PatientID)
		}
	}
	for _, e := range m.events {
		if !e.LoggedAt.Before(since) {
			add(e.PatientID)
		}
	}
	return result, nil
}

func sortSnapshots(s []ProgressSnapshot, order SortOrder) {
	sort.SliceStable(s, func(i, j int) bool {
		if order == Descending {
			return s[i].RecordedAt.After(s[j].RecordedAt)
		}
		return s[i].RecordedAt.Before(s[j].RecordedAt)
	})
}
