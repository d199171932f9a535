package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool { return &v }
func strPtr(v string) *string { return &v }

// addSnapshots stores one snapshot per entry, the first entry being the most
// recent, spaced one day apart ending at testNow.
func addSnapshots(t *testing.T, store *clinical.MemoryStore, patient uuid.UUID, mostRecentFirst ...clinical.ProgressSnapshot) {
	t.Helper()
	for i, s := range mostRecentFirst {
		s.PatientID = patient
		s.RecordedAt = testNow.Add(-time.Duration(i) * 24 * time.Hour)
		require.NoError(t, store.AppendSnapshot(context.Background(), &s))
	}
}

func logEvent(t *testing.T, store *clinical.MemoryStore, a clinical.Assignment, status clinical.AdherenceStatus, at time.Time) {
	t.Helper()
	require.NoError(t, store.AppendAdherenceEvent(context.Background(), &clinical.AdherenceEvent{
		PatientID:    a.PatientID,
		AssignmentID: a.ID,
		Kind:         a.Kind,
		Status:       status,
		LoggedAt:     at,
	}))
}

// countingStore records how often the store is queried.
type countingStore struct {
	*clinical.MemoryStore
	mu        sync.Mutex
	snapshots int
	events    int
}

func (c *countingStore) Snapshots(ctx context.Context, patientID uuid.UUID, w clinical.Window, order clinical.SortOrder) ([]clinical.ProgressSnapshot, error) {
	c.mu.Lock()
	c.snapshots++
	c.mu.Unlock()
	return c.MemoryStore.Snapshots(ctx, patientID, w, order)
}

func (c *countingStore) AdherenceEvents(ctx context.Context, patientID uuid.UUID, kind clinical.EventKind, w clinical.Window) ([]clinical.AdherenceEvent, error) {
	c.mu.Lock()
	c.events++
	c.mu.Unlock()
	return c.MemoryStore.AdherenceEvents(ctx, patientID, kind, w)
}

// mapCache is an in-process Cache keeping JSON, like the Redis one.
type mapCache struct {
	mu      sync.Mutex
	gens    map[uuid.UUID]int64
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{gens: make(map[uuid.UUID]int64), entries: make(map[string][]byte)}
}

func (m *mapCache) Get(_ context.Context, patientID uuid.UUID, key string, dst any) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen := m.gens[patientID]
	raw, ok := m.entries[fmt.Sprintf("%s:%d:%s", patientID, gen, key)]
	if !ok {
		return gen, false, nil
	}
	return gen, true, json.Unmarshal(raw, dst)
}

func (m *mapCache) Set(_ context.Context, patientID uuid.UUID, key string, gen int64, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[patientID] != gen {
		return nil
	}
	m.entries[fmt.Sprintf("%s:%d:%s", patientID, gen, key)] = raw
	return nil
}

func (m *mapCache) Invalidate(_ context.Context, patientID uuid.UUID) error {
	m.mu.Lock()
	m.gens[patientID]++
	m.mu.Unlock()
	return nil
}
