package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

func TestComputeAdherenceStatsGroupsByCatalogName(t *testing.T) {
	store := clinical.NewMemoryStore()
	patient, clinician := uuid.New(), uuid.New()
	aspirin := store.Assign(patient, clinical.KindMedication, "Aspirin", clinician)
	statin := store.Assign(patient, clinical.KindMedication, "Atorvastatin", clinician)
	store.Assign(patient, clinical.KindMedication, "Clopidogrel", clinician) // never logged

	day := testNow.Add(-48 * time.Hour)
	logEvent(t, store, aspirin, clinical.StatusTaken, day)
	logEvent(t, store, aspirin, clinical.StatusTaken, day.Add(time.Hour))
	logEvent(t, store, aspirin, clinical.StatusMissed, day.Add(2*time.Hour))
	logEvent(t, store, statin, clinical.StatusDelayed, day)

	agg := NewAggregator(store)
	stats, err := agg.ComputeAdherenceStats(context.Background(), patient, clinical.KindMedication, clinical.AllTime)
	require.NoError(t, err)

	assert.Equal(t, AdherenceStats{
		"Aspirin":      {Total: 3, Taken: 2, Missed: 1},
		"Atorvastatin": {Total: 1, Delayed: 1},
	}, stats)
	assert.NotContains(t, stats, "Clopidogrel", "items without events are omitted")
}

func TestComputeAdherenceStatsSameAlgorithmForEveryKind(t *testing.T) {
	store := clinical.NewMemoryStore()
	patient, clinician := uuid.New(), uuid.New()

	items := map[clinical.EventKind]string{
		clinical.KindMedication: "Aspirin",
		clinical.KindExercise:   "Sit-to-stand",
		clinical.KindFood:       "Oatmeal",
	}
	for kind, name := range items {
		a := store.Assign(patient, kind, name, clinician)
		logEvent(t, store, a, clinical.StatusTaken, testNow.Add(-time.Hour))
		logEvent(t, store, a, clinical.StatusMissed, testNow.Add(-2*time.Hour))
	}

	agg := NewAggregator(store)
	for kind, name := range items {
		stats, err := agg.ComputeAdherenceStats(context.Background(), patient, kind, clinical.AllTime)
		require.NoError(t, err)
		assert.Equal(t, AdherenceStats{name: {Total: 2, Taken: 1, Missed: 1}}, stats, kind)
	}
}

func TestComputeAdherenceStatsTotalMatchesEventsInWindow(t *testing.T) {
	store := clinical.NewMemoryStore()
	patient, clinician := uuid.New(), uuid.New()
	walk := store.Assign(patient, clinical.KindExercise, "Walking", clinician)
	reach := store.Assign(patient, clinical.KindExercise, "Arm reach", clinician)

	statuses := []clinical.AdherenceStatus{clinical.StatusTaken, clinical.StatusMissed, clinical.StatusDelayed}
	for i := 0; i < 30; i++ {
		a := walk
		if i%3 == 0 {
			a = reach
		}
		logEvent(t, store, a, statuses[i%len(statuses)], testNow.Add(-time.Duration(i)*24*time.Hour))
	}

	w, err := clinical.NewWindow(testNow.Add(-10*24*time.Hour), testNow)
	require.NoError(t, err)

	events, err := store.AdherenceEvents(context.Background(), patient, clinical.KindExercise, w)
	require.NoError(t, err)

	stats, err := NewAggregator(store).ComputeAdherenceStats(context.Background(), patient, clinical.KindExercise, w)
	require.NoError(t, err)

	assert.Equal(t, 11, len(events), "both window bounds are inclusive")
	assert.Equal(t, len(events), stats.Total())
	sum := 0
	for _, s := range stats {
		sum += s.Taken + s.Missed + s.Delayed
		assert.Equal(t, s.Total, s.Taken+s.Missed+s.Delayed)
	}
	assert.Equal(t, len(events), sum)
}

func TestComputeAdherenceStatsEmptyWindow(t *testing.T) {
	store := clinical.NewMemoryStore()
	patient := uuid.New()
	store.Assign(patient, clinical.KindFood, "Salmon", uuid.New())

	stats, err := NewAggregator(store).ComputeAdherenceStats(context.Background(), patient, clinical.KindFood, clinical.AllTime)
	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}

func TestComputeAdherenceStatsValidation(t *testing.T) {
	agg := NewAggregator(clinical.NewMemoryStore())

	_, err := agg.ComputeAdherenceStats(context.Background(), uuid.Nil, clinical.KindMedication, clinical.AllTime)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = agg.ComputeAdherenceStats(context.Background(), uuid.New(), clinical.EventKind("sleep"), clinical.AllTime)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestComputeAdherenceStatsRejectsReversedWindow(t *testing.T) {
	store := clinical.NewMemoryStore()
	a := store.Assign(uuid.New(), clinical.KindMedication, "Aspirin", uuid.New())
	logEvent(t, store, a, clinical.StatusTaken, testNow.Add(-24*time.Hour))

	reversed := clinical.Window{Start: testNow, End: testNow.Add(-48 * time.Hour)}
	stats, err := NewAggregator(store).ComputeAdherenceStats(context.Background(), a.PatientID, clinical.KindMedication, reversed)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Nil(t, stats)
}

// unresolvedStore forgets every assignment.
type unresolvedStore struct {
	*clinical.MemoryStore
}

func (unresolvedStore) AssignmentNames(context.Context, clinical.EventKind, []uuid.UUID) (map[uuid.UUID]string, error) {
	return map[uuid.UUID]string{}, nil
}

func TestComputeAdherenceStatsUnresolvedAssignmentIsNotFound(t *testing.T) {
	mem := clinical.NewMemoryStore()
	patient := uuid.New()
	a := mem.Assign(patient, clinical.KindMedication, "Aspirin", uuid.New())
	logEvent(t, mem, a, clinical.StatusTaken, testNow)

	stats, err := NewAggregator(unresolvedStore{mem}).ComputeAdherenceStats(context.Background(), patient, clinical.KindMedication, clinical.AllTime)
	assert.Nil(t, stats, "no partial output")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

type failingStore struct {
	*clinical.MemoryStore
	err error
}

func (f failingStore) AdherenceEvents(context.Context, uuid.UUID, clinical.EventKind, clinical.Window) ([]clinical.AdherenceEvent, error) {
	return nil, f.err
}

func (f failingStore) Snapshots(context.Context, uuid.UUID, clinical.Window, clinical.SortOrder) ([]clinical.ProgressSnapshot, error) {
	return nil, f.err
}

func (f failingStore) RecentSnapshots(context.Context, uuid.UUID, int) ([]clinical.ProgressSnapshot, error) {
	return nil, f.err
}

func TestComputeAdherenceStatsPropagatesStoreErrors(t *testing.T) {
	transient := apperr.Transient("query adherence events", errors.New("40001"))
	agg := NewAggregator(failingStore{clinical.NewMemoryStore(), transient})

	stats, err := agg.ComputeAdherenceStats(context.Background(), uuid.New(), clinical.KindExercise, clinical.AllTime)
	assert.Nil(t, stats)
	assert.True(t, apperr.IsKind(err, apperr.KindTransient))
}

func TestComputeAdherenceStatsUsesCache(t *testing.T) {
	mem := clinical.NewMemoryStore()
	patient := uuid.New()
	a := mem.Assign(patient, clinical.KindMedication, "Aspirin", uuid.New())
	logEvent(t, mem, a, clinical.StatusMissed, testNow)

	store := &countingStore{MemoryStore: mem}
	agg := NewAggregator(store, WithCache(newMapCache()))

	first, err := agg.ComputeAdherenceStats(context.Background(), patient, clinical.KindMedication, clinical.AllTime)
	require.NoError(t, err)
	second, err := agg.ComputeAdherenceStats(context.Background(), patient, clinical.KindMedication, clinical.AllTime)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.events)
}
