package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/rehab-care-coordination/internal/clinical"
	redisclient "github.com/hackgods/rehab-care-coordination/internal/redis"
)

func newRedisCache(t *testing.T) *redisclient.AnalyticsCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisclient.NewAnalyticsCache(client, time.Minute)
}

// racingStore runs onRead once, right after the first Snapshots query
// returns, to land a write between reading history and caching the result.
type racingStore struct {
	*clinical.MemoryStore
	once   sync.Once
	onRead func()
}

func (r *racingStore) Snapshots(ctx context.Context, patientID uuid.UUID, w clinical.Window, order clinical.SortOrder) ([]clinical.ProgressSnapshot, error) {
	out, err := r.MemoryStore.Snapshots(ctx, patientID, w, order)
	r.once.Do(r.onRead)
	return out, err
}

func TestReportCacheDropsResultComputedBeforeWrite(t *testing.T) {
	mem := clinical.NewMemoryStore()
	patient := uuid.New()
	addSnapshots(t, mem, patient, clinical.ProgressSnapshot{SymptomScore: intPtr(4)})

	cache := newRedisCache(t)
	rec := clinical.NewRecorder(mem, cache, zerolog.Nop())
	store := &racingStore{MemoryStore: mem}
	store.onRead = func() {
		require.NoError(t, rec.RecordSnapshot(context.Background(), &clinical.ProgressSnapshot{
			PatientID:    patient,
			SymptomScore: intPtr(6),
		}))
	}
	builder := NewReportBuilder(store, WithCache(cache))

	first, err := builder.BuildProgressReport(context.Background(), patient, clinical.AllTime)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalEntries)

	second, err := builder.BuildProgressReport(context.Background(), patient, clinical.AllTime)
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalEntries)
}

func TestReportCacheServesUntilInvalidated(t *testing.T) {
	mem := clinical.NewMemoryStore()
	patient := uuid.New()
	addSnapshots(t, mem, patient, clinical.ProgressSnapshot{MobilityScore: intPtr(40)})

	cache := newRedisCache(t)
	store := &countingStore{MemoryStore: mem}
	builder := NewReportBuilder(store, WithCache(cache))
	ctx := context.Background()

	_, err := builder.BuildProgressReport(ctx, patient, clinical.AllTime)
	require.NoError(t, err)
	_, err = builder.BuildProgressReport(ctx, patient, clinical.AllTime)
	require.NoError(t, err)
	assert.Equal(t, 1, store.snapshots)

	require.NoError(t, cache.Invalidate(ctx, patient))
	_, err = builder.BuildProgressReport(ctx, patient, clinical.AllTime)
	require.NoError(t, err)
	assert.Equal(t, 2, store.snapshots)
}
