package clinical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
)

type recordingInvalidator struct {
	patients []uuid.UUID
	err      error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, patientID uuid.UUID) error {
	r.patients = append(r.patients, patientID)
	return r.err
}

func TestRecordSnapshotStampsTimeAndInvalidates(t *testing.T) {
	store := NewMemoryStore()
	inv := &recordingInvalidator{}
	rec := NewRecorder(store, inv, zerolog.Nop())
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	patient := uuid.New()
	score := 4
	s := &ProgressSnapshot{PatientID: patient, SymptomScore: &score}
	require.NoError(t, rec.RecordSnapshot(context.Background(), s))

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, fixed, s.RecordedAt)
	assert.Equal(t, []uuid.UUID{patient}, inv.patients)

	stored, err := store.Snapshots(context.Background(), patient, AllTime, Ascending)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRecordSnapshotRejectsInvalidScores(t *testing.T) {
	inv := &recordingInvalidator{}
	rec := NewRecorder(NewMemoryStore(), inv, zerolog.Nop())

	score := 11
	err := rec.RecordSnapshot(context.Background(), &ProgressSnapshot{PatientID: uuid.New(), SymptomScore: &score})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, inv.patients)
}

func TestRecordAdherence(t *testing.T) {
	store := NewMemoryStore()
	inv := &recordingInvalidator{err: errors.New("redis down")}
	rec := NewRecorder(store, inv, zerolog.Nop())

	patient := uuid.New()
	a := store.Assign(patient, KindExercise, "Walking", uuid.New())
	e := &AdherenceEvent{PatientID: patient, AssignmentID: a.ID, Kind: KindExercise, Status: StatusMissed}

	require.NoError(t, rec.RecordAdherence(context.Background(), e), "invalidation failures do not fail the write")
	assert.False(t, e.LoggedAt.IsZero())
	assert.Equal(t, []uuid.UUID{patient}, inv.patients)
}

func TestRecordAdherenceUnknownAssignment(t *testing.T) {
	rec := NewRecorder(NewMemoryStore(), nil, zerolog.Nop())

	err := rec.RecordAdherence(context.Background(), &AdherenceEvent{
		PatientID:    uuid.New(),
		AssignmentID: uuid.New(),
		Kind:         KindMedication,
		Status:       StatusTaken,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
