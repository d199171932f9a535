package clinical

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Invalidator drops derived data for a patient after new history arrives.
type Invalidator interface {
	Invalidate(ctx context.Context, patientID uuid.UUID) error
}

// Recorder is the write path for snapshots and adherence events.
type Recorder struct {
	store       Writer
	invalidator Invalidator
	log         zerolog.Logger
	now         func() time.Time
}

// NewRecorder returns a Recorder. invalidator may be nil.
func NewRecorder(store Writer, invalidator Invalidator, log zerolog.Logger) *Recorder {
	return &Recorder{
		store:       store,
		invalidator: invalidator,
		log:         log.With().Str("component", "recorder").Logger(),
		now:         time.Now,
	}
}

// RecordSnapshot stores s, stamping RecordedAt with the current time when unset.
func (r *Recorder) RecordSnapshot(ctx context.Context, s *ProgressSnapshot) error {
	if s.RecordedAt.IsZero() {
		s.RecordedAt = r.now().UTC()
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := r.store.AppendSnapshot(ctx, s); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}

	r.log.Debug().
		Str("patient_id", s.PatientID.String()).
		Str("snapshot_id", s.ID.String()).
		Msg("progress snapshot recorded")
	r.invalidate(ctx, s.PatientID)
	return nil
}

// RecordAdherence stores e, stamping LoggedAt with the current time when unset.
func (r *Recorder) RecordAdherence(ctx context.Context, e *AdherenceEvent) error {
	if e.LoggedAt.IsZero() {
		e.LoggedAt = r.now().UTC()
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := r.store.AppendAdherenceEvent(ctx, e); err != nil {
		return fmt.Errorf("record %s event: %w", e.Kind, err)
	}

	r.log.Debug().
		Str("patient_id", e.PatientID.String()).
		Str("kind", string(e.Kind)).
		Str("status", string(e.Status)).
		Msg("adherence event recorded")
	r.invalidate(ctx, e.PatientID)
	return nil
}

// invalidate failures are logged only; the event itself is already stored.
func (r *Recorder) invalidate(ctx context.Context, patientID uuid.UUID) {
	if r.invalidator == nil {
		return
	}
	if err := r.invalidator.Invalidate(ctx, patientID); err != nil {
		r.log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("analytics cache invalidation failed")
	}
}
