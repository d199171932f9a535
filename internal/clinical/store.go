package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// Reader is the query side the analytics engine depends on.
type Reader interface {
	// AdherenceEvents returns the patient's events of kind inside w, oldest first.
	AdherenceEvents(ctx context.Context, patientID uuid.UUID, kind EventKind, w Window) ([]AdherenceEvent, error)
	// AssignmentNames resolves assignment ids of kind to catalog display names.
	// Ids that do not resolve are absent from the result.
	AssignmentNames(ctx context.Context, kind EventKind, ids []uuid.UUID) (map[uuid.UUID]string, error)
	// Snapshots returns the patient's snapshots inside w in the given order.
	Snapshots(ctx context.Context, patientID uuid.UUID, w Window, order SortOrder) ([]ProgressSnapshot, error)
	// RecentSnapshots returns at most limit snapshots, most recent first.
	RecentSnapshots(ctx context.Context, patientID uuid.UUID, limit int) ([]ProgressSnapshot, error)
}

// Writer is the logging side. It lives outside the analytics core but shares
// the store.
type Writer interface {
	AppendSnapshot(ctx context.Context, s *ProgressSnapshot) error
	AppendAdherenceEvent(ctx context.Context, e *AdherenceEvent) error
	ActivePatients(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

type Store interface {
	Reader
	Writer
}
