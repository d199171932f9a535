package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

// ItemStats counts adherence events for one catalog item.
type ItemStats struct {
	Total   int `json:"total"`
	Taken   int `json:"taken"`
	Missed  int `json:"missed"`
	Delayed int `json:"delayed"`
}

// AdherenceStats is keyed by catalog display name. Items without events in
// the window are absent rather than present with zero counts.
type AdherenceStats map[string]ItemStats

// Total sums every bucket.
func (s AdherenceStats) Total() int {
	total := 0
	for _, item := range s {
		total += item.Total
	}
	return total
}

type Aggregator struct {
	base
}

func NewAggregator(store clinical.Reader, opts ...Option) *Aggregator {
	return &Aggregator{base: newBase(store, "adherence", opts)}
}

// ComputeAdherenceStats groups the patient's kind events inside w by the
// catalog item their assignment points at and counts them by status.
func (a *Aggregator) ComputeAdherenceStats(ctx context.Context, patientID uuid.UUID, kind clinical.EventKind, w clinical.Window) (stats AdherenceStats, err error) {
	start := time.Now()
	defer func() { a.observe("adherence_"+string(kind), start, err) }()

	if err := requirePatientWindow(patientID, w); err != nil {
		return nil, err
	}
	desc, ok := clinical.Describe(kind)
	if !ok {
		return nil, apperr.Validation("invalid event kind %q", kind)
	}

	key := "adherence:" + string(kind) + ":" + windowKey(w)
	return cached(ctx, &a.base, patientID, key, func() (AdherenceStats, error) {
		return a.aggregate(ctx, desc, patientID, w)
	})
}

// aggregate is the single algorithm behind every event kind; desc selects the
// event source and the assignment to catalog resolution.
func (a *Aggregator) aggregate(ctx context.Context, desc clinical.KindDescriptor, patientID uuid.UUID, w clinical.Window) (AdherenceStats, error) {
	events, err := a.store.AdherenceEvents(ctx, patientID, desc.Kind, w)
	if err != nil {
		return nil, fmt.Errorf("load %s events: %w", desc.Kind, err)
	}

	stats := make(AdherenceStats)
	if len(events) == 0 {
		return stats, nil
	}

	ids := lo.Uniq(lo.Map(events, func(e clinical.AdherenceEvent, _ int) uuid.UUID {
		return e.AssignmentID
	}))
	names, err := a.store.AssignmentNames(ctx, desc.Kind, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve %s assignments: %w", desc.Kind, err)
	}

	for _, e := range events {
		name, ok := names[e.AssignmentID]
		if !ok {
			return nil, apperr.NotFound(fmt.Sprintf("%s assignment %s", desc.Kind, e.AssignmentID), nil)
		}

		bucket := stats[name]
		switch e.Status {
		case clinical.StatusTaken:
			bucket.Taken++
		case clinical.StatusMissed:
			bucket.Missed++
		case clinical.StatusDelayed:
			bucket.Delayed++
		default:
			return nil, apperr.New(apperr.KindInternal, fmt.Sprintf("event %s has unknown status %q", e.ID, e.Status))
		}
		bucket.Total++
		stats[name] = bucket
	}

	return stats, nil
}
