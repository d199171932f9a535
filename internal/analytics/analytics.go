// Package analytics turns a patient's logged clinical events into adherence
// statistics, progress reports, health trends and predictive alerts.
//
// Every computation is a read-only function of the store's history: nothing
// here writes, holds shared mutable state or needs locking, so any number of
// calls may run in parallel. A call returns a complete result or an error,
// never a partial result.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
	"github.com/hackgods/rehab-care-coordination/internal/metrics"
)

// Cache is an optional read-through store for computed results. Get reports
// the patient's cache generation; Set must discard the value when the
// generation has moved on since.
type Cache interface {
	Get(ctx context.Context, patientID uuid.UUID, key string, dst any) (gen int64, hit bool, err error)
	Set(ctx context.Context, patientID uuid.UUID, key string, gen int64, value any) error
}

type Option func(*base)

func WithLogger(log zerolog.Logger) Option {
	return func(b *base) { b.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

func WithCache(c Cache) Option {
	return func(b *base) { b.cache = c }
}

// WithClock overrides time.Now, used by trailing window rules.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// base carries the ambient dependencies shared by every component.
type base struct {
	store   clinical.Reader
	log     zerolog.Logger
	metrics *metrics.Metrics
	cache   Cache
	now     func() time.Time
}

func newBase(store clinical.Reader, component string, opts []Option) base {
	b := base{
		store: store,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.With().Str("component", component).Logger()
	return b
}

func (b *base) observe(op string, start time.Time, err error) {
	b.metrics.ObserveAnalytics(op, time.Since(start), err)
	if err != nil {
		b.log.Error().Err(err).Str("operation", op).Msg("analytics computation failed")
	}
}

// cached serves key from the cache when possible and stores fresh results.
// Cache failures are logged and never fail the computation.
func cached[T any](ctx context.Context, b *base, patientID uuid.UUID, key string, compute func() (T, error)) (T, error) {
	if b.cache == nil {
		return compute()
	}

	var hit T
	gen, ok, readErr := b.cache.Get(ctx, patientID, key, &hit)
	if readErr != nil {
		b.log.Warn().Err(readErr).Str("key", key).Msg("analytics cache read failed")
	}
	b.metrics.ObserveCache(ok)
	if ok {
		return hit, nil
	}

	value, err := compute()
	if err != nil || readErr != nil {
		return value, err
	}
	if err := b.cache.Set(ctx, patientID, key, gen, value); err != nil {
		b.log.Warn().Err(err).Str("key", key).Msg("analytics cache write failed")
	}
	return value, nil
}

func requirePatient(patientID uuid.UUID) error {
	if patientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	return nil
}

func requirePatientWindow(patientID uuid.UUID, w clinical.Window) error {
	if err := requirePatient(patientID); err != nil {
		return err
	}
	return w.Validate()
}

func windowKey(w clinical.Window) string {
	format := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	return format(w.Start) + ".." + format(w.End)
}
