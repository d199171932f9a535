package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
	"github.com/hackgods/rehab-care-coordination/internal/config"
	"github.com/hackgods/rehab-care-coordination/internal/metrics"
	redisclient "github.com/hackgods/rehab-care-coordination/internal/redis"
)

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	newBackOff func() backoff.BackOff
}

// NewService wires the booking coordinator. locker and m may be nil.
func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		cfg:     cfg,
		log:     log.With().Str("component", "booking").Logger(),
		metrics: m,
		newBackOff: func() backoff.BackOff {
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = 25 * time.Millisecond
			eb.MaxInterval = 500 * time.Millisecond
			eb.MaxElapsedTime = 0
			return eb
		},
	}
}

// BookSlot reserves slotID for patientID on behalf of requestingUserID.
// Of any number of concurrent calls for one slot at most one succeeds; the
// rest fail with ErrSlotUnavailable. Transient store conflicts are retried up
// to cfg.BookingMaxRetries times since nothing can have been committed.
func (s *Service) BookSlot(ctx context.Context, slotID, patientID, requestingUserID uuid.UUID) (*Appointment, error) {
	start := time.Now()

	if slotID == uuid.Nil {
		return nil, s.finish(start, apperr.Validation("slot_id is required"))
	}
	if patientID == uuid.Nil {
		return nil, s.finish(start, apperr.Validation("patient_id is required"))
	}
	if requestingUserID == uuid.Nil {
		return nil, s.finish(start, apperr.Validation("requesting user id is required"))
	}

	var booked *Appointment
	attempt := func() error {
		appt, err := s.attempt(ctx, slotID, patientID, requestingUserID)
		if err != nil {
			if apperr.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		booked = appt
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(s.newBackOff(), uint64(s.cfg.BookingMaxRetries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		s.metrics.IncBookingRetry()
		s.log.Warn().Err(err).
			Str("slot_id", slotID.String()).
			Dur("backoff", wait).
			Msg("transient booking conflict, retrying")
	}

	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		return nil, s.finish(start, err)
	}

	s.log.Info().
		Str("slot_id", slotID.String()).
		Str("patient_id", patientID.String()).
		Str("appointment_id", booked.ID.String()).
		Msg("slot booked")

	return booked, s.finish(start, nil)
}

func (s *Service) attempt(ctx context.Context, slotID, patientID, bookedBy uuid.UUID) (*Appointment, error) {
	if s.locker == nil {
		return s.repo.BookSlot(ctx, slotID, patientID, bookedBy)
	}

	var appt *Appointment
	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		var err error
		appt, err = s.repo.BookSlot(lockCtx, slotID, patientID, bookedBy)
		return err
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return nil, apperr.Transient("slot is busy, retry shortly", err)
	case errors.Is(err, redisclient.ErrLockUnavailable):
		// The row lock alone still guarantees a single winner.
		s.log.Warn().Err(err).
			Str("slot_id", slotID.String()).
			Msg("slot lock store unavailable, booking without it")
		return s.repo.BookSlot(ctx, slotID, patientID, bookedBy)
	}
	return appt, err
}

func (s *Service) finish(start time.Time, err error) error {
	outcome := "booked"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	s.metrics.ObserveBooking(outcome, time.Since(start))

	if err != nil && apperr.IsKind(err, apperr.KindInternal) {
		return fmt.Errorf("book slot: %w", err)
	}
	return err
}

// CreateSlot publishes a new open slot for a clinician.
func (s *Service) CreateSlot(ctx context.Context, clinicianID uuid.UUID, startTime, endTime time.Time) (*AppointmentSlot, error) {
	if clinicianID == uuid.Nil {
		return nil, apperr.Validation("clinician_id is required")
	}
	if startTime.IsZero() || endTime.IsZero() {
		return nil, apperr.Validation("start_time and end_time are required")
	}
	if !endTime.After(startTime) {
		return nil, apperr.Validation("end_time must be after start_time")
	}

	slot := &AppointmentSlot{
		ClinicianID: clinicianID,
		StartTime:   startTime,
		EndTime:     endTime,
	}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

// ListOpenSlots returns unbooked slots, earliest first. It is the path a
// caller takes after ErrSlotUnavailable.
func (s *Service) ListOpenSlots(ctx context.Context, filter SlotFilter) ([]AppointmentSlot, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, apperr.Validation("from must not be after to")
	}
	if filter.Limit <= 0 {
		filter.Limit = 50 // default
	}
	if filter.Limit > 500 {
		filter.Limit = 500 // max
	}

	slots, err := s.repo.ListOpenSlots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}
	return slots, nil
}

// GetSlot retrieves one slot by id.
func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	slot, err := s.repo.GetSlotByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}
