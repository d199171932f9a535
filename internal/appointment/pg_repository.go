package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/rehab-care-coordination/internal/db"
)

// lockTimeout bounds how long a booking waits on the slot row lock before the
// attempt fails as a transient conflict.
const lockTimeout = "3s"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSlot(row pgx.Row) (*AppointmentSlot, error) {
	var s AppointmentSlot

	err := row.Scan(
		&s.ID,
		&s.ClinicianID,
		&s.StartTime,
		&s.EndTime,
		&s.IsBooked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.BookedBy,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// Interface methods

func (r *PgRepository) BookSlot(ctx context.Context, slotID, patientID, bookedBy uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, db.Classify("begin booking transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+lockTimeout+"'"); err != nil {
		return nil, db.Classify("set lock timeout", err)
	}

	// The availability check and the row lock are one statement. A concurrent
	// booking blocks here and, once the winner commits, re-evaluates
	// is_booked = false against the new row version and gets no rows.
	var lockedID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM appointment_slots
		WHERE id = $1
		  AND is_booked = false
		FOR UPDATE
	`, slotID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, db.Classify("lock slot", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointment_slots
		SET is_booked = true,
		    updated_at = now()
		WHERE id = $1
	`, slotID); err != nil {
		return nil, db.Classify("mark slot booked", err)
	}

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, patient_id, booked_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'scheduled', now(), now())
		RETURNING id, slot_id, patient_id, booked_by, status, created_at, updated_at
	`, uuid.New(), slotID, patientID, bookedBy))
	if err != nil {
		if db.IsUniqueViolation(err, "appointments_slot_id_key") {
			return nil, ErrSlotUnavailable
		}
		return nil, db.Classify("insert appointment", err)
	}

	payload, err := bookedEventPayload(slotID, patientID, bookedBy)
	if err != nil {
		return nil, err
	}
	if err := insertEvent(ctx, tx, EventLog{
		EventType:     EventAppointmentBooked,
		AppointmentID: &appt.ID,
		Payload:       payload,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		err = db.ClassifyCommit("commit booking", err)
		if errors.Is(err, db.ErrCommitUnknown) && r.appointmentExists(ctx, appt.ID) {
			return appt, nil
		}
		return nil, err
	}

	return appt, nil
}

// appointmentExists checks on a fresh connection whether a booking whose
// commit outcome was lost did land.
func (r *PgRepository) appointmentExists(ctx context.Context, id uuid.UUID) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists)
	return err == nil && exists
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot *AppointmentSlot) error {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}

	created, err := scanSlot(r.pool.QueryRow(ctx, `
		INSERT INTO appointment_slots (id, clinician_id, start_time, end_time, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, now(), now())
		RETURNING id, clinician_id, start_time, end_time, is_booked, created_at, updated_at
	`, slot.ID, slot.ClinicianID, slot.StartTime, slot.EndTime))
	if err != nil {
		return db.Classify("insert slot", err)
	}

	*slot = *created
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinician_id, start_time, end_time, is_booked, created_at, updated_at
		FROM appointment_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, filter SlotFilter) ([]AppointmentSlot, error) {
	var clinician *uuid.UUID
	if filter.ClinicianID != uuid.Nil {
		clinician = &filter.ClinicianID
	}
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, clinician_id, start_time, end_time, is_booked, created_at, updated_at
		FROM appointment_slots
		WHERE is_booked = false
		  AND ($1::uuid IS NULL OR clinician_id = $1)
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR start_time <= $3)
		ORDER BY start_time ASC
		LIMIT $4
	`, clinician, db.NullableTime(filter.From), db.NullableTime(filter.To), limit)
	if err != nil {
		return nil, db.Classify("list open slots", err)
	}
	defer rows.Close()

	var result []AppointmentSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, db.Classify("iterate open slots", err)
	}

	return result, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev EventLog) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, db.NullableTime(ev.CreatedAt))
	if err != nil {
		return db.Classify("insert event log", err)
	}
	return nil
}

var _ Repository = (*PgRepository)(nil)
var _ Repository = (*MemoryRepository)(nil)
