package clinical

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
	"github.com/hackgods/rehab-care-coordination/internal/db"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const snapshotColumns = `id, patient_id, recorded_at, mood, symptom_score, mobility_score,
	exercise_completed, blood_pressure_systolic, blood_pressure_diastolic,
	medication_adherence_score, notes, tags`

func scanSnapshot(row pgx.Row) (*ProgressSnapshot, error) {
	var s ProgressSnapshot
	err := row.Scan(
		&s.ID,
		&s.PatientID,
		&s.RecordedAt,
		&s.Mood,
		&s.SymptomScore,
		&s.MobilityScore,
		&s.ExerciseCompleted,
		&s.BloodPressureSystolic,
		&s.BloodPressureDiastolic,
		&s.MedicationAdherenceScore,
		&s.Notes,
		&s.Tags,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanEvent(row pgx.Row, kind EventKind) (*AdherenceEvent, error) {
	var e AdherenceEvent
	var status string
	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.AssignmentID,
		&status,
		&e.LoggedAt,
		&e.Notes,
	)
	if err != nil {
		return nil, err
	}
	e.Kind = kind
	e.Status = AdherenceStatus(status)
	return &e, nil
}

func describe(kind EventKind) (KindDescriptor, error) {
	d, ok := Describe(kind)
	if !ok {
		return KindDescriptor{}, apperr.Validation("invalid event kind %q", kind)
	}
	return d, nil
}

func (r *PgStore) AdherenceEvents(ctx context.Context, patientID uuid.UUID, kind EventKind, w Window) ([]AdherenceEvent, error) {
	d, err := describe(kind)
	if err != nil {
		return nil, err
	}

	// Table names come from the fixed descriptor set, never from input.
	query := fmt.Sprintf(`
		SELECT id, patient_id, assignment_id, status, logged_at, notes
		FROM %s
		WHERE patient_id = $1
		  AND ($2::timestamptz IS NULL OR logged_at >= $2)
		  AND ($3::timestamptz IS NULL OR logged_at <= $3)
		ORDER BY logged_at ASC
	`, d.LogTable)

	rows, err := r.pool.Query(ctx, query, patientID, db.NullableTime(w.Start), db.NullableTime(w.End))
	if err != nil {
		return nil, db.Classify("query adherence events", err)
	}
	defer rows.Close()

	var result []AdherenceEvent
	for rows.Next() {
		e, err := scanEvent(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan adherence event: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("iterate adherence events", err)
	}
	return result, nil
}

func (r *PgStore) AssignmentNames(ctx context.Context, kind EventKind, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	d, err := describe(kind)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query := fmt.Sprintf(`
		SELECT a.id, c.name
		FROM %s a
		JOIN %s c ON c.id = a.%s
		WHERE a.id = ANY($1::uuid[])
	`, d.AssignmentTable, d.CatalogTable, d.CatalogFK)

	rows, err := r.pool.Query(ctx, query, lo.Map(ids, func(id uuid.UUID, _ int) string { return id.String() }))
	if err != nil {
		return nil, db.Classify("resolve assignment names", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan assignment name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("iterate assignment names", err)
	}
	return names, nil
}

func (r *PgStore) Snapshots(ctx context.Context, patientID uuid.UUID, w Window, order SortOrder) ([]ProgressSnapshot, error) {
	direction := "ASC"
	if order == Descending {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM progress_snapshots
		WHERE patient_id = $1
		  AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		  AND ($3::timestamptz IS NULL OR recorded_at <= $3)
		ORDER BY recorded_at %s
	`, snapshotColumns, direction)

	return r.querySnapshots(ctx, query, patientID, db.NullableTime(w.Start), db.NullableTime(w.End))
}

func (r *PgStore) RecentSnapshots(ctx context.Context, patientID uuid.UUID, limit int) ([]ProgressSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM progress_snapshots
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, snapshotColumns)

	return r.querySnapshots(ctx, query, patientID, limit)
}

func (r *PgStore) querySnapshots(ctx context.Context, query string, args ...any) ([]ProgressSnapshot, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify("query snapshots", err)
	}
	defer rows.Close()

	var result []ProgressSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("iterate snapshots", err)
	}
	return result, nil
}

func (r *PgStore) AppendSnapshot(ctx context.Context, s *ProgressSnapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO progress_snapshots (`+snapshotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		s.ID, s.PatientID, s.RecordedAt, s.Mood, s.SymptomScore, s.MobilityScore,
		s.ExerciseCompleted, s.BloodPressureSystolic, s.BloodPressureDiastolic,
		s.MedicationAdherenceScore, s.Notes, tags,
	)
	if err != nil {
		return db.Classify("insert snapshot", err)
	}
	return nil
}

func (r *PgStore) AppendAdherenceEvent(ctx context.Context, e *AdherenceEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	d, err := describe(e.Kind)
	if err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	// The assignment must belong to the same patient.
	query := fmt.Sprintf(`
		INSERT INTO %s (id, patient_id, assignment_id, status, logged_at, notes)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM %s WHERE id = $3 AND patient_id = $2)
	`, d.LogTable, d.AssignmentTable)

	tag, err := r.pool.Exec(ctx, query, e.ID, e.PatientID, e.AssignmentID, string(e.Status), e.LoggedAt, e.Notes)
	if err != nil {
		return db.Classify("insert adherence event", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(string(e.Kind)+" assignment", nil)
	}
	return nil
}

func (r *PgStore) ActivePatients(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT patient_id FROM progress_snapshots WHERE recorded_at >= $1
		UNION
		SELECT patient_id FROM medication_logs WHERE logged_at >= $1
		UNION
		SELECT patient_id FROM exercise_logs WHERE logged_at >= $1
		UNION
		SELECT patient_id FROM meal_logs WHERE logged_at >= $1
	`, since)
	if err != nil {
		return nil, db.Classify("query active patients", err)
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan patient id: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("iterate active patients", err)
	}
	return result, nil
}
