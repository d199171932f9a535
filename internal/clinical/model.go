package clinical

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
)

type AdherenceStatus string

const (
	StatusTaken   AdherenceStatus = "taken"
	StatusMissed  AdherenceStatus = "missed"
	StatusDelayed AdherenceStatus = "delayed"
)

func (s AdherenceStatus) Valid() bool {
	switch s {
	case StatusTaken, StatusMissed, StatusDelayed:
		return true
	}
	return false
}

func ParseAdherenceStatus(raw string) (AdherenceStatus, error) {
	s := AdherenceStatus(raw)
	if !s.Valid() {
		return "", apperr.Validation("invalid adherence status %q, want taken, missed or delayed", raw)
	}
	return s, nil
}

// EventKind names the catalog an adherence event is logged against.
type EventKind string

const (
	KindMedication EventKind = "medication"
	KindExercise   EventKind = "exercise"
	KindFood       EventKind = "food"
)

func ParseEventKind(raw string) (EventKind, error) {
	k := EventKind(raw)
	if _, ok := descriptors[k]; !ok {
		return "", apperr.Validation("invalid event kind %q, want medication, exercise or food", raw)
	}
	return k, nil
}

// ProgressSnapshot is a point in time clinical measurement for one patient.
// Every measurement is optional; nil means "not recorded".
type ProgressSnapshot struct {
	ID                       uuid.UUID
	PatientID                uuid.UUID
	RecordedAt               time.Time
	Mood                     *string
	SymptomScore             *int
	MobilityScore            *int
	ExerciseCompleted        *bool
	BloodPressureSystolic    *int
	BloodPressureDiastolic   *int
	MedicationAdherenceScore *float64
	Notes                    *string
	Tags                     []string
}

func (s *ProgressSnapshot) Validate() error {
	if s.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if s.RecordedAt.IsZero() {
		return apperr.Validation("recorded_at is required")
	}
	if s.SymptomScore != nil && (*s.SymptomScore < 0 || *s.SymptomScore > 10) {
		return apperr.Validation("symptom_score must be between 0 and 10")
	}
	if s.MobilityScore != nil && (*s.MobilityScore < 0 || *s.MobilityScore > 100) {
		return apperr.Validation("mobility_score must be between 0 and 100")
	}
	if s.BloodPressureSystolic != nil && *s.BloodPressureSystolic <= 0 {
		return apperr.Validation("blood_pressure_systolic must be positive")
	}
	if s.BloodPressureDiastolic != nil && *s.BloodPressureDiastolic <= 0 {
		return apperr.Validation("blood_pressure_diastolic must be positive")
	}
	return nil
}

// AdherenceEvent records one taken/missed/delayed occurrence against an assignment.
type AdherenceEvent struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	AssignmentID uuid.UUID
	Kind         EventKind
	Status       AdherenceStatus
	LoggedAt     time.Time
	Notes        *string
}

func (e *AdherenceEvent) Validate() error {
	if e.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if e.AssignmentID == uuid.Nil {
		return apperr.Validation("assignment_id is required")
	}
	if _, ok := descriptors[e.Kind]; !ok {
		return apperr.Validation("invalid event kind %q", e.Kind)
	}
	if !e.Status.Valid() {
		return apperr.Validation("invalid adherence status %q", e.Status)
	}
	if e.LoggedAt.IsZero() {
		return apperr.Validation("logged_at is required")
	}
	return nil
}

// Assignment links a patient to a catalog item of one kind.
type Assignment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	Kind       EventKind
	ItemID     uuid.UUID
	ItemName   string
	AssignedBy uuid.UUID
}
