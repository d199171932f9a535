package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/rehab-care-coordination/internal/analytics"
	"github.com/hackgods/rehab-care-coordination/internal/appointment"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

type CreateSlotRequest struct {
	ClinicianID string    `json:"clinician_id" validate:"required,uuid"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type BookSlotRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
}

type RecordSnapshotRequest struct {
	RecordedAt               *time.Time `json:"recorded_at"`
	Mood                     *string    `json:"mood" validate:"omitempty,max=64"`
	SymptomScore             *int       `json:"symptom_score" validate:"omitempty,min=0,max=10"`
	MobilityScore            *int       `json:"mobility_score" validate:"omitempty,min=0,max=100"`
	ExerciseCompleted        *bool      `json:"exercise_completed"`
	BloodPressureSystolic    *int       `json:"blood_pressure_systolic" validate:"omitempty,gt=0,lt=400"`
	BloodPressureDiastolic   *int       `json:"blood_pressure_diastolic" validate:"omitempty,gt=0,lt=300"`
	MedicationAdherenceScore *float64   `json:"medication_adherence_score" validate:"omitempty,min=0,max=100"`
	Notes                    *string    `json:"notes" validate:"omitempty,max=2000"`
	Tags                     []string   `json:"tags" validate:"omitempty,max=20,dive,min=1,max=64"`
}

func (r RecordSnapshotRequest) toSnapshot(patientID uuid.UUID) *clinical.ProgressSnapshot {
	s := &clinical.ProgressSnapshot{
		PatientID:                patientID,
		Mood:                     r.Mood,
		SymptomScore:             r.SymptomScore,
		MobilityScore:            r.MobilityScore,
		ExerciseCompleted:        r.ExerciseCompleted,
		BloodPressureSystolic:    r.BloodPressureSystolic,
		BloodPressureDiastolic:   r.BloodPressureDiastolic,
		MedicationAdherenceScore: r.MedicationAdherenceScore,
		Notes:                    r.Notes,
		Tags:                     r.Tags,
	}
	if r.RecordedAt != nil {
		s.RecordedAt = r.RecordedAt.UTC()
	}
	return s
}

type RecordAdherenceRequest struct {
	AssignmentID string     `json:"assignment_id" validate:"required,uuid"`
	Status       string     `json:"status" validate:"required,oneof=taken missed delayed"`
	LoggedAt     *time.Time `json:"logged_at"`
	Notes        *string    `json:"notes" validate:"omitempty,max=2000"`
}

type SlotResponse struct {
	ID          uuid.UUID `json:"id"`
	ClinicianID uuid.UUID `json:"clinician_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsBooked    bool      `json:"is_booked"`
}

func newSlotResponse(s appointment.AppointmentSlot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		ClinicianID: s.ClinicianID,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		IsBooked:    s.IsBooked,
	}
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	BookedBy  uuid.UUID `json:"booked_by"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		SlotID:    a.SlotID,
		PatientID: a.PatientID,
		BookedBy:  a.BookedBy,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

type SnapshotResponse struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

type AdherenceEventResponse struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	LoggedAt     time.Time `json:"logged_at"`
}

type AdherenceResponse struct {
	PatientID uuid.UUID                `json:"patient_id"`
	Kind      string                   `json:"kind"`
	Start     *time.Time               `json:"start,omitempty"`
	End       *time.Time               `json:"end,omitempty"`
	Total     int                      `json:"total"`
	Items     analytics.AdherenceStats `json:"items"`
}

type AlertsResponse struct {
	PatientID uuid.UUID         `json:"patient_id"`
	Alerts    []analytics.Alert `json:"alerts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
