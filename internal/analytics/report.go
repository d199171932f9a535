package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

type TrendPoint struct {
	RecordedAt time.Time `json:"recorded_at"`
	Value      float64   `json:"value"`
}

type BloodPressurePoint struct {
	RecordedAt time.Time `json:"recorded_at"`
	Systolic   int       `json:"systolic"`
	Diastolic  int       `json:"diastolic"`
}

// Averages are null aware: a field is averaged only over the snapshots that
// recorded it, and is nil when none did.
type Averages struct {
	SymptomScore             *float64 `json:"symptom_score,omitempty"`
	MobilityScore            *float64 `json:"mobility_score,omitempty"`
	MedicationAdherenceScore *float64 `json:"medication_adherence_score,omitempty"`
}

type Trends struct {
	Symptom       []TrendPoint         `json:"symptom"`
	Mobility      []TrendPoint         `json:"mobility"`
	BloodPressure []BloodPressurePoint `json:"blood_pressure"`
}

type ProgressReport struct {
	PatientID                   uuid.UUID `json:"patient_id"`
	TotalEntries                int       `json:"total_entries"`
	ExerciseAdherencePercentage int       `json:"exercise_adherence_percentage"`
	Averages                    Averages  `json:"averages"`
	Trends                      Trends    `json:"trends"`
}

type ReportBuilder struct {
	base
}

func NewReportBuilder(store clinical.Reader, opts ...Option) *ReportBuilder {
	return &ReportBuilder{base: newBase(store, "progress_report", opts)}
}

// BuildProgressReport summarizes the patient's snapshots inside w.
func (r *ReportBuilder) BuildProgressReport(ctx context.Context, patientID uuid.UUID, w clinical.Window) (report *ProgressReport, err error) {
	start := time.Now()
	defer func() { r.observe("progress_report", start, err) }()

	if err := requirePatientWindow(patientID, w); err != nil {
		return nil, err
	}

	return cached(ctx, &r.base, patientID, "progress:"+windowKey(w), func() (*ProgressReport, error) {
		snapshots, err := r.store.Snapshots(ctx, patientID, w, clinical.Ascending)
		if err != nil {
			return nil, fmt.Errorf("load snapshots: %w", err)
		}
		report := summarize(snapshots)
		report.PatientID = patientID
		return report, nil
	})
}

// summarize expects snapshots in ascending order.
func summarize(snapshots []clinical.ProgressSnapshot) *ProgressReport {
	report := &ProgressReport{
		TotalEntries: len(snapshots),
		Trends: Trends{
			Symptom:       make([]TrendPoint, 0),
			Mobility:      make([]TrendPoint, 0),
			BloodPressure: make([]BloodPressurePoint, 0),
		},
	}

	completed := lo.CountBy(snapshots, func(s clinical.ProgressSnapshot) bool {
		return s.ExerciseCompleted != nil && *s.ExerciseCompleted
	})
	report.ExerciseAdherencePercentage = percentage(completed, len(snapshots))

	var symptoms, mobility, medication []float64
	for _, s := range snapshots {
		if s.SymptomScore != nil {
			v := float64(*s.SymptomScore)
			symptoms = append(symptoms, v)
			report.Trends.Symptom = append(report.Trends.Symptom, TrendPoint{RecordedAt: s.RecordedAt, Value: v})
		}
		if s.MobilityScore != nil {
			v := float64(*s.MobilityScore)
			mobility = append(mobility, v)
			report.Trends.Mobility = append(report.Trends.Mobility, TrendPoint{RecordedAt: s.RecordedAt, Value: v})
		}
		if s.MedicationAdherenceScore != nil {
			medication = append(medication, *s.MedicationAdherenceScore)
		}
		if s.BloodPressureSystolic != nil && s.BloodPressureDiastolic != nil {
			report.Trends.BloodPressure = append(report.Trends.BloodPressure, BloodPressurePoint{
				RecordedAt: s.RecordedAt,
				Systolic:   *s.BloodPressureSystolic,
				Diastolic:  *s.BloodPressureDiastolic,
			})
		}
	}

	report.Averages = Averages{
		SymptomScore:             mean(symptoms),
		MobilityScore:            mean(mobility),
		MedicationAdherenceScore: mean(medication),
	}
	return report
}

// percentage rounds half away from zero and is 0 for an empty denominator.
func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := lo.Sum(values) / float64(len(values))
	return &m
}

// populationStdDev divides by N, not N-1.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := lo.Sum(values) / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}
