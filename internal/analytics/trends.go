package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

// Blood pressure stability buckets.
const (
	StabilityVeryStable = "Very Stable"
	StabilityStable     = "Stable"
	StabilityModerate   = "Moderate"
	StabilityUnstable   = "Unstable"
	StabilityUnknown    = "Unknown"
)

// HealthTrends is the wider window summary shown next to the alert list.
type HealthTrends struct {
	PatientID              uuid.UUID      `json:"patient_id"`
	ReadingCount           int            `json:"blood_pressure_readings"`
	SystolicMean           *float64       `json:"systolic_mean,omitempty"`
	DiastolicMean          *float64       `json:"diastolic_mean,omitempty"`
	SystolicStdDev         *float64       `json:"systolic_std_dev,omitempty"`
	BloodPressureStability string         `json:"blood_pressure_stability"`
	MobilityChange         *float64       `json:"mobility_change,omitempty"`
	SymptomChange          *float64       `json:"symptom_change,omitempty"`
	MoodCounts             map[string]int `json:"mood_counts"`
}

// ClassifyStability buckets the population standard deviation of systolic
// readings. No readings is Unknown.
func ClassifyStability(systolic []float64) string {
	if len(systolic) == 0 {
		return StabilityUnknown
	}
	sd := populationStdDev(systolic)
	switch {
	case sd < 10:
		return StabilityVeryStable
	case sd < 20:
		return StabilityStable
	case sd < 30:
		return StabilityModerate
	default:
		return StabilityUnstable
	}
}

// BuildHealthTrends computes blood pressure stability and score drift over w.
func (r *ReportBuilder) BuildHealthTrends(ctx context.Context, patientID uuid.UUID, w clinical.Window) (trends *HealthTrends, err error) {
	start := time.Now()
	defer func() { r.observe("health_trends", start, err) }()

	if err := requirePatientWindow(patientID, w); err != nil {
		return nil, err
	}

	return cached(ctx, &r.base, patientID, "trends:"+windowKey(w), func() (*HealthTrends, error) {
		snapshots, err := r.store.Snapshots(ctx, patientID, w, clinical.Ascending)
		if err != nil {
			return nil, fmt.Errorf("load snapshots: %w", err)
		}
		trends := healthTrends(snapshots)
		trends.PatientID = patientID
		return trends, nil
	})
}

func healthTrends(snapshots []clinical.ProgressSnapshot) *HealthTrends {
	var systolic, diastolic, mobility, symptoms []float64
	moods := make(map[string]int)

	for _, s := range snapshots {
		if s.BloodPressureSystolic != nil {
			systolic = append(systolic, float64(*s.BloodPressureSystolic))
		}
		if s.BloodPressureDiastolic != nil {
			diastolic = append(diastolic, float64(*s.BloodPressureDiastolic))
		}
		if s.MobilityScore != nil {
			mobility = append(mobility, float64(*s.MobilityScore))
		}
		if s.SymptomScore != nil {
			symptoms = append(symptoms, float64(*s.SymptomScore))
		}
		if s.Mood != nil && *s.Mood != "" {
			moods[*s.Mood]++
		}
	}

	t := &HealthTrends{
		ReadingCount:           len(systolic),
		SystolicMean:           mean(systolic),
		DiastolicMean:          mean(diastolic),
		BloodPressureStability: ClassifyStability(systolic),
		MobilityChange:         change(mobility),
		SymptomChange:          change(symptoms),
		MoodCounts:             moods,
	}
	if len(systolic) > 0 {
		sd := populationStdDev(systolic)
		t.SystolicStdDev = &sd
	}
	return t
}

// change is last minus first, nil with fewer than two values.
func change(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	d := values[len(values)-1] - values[0]
	return &d
}
