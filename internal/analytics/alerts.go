package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
	"github.com/hackgods/rehab-care-coordination/internal/config"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rule identifiers, stable across releases.
const (
	RuleMedicationDecline = "medication_decline"
	RuleDecliningMobility = "declining_mobility"
	RuleSymptomSeverity   = "symptom_severity"
	RuleExerciseMissed    = "exercise_missed_streak"
)

type Alert struct {
	Rule           string   `json:"rule"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

// Thresholds configures every alert rule. It is passed and stored by value so
// an engine's thresholds cannot change after construction.
type Thresholds struct {
	// Missed medication events in the lookback that raise a high alert.
	MissedMedicationCount    int
	MissedMedicationLookback time.Duration
	// Number of most recent snapshots the snapshot rules look at.
	RecentSnapshots int
	// A snapshot is severe at or above SymptomSeverity; SymptomCount severe
	// snapshots among the recent ones fire the rule.
	SymptomSeverity int
	SymptomCount    int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MissedMedicationCount:    3,
		MissedMedicationLookback: 7 * 24 * time.Hour,
		RecentSnapshots:          3,
		SymptomSeverity:          7,
		SymptomCount:             2,
	}
}

// ThresholdsFromConfig applies the env overrides on top of the defaults.
func ThresholdsFromConfig(cfg config.AlertConfig) Thresholds {
	t := DefaultThresholds()
	if cfg.MissedMedicationCount > 0 {
		t.MissedMedicationCount = cfg.MissedMedicationCount
	}
	if cfg.MissedMedicationLookback > 0 {
		t.MissedMedicationLookback = cfg.MissedMedicationLookback
	}
	if cfg.SymptomSeverity > 0 {
		t.SymptomSeverity = cfg.SymptomSeverity
	}
	if cfg.SymptomCount > 0 {
		t.SymptomCount = cfg.SymptomCount
	}
	return t
}

func (t Thresholds) Validate() error {
	switch {
	case t.MissedMedicationCount <= 0:
		return apperr.Validation("missed medication count must be positive")
	case t.MissedMedicationLookback <= 0:
		return apperr.Validation("missed medication lookback must be positive")
	case t.RecentSnapshots < 2:
		return apperr.Validation("recent snapshot count must be at least 2")
	case t.SymptomSeverity < 0 || t.SymptomSeverity > 10:
		return apperr.Validation("symptom severity must be between 0 and 10")
	case t.SymptomCount <= 0 || t.SymptomCount > t.RecentSnapshots:
		return apperr.Validation("symptom count must be between 1 and the recent snapshot count")
	}
	return nil
}

// ruleInput is everything a rule may look at.
type ruleInput struct {
	missedMedication int
	recent           []clinical.ProgressSnapshot // most recent first
	thresholds       Thresholds
}

type rule func(in ruleInput) (Alert, bool)

// rules run in this order and independently of each other.
var rules = []rule{
	medicationDecline,
	decliningMobility,
	symptomSeverity,
	exerciseMissedStreak,
}

type AlertEngine struct {
	base
	thresholds Thresholds
}

func NewAlertEngine(store clinical.Reader, thresholds Thresholds, opts ...Option) (*AlertEngine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &AlertEngine{
		base:       newBase(store, "alerts", opts),
		thresholds: thresholds,
	}, nil
}

func (e *AlertEngine) Thresholds() Thresholds {
	return e.thresholds
}

// GeneratePredictiveAlerts evaluates every rule against the patient's recent
// history. The result is empty, never nil, when nothing fires.
func (e *AlertEngine) GeneratePredictiveAlerts(ctx context.Context, patientID uuid.UUID) (alerts []Alert, err error) {
	start := time.Now()
	defer func() { e.observe("alerts", start, err) }()

	if err := requirePatient(patientID); err != nil {
		return nil, err
	}

	window := clinical.Trailing(e.now(), e.thresholds.MissedMedicationLookback)
	events, err := e.store.AdherenceEvents(ctx, patientID, clinical.KindMedication, window)
	if err != nil {
		return nil, fmt.Errorf("load medication events: %w", err)
	}

	recent, err := e.store.RecentSnapshots(ctx, patientID, e.thresholds.RecentSnapshots)
	if err != nil {
		return nil, fmt.Errorf("load recent snapshots: %w", err)
	}
	if len(recent) > e.thresholds.RecentSnapshots {
		recent = recent[:e.thresholds.RecentSnapshots]
	}

	in := ruleInput{
		missedMedication: lo.CountBy(events, func(ev clinical.AdherenceEvent) bool {
			return ev.Status == clinical.StatusMissed
		}),
		recent:     recent,
		thresholds: e.thresholds,
	}

	alerts = make([]Alert, 0, len(rules))
	for _, r := range rules {
		if a, ok := r(in); ok {
			alerts = append(alerts, a)
			e.metrics.IncAlert(string(a.Severity))
		}
	}

	if len(alerts) > 0 {
		e.log.Info().
			Str("patient_id", patientID.String()).
			Strs("rules", lo.Map(alerts, func(a Alert, _ int) string { return a.Rule })).
			Msg("predictive alerts raised")
	}
	return alerts, nil
}

func medicationDecline(in ruleInput) (Alert, bool) {
	if in.missedMedication < in.thresholds.MissedMedicationCount {
		return Alert{}, false
	}
	days := int(in.thresholds.MissedMedicationLookback / (24 * time.Hour))
	return Alert{
		Rule:           RuleMedicationDecline,
		Severity:       SeverityHigh,
		Title:          "Medication Adherence Declined",
		Message:        fmt.Sprintf("%d medication doses were missed in the last %d days.", in.missedMedication, days),
		Recommendation: "Review the medication schedule with the caregiver and consider reminders or a simpler regimen.",
	}, true
}

// decliningMobility fires when mobility never rose across the recent
// snapshots. Equal consecutive scores count as decline.
func decliningMobility(in ruleInput) (Alert, bool) {
	n := in.thresholds.RecentSnapshots
	if len(in.recent) < n {
		return Alert{}, false
	}
	for _, s := range in.recent[:n] {
		if s.MobilityScore == nil {
			return Alert{}, false
		}
	}
	for i := 1; i < n; i++ {
		newer, older := *in.recent[i-1].MobilityScore, *in.recent[i].MobilityScore
		if newer > older {
			return Alert{}, false
		}
	}
	return Alert{
		Rule:     RuleDecliningMobility,
		Severity: SeverityMedium,
		Title:    "Declining Mobility",
		Message: fmt.Sprintf("Mobility has not improved over the last %d check-ins (from %d to %d).",
			n, *in.recent[n-1].MobilityScore, *in.recent[0].MobilityScore),
		Recommendation: "Schedule a physiotherapy review and reassess the exercise plan.",
	}, true
}

func symptomSeverity(in ruleInput) (Alert, bool) {
	n := in.thresholds.RecentSnapshots
	if len(in.recent) < n {
		return Alert{}, false
	}
	severe := lo.CountBy(in.recent[:n], func(s clinical.ProgressSnapshot) bool {
		return s.SymptomScore != nil && *s.SymptomScore >= in.thresholds.SymptomSeverity
	})
	if severe < in.thresholds.SymptomCount {
		return Alert{}, false
	}
	return Alert{
		Rule:     RuleSymptomSeverity,
		Severity: SeverityMedium,
		Title:    "Symptom Severity Increased",
		Message: fmt.Sprintf("%d of the last %d check-ins reported a symptom score of %d or higher.",
			severe, n, in.thresholds.SymptomSeverity),
		Recommendation: "Contact the care team to review symptoms. Seek urgent care if symptoms worsen suddenly.",
	}, true
}

// exerciseMissedStreak needs an explicit false on every recent snapshot; an
// unknown value breaks the streak.
func exerciseMissedStreak(in ruleInput) (Alert, bool) {
	n := in.thresholds.RecentSnapshots
	if len(in.recent) < n {
		return Alert{}, false
	}
	for _, s := range in.recent[:n] {
		if s.ExerciseCompleted == nil || *s.ExerciseCompleted {
			return Alert{}, false
		}
	}
	return Alert{
		Rule:           RuleExerciseMissed,
		Severity:       SeverityLow,
		Title:          "Rehabilitation Exercises Missed",
		Message:        fmt.Sprintf("Rehabilitation exercises were not completed in the last %d check-ins.", n),
		Recommendation: "Encourage short, achievable sessions and check for barriers such as pain or fatigue.",
	}, true
}
