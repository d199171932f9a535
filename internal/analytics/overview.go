package analytics

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

type PatientOverview struct {
	PatientID    uuid.UUID                            `json:"patient_id"`
	Progress     *ProgressReport                      `json:"progress"`
	HealthTrends *HealthTrends                        `json:"health_trends"`
	Alerts       []Alert                              `json:"alerts"`
	Adherence    map[clinical.EventKind]AdherenceStats `json:"adherence"`
}

// Overview fans the independent read side computations out in parallel.
type Overview struct {
	aggregator *Aggregator
	reports    *ReportBuilder
	alerts     *AlertEngine
}

func NewOverview(aggregator *Aggregator, reports *ReportBuilder, alerts *AlertEngine) *Overview {
	return &Overview{aggregator: aggregator, reports: reports, alerts: alerts}
}

// Build fails as a whole if any part fails.
func (o *Overview) Build(ctx context.Context, patientID uuid.UUID, w clinical.Window) (*PatientOverview, error) {
	if err := requirePatientWindow(patientID, w); err != nil {
		return nil, err
	}

	out := &PatientOverview{PatientID: patientID}
	kinds := clinical.Kinds()
	adherence := make([]AdherenceStats, len(kinds))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := o.reports.BuildProgressReport(gctx, patientID, w)
		out.Progress = r
		return err
	})
	g.Go(func() error {
		t, err := o.reports.BuildHealthTrends(gctx, patientID, w)
		out.HealthTrends = t
		return err
	})
	g.Go(func() error {
		a, err := o.alerts.GeneratePredictiveAlerts(gctx, patientID)
		out.Alerts = a
		return err
	})
	for i, kind := range kinds {
		g.Go(func() error {
			stats, err := o.aggregator.ComputeAdherenceStats(gctx, patientID, kind, w)
			adherence[i] = stats
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Adherence = make(map[clinical.EventKind]AdherenceStats, len(kinds))
	for i, kind := range kinds {
		out.Adherence[kind] = adherence[i]
	}
	return out, nil
}
