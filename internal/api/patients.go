package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/rehab-care-coordination/internal/analytics"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

func adherenceHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuidParam(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		kind, err := clinical.ParseEventKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		window, err := windowQuery(r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		stats, err := agg.ComputeAdherenceStats(r.Context(), patientID, kind, window)
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AdherenceResponse{
			PatientID: patientID,
			Kind:      string(kind),
			Start:     timePtr(window.Start),
			End:       timePtr(window.End),
			Total:     stats.Total(),
			Items:     stats,
		})
	}
}

func progressReportHandler(reports *analytics.ReportBuilder) http.HandlerFunc {
	return windowed(func(r *http.Request, patientID uuid.UUID, window clinical.Window) (any, error) {
		return reports.BuildProgressReport(r.Context(), patientID, window)
	})
}

func healthTrendsHandler(reports *analytics.ReportBuilder) http.HandlerFunc {
	return windowed(func(r *http.Request, patientID uuid.UUID, window clinical.Window) (any, error) {
		return reports.BuildHealthTrends(r.Context(), patientID, window)
	})
}

func overviewHandler(overview *analytics.Overview) http.HandlerFunc {
	return windowed(func(r *http.Request, patientID uuid.UUID, window clinical.Window) (any, error) {
		return overview.Build(r.Context(), patientID, window)
	})
}

// windowed handles the GET /patients/{id}/...?start=&end= shape shared by the
// read side.
func windowed(compute func(r *http.Request, patientID uuid.UUID, window clinical.Window) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuidParam(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		window, err := windowQuery(r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		result, err := compute(r, patientID, window)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func alertsHandler(engine *analytics.AlertEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuidParam(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		alerts, err := engine.GeneratePredictiveAlerts(r.Context(), patientID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AlertsResponse{PatientID: patientID, Alerts: alerts})
	}
}

func recordSnapshotHandler(rec *clinical.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuidParam(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		var req RecordSnapshotRequest
		if err := decodeJSON(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}

		snapshot := req.toSnapshot(patientID)
		if err := rec.RecordSnapshot(r.Context(), snapshot); err != nil {
			writeAppError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, SnapshotResponse{
			ID:         snapshot.ID,
			PatientID:  snapshot.PatientID,
			RecordedAt: snapshot.RecordedAt,
		})
	}
}

func recordAdherenceHandler(rec *clinical.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuidParam(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		kind, err := clinical.ParseEventKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		var req RecordAdherenceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}

		event := &clinical.AdherenceEvent{
			PatientID:    patientID,
			AssignmentID: uuid.MustParse(req.AssignmentID),
			Kind:         kind,
			Status:       clinical.AdherenceStatus(req.Status),
			Notes:        req.Notes,
		}
		if req.LoggedAt != nil {
			event.LoggedAt = req.LoggedAt.UTC()
		}
		if err := rec.RecordAdherence(r.Context(), event); err != nil {
			writeAppError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, AdherenceEventResponse{
			ID:           event.ID,
			PatientID:    event.PatientID,
			AssignmentID: event.AssignmentID,
			Kind:         string(event.Kind),
			Status:       string(event.Status),
			LoggedAt:     event.LoggedAt,
		})
	}
}
