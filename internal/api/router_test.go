package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/rehab-care-coordination/internal/analytics"
	"github.com/hackgods/rehab-care-coordination/internal/appointment"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
	"github.com/hackgods/rehab-care-coordination/internal/config"
	"github.com/hackgods/rehab-care-coordination/internal/metrics"
)

type testServer struct {
	handler http.Handler
	slots   *appointment.MemoryRepository
	store   *clinical.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	slots := appointment.NewMemoryRepository()
	store := clinical.NewMemoryStore()
	m := metrics.New("rehab_test")

	opts := []analytics.Option{analytics.WithMetrics(m)}
	engine, err := analytics.NewAlertEngine(store, analytics.DefaultThresholds(), opts...)
	require.NoError(t, err)
	agg := analytics.NewAggregator(store, opts...)
	reports := analytics.NewReportBuilder(store, opts...)

	handler := NewRouter(RouterConfig{
		Booking:    appointment.NewService(slots, nil, config.Config{BookingMaxRetries: 1}, zerolog.Nop(), m),
		Aggregator: agg,
		Reports:    reports,
		Alerts:     engine,
		Overview:   analytics.NewOverview(agg, reports, engine),
		Recorder:   clinical.NewRecorder(store, nil, zerolog.Nop()),
		Health: NewHealthHandler("test", "v0",
			Dependency{Name: "postgres", Check: func(context.Context) error { return nil }},
		),
		Metrics: m,
		Logger:  zerolog.Nop(),
	})

	return &testServer{handler: handler, slots: slots, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createSlot(t *testing.T) SlotResponse {
	t.Helper()
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	rec := s.do(t, http.MethodPost, "/slots", map[string]any{
		"clinician_id": uuid.NewString(),
		"start_time":   start,
		"end_time":     start.Add(30 * time.Minute),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SlotResponse](t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, map[string]string{"postgres": "ok"}, ready.Dependencies)
}

func TestReadinessDegradesOnOptionalDependency(t *testing.T) {
	down := func(context.Context) error { return errors.New("connection refused") }
	up := func(context.Context) error { return nil }

	cases := []struct {
		name   string
		deps   []Dependency
		code   int
		status string
	}{
		{
			name:   "optional down",
			deps:   []Dependency{{Name: "postgres", Check: up}, {Name: "redis", Check: down, Optional: true}},
			code:   http.StatusOK,
			status: "degraded",
		},
		{
			name:   "required down",
			deps:   []Dependency{{Name: "postgres", Check: down}, {Name: "redis", Check: up, Optional: true}},
			code:   http.StatusServiceUnavailable,
			status: "error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler("test", "v0", tc.deps...)
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.status, decode[ReadinessResponse](t, rec).Status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCreateSlotValidation(t *testing.T) {
	s := newTestServer(t)
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	rec := s.do(t, http.MethodPost, "/slots", map[string]any{
		"clinician_id": "not-a-uuid",
		"start_time":   start,
		"end_time":     start.Add(-time.Hour),
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", body.Error)
	assert.Contains(t, body.Details, "clinician_id must be a valid UUID")
	assert.Contains(t, body.Details, "end_time must be after start_time")
}

func TestBookSlotFlow(t *testing.T) {
	s := newTestServer(t)
	slot := s.createSlot(t)
	user := uuid.NewString()
	patient := uuid.New()

	rec := s.do(t, http.MethodPost, "/slots/"+slot.ID.String()+"/book",
		map[string]string{"patient_id": patient.String()},
		map[string]string{"X-User-ID": user})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, slot.ID, appt.SlotID)
	assert.Equal(t, patient, appt.PatientID)
	assert.Equal(t, user, appt.BookedBy.String())
	assert.Equal(t, "scheduled", appt.Status)

	rec = s.do(t, http.MethodPost, "/slots/"+slot.ID.String()+"/book",
		map[string]string{"patient_id": uuid.NewString()},
		map[string]string{"X-User-ID": user})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/slots", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]SlotResponse](t, rec), "booked slots are not listed")
}

func TestBookSlotRequiresUserHeader(t *testing.T) {
	s := newTestServer(t)
	slot := s.createSlot(t)

	rec := s.do(t, http.MethodPost, "/slots/"+slot.ID.String()+"/book",
		map[string]string{"patient_id": uuid.NewString()}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "X-User-ID")
}

func TestBookSlotConcurrentRequests(t *testing.T) {
	s := newTestServer(t)
	slot := s.createSlot(t)

	const n = 32
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := s.do(t, http.MethodPost, "/slots/"+slot.ID.String()+"/book",
				map[string]string{"patient_id": uuid.NewString()},
				map[string]string{"X-User-ID": uuid.NewString()})
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	created, conflicts := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, s.slots.Appointments(slot.ID), 1)
}

func TestListOpenSlotsFilters(t *testing.T) {
	s := newTestServer(t)
	slot := s.createSlot(t)

	rec := s.do(t, http.MethodGet, "/slots?clinician_id="+slot.ClinicianID.String()+"&from=2026-06-01&to=2026-06-01", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]SlotResponse](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, slot.ID, listed[0].ID)

	rec = s.do(t, http.MethodGet, "/slots?clinician_id="+uuid.NewString(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]SlotResponse](t, rec))

	rec = s.do(t, http.MethodGet, "/slots?from=yesterday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordAndReadAnalytics(t *testing.T) {
	s := newTestServer(t)
	patient := uuid.New()
	base := "/patients/" + patient.String()
	med := s.store.Assign(patient, clinical.KindMedication, "Aspirin", uuid.New())

	for _, status := range []string{"missed", "missed", "missed", "taken"} {
		rec := s.do(t, http.MethodPost, base+"/adherence/medication", map[string]any{
			"assignment_id": med.ID.String(),
			"status":        status,
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	for _, symptom := range []int{8, 3, 9} {
		rec := s.do(t, http.MethodPost, base+"/progress", map[string]any{
			"symptom_score":      symptom,
			"exercise_completed": true,
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, base+"/adherence/medication", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	adherence := decode[AdherenceResponse](t, rec)
	assert.Equal(t, 4, adherence.Total)
	assert.Equal(t, analytics.ItemStats{Total: 4, Taken: 1, Missed: 3}, adherence.Items["Aspirin"])

	rec = s.do(t, http.MethodGet, base+"/progress-report", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[analytics.ProgressReport](t, rec)
	assert.Equal(t, 3, report.TotalEntries)
	assert.Equal(t, 100, report.ExerciseAdherencePercentage)

	rec = s.do(t, http.MethodGet, base+"/alerts", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[AlertsResponse](t, rec)
	rules := make([]string, 0, len(alerts.Alerts))
	for _, a := range alerts.Alerts {
		rules = append(rules, a.Rule)
	}
	assert.Equal(t, []string{analytics.RuleMedicationDecline, analytics.RuleSymptomSeverity}, rules)

	rec = s.do(t, http.MethodGet, base+"/health-trends", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analytics.StabilityUnknown, decode[analytics.HealthTrends](t, rec).BloodPressureStability)

	rec = s.do(t, http.MethodGet, base+"/overview", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[analytics.PatientOverview](t, rec)
	assert.Equal(t, 3, overview.Progress.TotalEntries)
	assert.Len(t, overview.Alerts, 2)
}

func TestRecordSnapshotValidation(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/patients/"+uuid.NewString()+"/progress", map[string]any{
		"symptom_score":  12,
		"mobility_score": -1,
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode[ErrorResponse](t, rec).Details
	assert.Contains(t, details, "symptom_score must be at most 10")
	assert.Contains(t, details, "mobility_score must be at least 0")
}

func TestRecordAdherenceRejectsUnknownStatus(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/patients/"+uuid.NewString()+"/adherence/medication", map[string]any{
		"assignment_id": uuid.NewString(),
		"status":        "skipped",
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "status must be one of: taken, missed, delayed")
}

func TestRecordAdherenceUnknownAssignment(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/patients/"+uuid.NewString()+"/adherence/exercise", map[string]any{
		"assignment_id": uuid.NewString(),
		"status":        "taken",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsRequestValidation(t *testing.T) {
	s := newTestServer(t)
	patient := uuid.NewString()

	cases := []struct {
		name string
		path string
	}{
		{name: "bad patient id", path: "/patients/nope/progress-report"},
		{name: "bad kind", path: "/patients/" + patient + "/adherence/sleep"},
		{name: "bad date", path: "/patients/" + patient + "/health-trends?start=01-02-2026"},
		{name: "inverted window", path: "/patients/" + patient + "/progress-report?start=2026-05-02&end=2026-05-01"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tc.path, nil, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation_error", decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestDateOnlyEndCoversWholeDay(t *testing.T) {
	end, err := parseTime("end", "2026-05-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 23, 59, 59, 999999999, time.UTC), end)

	start, err := parseTime("start", "2026-05-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), start)

	exact, err := parseTime("start", "2026-05-01T10:00:00+02:00", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), exact)
}

func TestUnknownBodyFieldsRejected(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/patients/"+uuid.NewString()+"/progress",
		strings.NewReader(`{"symptom_score": 3, "pain": 9}`))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
