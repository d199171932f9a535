package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/rehab-care-coordination/internal/config"
	"github.com/hackgods/rehab-care-coordination/internal/db"
	"github.com/hackgods/rehab-care-coordination/internal/logger"
)

// SimConfig drives a booking storm: Contenders concurrent requests race for
// each of Slots open slots, Parallel slots at a time.
type SimConfig struct {
	APIBaseURL   string
	Slots        int
	Contenders   int
	Parallel     int
	PatientLimit int
	PostgresDSN  string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch status {
	case http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		return latencies[min(len(latencies)*p/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), pct(50), pct(95), latencies[len(latencies)-1]
}

type Simulator struct {
	config   SimConfig
	patients []uuid.UUID
	client   *http.Client
	log      zerolog.Logger
	metrics  OperationMetrics

	mu         sync.Mutex
	violations []string
}

func main() {
	base, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info", "simulate")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(base.Env, base.LogLevel, "simulate")

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Slots:        getInt("SIM_SLOTS", 200),
		Contenders:   getInt("SIM_CONTENDERS", 16),
		Parallel:     getInt("SIM_PARALLEL_SLOTS", 8),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 1000),
		PostgresDSN:  base.PostgresDSN,
	}
	if cfg.Slots <= 0 || cfg.Contenders < 2 || cfg.Parallel <= 0 {
		log.Fatal().Msg("SIM_SLOTS and SIM_PARALLEL_SLOTS must be > 0 and SIM_CONTENDERS >= 2")
	}

	log.Info().
		Int("slots", cfg.Slots).
		Int("contenders", cfg.Contenders).
		Int("parallel", cfg.Parallel).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithApplicationName("simulate"))
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	patients, slots, err := loadData(ctx, pool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data")
	}
	log.Info().Int("patients", len(patients)).Int("slots", len(slots)).Msg("loaded")

	sim := &Simulator{
		config:   cfg,
		patients: patients,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}

	started := time.Now()
	sim.Run(context.Background(), slots)
	elapsed := time.Since(started)

	if err := sim.verifyStore(context.Background(), pool, slots); err != nil {
		log.Error().Err(err).Msg("store verification failed")
	}

	sim.PrintReport(elapsed, len(slots))
	if len(sim.violations) > 0 {
		os.Exit(1)
	}
}

func loadData(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) ([]uuid.UUID, []uuid.UUID, error) {
	patients, err := queryIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("load patients: %w", err)
	}
	slots, err := queryIDs(ctx, pool, `
		SELECT id FROM appointment_slots
		WHERE is_booked = false AND start_time > now()
		ORDER BY start_time
		LIMIT $1
	`, cfg.Slots)
	if err != nil {
		return nil, nil, fmt.Errorf("load slots: %w", err)
	}

	if len(patients) == 0 {
		return nil, nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(slots) == 0 {
		return nil, nil, fmt.Errorf("no open slots loaded, run cmd/seed first")
	}
	return patients, slots, nil
}

func queryIDs(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Run races Contenders requests on every slot and records a violation for
// any slot that does not end with exactly one 201.
func (s *Simulator) Run(ctx context.Context, slots []uuid.UUID) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Parallel)

	for i, slotID := range slots {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
			s.storm(ctx, rng, slotID)
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) storm(ctx context.Context, rng *rand.Rand, slotID uuid.UUID) {
	patients := make([]uuid.UUID, s.config.Contenders)
	for i := range patients {
		patients[i] = s.patients[rng.Intn(len(s.patients))]
	}

	var (
		wg      sync.WaitGroup
		created atomic.Int64
		ready   = make(chan struct{})
	)
	for _, patientID := range patients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			if s.book(ctx, slotID, patientID) == http.StatusCreated {
				created.Add(1)
			}
		}()
	}
	close(ready)
	wg.Wait()

	if n := created.Load(); n != 1 {
		s.violation(fmt.Sprintf("slot %s: %d successful bookings", slotID, n))
	}
}

func (s *Simulator) book(ctx context.Context, slotID, patientID uuid.UUID) int {
	body, _ := json.Marshal(map[string]string{"patient_id": patientID.String()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/slots/%s/book", s.config.APIBaseURL, slotID), bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", patientID.String())

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		_ = resp.Body.Close()
	} else {
		s.log.Debug().Err(err).Str("slot_id", slotID.String()).Msg("booking request failed")
	}
	s.metrics.Record(latency, status)
	return status
}

// verifyStore cross checks the database: every stormed slot is booked and
// has exactly one appointment.
func (s *Simulator) verifyStore(ctx context.Context, pool *pgxpool.Pool, slots []uuid.UUID) error {
	ids := make([]string, len(slots))
	for i, id := range slots {
		ids[i] = id.String()
	}

	rows, err := pool.Query(ctx, `
		SELECT s.id, s.is_booked, count(a.id)
		FROM appointment_slots s
		LEFT JOIN appointments a ON a.slot_id = s.id
		WHERE s.id = ANY($1::uuid[])
		GROUP BY s.id, s.is_booked
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       uuid.UUID
			isBooked bool
			count    int
		)
		if err := rows.Scan(&id, &isBooked, &count); err != nil {
			return err
		}
		if !isBooked || count != 1 {
			s.violation(fmt.Sprintf("slot %s in store: is_booked=%t appointments=%d", id, isBooked, count))
		}
	}
	return rows.Err()
}

func (s *Simulator) violation(msg string) {
	s.mu.Lock()
	s.violations = append(s.violations, msg)
	s.mu.Unlock()
	s.log.Error().Msg(msg)
}

func (s *Simulator) PrintReport(elapsed time.Duration, slots int) {
	om := &s.metrics
	total := atomic.LoadInt64(&om.Total)
	avg, p50, p95, max := om.Stats()

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BOOKING STORM REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Elapsed: %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Slots: %d  Contenders per slot: %d\n", slots, s.config.Contenders)
	fmt.Printf("Requests: %d\n", total)
	fmt.Printf("  201 Created:  %d\n", atomic.LoadInt64(&om.Success))
	fmt.Printf("  409 Conflict: %d\n", atomic.LoadInt64(&om.Conflict))
	fmt.Printf("  Other:        %d\n", atomic.LoadInt64(&om.Error))
	fmt.Printf("Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))

	if len(s.violations) == 0 {
		fmt.Println("Result: OK, every slot was booked exactly once")
		return
	}
	fmt.Printf("Result: %d VIOLATIONS\n", len(s.violations))
	for _, v := range s.violations {
		fmt.Println("  " + v)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
