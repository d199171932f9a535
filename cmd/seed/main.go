package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/rehab-care-coordination/internal/clinical"
	"github.com/hackgods/rehab-care-coordination/internal/config"
	"github.com/hackgods/rehab-care-coordination/internal/db"
	"github.com/hackgods/rehab-care-coordination/internal/logger"
)

const (
	clinicianCount      = 50
	patientCount        = 2000
	slotsPerClinician   = 40
	snapshotsPerPatient = 12
	eventsPerAssignment = 14
	batchSize           = 250
)

var catalog = map[clinical.EventKind][]string{
	clinical.KindMedication: {"Aspirin", "Clopidogrel", "Atorvastatin", "Lisinopril", "Amlodipine", "Metformin", "Apixaban"},
	clinical.KindExercise:   {"Sit-to-stand", "Heel raises", "Arm reach", "Grip squeeze", "Assisted walking", "Balance hold", "Finger taps"},
	clinical.KindFood:       {"Oatmeal", "Salmon", "Leafy greens", "Low-sodium soup", "Greek yogurt", "Berries", "Whole grain bread"},
}

var (
	specialties = []string{"Neurology", "Physiotherapy", "Occupational Therapy", "Speech Therapy", "Rehabilitation Medicine", "Cardiology"}
	moods       = []string{"good", "okay", "tired", "low", "anxious"}
	tags        = []string{"fatigue", "dizziness", "pain", "sleep", "appetite", "speech"}
	notes       = []string{
		"Walked to the mailbox with a cane.",
		"Needed help getting dressed this morning.",
		"Slept poorly, mild headache in the evening.",
		"Completed the full exercise sheet.",
		"Speech clearer than last week.",
		"Skipped afternoon session, felt dizzy.",
	}
)

type catalogItem struct {
	kind clinical.EventKind
	id   uuid.UUID
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info", "seed")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(cfg.Env, cfg.LogLevel, "seed")
	log.Info().Msg("seed starting")

	ctx := context.Background()

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN, db.WithApplicationName("seed"))
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	_ = gofakeit.Seed(time.Now().UnixNano())
	s := &seeder{pool: pool, log: log, now: time.Now().UTC()}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"clinicians", s.seedClinicians},
		{"patients", s.seedPatients},
		{"catalog", s.seedCatalog},
		{"slots", s.seedSlots},
		{"assignments and adherence", s.seedAssignments},
		{"progress snapshots", s.seedSnapshots},
	}
	for _, step := range steps {
		start := time.Now()
		if err := step.run(ctx); err != nil {
			log.Fatal().Err(err).Str("step", step.name).Msg("seed failed")
		}
		log.Info().Str("step", step.name).Dur("took", time.Since(start)).Msg("seeded")
	}

	log.Info().Msg("seed complete")
}

type seeder struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
	now  time.Time

	clinicians []uuid.UUID
	patients   []uuid.UUID
	items      []catalogItem
}

// inBatches runs fill for [offset, end) ranges of count, one transaction each.
func (s *seeder) inBatches(ctx context.Context, count int, fill func(tx pgx.Tx, from, to int) error) error {
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		if err := fill(tx, offset, end); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedClinicians(ctx context.Context) error {
	return s.inBatches(ctx, clinicianCount, func(tx pgx.Tx, from, to int) error {
		for i := from; i < to; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO clinicians (id, name, specialty, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, "Dr. "+gofakeit.Name(), gofakeit.RandomString(specialties))
			if err != nil {
				return err
			}
			s.clinicians = append(s.clinicians, id)
		}
		return nil
	})
}

func (s *seeder) seedPatients(ctx context.Context) error {
	return s.inBatches(ctx, patientCount, func(tx pgx.Tx, from, to int) error {
		for i := from; i < to; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, gofakeit.Name(), gofakeit.Email())
			if err != nil {
				return err
			}
			s.patients = append(s.patients, id)
		}
		s.log.Debug().Int("done", to).Int("total", patientCount).Msg("patients seeded")
		return nil
	})
}

func (s *seeder) seedCatalog(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, kind := range clinical.Kinds() {
		desc, _ := clinical.Describe(kind)
		for _, name := range catalog[kind] {
			id := uuid.New()
			query := fmt.Sprintf(`INSERT INTO %s (id, name) VALUES ($1, $2)`, desc.CatalogTable)
			if _, err := tx.Exec(ctx, query, id, name); err != nil {
				return err
			}
			s.items = append(s.items, catalogItem{kind: kind, id: id})
		}
	}
	return tx.Commit(ctx)
}

// seedSlots publishes 30 minute slots on weekday working hours over the next
// weeks for every clinician.
func (s *seeder) seedSlots(ctx context.Context) error {
	day := time.Date(s.now.Year(), s.now.Month(), s.now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	return s.inBatches(ctx, len(s.clinicians), func(tx pgx.Tx, from, to int) error {
		for _, clinician := range s.clinicians[from:to] {
			for i := 0; i < slotsPerClinician; i++ {
				start := day.AddDate(0, 0, i/8).Add(time.Duration(9*60+(i%8)*30) * time.Minute)
				_, err := tx.Exec(ctx, `
					INSERT INTO appointment_slots (id, clinician_id, start_time, end_time, is_booked, created_at, updated_at)
					VALUES ($1, $2, $3, $4, false, now(), now())
				`, uuid.New(), clinician, start, start.Add(30*time.Minute))
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// seedAssignments gives every patient a few items of each kind and a couple of
// weeks of adherence logs against them.
func (s *seeder) seedAssignments(ctx context.Context) error {
	statuses := []string{"taken", "taken", "taken", "taken", "delayed", "missed"}

	return s.inBatches(ctx, len(s.patients), func(tx pgx.Tx, from, to int) error {
		for _, patient := range s.patients[from:to] {
			clinician := s.clinicians[gofakeit.Number(0, len(s.clinicians)-1)]
			for _, item := range s.items {
				if !gofakeit.Bool() {
					continue
				}
				desc, _ := clinical.Describe(item.kind)

				assignment := uuid.New()
				assign := fmt.Sprintf(`INSERT INTO %s (id, patient_id, %s, assigned_by) VALUES ($1, $2, $3, $4)`,
					desc.AssignmentTable, desc.CatalogFK)
				if _, err := tx.Exec(ctx, assign, assignment, patient, item.id, clinician); err != nil {
					return err
				}

				logEvent := fmt.Sprintf(`INSERT INTO %s (id, patient_id, assignment_id, status, logged_at) VALUES ($1, $2, $3, $4, $5)`,
					desc.LogTable)
				for d := 0; d < eventsPerAssignment; d++ {
					at := s.now.AddDate(0, 0, -d).Add(-time.Duration(gofakeit.Number(0, 12*60)) * time.Minute)
					if _, err := tx.Exec(ctx, logEvent, uuid.New(), patient, assignment, gofakeit.RandomString(statuses), at); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

func (s *seeder) seedSnapshots(ctx context.Context) error {
	return s.inBatches(ctx, len(s.patients), func(tx pgx.Tx, from, to int) error {
		for _, patient := range s.patients[from:to] {
			mobility := gofakeit.Number(20, 70)
			systolic := gofakeit.Number(115, 150)

			for i := snapshotsPerPatient; i > 0; i-- {
				mobility = clamp(mobility+gofakeit.Number(-6, 8), 0, 100)
				_, err := tx.Exec(ctx, `
					INSERT INTO progress_snapshots (
						id, patient_id, recorded_at, mood, symptom_score, mobility_score,
						exercise_completed, blood_pressure_systolic, blood_pressure_diastolic,
						medication_adherence_score, notes, tags
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				`,
					uuid.New(),
					patient,
					s.now.AddDate(0, 0, -i*2),
					gofakeit.RandomString(moods),
					gofakeit.Number(0, 10),
					mobility,
					optionalBool(),
					systolic+gofakeit.Number(-12, 12),
					gofakeit.Number(70, 95),
					gofakeit.Float64Range(40, 100),
					gofakeit.RandomString(notes),
					[]string{gofakeit.RandomString(tags)},
				)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// optionalBool returns nil about one time in five so the tri-state is seeded.
func optionalBool() *bool {
	if gofakeit.Number(1, 5) == 1 {
		return nil
	}
	b := gofakeit.Bool()
	return &b
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
