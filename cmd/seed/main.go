package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/appointment-engine/internal/db"
	"github.com/medilink/appointment-engine/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedWorkBlocks(context.Background(), pool, doctorIDs, 14); err != nil {
		log.Fatalf("seed work blocks: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			insured := gofakeit.Bool()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, has_insurance, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, email, insured)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedWorkBlocks publishes a morning and an afternoon block per doctor per
// day over the given horizon, skipping roughly one day in five so the grid
// has realistic gaps.
func seedWorkBlocks(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID, days int) error {
	log.Printf("seeding work blocks for %d doctors over %d days", len(doctorIDs), days)

	today := time.Now().UTC().Truncate(24 * time.Hour)

	type span struct {
		shift     schedule.Shift
		startHour int
		startMin  int
		endHour   int
		endMin    int
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, doctorID := range doctorIDs {
		roomID := gofakeit.Number(100, 499)

		for d := 0; d < days; d++ {
			if gofakeit.Number(0, 4) == 0 {
				continue // day off
			}

			day := today.AddDate(0, 0, d)

			spans := []span{
				{schedule.ShiftMorning, 8, 30, 12, 0},
				{schedule.ShiftAfternoon, 13, 30, 17, 0},
			}

			for _, sp := range spans {
				start := day.Add(time.Duration(sp.startHour)*time.Hour + time.Duration(sp.startMin)*time.Minute)
				end := day.Add(time.Duration(sp.endHour)*time.Hour + time.Duration(sp.endMin)*time.Minute)

				_, err := tx.Exec(ctx, `
					INSERT INTO work_blocks (id, doctor_id, work_date, shift, start_time, end_time, room_id, created_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, now())
				`, uuid.New(), doctorID, day, string(sp.shift), start, end, roomID)
				if err != nil {
					return err
				}
				inserted++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("work blocks seeded: %d", inserted)
	return nil
}
