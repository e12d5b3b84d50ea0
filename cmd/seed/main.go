package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-availability/internal/availability"
	"github.com/hackgods/dental-availability/internal/db"
	"github.com/hackgods/dental-availability/internal/logging"
)

func main() {
	logger := logging.Setup(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	faker := gofakeit.New(0)

	if err := seedProviders(context.Background(), pool, faker, 25, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed providers")
	}
	if err := seedResources(context.Background(), pool, faker, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed resources")
	}
	if err := seedPatients(context.Background(), pool, faker, 5000, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

var specialties = []string{
	"General Dentistry",
	"Orthodontics",
	"Endodontics",
	"Periodontics",
	"Prosthodontics",
	"Oral Surgery",
	"Pediatric Dentistry",
	"Dental Hygiene",
}

// randomWeek builds a Monday to Friday template with a varied opening time,
// closing time and lunch break. Some providers also work Saturday mornings.
func randomWeek(faker *gofakeit.Faker) map[time.Weekday]availability.DayHours {
	open := availability.Clock(faker.IntRange(7, 9) * 60)
	closing := availability.Clock(faker.IntRange(16, 18) * 60)
	lunch := availability.Clock(faker.IntRange(11, 13) * 60)

	week := make(map[time.Weekday]availability.DayHours)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		day := availability.DayHours{Open: availability.ClockRange{Start: open, End: closing}}
		if faker.Number(1, 10) > 2 {
			day.Break = &availability.ClockRange{Start: lunch, End: lunch + 60}
		}
		week[wd] = day
	}
	if faker.Bool() {
		week[time.Saturday] = availability.DayHours{
			Open: availability.ClockRange{Start: availability.MustClock("09:00"), End: availability.MustClock("13:00")},
		}
	}
	return week
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding providers")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + faker.LastName()
		spec := specialties[faker.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return err
		}

		hours := availability.WorkingHours{ProviderID: id, Days: randomWeek(faker)}
		if err := hours.Validate(); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for wd, day := range hours.Days {
			var breakStart, breakEnd *int
			if day.Break != nil {
				bs, be := int(day.Break.Start), int(day.Break.End)
				breakStart, breakEnd = &bs, &be
			}
			batch.Queue(`
				INSERT INTO working_hours (provider_id, weekday, start_minute, end_minute, break_start_minute, break_end_minute)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, id, int(wd), int(day.Open.Start), int(day.Open.End), breakStart, breakEnd)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("providers seeded")
	return nil
}

func seedResources(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger) error {
	plan := []struct {
		kind  availability.ResourceType
		label string
		count int
	}{
		{availability.ResourceChair, "Chair", 12},
		{availability.ResourceOperatory, "Operatory", 6},
		{availability.ResourceEquipment, "Panoramic X-ray", 2},
		{availability.ResourceRoom, "Consult Room", 3},
	}

	for _, p := range plan {
		for i := 1; i <= p.count; i++ {
			_, err := pool.Exec(ctx, `
				INSERT INTO resources (id, type, name, available, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), string(p.kind), p.label+" "+faker.DigitN(2), faker.Number(1, 20) > 1)
			if err != nil {
				return err
			}
		}
		logger.Info().Str("type", string(p.kind)).Int("count", p.count).Msg("resources seeded")
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), faker.Name(), faker.Email(), faker.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}
