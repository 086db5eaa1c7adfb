package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-portal-scheduling/internal/db"
	"github.com/hackgods/hospital-portal-scheduling/internal/logging"
	"github.com/hackgods/hospital-portal-scheduling/internal/policy"
)

var specializations = []string{
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

// windows are the availability start/end pairs handed out to doctors.
var windows = [][2]string{
	{"08:00", "12:00"},
	{"09:00", "17:00"},
	{"10:00", "14:30"},
	{"13:00", "18:00"},
}

func main() {
	logger := logging.New("seed", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	applied, err := db.Migrate(context.Background(), pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	logger.Info().Int("applied", applied).Msg("schema ready")

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	if err := seedUsers(context.Background(), pool, faker, logger, 2000); err != nil {
		logger.Fatal().Err(err).Msg("seed users")
	}
	if err := seedDirectory(context.Background(), pool, faker, logger, 10, 60); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors and hospitals")
	}

	logger.Info().Msg("seed complete")
}

// seedUsers inserts count patients plus one admin and one staff account.
func seedUsers(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger, count int) error {
	logger.Info().Int("count", count).Msg("seeding users")

	const batchSize = 500

	roles := []policy.Role{policy.RoleAdmin, policy.RoleStaff}
	for i := 0; i < count; i++ {
		roles = append(roles, policy.RolePatient)
	}

	for offset := 0; offset < len(roles); offset += batchSize {
		end := min(offset+batchSize, len(roles))

		batch := &pgx.Batch{}
		for _, role := range roles[offset:end] {
			person := faker.Person()
			batch.Queue(`
				INSERT INTO users (first_name, last_name, email, phone, role)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (email) DO NOTHING
			`, person.FirstName, person.LastName, faker.Email(), person.Contact.Phone, string(role))
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		logger.Info().Int("seeded", end).Int("total", len(roles)).Msg("users progress")
	}

	return nil
}

// seedDirectory inserts hospitals and doctors and gives every doctor an
// availability window at one or two hospitals.
func seedDirectory(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger, hospitals, doctors int) error {
	logger.Info().Int("hospitals", hospitals).Int("doctors", doctors).Msg("seeding directory")

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		hospitalIDs := make([]int64, 0, hospitals)
		for i := 0; i < hospitals; i++ {
			var id int64
			name := faker.City() + " " + faker.RandomString([]string{"General Hospital", "Medical Center", "Clinic"})
			if err := tx.QueryRow(ctx, `INSERT INTO hospitals (name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
				return err
			}
			hospitalIDs = append(hospitalIDs, id)
		}

		for i := 0; i < doctors; i++ {
			var id int64
			spec := specializations[faker.Number(0, len(specializations)-1)]
			if err := tx.QueryRow(ctx, `
				INSERT INTO doctors (title, name, specialization) VALUES ('Dr.', $1, $2) RETURNING id
			`, faker.Name(), spec).Scan(&id); err != nil {
				return err
			}

			first := faker.Number(0, len(hospitalIDs)-1)
			sites := []int64{hospitalIDs[first]}
			if faker.Bool() && len(hospitalIDs) > 1 {
				sites = append(sites, hospitalIDs[(first+1)%len(hospitalIDs)])
			}

			for _, hospitalID := range sites {
				w := windows[faker.Number(0, len(windows)-1)]
				if _, err := tx.Exec(ctx, `
					INSERT INTO hospital_doctor (doctor_id, hospital_id, availability_start_time, availability_end_time)
					VALUES ($1, $2, $3::time, $4::time)
					ON CONFLICT (doctor_id, hospital_id) DO NOTHING
				`, id, hospitalID, w[0], w[1]); err != nil {
					return err
				}
			}
		}

		return nil
	})
}
