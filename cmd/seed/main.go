package main

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic-booking/internal/auth"
	"github.com/clinicbook/clinic-booking/internal/booking"
	"github.com/clinicbook/clinic-booking/internal/config"
	"github.com/clinicbook/clinic-booking/internal/db"
	"github.com/clinicbook/clinic-booking/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("seed", "dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New("seed", cfg.Env)
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	repo := booking.NewPgRepository(pool)

	if err := seedSchedule(ctx, repo); err != nil {
		log.Fatal().Err(err).Msg("seed schedule")
	}
	if err := seedSettings(ctx, repo); err != nil {
		log.Fatal().Err(err).Msg("seed settings")
	}

	patientIDs, err := seedPatients(ctx, pool, 200, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	printDevTokens(cfg, patientIDs, log)
	log.Info().Msg("seed complete")
}

// seedSchedule installs a Monday-to-Friday 09:00-17:00 week with a
// 13:00-14:00 break.
func seedSchedule(ctx context.Context, repo *booking.PgRepository) error {
	breakStart, _ := booking.ParseTimeOfDay("13:00")
	breakEnd, _ := booking.ParseTimeOfDay("14:00")
	start, _ := booking.ParseTimeOfDay("09:00")
	end, _ := booking.ParseTimeOfDay("17:00")

	var days []booking.ScheduleDay
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		active := wd >= time.Monday && wd <= time.Friday
		day := booking.ScheduleDay{
			Weekday: wd,
			Start:   start,
			End:     end,
			Active:  active,
		}
		if active {
			bs, be := breakStart, breakEnd
			day.BreakStart = &bs
			day.BreakEnd = &be
		}
		days = append(days, day)
	}

	return repo.ReplaceSchedule(ctx, days)
}

func seedSettings(ctx context.Context, repo *booking.PgRepository) error {
	return repo.UpdateClinicSettings(ctx, booking.ClinicSettings{
		SlotDurationMinutes: 30,
		MaxPatientsPerSlot:  1,
		AdvanceBookingDays:  30,
		CancellationHours:   24,
	})
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, log zerolog.Logger) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding patients")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		phone := gofakeit.Phone()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.Name(), gofakeit.Email(), phone)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info().Msg("patients seeded")
	return ids, nil
}

// printDevTokens emits ready-to-use bearer tokens so the API can be
// exercised right after seeding.
func printDevTokens(cfg config.Config, patientIDs []uuid.UUID, log zerolog.Logger) {
	secret := []byte(cfg.JWTSecret)

	actors := []booking.Actor{
		{ID: uuid.New(), Role: booking.RoleAdmin},
		{ID: uuid.New(), Role: booking.RoleSecretary},
	}
	if len(patientIDs) > 0 {
		actors = append(actors, booking.Actor{ID: patientIDs[0], Role: booking.RolePatient})
	}

	for _, actor := range actors {
		token, err := auth.IssueToken(secret, actor, cfg.TokenTTL)
		if err != nil {
			log.Error().Err(err).Str("role", string(actor.Role)).Msg("issue dev token")
			continue
		}
		log.Info().Str("role", string(actor.Role)).Stringer("id", actor.ID).Str("token", token).Msg("dev token")
	}
}
