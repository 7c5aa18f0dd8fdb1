package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/db"
	"github.com/hackgods/clinic-availability/internal/logger"
)

func main() {
	doctors := flag.Int("doctors", 100, "number of doctor profiles to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{ApplicationName: "clinic-seed"})
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if _, err := db.NewMigrator(pool, lg).Up(context.Background()); err != nil {
		lg.Fatal("migrate", zap.Error(err))
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	svc := availability.NewService(availability.NewPgRepository(pool), 0, zap.NewNop())

	lg.Info("seeding availability profiles", zap.Int("count", *doctors))
	for i := 0; i < *doctors; i++ {
		doctorID := uuid.New()
		if _, err := svc.Upsert(context.Background(), doctorID, randomProfile(faker, time.Now().UTC())); err != nil {
			lg.Fatal("seed profile", zap.String("doctor_id", doctorID.String()), zap.Error(err))
		}
	}

	lg.Info("seed complete")
}

var slotSizes = []int{10, 15, 20, 30, 45, 60}

// randomProfile builds a plausible week: a weekday block with an optional
// lunch blackout, an occasional Saturday morning, one extra evening window
// and a day off in the coming month.
func randomProfile(f *gofakeit.Faker, now time.Time) availability.ProfileInput {
	startHour := f.Number(7, 10)
	endHour := f.Number(15, 19)

	var weekly []availability.RecurringRule
	for day := 1; day <= 5; day++ {
		if f.Number(0, 9) == 0 {
			continue
		}
		if f.Bool() {
			// split shift around lunch
			weekly = append(weekly,
				availability.RecurringRule{DayOfWeek: day, StartMinute: startHour * 60, EndMinute: 12 * 60},
				availability.RecurringRule{DayOfWeek: day, StartMinute: 13 * 60, EndMinute: endHour * 60},
			)
			continue
		}
		weekly = append(weekly, availability.RecurringRule{DayOfWeek: day, StartMinute: startHour * 60, EndMinute: endHour * 60})
	}
	if f.Number(0, 3) == 0 {
		weekly = append(weekly, availability.RecurringRule{DayOfWeek: 6, StartMinute: 9 * 60, EndMinute: 13 * 60})
	}

	today := availability.DayStart(now)
	evening := today.AddDate(0, 0, f.Number(1, 14)).Add(18 * time.Hour)
	dayOff := today.AddDate(0, 0, f.Number(1, 30))

	size := slotSizes[f.Number(0, len(slotSizes)-1)]
	buffer := []int{0, 0, 5, 10, 15}[f.Number(0, 4)]

	return availability.ProfileInput{
		Weekly:          weekly,
		DateWindows:     []availability.Window{{Start: evening, End: evening.Add(2 * time.Hour)}},
		BlackoutWindows: []availability.Window{{Start: dayOff, End: dayOff.AddDate(0, 0, 1)}},
		SlotSizeMinutes: &size,
		BufferMinutes:   &buffer,
	}
}
