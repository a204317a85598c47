package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pressroom/internal/adapter/repo"
	"pressroom/internal/infra"
	"pressroom/internal/ledger"
	"pressroom/internal/notify"
	"pressroom/internal/providers/payment"
	"pressroom/internal/scheduler"
	"pressroom/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open file store")
	}

	sqlRunner := &infra.SQLRunner{Pool: dbpool, Logger: logger}
	jobs := repo.NewJobRepository(sqlRunner)
	tenants := repo.NewTenantRepository(sqlRunner)
	slots := repo.NewScheduleRepository(sqlRunner)

	mailer := notify.NewSendGridMailer(notify.SendGridOptions{
		APIKey:    cfg.SendGridAPIKey,
		BaseURL:   cfg.SendGridURL,
		FromEmail: cfg.MailFrom,
	})
	guard := notify.NewRedisOnce(rdb, 0)
	notifier := notify.NewNotifier(mailer, guard, files, logger)

	charger := payment.NewClient(payment.Options{
		SecretKey: cfg.StripeSecretKey,
		Currency:  cfg.StripeCurrency,
	})
	credits := ledger.New(ledger.NewPGStore(dbpool), charger, notifier, logger)

	sched := scheduler.New(tenants, slots, jobs, credits, rdb, int64(cfg.ArticleCostCents), logger)
	sched.Run(ctx)

	logger.Info().Msg("scheduler exited")
}
