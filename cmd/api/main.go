package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pressroom/internal/adapter/repo"
	"pressroom/internal/http/handlers"
	httpapi "pressroom/internal/http/httpapi"
	"pressroom/internal/infra"
	"pressroom/internal/infra/geoip"
	"pressroom/internal/ledger"
	"pressroom/internal/middleware"
	"pressroom/internal/notify"
	"pressroom/internal/providers/payment"
	"pressroom/internal/publish"
	"pressroom/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open file store")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, requests will be untagged")
	}

	sqlRunner := &infra.SQLRunner{Pool: dbpool, Logger: logger}
	jobs := repo.NewJobRepository(sqlRunner)
	tenants := repo.NewTenantRepository(sqlRunner)
	articles := repo.NewArticleRepository(sqlRunner)
	ledgerReads := repo.NewLedgerRepository(sqlRunner)

	mailer := notify.NewSendGridMailer(notify.SendGridOptions{
		APIKey:    cfg.SendGridAPIKey,
		BaseURL:   cfg.SendGridURL,
		FromEmail: cfg.MailFrom,
	})
	charger := payment.NewClient(payment.Options{
		SecretKey: cfg.StripeSecretKey,
		Currency:  cfg.StripeCurrency,
	})
	alerter := notify.NewNotifier(mailer, nopGuard{}, files, logger)
	credits := ledger.New(ledger.NewPGStore(dbpool), charger, alerter, logger)

	app := &handlers.App{
		Jobs:          jobs,
		Tenants:       tenants,
		Ledger:        credits,
		LedgerReads:   ledgerReads,
		Articles:      articles,
		CMS:           publish.NewWordPressClient(nil),
		DB:            dbpool,
		CostCents:     int64(cfg.ArticleCostCents),
		WebhookSecret: cfg.PaymentWebhookSecret,
		Logger:        logger,
	}

	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	router := httpapi.NewRouter(httpapi.Options{
		App:             app,
		Auth:            middleware.TenantAuth(tenants.ResolveAPIKey),
		Logger:          middleware.Logger(logger),
		Geo:             middleware.Geo(lookup),
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// nopGuard lets the API's notifier send recharge alerts unconditionally;
// the once-per-job guard only matters for job notifications, which the API
// never sends.
type nopGuard struct{}

func (nopGuard) Acquire(context.Context, string) (bool, error) { return true, nil }
