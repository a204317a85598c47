package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pressroom/internal/adapter/repo"
	"pressroom/internal/assetstore"
	"pressroom/internal/domain"
	"pressroom/internal/formatter"
	"pressroom/internal/infra"
	"pressroom/internal/ledger"
	"pressroom/internal/notify"
	"pressroom/internal/pipeline"
	"pressroom/internal/providers/imagegen"
	"pressroom/internal/providers/payment"
	"pressroom/internal/providers/research"
	"pressroom/internal/providers/text"
	"pressroom/internal/publish"
	"pressroom/internal/stages"
	"pressroom/internal/storage"
	"pressroom/internal/worker"
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
	articles := repo.NewArticleRepository(sqlRunner)

	mailer := notify.NewSendGridMailer(notify.SendGridOptions{
		APIKey:    cfg.SendGridAPIKey,
		BaseURL:   cfg.SendGridURL,
		FromEmail: cfg.MailFrom,
	})
	guard := notify.NewRedisOnce(rdb, 48*time.Hour)
	notifier := notify.NewNotifier(mailer, guard, files, logger)

	charger := payment.NewClient(payment.Options{
		SecretKey: cfg.StripeSecretKey,
		Currency:  cfg.StripeCurrency,
	})
	credits := ledger.New(ledger.NewPGStore(dbpool), charger, notifier, logger)

	researcher := research.NewClient(research.Options{
		APIKey:  cfg.PerplexityAPIKey,
		BaseURL: cfg.PerplexityURL,
		Model:   cfg.PerplexityModel,
	})
	writer := text.NewClient(text.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	images := imagegen.NewClient(imagegen.Options{
		APIKey:    cfg.ReplicateAPIKey,
		BaseURL:   cfg.ReplicateBaseURL,
		Model:     cfg.ReplicateModel,
		PollEvery: cfg.ImagePollEvery,
		PollCap:   cfg.ImagePollCap,
		Logger:    &logger,
	})

	chain := formatter.NewChain(
		formatter.NewAIStrategy(formatter.AIOptions{
			APIKey:       cfg.AnthropicAPIKey,
			BaseURL:      cfg.AnthropicBaseURL,
			Model:        cfg.AnthropicModel,
			InputCeiling: cfg.FormatterCeiling,
		}),
		formatter.NewTemplateStrategy(),
		func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("formatter: falling back to template")
		},
	)

	assets := assetstore.New(files, nil, logger)
	cms := publish.NewWordPressClient(nil)
	router := publish.NewRouter(files, cms, logger)

	pipelineCfg := domain.PipelineConfig{
		ResearchModel:    cfg.PerplexityModel,
		TextModel:        cfg.OpenAIModel,
		ImageModel:       cfg.ReplicateModel,
		FormatModel:      cfg.AnthropicModel,
		SectionImages:    3,
		ArticleCostCents: int64(cfg.ArticleCostCents),
		FormatterCeiling: cfg.FormatterCeiling,
	}

	orchestrator := pipeline.New(pipeline.Deps{
		Jobs:      jobs,
		Tenants:   tenants,
		Articles:  articles,
		Executor:  stages.NewExecutor(jobs, cfg.StageTimeout, logger),
		Research:  researcher,
		Writer:    writer,
		Images:    images,
		Assets:    assets,
		Formatter: chain,
		Publisher: router,
		Refunder:  credits,
		Notifier:  notifier,
		Emergency: files,
	}, pipelineCfg, cfg.ImageTTL, logger)

	pool := worker.NewPool(jobs, orchestrator, cfg.WorkerCount, 2*time.Second, logger)
	pool.Run(ctx)

	logger.Info().Msg("worker stopped")
}
