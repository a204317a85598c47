package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pressroom/internal/domain"
	"pressroom/internal/formatter"
	"pressroom/internal/publish"
	"pressroom/internal/stages"
)

// JobStore is the job persistence surface the orchestrator drives.
type JobStore interface {
	SetState(ctx context.Context, jobID string, state domain.JobState) error
	Finish(ctx context.Context, job *domain.Job) error
}

// TenantStore loads tenant configuration.
type TenantStore interface {
	GetByID(ctx context.Context, tenantID string) (domain.TenantConfig, error)
}

// ArticleStore persists assets and the final article.
type ArticleStore interface {
	CreateAsset(ctx context.Context, asset *domain.ImageAsset) error
	MarkAssetPersisted(ctx context.Context, asset *domain.ImageAsset) error
	CreateArticle(ctx context.Context, article *domain.Article) error
}

// AssetPersister downloads generated images into durable form.
type AssetPersister interface {
	PersistAll(ctx context.Context, assets []domain.ImageAsset, inline bool) error
}

// Publisher routes a formatted article to its persistence target.
type Publisher interface {
	Publish(ctx context.Context, mode domain.PersistMode, cfg domain.TenantConfig, article *domain.Article) (publish.Target, error)
}

// Refunder reverses the admission debit for failed jobs.
type Refunder interface {
	Refund(ctx context.Context, tenantID, jobID string, amountCents int64, reason string) error
}

// Notifier sends the single terminal email per job. Failure notifications
// receive the partial article so any fallback artifact can ride along.
type Notifier interface {
	JobSucceeded(ctx context.Context, cfg domain.TenantConfig, job *domain.Job, article *domain.Article) error
	JobFailed(ctx context.Context, cfg domain.TenantConfig, job *domain.Job, article *domain.Article, cause error) error
}

// Formatter turns a draft plus image references into final markup.
type Formatter interface {
	Format(ctx context.Context, req formatter.Request) (string, domain.FormatterKind, error)
}

// EmergencySaver stores raw draft content when formatting collapses, so a
// failed job still leaves the written text recoverable.
type EmergencySaver interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Orchestrator runs one job through the whole pipeline. A single
// implementation serves every tenant; variant behavior comes in through
// PipelineConfig and TenantConfig values, never through forked code paths.
type Orchestrator struct {
	jobs      JobStore
	tenants   TenantStore
	articles  ArticleStore
	executor  *stages.Executor
	research  stages.Researcher
	writer    stages.DraftWriter
	images    stages.ImageGenerator
	assets    AssetPersister
	formatter Formatter
	publisher Publisher
	refunder  Refunder
	notifier  Notifier
	emergency EmergencySaver

	cfg      domain.PipelineConfig
	imageTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Jobs      JobStore
	Tenants   TenantStore
	Articles  ArticleStore
	Executor  *stages.Executor
	Research  stages.Researcher
	Writer    stages.DraftWriter
	Images    stages.ImageGenerator
	Assets    AssetPersister
	Formatter Formatter
	Publisher Publisher
	Refunder  Refunder
	Notifier  Notifier
	Emergency EmergencySaver
}

func New(deps Deps, cfg domain.PipelineConfig, imageTTL time.Duration, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      deps.Jobs,
		tenants:   deps.Tenants,
		articles:  deps.Articles,
		executor:  deps.Executor,
		research:  deps.Research,
		writer:    deps.Writer,
		images:    deps.Images,
		assets:    deps.Assets,
		formatter: deps.Formatter,
		publisher: deps.Publisher,
		refunder:  deps.Refunder,
		notifier:  deps.Notifier,
		emergency: deps.Emergency,
		cfg:       cfg,
		imageTTL:  imageTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// RunJob drives the claimed job to a terminal outcome. It never returns a
// pipeline error: every failure is absorbed into the job's outcome, refund
// decision and notification. The returned error covers only infrastructure
// faults while finalizing.
func (o *Orchestrator) RunJob(ctx context.Context, job *domain.Job) error {
	log := o.logger.With().Str("job_id", job.ID).Str("tenant_id", job.TenantID).Logger()

	tenant, err := o.tenants.GetByID(ctx, job.TenantID)
	if err != nil {
		return o.finalize(ctx, log, job, tenant, nil, domain.StageResearch,
			domain.Classified(domain.ErrClassInvalidInput, fmt.Errorf("load tenant: %w", err)))
	}

	article := &domain.Article{ID: uuid.NewString(), JobID: job.ID, CreatedAt: o.now()}

	// Research.
	o.setState(ctx, log, job, domain.JobStateResearching)
	var research string
	err = o.executor.Run(ctx, job.ID, domain.StageResearch, func(ctx context.Context) (string, error) {
		var rerr error
		research, rerr = o.research.Research(ctx, job.Topic, job.WritingStyle)
		return "", rerr
	})
	if err != nil {
		return o.finalize(ctx, log, job, tenant, article, domain.StageResearch, err)
	}

	// Draft.
	o.setState(ctx, log, job, domain.JobStateWriting)
	var draft *domain.ArticleDraft
	err = o.executor.Run(ctx, job.ID, domain.StageContent, func(ctx context.Context) (string, error) {
		var derr error
		draft, derr = o.writer.GenerateDraft(ctx, research, job.WritingStyle, tenant.SystemPrompt)
		return "", derr
	})
	if err != nil {
		return o.finalize(ctx, log, job, tenant, article, domain.StageContent, err)
	}
	article.Title = draft.Title
	article.Subtitle = draft.Subtitle

	// Image prompts.
	o.setState(ctx, log, job, domain.JobStatePromptingImages)
	var prompts []string
	err = o.executor.Run(ctx, job.ID, domain.StageImagePrompts, func(ctx context.Context) (string, error) {
		var perr error
		prompts, perr = o.writer.ImagePrompts(ctx, draft, o.cfg.ImageCount())
		return "", perr
	})
	if err != nil {
		return o.finalize(ctx, log, job, tenant, article, domain.StageImagePrompts, err)
	}

	// Image generation.
	o.setState(ctx, log, job, domain.JobStateGeneratingImages)
	err = o.executor.Run(ctx, job.ID, domain.StageImageGeneration, func(ctx context.Context) (string, error) {
		hero, sections, gerr := stages.GenerateImages(ctx, o.images, job.ID, prompts, o.imageTTL)
		if gerr != nil {
			return "", gerr
		}
		article.Hero = hero
		article.Sections = sections
		return "", nil
	})
	if err != nil {
		return o.finalize(ctx, log, job, tenant, article, domain.StageImageGeneration, err)
	}
	o.recordAssets(ctx, log, article)

	// Everything after generation races the image URL expiry. Bound the
	// remaining work by the earliest expiry so a stale success is
	// impossible.
	runCtx := ctx
	if deadline := domain.EarliestExpiry(allAssets(article)); !deadline.IsZero() {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	// Asset persistence. Bytes and inline encodings are captured for every
	// job so a local fallback artifact is always buildable.
	o.setState(ctx, log, job, domain.JobStatePersistingAssets)
	err = o.executor.Run(runCtx, job.ID, domain.StageAssetPersistence, func(ctx context.Context) (string, error) {
		persisted := allAssets(article)
		if perr := o.assets.PersistAll(ctx, persisted, true); perr != nil {
			return "", perr
		}
		writeBackAssets(article, persisted)
		return "", nil
	})
	if err != nil {
		return o.finalize(ctx, log, job, tenant, article, domain.StageAssetPersistence, err)
	}
	o.markAssetsPersisted(ctx, log, article)

	// Formatting.
	o.setState(ctx, log, job, domain.JobStateFormatting)
	err = o.executor.Run(runCtx, job.ID, domain.StageFormatting, func(ctx context.Context) (string, error) {
		markup, kind, ferr := o.formatter.Format(ctx, o.formatRequest(tenant, draft, article))
		if ferr != nil {
			return "", ferr
		}
		article.BodyMarkup = markup
		article.FormatterUsed = kind
		return string(kind), nil
	})
	if err != nil {
		o.saveEmergencyDraft(ctx, log, job, draft)
		return o.finalize(ctx, log, job, tenant, article, domain.StageFormatting, err)
	}

	// Publishing. Never retried: a second pass would re-upload every media
	// item to the CMS.
	o.setState(ctx, log, job, domain.JobStatePublishing)
	err = o.executor.RunOnce(runCtx, job.ID, domain.StagePublishing, func(ctx context.Context) (string, error) {
		target, perr := o.publisher.Publish(ctx, job.RequestedMode, tenant, article)
		return string(target), perr
	})
	if err != nil {
		return o.finalize(ctx, log, job, tenant, article, domain.StagePublishing, err)
	}

	if cerr := o.articles.CreateArticle(ctx, article); cerr != nil {
		log.Error().Err(cerr).Msg("pipeline: store article row failed")
	}

	job.State = domain.JobStateCompleted
	job.Outcome = domain.OutcomeSuccess
	if ferr := o.jobs.Finish(ctx, job); ferr != nil {
		return fmt.Errorf("finish job: %w", ferr)
	}
	if nerr := o.notifier.JobSucceeded(ctx, tenant, job, article); nerr != nil {
		log.Error().Err(nerr).Msg("pipeline: success notification failed")
	}
	log.Info().Str("formatter", string(article.FormatterUsed)).Str("artifact", article.ArtifactRef).Str("post_id", article.CMSPostID).Msg("pipeline: job completed")
	return nil
}

// finalize records the terminal failure, refunds when nothing of value was
// delivered, and sends the failure notification.
func (o *Orchestrator) finalize(ctx context.Context, log zerolog.Logger, job *domain.Job, tenant domain.TenantConfig, article *domain.Article, stage domain.StageName, cause error) error {
	job.State = domain.JobStateFailed
	job.FailedStage = stage
	job.ErrorClass = domain.Classify(cause)

	refund := !article.HasDeliverable()
	if refund {
		job.Outcome = domain.OutcomeFailedRefunded
	} else {
		job.Outcome = domain.OutcomeFailedNoRefund
	}

	log.Error().Err(cause).
		Str("stage", string(stage)).
		Str("error_class", string(job.ErrorClass)).
		Bool("refunded", refund).
		Msg("pipeline: job failed")

	if article != nil && article.HasDeliverable() {
		if cerr := o.articles.CreateArticle(ctx, article); cerr != nil {
			log.Error().Err(cerr).Msg("pipeline: store partial article failed")
		}
	}
	if ferr := o.jobs.Finish(ctx, job); ferr != nil {
		return fmt.Errorf("finish failed job: %w", ferr)
	}
	if refund {
		if rerr := o.refunder.Refund(ctx, job.TenantID, job.ID, o.cfg.ArticleCostCents, string(stage)+" failed"); rerr != nil {
			log.Error().Err(rerr).Msg("pipeline: refund failed")
		}
	}
	if tenant.Email != "" {
		if nerr := o.notifier.JobFailed(ctx, tenant, job, article, cause); nerr != nil {
			log.Error().Err(nerr).Msg("pipeline: failure notification failed")
		}
	}
	return nil
}

func (o *Orchestrator) setState(ctx context.Context, log zerolog.Logger, job *domain.Job, state domain.JobState) {
	job.State = state
	if err := o.jobs.SetState(ctx, job.ID, state); err != nil {
		log.Error().Err(err).Str("state", string(state)).Msg("pipeline: persist state failed")
	}
	log.Info().Str("state", string(state)).Msg("pipeline: state advanced")
}

func (o *Orchestrator) recordAssets(ctx context.Context, log zerolog.Logger, article *domain.Article) {
	for _, a := range allAssets(article) {
		a := a
		if err := o.articles.CreateAsset(ctx, &a); err != nil {
			log.Error().Err(err).Str("asset_id", a.ID).Msg("pipeline: store asset row failed")
		}
	}
}

func (o *Orchestrator) markAssetsPersisted(ctx context.Context, log zerolog.Logger, article *domain.Article) {
	for _, a := range allAssets(article) {
		a := a
		if err := o.articles.MarkAssetPersisted(ctx, &a); err != nil {
			log.Error().Err(err).Str("asset_id", a.ID).Msg("pipeline: mark asset persisted failed")
		}
	}
}

func (o *Orchestrator) formatRequest(tenant domain.TenantConfig, draft *domain.ArticleDraft, article *domain.Article) formatter.Request {
	req := formatter.Request{
		Draft:        draft,
		PrimaryColor: tenant.BrandPrimaryColor,
		AccentColor:  tenant.BrandAccentColor,
	}
	if article.Hero != nil {
		req.Hero = formatter.ImageRef{Placeholder: article.Hero.Placeholder(), URL: article.Hero.SourceURL}
	}
	for i := range article.Sections {
		a := &article.Sections[i]
		req.Sections = append(req.Sections, formatter.ImageRef{Placeholder: a.Placeholder(), URL: a.SourceURL})
	}
	return req
}

func (o *Orchestrator) saveEmergencyDraft(ctx context.Context, log zerolog.Logger, job *domain.Job, draft *domain.ArticleDraft) {
	if o.emergency == nil || draft == nil {
		return
	}
	var b []byte
	b = append(b, "# "+draft.Title+"\n\n"...)
	if draft.Subtitle != "" {
		b = append(b, draft.Subtitle+"\n\n"...)
	}
	for _, s := range draft.Sections {
		b = append(b, "## "+s.Heading+"\n\n"+s.Body+"\n\n"...)
	}
	ref, err := o.emergency.Write(ctx, fmt.Sprintf("articles/%s/draft.md", job.ID), b)
	if err != nil {
		log.Error().Err(err).Msg("pipeline: emergency draft save failed")
		return
	}
	log.Warn().Str("ref", ref).Msg("pipeline: formatting failed, raw draft saved")
}

func allAssets(article *domain.Article) []domain.ImageAsset {
	var out []domain.ImageAsset
	if article.Hero != nil {
		out = append(out, *article.Hero)
	}
	out = append(out, article.Sections...)
	return out
}

// writeBackAssets copies persisted refs from the working slice back onto the
// article, which allAssets handed out by value.
func writeBackAssets(article *domain.Article, persisted []domain.ImageAsset) {
	i := 0
	if article.Hero != nil && i < len(persisted) {
		*article.Hero = persisted[i]
		i++
	}
	for j := range article.Sections {
		if i+j < len(persisted) {
			article.Sections[j] = persisted[i+j]
		}
	}
}
