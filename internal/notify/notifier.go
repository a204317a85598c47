package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pressroom/internal/domain"
	"pressroom/internal/storage"
	pkgzip "pressroom/pkg/zip"
)

// Category buckets job failures for the tenant-facing email. Remediation
// text hangs off the category, not the raw error.
type Category string

const (
	CategoryAuth        Category = "authentication"
	CategoryMediaUpload Category = "media_upload"
	CategoryRemoteAPI   Category = "remote_api"
	CategoryOther       Category = "other"
)

// Categorize maps a failed stage and error class to a notification category.
func Categorize(stage domain.StageName, class domain.ErrorClass, err error) Category {
	if class == domain.ErrClassAuth {
		return CategoryAuth
	}
	if stage == domain.StagePublishing && err != nil && strings.Contains(err.Error(), "media upload") {
		return CategoryMediaUpload
	}
	switch class {
	case domain.ErrClassRemoteUnavailable, domain.ErrClassQuotaExceeded, domain.ErrClassTransient, domain.ErrClassTTLExpired:
		return CategoryRemoteAPI
	}
	return CategoryOther
}

func remediation(cat Category) string {
	switch cat {
	case CategoryAuth:
		return "Your site credentials were rejected. Check that the WordPress Application Password is still valid and that the username matches the account it was issued for."
	case CategoryMediaUpload:
		return "The article was written but its images could not be uploaded to your site. Check the media upload size limit and available disk space on your WordPress host."
	case CategoryRemoteAPI:
		return "An upstream service was temporarily unavailable. Your credits for this article have been refunded; no action is needed, and you can retry at any time."
	default:
		return "Something unexpected went wrong. Your credits for this article have been refunded. If this keeps happening, contact support with the job id below."
	}
}

// OnceGuard ensures a side effect happens at most once per key.
type OnceGuard interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

// RedisOnce is a SETNX-based OnceGuard. Keys expire so a crashed process
// cannot suppress notifications forever.
type RedisOnce struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisOnce(client *redis.Client, ttl time.Duration) *RedisOnce {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisOnce{client: client, ttl: ttl}
}

func (r *RedisOnce) Acquire(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, key, "1", r.ttl).Result()
}

const maxAttachmentBytes = 20 << 20

// Notifier sends the single terminal email per job. The guard makes the
// send idempotent across worker retries and crashes.
type Notifier struct {
	mailer Mailer
	guard  OnceGuard
	files  *storage.FileStore
	logger zerolog.Logger
}

func NewNotifier(mailer Mailer, guard OnceGuard, files *storage.FileStore, logger zerolog.Logger) *Notifier {
	return &Notifier{mailer: mailer, guard: guard, files: files, logger: logger}
}

// JobSucceeded emails the tenant their finished article. Local-artifact jobs
// get the HTML attached; CMS jobs get the draft link.
func (n *Notifier) JobSucceeded(ctx context.Context, cfg domain.TenantConfig, job *domain.Job, article *domain.Article) error {
	ok, err := n.acquire(ctx, job.ID)
	if err != nil || !ok {
		return err
	}

	msg := Message{
		To:      cfg.Email,
		Subject: fmt.Sprintf("Your article is ready: %s", article.Title),
	}
	switch {
	case article.CMSPostID != "":
		msg.PlainBody = fmt.Sprintf(
			"Your article %q has been created as a draft on your site.\n\nReview and publish it here: %s\n\nJob id: %s\n",
			article.Title, article.CMSPostURL, job.ID)
	default:
		msg.PlainBody = fmt.Sprintf(
			"Your article %q is attached as a standalone HTML file with all images embedded.\n\nJob id: %s\n",
			article.Title, job.ID)
		att, attErr := n.artifactAttachment(ctx, article)
		if attErr != nil {
			n.logger.Error().Err(attErr).Str("job_id", job.ID).Msg("notify: attachment unavailable, sending without it")
			msg.PlainBody += "\nThe file was too large to attach; it remains available in your account storage.\n"
		} else {
			msg.Attachments = append(msg.Attachments, att)
		}
	}
	return n.send(ctx, job.ID, msg)
}

// JobFailed emails the tenant a categorized failure notice with remediation
// steps. When the run already produced a local fallback artifact, it rides
// along as an attachment so the written work is never stranded.
func (n *Notifier) JobFailed(ctx context.Context, cfg domain.TenantConfig, job *domain.Job, article *domain.Article, cause error) error {
	ok, err := n.acquire(ctx, job.ID)
	if err != nil || !ok {
		return err
	}

	cat := Categorize(job.FailedStage, job.ErrorClass, cause)
	refundNote := "Your credits for this article have been refunded."
	if job.Outcome == domain.OutcomeFailedNoRefund {
		refundNote = "A deliverable was already produced, so this run was not refunded."
	}
	body := fmt.Sprintf("We could not finish your article about %q. Generation failed during the %s step.\n\n%s\n\n%s\n",
		job.Topic, stageLabel(job.FailedStage), remediation(cat), refundNote)

	msg := Message{
		To:      cfg.Email,
		Subject: fmt.Sprintf("Article generation failed (%s)", job.Topic),
	}
	if article != nil && article.ArtifactRef != "" {
		att, attErr := n.artifactAttachment(ctx, article)
		if attErr != nil {
			n.logger.Error().Err(attErr).Str("job_id", job.ID).Msg("notify: fallback attachment unavailable, sending without it")
			body += "\nThe finished article file was too large to attach; it remains available in your account storage.\n"
		} else {
			body += "\nYour finished article is attached as a standalone HTML file with all images embedded.\n"
			msg.Attachments = append(msg.Attachments, att)
		}
	}
	msg.PlainBody = body + fmt.Sprintf("\nJob id: %s\n", job.ID)
	return n.send(ctx, job.ID, msg)
}

func stageLabel(stage domain.StageName) string {
	switch stage {
	case domain.StageResearch:
		return "research"
	case domain.StageContent:
		return "writing"
	case domain.StageImagePrompts, domain.StageImageGeneration:
		return "image generation"
	case domain.StageAssetPersistence:
		return "image download"
	case domain.StageFormatting:
		return "layout"
	case domain.StagePublishing:
		return "publishing"
	default:
		return "processing"
	}
}

func (n *Notifier) acquire(ctx context.Context, jobID string) (bool, error) {
	ok, err := n.guard.Acquire(ctx, "notify:job:"+jobID)
	if err != nil {
		return false, domain.Classified(domain.ErrClassTransient, fmt.Errorf("notify guard: %w", err))
	}
	if !ok {
		n.logger.Debug().Str("job_id", jobID).Msg("notify: already sent, skipping")
	}
	return ok, nil
}

func (n *Notifier) send(ctx context.Context, jobID string, msg Message) error {
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error().Err(err).Str("job_id", jobID).Msg("notify: send failed")
		return err
	}
	n.logger.Info().Str("job_id", jobID).Str("to", msg.To).Msg("notify: sent")
	return nil
}

func (n *Notifier) artifactAttachment(ctx context.Context, article *domain.Article) (Attachment, error) {
	data, err := n.files.Read(ctx, article.ArtifactRef)
	if err != nil {
		return Attachment{}, err
	}
	if len(data) <= maxAttachmentBytes {
		return Attachment{Filename: "article.html", ContentType: "text/html", Data: data}, nil
	}
	zipped, err := pkgzip.Compress("article.html", data)
	if err != nil {
		return Attachment{}, err
	}
	if len(zipped) > maxAttachmentBytes {
		return Attachment{}, fmt.Errorf("artifact too large to attach even zipped (%d bytes)", len(zipped))
	}
	return Attachment{Filename: "article.zip", ContentType: "application/zip", Data: zipped}, nil
}

// RechargeSucceeded and RechargeFailed satisfy the ledger's alerter hook.
func (n *Notifier) RechargeSucceeded(ctx context.Context, cfg domain.TenantConfig, amountCents, balanceCents int64) {
	msg := Message{
		To:      cfg.Email,
		Subject: "Credits topped up",
		PlainBody: fmt.Sprintf("Your balance dropped below the auto-recharge threshold, so we added %s in credits. Your balance is now %s.\n",
			formatCents(amountCents), formatCents(balanceCents)),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error().Err(err).Str("tenant_id", cfg.ID).Msg("notify: recharge success mail failed")
	}
}

func (n *Notifier) RechargeFailed(ctx context.Context, cfg domain.TenantConfig, amountCents int64, reason string) {
	n.logger.Warn().Str("tenant_id", cfg.ID).Str("reason", reason).Msg("notify: auto-recharge failed")
	msg := Message{
		To:      cfg.Email,
		Subject: "Auto-recharge failed",
		PlainBody: fmt.Sprintf("We tried to top up your credits by %s automatically but the payment did not go through. "+
			"Update your payment method, or add credits manually, to keep scheduled articles running.\n", formatCents(amountCents)),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error().Err(err).Str("tenant_id", cfg.ID).Msg("notify: recharge failure mail failed")
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
