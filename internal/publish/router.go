package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
	"pressroom/internal/storage"
)

// Target is where a finished article lands.
type Target string

const (
	TargetLocal Target = "local"
	TargetCMS   Target = "cms"
)

// DecideTarget maps the requested persist mode and tenant CMS setup to a
// concrete target. Mode "cms" without CMS credentials is rejected up front;
// "auto" quietly degrades to a local artifact.
func DecideTarget(mode domain.PersistMode, cfg domain.TenantConfig) (Target, error) {
	switch mode {
	case domain.PersistModeLocal:
		return TargetLocal, nil
	case domain.PersistModeCMS:
		if !cfg.CMSConfigured() {
			return "", domain.Classified(domain.ErrClassInvalidInput, domain.ErrCMSNotConfigured)
		}
		return TargetCMS, nil
	case domain.PersistModeAuto:
		if cfg.CMSConfigured() {
			return TargetCMS, nil
		}
		return TargetLocal, nil
	default:
		return "", domain.Classified(domain.ErrClassInvalidInput, fmt.Errorf("unknown persist mode %q", mode))
	}
}

// Router takes a formatted article whose markup still carries placeholder
// tokens and materializes it for one target. The local path inlines data
// URIs; the CMS path uploads media and substitutes hosted URLs. Either way a
// local fallback artifact is written first, so a CMS failure at any sub-step
// still leaves a recoverable file on disk.
type Router struct {
	files  *storage.FileStore
	cms    CMSClient
	logger zerolog.Logger
}

func NewRouter(files *storage.FileStore, cms CMSClient, logger zerolog.Logger) *Router {
	return &Router{files: files, cms: cms, logger: logger}
}

// Publish resolves the target and fills the article's ArtifactRef and, for
// CMS jobs, CMSPostID/CMSPostURL. The article's BodyMarkup keeps its
// placeholder form; substituted variants live only in the outputs.
func (r *Router) Publish(ctx context.Context, mode domain.PersistMode, cfg domain.TenantConfig, article *domain.Article) (Target, error) {
	target, err := DecideTarget(mode, cfg)
	if err != nil {
		return "", err
	}

	if err := r.writeLocalArtifact(ctx, article); err != nil {
		return target, err
	}

	if target == TargetLocal {
		r.logger.Info().Str("job_id", article.JobID).Str("artifact", article.ArtifactRef).Msg("publish: local artifact stored")
		return target, nil
	}

	if err := r.publishToCMS(ctx, cfg, article); err != nil {
		// ArtifactRef already points at the fallback file; the caller
		// decides whether that counts as delivery.
		return target, err
	}
	r.logger.Info().Str("job_id", article.JobID).Str("post_id", article.CMSPostID).Msg("publish: cms draft created")
	return target, nil
}

func (r *Router) writeLocalArtifact(ctx context.Context, article *domain.Article) error {
	markup, err := substitute(article, func(a *domain.ImageAsset) (string, error) {
		if a.InlineRef == "" {
			return "", fmt.Errorf("asset %s-%d has no inline data", a.Role, a.Index)
		}
		return a.InlineRef, nil
	})
	if err != nil {
		return domain.Classified(domain.ErrClassInvalidInput, err)
	}

	doc := wrapDocument(article.Title, markup)
	key := fmt.Sprintf("articles/%s/article.html", article.JobID)
	ref, err := r.files.Write(ctx, key, []byte(doc))
	if err != nil {
		return domain.Classified(domain.ErrClassTransient, fmt.Errorf("write artifact: %w", err))
	}
	article.ArtifactRef = ref
	return nil
}

func (r *Router) publishToCMS(ctx context.Context, cfg domain.TenantConfig, article *domain.Article) error {
	hosted := make(map[string]string, len(article.Sections)+1)
	var featuredMedia int64

	upload := func(a *domain.ImageAsset) error {
		data, err := r.files.Read(ctx, a.LocalRef)
		if err != nil {
			return domain.Classified(domain.ErrClassTransient, fmt.Errorf("read %s: %w", a.LocalRef, err))
		}
		media, err := r.cms.UploadMedia(ctx, cfg, path.Base(a.LocalRef), data)
		if err != nil {
			return fmt.Errorf("media upload %s-%d: %w", a.Role, a.Index, err)
		}
		hosted[a.Placeholder()] = media.URL
		if a.Role == domain.AssetRoleHero {
			featuredMedia = media.ID
		}
		return nil
	}

	if article.Hero != nil {
		if err := upload(article.Hero); err != nil {
			return err
		}
	}
	for i := range article.Sections {
		if err := upload(&article.Sections[i]); err != nil {
			return err
		}
	}

	markup, err := substitute(article, func(a *domain.ImageAsset) (string, error) {
		url, ok := hosted[a.Placeholder()]
		if !ok {
			return "", fmt.Errorf("no hosted url for %s", a.Placeholder())
		}
		return url, nil
	})
	if err != nil {
		return domain.Classified(domain.ErrClassInvalidInput, err)
	}

	post, err := r.cms.CreateDraft(ctx, cfg, article.Title, markup, featuredMedia)
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	article.CMSPostID = post.ID
	article.CMSPostURL = post.URL
	return nil
}

// substitute replaces every placeholder token in the article markup with the
// reference picked by ref. A token left unresolved is an error: shipping an
// article with a literal {{IMAGE_1}} in it is worse than failing.
func substitute(article *domain.Article, ref func(*domain.ImageAsset) (string, error)) (string, error) {
	markup := article.BodyMarkup
	apply := func(a *domain.ImageAsset) error {
		r, err := ref(a)
		if err != nil {
			return err
		}
		markup = strings.ReplaceAll(markup, a.Placeholder(), r)
		return nil
	}
	if article.Hero != nil {
		if err := apply(article.Hero); err != nil {
			return "", err
		}
	}
	for i := range article.Sections {
		if err := apply(&article.Sections[i]); err != nil {
			return "", err
		}
	}
	if strings.Contains(markup, "{{IMAGE_") {
		return "", errors.New("markup still contains unresolved image placeholders")
	}
	return markup, nil
}

func wrapDocument(title, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<title>" + htmlEscape(title) + "</title>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}
