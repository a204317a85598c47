package repo

import (
	"context"

	"pressroom/internal/domain"
	"pressroom/internal/infra"
	"pressroom/internal/sqlinline"
)

// ArticleRepository persists articles and their image assets.
type ArticleRepository struct {
	sql infra.SQLExecutor
}

func NewArticleRepository(sql infra.SQLExecutor) *ArticleRepository {
	return &ArticleRepository{sql: sql}
}

// CreateAsset records a freshly generated image with its expiry window.
func (r *ArticleRepository) CreateAsset(ctx context.Context, asset *domain.ImageAsset) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertImageAsset,
		asset.ID,
		asset.JobID,
		string(asset.Role),
		asset.Index,
		asset.Prompt,
		asset.AspectRatio,
		asset.SourceURL,
		asset.ExpiresAt,
	)
	return err
}

// MarkAssetPersisted sets the durable reference once bytes are downloaded.
func (r *ArticleRepository) MarkAssetPersisted(ctx context.Context, asset *domain.ImageAsset) error {
	_, err := r.sql.Exec(ctx, sqlinline.QSetAssetLocalRef, asset.ID, asset.LocalRef, asset.Bytes)
	return err
}

// GetByJobID loads the article produced by a job. Body markup and asset rows
// are not hydrated; callers after job completion only need the references.
func (r *ArticleRepository) GetByJobID(ctx context.Context, jobID string) (*domain.Article, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectArticleByJob, jobID)
	var a domain.Article
	if err := row.Scan(&a.ID, &a.JobID, &a.Title, &a.Subtitle, &a.CMSPostID, &a.CMSPostURL, &a.ArtifactRef, &a.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// MarkPublished records the live post URL after a draft is published.
func (r *ArticleRepository) MarkPublished(ctx context.Context, articleID, postURL string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QSetArticlePublished, articleID, postURL)
	return err
}

// CreateArticle stores the final content object.
func (r *ArticleRepository) CreateArticle(ctx context.Context, article *domain.Article) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertArticle,
		article.ID,
		article.JobID,
		article.Title,
		article.Subtitle,
		article.BodyMarkup,
		string(article.FormatterUsed),
		article.CMSPostID,
		article.CMSPostURL,
		article.ArtifactRef,
	)
	return err
}
