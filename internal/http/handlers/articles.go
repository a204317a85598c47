package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pressroom/internal/domain"
	"pressroom/internal/middleware"
)

// PublishArticle flips a job's CMS draft to published. Drafts stay drafts
// until the tenant asks; the pipeline itself never publishes.
func (a *App) PublishArticle(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "job not found")
			return
		}
		a.jsonError(w, http.StatusInternalServerError, "load job failed")
		return
	}
	if job.TenantID != tenantID {
		a.jsonError(w, http.StatusNotFound, "job not found")
		return
	}

	article, err := a.Articles.GetByJobID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "no article for this job")
			return
		}
		a.jsonError(w, http.StatusInternalServerError, "load article failed")
		return
	}
	if article.CMSPostID == "" {
		a.jsonError(w, http.StatusConflict, "job has no cms draft to publish")
		return
	}

	tenant, err := a.Tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "load tenant failed")
		return
	}

	post, err := a.CMS.PublishPost(r.Context(), tenant, article.CMSPostID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: publish post failed")
		switch domain.Classify(err) {
		case domain.ErrClassAuth:
			a.jsonError(w, http.StatusUnprocessableEntity, "cms rejected the credentials, check your application password")
		default:
			a.jsonError(w, http.StatusBadGateway, "cms publish failed")
		}
		return
	}
	if err := a.Articles.MarkPublished(r.Context(), article.ID, post.URL); err != nil {
		a.Logger.Error().Err(err).Str("article_id", article.ID).Msg("handlers: record published url failed")
	}

	a.json(w, http.StatusOK, map[string]any{
		"post_id":  post.ID,
		"post_url": post.URL,
	})
}
