package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pressroom/internal/http/handlers"
	"pressroom/internal/middleware"
)

// Options carry the cross-cutting pieces the router wires in.
type Options struct {
	App             *handlers.App
	Auth            func(http.Handler) http.Handler
	Logger          func(http.Handler) http.Handler
	Geo             func(http.Handler) http.Handler
	RateLimitPerMin int
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
	)
	if opts.Geo != nil {
		r.Use(opts.Geo)
	}
	if opts.Logger != nil {
		r.Use(opts.Logger)
	}

	r.Get("/v1/healthz", opts.App.Health)

	// Webhooks authenticate with their own signature, not an API key.
	r.Post("/v1/webhooks/payment", opts.App.PaymentWebhook)

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/v1/jobs", opts.App.CreateJob)
		r.Get("/v1/jobs/{id}", opts.App.GetJob)
		r.Post("/v1/jobs/{id}/publish", opts.App.PublishArticle)
		r.Get("/v1/credits", opts.App.GetCredits)
	})

	return r
}
