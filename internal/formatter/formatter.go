package formatter

import (
	"context"

	"pressroom/internal/domain"
)

// Request is one formatting job: a structured draft plus the placeholder
// token and remote URL for every image. Strategies only ever see remote
// references; inlined encodings are substituted after formatting.
type Request struct {
	Draft        *domain.ArticleDraft
	Hero         ImageRef
	Sections     []ImageRef
	PrimaryColor string
	AccentColor  string
}

// ImageRef pairs a placeholder token with the remote URL a strategy may
// mention in generated markup.
type ImageRef struct {
	Placeholder string
	URL         string
}

// Strategy is one layout engine. A strategy returns the complete body markup
// with every image expressed as its placeholder token.
type Strategy interface {
	Format(ctx context.Context, req Request) (string, error)
}
