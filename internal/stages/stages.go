package stages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pressroom/internal/domain"
	"pressroom/internal/providers/imagegen"
)

// Researcher gathers current source material for a topic.
type Researcher interface {
	Research(ctx context.Context, topic, style string) (string, error)
}

// DraftWriter turns research into a structured article draft and derives
// image prompts from it.
type DraftWriter interface {
	GenerateDraft(ctx context.Context, research, style, instructions string) (*domain.ArticleDraft, error)
	ImagePrompts(ctx context.Context, draft *domain.ArticleDraft, n int) ([]string, error)
}

// ImageGenerator produces one image for one prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, aspectRatio string, ttl time.Duration) (imagegen.Generated, error)
}

const (
	heroAspectRatio    = "16:9"
	sectionAspectRatio = "4:3"
)

// GenerateImages fans prompts out to the image provider. The first prompt is
// the hero; the rest fill sections in order. One failure cancels the
// remaining generations, since a partial image set is never published.
func GenerateImages(ctx context.Context, gen ImageGenerator, jobID string, prompts []string, ttl time.Duration) (*domain.ImageAsset, []domain.ImageAsset, error) {
	if len(prompts) == 0 {
		return nil, nil, domain.Classified(domain.ErrClassInvalidInput, errors.New("no image prompts"))
	}

	assets := make([]domain.ImageAsset, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	for i, prompt := range prompts {
		role, ratio, index := domain.AssetRoleSection, sectionAspectRatio, i
		if i == 0 {
			role, ratio, index = domain.AssetRoleHero, heroAspectRatio, 0
		}
		assets[i] = domain.ImageAsset{
			ID:          uuid.NewString(),
			JobID:       jobID,
			Role:        role,
			Index:       index,
			Prompt:      prompt,
			AspectRatio: ratio,
			CreatedAt:   time.Now(),
		}
		i := i
		g.Go(func() error {
			out, err := gen.Generate(gctx, assets[i].Prompt, assets[i].AspectRatio, ttl)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			assets[i].SourceURL = out.URL
			assets[i].ExpiresAt = out.ExpiresAt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return &assets[0], assets[1:], nil
}
