package formatter

import (
	"context"
	"errors"

	"pressroom/internal/domain"
)

// Chain tries the primary (AI) strategy and falls back to the deterministic
// template on any primary failure. The fallback decision is an explicit
// tagged step, not an exception crossing a module boundary: OnFallback
// receives the reason whenever the template takes over. The chain only
// surfaces an error when both strategies fail.
type Chain struct {
	Primary    Strategy
	Fallback   Strategy
	OnFallback func(reason string, err error)
}

func NewChain(primary, fallback Strategy, onFallback func(reason string, err error)) *Chain {
	return &Chain{Primary: primary, Fallback: fallback, OnFallback: onFallback}
}

// Format runs the strategy chain and reports which strategy produced the
// markup.
func (c *Chain) Format(ctx context.Context, req Request) (string, domain.FormatterKind, error) {
	if c.Primary != nil {
		markup, err := c.Primary.Format(ctx, req)
		if err == nil {
			return markup, domain.FormatterAI, nil
		}
		if c.OnFallback != nil {
			c.OnFallback(fallbackReason(err), err)
		}
	}
	markup, err := c.Fallback.Format(ctx, req)
	if err != nil {
		return "", domain.FormatterTemplate, domain.Classified(domain.ErrClassInvalidInput, err)
	}
	return markup, domain.FormatterTemplate, nil
}

func fallbackReason(err error) string {
	switch {
	case err == nil:
		return "primary_missing"
	case errors.Is(err, ErrInputTooLarge):
		return "size_ceiling"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "primary_error"
	}
}
