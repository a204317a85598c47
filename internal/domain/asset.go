package domain

import (
	"fmt"
	"time"
)

// AssetRole distinguishes the cover image from in-article section images.
type AssetRole string

const (
	AssetRoleHero    AssetRole = "hero"
	AssetRoleSection AssetRole = "section"
)

// ImageAsset is one generated image. SourceURL points at the provider's
// time-limited location; LocalRef is set once the bytes are durable. An asset
// whose LocalRef is still empty past ExpiresAt is unusable.
type ImageAsset struct {
	ID          string
	JobID       string
	Role        AssetRole
	Index       int
	Prompt      string
	AspectRatio string
	SourceURL   string
	ExpiresAt   time.Time
	LocalRef    string
	InlineRef   string // data URI, populated for local-artifact jobs
	Bytes       int64
	CreatedAt   time.Time
}

// Expired reports whether the remote URL can no longer be trusted at now.
func (a *ImageAsset) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// Placeholder returns the markup token this asset substitutes into.
func (a *ImageAsset) Placeholder() string {
	if a.Role == AssetRoleHero {
		return "{{IMAGE_HERO}}"
	}
	return placeholderForSection(a.Index)
}

func placeholderForSection(index int) string {
	if index < 1 {
		index = 0
	}
	return fmt.Sprintf("{{IMAGE_%d}}", index)
}

// EarliestExpiry returns the soonest ExpiresAt across assets, or zero when
// the slice is empty. The orchestrator derives the remaining pipeline
// deadline from it.
func EarliestExpiry(assets []ImageAsset) time.Time {
	var earliest time.Time
	for _, a := range assets {
		if a.ExpiresAt.IsZero() {
			continue
		}
		if earliest.IsZero() || a.ExpiresAt.Before(earliest) {
			earliest = a.ExpiresAt
		}
	}
	return earliest
}
