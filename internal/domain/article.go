package domain

import "time"

// FormatterKind records which layout strategy produced the final markup.
type FormatterKind string

const (
	FormatterAI       FormatterKind = "ai"
	FormatterTemplate FormatterKind = "template"
)

// DraftSection is one major section of a generated draft.
type DraftSection struct {
	Heading string
	Body    string
}

// ArticleDraft is the structured output of the content-generation stage:
// title, subtitle and section bodies, before any layout is applied.
type ArticleDraft struct {
	Title    string
	Subtitle string
	Sections []DraftSection
}

// Article is the final content object for one job. BodyMarkup holds
// placeholder tokens ({{IMAGE_HERO}}, {{IMAGE_n}}) until a persistence target
// substitutes concrete image references.
type Article struct {
	ID            string
	JobID         string
	Title         string
	Subtitle      string
	BodyMarkup    string
	FormatterUsed FormatterKind
	Hero          *ImageAsset
	Sections      []ImageAsset
	CMSPostID     string
	CMSPostURL    string
	ArtifactRef   string
	CreatedAt     time.Time
}

// HasDeliverable reports whether the tenant already has something of value:
// a stored local artifact or a created CMS draft. Refund policy hangs off
// this.
func (a *Article) HasDeliverable() bool {
	if a == nil {
		return false
	}
	return a.ArtifactRef != "" || a.CMSPostID != ""
}
