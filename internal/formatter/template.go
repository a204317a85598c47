package formatter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	defaultPrimaryColor = "#4a9d5f"
	defaultAccentColor  = "#8b7355"
)

// TemplateStrategy renders the magazine layout deterministically. It is pure
// and local: the only way it fails is a draft missing required fields, never
// a formatting fault, which is what makes it a safe fallback.
type TemplateStrategy struct {
	titleCaser cases.Caser
}

func NewTemplateStrategy() *TemplateStrategy {
	return &TemplateStrategy{titleCaser: cases.Title(language.English)}
}

func (t *TemplateStrategy) Format(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Draft == nil || req.Draft.Title == "" {
		return "", errors.New("template: draft title is required")
	}
	if len(req.Draft.Sections) == 0 {
		return "", errors.New("template: draft has no sections")
	}
	if req.Hero.Placeholder == "" {
		return "", errors.New("template: hero image is required")
	}

	primary := req.PrimaryColor
	if primary == "" {
		primary = defaultPrimaryColor
	}
	accent := req.AccentColor
	if accent == "" {
		accent = defaultAccentColor
	}

	var sb strings.Builder
	sb.WriteString(`<div class="magazine-article-wrapper"><div class="magazine-container" style="--brand-color:` + primary + `;--accent-color:` + accent + `">` + "\n")

	fmt.Fprintf(&sb, `<div class="cover" style="background-image: url('%s');"><h1>%s</h1>`, req.Hero.Placeholder, req.Draft.Title)
	if req.Draft.Subtitle != "" {
		fmt.Fprintf(&sb, `<div class="subtitle">%s</div>`, req.Draft.Subtitle)
	}
	sb.WriteString("</div>\n")

	for i, section := range req.Draft.Sections {
		heading := section.Heading
		if heading == "" {
			heading = t.titleCaser.String(fallbackHeading(req.Draft.Title, i))
		}
		sb.WriteString(`<div class="section">`)
		if i < len(req.Sections) {
			fmt.Fprintf(&sb, `<div class="section-header" style="background-image: url('%s');"><h2>%s</h2></div>`, req.Sections[i].Placeholder, heading)
		} else {
			fmt.Fprintf(&sb, `<div class="section-header"><h2>%s</h2></div>`, heading)
		}
		sb.WriteString(`<div class="content-area"><div class="main-column">`)
		sb.WriteString(section.Body)
		if quote := extractPullQuote(section.Body); quote != "" {
			fmt.Fprintf(&sb, `<div class="pull-quote">%s</div>`, quote)
		}
		sb.WriteString(`</div></div></div>` + "\n")
	}

	sb.WriteString(`</div></div>`)
	return sb.String(), nil
}

func fallbackHeading(title string, index int) string {
	return fmt.Sprintf("%s, part %d", title, index+1)
}

// extractPullQuote lifts the first reasonably sized sentence out of a section
// body so even the deterministic layout gets some visual rhythm.
func extractPullQuote(body string) string {
	text := stripTags(body)
	for _, sentence := range strings.SplitAfter(text, ".") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) >= 60 && len(sentence) <= 220 {
			return sentence
		}
	}
	return ""
}

func stripTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteRune(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
