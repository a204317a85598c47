package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AIOptions controls the AI layout strategy. InputCeiling is the hard size
// limit on the composed prompt: oversized inputs are rejected before the
// call, not discovered through a remote error.
type AIOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	HTTPClient   *http.Client
	InputCeiling int
}

// AIStrategy asks an Anthropic model to lay the article out with editorial
// judgement about pull quotes, pacing and image placement.
type AIStrategy struct {
	apiKey       string
	baseURL      string
	model        string
	httpClient   *http.Client
	inputCeiling int
}

// ErrInputTooLarge signals the size ceiling was hit before any remote call.
var ErrInputTooLarge = errors.New("formatter input exceeds size ceiling")

func NewAIStrategy(opts AIOptions) *AIStrategy {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	ceiling := opts.InputCeiling
	if ceiling <= 0 {
		ceiling = 180_000
	}
	return &AIStrategy{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		model:        model,
		httpClient:   client,
		inputCeiling: ceiling,
	}
}

type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	Messages  []messagePayload `json:"messages"`
}

type messagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AIStrategy) Format(ctx context.Context, req Request) (string, error) {
	if a.apiKey == "" {
		return "", errors.New("ai formatter: api key is missing")
	}
	if req.Draft == nil || req.Draft.Title == "" {
		return "", errors.New("ai formatter: draft title is required")
	}

	prompt := a.buildPrompt(req)
	if len(prompt) > a.inputCeiling {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrInputTooLarge, len(prompt), a.inputCeiling)
	}

	payload := messagesRequest{
		Model:     a.model,
		MaxTokens: 8000,
		Messages:  []messagePayload{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ai formatter: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("ai formatter: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai formatter: status %d", resp.StatusCode)
	}

	var decoded messagesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("ai formatter: decode response: %w", err)
	}
	var markup string
	for _, part := range decoded.Content {
		if part.Type == "text" {
			markup += part.Text
		}
	}
	markup = stripCodeFences(strings.TrimSpace(markup))
	if markup == "" {
		return "", errors.New("ai formatter: empty markup")
	}
	if err := validateMarkup(markup, req); err != nil {
		return "", err
	}
	return markup, nil
}

func (a *AIStrategy) buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You are a magazine layout designer. Produce the complete HTML body for this article using the premium magazine structure ")
	sb.WriteString("(cover, section-header, content-area with main-column and sidebar, pull-quote, stat-highlight, case-study-box classes). ")
	sb.WriteString("Wrap everything in <div class=\"magazine-article-wrapper\">. Refer to every image ONLY by its placeholder token, never a URL. ")
	sb.WriteString("Return only HTML, no code fences.\n")
	fmt.Fprintf(&sb, "\nBRAND COLORS: primary %s, accent %s\n", req.PrimaryColor, req.AccentColor)
	fmt.Fprintf(&sb, "HERO IMAGE TOKEN: %s\n", req.Hero.Placeholder)
	for i, ref := range req.Sections {
		fmt.Fprintf(&sb, "SECTION %d IMAGE TOKEN: %s\n", i+1, ref.Placeholder)
	}
	fmt.Fprintf(&sb, "\nTITLE: %s\nSUBTITLE: %s\n", req.Draft.Title, req.Draft.Subtitle)
	for _, section := range req.Draft.Sections {
		fmt.Fprintf(&sb, "\n<h2>%s</h2>\n%s\n", section.Heading, section.Body)
	}
	return sb.String()
}

// validateMarkup rejects malformed model output before anyone publishes it:
// the wrapper must be present and every image token must survive the layout.
func validateMarkup(markup string, req Request) error {
	if !strings.Contains(markup, "magazine-article-wrapper") {
		return errors.New("ai formatter: wrapper div missing from markup")
	}
	if !strings.Contains(markup, req.Hero.Placeholder) {
		return errors.New("ai formatter: hero token missing from markup")
	}
	for _, ref := range req.Sections {
		if !strings.Contains(markup, ref.Placeholder) {
			return fmt.Errorf("ai formatter: token %s missing from markup", ref.Placeholder)
		}
	}
	return nil
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```html")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
