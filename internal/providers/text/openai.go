package text

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

	"pressroom/internal/domain"
)

// Options controls how the OpenAI client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client wraps the OpenAI responses API for draft generation and image-prompt
// authoring. One structured call returns the whole draft, so a single
// malformed response fails the stage instead of leaving a half-built article.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "gpt-5-mini"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
	}
}

type responsesRequest struct {
	Model           string         `json:"model"`
	Input           string         `json:"input"`
	Instructions    string         `json:"instructions,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Text            *textFormatOpt `json:"text,omitempty"`
}

type textFormatOpt struct {
	Format struct {
		Type string `json:"type"`
	} `json:"format"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type draftJSON struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Sections []struct {
		Heading string `json:"heading"`
		Body    string `json:"body"`
	} `json:"sections"`
}

// GenerateDraft turns research text into a structured article draft.
func (c *Client) GenerateDraft(ctx context.Context, research, style, instructions string) (*domain.ArticleDraft, error) {
	if c.apiKey == "" {
		return nil, domain.Classified(domain.ErrClassInvalidInput, errors.New("openai api key is missing"))
	}
	if strings.TrimSpace(research) == "" {
		return nil, domain.Classified(domain.ErrClassInvalidInput, errors.New("research input is empty"))
	}
	input := "Write a 1500-2500 word magazine article from this research. " +
		`Return only JSON: {"title": string, "subtitle": string, "sections": [{"heading": string, "body": string}]} with exactly 3 sections, each 400-700 words of HTML paragraphs.` +
		"\n\nRESEARCH:\n" + research
	if style != "" {
		input += "\n\nWRITING STYLE: " + style
	}
	raw, err := c.structuredCall(ctx, input, instructions, 16000)
	if err != nil {
		return nil, err
	}
	var decoded draftJSON
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, domain.Classified(domain.ErrClassTransient, fmt.Errorf("decode draft json: %w", err))
	}
	if decoded.Title == "" || len(decoded.Sections) == 0 {
		return nil, domain.Classified(domain.ErrClassTransient, errors.New("draft missing title or sections"))
	}
	draft := &domain.ArticleDraft{Title: decoded.Title, Subtitle: decoded.Subtitle}
	for _, s := range decoded.Sections {
		draft.Sections = append(draft.Sections, domain.DraftSection{Heading: s.Heading, Body: s.Body})
	}
	return draft, nil
}

type promptsJSON struct {
	Prompts []string `json:"prompts"`
}

// ImagePrompts authors n photographic prompts for the draft: the first is the
// hero establishing shot, the rest map one per section.
func (c *Client) ImagePrompts(ctx context.Context, draft *domain.ArticleDraft, n int) ([]string, error) {
	if c.apiKey == "" {
		return nil, domain.Classified(domain.ErrClassInvalidInput, errors.New("openai api key is missing"))
	}
	if draft == nil || len(draft.Sections) == 0 {
		return nil, domain.Classified(domain.ErrClassInvalidInput, errors.New("draft is empty"))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write %d photorealistic editorial photography prompts for this article. ", n)
	sb.WriteString("Each prompt names a professional camera, lighting and composition; no illustrations or CGI. ")
	sb.WriteString("The first is a 16:9 cover establishing shot; the rest are 4:3 and follow the section themes in order. ")
	sb.WriteString(`Return only JSON: {"prompts": [string]}.`)
	sb.WriteString("\n\nTITLE: " + draft.Title)
	for _, s := range draft.Sections {
		sb.WriteString("\nSECTION: " + s.Heading)
	}
	raw, err := c.structuredCall(ctx, sb.String(), "You are a photography art director.", 2000)
	if err != nil {
		return nil, err
	}
	var decoded promptsJSON
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, domain.Classified(domain.ErrClassTransient, fmt.Errorf("decode prompts json: %w", err))
	}
	if len(decoded.Prompts) < n {
		return nil, domain.Classified(domain.ErrClassTransient, fmt.Errorf("got %d prompts, want %d", len(decoded.Prompts), n))
	}
	return decoded.Prompts[:n], nil
}

func (c *Client) structuredCall(ctx context.Context, input, instructions string, maxTokens int) (string, error) {
	payload := responsesRequest{
		Model:           c.model,
		Input:           input,
		Instructions:    instructions,
		MaxOutputTokens: maxTokens,
	}
	payload.Text = &textFormatOpt{}
	payload.Text.Format.Type = "json_object"

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.Classified(domain.ErrClassTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", domain.Classified(domain.ErrClassTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, raw)
	}

	var decoded responsesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", domain.Classified(domain.ErrClassTransient, fmt.Errorf("decode responses payload: %w", err))
	}
	text := decoded.OutputText
	if text == "" {
		for _, out := range decoded.Output {
			for _, part := range out.Content {
				if part.Type == "output_text" && part.Text != "" {
					text = part.Text
				}
			}
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.Classified(domain.ErrClassTransient, errors.New("empty model output"))
	}
	return text, nil
}

func classifyStatus(status int, body []byte) error {
	err := fmt.Errorf("openai: status %d: %s", status, firstLine(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.Classified(domain.ErrClassInvalidInput, err)
	case status == http.StatusTooManyRequests:
		return domain.Classified(domain.ErrClassQuotaExceeded, err)
	case status >= 500:
		return domain.Classified(domain.ErrClassRemoteUnavailable, err)
	default:
		return domain.Classified(domain.ErrClassTransient, err)
	}
}

func firstLine(body []byte) string {
	s := strings.TrimSpace(string(body))
	if idx := strings.IndexByte(s, '\n'); idx > 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
