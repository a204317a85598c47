package research

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

// Options controls how the Perplexity client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client wraps the Perplexity chat-completions API for topic research.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	model := opts.Model
	if model == "" {
		model = "sonar-pro"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Research gathers current source material for a topic. The style tag shapes
// the angle of the findings, not the wording of the eventual article.
func (c *Client) Research(ctx context.Context, topic, style string) (string, error) {
	if c.apiKey == "" {
		return "", domain.Classified(domain.ErrClassInvalidInput, errors.New("perplexity api key is missing"))
	}
	system := "You are a research assistant. Gather current facts, statistics and developments for a magazine article. Cite concrete figures."
	user := "Research this topic for a long-form article: " + topic
	if style != "" {
		user += "\nEditorial angle: " + style
	}
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
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

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", domain.Classified(domain.ErrClassTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTP(resp.StatusCode, raw)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", domain.Classified(domain.ErrClassTransient, fmt.Errorf("decode research response: %w", err))
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", domain.Classified(domain.ErrClassTransient, errors.New("empty research response"))
	}
	return decoded.Choices[0].Message.Content, nil
}

func classifyHTTP(status int, body []byte) error {
	err := fmt.Errorf("perplexity: status %d: %s", status, truncate(string(body), 200))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.Classified(domain.ErrClassInvalidInput, err)
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return domain.Classified(domain.ErrClassQuotaExceeded, err)
	case status >= 500:
		return domain.Classified(domain.ErrClassRemoteUnavailable, err)
	default:
		return domain.Classified(domain.ErrClassTransient, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
