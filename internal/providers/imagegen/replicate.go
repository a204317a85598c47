package imagegen

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

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

// Options controls how the Replicate client is configured. PollEvery and
// PollCap bound the status loop: a prediction that never reaches a terminal
// state is cancelled remotely and reported as transient once the cap
// elapses. Unbounded polling is deliberately impossible here.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	PollEvery  time.Duration
	PollCap    time.Duration
	Logger     *zerolog.Logger
}

// Client drives the Replicate predictions API for photorealistic images.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	pollEvery  time.Duration
	pollCap    time.Duration
	logger     zerolog.Logger
}

// Generated is a produced image: a remote, time-limited URL plus the expiry
// hint derived from the provider's TTL.
type Generated struct {
	URL       string
	ExpiresAt time.Time
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "bytedance/seedream-4"
	}
	pollEvery := opts.PollEvery
	if pollEvery <= 0 {
		pollEvery = 3 * time.Second
	}
	pollCap := opts.PollCap
	if pollCap <= 0 {
		pollCap = 5 * time.Minute
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		pollEvery:  pollEvery,
		pollCap:    pollCap,
		logger:     logger,
	}
}

type predictionRequest struct {
	Input map[string]any `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// Generate creates one image for the prompt at the given aspect ratio,
// polling with a fixed interval until the prediction finishes or the cap is
// reached. ttl is the caller's asset time window used for the expiry hint.
func (c *Client) Generate(ctx context.Context, prompt, aspectRatio string, ttl time.Duration) (Generated, error) {
	if c.apiKey == "" {
		return Generated{}, domain.Classified(domain.ErrClassInvalidInput, errors.New("replicate api token is missing"))
	}
	if strings.TrimSpace(prompt) == "" {
		return Generated{}, domain.Classified(domain.ErrClassInvalidInput, errors.New("image prompt is empty"))
	}

	pred, err := c.create(ctx, prompt, aspectRatio)
	if err != nil {
		return Generated{}, err
	}
	generatedAt := time.Now()

	deadline := time.NewTimer(c.pollCap)
	defer deadline.Stop()
	tick := time.NewTicker(c.pollEvery)
	defer tick.Stop()

	for {
		switch pred.Status {
		case "succeeded":
			url, err := outputURL(pred.Output)
			if err != nil {
				return Generated{}, domain.Classified(domain.ErrClassTransient, err)
			}
			return Generated{URL: url, ExpiresAt: generatedAt.Add(ttl)}, nil
		case "failed":
			return Generated{}, domain.Classified(domain.ErrClassTransient, fmt.Errorf("prediction failed: %s", pred.Error))
		case "canceled":
			return Generated{}, domain.Classified(domain.ErrClassTransient, errors.New("prediction was canceled"))
		}

		select {
		case <-ctx.Done():
			c.cancel(pred.ID)
			return Generated{}, domain.Classified(domain.ErrClassTransient, ctx.Err())
		case <-deadline.C:
			c.cancel(pred.ID)
			return Generated{}, domain.Classified(domain.ErrClassTransient,
				fmt.Errorf("prediction %s still %s after %s, canceled", pred.ID, pred.Status, c.pollCap))
		case <-tick.C:
		}

		next, err := c.get(ctx, pred.ID)
		if err != nil {
			// The deadline keeps overall time bounded; a flaky status
			// read is not terminal on its own.
			c.logger.Warn().Err(err).Str("prediction_id", pred.ID).Msg("replicate: status poll failed")
			continue
		}
		pred = next
	}
}

func (c *Client) create(ctx context.Context, prompt, aspectRatio string) (prediction, error) {
	payload := predictionRequest{Input: map[string]any{
		"prompt":       prompt,
		"aspect_ratio": aspectRatio,
		"size":         "2K",
		"max_images":   1,
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return prediction{}, err
	}
	endpoint := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return prediction{}, domain.Classified(domain.ErrClassTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return prediction{}, domain.Classified(domain.ErrClassTransient, err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return prediction{}, classifyStatus(resp.StatusCode, raw)
	}
	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return prediction{}, domain.Classified(domain.ErrClassTransient, fmt.Errorf("decode prediction: %w", err))
	}
	if pred.ID == "" {
		return prediction{}, domain.Classified(domain.ErrClassTransient, errors.New("prediction id missing"))
	}
	return pred, nil
}

func (c *Client) get(ctx context.Context, id string) (prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return prediction{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return prediction{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return prediction{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return prediction{}, fmt.Errorf("status %d: %s", resp.StatusCode, firstLine(raw))
	}
	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return prediction{}, fmt.Errorf("decode prediction: %w", err)
	}
	return pred, nil
}

// cancel tells Replicate to stop a prediction we no longer want. Best effort
// with its own short deadline; the caller is already returning an error.
func (c *Client) cancel(id string) {
	ctx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions/"+id+"/cancel", nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("prediction_id", id).Msg("replicate: cancel failed")
		return
	}
	resp.Body.Close()
	c.logger.Info().Str("prediction_id", id).Msg("replicate: prediction canceled")
}

func outputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("prediction output missing")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", fmt.Errorf("unrecognized prediction output: %s", firstLine(raw))
}

func classifyStatus(status int, body []byte) error {
	err := fmt.Errorf("replicate: status %d: %s", status, firstLine(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.Classified(domain.ErrClassInvalidInput, err)
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		return domain.Classified(domain.ErrClassQuotaExceeded, err)
	case status >= 500:
		return domain.Classified(domain.ErrClassRemoteUnavailable, err)
	default:
		return domain.Classified(domain.ErrClassTransient, err)
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if idx := strings.IndexByte(s, '\n'); idx > 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
