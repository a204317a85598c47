package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"pressroom/internal/domain"
)

// CMSClient is the narrow surface the persistence router publishes through.
type CMSClient interface {
	UploadMedia(ctx context.Context, cfg domain.TenantConfig, filename string, data []byte) (MediaHandle, error)
	CreateDraft(ctx context.Context, cfg domain.TenantConfig, title, markup string, featuredMedia int64) (PostHandle, error)
	PublishPost(ctx context.Context, cfg domain.TenantConfig, postID string) (PostHandle, error)
	TestConnection(ctx context.Context, cfg domain.TenantConfig) error
}

// MediaHandle is a CMS-hosted media object.
type MediaHandle struct {
	ID  int64
	URL string
}

// PostHandle is a created or updated CMS post.
type PostHandle struct {
	ID  string
	URL string
}

// WordPressClient talks to the WordPress REST API with application-password
// basic auth. Base URLs are normalized so tenants may paste any of the
// /wp-json variants.
type WordPressClient struct {
	httpClient *http.Client
}

func NewWordPressClient(httpClient *http.Client) *WordPressClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &WordPressClient{httpClient: httpClient}
}

func normalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	base = strings.TrimSuffix(base, "/wp-json/wp/v2")
	base = strings.TrimSuffix(base, "/wp-json")
	return base
}

type wpMediaResponse struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

type wpPostResponse struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

// UploadMedia pushes image bytes to the media endpoint and returns the hosted
// handle.
func (c *WordPressClient) UploadMedia(ctx context.Context, cfg domain.TenantConfig, filename string, data []byte) (MediaHandle, error) {
	if len(data) == 0 {
		return MediaHandle{}, domain.Classified(domain.ErrClassInvalidInput, errors.New("media bytes are empty"))
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return MediaHandle{}, err
	}
	if _, err := part.Write(data); err != nil {
		return MediaHandle{}, err
	}
	if err := writer.Close(); err != nil {
		return MediaHandle{}, err
	}

	endpoint := normalizeBaseURL(cfg.CMSBaseURL) + "/wp-json/wp/v2/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return MediaHandle{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(cfg.CMSUsername, cfg.CMSAppPassword)

	var decoded wpMediaResponse
	if err := c.do(req, &decoded); err != nil {
		return MediaHandle{}, err
	}
	if decoded.ID == 0 || decoded.SourceURL == "" {
		return MediaHandle{}, domain.Classified(domain.ErrClassTransient, errors.New("media response missing id or url"))
	}
	return MediaHandle{ID: decoded.ID, URL: decoded.SourceURL}, nil
}

// CreateDraft creates a draft post with the formatted markup.
func (c *WordPressClient) CreateDraft(ctx context.Context, cfg domain.TenantConfig, title, markup string, featuredMedia int64) (PostHandle, error) {
	payload := map[string]any{
		"title":   title,
		"content": markup,
		"status":  "draft",
		"format":  "standard",
	}
	if featuredMedia > 0 {
		payload["featured_media"] = featuredMedia
	}
	return c.postJSON(ctx, cfg, "/wp-json/wp/v2/posts", payload)
}

// PublishPost flips a draft to published.
func (c *WordPressClient) PublishPost(ctx context.Context, cfg domain.TenantConfig, postID string) (PostHandle, error) {
	return c.postJSON(ctx, cfg, "/wp-json/wp/v2/posts/"+postID, map[string]any{"status": "publish"})
}

// TestConnection verifies the credentials by listing the caller's identity.
func (c *WordPressClient) TestConnection(ctx context.Context, cfg domain.TenantConfig) error {
	endpoint := normalizeBaseURL(cfg.CMSBaseURL) + "/wp-json/wp/v2/users/me"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(cfg.CMSUsername, cfg.CMSAppPassword)
	var decoded map[string]any
	return c.do(req, &decoded)
}

func (c *WordPressClient) postJSON(ctx context.Context, cfg domain.TenantConfig, path string, payload map[string]any) (PostHandle, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return PostHandle{}, err
	}
	endpoint := normalizeBaseURL(cfg.CMSBaseURL) + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return PostHandle{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cfg.CMSUsername, cfg.CMSAppPassword)

	var decoded wpPostResponse
	if err := c.do(req, &decoded); err != nil {
		return PostHandle{}, err
	}
	if decoded.ID == 0 {
		return PostHandle{}, domain.Classified(domain.ErrClassTransient, errors.New("post response missing id"))
	}
	return PostHandle{ID: fmt.Sprintf("%d", decoded.ID), URL: decoded.Link}, nil
}

func (c *WordPressClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Classified(domain.ErrClassTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.Classified(domain.ErrClassTransient, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.Classified(domain.ErrClassAuth, fmt.Errorf("wordpress: status %d: %s", resp.StatusCode, snippet(raw)))
	case resp.StatusCode == http.StatusNotFound:
		return domain.Classified(domain.ErrClassInvalidInput, fmt.Errorf("wordpress: endpoint not found: %s", req.URL.Path))
	case resp.StatusCode >= 500:
		return domain.Classified(domain.ErrClassRemoteUnavailable, fmt.Errorf("wordpress: status %d", resp.StatusCode))
	case resp.StatusCode >= 300:
		return domain.Classified(domain.ErrClassTransient, fmt.Errorf("wordpress: status %d: %s", resp.StatusCode, snippet(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Classified(domain.ErrClassTransient, fmt.Errorf("wordpress: decode response: %w", err))
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
