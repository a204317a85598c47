package assetstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
	"pressroom/internal/storage"
)

const maxAssetBytes = 32 << 20

// Store downloads remote, time-limited image URLs into durable form before
// they expire. Bytes always land in the file store; for local-artifact jobs
// an inlined data URI is produced as well so the deliverable is
// self-contained.
type Store struct {
	files      *storage.FileStore
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger
}

func New(files *storage.FileStore, httpClient *http.Client, logger zerolog.Logger) *Store {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Store{files: files, httpClient: httpClient, now: time.Now, logger: logger}
}

// Persist downloads the asset's source URL and fills LocalRef (and InlineRef
// when inline is set). An asset already past its expiry is a terminal
// failure: a stale success must never be reported.
func (s *Store) Persist(ctx context.Context, asset *domain.ImageAsset, inline bool) error {
	if asset == nil || asset.SourceURL == "" {
		return domain.Classified(domain.ErrClassInvalidInput, errors.New("asset has no source url"))
	}
	if asset.Expired(s.now()) {
		return domain.Classified(domain.ErrClassTTLExpired,
			fmt.Errorf("asset %s expired at %s", asset.ID, asset.ExpiresAt.Format(time.RFC3339)))
	}

	data, contentType, err := s.download(ctx, asset.SourceURL)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("assets/%s/%s-%d%s", asset.JobID, asset.Role, asset.Index, extensionFor(contentType))
	savedKey, err := s.files.Write(ctx, key, data)
	if err != nil {
		return domain.Classified(domain.ErrClassTransient, err)
	}
	asset.LocalRef = savedKey
	asset.Bytes = int64(len(data))
	if inline {
		asset.InlineRef = "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
	s.logger.Debug().Str("job_id", asset.JobID).Str("local_ref", savedKey).Int64("bytes", asset.Bytes).Msg("assetstore: persisted")
	return nil
}

// PersistAll persists every asset, failing fast on the first error: partial
// asset sets are never published, so there is no value in finishing the rest.
func (s *Store) PersistAll(ctx context.Context, assets []domain.ImageAsset, inline bool) error {
	for i := range assets {
		if err := s.Persist(ctx, &assets[i], inline); err != nil {
			return fmt.Errorf("asset %s-%d: %w", assets[i].Role, assets[i].Index, err)
		}
	}
	return nil
}

func (s *Store) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", domain.Classified(domain.ErrClassInvalidInput, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", domain.Classified(domain.ErrClassTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		// Providers serve expired URLs with 403/404/410 before our own
		// clock would have caught it.
		return nil, "", domain.Classified(domain.ErrClassTTLExpired,
			fmt.Errorf("source url returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", domain.Classified(domain.ErrClassTransient, fmt.Errorf("source url returned %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, "", domain.Classified(domain.ErrClassTransient, err)
	}
	if len(data) == 0 {
		return nil, "", domain.Classified(domain.ErrClassTransient, errors.New("empty image body"))
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
