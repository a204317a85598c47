package assetstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
	"pressroom/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return New(files, nil, zerolog.Nop())
}

func TestPersistDownloadsAndInlines(t *testing.T) {
	payload := []byte("fake-png-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	store := newTestStore(t)
	asset := domain.ImageAsset{
		ID:        "a1",
		JobID:     "job-1",
		Role:      domain.AssetRoleHero,
		SourceURL: srv.URL,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.Persist(context.Background(), &asset, true); err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}
	if asset.LocalRef == "" {
		t.Fatal("LocalRef not set")
	}
	if !strings.HasSuffix(asset.LocalRef, ".png") {
		t.Fatalf("LocalRef = %q, want .png extension", asset.LocalRef)
	}
	if !strings.HasPrefix(asset.InlineRef, "data:image/png;base64,") {
		t.Fatalf("InlineRef = %q, want data URI", asset.InlineRef)
	}
	if asset.Bytes != int64(len(payload)) {
		t.Fatalf("Bytes = %d, want %d", asset.Bytes, len(payload))
	}
}

func TestPersistRefusesExpiredAsset(t *testing.T) {
	store := newTestStore(t)
	asset := domain.ImageAsset{
		ID:        "a1",
		JobID:     "job-1",
		Role:      domain.AssetRoleHero,
		SourceURL: "http://127.0.0.1:1/never-called",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	err := store.Persist(context.Background(), &asset, false)
	if err == nil {
		t.Fatal("Persist succeeded on expired asset")
	}
	var ce *domain.ClassifiedError
	if !errors.As(err, &ce) || ce.Class != domain.ErrClassTTLExpired {
		t.Fatalf("err = %v, want ttl_expired classification", err)
	}
	if asset.LocalRef != "" {
		t.Fatalf("expired asset got LocalRef %q", asset.LocalRef)
	}
}

func TestPersistTreatsGoneURLAsExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	store := newTestStore(t)
	asset := domain.ImageAsset{
		ID:        "a1",
		JobID:     "job-1",
		Role:      domain.AssetRoleSection,
		Index:     1,
		SourceURL: srv.URL,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	err := store.Persist(context.Background(), &asset, false)
	if domain.Classify(err) != domain.ErrClassTTLExpired {
		t.Fatalf("err class = %v, want ttl_expired", domain.Classify(err))
	}
}

func TestPersistAllFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newTestStore(t)
	assets := []domain.ImageAsset{
		{ID: "a1", JobID: "j", Role: domain.AssetRoleHero, SourceURL: srv.URL, ExpiresAt: time.Now().Add(time.Hour)},
		{ID: "a2", JobID: "j", Role: domain.AssetRoleSection, Index: 1, SourceURL: srv.URL, ExpiresAt: time.Now().Add(time.Hour)},
	}
	if err := store.PersistAll(context.Background(), assets, false); err == nil {
		t.Fatal("PersistAll succeeded with failing source")
	}
	if calls != 1 {
		t.Fatalf("source fetched %d times, want 1 (fail fast)", calls)
	}
}
