package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPlaceholderByRoleAndIndex(t *testing.T) {
	hero := ImageAsset{Role: AssetRoleHero, Index: 0}
	if got := hero.Placeholder(); got != "{{IMAGE_HERO}}" {
		t.Fatalf("hero placeholder = %q", got)
	}
	for i, want := range map[int]string{1: "{{IMAGE_1}}", 2: "{{IMAGE_2}}", 3: "{{IMAGE_3}}", 7: "{{IMAGE_7}}"} {
		a := ImageAsset{Role: AssetRoleSection, Index: i}
		if got := a.Placeholder(); got != want {
			t.Fatalf("section %d placeholder = %q, want %q", i, got, want)
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	a := ImageAsset{ExpiresAt: now.Add(time.Minute)}
	if a.Expired(now) {
		t.Fatal("asset expired before its deadline")
	}
	if !a.Expired(now.Add(2 * time.Minute)) {
		t.Fatal("asset not expired after its deadline")
	}
	forever := ImageAsset{}
	if forever.Expired(now.Add(24 * time.Hour)) {
		t.Fatal("asset without expiry reported expired")
	}
}

func TestEarliestExpiry(t *testing.T) {
	now := time.Now()
	assets := []ImageAsset{
		{ExpiresAt: now.Add(30 * time.Minute)},
		{ExpiresAt: now.Add(10 * time.Minute)},
		{}, // no expiry hint
		{ExpiresAt: now.Add(20 * time.Minute)},
	}
	if got := EarliestExpiry(assets); !got.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("earliest = %v", got)
	}
	if got := EarliestExpiry(nil); !got.IsZero() {
		t.Fatalf("earliest of nothing = %v, want zero", got)
	}
}

func TestClassifyDefaultsToTransient(t *testing.T) {
	if got := Classify(errors.New("connection reset")); got != ErrClassTransient {
		t.Fatalf("class = %v, want transient for unclassified errors", got)
	}
	if got := Classify(nil); got != ErrClassNone {
		t.Fatalf("class of nil = %v", got)
	}
}

func TestClassifySeesThroughWrapping(t *testing.T) {
	inner := Classified(ErrClassQuotaExceeded, errors.New("429"))
	wrapped := errors.Join(errors.New("stage failed"), inner)
	if got := Classify(wrapped); got != ErrClassQuotaExceeded {
		t.Fatalf("class = %v, want quota_exceeded through the wrap", got)
	}
}

func TestOnlyTransientIsRetryable(t *testing.T) {
	for class, want := range map[ErrorClass]bool{
		ErrClassTransient:         true,
		ErrClassInvalidInput:      false,
		ErrClassQuotaExceeded:     false,
		ErrClassRemoteUnavailable: false,
		ErrClassAuth:              false,
		ErrClassTTLExpired:        false,
	} {
		if got := class.Retryable(); got != want {
			t.Fatalf("%s.Retryable() = %v, want %v", class, got, want)
		}
	}
}
