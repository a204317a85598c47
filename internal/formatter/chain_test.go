package formatter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"pressroom/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type stubStrategy struct {
	markup string
	err    error
	calls  int
}

func (s *stubStrategy) Format(ctx context.Context, req Request) (string, error) {
	s.calls++
	return s.markup, s.err
}

func testRequest() Request {
	return Request{
		Draft: &domain.ArticleDraft{
			Title:    "Solar Balconies",
			Subtitle: "Small panels, real savings",
			Sections: []domain.DraftSection{
				{Heading: "Why now", Body: "<p>Prices for balcony panels fell sharply over the last two years, and regulation caught up with the hardware.</p>"},
				{Heading: "Installation", Body: "<p>Most kits hang from the railing.</p>"},
				{Heading: "Payback", Body: "<p>Expect four to six years.</p>"},
			},
		},
		Hero: ImageRef{Placeholder: "{{IMAGE_HERO}}", URL: "https://cdn.test/hero.png"},
		Sections: []ImageRef{
			{Placeholder: "{{IMAGE_1}}", URL: "https://cdn.test/1.png"},
			{Placeholder: "{{IMAGE_2}}", URL: "https://cdn.test/2.png"},
			{Placeholder: "{{IMAGE_3}}", URL: "https://cdn.test/3.png"},
		},
	}
}

func TestChainUsesPrimaryWhenItSucceeds(t *testing.T) {
	primary := &stubStrategy{markup: "<div class=\"magazine-article-wrapper\">ai</div>"}
	fallback := &stubStrategy{markup: "template"}
	chain := NewChain(primary, fallback, nil)

	markup, kind, err := chain.Format(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if kind != domain.FormatterAI {
		t.Fatalf("kind = %q, want ai", kind)
	}
	if markup != primary.markup {
		t.Fatalf("markup = %q", markup)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback invoked although primary succeeded")
	}
}

func TestChainFallsBackWithTaggedReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"size ceiling", ErrInputTooLarge, "size_ceiling"},
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"other", errors.New("boom"), "primary_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reason string
			primary := &stubStrategy{err: tc.err}
			fallback := &stubStrategy{markup: "template"}
			chain := NewChain(primary, fallback, func(r string, err error) { reason = r })

			markup, kind, err := chain.Format(context.Background(), testRequest())
			if err != nil {
				t.Fatalf("Format returned error: %v", err)
			}
			if kind != domain.FormatterTemplate || markup != "template" {
				t.Fatalf("got (%q, %q), want template output", markup, kind)
			}
			if reason != tc.want {
				t.Fatalf("reason = %q, want %q", reason, tc.want)
			}
		})
	}
}

func TestChainFailsWhenBothStrategiesFail(t *testing.T) {
	chain := NewChain(&stubStrategy{err: errors.New("ai down")}, &stubStrategy{err: errors.New("no title")}, nil)
	_, _, err := chain.Format(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Format succeeded with both strategies failing")
	}
	if domain.Classify(err) != domain.ErrClassInvalidInput {
		t.Fatalf("err class = %v, want invalid_input", domain.Classify(err))
	}
}

func TestAIStrategyRejectsOversizedInputBeforeCall(t *testing.T) {
	called := false
	strategy := NewAIStrategy(AIOptions{
		APIKey:       "key",
		InputCeiling: 100,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			called = true
			return nil, errors.New("should not be reached")
		})},
	})
	_, err := strategy.Format(context.Background(), testRequest())
	if !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("err = %v, want ErrInputTooLarge", err)
	}
	if called {
		t.Fatal("oversized input still reached the remote API")
	}
}

func TestAIStrategyRejectsMarkupMissingTokens(t *testing.T) {
	strategy := NewAIStrategy(AIOptions{
		APIKey: "key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			body := `{"content":[{"type":"text","text":"<div class=\"magazine-article-wrapper\">{{IMAGE_HERO}} {{IMAGE_1}} {{IMAGE_2}}</div>"}]}`
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
		})},
	})
	_, err := strategy.Format(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "{{IMAGE_3}}") {
		t.Fatalf("err = %v, want missing token {{IMAGE_3}}", err)
	}
}

func TestTemplateStrategyRendersAllPlaceholders(t *testing.T) {
	markup, err := NewTemplateStrategy().Format(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	for _, token := range []string{"{{IMAGE_HERO}}", "{{IMAGE_1}}", "{{IMAGE_2}}", "{{IMAGE_3}}"} {
		if !strings.Contains(markup, token) {
			t.Fatalf("markup missing %s", token)
		}
	}
	if !strings.Contains(markup, "magazine-article-wrapper") {
		t.Fatal("markup missing wrapper div")
	}
	if !strings.Contains(markup, "pull-quote") {
		t.Fatal("markup missing pull quote for long section")
	}
	if !strings.Contains(markup, defaultPrimaryColor) {
		t.Fatal("markup missing default brand color")
	}
}

func TestTemplateStrategyRequiresHero(t *testing.T) {
	req := testRequest()
	req.Hero = ImageRef{}
	if _, err := NewTemplateStrategy().Format(context.Background(), req); err == nil {
		t.Fatal("Format accepted a draft with no hero image")
	}
}
