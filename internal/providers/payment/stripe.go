// Package payment charges stored payment methods for credit top-ups. It
// speaks the Stripe HTTP API directly; checkout flows and card storage are
// handled by the billing frontend, not here.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pressroom/internal/domain"
)

// Options configure the Stripe client.
type Options struct {
	SecretKey  string
	Currency   string
	BaseURL    string
	HTTPClient *http.Client
}

// Client performs off-session charges against stored customers.
type Client struct {
	opts Options
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.stripe.com"
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{opts: opts}
}

type paymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Charge confirms an off-session payment intent for the customer and returns
// the intent id.
func (c *Client) Charge(ctx context.Context, customerRef string, amountCents int64) (string, error) {
	if customerRef == "" {
		return "", domain.Classified(domain.ErrClassInvalidInput, errors.New("no payment customer on file"))
	}
	if amountCents <= 0 {
		return "", domain.Classified(domain.ErrClassInvalidInput, fmt.Errorf("charge amount must be positive, got %d", amountCents))
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", c.opts.Currency)
	form.Set("customer", customerRef)
	form.Set("off_session", "true")
	form.Set("confirm", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", domain.Classified(domain.ErrClassTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.Classified(domain.ErrClassTransient, err)
	}

	var intent paymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return "", domain.Classified(domain.ErrClassTransient, fmt.Errorf("stripe: decode response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", domain.Classified(domain.ErrClassAuth, errors.New("stripe: secret key rejected"))
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden:
		return "", domain.Classified(domain.ErrClassQuotaExceeded, stripeError(intent, resp.StatusCode))
	case resp.StatusCode >= 500:
		return "", domain.Classified(domain.ErrClassRemoteUnavailable, fmt.Errorf("stripe: status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return "", domain.Classified(domain.ErrClassInvalidInput, stripeError(intent, resp.StatusCode))
	}

	if intent.Status != "succeeded" {
		return "", domain.Classified(domain.ErrClassInvalidInput, fmt.Errorf("stripe: payment intent %s in status %q", intent.ID, intent.Status))
	}
	return intent.ID, nil
}

func stripeError(intent paymentIntent, status int) error {
	if intent.Error != nil && intent.Error.Message != "" {
		return fmt.Errorf("stripe: %s (%s)", intent.Error.Message, intent.Error.Code)
	}
	return fmt.Errorf("stripe: status %d", status)
}
