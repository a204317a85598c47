package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"pressroom/internal/domain"
)

const maxWebhookBody = 1 << 20

type paymentEvent struct {
	Type        string `json:"type"`
	TenantID    string `json:"tenant_id"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference"`
}

// PaymentWebhook credits purchased funds. The raw body is authenticated with
// an HMAC-SHA256 signature before any parsing.
func (a *App) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if !VerifySignature(a.WebhookSecret, body, r.Header.Get("X-Webhook-Signature")) {
		a.jsonError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event paymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if event.Type != "payment_succeeded" {
		// Unknown event types are acknowledged so the sender stops
		// retrying them.
		a.json(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if event.TenantID == "" || event.AmountCents <= 0 {
		a.jsonError(w, http.StatusBadRequest, "tenant_id and positive amount_cents are required")
		return
	}

	balance, err := a.Ledger.Credit(r.Context(), event.TenantID, event.AmountCents, domain.TxnPurchase, "purchase "+event.Reference)
	if err != nil {
		a.Logger.Error().Err(err).Str("tenant_id", event.TenantID).Msg("handlers: webhook credit failed")
		a.jsonError(w, http.StatusInternalServerError, "credit failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"status": "credited", "balance_cents": balance})
}

// VerifySignature checks a hex HMAC-SHA256 signature over body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
