package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"payment_succeeded"}`)
	if !VerifySignature("s3cret", body, sign("s3cret", body)) {
		t.Fatal("valid signature rejected")
	}
	if VerifySignature("s3cret", body, sign("wrong", body)) {
		t.Fatal("signature under the wrong secret accepted")
	}
	if VerifySignature("s3cret", body, "") {
		t.Fatal("empty signature accepted")
	}
	if VerifySignature("", body, sign("", body)) {
		t.Fatal("empty secret must never verify")
	}
}

func webhookApp(ledger *stubLedger) *App {
	return &App{
		Ledger:        ledger,
		WebhookSecret: "s3cret",
		Logger:        zerolog.Nop(),
	}
}

func postWebhook(app *App, body string, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	rec := httptest.NewRecorder()
	app.PaymentWebhook(rec, req)
	return rec
}

func TestPaymentWebhookCreditsOnValidEvent(t *testing.T) {
	ledger := &stubLedger{balance: 2500}
	app := webhookApp(ledger)
	body := `{"type":"payment_succeeded","tenant_id":"t1","amount_cents":500,"reference":"pi_123"}`

	rec := postWebhook(app, body, sign("s3cret", []byte(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if ledger.credits != 1 || ledger.lastCreditCents != 500 || ledger.lastKind != domain.TxnPurchase {
		t.Fatalf("credit calls = %d amount %d kind %v", ledger.credits, ledger.lastCreditCents, ledger.lastKind)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["balance_cents"].(float64) != 2500 {
		t.Fatalf("balance_cents = %v", resp["balance_cents"])
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	ledger := &stubLedger{}
	app := webhookApp(ledger)
	body := `{"type":"payment_succeeded","tenant_id":"t1","amount_cents":500}`

	rec := postWebhook(app, body, sign("other-secret", []byte(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ledger.credits != 0 {
		t.Fatal("credited despite invalid signature")
	}
}

func TestPaymentWebhookAcknowledgesUnknownEventTypes(t *testing.T) {
	ledger := &stubLedger{}
	app := webhookApp(ledger)
	body := `{"type":"payment_refund_created","tenant_id":"t1","amount_cents":500}`

	rec := postWebhook(app, body, sign("s3cret", []byte(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 so the sender stops retrying", rec.Code)
	}
	if ledger.credits != 0 {
		t.Fatal("unknown event type must not credit")
	}
}

func TestPaymentWebhookRejectsNonPositiveAmount(t *testing.T) {
	app := webhookApp(&stubLedger{})
	body := `{"type":"payment_succeeded","tenant_id":"t1","amount_cents":0}`

	rec := postWebhook(app, body, sign("s3cret", []byte(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
