package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

type memStore struct {
	balances map[string]int64
	rows     []domain.CreditTransaction
}

func newMemStore(balances map[string]int64) *memStore {
	return &memStore{balances: balances}
}

func (m *memStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Single-goroutine tests need no isolation; the fake commits directly.
	return fn(m)
}

func (m *memStore) LockBalance(ctx context.Context, tenantID string) (int64, error) {
	b, ok := m.balances[tenantID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return b, nil
}

func (m *memStore) SetBalance(ctx context.Context, tenantID string, cents int64) error {
	m.balances[tenantID] = cents
	return nil
}

func (m *memStore) Insert(ctx context.Context, txn *domain.CreditTransaction) error {
	m.rows = append(m.rows, *txn)
	return nil
}

func (m *memStore) RefundExists(ctx context.Context, jobID string) (bool, error) {
	for _, r := range m.rows {
		if r.JobID == jobID && r.Kind == domain.TxnRefund {
			return true, nil
		}
	}
	return false, nil
}

func newTestLedger(store *memStore) *Ledger {
	return New(store, nil, nil, zerolog.Nop())
}

func TestDebitReducesBalanceAndWritesRow(t *testing.T) {
	store := newMemStore(map[string]int64{"t1": 500})
	l := newTestLedger(store)

	after, err := l.Debit(context.Background(), "t1", "job-1", 199)
	if err != nil {
		t.Fatalf("Debit returned error: %v", err)
	}
	if after != 301 {
		t.Fatalf("balance after debit = %d, want 301", after)
	}
	if len(store.rows) != 1 {
		t.Fatalf("transaction rows = %d, want 1", len(store.rows))
	}
	row := store.rows[0]
	if row.DeltaCents != -199 || row.BalanceAfterCents != 301 || row.Kind != domain.TxnDebitForJob {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestDebitRefusesOverdraft(t *testing.T) {
	store := newMemStore(map[string]int64{"t1": 100})
	l := newTestLedger(store)

	_, err := l.Debit(context.Background(), "t1", "job-1", 199)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if store.balances["t1"] != 100 {
		t.Fatalf("balance mutated on refused debit: %d", store.balances["t1"])
	}
	if len(store.rows) != 0 {
		t.Fatalf("refused debit wrote %d rows", len(store.rows))
	}
}

func TestRefundIsIdempotentPerJob(t *testing.T) {
	store := newMemStore(map[string]int64{"t1": 500})
	l := newTestLedger(store)

	if _, err := l.Debit(context.Background(), "t1", "job-1", 199); err != nil {
		t.Fatalf("Debit returned error: %v", err)
	}
	if err := l.Refund(context.Background(), "t1", "job-1", 199, "research failed"); err != nil {
		t.Fatalf("first Refund returned error: %v", err)
	}
	if err := l.Refund(context.Background(), "t1", "job-1", 199, "research failed"); err != nil {
		t.Fatalf("second Refund returned error: %v", err)
	}

	if store.balances["t1"] != 500 {
		t.Fatalf("balance = %d, want 500 after debit and single refund", store.balances["t1"])
	}
	refunds := 0
	for _, r := range store.rows {
		if r.Kind == domain.TxnRefund {
			refunds++
		}
	}
	if refunds != 1 {
		t.Fatalf("refund rows = %d, want 1", refunds)
	}
}

func TestLedgerConservation(t *testing.T) {
	store := newMemStore(map[string]int64{"t1": 1000})
	l := newTestLedger(store)

	ctx := context.Background()
	if _, err := l.Debit(ctx, "t1", "job-1", 199); err != nil {
		t.Fatalf("Debit job-1: %v", err)
	}
	if _, err := l.Debit(ctx, "t1", "job-2", 199); err != nil {
		t.Fatalf("Debit job-2: %v", err)
	}
	if err := l.Refund(ctx, "t1", "job-2", 199, "formatting failed"); err != nil {
		t.Fatalf("Refund job-2: %v", err)
	}
	if _, err := l.Credit(ctx, "t1", 500, domain.TxnPurchase, "purchase test"); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	var sum int64 = 1000
	for _, r := range store.rows {
		sum += r.DeltaCents
		if r.BalanceAfterCents < 0 {
			t.Fatalf("ledger recorded negative balance: %+v", r)
		}
	}
	if sum != store.balances["t1"] {
		t.Fatalf("replayed sum %d != stored balance %d", sum, store.balances["t1"])
	}
}

type fakeCharger struct {
	ref  string
	err  error
	gotC string
	gotA int64
}

func (f *fakeCharger) Charge(ctx context.Context, customerRef string, amountCents int64) (string, error) {
	f.gotC, f.gotA = customerRef, amountCents
	return f.ref, f.err
}

type fakeAlerter struct {
	succeeded int
	failed    int
}

func (f *fakeAlerter) RechargeSucceeded(ctx context.Context, tenant domain.TenantConfig, amountCents, balanceCents int64) {
	f.succeeded++
}

func (f *fakeAlerter) RechargeFailed(ctx context.Context, tenant domain.TenantConfig, amountCents int64, reason string) {
	f.failed++
}

func TestAutoRechargeBelowThreshold(t *testing.T) {
	store := newMemStore(map[string]int64{"t1": 50})
	charger := &fakeCharger{ref: "pi_123"}
	alerter := &fakeAlerter{}
	l := New(store, charger, alerter, zerolog.Nop())

	tenant := domain.TenantConfig{
		ID:                         "t1",
		AutoRechargeEnabled:        true,
		AutoRechargeThresholdCents: 200,
		AutoRechargeAmountCents:    1000,
		PaymentCustomerRef:         "cus_1",
	}
	l.MaybeAutoRecharge(context.Background(), tenant, 50)

	if charger.gotC != "cus_1" || charger.gotA != 1000 {
		t.Fatalf("charge called with (%q, %d), want (cus_1, 1000)", charger.gotC, charger.gotA)
	}
	if store.balances["t1"] != 1050 {
		t.Fatalf("balance = %d, want 1050", store.balances["t1"])
	}
	if alerter.succeeded != 1 || alerter.failed != 0 {
		t.Fatalf("alerts = %d success / %d failed, want 1/0", alerter.succeeded, alerter.failed)
	}
}

func TestAutoRechargeSkippedAboveThreshold(t *testing.T) {
	store := newMemStore(map[string]int64{"t1": 500})
	charger := &fakeCharger{ref: "pi_123"}
	l := New(store, charger, &fakeAlerter{}, zerolog.Nop())

	tenant := domain.TenantConfig{
		ID:                         "t1",
		AutoRechargeEnabled:        true,
		AutoRechargeThresholdCents: 200,
		AutoRechargeAmountCents:    1000,
		PaymentCustomerRef:         "cus_1",
	}
	l.MaybeAutoRecharge(context.Background(), tenant, 500)

	if charger.gotC != "" {
		t.Fatalf("charge called above threshold")
	}
}

func TestAutoRechargeChargeFailureAlertsWithoutCredit(t *testing.T) {
	store := newMemStore(map[string]int64{"t1": 50})
	charger := &fakeCharger{err: errors.New("card declined")}
	alerter := &fakeAlerter{}
	l := New(store, charger, alerter, zerolog.Nop())

	tenant := domain.TenantConfig{
		ID:                         "t1",
		AutoRechargeEnabled:        true,
		AutoRechargeThresholdCents: 200,
		AutoRechargeAmountCents:    1000,
		PaymentCustomerRef:         "cus_1",
	}
	l.MaybeAutoRecharge(context.Background(), tenant, 50)

	if store.balances["t1"] != 50 {
		t.Fatalf("balance mutated on failed charge: %d", store.balances["t1"])
	}
	if alerter.failed != 1 {
		t.Fatalf("failed alerts = %d, want 1", alerter.failed)
	}
}
