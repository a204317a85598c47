package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

// Store is the transactional surface the ledger needs. Every method runs
// inside the transaction opened by TxStore.WithTx; LockBalance takes a row
// lock on the tenant so concurrent debits and refunds for the same tenant
// serialize instead of reading a stale balance.
type Store interface {
	LockBalance(ctx context.Context, tenantID string) (int64, error)
	SetBalance(ctx context.Context, tenantID string, cents int64) error
	Insert(ctx context.Context, txn *domain.CreditTransaction) error
	RefundExists(ctx context.Context, jobID string) (bool, error)
}

// TxStore opens a transaction and hands the ledger a Store bound to it.
type TxStore interface {
	WithTx(ctx context.Context, fn func(Store) error) error
}

// PaymentCharger performs an off-session charge against a stored payment
// method. The checkout UI and credential storage live elsewhere.
type PaymentCharger interface {
	Charge(ctx context.Context, customerRef string, amountCents int64) (string, error)
}

// RechargeAlerter surfaces auto-recharge outcomes to the tenant. Failures
// here are logged, never retried.
type RechargeAlerter interface {
	RechargeSucceeded(ctx context.Context, tenant domain.TenantConfig, amountCents, balanceCents int64)
	RechargeFailed(ctx context.Context, tenant domain.TenantConfig, amountCents int64, reason string)
}

// Ledger tracks per-tenant balances. Every balance mutation writes an
// append-only transaction row in the same database transaction, so the
// balance is always derivable by replaying the log.
type Ledger struct {
	store   TxStore
	charger PaymentCharger
	alerter RechargeAlerter
	logger  zerolog.Logger
}

func New(store TxStore, charger PaymentCharger, alerter RechargeAlerter, logger zerolog.Logger) *Ledger {
	return &Ledger{store: store, charger: charger, alerter: alerter, logger: logger}
}

// Debit charges the tenant for one job before admission. A debit that would
// drive the balance negative is refused with ErrInsufficientFunds; the
// balance is never clamped. Returns the balance after the debit.
func (l *Ledger) Debit(ctx context.Context, tenantID, jobID string, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amountCents)
	}
	var after int64
	err := l.store.WithTx(ctx, func(s Store) error {
		balance, err := s.LockBalance(ctx, tenantID)
		if err != nil {
			return err
		}
		if balance < amountCents {
			return domain.ErrInsufficientFunds
		}
		after = balance - amountCents
		if err := s.SetBalance(ctx, tenantID, after); err != nil {
			return err
		}
		return s.Insert(ctx, &domain.CreditTransaction{
			ID:                uuid.NewString(),
			TenantID:          tenantID,
			JobID:             jobID,
			DeltaCents:        -amountCents,
			BalanceAfterCents: after,
			Kind:              domain.TxnDebitForJob,
			Description:       "article generation",
		})
	})
	if err != nil {
		return 0, err
	}
	l.logger.Info().Str("tenant_id", tenantID).Str("job_id", jobID).Int64("balance_cents", after).Msg("ledger: debit applied")
	return after, nil
}

// Refund reverses the debit for a failed job. Idempotent per job id: a second
// refund for the same job is a no-op, not a double credit.
func (l *Ledger) Refund(ctx context.Context, tenantID, jobID string, amountCents int64, reason string) error {
	if amountCents <= 0 {
		return fmt.Errorf("refund amount must be positive, got %d", amountCents)
	}
	duplicate := false
	err := l.store.WithTx(ctx, func(s Store) error {
		balance, err := s.LockBalance(ctx, tenantID)
		if err != nil {
			return err
		}
		exists, err := s.RefundExists(ctx, jobID)
		if err != nil {
			return err
		}
		if exists {
			duplicate = true
			return nil
		}
		after := balance + amountCents
		if err := s.SetBalance(ctx, tenantID, after); err != nil {
			return err
		}
		return s.Insert(ctx, &domain.CreditTransaction{
			ID:                uuid.NewString(),
			TenantID:          tenantID,
			JobID:             jobID,
			DeltaCents:        amountCents,
			BalanceAfterCents: after,
			Kind:              domain.TxnRefund,
			Description:       "refund: " + reason,
		})
	})
	if err != nil {
		return err
	}
	if duplicate {
		l.logger.Warn().Str("tenant_id", tenantID).Str("job_id", jobID).Msg("ledger: refund already recorded, skipping")
		return nil
	}
	l.logger.Info().Str("tenant_id", tenantID).Str("job_id", jobID).Int64("amount_cents", amountCents).Msg("ledger: refund applied")
	return nil
}

// Credit adds funds outside any job (purchase via webhook, manual adjustment).
func (l *Ledger) Credit(ctx context.Context, tenantID string, amountCents int64, kind domain.TransactionKind, description string) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amountCents)
	}
	var after int64
	err := l.store.WithTx(ctx, func(s Store) error {
		balance, err := s.LockBalance(ctx, tenantID)
		if err != nil {
			return err
		}
		after = balance + amountCents
		if err := s.SetBalance(ctx, tenantID, after); err != nil {
			return err
		}
		return s.Insert(ctx, &domain.CreditTransaction{
			ID:                uuid.NewString(),
			TenantID:          tenantID,
			DeltaCents:        amountCents,
			BalanceAfterCents: after,
			Kind:              kind,
			Description:       description,
		})
	})
	if err != nil {
		return 0, err
	}
	l.logger.Info().Str("tenant_id", tenantID).Int64("balance_cents", after).Str("kind", string(kind)).Msg("ledger: credit applied")
	return after, nil
}

// MaybeAutoRecharge tops the tenant up when the balance has dropped under
// their threshold. Independent of any single job; a failed charge is logged
// and surfaced to the tenant, never retried here.
func (l *Ledger) MaybeAutoRecharge(ctx context.Context, tenant domain.TenantConfig, balanceCents int64) {
	if !tenant.AutoRechargeEnabled || balanceCents >= tenant.AutoRechargeThresholdCents {
		return
	}
	if l.charger == nil || tenant.PaymentCustomerRef == "" {
		l.logger.Warn().Str("tenant_id", tenant.ID).Msg("ledger: auto-recharge wanted but no payment method configured")
		if l.alerter != nil {
			l.alerter.RechargeFailed(ctx, tenant, tenant.AutoRechargeAmountCents, "no payment method configured")
		}
		return
	}
	ref, err := l.charger.Charge(ctx, tenant.PaymentCustomerRef, tenant.AutoRechargeAmountCents)
	if err != nil {
		l.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("ledger: auto-recharge charge failed")
		if l.alerter != nil {
			l.alerter.RechargeFailed(ctx, tenant, tenant.AutoRechargeAmountCents, err.Error())
		}
		return
	}
	after, err := l.Credit(ctx, tenant.ID, tenant.AutoRechargeAmountCents, domain.TxnPurchase, "auto-recharge "+ref)
	if err != nil {
		l.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("ledger: auto-recharge credit failed after successful charge")
		return
	}
	if l.alerter != nil {
		l.alerter.RechargeSucceeded(ctx, tenant, tenant.AutoRechargeAmountCents, after)
	}
}
