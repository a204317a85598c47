package domain

import "time"

// TransactionKind enumerates ledger row kinds.
type TransactionKind string

const (
	TxnDebitForJob TransactionKind = "debit_for_job"
	TxnRefund      TransactionKind = "refund"
	TxnPurchase    TransactionKind = "purchase"
	TxnAdjustment  TransactionKind = "adjustment"
)

// CreditTransaction is an append-only ledger row. DeltaCents is signed;
// BalanceAfterCents equals the running sum of all prior deltas for the
// tenant. Amounts are integer cents, never floats.
type CreditTransaction struct {
	ID                string
	TenantID          string
	JobID             string // empty for non-job transactions
	DeltaCents        int64
	BalanceAfterCents int64
	Kind              TransactionKind
	Description       string
	CreatedAt         time.Time
}
