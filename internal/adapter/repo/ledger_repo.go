package repo

import (
	"context"

	"pressroom/internal/domain"
	"pressroom/internal/infra"
	"pressroom/internal/sqlinline"
)

// LedgerRepository reads the credit transaction log. Writes go through the
// ledger package, inside its transactions.
type LedgerRepository struct {
	sql infra.SQLExecutor
}

func NewLedgerRepository(sql infra.SQLExecutor) *LedgerRepository {
	return &LedgerRepository{sql: sql}
}

// Transactions returns the tenant's most recent ledger rows.
func (r *LedgerRepository) Transactions(ctx context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectTransactions, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CreditTransaction
	for rows.Next() {
		var txn domain.CreditTransaction
		var kind string
		if err := rows.Scan(&txn.ID, &txn.TenantID, &txn.JobID, &txn.DeltaCents, &txn.BalanceAfterCents, &kind, &txn.Description, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txn.Kind = domain.TransactionKind(kind)
		out = append(out, txn)
	}
	return out, rows.Err()
}
