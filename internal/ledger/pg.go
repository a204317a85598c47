package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"pressroom/internal/domain"
	"pressroom/internal/infra"
	"pressroom/internal/sqlinline"
)

// PGStore implements TxStore on a pgx pool.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// WithTx runs fn inside a database transaction, committing on nil error.
func (p *PGStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgTxStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

type pgTxStore struct {
	tx infra.SQLExecutor
}

func (s pgTxStore) LockBalance(ctx context.Context, tenantID string) (int64, error) {
	query := sqlinline.QLockTenantBalance
	var balance int64
	if err := s.tx.QueryRow(ctx, query, tenantID).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (s pgTxStore) SetBalance(ctx context.Context, tenantID string, cents int64) error {
	_, err := s.tx.Exec(ctx, sqlinline.QUpdateTenantBalance, tenantID, cents)
	return err
}

func (s pgTxStore) Insert(ctx context.Context, txn *domain.CreditTransaction) error {
	_, err := s.tx.Exec(ctx, sqlinline.QInsertTransaction,
		txn.ID,
		txn.TenantID,
		txn.JobID,
		txn.DeltaCents,
		txn.BalanceAfterCents,
		string(txn.Kind),
		txn.Description,
	)
	return err
}

func (s pgTxStore) RefundExists(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	if err := s.tx.QueryRow(ctx, sqlinline.QRefundExistsForJob, jobID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
