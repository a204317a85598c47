package repo

import (
	"context"
	"time"

	"pressroom/internal/infra"
	"pressroom/internal/sqlinline"
)

// ScheduleRepository claims scheduled occurrence slots. The unique index on
// (tenant_id, scheduled_slot) is the ground truth against duplicate runs.
type ScheduleRepository struct {
	sql infra.SQLExecutor
}

func NewScheduleRepository(sql infra.SQLExecutor) *ScheduleRepository {
	return &ScheduleRepository{sql: sql}
}

// ClaimSlot reports whether this caller won the (tenant, slot) occurrence.
func (r *ScheduleRepository) ClaimSlot(ctx context.Context, tenantID string, slot time.Time) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QClaimScheduledSlot, tenantID, slot)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// PurgeOld drops slot claims older than the retention window.
func (r *ScheduleRepository) PurgeOld(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteOldScheduledRuns)
	return err
}
