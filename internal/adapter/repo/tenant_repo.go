package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"pressroom/internal/domain"
	"pressroom/internal/infra"
	"pressroom/internal/sqlinline"
)

// TenantRepository loads tenant configuration for the pipeline. The loaded
// TenantConfig travels by value; nothing here mutates process environment.
type TenantRepository struct {
	sql infra.SQLExecutor
}

func NewTenantRepository(sql infra.SQLExecutor) *TenantRepository {
	return &TenantRepository{sql: sql}
}

// GetByID loads the full tenant configuration.
func (r *TenantRepository) GetByID(ctx context.Context, tenantID string) (domain.TenantConfig, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectTenantByID, tenantID)
	var t domain.TenantConfig
	var topicsRaw, scheduleRaw []byte
	if err := row.Scan(
		&t.ID,
		&t.Email,
		&t.SystemPrompt,
		&t.WritingStyle,
		&topicsRaw,
		&t.LastQueryIndex,
		&t.BrandPrimaryColor,
		&t.BrandAccentColor,
		&t.CMSBaseURL,
		&t.CMSUsername,
		&t.CMSAppPassword,
		&scheduleRaw,
		&t.AutoRechargeEnabled,
		&t.AutoRechargeThresholdCents,
		&t.AutoRechargeAmountCents,
		&t.PaymentCustomerRef,
		&t.BalanceCents,
	); err != nil {
		if infra.IsNoRows(err) {
			return domain.TenantConfig{}, domain.ErrNotFound
		}
		return domain.TenantConfig{}, err
	}
	if len(topicsRaw) > 0 {
		if err := json.Unmarshal(topicsRaw, &t.TopicQueries); err != nil {
			return domain.TenantConfig{}, fmt.Errorf("decode topic queries: %w", err)
		}
	}
	t.ScheduleJSON = scheduleRaw
	return t, nil
}

// ResolveAPIKey maps an API key to a tenant id.
func (r *TenantRepository) ResolveAPIKey(ctx context.Context, apiKey string) (string, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectTenantByAPIKey, apiKey)
	var tenantID string
	if err := row.Scan(&tenantID); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return tenantID, nil
}

// ScheduledTenantIDs lists tenants that have at least one schedule entry.
func (r *TenantRepository) ScheduledTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectTenantsWithSchedule)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetQueryIndex persists the tenant's topic rotation cursor.
func (r *TenantRepository) SetQueryIndex(ctx context.Context, tenantID string, index int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateTenantQueryIndex, tenantID, index)
	return err
}
