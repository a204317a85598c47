package handlers

import (
	"net/http"
	"strconv"
	"time"

	"pressroom/internal/middleware"
)

type transactionResponse struct {
	ID                string    `json:"id"`
	JobID             string    `json:"job_id,omitempty"`
	DeltaCents        int64     `json:"delta_cents"`
	BalanceAfterCents int64     `json:"balance_after_cents"`
	Kind              string    `json:"kind"`
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// GetCredits returns the tenant's balance and recent ledger rows.
func (a *App) GetCredits(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())

	tenant, err := a.Tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "load tenant failed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txns, err := a.LedgerReads.Transactions(r.Context(), tenantID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Str("tenant_id", tenantID).Msg("handlers: load transactions failed")
		a.jsonError(w, http.StatusInternalServerError, "load transactions failed")
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionResponse{
			ID:                t.ID,
			JobID:             t.JobID,
			DeltaCents:        t.DeltaCents,
			BalanceAfterCents: t.BalanceAfterCents,
			Kind:              string(t.Kind),
			Description:       t.Description,
			CreatedAt:         t.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"balance_cents": tenant.BalanceCents,
		"transactions":  out,
	})
}
