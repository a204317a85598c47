package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
	"pressroom/internal/publish"
)

// JobStore is the job surface the API needs.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, jobID string) (*domain.Job, error)
	StageResults(ctx context.Context, jobID string) ([]domain.StageResult, error)
}

// TenantStore loads tenant configuration and balances.
type TenantStore interface {
	GetByID(ctx context.Context, tenantID string) (domain.TenantConfig, error)
}

// CreditLedger is the write side of the credit ledger.
type CreditLedger interface {
	Debit(ctx context.Context, tenantID, jobID string, amountCents int64) (int64, error)
	Refund(ctx context.Context, tenantID, jobID string, amountCents int64, reason string) error
	Credit(ctx context.Context, tenantID string, amountCents int64, kind domain.TransactionKind, description string) (int64, error)
	MaybeAutoRecharge(ctx context.Context, tenant domain.TenantConfig, balanceCents int64)
}

// LedgerReader is the read side of the credit ledger.
type LedgerReader interface {
	Transactions(ctx context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error)
}

// ArticleReader loads finished articles for post-completion actions.
type ArticleReader interface {
	GetByJobID(ctx context.Context, jobID string) (*domain.Article, error)
	MarkPublished(ctx context.Context, articleID, postURL string) error
}

// CMSGateway is the CMS surface the API touches directly: credential checks
// at admission and draft publication on request.
type CMSGateway interface {
	TestConnection(ctx context.Context, cfg domain.TenantConfig) error
	PublishPost(ctx context.Context, cfg domain.TenantConfig, postID string) (publish.PostHandle, error)
}

// Pinger reports storage liveness for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App bundles the API's dependencies.
type App struct {
	Jobs          JobStore
	Tenants       TenantStore
	Ledger        CreditLedger
	LedgerReads   LedgerReader
	Articles      ArticleReader
	CMS           CMSGateway
	DB            Pinger
	CostCents     int64
	WebhookSecret string
	Logger        zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
