package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"pressroom/internal/domain"
	"pressroom/internal/middleware"
)

type stubJobs struct {
	created   []domain.Job
	createErr error
	byID      map[string]*domain.Job
	stages    []domain.StageResult
}

func (s *stubJobs) Create(ctx context.Context, job *domain.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, *job)
	return nil
}

func (s *stubJobs) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, ok := s.byID[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (s *stubJobs) StageResults(ctx context.Context, jobID string) ([]domain.StageResult, error) {
	return s.stages, nil
}

type stubTenants struct {
	tenant domain.TenantConfig
}

func (s *stubTenants) GetByID(ctx context.Context, tenantID string) (domain.TenantConfig, error) {
	return s.tenant, nil
}

type stubLedger struct {
	balance         int64
	debitErr        error
	debits          int
	refunds         int
	recharges       int
	credits         int
	lastCreditCents int64
	lastKind        domain.TransactionKind
}

func (s *stubLedger) Debit(ctx context.Context, tenantID, jobID string, amountCents int64) (int64, error) {
	if s.debitErr != nil {
		return 0, s.debitErr
	}
	s.debits++
	return s.balance - amountCents, nil
}

func (s *stubLedger) Refund(ctx context.Context, tenantID, jobID string, amountCents int64, reason string) error {
	s.refunds++
	return nil
}

func (s *stubLedger) Credit(ctx context.Context, tenantID string, amountCents int64, kind domain.TransactionKind, description string) (int64, error) {
	s.credits++
	s.lastCreditCents = amountCents
	s.lastKind = kind
	return s.balance, nil
}

func (s *stubLedger) MaybeAutoRecharge(ctx context.Context, tenant domain.TenantConfig, balanceCents int64) {
	s.recharges++
}

func jobsApp(jobs *stubJobs, ledger *stubLedger, tenant domain.TenantConfig) *App {
	return &App{
		Jobs:      jobs,
		Tenants:   &stubTenants{tenant: tenant},
		Ledger:    ledger,
		CostCents: 199,
		Logger:    zerolog.Nop(),
	}
}

func authedRequest(method, target, body, tenantID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithTenantID(req.Context(), tenantID))
}

func TestCreateJobDebitsThenQueues(t *testing.T) {
	jobs := &stubJobs{}
	ledger := &stubLedger{balance: 1000}
	app := jobsApp(jobs, ledger, domain.TenantConfig{ID: "t1", WritingStyle: "magazine"})

	rec := httptest.NewRecorder()
	app.CreateJob(rec, authedRequest(http.MethodPost, "/v1/jobs", `{"topic":"balcony solar"}`, "t1"))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if ledger.debits != 1 {
		t.Fatalf("debits = %d, want 1", ledger.debits)
	}
	if len(jobs.created) != 1 {
		t.Fatalf("jobs created = %d", len(jobs.created))
	}
	job := jobs.created[0]
	if job.State != domain.JobStateQueued || job.TenantID != "t1" {
		t.Fatalf("job = %+v", job)
	}
	if job.WritingStyle != "magazine" {
		t.Fatalf("writing style = %q, want tenant default", job.WritingStyle)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["balance_cents"].(float64) != 801 {
		t.Fatalf("balance_cents = %v", resp["balance_cents"])
	}
}

func TestCreateJobRequiresTopic(t *testing.T) {
	app := jobsApp(&stubJobs{}, &stubLedger{}, domain.TenantConfig{ID: "t1"})
	rec := httptest.NewRecorder()
	app.CreateJob(rec, authedRequest(http.MethodPost, "/v1/jobs", `{"topic":"  "}`, "t1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateJobRejectsCMSModeWithoutCredentials(t *testing.T) {
	ledger := &stubLedger{}
	app := jobsApp(&stubJobs{}, ledger, domain.TenantConfig{ID: "t1"})

	rec := httptest.NewRecorder()
	app.CreateJob(rec, authedRequest(http.MethodPost, "/v1/jobs", `{"topic":"x","persist_mode":"cms"}`, "t1"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if ledger.debits != 0 {
		t.Fatal("debited before the mode check")
	}
}

func TestCreateJobVerifiesCMSCredentialsBeforeDebit(t *testing.T) {
	ledger := &stubLedger{}
	cms := &stubCMS{connErr: domain.Classified(domain.ErrClassAuth, errors.New("401"))}
	tenant := domain.TenantConfig{
		ID:             "t1",
		CMSBaseURL:     "https://blog.example",
		CMSUsername:    "writer",
		CMSAppPassword: "xxxx yyyy",
	}
	app := jobsApp(&stubJobs{}, ledger, tenant)
	app.CMS = cms

	rec := httptest.NewRecorder()
	app.CreateJob(rec, authedRequest(http.MethodPost, "/v1/jobs", `{"topic":"x","persist_mode":"cms"}`, "t1"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 on failed connection test", rec.Code)
	}
	if cms.connChecks != 1 {
		t.Fatalf("connection checks = %d, want 1", cms.connChecks)
	}
	if ledger.debits != 0 {
		t.Fatal("debited despite a dead app password")
	}
}

func TestCreateJobInsufficientFundsIs402(t *testing.T) {
	ledger := &stubLedger{debitErr: domain.ErrInsufficientFunds}
	jobs := &stubJobs{}
	app := jobsApp(jobs, ledger, domain.TenantConfig{ID: "t1"})

	rec := httptest.NewRecorder()
	app.CreateJob(rec, authedRequest(http.MethodPost, "/v1/jobs", `{"topic":"x"}`, "t1"))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	if len(jobs.created) != 0 {
		t.Fatal("job created despite failed debit")
	}
}

func TestCreateJobRefundsWhenInsertFails(t *testing.T) {
	ledger := &stubLedger{balance: 1000}
	jobs := &stubJobs{createErr: errors.New("db down")}
	app := jobsApp(jobs, ledger, domain.TenantConfig{ID: "t1"})

	rec := httptest.NewRecorder()
	app.CreateJob(rec, authedRequest(http.MethodPost, "/v1/jobs", `{"topic":"x"}`, "t1"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ledger.refunds != 1 {
		t.Fatalf("refunds = %d, want the orphaned debit reversed", ledger.refunds)
	}
}

func getJob(app *App, jobID, tenantID string) *httptest.ResponseRecorder {
	req := authedRequest(http.MethodGet, "/v1/jobs/"+jobID, "", tenantID)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", jobID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	app.GetJob(rec, req)
	return rec
}

func TestGetJobReturnsStateAndStages(t *testing.T) {
	job := &domain.Job{
		ID:        "j1",
		TenantID:  "t1",
		Topic:     "balcony solar",
		State:     domain.JobStateFormatting,
		CreatedAt: time.Now(),
	}
	jobs := &stubJobs{
		byID: map[string]*domain.Job{"j1": job},
		stages: []domain.StageResult{
			{Stage: domain.StageResearch, Attempt: 1, Status: domain.StageStatusOK, Duration: 1200 * time.Millisecond},
			{Stage: domain.StageContent, Attempt: 1, Status: domain.StageStatusError, ErrorClass: domain.ErrClassTransient},
			{Stage: domain.StageContent, Attempt: 2, Status: domain.StageStatusOK},
		},
	}
	app := jobsApp(jobs, &stubLedger{}, domain.TenantConfig{ID: "t1"})

	rec := getJob(app, "j1", "t1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Job    jobResponse     `json:"job"`
		Stages []stageResponse `json:"stages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Job.State != "formatting" {
		t.Fatalf("state = %q", resp.Job.State)
	}
	if len(resp.Stages) != 3 {
		t.Fatalf("stages = %d", len(resp.Stages))
	}
	if resp.Stages[0].DurationMS != 1200 {
		t.Fatalf("duration_ms = %d", resp.Stages[0].DurationMS)
	}
	if resp.Stages[1].ErrorClass != "transient" {
		t.Fatalf("error_class = %q", resp.Stages[1].ErrorClass)
	}
}

func TestGetJobHidesOtherTenantsJobs(t *testing.T) {
	jobs := &stubJobs{byID: map[string]*domain.Job{"j1": {ID: "j1", TenantID: "t1"}}}
	app := jobsApp(jobs, &stubLedger{}, domain.TenantConfig{ID: "t2"})

	rec := getJob(app, "j1", "t2")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 indistinguishable from missing", rec.Code)
	}

	rec = getJob(app, "missing", "t2")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d for missing job, want 404", rec.Code)
	}
}
