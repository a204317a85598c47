package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pressroom/internal/domain"
	"pressroom/internal/middleware"
)

type createJobRequest struct {
	Topic        string `json:"topic"`
	WritingStyle string `json:"writing_style"`
	PersistMode  string `json:"persist_mode"`
}

type jobResponse struct {
	ID            string     `json:"id"`
	Topic         string     `json:"topic"`
	State         string     `json:"state"`
	Outcome       string     `json:"outcome,omitempty"`
	ErrorClass    string     `json:"error_class,omitempty"`
	FailedStage   string     `json:"failed_stage,omitempty"`
	PersistMode   string     `json:"persist_mode"`
	ScheduledSlot *time.Time `json:"scheduled_slot,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type stageResponse struct {
	Stage      string `json:"stage"`
	Attempt    int    `json:"attempt"`
	Status     string `json:"status"`
	ErrorClass string `json:"error_class,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// CreateJob admits one on-demand article job: the credit debit happens
// before the job row exists, so a queued job is always paid for.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		a.jsonError(w, http.StatusBadRequest, "topic is required")
		return
	}

	mode := domain.NormalizePersistMode(req.PersistMode)
	tenant, err := a.Tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "load tenant failed")
		return
	}
	if mode == domain.PersistModeCMS {
		if !tenant.CMSConfigured() {
			a.jsonError(w, http.StatusUnprocessableEntity, "cms persistence requested but no cms credentials configured")
			return
		}
		// Verify the credentials now, before the tenant is charged, so a
		// dead app password fails the request instead of the job.
		if a.CMS != nil {
			if err := a.CMS.TestConnection(r.Context(), tenant); err != nil {
				a.Logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("handlers: cms connection test failed")
				a.jsonError(w, http.StatusUnprocessableEntity, "cms connection test failed, check your site url and application password")
				return
			}
		}
	}

	style := strings.TrimSpace(req.WritingStyle)
	if style == "" {
		style = tenant.WritingStyle
	}

	jobID := uuid.NewString()
	balance, err := a.Ledger.Debit(r.Context(), tenantID, jobID, a.CostCents)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			a.jsonError(w, http.StatusPaymentRequired, "insufficient credits")
			return
		}
		a.Logger.Error().Err(err).Str("tenant_id", tenantID).Msg("handlers: debit failed")
		a.jsonError(w, http.StatusInternalServerError, "debit failed")
		return
	}

	job := &domain.Job{
		ID:            jobID,
		TenantID:      tenantID,
		Topic:         req.Topic,
		WritingStyle:  style,
		RequestedMode: mode,
		State:         domain.JobStateQueued,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: create job failed")
		if rerr := a.Ledger.Refund(r.Context(), tenantID, jobID, a.CostCents, "admission failed"); rerr != nil {
			a.Logger.Error().Err(rerr).Str("job_id", jobID).Msg("handlers: refund after failed admission failed")
		}
		a.jsonError(w, http.StatusInternalServerError, "create job failed")
		return
	}

	a.Ledger.MaybeAutoRecharge(r.Context(), tenant, balance)

	a.json(w, http.StatusAccepted, map[string]any{
		"id":            jobID,
		"state":         string(domain.JobStateQueued),
		"balance_cents": balance,
	})
}

// GetJob returns a job's state and stage history. Jobs belonging to other
// tenants are indistinguishable from missing ones.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "job not found")
			return
		}
		a.jsonError(w, http.StatusInternalServerError, "load job failed")
		return
	}
	if job.TenantID != tenantID {
		a.jsonError(w, http.StatusNotFound, "job not found")
		return
	}

	stages, err := a.Jobs.StageResults(r.Context(), jobID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: load stage results failed")
	}
	stageOut := make([]stageResponse, 0, len(stages))
	for _, s := range stages {
		stageOut = append(stageOut, stageResponse{
			Stage:      string(s.Stage),
			Attempt:    s.Attempt,
			Status:     string(s.Status),
			ErrorClass: string(s.ErrorClass),
			DurationMS: s.Duration.Milliseconds(),
		})
	}

	a.json(w, http.StatusOK, map[string]any{
		"job": jobResponse{
			ID:            job.ID,
			Topic:         job.Topic,
			State:         string(job.State),
			Outcome:       string(job.Outcome),
			ErrorClass:    string(job.ErrorClass),
			FailedStage:   string(job.FailedStage),
			PersistMode:   string(job.RequestedMode),
			ScheduledSlot: job.ScheduledSlot,
			CreatedAt:     job.CreatedAt,
			UpdatedAt:     job.UpdatedAt,
		},
		"stages": stageOut,
	})
}
