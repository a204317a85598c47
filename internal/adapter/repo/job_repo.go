package repo

import (
	"context"
	"time"

	"pressroom/internal/domain"
	"pressroom/internal/infra"
	"pressroom/internal/sqlinline"
)

// JobRepository persists jobs and their stage results.
type JobRepository struct {
	sql infra.SQLExecutor
}

func NewJobRepository(sql infra.SQLExecutor) *JobRepository {
	return &JobRepository{sql: sql}
}

// Create inserts a queued job row.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.TenantID,
		job.Topic,
		job.WritingStyle,
		string(job.RequestedMode),
		job.ScheduledSlot,
	)
	return err
}

// Claim picks the oldest queued job and moves it to admitted, skipping rows
// locked by other workers.
func (r *JobRepository) Claim(ctx context.Context) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QWorkerClaimJob)
	var job domain.Job
	var mode string
	if err := row.Scan(&job.ID, &job.TenantID, &job.Topic, &job.WritingStyle, &mode, &job.ScheduledSlot); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.RequestedMode = domain.PersistMode(mode)
	job.State = domain.JobStateAdmitted
	return &job, nil
}

// SetState advances the job's pipeline state.
func (r *JobRepository) SetState(ctx context.Context, jobID string, state domain.JobState) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateJobState, jobID, string(state))
	return err
}

// Finish records the terminal state and outcome of a job.
func (r *JobRepository) Finish(ctx context.Context, job *domain.Job) error {
	_, err := r.sql.Exec(ctx, sqlinline.QFinishJob,
		job.ID,
		string(job.State),
		string(job.Outcome),
		string(job.ErrorClass),
		string(job.FailedStage),
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID)
	var job domain.Job
	var mode, outcome, errClass, failedStage string
	if err := row.Scan(
		&job.ID,
		&job.TenantID,
		&job.Topic,
		&job.WritingStyle,
		&mode,
		&job.State,
		&outcome,
		&errClass,
		&failedStage,
		&job.ScheduledSlot,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.RequestedMode = domain.PersistMode(mode)
	job.Outcome = domain.JobOutcome(outcome)
	job.ErrorClass = domain.ErrorClass(errClass)
	job.FailedStage = domain.StageName(failedStage)
	return &job, nil
}

// RecordStage appends one stage attempt row.
func (r *JobRepository) RecordStage(ctx context.Context, res *domain.StageResult) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertStageResult,
		res.ID,
		res.JobID,
		string(res.Stage),
		res.Attempt,
		string(res.Status),
		string(res.ErrorClass),
		res.PayloadRef,
		res.StartedAt,
		res.Duration.Milliseconds(),
	)
	return err
}

// StageResults returns all recorded attempts for a job in start order.
func (r *JobRepository) StageResults(ctx context.Context, jobID string) ([]domain.StageResult, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectStageResults, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StageResult
	for rows.Next() {
		var res domain.StageResult
		var durationMS int64
		var errClass string
		if err := rows.Scan(&res.ID, &res.JobID, &res.Stage, &res.Attempt, &res.Status, &errClass, &res.PayloadRef, &res.StartedAt, &durationMS); err != nil {
			return nil, err
		}
		res.ErrorClass = domain.ErrorClass(errClass)
		res.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, res)
	}
	return out, rows.Err()
}
