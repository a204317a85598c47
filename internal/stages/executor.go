package stages

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

// Recorder persists stage attempt rows.
type Recorder interface {
	RecordStage(ctx context.Context, res *domain.StageResult) error
}

// Func is one stage attempt. It may return a payload reference for
// diagnostics (an artifact key, a provider id) alongside its error.
type Func func(ctx context.Context) (payloadRef string, err error)

// Executor runs stages with a per-attempt timeout, records every attempt,
// and retries exactly once when the failure is transient. Non-transient
// failures surface immediately.
type Executor struct {
	recorder Recorder
	timeout  time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewExecutor(recorder Recorder, timeout time.Duration, logger zerolog.Logger) *Executor {
	return &Executor{recorder: recorder, timeout: timeout, logger: logger, now: time.Now}
}

const maxAttempts = 2

// Run executes fn for the named stage. The returned error is always
// classified.
func (e *Executor) Run(ctx context.Context, jobID string, stage domain.StageName, fn Func) error {
	return e.run(ctx, jobID, stage, fn, maxAttempts)
}

// RunOnce executes fn with the same timeout and attempt recording but never
// retries, even on transient failures. Publishing runs through it: a retry
// would re-upload every media item and duplicate them in the tenant's
// library.
func (e *Executor) RunOnce(ctx context.Context, jobID string, stage domain.StageName, fn Func) error {
	return e.run(ctx, jobID, stage, fn, 1)
}

func (e *Executor) run(ctx context.Context, jobID string, stage domain.StageName, fn Func, attempts int) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		started := e.now()
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		payloadRef, err := fn(attemptCtx)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		res := domain.StageResult{
			ID:         uuid.NewString(),
			JobID:      jobID,
			Stage:      stage,
			Attempt:    attempt,
			Status:     domain.StageStatusOK,
			PayloadRef: payloadRef,
			StartedAt:  started,
			Duration:   e.now().Sub(started),
		}
		if err != nil {
			class := domain.Classify(err)
			if timedOut {
				res.Status = domain.StageStatusTimeout
				class = domain.ErrClassTransient
				err = domain.Classified(class, err)
			} else {
				res.Status = domain.StageStatusError
				var ce *domain.ClassifiedError
				if !errors.As(err, &ce) {
					err = domain.Classified(class, err)
				}
			}
			res.ErrorClass = class
		}
		if recErr := e.recorder.RecordStage(ctx, &res); recErr != nil {
			e.logger.Error().Err(recErr).Str("job_id", jobID).Str("stage", string(stage)).Msg("stages: record attempt failed")
		}

		if err == nil {
			return nil
		}
		lastErr = err
		e.logger.Warn().Err(err).
			Str("job_id", jobID).
			Str("stage", string(stage)).
			Int("attempt", attempt).
			Msg("stages: attempt failed")

		if ctx.Err() != nil || !retryable(err) || attempt == attempts {
			break
		}
	}
	return lastErr
}

func retryable(err error) bool {
	var ce *domain.ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class.Retryable()
	}
	return false
}
