package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

// Claimer hands out queued jobs, one at a time, with queue-side locking so
// two workers never claim the same job.
type Claimer interface {
	Claim(ctx context.Context) (*domain.Job, error)
}

// Runner drives one claimed job to a terminal outcome.
type Runner interface {
	RunJob(ctx context.Context, job *domain.Job) error
}

// Pool runs a fixed number of claim loops. Each loop claims a job, runs it
// to completion, and polls again; an empty queue backs the loop off.
type Pool struct {
	claimer  Claimer
	runner   Runner
	size     int
	pollWait time.Duration
	logger   zerolog.Logger
}

func NewPool(claimer Claimer, runner Runner, size int, pollWait time.Duration, logger zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if pollWait <= 0 {
		pollWait = 2 * time.Second
	}
	return &Pool{claimer: claimer, runner: runner, size: size, pollWait: pollWait, logger: logger}
}

// Run blocks until ctx is canceled and every loop has drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	p.logger.Info().Int("workers", p.size).Msg("worker: pool started")
	wg.Wait()
	p.logger.Info().Msg("worker: pool stopped")
}

func (p *Pool) loop(ctx context.Context, id int) {
	log := p.logger.With().Int("worker", id).Logger()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.claimer.Claim(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Error().Err(err).Msg("worker: claim failed")
			}
			if !sleep(ctx, p.pollWait) {
				return
			}
			continue
		}
		log.Info().Str("job_id", job.ID).Str("topic", job.Topic).Msg("worker: job claimed")
		if err := p.runner.RunJob(ctx, job); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("worker: finalize failed")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
