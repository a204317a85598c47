package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

type queueClaimer struct {
	mu   sync.Mutex
	jobs []*domain.Job
}

func (q *queueClaimer) Claim(ctx context.Context) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, domain.ErrNotFound
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

type countingRunner struct {
	mu   sync.Mutex
	seen map[string]int
	done chan struct{}
	want int
}

func (r *countingRunner) RunJob(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[job.ID]++
	total := 0
	for _, n := range r.seen {
		total += n
	}
	if total == r.want {
		close(r.done)
	}
	return nil
}

func TestPoolRunsEachClaimedJobOnce(t *testing.T) {
	queue := &queueClaimer{jobs: []*domain.Job{
		{ID: "j1"}, {ID: "j2"}, {ID: "j3"}, {ID: "j4"},
	}}
	runner := &countingRunner{seen: map[string]int{}, done: make(chan struct{}), want: 4}

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(queue, runner, 3, 5*time.Millisecond, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(finished)
	}()

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs not drained in time")
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}

	for id, n := range runner.seen {
		if n != 1 {
			t.Fatalf("job %s ran %d times", id, n)
		}
	}
	if len(runner.seen) != 4 {
		t.Fatalf("jobs run = %d, want 4", len(runner.seen))
	}
}

func TestPoolStopsPromptlyWhenIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(&queueClaimer{}, &countingRunner{seen: map[string]int{}, done: make(chan struct{}), want: -1}, 2, 50*time.Millisecond, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(finished)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("idle pool did not stop after cancel")
	}
}
