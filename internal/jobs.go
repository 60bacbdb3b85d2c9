package internal

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/trellis/pkg/job"
)

// JobEnqueuer dispatches background jobs from request handlers.
type JobEnqueuer struct {
	enqueue func(ctx context.Context, name string, payload any, opts ...job.EnqueueOption) error
}

// NewJobEnqueuer creates an enqueue-only client for the River queue in pool.
func NewJobEnqueuer(pool *pgxpool.Pool, opts ...job.EnqueuerOption) (*JobEnqueuer, error) {
	e, err := job.NewEnqueuer(pool, opts...)
	if err != nil {
		return nil, err
	}
	return &JobEnqueuer{enqueue: e.Enqueue}, nil
}

// Enqueue adds a job to the queue.
func (je *JobEnqueuer) Enqueue(ctx context.Context, name string, payload any, opts ...job.EnqueueOption) error {
	return je.enqueue(ctx, name, payload, opts...)
}

// JobWorker processes background jobs and periodic tasks while the app runs.
type JobWorker struct {
	manager *job.Manager
}

// NewJobWorker creates a worker with the given tasks and schedules.
func NewJobWorker(pool *pgxpool.Pool, opts ...job.Option) (*JobWorker, error) {
	m, err := job.NewManager(pool, opts...)
	if err != nil {
		return nil, err
	}
	return &JobWorker{manager: m}, nil
}

// Enqueuer returns an enqueuer backed by the worker's client.
func (jw *JobWorker) Enqueuer() *JobEnqueuer {
	return &JobEnqueuer{enqueue: jw.manager.Enqueue}
}

// Manager returns the underlying job.Manager.
func (jw *JobWorker) Manager() *job.Manager {
	return jw.manager
}
