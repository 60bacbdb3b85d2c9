package job

import (
	"context"
	"log/slog"
)

type periodic struct {
	name     string
	schedule string
}

type config struct {
	registry   *registry
	queues     map[string]int
	logger     *slog.Logger
	periodic   []periodic
	maxWorkers int
}

// Option configures a Manager.
type Option func(*config)

// WithTask registers a task. P is the payload type of its Handle method:
//
//	func (t *RebuildRoutes) Name() string { return "cms.rebuild_routes" }
//	func (t *RebuildRoutes) Handle(ctx context.Context, p RebuildPayload) error
//
//	job.WithTask[RebuildPayload](&RebuildRoutes{})
func WithTask[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](task T) Option {
	return func(c *config) {
		c.registry.add(task.Name(), typed(task.Handle))
	}
}

// WithScheduledTask registers a task without payload that runs on a cron
// schedule.
func WithScheduledTask[T interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}](task T) Option {
	return func(c *config) {
		c.registry.add(task.Name(), typed(func(ctx context.Context, _ struct{}) error {
			return task.Handle(ctx)
		}))
		c.periodic = append(c.periodic, periodic{name: task.Name(), schedule: task.Schedule()})
	}
}

// WithQueue adds a named queue with its own worker count.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithLogger sets the job logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers sets the worker count of the default queue. Default: 10.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}
