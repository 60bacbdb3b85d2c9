package job

import "errors"

var (
	// ErrNotConfigured is returned by Context.Enqueue when the app has no queue.
	ErrNotConfigured  = errors.New("job: not configured")
	ErrUnknownTask    = errors.New("job: unknown task")
	ErrInvalidPayload = errors.New("job: invalid payload")
	ErrInvalidCron    = errors.New("job: invalid cron schedule")
	ErrAlreadyStarted = errors.New("job: already started")
	ErrNotStarted     = errors.New("job: not started")
	ErrPoolRequired   = errors.New("job: pool is required")
	ErrHealthcheck    = errors.New("job: healthcheck failed")
	ErrMigrate        = errors.New("job: schema migration failed")
)
