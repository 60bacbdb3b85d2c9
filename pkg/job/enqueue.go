package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/riverqueue/river"
)

// EnqueueOption adjusts how a job is inserted.
type EnqueueOption func(*river.InsertOpts)

// InQueue puts the job on a named queue.
func InQueue(name string) EnqueueOption {
	return func(o *river.InsertOpts) {
		if name != "" {
			o.Queue = name
		}
	}
}

// ScheduledAt delays the job until t.
func ScheduledAt(t time.Time) EnqueueOption {
	return func(o *river.InsertOpts) { o.ScheduledAt = t }
}

// ScheduledIn delays the job by d.
func ScheduledIn(d time.Duration) EnqueueOption {
	return func(o *river.InsertOpts) { o.ScheduledAt = time.Now().Add(d) }
}

// MaxAttempts bounds retries.
func MaxAttempts(n int) EnqueueOption {
	return func(o *river.InsertOpts) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// UniqueFor skips the insert when an identical job (same task and payload)
// was inserted within d.
func UniqueFor(d time.Duration) EnqueueOption {
	return func(o *river.InsertOpts) {
		if d > 0 {
			o.UniqueOpts = river.UniqueOpts{ByArgs: true, ByPeriod: d}
		}
	}
}

// Priority sets the priority, 1 (highest) to 4.
func Priority(p int) EnqueueOption {
	return func(o *river.InsertOpts) {
		if p > 0 {
			o.Priority = p
		}
	}
}

// Tags attaches tags to the job.
func Tags(tags ...string) EnqueueOption {
	return func(o *river.InsertOpts) { o.Tags = append(o.Tags, tags...) }
}

func buildInsert(name string, payload any, opts []EnqueueOption) (taskArgs, *river.InsertOpts, error) {
	args := taskArgs{Task: name}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return args, nil, fmt.Errorf("job: marshal payload of %s: %w", name, err)
		}
		args.Payload = raw
	}

	io := &river.InsertOpts{}
	for _, opt := range opts {
		opt(io)
	}
	return args, io, nil
}
