package interfaces

import "context"

// TaskQueue dispatches generation jobs to workers asynchronously.
// Dispatch is at-least-once; consumers must process jobs idempotently.
type TaskQueue interface {
	// Enqueue schedules a job run and returns the task handle
	Enqueue(ctx context.Context, jobID string) (string, error)
	// Cancel signals a queued or in-flight task to terminate
	Cancel(ctx context.Context, taskID string) error
}
