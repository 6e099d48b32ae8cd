// Package queue hands executions to the run loop, immediately or after a
// delay. The production deployment may back this with an external broker;
// the in-process implementation in this package is the injectable default.
package queue

import (
	"context"
	"time"
)

// Queue schedules executions for (re-)dispatch. Implementations must be
// safe for concurrent use. Enqueueing the same execution twice is
// harmless: the executor's claim is a compare-and-set, so the second
// dispatch observes a conflict and no-ops.
type Queue interface {
	// Enqueue schedules the execution for immediate dispatch.
	Enqueue(ctx context.Context, executionID string) error

	// EnqueueAfter schedules the execution for dispatch once the delay
	// has elapsed. A non-positive delay behaves like Enqueue.
	EnqueueAfter(ctx context.Context, executionID string, delay time.Duration) error

	// Close stops accepting work and waits for in-flight dispatches.
	Close() error
}

// RunFunc dispatches one execution. Called on a queue-owned goroutine.
type RunFunc func(ctx context.Context, executionID string)
