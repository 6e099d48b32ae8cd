package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relayworks/relay/pkg/schema"
)

// Memory is an in-process Queue backed by timers. Delayed entries are
// deduplicated per execution ID: a second EnqueueAfter for an execution
// that is already waiting keeps the earlier deadline.
type Memory struct {
	run    RunFunc
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMemory creates a queue dispatching through run.
func NewMemory(run RunFunc, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Memory{
		run:    run,
		logger: logger.With("component", "queue"),
		timers: make(map[string]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *Memory) Enqueue(ctx context.Context, executionID string) error {
	return q.EnqueueAfter(ctx, executionID, 0)
}

func (q *Memory) EnqueueAfter(_ context.Context, executionID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return schema.NewError(schema.ErrCodeConflict, "queue is closed")
	}
	if _, waiting := q.timers[executionID]; waiting {
		return nil
	}

	if delay <= 0 {
		q.wg.Add(1)
		go q.dispatch(executionID)
		return nil
	}

	q.wg.Add(1)
	q.timers[executionID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, executionID)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			q.wg.Done()
			return
		}
		q.dispatch(executionID)
	})
	return nil
}

func (q *Memory) dispatch(executionID string) {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("dispatch panicked", "execution_id", executionID, "panic", r)
		}
	}()
	if q.ctx.Err() != nil {
		return
	}
	q.run(q.ctx, executionID)
}

// Close cancels pending timers and waits for in-flight dispatches. Entries
// still waiting on a delay are dropped; the supervisor's sweep re-enqueues
// them on the next pass.
func (q *Memory) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for id, timer := range q.timers {
		if timer.Stop() {
			q.wg.Done()
		}
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return nil
}
