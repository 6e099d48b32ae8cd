// Package supervisor watches in-flight executions from the outside: a
// fixed-interval sweep times out stuck runs, re-dispatches stale ones,
// schedules bounded retries for failed ones, and prunes old history.
// Every transition it makes is a compare-and-set on status, so a sweep
// racing an active executor (or another replica's sweep) loses cleanly.
package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/relayworks/relay/internal/engine"
	"github.com/relayworks/relay/internal/queue"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/pkg/schema"
)

// Defaults for the sweep policy.
const (
	DefaultSweepInterval   = time.Minute
	DefaultRunningTimeout  = 30 * time.Minute
	DefaultStartupGrace    = 5 * time.Minute
	DefaultRetryBase       = time.Minute
	DefaultRetryMaxDelay   = time.Hour
	DefaultMaxRetries      = 3
	DefaultRetention       = 90 * 24 * time.Hour
	DefaultCleanupInterval = 24 * time.Hour
)

// Config tunes the sweep policy. Zero fields take the package defaults.
type Config struct {
	SweepInterval   time.Duration
	RunningTimeout  time.Duration
	StartupGrace    time.Duration
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	MaxRetries      int
	Retention       time.Duration
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.RunningTimeout <= 0 {
		c.RunningTimeout = DefaultRunningTimeout
	}
	if c.StartupGrace <= 0 {
		c.StartupGrace = DefaultStartupGrace
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// SweepStats counts what one sweep pass did.
type SweepStats struct {
	TimedOut     int   `json:"timed_out"`
	Redispatched int   `json:"redispatched"`
	Retried      int   `json:"retried"`
	Exhausted    int   `json:"exhausted"`
	Deleted      int64 `json:"deleted"`
}

// Supervisor runs the sweep loop against one store.
type Supervisor struct {
	store  store.Store
	queue  queue.Queue
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	lastCleanup time.Time
	stop        chan struct{}
	done        chan struct{}
	started     bool
}

func New(st store.Store, q queue.Queue, cfg Config, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		store:  st,
		queue:  q,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "supervisor"),
	}
}

// Start launches the sweep loop. Stop, or cancelling ctx, ends it.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Error("sweep failed", "error", err)
					continue
				}
				if stats != (SweepStats{}) {
					s.logger.Info("sweep complete",
						"timed_out", stats.TimedOut,
						"redispatched", stats.Redispatched,
						"retried", stats.Retried,
						"exhausted", stats.Exhausted,
						"deleted", stats.Deleted)
				}
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the sweep loop and waits for the current pass to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Sweep runs one pass of all checks. Safe to call concurrently with the
// loop; every transition is CAS-guarded.
func (s *Supervisor) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := time.Now().UTC()

	if err := s.sweepStuck(ctx, now, &stats); err != nil {
		return stats, err
	}
	if err := s.sweepStale(ctx, now, &stats); err != nil {
		return stats, err
	}
	if err := s.sweepRetryDue(ctx, now, &stats); err != nil {
		return stats, err
	}
	if err := s.sweepFailed(ctx, now, &stats); err != nil {
		return stats, err
	}
	if err := s.cleanup(ctx, now, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// sweepStuck times out executions still marked running past the wall-clock
// bound. Timeout is terminal; a timed-out execution is never auto-retried.
func (s *Supervisor) sweepStuck(ctx context.Context, now time.Time, stats *SweepStats) error {
	running := schema.ExecutionStatusRunning
	cutoff := now.Add(-s.cfg.RunningTimeout)
	execs, err := s.store.ListExecutions(ctx, store.ExecutionFilter{
		Status:        &running,
		UpdatedBefore: &cutoff,
	})
	if err != nil {
		return err
	}

	for _, exec := range execs {
		msg := "execution exceeded running timeout of " + s.cfg.RunningTimeout.String()
		completedAt := now
		swapped, err := s.store.CompareAndSwapExecutionStatus(ctx, exec.ID,
			schema.ExecutionStatusRunning, schema.ExecutionStatusTimeout,
			store.ExecutionUpdate{
				Error:       &msg,
				CompletedAt: &completedAt,
			})
		if err != nil {
			return err
		}
		if !swapped {
			continue
		}
		stats.TimedOut++
		s.appendEvent(ctx, exec.ID, schema.EventExecutionTimedOut, map[string]any{
			"running_timeout": s.cfg.RunningTimeout.String(),
		})
		s.logger.Warn("execution timed out",
			"execution_id", exec.ID, "workflow_id", exec.WorkflowID,
			"last_updated", exec.UpdatedAt)
	}
	return nil
}

// sweepStale re-dispatches executions that were created but never picked
// up. This is dispatch-loss recovery, not a retry: retry_count is untouched
// and the executor's claim CAS dedupes a racing dispatch.
func (s *Supervisor) sweepStale(ctx context.Context, now time.Time, stats *SweepStats) error {
	pending := schema.ExecutionStatusPending
	cutoff := now.Add(-s.cfg.StartupGrace)
	execs, err := s.store.ListExecutions(ctx, store.ExecutionFilter{
		Status:        &pending,
		UpdatedBefore: &cutoff,
	})
	if err != nil {
		return err
	}

	for _, exec := range execs {
		if err := s.queue.Enqueue(ctx, exec.ID); err != nil {
			s.logger.Error("redispatch enqueue failed", "execution_id", exec.ID, "error", err)
			continue
		}
		stats.Redispatched++
		s.appendEvent(ctx, exec.ID, schema.EventExecutionRedispatched, nil)
		s.logger.Info("stale execution redispatched", "execution_id", exec.ID)
	}
	return nil
}

// sweepRetryDue re-dispatches retrying executions whose backoff elapsed but
// whose delayed dispatch was lost, for example across a process restart.
func (s *Supervisor) sweepRetryDue(ctx context.Context, now time.Time, stats *SweepStats) error {
	retrying := schema.ExecutionStatusRetrying
	execs, err := s.store.ListExecutions(ctx, store.ExecutionFilter{
		Status:   &retrying,
		RetryDue: &now,
	})
	if err != nil {
		return err
	}

	for _, exec := range execs {
		if err := s.queue.Enqueue(ctx, exec.ID); err != nil {
			s.logger.Error("retry enqueue failed", "execution_id", exec.ID, "error", err)
			continue
		}
		stats.Redispatched++
		s.appendEvent(ctx, exec.ID, schema.EventExecutionRedispatched, nil)
	}
	return nil
}

// sweepFailed schedules bounded retries with exponential backoff. The CAS
// to Retrying happens before the enqueue, so two sweepers cannot schedule
// the same retry twice.
func (s *Supervisor) sweepFailed(ctx context.Context, now time.Time, stats *SweepStats) error {
	failed := schema.ExecutionStatusFailed
	execs, err := s.store.ListExecutions(ctx, store.ExecutionFilter{Status: &failed})
	if err != nil {
		return err
	}

	for _, exec := range execs {
		maxRetries := exec.MaxRetries
		if maxRetries <= 0 {
			maxRetries = s.cfg.MaxRetries
		}
		if exec.RetryCount >= maxRetries {
			stats.Exhausted++
			s.logger.Warn("retries exhausted",
				"execution_id", exec.ID, "workflow_id", exec.WorkflowID,
				"retry_count", exec.RetryCount, "error_code", schema.ErrCodeRetryExhausted)
			continue
		}

		delay := engine.ComputeBackoff(s.cfg.RetryBase, exec.RetryCount, s.cfg.RetryMaxDelay)
		newCount := exec.RetryCount + 1
		nextRetryAt := now.Add(delay)
		swapped, err := s.store.CompareAndSwapExecutionStatus(ctx, exec.ID,
			schema.ExecutionStatusFailed, schema.ExecutionStatusRetrying,
			store.ExecutionUpdate{
				RetryCount:  &newCount,
				NextRetryAt: &nextRetryAt,
			})
		if err != nil {
			return err
		}
		if !swapped {
			continue
		}
		if err := s.queue.EnqueueAfter(ctx, exec.ID, delay); err != nil {
			s.logger.Error("retry enqueue failed", "execution_id", exec.ID, "error", err)
			continue
		}
		stats.Retried++
		s.appendEvent(ctx, exec.ID, schema.EventExecutionRetrying, map[string]any{
			"retry_count": newCount,
			"delay":       delay.String(),
		})
		s.logger.Info("retry scheduled",
			"execution_id", exec.ID, "retry_count", newCount, "delay", delay)
	}
	return nil
}

// cleanup prunes terminal executions past the retention window, at most
// once per cleanup interval.
func (s *Supervisor) cleanup(ctx context.Context, now time.Time, stats *SweepStats) error {
	s.mu.Lock()
	due := now.Sub(s.lastCleanup) >= s.cfg.CleanupInterval
	if due {
		s.lastCleanup = now
	}
	s.mu.Unlock()
	if !due {
		return nil
	}

	deleted, err := s.store.DeleteExecutionsBefore(ctx, now.Add(-s.cfg.Retention), []schema.ExecutionStatus{
		schema.ExecutionStatusCompleted,
		schema.ExecutionStatusFailed,
		schema.ExecutionStatusTimeout,
		schema.ExecutionStatusCancelled,
	})
	if err != nil {
		return err
	}
	stats.Deleted = deleted
	if deleted > 0 {
		s.logger.Info("old executions pruned", "deleted", deleted, "retention", s.cfg.Retention)
		if err := s.store.Vacuum(ctx); err != nil {
			s.logger.Warn("vacuum failed", "error", err)
		}
	}
	return nil
}

func (s *Supervisor) appendEvent(ctx context.Context, executionID, eventType string, payload map[string]any) {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	err := s.store.AppendEvent(ctx, &store.Event{
		ExecutionID: executionID,
		Type:        eventType,
		Payload:     raw,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("event not recorded",
			"execution_id", executionID, "event_type", eventType, "error", err)
	}
}
