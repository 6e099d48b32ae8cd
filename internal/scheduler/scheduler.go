// Package scheduler polls the store for cron-driven triggers and starts
// workflow executions when they come due.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relayworks/relay/internal/store"
)

// TriggerRunner starts one execution of a workflow. Satisfied by the
// orchestrator (avoids import cycle).
type TriggerRunner interface {
	StartScheduled(ctx context.Context, workflowID string, payload map[string]any) (string, error)
}

// DefaultPollInterval is how often due triggers are checked.
const DefaultPollInterval = 60 * time.Second

// Scheduler polls the store for due scheduled triggers and fires them.
type Scheduler struct {
	store    store.Store
	runner   TriggerRunner
	parser   cron.Parser
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // trigger IDs currently firing (dedup)
}

// NewScheduler creates a new Scheduler. A non-positive interval takes
// DefaultPollInterval.
func NewScheduler(s store.Store, runner TriggerRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    s,
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		inflight: make(map[string]struct{}),
	}
}

// Start launches the background polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick checks all enabled triggers and fires those that are due.
func (s *Scheduler) tick(ctx context.Context) {
	enabled := true
	triggers, err := s.store.ListScheduledTriggers(ctx, store.ScheduledTriggerFilter{Enabled: &enabled})
	if err != nil {
		s.logger.Error("failed to list scheduled triggers", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, trig := range triggers {
		if trig.NextRunAt == nil || !trig.NextRunAt.After(now) {
			if !s.tryAcquire(trig.ID) {
				continue // already firing (dedup)
			}
			if err := s.fire(ctx, trig, now); err != nil {
				s.logger.Error("failed to fire scheduled trigger",
					"trigger_id", trig.ID, "error", err)
			}
			s.release(trig.ID)
		}
	}
}

// fire starts one execution for the trigger and updates its timestamps.
func (s *Scheduler) fire(ctx context.Context, trig *store.ScheduledTrigger, now time.Time) error {
	s.logger.Info("firing scheduled trigger",
		"trigger_id", trig.ID, "workflow_id", trig.WorkflowID)

	var payload map[string]any
	if len(trig.Payload) > 0 {
		if err := json.Unmarshal(trig.Payload, &payload); err != nil {
			return s.updateTriggerStatus(ctx, trig, now, "error")
		}
	}

	executionID, err := s.runner.StartScheduled(ctx, trig.WorkflowID, payload)
	status := "success"
	if err != nil {
		status = "error"
		s.logger.Error("scheduled trigger execution failed",
			"trigger_id", trig.ID, "error", err)
	} else {
		s.logger.Info("scheduled execution started",
			"trigger_id", trig.ID, "execution_id", executionID)
	}

	return s.updateTriggerStatus(ctx, trig, now, status)
}

func (s *Scheduler) updateTriggerStatus(ctx context.Context, trig *store.ScheduledTrigger, now time.Time, status string) error {
	nextRun, err := s.CalculateNextRun(trig.CronExpression, now)
	if err != nil {
		return fmt.Errorf("calculate next run for trigger %q: %w", trig.ID, err)
	}

	return s.store.UpdateScheduledTrigger(ctx, trig.ID, store.ScheduledTriggerUpdate{
		LastRunAt:     &now,
		NextRunAt:     &nextRun,
		LastRunStatus: status,
	})
}

// tryAcquire returns true and marks the trigger as in-flight if it is not
// already firing.
func (s *Scheduler) tryAcquire(triggerID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[triggerID]; ok {
		return false
	}
	s.inflight[triggerID] = struct{}{}
	return true
}

// release removes the trigger from the in-flight set.
func (s *Scheduler) release(triggerID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, triggerID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// NextRun computes the next run time for a standard 5-field cron
// expression without a Scheduler instance.
func NextRun(cronExpr string, from time.Time) (time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}

// RecoverMissed fires triggers whose next_run_at passed while the process
// was down, once each, and recomputes their schedule.
func (s *Scheduler) RecoverMissed(ctx context.Context) error {
	enabled := true
	triggers, err := s.store.ListScheduledTriggers(ctx, store.ScheduledTriggerFilter{Enabled: &enabled})
	if err != nil {
		return fmt.Errorf("list missed triggers: %w", err)
	}

	now := time.Now().UTC()
	recovered := 0
	for _, trig := range triggers {
		if trig.NextRunAt != nil && trig.NextRunAt.Before(now) {
			if !s.tryAcquire(trig.ID) {
				continue
			}
			if err := s.fire(ctx, trig, now); err != nil {
				s.logger.Error("failed to recover missed trigger",
					"trigger_id", trig.ID, "error", err)
				s.release(trig.ID)
				continue
			}
			s.release(trig.ID)
			recovered++
		}
	}

	if recovered > 0 {
		s.logger.Info("recovered missed triggers", "count", recovered)
	}
	return nil
}
