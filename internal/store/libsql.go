package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/relayworks/relay/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. event log).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Workflow definitions ---

func (s *LibSQLStore) CreateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, description, definition, trigger_type, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.Name, nullStr(def.Description), string(raw), string(def.Trigger.Type),
		boolInt(def.Enabled), timeOrNow(def.CreatedAt), timeOrNow(def.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, id string) (*schema.WorkflowDefinition, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT definition FROM workflows WHERE id = ?`, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("workflow", id)
	}
	if err != nil {
		return nil, err
	}
	def := &schema.WorkflowDefinition{}
	if err := json.Unmarshal([]byte(raw), def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return def, nil
}

func (s *LibSQLStore) UpdateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) error {
	def.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET name = ?, description = ?, definition = ?, trigger_type = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		def.Name, nullStr(def.Description), string(raw), string(def.Trigger.Type),
		boolInt(def.Enabled), def.UpdatedAt, def.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", def.ID)
}

func (s *LibSQLStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*schema.WorkflowDefinition, error) {
	query := `SELECT definition FROM workflows WHERE 1=1`
	var args []any
	if filter.Enabled != nil {
		query += ` AND enabled = ?`
		args = append(args, boolInt(*filter.Enabled))
	}
	if filter.TriggerType != "" {
		query += ` AND trigger_type = ?`
		args = append(args, string(filter.TriggerType))
	}
	query += ` ORDER BY created_at`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*schema.WorkflowDefinition
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		def := &schema.WorkflowDefinition{}
		if err := json.Unmarshal([]byte(raw), def); err != nil {
			return nil, fmt.Errorf("unmarshal definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *LibSQLStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

// --- Executions ---

const executionColumns = `id, workflow_id, status, trigger_payload, context, result, error,
	approval_id, retry_count, max_retries, next_retry_at, created_at, started_at, completed_at, updated_at`

func (s *LibSQLStore) CreateExecution(ctx context.Context, exec *Execution) error {
	payload, err := marshalMapOrDefault(exec.TriggerPayload)
	if err != nil {
		return fmt.Errorf("marshal trigger_payload: %w", err)
	}
	execCtx, err := marshalMapOrDefault(exec.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	if exec.Status == "" {
		exec.Status = schema.ExecutionStatusPending
	}
	exec.CreatedAt = timeOrNow(exec.CreatedAt)
	exec.UpdatedAt = timeOrNow(exec.UpdatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (`+executionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.WorkflowID, string(exec.Status), string(payload), string(execCtx),
		nullRaw(exec.Result), nullStr(exec.Error), nullStr(exec.ApprovalID),
		exec.RetryCount, exec.MaxRetries, nullTime(exec.NextRetryAt),
		exec.CreatedAt, nullTime(exec.StartedAt), nullTime(exec.CompletedAt), exec.UpdatedAt,
	)
	return err
}

func (s *LibSQLStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	exec, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("execution", id)
	}
	return exec, err
}

func (s *LibSQLStore) UpdateExecution(ctx context.Context, id string, update ExecutionUpdate) error {
	sets, args, err := executionSets(update)
	if err != nil {
		return err
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "execution", id)
}

func (s *LibSQLStore) CompareAndSwapExecutionStatus(ctx context.Context, id string, from, to schema.ExecutionStatus, update ExecutionUpdate) (bool, error) {
	update.Status = &to
	sets, args, err := executionSets(update)
	if err != nil {
		return false, err
	}
	args = append(args, id, string(from))
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *LibSQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE 1=1`
	var args []any
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.WorkflowID != "" {
		query += ` AND workflow_id = ?`
		args = append(args, filter.WorkflowID)
	}
	if filter.UpdatedBefore != nil {
		query += ` AND updated_at < ?`
		args = append(args, *filter.UpdatedBefore)
	}
	if filter.StartedBefore != nil {
		query += ` AND started_at IS NOT NULL AND started_at < ?`
		args = append(args, *filter.StartedBefore)
	}
	if filter.RetryDue != nil {
		query += ` AND (next_retry_at IS NULL OR next_retry_at <= ?)`
		args = append(args, *filter.RetryDue)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		exec, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

func (s *LibSQLStore) DeleteExecutionsBefore(ctx context.Context, cutoff time.Time, statuses []schema.ExecutionStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(statuses))
	args := []any{cutoff}
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM executions WHERE created_at < ? AND status IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// executionSets builds the SET clause for an execution update. updated_at
// is always touched so staleness sweeps see real activity.
func executionSets(update ExecutionUpdate) ([]string, []any, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.Context != nil {
		raw, err := json.Marshal(update.Context)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal context: %w", err)
		}
		sets = append(sets, "context = ?")
		args = append(args, string(raw))
	}
	if update.Result != nil {
		sets = append(sets, "result = ?")
		args = append(args, string(update.Result))
	}
	if update.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, nullStr(*update.Error))
	}
	if update.ApprovalID != nil {
		sets = append(sets, "approval_id = ?")
		args = append(args, nullStr(*update.ApprovalID))
	}
	if update.RetryCount != nil {
		sets = append(sets, "retry_count = ?")
		args = append(args, *update.RetryCount)
	}
	if update.NextRetryAt != nil {
		sets = append(sets, "next_retry_at = ?")
		args = append(args, *update.NextRetryAt)
	}
	if update.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, *update.StartedAt)
	}
	if update.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, *update.CompletedAt)
	}
	return sets, args, nil
}

func scanExecution(scan func(dest ...any) error) (*Execution, error) {
	exec := &Execution{}
	var status string
	var payload, execCtx, result, errMsg, approvalID sql.NullString
	var nextRetry, started, completed sql.NullTime
	err := scan(
		&exec.ID, &exec.WorkflowID, &status, &payload, &execCtx, &result, &errMsg,
		&approvalID, &exec.RetryCount, &exec.MaxRetries, &nextRetry,
		&exec.CreatedAt, &started, &completed, &exec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	exec.Status = schema.ExecutionStatus(status)
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &exec.TriggerPayload); err != nil {
			return nil, fmt.Errorf("unmarshal trigger_payload: %w", err)
		}
	}
	if execCtx.Valid && execCtx.String != "" {
		if err := json.Unmarshal([]byte(execCtx.String), &exec.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	exec.Result = jsonOrNil(result)
	if errMsg.Valid {
		exec.Error = errMsg.String
	}
	if approvalID.Valid {
		exec.ApprovalID = approvalID.String
	}
	if nextRetry.Valid {
		exec.NextRetryAt = &nextRetry.Time
	}
	if started.Valid {
		exec.StartedAt = &started.Time
	}
	if completed.Valid {
		exec.CompletedAt = &completed.Time
	}
	return exec, nil
}

// --- Step records ---

func (s *LibSQLStore) UpsertStepRecord(ctx context.Context, rec *StepRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_records (execution_id, step_id, status, output, error, started_at, completed_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(execution_id, step_id) DO UPDATE SET
			status=excluded.status, output=excluded.output, error=excluded.error,
			started_at=excluded.started_at, completed_at=excluded.completed_at, duration_ms=excluded.duration_ms`,
		rec.ExecutionID, rec.StepID, string(rec.Status), nullRaw(rec.Output), nullStr(rec.Error),
		nullTime(rec.StartedAt), nullTime(rec.CompletedAt), rec.DurationMs,
	)
	return err
}

func (s *LibSQLStore) ListStepRecords(ctx context.Context, executionID string) ([]*StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT execution_id, step_id, status, output, error, started_at, completed_at, duration_ms
		 FROM step_records WHERE execution_id = ? ORDER BY started_at`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*StepRecord
	for rows.Next() {
		rec := &StepRecord{}
		var status string
		var output, errMsg sql.NullString
		var started, completed sql.NullTime
		if err := rows.Scan(&rec.ExecutionID, &rec.StepID, &status, &output, &errMsg,
			&started, &completed, &rec.DurationMs); err != nil {
			return nil, err
		}
		rec.Status = schema.StepStatus(status)
		rec.Output = jsonOrNil(output)
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		if started.Valid {
			rec.StartedAt = &started.Time
		}
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- Approvals ---

const approvalColumns = `id, action_id, execution_id, requester_id, approver_id, description,
	priority, payload, confidence_score, reasoning, status, response_reason, created_at, responded_at`

func (s *LibSQLStore) CreateApproval(ctx context.Context, req *schema.ApprovalRequest) error {
	payload, err := marshalMapOrDefault(req.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if req.Status == "" {
		req.Status = schema.ApprovalPending
	}
	req.CreatedAt = timeOrNow(req.CreatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approvals (`+approvalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ActionID, nullStr(req.ExecutionID), req.RequesterID, req.ApproverID,
		nullStr(req.Description), string(req.Priority), string(payload), req.ConfidenceScore,
		nullStr(req.Reasoning), string(req.Status), nullStr(req.ResponseReason),
		req.CreatedAt, nullTime(req.RespondedAt),
	)
	return err
}

func (s *LibSQLStore) GetApproval(ctx context.Context, id string) (*schema.ApprovalRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE id = ?`, id)
	req, err := scanApproval(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("approval", id)
	}
	return req, err
}

func (s *LibSQLStore) ListApprovals(ctx context.Context, filter ApprovalFilter) ([]*schema.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE 1=1`
	var args []any
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.ApproverID != "" {
		query += ` AND approver_id = ?`
		args = append(args, filter.ApproverID)
	}
	if filter.RequesterID != "" {
		query += ` AND requester_id = ?`
		args = append(args, filter.RequesterID)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*schema.ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows.Scan)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (s *LibSQLStore) ResolveApproval(ctx context.Context, id, approverID string, status schema.ApprovalStatus, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE approvals SET status = ?, response_reason = ?, responded_at = ?
		 WHERE id = ? AND status = ? AND approver_id = ?`,
		string(status), nullStr(reason), time.Now().UTC(),
		id, string(schema.ApprovalPending), approverID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanApproval(scan func(dest ...any) error) (*schema.ApprovalRequest, error) {
	req := &schema.ApprovalRequest{}
	var priority, status string
	var executionID, description, payload, reasoning, responseReason sql.NullString
	var respondedAt sql.NullTime
	err := scan(
		&req.ID, &req.ActionID, &executionID, &req.RequesterID, &req.ApproverID, &description,
		&priority, &payload, &req.ConfidenceScore, &reasoning, &status, &responseReason,
		&req.CreatedAt, &respondedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Priority = schema.Priority(priority)
	req.Status = schema.ApprovalStatus(status)
	if executionID.Valid {
		req.ExecutionID = executionID.String
	}
	if description.Valid {
		req.Description = description.String
	}
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &req.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if reasoning.Valid {
		req.Reasoning = reasoning.String
	}
	if responseReason.Valid {
		req.ResponseReason = responseReason.String
	}
	if respondedAt.Valid {
		req.RespondedAt = &respondedAt.Time
	}
	return req, nil
}

// --- Scheduled triggers ---

const scheduledTriggerColumns = `id, workflow_id, cron_expression, payload, enabled,
	last_run_at, next_run_at, last_run_status, created_at`

func (s *LibSQLStore) CreateScheduledTrigger(ctx context.Context, trig *ScheduledTrigger) error {
	trig.CreatedAt = timeOrNow(trig.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_triggers (`+scheduledTriggerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trig.ID, trig.WorkflowID, trig.CronExpression, nullRaw(trig.Payload), boolInt(trig.Enabled),
		nullTime(trig.LastRunAt), nullTime(trig.NextRunAt), nullStr(trig.LastRunStatus), trig.CreatedAt,
	)
	return err
}

func (s *LibSQLStore) GetScheduledTrigger(ctx context.Context, id string) (*ScheduledTrigger, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduledTriggerColumns+` FROM scheduled_triggers WHERE id = ?`, id)
	trig, err := scanScheduledTrigger(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduled trigger", id)
	}
	return trig, err
}

func (s *LibSQLStore) UpdateScheduledTrigger(ctx context.Context, id string, update ScheduledTriggerUpdate) error {
	var sets []string
	var args []any
	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolInt(*update.Enabled))
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	if update.LastRunStatus != "" {
		sets = append(sets, "last_run_status = ?")
		args = append(args, update.LastRunStatus)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_triggers SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled trigger", id)
}

func (s *LibSQLStore) ListScheduledTriggers(ctx context.Context, filter ScheduledTriggerFilter) ([]*ScheduledTrigger, error) {
	query := `SELECT ` + scheduledTriggerColumns + ` FROM scheduled_triggers WHERE 1=1`
	var args []any
	if filter.Enabled != nil {
		query += ` AND enabled = ?`
		args = append(args, boolInt(*filter.Enabled))
	}
	if filter.WorkflowID != "" {
		query += ` AND workflow_id = ?`
		args = append(args, filter.WorkflowID)
	}
	query += ` ORDER BY created_at`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trigs []*ScheduledTrigger
	for rows.Next() {
		trig, err := scanScheduledTrigger(rows.Scan)
		if err != nil {
			return nil, err
		}
		trigs = append(trigs, trig)
	}
	return trigs, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledTrigger(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_triggers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled trigger", id)
}

func scanScheduledTrigger(scan func(dest ...any) error) (*ScheduledTrigger, error) {
	trig := &ScheduledTrigger{}
	var enabled int
	var payload, lastStatus sql.NullString
	var lastRun, nextRun sql.NullTime
	err := scan(
		&trig.ID, &trig.WorkflowID, &trig.CronExpression, &payload, &enabled,
		&lastRun, &nextRun, &lastStatus, &trig.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	trig.Enabled = enabled != 0
	trig.Payload = jsonOrNil(payload)
	if lastRun.Valid {
		trig.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		trig.NextRunAt = &nextRun.Time
	}
	if lastStatus.Valid {
		trig.LastRunStatus = lastStatus.String
	}
	return trig, nil
}

// --- Event log ---

func (s *LibSQLStore) AppendEvent(ctx context.Context, event *Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Next sequence number for this execution
	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE execution_id = ?`, event.ExecutionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	ts := timeOrNow(event.Timestamp)
	event.Timestamp = ts

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (execution_id, step_id, event_type, payload, actor_id, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ExecutionID, nullStr(event.StepID), event.Type, nullRaw(event.Payload), nullStr(event.ActorID), ts, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, executionID string, since int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, execution_id, step_id, event_type, payload, actor_id, timestamp, sequence
		 FROM events WHERE execution_id = ? AND sequence > ? ORDER BY sequence ASC`,
		executionID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *LibSQLStore) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error) {
	where := []string{"event_type = ?"}
	args := []any{eventType}

	if filter.ExecutionID != "" {
		where = append(where, "execution_id = ?")
		args = append(args, filter.ExecutionID)
	}
	if filter.StepID != "" {
		where = append(where, "step_id = ?")
		args = append(args, filter.StepID)
	}
	if filter.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, execution_id, step_id, event_type, payload, actor_id, timestamp, sequence FROM events`
	query += " WHERE " + strings.Join(where, " AND ")
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e := &Event{}
		var stepID, payload, actorID sql.NullString
		if err := rows.Scan(&e.ID, &e.ExecutionID, &stepID, &e.Type, &payload, &actorID,
			&e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		if stepID.Valid {
			e.StepID = stepID.String
		}
		e.Payload = jsonOrNil(payload)
		if actorID.Valid {
			e.ActorID = actorID.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.RelayError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func marshalMapOrDefault(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(m)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
