// Package postgres is the production store.Store implementation, backed by
// a PostgreSQL database through pgx/v5 and versioned with goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/clipforge/editpipeline/internal/ids"
	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/store"
)

// Store is a pgx/v5 connection-pool-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against dsn. Callers should call Migrate
// once at startup before serving traffic.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies every pending goose migration embedded in this package.
// It opens a short-lived database/sql connection over the same DSN since
// goose drives migrations through database/sql, not pgx's native pool.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("postgres: migrate: open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: migrate: dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("postgres: migrate: up: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var _ = stdlib.GetDefaultDriver // keep the pgx stdlib driver registered for database/sql + goose

func translateNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func (s *Store) CreateJob(ctx context.Context, j job.Job) (job.Job, bool, error) {
	if j.IdempotencyKey != "" {
		existing, err := s.FindJobByIdempotencyKey(ctx, j.IdempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return job.Job{}, false, err
		}
	}

	if j.ID == "" {
		j.ID = ids.New()
	}
	metadataJSON, err := marshalJSON(j.Metadata)
	if err != nil {
		return job.Job{}, false, fmt.Errorf("postgres: marshal metadata: %w", err)
	}

	const q = `
		INSERT INTO jobs (id, idempotency_key, status, instruction, input_uri, output_uri,
			capability, model_bundle, forced_capability, risk_level, metadata,
			current_iteration, max_iterations)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id, idempotency_key, status, instruction, input_uri, output_uri,
			capability, model_bundle, forced_capability, risk_level, metadata,
			latest_qa_score, current_iteration, max_iterations, created_at, updated_at`

	row := s.pool.QueryRow(ctx, q, j.ID, j.IdempotencyKey, j.Status, j.Instruction, j.InputURI,
		j.OutputURI, j.Capability, j.ModelBundle, j.ForcedCapability, j.RiskLevel, metadataJSON,
		j.CurrentIteration, j.MaxIterations)

	created, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the idempotency-key insert race to a concurrent request.
		existing, findErr := s.FindJobByIdempotencyKey(ctx, j.IdempotencyKey)
		if findErr != nil {
			return job.Job{}, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return job.Job{}, false, fmt.Errorf("postgres: create job: %w", err)
	}
	return created, true, nil
}

func scanJob(row pgx.Row) (job.Job, error) {
	var j job.Job
	var metadataJSON []byte
	if err := row.Scan(&j.ID, &j.IdempotencyKey, &j.Status, &j.Instruction, &j.InputURI, &j.OutputURI,
		&j.Capability, &j.ModelBundle, &j.ForcedCapability, &j.RiskLevel, &metadataJSON,
		&j.LatestQAScore, &j.CurrentIteration, &j.MaxIterations, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return job.Job{}, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &j.Metadata); err != nil {
			return job.Job{}, err
		}
	}
	return j, nil
}

const jobColumns = `id, idempotency_key, status, instruction, input_uri, output_uri,
	capability, model_bundle, forced_capability, risk_level, metadata,
	latest_qa_score, current_iteration, max_iterations, created_at, updated_at`

func (s *Store) GetJob(ctx context.Context, id string) (job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	return j, translateNoRows(err)
}

func (s *Store) FindJobByIdempotencyKey(ctx context.Context, key string) (job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE idempotency_key = $1`, key)
	j, err := scanJob(row)
	return j, translateNoRows(err)
}

func (s *Store) ListJobs(ctx context.Context, limit int) ([]job.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	defer rows.Close()

	var out []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) ApplyPatch(ctx context.Context, jobID string, patch store.JobPatch) (job.Job, error) {
	const q = `
		UPDATE jobs SET
			status            = COALESCE($2, status),
			output_uri        = COALESCE($3, output_uri),
			capability        = COALESCE($4, capability),
			model_bundle      = COALESCE($5, model_bundle),
			risk_level        = COALESCE($6, risk_level),
			latest_qa_score   = CASE WHEN $7 THEN NULL ELSE COALESCE($8, latest_qa_score) END,
			current_iteration = COALESCE($9, current_iteration),
			updated_at        = now()
		WHERE id = $1
		RETURNING ` + jobColumns

	row := s.pool.QueryRow(ctx, q, jobID, patch.Status, patch.OutputURI, patch.Capability,
		patch.ModelBundle, patch.RiskLevel, patch.ClearQAScore, patch.LatestQAScore, patch.CurrentIteration)
	j, err := scanJob(row)
	return j, translateNoRows(err)
}

func (s *Store) SetJobStatus(ctx context.Context, jobID string, to job.Status, enforce bool) (job.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return job.Job{}, fmt.Errorf("postgres: set job status: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var from job.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&from); err != nil {
		return job.Job{}, translateNoRows(err)
	}
	if from == to {
		j, err := s.GetJob(ctx, jobID)
		return j, err
	}
	if enforce && !job.CanTransition(from, to) {
		return job.Job{}, store.ErrInvalidTransition(from, to)
	}

	row := tx.QueryRow(ctx, `UPDATE jobs SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+jobColumns, jobID, to)
	updated, err := scanJob(row)
	if err != nil {
		return job.Job{}, fmt.Errorf("postgres: set job status: update: %w", err)
	}

	payload, _ := marshalJSON(map[string]any{"from": string(from), "to": string(to)})
	if _, err := tx.Exec(ctx, `INSERT INTO job_events (id, job_id, stage, level, message, payload)
		VALUES ($1, $2, 'status_transition', 'info', $3, $4)`,
		ids.New(), jobID, fmt.Sprintf("Status changed from %s to %s", from, to), payload); err != nil {
		return job.Job{}, fmt.Errorf("postgres: set job status: log event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return job.Job{}, fmt.Errorf("postgres: set job status: commit: %w", err)
	}
	return updated, nil
}

func (s *Store) ResetForRerun(ctx context.Context, jobID string) (job.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return job.Job{}, fmt.Errorf("postgres: reset for rerun: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var from job.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&from); err != nil {
		return job.Job{}, translateNoRows(err)
	}
	if !job.CanTransition(from, job.StatusQueued) {
		return job.Job{}, store.ErrInvalidTransition(from, job.StatusQueued)
	}

	row := tx.QueryRow(ctx, `
		UPDATE jobs SET status = $2, current_iteration = 0, output_uri = '', latest_qa_score = NULL, updated_at = now()
		WHERE id = $1 RETURNING `+jobColumns, jobID, job.StatusQueued)
	updated, err := scanJob(row)
	if err != nil {
		return job.Job{}, fmt.Errorf("postgres: reset for rerun: update: %w", err)
	}

	payload, _ := marshalJSON(map[string]any{"from": string(from), "to": string(job.StatusQueued), "rerun": true})
	if _, err := tx.Exec(ctx, `INSERT INTO job_events (id, job_id, stage, level, message, payload)
		VALUES ($1, $2, 'status_transition', 'info', $3, $4)`,
		ids.New(), jobID, fmt.Sprintf("Status changed from %s to %s", from, job.StatusQueued), payload); err != nil {
		return job.Job{}, fmt.Errorf("postgres: reset for rerun: log event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return job.Job{}, fmt.Errorf("postgres: reset for rerun: commit: %w", err)
	}
	return updated, nil
}

func (s *Store) CreateIteration(ctx context.Context, it job.Iteration) (job.Iteration, error) {
	planJSON, err := marshalJSON(it.EditPlan)
	if err != nil {
		return job.Iteration{}, err
	}
	logJSON, err := marshalJSON(it.ExecutionLog)
	if err != nil {
		return job.Iteration{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO job_iterations (job_id, iteration, edit_plan, execution_log, output_uri)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`, it.JobID, it.Iteration, planJSON, logJSON, it.OutputURI)
	if err := row.Scan(&it.CreatedAt); err != nil {
		return job.Iteration{}, fmt.Errorf("postgres: create iteration: %w", err)
	}
	return it, nil
}

func (s *Store) ListIterations(ctx context.Context, jobID string) ([]job.Iteration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, iteration, edit_plan, execution_log, output_uri, created_at
		FROM job_iterations WHERE job_id = $1 ORDER BY iteration ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list iterations: %w", err)
	}
	defer rows.Close()

	var out []job.Iteration
	for rows.Next() {
		var it job.Iteration
		var planJSON, logJSON []byte
		if err := rows.Scan(&it.JobID, &it.Iteration, &planJSON, &logJSON, &it.OutputURI, &it.CreatedAt); err != nil {
			return nil, err
		}
		if len(planJSON) > 0 {
			_ = json.Unmarshal(planJSON, &it.EditPlan)
		}
		if len(logJSON) > 0 {
			_ = json.Unmarshal(logJSON, &it.ExecutionLog)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) CreateQAReport(ctx context.Context, report job.QAReport) (job.QAReport, error) {
	if report.ID == "" {
		report.ID = ids.New()
	}
	dimJSON, err := marshalJSON(report.DimensionScores)
	if err != nil {
		return job.QAReport{}, err
	}
	issuesJSON, err := marshalJSON(report.Issues)
	if err != nil {
		return job.QAReport{}, err
	}
	flagsJSON, err := marshalJSON(report.HardFailFlags)
	if err != nil {
		return job.QAReport{}, err
	}
	recsJSON, err := marshalJSON(report.Recommendations)
	if err != nil {
		return job.QAReport{}, err
	}
	rawJSON, err := marshalJSON(report.RawReport)
	if err != nil {
		return job.QAReport{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return job.QAReport{}, fmt.Errorf("postgres: create qa report: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO qa_reports (id, job_id, iteration, overall_score, dimension_scores, issues,
			hard_fail_flags, recommendations, raw_report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		report.ID, report.JobID, report.Iteration, report.OverallScore, dimJSON, issuesJSON,
		flagsJSON, recsJSON, rawJSON)
	if err := row.Scan(&report.CreatedAt); err != nil {
		return job.QAReport{}, fmt.Errorf("postgres: create qa report: insert: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE jobs SET latest_qa_score = $2, updated_at = now() WHERE id = $1`,
		report.JobID, report.OverallScore); err != nil {
		return job.QAReport{}, fmt.Errorf("postgres: create qa report: update job: %w", err)
	}

	payload, _ := marshalJSON(map[string]any{"overall_score": report.OverallScore, "hard_fail_flags": report.HardFailFlags})
	if _, err := tx.Exec(ctx, `INSERT INTO job_events (id, job_id, stage, level, message, payload)
		VALUES ($1, $2, 'qa_completed', 'info', 'QA evaluation completed', $3)`,
		ids.New(), report.JobID, payload); err != nil {
		return job.QAReport{}, fmt.Errorf("postgres: create qa report: log event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return job.QAReport{}, fmt.Errorf("postgres: create qa report: commit: %w", err)
	}
	return report, nil
}

func (s *Store) LatestQAReport(ctx context.Context, jobID string) (job.QAReport, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, iteration, overall_score, dimension_scores, issues, hard_fail_flags,
			recommendations, raw_report, created_at
		FROM qa_reports WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1`, jobID)

	var report job.QAReport
	var dimJSON, issuesJSON, flagsJSON, recsJSON, rawJSON []byte
	err := row.Scan(&report.ID, &report.JobID, &report.Iteration, &report.OverallScore, &dimJSON,
		&issuesJSON, &flagsJSON, &recsJSON, &rawJSON, &report.CreatedAt)
	if err != nil {
		return job.QAReport{}, translateNoRows(err)
	}
	_ = json.Unmarshal(dimJSON, &report.DimensionScores)
	_ = json.Unmarshal(issuesJSON, &report.Issues)
	_ = json.Unmarshal(flagsJSON, &report.HardFailFlags)
	_ = json.Unmarshal(recsJSON, &report.Recommendations)
	_ = json.Unmarshal(rawJSON, &report.RawReport)
	return report, nil
}

func (s *Store) ListJobEvents(ctx context.Context, jobID string, limit int) ([]job.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, stage, level, message, payload, created_at
		FROM job_events WHERE job_id = $1 ORDER BY created_at ASC, seq ASC LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list job events: %w", err)
	}
	defer rows.Close()

	var out []job.Event
	for rows.Next() {
		var e job.Event
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.JobID, &e.Stage, &e.Level, &e.Message, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(payloadJSON) > 0 {
			_ = json.Unmarshal(payloadJSON, &e.Payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) LogJobEvent(ctx context.Context, evt job.Event) (job.Event, error) {
	if evt.ID == "" {
		evt.ID = ids.New()
	}
	payloadJSON, err := marshalJSON(evt.Payload)
	if err != nil {
		return job.Event{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO job_events (id, job_id, stage, level, message, payload)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		evt.ID, evt.JobID, evt.Stage, evt.Level, evt.Message, payloadJSON)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return job.Event{}, fmt.Errorf("postgres: log job event: %w", err)
	}
	return evt, nil
}

func (s *Store) LogSafetyEvent(ctx context.Context, evt job.SafetyEvent) (job.SafetyEvent, error) {
	if evt.ID == "" {
		evt.ID = ids.New()
	}
	ruleIDsJSON, err := marshalJSON(evt.RuleIDs)
	if err != nil {
		return job.SafetyEvent{}, err
	}
	payloadJSON, err := marshalJSON(evt.Payload)
	if err != nil {
		return job.SafetyEvent{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return job.SafetyEvent{}, fmt.Errorf("postgres: log safety event: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO safety_events (id, job_id, blocked, rule_ids, reason, payload, risk_level, override_applied)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		evt.ID, evt.JobID, evt.Blocked, ruleIDsJSON, evt.Reason, payloadJSON, evt.RiskLevel, evt.OverrideApplied)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return job.SafetyEvent{}, fmt.Errorf("postgres: log safety event: insert: %w", err)
	}

	message := "Safety precheck passed"
	level := job.LevelInfo
	if evt.Blocked {
		message = "Safety precheck blocked request"
		level = job.LevelWarning
	}
	eventPayload, _ := marshalJSON(map[string]any{
		"blocked": evt.Blocked, "rule_ids": evt.RuleIDs, "reason": evt.Reason,
		"risk_level": evt.RiskLevel, "override_applied": evt.OverrideApplied,
	})
	if _, err := tx.Exec(ctx, `INSERT INTO job_events (id, job_id, stage, level, message, payload)
		VALUES ($1, $2, 'safety_precheck', $3, $4, $5)`,
		ids.New(), evt.JobID, level, message, eventPayload); err != nil {
		return job.SafetyEvent{}, fmt.Errorf("postgres: log safety event: log event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return job.SafetyEvent{}, fmt.Errorf("postgres: log safety event: commit: %w", err)
	}
	return evt, nil
}

func (s *Store) CreateReviewAction(ctx context.Context, action job.ReviewAction) (job.ReviewAction, error) {
	if action.ID == "" {
		action.ID = ids.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return job.ReviewAction{}, fmt.Errorf("postgres: create review action: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO review_actions (id, job_id, decision, reviewer, reason)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		action.ID, action.JobID, action.Decision, action.Reviewer, action.Reason)
	if err := row.Scan(&action.CreatedAt); err != nil {
		return job.ReviewAction{}, fmt.Errorf("postgres: create review action: insert: %w", err)
	}

	payload, _ := marshalJSON(map[string]any{"reviewer": action.Reviewer, "reason": action.Reason})
	if _, err := tx.Exec(ctx, `INSERT INTO job_events (id, job_id, stage, level, message, payload)
		VALUES ($1, $2, 'manual_review_decision', 'info', $3, $4)`,
		ids.New(), action.JobID, "Manual review decision: "+string(action.Decision), payload); err != nil {
		return job.ReviewAction{}, fmt.Errorf("postgres: create review action: log event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return job.ReviewAction{}, fmt.Errorf("postgres: create review action: commit: %w", err)
	}
	return action, nil
}

func (s *Store) CreateCaseRecord(ctx context.Context, record job.CaseRecord) (job.CaseRecord, error) {
	if record.ID == "" {
		record.ID = ids.New()
	}
	tagsJSON, err := marshalJSON(record.Tags)
	if err != nil {
		return job.CaseRecord{}, err
	}
	metricsJSON, err := marshalJSON(record.FinalMetrics)
	if err != nil {
		return job.CaseRecord{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return job.CaseRecord{}, fmt.Errorf("postgres: create case record: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO case_records (id, job_id, task_summary, tags, failure_reason, fix_strategy, final_metrics, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		record.ID, record.JobID, record.TaskSummary, tagsJSON, record.FailureReason, record.FixStrategy,
		metricsJSON, record.Embedding)
	if err := row.Scan(&record.CreatedAt); err != nil {
		return job.CaseRecord{}, fmt.Errorf("postgres: create case record: insert: %w", err)
	}

	payload, _ := marshalJSON(map[string]any{"case_id": record.ID, "tags": record.Tags})
	if _, err := tx.Exec(ctx, `INSERT INTO job_events (id, job_id, stage, level, message, payload)
		VALUES ($1, $2, 'case_archived', 'info', 'Case archived into knowledge base', $3)`,
		ids.New(), record.JobID, payload); err != nil {
		return job.CaseRecord{}, fmt.Errorf("postgres: create case record: log event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return job.CaseRecord{}, fmt.Errorf("postgres: create case record: commit: %w", err)
	}
	return record, nil
}

func scanCaseRecord(row pgx.Row) (job.CaseRecord, error) {
	var c job.CaseRecord
	var tagsJSON, metricsJSON []byte
	if err := row.Scan(&c.ID, &c.JobID, &c.TaskSummary, &tagsJSON, &c.FailureReason, &c.FixStrategy,
		&metricsJSON, &c.Embedding, &c.CreatedAt); err != nil {
		return job.CaseRecord{}, err
	}
	_ = json.Unmarshal(tagsJSON, &c.Tags)
	_ = json.Unmarshal(metricsJSON, &c.FinalMetrics)
	return c, nil
}

const caseColumns = `id, job_id, task_summary, tags, failure_reason, fix_strategy, final_metrics, embedding, created_at`

func (s *Store) GetCase(ctx context.Context, id string) (job.CaseRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM case_records WHERE id = $1`, id)
	c, err := scanCaseRecord(row)
	return c, translateNoRows(err)
}

func (s *Store) RecentCases(ctx context.Context, limit int) ([]job.CaseRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `SELECT `+caseColumns+` FROM case_records ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent cases: %w", err)
	}
	defer rows.Close()

	var out []job.CaseRecord
	for rows.Next() {
		c, err := scanCaseRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListModelBundles(ctx context.Context) ([]job.ModelBundle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, min_vram_gb, estimated_time_minutes, download_size_gb, quality_tier, enabled_modules
		FROM model_bundles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list model bundles: %w", err)
	}
	defer rows.Close()

	var out []job.ModelBundle
	for rows.Next() {
		var b job.ModelBundle
		var modulesJSON []byte
		if err := rows.Scan(&b.Name, &b.MinVRAMGB, &b.EstimatedTimeMinutes, &b.DownloadSizeGB, &b.QualityTier, &modulesJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(modulesJSON, &b.EnabledModules)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) SeedModelBundles(ctx context.Context, bundles []job.ModelBundle) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: seed model bundles: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range bundles {
		modulesJSON, err := marshalJSON(b.EnabledModules)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO model_bundles (name, min_vram_gb, estimated_time_minutes, download_size_gb, quality_tier, enabled_modules)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (name) DO UPDATE SET
				min_vram_gb = EXCLUDED.min_vram_gb,
				estimated_time_minutes = EXCLUDED.estimated_time_minutes,
				download_size_gb = EXCLUDED.download_size_gb,
				quality_tier = EXCLUDED.quality_tier,
				enabled_modules = EXCLUDED.enabled_modules`,
			b.Name, b.MinVRAMGB, b.EstimatedTimeMinutes, b.DownloadSizeGB, b.QualityTier, modulesJSON); err != nil {
			return fmt.Errorf("postgres: seed model bundles: upsert %s: %w", b.Name, err)
		}
	}
	return tx.Commit(ctx)
}
