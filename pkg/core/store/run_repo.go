package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pitchsheet/pkg/models"
)

// PostgresRunRepo stores runs in the runs and step_logs tables.
type PostgresRunRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRunRepo creates a repository on an initialized pool.
func NewPostgresRunRepo(pool *pgxpool.Pool) *PostgresRunRepo {
	return &PostgresRunRepo{pool: pool}
}

func (r *PostgresRunRepo) checkPool() error {
	if r.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	return nil
}

// CreateRun inserts a new run row.
func (r *PostgresRunRepo) CreateRun(ctx context.Context, run *models.Run) error {
	if err := r.checkPool(); err != nil {
		return err
	}

	configJSON, err := marshalNullable(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}
	warningsJSON, err := json.Marshal(nonNil(run.Warnings))
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `
		INSERT INTO runs (run_id, ticker, cik, company_name, period_type, num_periods,
			status, config_json, created_at, artifact_path, warnings_json)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, NULLIF($10, ''), $11)
	`
	_, err = r.pool.Exec(ctx, query,
		run.RunID, run.Ticker, run.CIK, run.CompanyName, string(run.PeriodType), run.NumPeriods,
		string(run.Status), configJSON, run.CreatedAt, run.ArtifactPath, warningsJSON)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRunStatus applies a status transition.
func (r *PostgresRunRepo) UpdateRunStatus(ctx context.Context, runID string, update RunUpdate) error {
	if err := r.checkPool(); err != nil {
		return err
	}

	var warningsJSON []byte
	if update.Warnings != nil {
		var err error
		if warningsJSON, err = json.Marshal(update.Warnings); err != nil {
			return fmt.Errorf("failed to marshal warnings: %w", err)
		}
	}

	var finishedAt *time.Time
	if update.Status.Terminal() {
		now := time.Now().UTC()
		finishedAt = &now
	}

	query := `
		UPDATE runs SET
			status        = COALESCE(NULLIF($2, ''), status),
			cik           = COALESCE(NULLIF($3, ''), cik),
			company_name  = COALESCE(NULLIF($4, ''), company_name),
			artifact_path = COALESCE(NULLIF($5, ''), artifact_path),
			warnings_json = COALESCE($6, warnings_json),
			finished_at   = COALESCE($7, finished_at)
		WHERE run_id = $1
	`
	tag, err := r.pool.Exec(ctx, query, runID, string(update.Status), update.CIK,
		update.CompanyName, update.ArtifactPath, warningsJSON, finishedAt)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// InsertStepLog appends a step log to a run.
func (r *PostgresRunRepo) InsertStepLog(ctx context.Context, runID string, step models.StepLog) error {
	if err := r.checkPool(); err != nil {
		return err
	}

	warningsJSON, err := json.Marshal(nonNil(step.Warnings))
	if err != nil {
		return fmt.Errorf("failed to marshal step warnings: %w", err)
	}
	errorsJSON, err := json.Marshal(nonNil(step.Errors))
	if err != nil {
		return fmt.Errorf("failed to marshal step errors: %w", err)
	}

	query := `
		INSERT INTO step_logs (run_id, step_name, status, started_at, finished_at, duration_ms,
			input_summary, output_summary, warnings_json, errors_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query, runID, step.StepName, step.Status, step.StartedAt,
		step.FinishedAt, step.DurationMS, step.InputSummary, step.OutputSummary, warningsJSON, errorsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert step log: %w", err)
	}
	return nil
}

// GetRun loads a run and its step logs in insertion order.
func (r *PostgresRunRepo) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	if err := r.checkPool(); err != nil {
		return nil, err
	}

	query := `
		SELECT run_id, ticker, cik, company_name, period_type, num_periods, status,
			config_json, created_at, finished_at, artifact_path, warnings_json
		FROM runs WHERE run_id = $1
	`
	var (
		run                            models.Run
		cik, companyName, artifactPath *string
		periodType, status             string
		configJSON, warningsJSON       []byte
	)
	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID, &run.Ticker, &cik, &companyName, &periodType, &run.NumPeriods, &status,
		&configJSON, &run.CreatedAt, &run.FinishedAt, &artifactPath, &warningsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	run.PeriodType = models.PeriodType(periodType)
	run.Status = models.RunStatus(status)
	run.CIK = deref(cik)
	run.CompanyName = deref(companyName)
	run.ArtifactPath = deref(artifactPath)

	if len(configJSON) > 0 {
		var cfg models.RunConfig
		if err := json.Unmarshal(configJSON, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run config: %w", err)
		}
		run.Config = &cfg
	}
	if run.Warnings, err = unmarshalStrings(warningsJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run warnings: %w", err)
	}

	if run.Steps, err = r.loadSteps(ctx, runID); err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *PostgresRunRepo) loadSteps(ctx context.Context, runID string) ([]models.StepLog, error) {
	query := `
		SELECT step_name, status, started_at, finished_at, duration_ms,
			input_summary, output_summary, warnings_json, errors_json
		FROM step_logs WHERE run_id = $1 ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step logs: %w", err)
	}
	defer rows.Close()

	steps := make([]models.StepLog, 0)
	for rows.Next() {
		var (
			step                        models.StepLog
			inputSummary, outputSummary *string
			warningsJSON, errorsJSON    []byte
		)
		if err := rows.Scan(&step.StepName, &step.Status, &step.StartedAt, &step.FinishedAt,
			&step.DurationMS, &inputSummary, &outputSummary, &warningsJSON, &errorsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan step log: %w", err)
		}
		step.InputSummary = deref(inputSummary)
		step.OutputSummary = deref(outputSummary)
		if step.Warnings, err = unmarshalStrings(warningsJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step warnings: %w", err)
		}
		if step.Errors, err = unmarshalStrings(errorsJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step errors: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step logs: %w", err)
	}
	return steps, nil
}

// ListHistory returns run summaries, most recent first.
func (r *PostgresRunRepo) ListHistory(ctx context.Context, limit int) ([]models.HistoryItem, error) {
	if err := r.checkPool(); err != nil {
		return nil, err
	}

	query := `
		SELECT run_id, ticker, period_type, num_periods, status, created_at, finished_at, company_name
		FROM runs ORDER BY created_at DESC LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	items := make([]models.HistoryItem, 0)
	for rows.Next() {
		var (
			item               models.HistoryItem
			periodType, status string
			companyName        *string
		)
		if err := rows.Scan(&item.RunID, &item.Ticker, &periodType, &item.NumPeriods, &status,
			&item.CreatedAt, &item.FinishedAt, &companyName); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		item.PeriodType = models.PeriodType(periodType)
		item.Status = models.RunStatus(status)
		item.CompanyName = deref(companyName)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return items, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func marshalNullable(v *models.RunConfig) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalStrings(raw []byte) ([]string, error) {
	out := make([]string, 0)
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make([]string, 0)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
