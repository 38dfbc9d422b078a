package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// RunRepository persists scheduling runs and their terminal reports.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs the repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a freshly started run.
func (r *RunRepository) Create(ctx context.Context, run *models.ScheduleRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if len(run.Config) == 0 {
		run.Config = types.JSONText(`{}`)
	}
	if len(run.Report) == 0 {
		run.Report = types.JSONText(`null`)
	}

	const query = `INSERT INTO schedule_runs (id, roster_id, status, objective, improvements, staff_count, slot_count, config, report, error, started_at, finished_at)
		VALUES (:id, :roster_id, :status, :objective, :improvements, :staff_count, :slot_count, :config, :report, :error, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateStatus moves a run between non-terminal states, such as the
// BUILDING to SEARCHING transition once the model is constructed.
func (r *RunRepository) UpdateStatus(ctx context.Context, id string, status models.RunStatus) error {
	const query = `UPDATE schedule_runs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// UpdateProgress records a new incumbent while the search is running.
func (r *RunRepository) UpdateProgress(ctx context.Context, id string, objective int64, improvements int) error {
	const query = `UPDATE schedule_runs SET objective = $2, improvements = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, objective, improvements); err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// Finish stores the terminal status, report, and error message.
func (r *RunRepository) Finish(ctx context.Context, run *models.ScheduleRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	if len(run.Report) == 0 {
		run.Report = types.JSONText(`null`)
	}

	const query = `UPDATE schedule_runs
		SET status = :status, objective = :objective, improvements = :improvements,
		    report = :report, error = :error, finished_at = :finished_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("run %q not found", run.ID))
	}
	return nil
}

// FindByID loads one run with its report payload.
func (r *RunRepository) FindByID(ctx context.Context, id string) (*models.ScheduleRun, error) {
	const query = `SELECT id, roster_id, status, objective, improvements, staff_count, slot_count, config, report, error, started_at, finished_at
		FROM schedule_runs WHERE id = $1`
	var run models.ScheduleRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("run %q not found", id))
		}
		return nil, fmt.Errorf("find run: %w", err)
	}
	return &run, nil
}

// List returns runs newest first, optionally filtered by roster and status.
func (r *RunRepository) List(ctx context.Context, rosterID string, status models.RunStatus, limit, offset int) ([]models.ScheduleRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const query = `SELECT id, roster_id, status, objective, improvements, staff_count, slot_count, config, report, error, started_at, finished_at
		FROM schedule_runs
		WHERE ($1 = '' OR roster_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4`
	var out []models.ScheduleRun
	if err := r.db.SelectContext(ctx, &out, query, rosterID, string(status), limit, offset); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}
