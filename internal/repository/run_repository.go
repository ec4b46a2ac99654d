package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
)

// RunRepository manages persistence for optimization runs.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs a RunRepository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, roster_id, status, config, best_fitness, generations, compliant_sections,
    total_sections, failed_eras, stop_reason, elapsed_ms, assignment, reports, error,
    created_at, started_at, finished_at`

// Create inserts a queued run, filling the generated id and timestamps.
func (r *RunRepository) Create(ctx context.Context, run *models.PartitionRun) error {
	run.ID = uuid.NewString()
	run.Status = models.RunStatusQueued
	run.CreatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO partition_runs (id, roster_id, status, config, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.RosterID, run.Status, run.Config, run.CreatedAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FindByID fetches a run by ID.
func (r *RunRepository) FindByID(ctx context.Context, id string) (*models.PartitionRun, error) {
	var run models.PartitionRun
	query := fmt.Sprintf(`SELECT %s FROM partition_runs WHERE id = $1`, runColumns)
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs matching the filter, newest first.
func (r *RunRepository) List(ctx context.Context, filter models.RunFilter) ([]models.PartitionRun, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.RosterID != "" {
		conditions = append(conditions, fmt.Sprintf("roster_id = $%d", len(args)+1))
		args = append(args, filter.RosterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM partition_runs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		runColumns, where, size, (page-1)*size)
	var runs []models.PartitionRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM partition_runs WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}
	return runs, total, nil
}

// MarkRunning flips a queued run to RUNNING and stamps its start time.
func (r *RunRepository) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE partition_runs SET status = $2, started_at = $3 WHERE id = $1 AND status = $4`,
		id, models.RunStatusRunning, startedAt, models.RunStatusQueued)
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s is not queued", id)
	}
	return nil
}

// RunOutcome carries the persisted result of a finished run.
type RunOutcome struct {
	BestFitness       float64
	Generations       int
	CompliantSections int
	TotalSections     int
	FailedEras        int
	StopReason        string
	Elapsed           time.Duration
	Assignment        types.JSONText
	Reports           types.JSONText
}

// Complete records a successful run.
func (r *RunRepository) Complete(ctx context.Context, id string, outcome RunOutcome, finishedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE partition_runs SET status = $2, best_fitness = $3, generations = $4,
            compliant_sections = $5, total_sections = $6, failed_eras = $7, stop_reason = $8,
            elapsed_ms = $9, assignment = $10, reports = $11, finished_at = $12
         WHERE id = $1`,
		id, models.RunStatusCompleted, outcome.BestFitness, outcome.Generations,
		outcome.CompliantSections, outcome.TotalSections, outcome.FailedEras, outcome.StopReason,
		outcome.Elapsed.Milliseconds(), outcome.Assignment, outcome.Reports, finishedAt); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// Fail records a failed run with its error message.
func (r *RunRepository) Fail(ctx context.Context, id string, message string, finishedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE partition_runs SET status = $2, error = $3, finished_at = $4 WHERE id = $1`,
		id, models.RunStatusFailed, message, finishedAt); err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}
