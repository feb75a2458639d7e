package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// AllocationRunRepository persists allocation run history.
type AllocationRunRepository struct {
	db *sqlx.DB
}

// NewAllocationRunRepository constructs an AllocationRunRepository.
func NewAllocationRunRepository(db *sqlx.DB) *AllocationRunRepository {
	return &AllocationRunRepository{db: db}
}

// Create inserts a run.
func (r *AllocationRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.AllocationRun) error {
	const query = `
INSERT INTO allocation_runs (id, status, trigger, assigned, unassigned, error, created_at, finished_at)
VALUES (:id, :status, :trigger, :assigned, :unassigned, :error, :created_at, :finished_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, run); err != nil {
		return fmt.Errorf("insert allocation run: %w", err)
	}
	return nil
}

// Update stores status, counts and completion details.
func (r *AllocationRunRepository) Update(ctx context.Context, exec sqlx.ExtContext, run *models.AllocationRun) error {
	const query = `
UPDATE allocation_runs
SET status = :status, assigned = :assigned, unassigned = :unassigned, error = :error, finished_at = :finished_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, run); err != nil {
		return fmt.Errorf("update allocation run: %w", err)
	}
	return nil
}

// FindByID returns a run. sql.ErrNoRows is returned unwrapped.
func (r *AllocationRunRepository) FindByID(ctx context.Context, id string) (*models.AllocationRun, error) {
	const query = `SELECT id, status, trigger, assigned, unassigned, error, created_at, finished_at FROM allocation_runs WHERE id = $1`
	var run models.AllocationRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs newest first with the total count.
func (r *AllocationRunRepository) List(ctx context.Context, limit, offset int) ([]models.AllocationRun, int, error) {
	const query = `SELECT id, status, trigger, assigned, unassigned, error, created_at, finished_at
FROM allocation_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	var runs []models.AllocationRun
	if err := r.db.SelectContext(ctx, &runs, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list allocation runs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM allocation_runs`); err != nil {
		return nil, 0, fmt.Errorf("count allocation runs: %w", err)
	}
	return runs, total, nil
}
