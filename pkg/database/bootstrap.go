package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Postgres error codes treated as transient during bootstrap.
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
)

// Step is a named, idempotent bootstrap action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// BootstrapConfig tunes step retries.
type BootstrapConfig struct {
	MaxAttempts  int
	SkipIfLocked bool
	BaseDelay    time.Duration
}

// Bootstrapper applies schema and repair steps, retrying the ones that hit lock contention.
type Bootstrapper struct {
	db     *sqlx.DB
	cfg    BootstrapConfig
	logger *zap.Logger
	sleep  func(time.Duration)
}

// NewBootstrapper constructs a Bootstrapper.
func NewBootstrapper(db *sqlx.DB, cfg BootstrapConfig, logger *zap.Logger) *Bootstrapper {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{db: db, cfg: cfg, logger: logger, sleep: time.Sleep}
}

// SchemaSteps returns the built-in DDL steps in execution order, split around
// the data repair steps supplied by the caller.
func (b *Bootstrapper) SchemaSteps() (before []Step, after []Step) {
	before = []Step{
		{Name: "create_schema", Run: b.execAll(schemaStatements)},
		{Name: "ensure_session_grid_columns", Run: b.execAll(gridColumnStatements)},
	}
	after = []Step{
		{Name: "ensure_grid_indexes", Run: b.execAll(gridIndexStatements)},
	}
	return before, after
}

// Run executes the steps in order. A step that stays locked after every attempt
// is skipped when SkipIfLocked is set; any other failure aborts the bootstrap.
func (b *Bootstrapper) Run(ctx context.Context, steps ...Step) error {
	for _, step := range steps {
		if _, err := b.runStep(ctx, step); err != nil {
			return err
		}
	}
	b.logger.Info("bootstrap complete", zap.Int("steps", len(steps)))
	return nil
}

func (b *Bootstrapper) runStep(ctx context.Context, step Step) (bool, error) {
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		err := step.Run(ctx)
		if err == nil {
			b.logger.Info("bootstrap step ok", zap.String("step", step.Name), zap.Int("attempt", attempt))
			return true, nil
		}
		if !IsRetryable(err) {
			return false, fmt.Errorf("bootstrap step %s: %w", step.Name, err)
		}
		if attempt == b.cfg.MaxAttempts {
			if b.cfg.SkipIfLocked {
				b.logger.Warn("bootstrap step skipped", zap.String("step", step.Name), zap.String("reason", "database_locked"))
				return false, nil
			}
			return false, fmt.Errorf("bootstrap step %s: %w", step.Name, err)
		}
		wait := time.Duration(attempt) * b.cfg.BaseDelay
		b.logger.Warn("bootstrap step retry",
			zap.String("step", step.Name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
		b.sleep(wait)
	}
	return false, nil
}

func (b *Bootstrapper) execAll(statements []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		tx, err := b.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	}
}

// IsRetryable reports whether err is lock contention worth retrying.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeUniqueViolation
}

// IsForeignKeyViolation reports a Postgres foreign_key_violation, such as a
// delete blocked by ON DELETE RESTRICT.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeForeignKeyViolation
}
