package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// AllocationJobType identifies queued allocation runs.
const AllocationJobType = "allocation"

type allocationSessionStore interface {
	LockGrid(ctx context.Context, exec sqlx.ExtContext) error
	CountGrid(ctx context.Context, exec sqlx.ExtContext) (int, error)
	ListGrid(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error)
	ClearGridAssignments(ctx context.Context, exec sqlx.ExtContext) error
	SetTeacher(ctx context.Context, exec sqlx.ExtContext, id int64, teacherID *int64) error
}

type allocationTeacherStore interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error)
}

type allocationRunStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.AllocationRun) error
	Update(ctx context.Context, exec sqlx.ExtContext, run *models.AllocationRun) error
	FindByID(ctx context.Context, id string) (*models.AllocationRun, error)
	List(ctx context.Context, limit, offset int) ([]models.AllocationRun, int, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// AllocationConfig tunes queued runs.
type AllocationConfig struct {
	MaxRetries int
}

// AllocationService runs the greedy allocator over the stored grid.
type AllocationService struct {
	sessions allocationSessionStore
	teachers allocationTeacherStore
	runs     allocationRunStore
	tx       txProvider
	queue    jobEnqueuer
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      AllocationConfig
	now      func() time.Time
}

// NewAllocationService constructs an AllocationService.
func NewAllocationService(sessions allocationSessionStore, teachers allocationTeacherStore, runs allocationRunStore, tx txProvider, cache *CacheService, metrics *MetricsService, cfg AllocationConfig, logger *zap.Logger) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &AllocationService{
		sessions: sessions,
		teachers: teachers,
		runs:     runs,
		tx:       tx,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetQueue attaches the job queue used by Enqueue.
func (s *AllocationService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Run reallocates every grid session and records the run atomically.
func (s *AllocationService) Run(ctx context.Context, trigger string) (*models.AllocationRun, error) {
	run := &models.AllocationRun{
		ID:        uuid.NewString(),
		Status:    models.AllocationRunRunning,
		Trigger:   trigger,
		CreatedAt: s.now().UTC(),
	}
	if err := s.execute(ctx, run, s.runs.Create); err != nil {
		s.metrics.ObserveAllocationFailure()
		return nil, err
	}
	return run, nil
}

// Enqueue records a pending run and hands it to the background queue.
func (s *AllocationService) Enqueue(ctx context.Context, trigger string) (*models.AllocationRun, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "allocation queue not configured")
	}
	run := &models.AllocationRun{
		ID:        uuid.NewString(),
		Status:    models.AllocationRunPending,
		Trigger:   trigger,
		CreatedAt: s.now().UTC(),
	}
	if err := s.runs.Create(ctx, nil, run); err != nil {
		return nil, internalError(err, "failed to record allocation run")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: AllocationJobType, Payload: run.ID}); err != nil {
		s.markFailed(ctx, run, err)
		return nil, internalError(err, "failed to enqueue allocation run")
	}
	s.logger.Info("allocation queued", zap.String("run_id", run.ID), zap.String("trigger", trigger))
	return run, nil
}

// HandleJob executes a queued run. Retryable database errors are returned to
// the queue until the retry budget is spent; anything else fails the run.
func (s *AllocationService) HandleJob(ctx context.Context, job jobs.Job) error {
	runID, ok := job.Payload.(string)
	if !ok || runID == "" {
		return fmt.Errorf("allocation job %s: unexpected payload %T", job.ID, job.Payload)
	}
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("allocation job dropped", zap.String("run_id", runID), zap.String("reason", "run_not_found"))
			return nil
		}
		return err
	}
	if run.Status == models.AllocationRunCompleted {
		return nil
	}

	run.Status = models.AllocationRunRunning
	err = s.execute(ctx, run, s.runs.Update)
	if err == nil {
		return nil
	}
	if database.IsRetryable(err) && job.Attempt < s.cfg.MaxRetries {
		return err
	}
	s.markFailed(ctx, run, err)
	return nil
}

// Get returns one run.
func (s *AllocationService) Get(ctx context.Context, id string) (*models.AllocationRun, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation run not found")
		}
		return nil, internalError(err, "failed to load allocation run")
	}
	return run, nil
}

// List returns recent runs newest first.
func (s *AllocationService) List(ctx context.Context, page, pageSize int) ([]models.AllocationRun, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	runs, total, err := s.runs.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, internalError(err, "failed to list allocation runs")
	}
	return runs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// execute allocates inside one transaction and stores run via record.
func (s *AllocationService) execute(ctx context.Context, run *models.AllocationRun, record func(context.Context, sqlx.ExtContext, *models.AllocationRun) error) (err error) {
	start := time.Now()
	s.logger.Info("allocation started", zap.String("run_id", run.ID), zap.String("trigger", run.Trigger))

	tx, err := beginTx(ctx, s.tx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.sessions.LockGrid(ctx, tx); err != nil {
		return internalError(err, "failed to lock grid")
	}
	total, err := s.sessions.CountGrid(ctx, tx)
	if err != nil {
		return internalError(err, "failed to count sessions")
	}
	if total == 0 {
		s.logger.Warn("allocation skipped", zap.String("run_id", run.ID), zap.String("reason", "no_sessions"))
		return appErrors.Clone(appErrors.ErrNoSessions, "")
	}

	teachers, err := s.teachers.List(ctx, tx)
	if err != nil {
		return internalError(err, "failed to list teachers")
	}
	sessions, err := s.sessions.ListGrid(ctx, tx)
	if err != nil {
		return internalError(err, "failed to list sessions")
	}

	outcome := timetable.Allocate(teachers, sessions)

	if err = s.sessions.ClearGridAssignments(ctx, tx); err != nil {
		return internalError(err, "failed to clear assignments")
	}
	for _, session := range outcome.Sessions {
		if session.TeacherID == nil {
			continue
		}
		if err = s.sessions.SetTeacher(ctx, tx, session.ID, session.TeacherID); err != nil {
			return internalError(err, "failed to store assignment")
		}
		s.logger.Debug("allocation assigned", zap.Int64("session_id", session.ID), zap.Int64("teacher_id", *session.TeacherID))
	}
	for _, id := range outcome.UnfilledIDs {
		s.logger.Debug("allocation unassigned", zap.Int64("session_id", id))
	}

	finished := s.now().UTC()
	run.Status = models.AllocationRunCompleted
	run.Assigned = outcome.Assigned
	run.Unassigned = outcome.Unassigned
	run.Error = nil
	run.FinishedAt = &finished
	if err = record(ctx, tx, run); err != nil {
		return internalError(err, "failed to record allocation run")
	}
	if err = tx.Commit(); err != nil {
		return internalError(err, "failed to commit allocation")
	}

	s.cache.InvalidateSchedule(ctx)
	s.metrics.ObserveAllocation(string(run.Status), run.Assigned, run.Unassigned, time.Since(start))
	s.logger.Info("allocation complete",
		zap.String("run_id", run.ID), zap.Int("assigned", run.Assigned), zap.Int("unassigned", run.Unassigned),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *AllocationService) markFailed(ctx context.Context, run *models.AllocationRun, cause error) {
	message := appErrors.FromError(cause).Message
	finished := s.now().UTC()
	run.Status = models.AllocationRunFailed
	run.Error = &message
	run.FinishedAt = &finished
	if err := s.runs.Update(ctx, nil, run); err != nil {
		s.logger.Error("failed to mark allocation run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.metrics.ObserveAllocationFailure()
	s.logger.Warn("allocation failed", zap.String("run_id", run.ID), zap.Error(cause))
}
