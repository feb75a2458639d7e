package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type gridSessionStore interface {
	LockGrid(ctx context.Context, exec sqlx.ExtContext) error
	ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error)
	ListGrid(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error)
	ListByCell(ctx context.Context, exec sqlx.ExtContext, day, slot, yearGroup string) ([]models.Session, error)
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	SetTeacher(ctx context.Context, exec sqlx.ExtContext, id int64, teacherID *int64) error
	DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) (int64, error)
	TeacherBusy(ctx context.Context, exec sqlx.ExtContext, day, slot string, teacherID, excludeSessionID int64) (bool, error)
	MigrateLegacyYearGroups(ctx context.Context, exec sqlx.ExtContext, mapping map[string]string) (int64, error)
}

type gridTeacherStore interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Teacher, error)
}

type gridSkillStore interface {
	FindByID(ctx context.Context, id int64) (*models.Skill, error)
}

// CellRequest addresses one grid cell.
type CellRequest struct {
	Day       string `json:"day" form:"day"`
	Slot      string `json:"slot" form:"slot"`
	YearGroup string `json:"year_group" form:"year_group"`
}

func (r *CellRequest) trim() {
	r.Day = strings.TrimSpace(r.Day)
	r.Slot = strings.TrimSpace(r.Slot)
	r.YearGroup = strings.TrimSpace(r.YearGroup)
}

// SaveCellRequest sets the required skill and optionally the teacher of a cell.
type SaveCellRequest struct {
	CellRequest
	RequiredSkillID int64  `json:"required_skill_id"`
	TeacherID       *int64 `json:"assigned_teacher_id"`
}

// CellResult is the stored session of a cell after a save.
type CellResult struct {
	Session models.Session `json:"session"`
	Deduped int            `json:"deduped"`
}

// ScheduleView is the editable weekly grid.
type ScheduleView struct {
	ActiveDay  string                  `json:"active_day" yaml:"active_day"`
	Days       []timetable.DaySchedule `json:"days" yaml:"days"`
	Unassigned int                     `json:"unassigned" yaml:"unassigned"`
}

// RepairResult reports what a grid repair changed.
type RepairResult struct {
	Removed          int `json:"removed"`
	ConflictsCleared int `json:"conflicts_cleared"`
	Updated          int `json:"updated"`
}

// GridService reads and edits the session grid.
type GridService struct {
	sessions gridSessionStore
	teachers gridTeacherStore
	skills   gridSkillStore
	tx       txProvider
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewGridService constructs a GridService.
func NewGridService(sessions gridSessionStore, teachers gridTeacherStore, skills gridSkillStore, tx txProvider, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *GridService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridService{sessions: sessions, teachers: teachers, skills: skills, tx: tx, cache: cache, metrics: metrics, logger: logger}
}

// Schedule builds the grid view. The boolean reports a cache hit.
func (s *GridService) Schedule(ctx context.Context, activeDay string) (*ScheduleView, bool, error) {
	activeDay = timetable.ParseActiveDay(activeDay)
	key := scheduleCacheKey(activeDay)

	var cached ScheduleView
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	teachers, err := s.teachers.List(ctx, nil)
	if err != nil {
		return nil, false, internalError(err, "failed to list teachers")
	}
	sessions, err := s.sessions.ListGrid(ctx, nil)
	if err != nil {
		return nil, false, internalError(err, "failed to list sessions")
	}

	view := &ScheduleView{
		ActiveDay:  activeDay,
		Days:       timetable.BuildSchedule(teachers, sessions),
		Unassigned: timetable.CountUnassigned(sessions),
	}
	_ = s.cache.Set(ctx, key, view, 0)
	return view, false, nil
}

// SaveCell stores the required skill and teacher of a cell, creating the
// session when the cell is empty and collapsing duplicates when present.
func (s *GridService) SaveCell(ctx context.Context, req SaveCellRequest) (result *CellResult, err error) {
	req.trim()
	if req.TeacherID != nil && *req.TeacherID == 0 {
		req.TeacherID = nil
	}
	s.logger.Info("grid save requested",
		zap.String("day", req.Day), zap.String("slot", req.Slot), zap.String("year_group", req.YearGroup),
		zap.Int64("skill_id", req.RequiredSkillID), zap.Int64p("teacher_id", req.TeacherID))

	if !timetable.IsGridCell(req.Day, req.Slot, req.YearGroup) {
		return nil, s.rejectSave("invalid_grid_coordinates", appErrors.Clone(appErrors.ErrInvalidGridCell, ""))
	}
	if req.RequiredSkillID <= 0 {
		return nil, s.rejectSave("missing_skill", appErrors.Clone(appErrors.ErrMissingSkill, ""))
	}
	if _, err := s.skills.FindByID(ctx, req.RequiredSkillID); err != nil {
		if isNotFound(err) {
			return nil, s.rejectSave("missing_skill", appErrors.Clone(appErrors.ErrMissingSkill, ""))
		}
		return nil, internalError(err, "failed to load skill")
	}

	tx, err := beginTx(ctx, s.tx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.sessions.LockGrid(ctx, tx); err != nil {
		return nil, internalError(err, "failed to lock grid")
	}
	session, deduped, err := s.getOrCreateCell(ctx, tx, req.CellRequest, req.RequiredSkillID)
	if err != nil {
		return nil, err
	}
	if deduped > 0 {
		s.logger.Warn("grid cell deduplicated", zap.Int("count", deduped),
			zap.String("day", req.Day), zap.String("slot", req.Slot), zap.String("year_group", req.YearGroup))
	}
	session.RequiredSkillID = req.RequiredSkillID
	session.TeacherID = nil

	if req.TeacherID != nil {
		if err = s.checkTeacher(ctx, tx, *req.TeacherID, session); err != nil {
			return nil, err
		}
		teacherID := *req.TeacherID
		session.TeacherID = &teacherID
	}

	if err = s.sessions.Update(ctx, tx, session); err != nil {
		return nil, s.writeFailure(err, "failed to save session")
	}
	if err = tx.Commit(); err != nil {
		return nil, s.writeFailure(err, "failed to commit session")
	}
	s.cache.InvalidateSchedule(ctx)
	s.logger.Info("grid save succeeded", zap.Int64("session_id", session.ID))
	return &CellResult{Session: *session, Deduped: deduped}, nil
}

// ClearCell deletes every session stored in a cell.
func (s *GridService) ClearCell(ctx context.Context, req CellRequest) (removed int64, err error) {
	req.trim()
	s.logger.Info("grid clear requested", zap.String("day", req.Day), zap.String("slot", req.Slot), zap.String("year_group", req.YearGroup))

	tx, err := beginTx(ctx, s.tx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.sessions.LockGrid(ctx, tx); err != nil {
		return 0, internalError(err, "failed to lock grid")
	}
	matches, err := s.sessions.ListByCell(ctx, tx, req.Day, req.Slot, req.YearGroup)
	if err != nil {
		return 0, internalError(err, "failed to load cell")
	}
	if len(matches) == 0 {
		s.logger.Warn("grid clear skipped", zap.String("reason", "not_found"))
		return 0, appErrors.Clone(appErrors.ErrNotFound, "no session found for this cell")
	}
	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	if removed, err = s.sessions.DeleteByIDs(ctx, tx, ids); err != nil {
		return 0, internalError(err, "failed to clear cell")
	}
	if err = tx.Commit(); err != nil {
		return 0, internalError(err, "failed to commit cell clear")
	}
	s.cache.InvalidateSchedule(ctx)
	s.logger.Info("grid clear succeeded", zap.Int64("removed", removed))
	return removed, nil
}

// Repair collapses duplicate cells and clears double bookings across the grid.
func (s *GridService) Repair(ctx context.Context) (result *RepairResult, err error) {
	tx, err := beginTx(ctx, s.tx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.sessions.LockGrid(ctx, tx); err != nil {
		return nil, internalError(err, "failed to lock grid")
	}
	sessions, err := s.sessions.ListGrid(ctx, tx)
	if err != nil {
		return nil, internalError(err, "failed to list sessions")
	}
	plan := timetable.DedupeGrid(sessions)
	if err = s.applyRepair(ctx, tx, plan); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit grid repair")
	}

	result = &RepairResult{Removed: plan.Removed, ConflictsCleared: plan.ConflictsCleared, Updated: len(plan.Updated)}
	if !plan.Empty() {
		s.cache.InvalidateSchedule(ctx)
		s.metrics.ObserveGridRepair(result.Removed, result.Updated)
	}
	s.logger.Info("grid repair complete",
		zap.Int("removed", result.Removed), zap.Int("conflicts_cleared", result.ConflictsCleared), zap.Int("updated", result.Updated))
	return result, nil
}

// Orphans lists stored sessions whose coordinates fall outside the grid.
func (s *GridService) Orphans(ctx context.Context) ([]models.Session, error) {
	sessions, err := s.sessions.ListAll(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to list sessions")
	}
	orphans := make([]models.Session, 0)
	for _, session := range sessions {
		if !timetable.OnGrid(session) {
			orphans = append(orphans, session)
		}
	}
	return orphans, nil
}

// MigrateLegacyYearGroups renames year-group labels written by older releases.
func (s *GridService) MigrateLegacyYearGroups(ctx context.Context) (migrated int64, err error) {
	tx, err := beginTx(ctx, s.tx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.sessions.LockGrid(ctx, tx); err != nil {
		return 0, internalError(err, "failed to lock grid")
	}
	if migrated, err = s.sessions.MigrateLegacyYearGroups(ctx, tx, timetable.LegacyYearGroups); err != nil {
		return 0, internalError(err, "failed to migrate year groups")
	}
	if err = tx.Commit(); err != nil {
		return 0, internalError(err, "failed to commit year group migration")
	}
	if migrated > 0 {
		s.cache.InvalidateSchedule(ctx)
	}
	s.logger.Info("legacy year groups migrated", zap.Int64("rows", migrated))
	return migrated, nil
}

// getOrCreateCell returns the canonical session of a cell, creating it when
// absent and deleting duplicates when several exist.
func (s *GridService) getOrCreateCell(ctx context.Context, exec sqlx.ExtContext, cell CellRequest, skillID int64) (*models.Session, int, error) {
	matches, err := s.sessions.ListByCell(ctx, exec, cell.Day, cell.Slot, cell.YearGroup)
	if err != nil {
		return nil, 0, internalError(err, "failed to load cell")
	}
	if len(matches) == 0 {
		session := &models.Session{RequiredSkillID: skillID, Day: cell.Day, Slot: cell.Slot, YearGroup: cell.YearGroup}
		if err := s.sessions.Create(ctx, exec, session); err != nil {
			return nil, 0, s.writeFailure(err, "failed to create session")
		}
		return session, 0, nil
	}

	keep, duplicates := timetable.CollapseCell(matches)
	if len(duplicates) > 0 {
		if _, err := s.sessions.DeleteByIDs(ctx, exec, duplicates); err != nil {
			return nil, 0, internalError(err, "failed to remove duplicate sessions")
		}
	}
	return &keep, len(duplicates), nil
}

func (s *GridService) checkTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID int64, session *models.Session) error {
	teacher, err := s.teachers.FindByID(ctx, exec, teacherID)
	if err != nil {
		if isNotFound(err) {
			return s.rejectSave("teacher_not_found", appErrors.Clone(appErrors.ErrNotFound, "selected teacher does not exist"))
		}
		return internalError(err, "failed to load teacher")
	}

	switch err := timetable.CheckManualAssignment(*teacher, session.RequiredSkillID, session.Day, session.Slot); {
	case errors.Is(err, timetable.ErrUnavailable):
		return s.rejectSave("teacher_not_available", appErrors.Wrap(err, appErrors.ErrTeacherUnavailable.Code, appErrors.ErrTeacherUnavailable.Status, appErrors.ErrTeacherUnavailable.Message))
	case errors.Is(err, timetable.ErrMissingSkill):
		return s.rejectSave("teacher_missing_skill", appErrors.Wrap(err, appErrors.ErrTeacherMissingSkill.Code, appErrors.ErrTeacherMissingSkill.Status, appErrors.ErrTeacherMissingSkill.Message))
	}

	busy, err := s.sessions.TeacherBusy(ctx, exec, session.Day, session.Slot, teacherID, session.ID)
	if err != nil {
		return internalError(err, "failed to check teacher conflict")
	}
	if busy {
		return s.rejectSave("teacher_busy", appErrors.Clone(appErrors.ErrTeacherBusy, ""))
	}
	return nil
}

func (s *GridService) applyRepair(ctx context.Context, exec sqlx.ExtContext, plan timetable.RepairPlan) error {
	if _, err := s.sessions.DeleteByIDs(ctx, exec, plan.Deleted); err != nil {
		return internalError(err, "failed to delete duplicate sessions")
	}
	// Clear before set so no intermediate state double-books a teacher.
	for _, cleared := range []bool{true, false} {
		for _, session := range plan.Updated {
			if (session.TeacherID == nil) != cleared {
				continue
			}
			if err := s.sessions.SetTeacher(ctx, exec, session.ID, session.TeacherID); err != nil {
				return s.writeFailure(err, "failed to update session teacher")
			}
		}
	}
	return nil
}

func (s *GridService) rejectSave(reason string, err *appErrors.Error) error {
	s.logger.Warn("grid save rejected", zap.String("reason", reason))
	return err
}

func (s *GridService) writeFailure(err error, message string) error {
	if database.IsUniqueViolation(err) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "grid changed concurrently, retry")
	}
	return internalError(err, message)
}
