package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Teacher, error)
	Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
	Update(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
	ReplaceSkills(ctx context.Context, exec sqlx.ExtContext, teacherID int64, skillIDs []int64) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error
}

type skillLookup interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.Skill, error)
}

type teacherSessionStore interface {
	LockGrid(ctx context.Context, exec sqlx.ExtContext) error
	ReleaseTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID int64) (int64, error)
}

// TeacherRequest is the payload for creating or updating a teacher.
type TeacherRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	FreeSlots string  `json:"free_slots" validate:"max=4000"`
	SkillIDs  []int64 `json:"skill_ids" validate:"dive,gt=0"`
}

// TeacherService manages teachers, their skills and free slots.
type TeacherService struct {
	repo      teacherRepository
	skills    skillLookup
	sessions  teacherSessionStore
	tx        txProvider
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, skills skillLookup, sessions teacherSessionStore, tx txProvider, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, skills: skills, sessions: sessions, tx: tx, cache: cache, validator: validate, logger: logger}
}

// List returns teachers ordered by name with skills attached.
func (s *TeacherService) List(ctx context.Context) ([]models.Teacher, error) {
	teachers, err := s.repo.List(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to list teachers")
	}
	return teachers, nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id int64) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internalError(err, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a teacher. Missing free slots default to the whole week.
func (s *TeacherService) Create(ctx context.Context, req TeacherRequest) (result *models.Teacher, err error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "teacher name is required")
	}

	teacher := &models.Teacher{Name: req.Name, FreeSlots: timetable.NormalizeSlotList(req.FreeSlots)}
	if teacher.FreeSlots == "" {
		teacher.FreeSlots = timetable.DefaultFreeSlots()
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

	if err = s.repo.Create(ctx, tx, teacher); err != nil {
		return nil, internalError(err, "failed to create teacher")
	}
	if teacher.Skills, err = s.storeSkills(ctx, tx, teacher.ID, req.SkillIDs); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit teacher")
	}
	s.cache.InvalidateSchedule(ctx)
	s.logger.Info("teacher created", zap.Int64("teacher_id", teacher.ID), zap.Int("skills", len(teacher.Skills)))
	return teacher, nil
}

// Update changes name, skills and free slots. Blank free slots keep the current value.
func (s *TeacherService) Update(ctx context.Context, id int64, req TeacherRequest) (result *models.Teacher, err error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "teacher name is required")
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

	teacher, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internalError(err, "failed to load teacher")
	}

	teacher.Name = req.Name
	if slots := timetable.NormalizeSlotList(req.FreeSlots); slots != "" {
		teacher.FreeSlots = slots
	} else if strings.TrimSpace(teacher.FreeSlots) == "" {
		teacher.FreeSlots = timetable.DefaultFreeSlots()
	}

	if err = s.repo.Update(ctx, tx, teacher); err != nil {
		return nil, internalError(err, "failed to update teacher")
	}
	if teacher.Skills, err = s.storeSkills(ctx, tx, teacher.ID, req.SkillIDs); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit teacher")
	}
	s.cache.InvalidateSchedule(ctx)
	return teacher, nil
}

// Delete removes a teacher after releasing every session assigned to them.
func (s *TeacherService) Delete(ctx context.Context, id int64) (err error) {
	tx, err := beginTx(ctx, s.tx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.repo.FindByID(ctx, tx, id); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return internalError(err, "failed to load teacher")
	}
	if err = s.sessions.LockGrid(ctx, tx); err != nil {
		return internalError(err, "failed to lock grid")
	}
	released, err := s.sessions.ReleaseTeacher(ctx, tx, id)
	if err != nil {
		return internalError(err, "failed to release teacher sessions")
	}
	if err = s.repo.Delete(ctx, tx, id); err != nil {
		return internalError(err, "failed to delete teacher")
	}
	if err = tx.Commit(); err != nil {
		return internalError(err, "failed to commit teacher delete")
	}
	s.cache.InvalidateSchedule(ctx)
	s.logger.Info("teacher deleted", zap.Int64("teacher_id", id), zap.Int64("sessions_released", released))
	return nil
}

// storeSkills keeps only skill ids that exist and replaces the teacher's links.
func (s *TeacherService) storeSkills(ctx context.Context, exec sqlx.ExtContext, teacherID int64, requested []int64) ([]models.Skill, error) {
	skills, err := s.skills.FindByIDs(ctx, exec, uniqueIDs(requested))
	if err != nil {
		return nil, internalError(err, "failed to load skills")
	}
	ids := make([]int64, len(skills))
	for i, skill := range skills {
		ids[i] = skill.ID
	}
	if err := s.repo.ReplaceSkills(ctx, exec, teacherID, ids); err != nil {
		return nil, internalError(err, "failed to store teacher skills")
	}
	if skills == nil {
		skills = []models.Skill{}
	}
	return skills, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
