package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type skillRepository interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Skill, error)
	FindByID(ctx context.Context, id int64) (*models.Skill, error)
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, skill *models.Skill) error
	Update(ctx context.Context, skill *models.Skill) error
	Delete(ctx context.Context, id int64) error
}

type skillUsageCounter interface {
	CountBySkill(ctx context.Context, skillID int64) (int, error)
}

// SkillRequest is the payload for creating or renaming a skill.
type SkillRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// SkillService manages the skill catalogue.
type SkillService struct {
	repo      skillRepository
	sessions  skillUsageCounter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSkillService constructs a SkillService.
func NewSkillService(repo skillRepository, sessions skillUsageCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SkillService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SkillService{repo: repo, sessions: sessions, cache: cache, validator: validate, logger: logger}
}

// List returns every skill ordered by name.
func (s *SkillService) List(ctx context.Context) ([]models.Skill, error) {
	skills, err := s.repo.List(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to list skills")
	}
	return skills, nil
}

// Get returns a skill by id.
func (s *SkillService) Get(ctx context.Context, id int64) (*models.Skill, error) {
	skill, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "skill not found")
		}
		return nil, internalError(err, "failed to load skill")
	}
	return skill, nil
}

// Create adds a skill with a unique name.
func (s *SkillService) Create(ctx context.Context, req SkillRequest) (*models.Skill, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "skill name is required")
	}
	if err := s.ensureUniqueName(ctx, req.Name, 0); err != nil {
		return nil, err
	}
	skill := &models.Skill{Name: req.Name}
	if err := s.repo.Create(ctx, nil, skill); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateSkill, "")
		}
		return nil, internalError(err, "failed to create skill")
	}
	s.logger.Info("skill created", zap.Int64("skill_id", skill.ID), zap.String("name", skill.Name))
	return skill, nil
}

// Update renames a skill.
func (s *SkillService) Update(ctx context.Context, id int64, req SkillRequest) (*models.Skill, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "skill name is required")
	}
	skill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, req.Name, id); err != nil {
		return nil, err
	}
	skill.Name = req.Name
	if err := s.repo.Update(ctx, skill); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateSkill, "")
		}
		return nil, internalError(err, "failed to update skill")
	}
	s.cache.InvalidateSchedule(ctx)
	return skill, nil
}

// Delete removes a skill that no session requires.
func (s *SkillService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	used, err := s.sessions.CountBySkill(ctx, id)
	if err != nil {
		return internalError(err, "failed to check skill usage")
	}
	if used > 0 {
		return appErrors.Clone(appErrors.ErrSkillInUse, "")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if database.IsForeignKeyViolation(err) {
			return appErrors.Clone(appErrors.ErrSkillInUse, "")
		}
		return internalError(err, "failed to delete skill")
	}
	s.cache.InvalidateSchedule(ctx)
	s.logger.Info("skill deleted", zap.Int64("skill_id", id))
	return nil
}

func (s *SkillService) ensureUniqueName(ctx context.Context, name string, excludeID int64) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return internalError(err, "failed to check skill name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateSkill, "")
	}
	return nil
}
