package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

var (
	skillNameColumns      = []string{"name", "skill", "skill_name"}
	teacherNameColumns    = []string{"name", "teacher", "teacher_name"}
	teacherSlotColumns    = []string{"free_slots", "slots", "availability"}
	teacherSkillColumns   = []string{"skills", "skill", "skill_names"}
	utf8BOM               = []byte{0xEF, 0xBB, 0xBF}
	errImportMissingInput = errors.New("no file selected")
)

type importSkillStore interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Skill, error)
	Create(ctx context.Context, exec sqlx.ExtContext, skill *models.Skill) error
}

type importTeacherStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
	ReplaceSkills(ctx context.Context, exec sqlx.ExtContext, teacherID int64, skillIDs []int64) error
}

// ImportResult reports what a CSV import changed.
type ImportResult struct {
	Added          int `json:"added"`
	Skipped        int `json:"skipped"`
	CreatedSkills  int `json:"created_skills,omitempty"`
	DefaultedSlots int `json:"defaulted_slots,omitempty"`
}

// ImportService loads skills and teachers from CSV uploads.
type ImportService struct {
	skills   importSkillStore
	teachers importTeacherStore
	tx       txProvider
	cache    *CacheService
	logger   *zap.Logger
}

// NewImportService constructs an ImportService.
func NewImportService(skills importSkillStore, teachers importTeacherStore, tx txProvider, cache *CacheService, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{skills: skills, teachers: teachers, tx: tx, cache: cache, logger: logger}
}

// csvTable is a decoded upload with a header index.
type csvTable struct {
	columns map[string]int
	rows    [][]string
}

func (t csvTable) value(row []string, candidates []string) string {
	for _, name := range candidates {
		if idx, ok := t.columns[name]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
	}
	return ""
}

func (t csvTable) hasAny(candidates []string) bool {
	for _, name := range candidates {
		if _, ok := t.columns[name]; ok {
			return true
		}
	}
	return false
}

func decodeCSVUpload(filename string, content []byte) (*csvTable, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, appErrors.Wrap(errImportMissingInput, appErrors.ErrInvalidUpload.Code, appErrors.ErrInvalidUpload.Status, "no file selected")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, appErrors.Clone(appErrors.ErrInvalidUpload, "only .csv files are supported")
	}
	if len(content) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidUpload, "uploaded file is empty")
	}
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return nil, appErrors.Clone(appErrors.ErrInvalidUpload, "CSV must be UTF-8 encoded")
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, appErrors.Clone(appErrors.ErrInvalidUpload, "CSV must contain headers")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidUpload.Code, appErrors.ErrInvalidUpload.Status, "CSV could not be parsed")
	}

	table := &csvTable{columns: make(map[string]int, len(header))}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, exists := table.columns[key]; !exists {
			table.columns[key] = i
		}
	}
	if len(table.columns) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidUpload, "CSV must contain headers")
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidUpload.Code, appErrors.ErrInvalidUpload.Status, "CSV could not be parsed")
		}
		table.rows = append(table.rows, record)
	}
	return table, nil
}

// ImportSkills adds every new skill name found in the upload.
func (s *ImportService) ImportSkills(ctx context.Context, filename string, content []byte) (result *ImportResult, err error) {
	s.logger.Info("skills import requested", zap.String("filename", filename))
	table, err := decodeCSVUpload(filename, content)
	if err != nil {
		s.logger.Warn("skills import rejected", zap.String("reason", appErrors.FromError(err).Message))
		return nil, err
	}
	if !table.hasAny(skillNameColumns) {
		return nil, appErrors.Clone(appErrors.ErrInvalidUpload, "skills CSV must include a name column")
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

	existing, err := s.skillIndex(ctx, tx)
	if err != nil {
		return nil, err
	}

	result = &ImportResult{}
	for i, row := range table.rows {
		line := i + 2
		names := timetable.SplitMultiValue(table.value(row, skillNameColumns))
		if len(names) == 0 {
			result.Skipped++
			s.logger.Warn("skills import row skipped", zap.Int("line", line), zap.String("reason", "missing_name"))
			continue
		}
		for _, name := range names {
			key := timetable.Normalize(name)
			if _, dup := existing[key]; dup {
				result.Skipped++
				s.logger.Info("skills import row skipped", zap.Int("line", line), zap.String("reason", "duplicate"), zap.String("name", name))
				continue
			}
			skill := models.Skill{Name: name}
			if err = s.skills.Create(ctx, tx, &skill); err != nil {
				return nil, s.importFailure(err, "skills")
			}
			existing[key] = skill
			result.Added++
			s.logger.Info("skills import row added", zap.Int("line", line), zap.String("name", name))
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, s.importFailure(err, "skills")
	}
	s.logger.Info("skills import complete", zap.Int("inserted", result.Added), zap.Int("skipped", result.Skipped))
	return result, nil
}

// ImportTeachers adds one teacher per named row, creating unknown skills on the way.
func (s *ImportService) ImportTeachers(ctx context.Context, filename string, content []byte) (result *ImportResult, err error) {
	s.logger.Info("teachers import requested", zap.String("filename", filename))
	table, err := decodeCSVUpload(filename, content)
	if err != nil {
		s.logger.Warn("teachers import rejected", zap.String("reason", appErrors.FromError(err).Message))
		return nil, err
	}
	if !table.hasAny(teacherNameColumns) {
		return nil, appErrors.Clone(appErrors.ErrInvalidUpload, "teachers CSV must include a name column")
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

	skillMap, err := s.skillIndex(ctx, tx)
	if err != nil {
		return nil, err
	}

	result = &ImportResult{}
	for i, row := range table.rows {
		line := i + 2
		name := table.value(row, teacherNameColumns)
		if name == "" {
			result.Skipped++
			s.logger.Warn("teachers import row skipped", zap.Int("line", line), zap.String("reason", "missing_name"))
			continue
		}

		teacher := models.Teacher{Name: name, FreeSlots: timetable.NormalizeSlotList(table.value(row, teacherSlotColumns))}
		if teacher.FreeSlots == "" {
			teacher.FreeSlots = timetable.DefaultFreeSlots()
			result.DefaultedSlots++
			s.logger.Info("teachers import row defaulted slots", zap.Int("line", line), zap.String("teacher_name", name))
		}

		seen := make(map[string]struct{})
		var skillIDs []int64
		for _, skillName := range timetable.SplitMultiValue(table.value(row, teacherSkillColumns)) {
			key := timetable.Normalize(skillName)
			if _, dup := seen[key]; dup {
				s.logger.Info("teachers import duplicate skill ignored", zap.Int("line", line), zap.String("name", skillName))
				continue
			}
			seen[key] = struct{}{}
			skill, known := skillMap[key]
			if !known {
				skill = models.Skill{Name: skillName}
				if err = s.skills.Create(ctx, tx, &skill); err != nil {
					return nil, s.importFailure(err, "teachers")
				}
				skillMap[key] = skill
				result.CreatedSkills++
				s.logger.Info("teachers import skill auto created", zap.Int("line", line), zap.String("name", skillName))
			}
			skillIDs = append(skillIDs, skill.ID)
		}

		if err = s.teachers.Create(ctx, tx, &teacher); err != nil {
			return nil, s.importFailure(err, "teachers")
		}
		if err = s.teachers.ReplaceSkills(ctx, tx, teacher.ID, skillIDs); err != nil {
			return nil, s.importFailure(err, "teachers")
		}
		result.Added++
		s.logger.Info("teachers import row added", zap.Int("line", line), zap.String("teacher_name", name))
	}

	if err = tx.Commit(); err != nil {
		return nil, s.importFailure(err, "teachers")
	}
	s.cache.InvalidateSchedule(ctx)
	s.logger.Info("teachers import complete",
		zap.Int("inserted_teachers", result.Added),
		zap.Int("auto_created_skills", result.CreatedSkills),
		zap.Int("skipped_rows", result.Skipped),
		zap.Int("defaulted_slot_rows", result.DefaultedSlots))
	return result, nil
}

func (s *ImportService) skillIndex(ctx context.Context, exec sqlx.ExtContext) (map[string]models.Skill, error) {
	skills, err := s.skills.List(ctx, exec)
	if err != nil {
		return nil, internalError(err, "failed to list skills")
	}
	index := make(map[string]models.Skill, len(skills))
	for _, skill := range skills {
		index[timetable.Normalize(skill.Name)] = skill
	}
	return index, nil
}

func (s *ImportService) importFailure(err error, kind string) error {
	if database.IsUniqueViolation(err) {
		s.logger.Warn(kind+" import failed", zap.String("reason", "integrity_error"))
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("%s import failed due to duplicate values", kind))
	}
	return internalError(err, fmt.Sprintf("failed to import %s", kind))
}
