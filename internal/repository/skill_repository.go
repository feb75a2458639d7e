package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SkillRepository manages persistence for skills.
type SkillRepository struct {
	db *sqlx.DB
}

// NewSkillRepository constructs a SkillRepository.
func NewSkillRepository(db *sqlx.DB) *SkillRepository {
	return &SkillRepository{db: db}
}

// List returns every skill ordered by name.
func (r *SkillRepository) List(ctx context.Context, exec sqlx.ExtContext) ([]models.Skill, error) {
	const query = `SELECT id, name FROM skills ORDER BY name ASC, id ASC`
	var skills []models.Skill
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &skills, query); err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return skills, nil
}

// FindByID returns a skill by id. sql.ErrNoRows is returned unwrapped.
func (r *SkillRepository) FindByID(ctx context.Context, id int64) (*models.Skill, error) {
	const query = `SELECT id, name FROM skills WHERE id = $1`
	var skill models.Skill
	if err := r.db.GetContext(ctx, &skill, query, id); err != nil {
		return nil, err
	}
	return &skill, nil
}

// FindByIDs returns the subset of ids that exist.
func (r *SkillRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.Skill, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, name FROM skills WHERE id = ANY($1) ORDER BY name ASC`
	var skills []models.Skill
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &skills, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find skills by ids: %w", err)
	}
	return skills, nil
}

// ExistsByName checks case and whitespace insensitive uniqueness.
func (r *SkillRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	query := `SELECT 1 FROM skills WHERE LOWER(TRIM(name)) = LOWER(TRIM($1))`
	args := []interface{}{name}
	if excludeID != 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check skill name: %w", err)
	}
	return true, nil
}

// Create inserts a skill and sets its id.
func (r *SkillRepository) Create(ctx context.Context, exec sqlx.ExtContext, skill *models.Skill) error {
	const query = `INSERT INTO skills (name) VALUES ($1) RETURNING id`
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &skill.ID, query, skill.Name); err != nil {
		return fmt.Errorf("insert skill: %w", err)
	}
	return nil
}

// Update renames a skill.
func (r *SkillRepository) Update(ctx context.Context, skill *models.Skill) error {
	const query = `UPDATE skills SET name = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, skill.Name, skill.ID); err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	return nil
}

// Delete removes a skill.
func (r *SkillRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM skills WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	return nil
}
