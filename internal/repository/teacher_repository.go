package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeacherRepository manages persistence for teachers and their skills.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns every teacher ordered by name with skills attached.
func (r *TeacherRepository) List(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error) {
	target := pick(r.db, exec)
	const query = `SELECT id, name, free_slots FROM teachers ORDER BY name ASC, id ASC`
	var teachers []models.Teacher
	if err := sqlx.SelectContext(ctx, target, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	if err := r.attachSkills(ctx, target, teachers); err != nil {
		return nil, err
	}
	return teachers, nil
}

// FindByID returns a teacher with skills. sql.ErrNoRows is returned unwrapped.
func (r *TeacherRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Teacher, error) {
	target := pick(r.db, exec)
	const query = `SELECT id, name, free_slots FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, target, &teacher, query, id); err != nil {
		return nil, err
	}
	teachers := []models.Teacher{teacher}
	if err := r.attachSkills(ctx, target, teachers); err != nil {
		return nil, err
	}
	return &teachers[0], nil
}

// Create inserts a teacher and sets its id. Skills are stored separately.
func (r *TeacherRepository) Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	const query = `INSERT INTO teachers (name, free_slots) VALUES ($1, $2) RETURNING id`
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &teacher.ID, query, teacher.Name, teacher.FreeSlots); err != nil {
		return fmt.Errorf("insert teacher: %w", err)
	}
	return nil
}

// Update stores name and free slots.
func (r *TeacherRepository) Update(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	const query = `UPDATE teachers SET name = $1, free_slots = $2 WHERE id = $3`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, teacher.Name, teacher.FreeSlots, teacher.ID); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// ReplaceSkills swaps the teacher's skill set for skillIDs.
func (r *TeacherRepository) ReplaceSkills(ctx context.Context, exec sqlx.ExtContext, teacherID int64, skillIDs []int64) error {
	target := pick(r.db, exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM teacher_skills WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear teacher skills: %w", err)
	}
	const insert = `INSERT INTO teacher_skills (teacher_id, skill_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, skillID := range skillIDs {
		if _, err := target.ExecContext(ctx, insert, teacherID, skillID); err != nil {
			return fmt.Errorf("insert teacher skill: %w", err)
		}
	}
	return nil
}

// Delete removes a teacher. Skill links cascade.
func (r *TeacherRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	if _, err := pick(r.db, exec).ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return nil
}

func (r *TeacherRepository) attachSkills(ctx context.Context, target sqlx.ExtContext, teachers []models.Teacher) error {
	if len(teachers) == 0 {
		return nil
	}
	ids := make([]int64, len(teachers))
	index := make(map[int64]int, len(teachers))
	for i, t := range teachers {
		ids[i] = t.ID
		index[t.ID] = i
		teachers[i].Skills = []models.Skill{}
	}

	const query = `SELECT ts.teacher_id, ts.skill_id, s.name AS skill_name
FROM teacher_skills ts JOIN skills s ON s.id = ts.skill_id
WHERE ts.teacher_id = ANY($1) ORDER BY s.name ASC`
	var links []models.TeacherSkill
	if err := sqlx.SelectContext(ctx, target, &links, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list teacher skills: %w", err)
	}
	for _, link := range links {
		if i, ok := index[link.TeacherID]; ok {
			teachers[i].Skills = append(teachers[i].Skills, models.Skill{ID: link.SkillID, Name: link.SkillName})
		}
	}
	return nil
}
