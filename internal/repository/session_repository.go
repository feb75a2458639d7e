package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// GridLockKey serializes grid writers through pg_advisory_xact_lock.
const GridLockKey int64 = 7_340_001

const sessionColumns = `id, required_skill_id, COALESCE(day, '') AS day, slot, COALESCE(year_group, '') AS year_group, assigned_teacher_id`

const gridFilter = `day = ANY($1) AND slot = ANY($2) AND year_group = ANY($3)`

// SessionRepository manages timetable sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func gridArgs() []interface{} {
	return []interface{}{pq.Array(timetable.Weekdays), pq.Array(timetable.TeachingSlots), pq.Array(timetable.YearGroups)}
}

// ListAll returns every session, including legacy rows outside the grid.
func (r *SessionRepository) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY id ASC`
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &sessions, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListGrid returns sessions inside the fixed grid vocabulary ordered by id.
func (r *SessionRepository) ListGrid(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + gridFilter + ` ORDER BY id ASC`
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &sessions, query, gridArgs()...); err != nil {
		return nil, fmt.Errorf("list grid sessions: %w", err)
	}
	return sessions, nil
}

// CountGrid counts sessions inside the grid.
func (r *SessionRepository) CountGrid(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE ` + gridFilter
	var total int
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &total, query, gridArgs()...); err != nil {
		return 0, fmt.Errorf("count grid sessions: %w", err)
	}
	return total, nil
}

// CountBySkill counts sessions requiring the skill.
func (r *SessionRepository) CountBySkill(ctx context.Context, skillID int64) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sessions WHERE required_skill_id = $1`, skillID); err != nil {
		return 0, fmt.Errorf("count sessions by skill: %w", err)
	}
	return total, nil
}

// ListByCell locks and returns every session in a cell ordered by id.
func (r *SessionRepository) ListByCell(ctx context.Context, exec sqlx.ExtContext, day, slot, yearGroup string) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE day = $1 AND slot = $2 AND year_group = $3 ORDER BY id ASC FOR UPDATE`
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &sessions, query, day, slot, yearGroup); err != nil {
		return nil, fmt.Errorf("list cell sessions: %w", err)
	}
	return sessions, nil
}

// Create inserts a session and sets its id.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	const query = `INSERT INTO sessions (required_skill_id, day, slot, year_group, assigned_teacher_id)
VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &session.ID, query,
		session.RequiredSkillID, session.Day, session.Slot, session.YearGroup, session.TeacherID); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Update stores the required skill and assigned teacher.
func (r *SessionRepository) Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	const query = `UPDATE sessions SET required_skill_id = $1, assigned_teacher_id = $2 WHERE id = $3`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, session.RequiredSkillID, session.TeacherID, session.ID); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// SetTeacher changes only the assigned teacher.
func (r *SessionRepository) SetTeacher(ctx context.Context, exec sqlx.ExtContext, id int64, teacherID *int64) error {
	const query = `UPDATE sessions SET assigned_teacher_id = $1 WHERE id = $2`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, teacherID, id); err != nil {
		return fmt.Errorf("set session teacher: %w", err)
	}
	return nil
}

// DeleteByIDs removes sessions and returns the number deleted.
func (r *SessionRepository) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := pick(r.db, exec).ExecContext(ctx, `DELETE FROM sessions WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return res.RowsAffected()
}

// TeacherBusy reports whether the teacher holds another session in the hour.
func (r *SessionRepository) TeacherBusy(ctx context.Context, exec sqlx.ExtContext, day, slot string, teacherID, excludeSessionID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sessions WHERE day = $1 AND slot = $2 AND assigned_teacher_id = $3 AND id <> $4)`
	var busy bool
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &busy, query, day, slot, teacherID, excludeSessionID); err != nil {
		return false, fmt.Errorf("check teacher conflict: %w", err)
	}
	return busy, nil
}

// ReleaseTeacher unassigns the teacher from every session.
func (r *SessionRepository) ReleaseTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID int64) (int64, error) {
	res, err := pick(r.db, exec).ExecContext(ctx, `UPDATE sessions SET assigned_teacher_id = NULL WHERE assigned_teacher_id = $1`, teacherID)
	if err != nil {
		return 0, fmt.Errorf("release teacher sessions: %w", err)
	}
	return res.RowsAffected()
}

// ClearGridAssignments unassigns every grid session.
func (r *SessionRepository) ClearGridAssignments(ctx context.Context, exec sqlx.ExtContext) error {
	query := `UPDATE sessions SET assigned_teacher_id = NULL WHERE assigned_teacher_id IS NOT NULL AND ` + gridFilter
	if _, err := pick(r.db, exec).ExecContext(ctx, query, gridArgs()...); err != nil {
		return fmt.Errorf("clear grid assignments: %w", err)
	}
	return nil
}

// LockGrid blocks until no other transaction is writing the grid.
func (r *SessionRepository) LockGrid(ctx context.Context, exec sqlx.ExtContext) error {
	if _, err := pick(r.db, exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, GridLockKey); err != nil {
		return fmt.Errorf("lock grid: %w", err)
	}
	return nil
}

// MigrateLegacyYearGroups renames year-group labels written by older releases.
func (r *SessionRepository) MigrateLegacyYearGroups(ctx context.Context, exec sqlx.ExtContext, mapping map[string]string) (int64, error) {
	target := pick(r.db, exec)
	var migrated int64
	for _, oldLabel := range sortedKeys(mapping) {
		res, err := target.ExecContext(ctx, `UPDATE sessions SET year_group = $1 WHERE year_group = $2`, mapping[oldLabel], oldLabel)
		if err != nil {
			return migrated, fmt.Errorf("migrate year group %s: %w", oldLabel, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return migrated, err
		}
		migrated += n
	}
	return migrated, nil
}
