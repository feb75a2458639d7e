package database

// schemaStatements create every table the timetable needs. Each statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS skills (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_skills_name_normalized ON skills (LOWER(TRIM(name)))`,
	`CREATE TABLE IF NOT EXISTS teachers (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		free_slots TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS teacher_skills (
		teacher_id BIGINT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		skill_id BIGINT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		PRIMARY KEY (teacher_id, skill_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		required_skill_id BIGINT NOT NULL REFERENCES skills(id) ON DELETE RESTRICT,
		slot TEXT NOT NULL,
		assigned_teacher_id BIGINT NULL REFERENCES teachers(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS allocation_runs (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL,
		trigger TEXT NOT NULL,
		assigned INTEGER NOT NULL DEFAULT 0,
		unassigned INTEGER NOT NULL DEFAULT 0,
		error TEXT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NULL
	)`,
}

// gridColumnStatements add the grid coordinates older databases are missing.
var gridColumnStatements = []string{
	`ALTER TABLE sessions ADD COLUMN IF NOT EXISTS day TEXT NULL`,
	`ALTER TABLE sessions ADD COLUMN IF NOT EXISTS year_group TEXT NULL`,
}

// gridIndexStatements back the one-session-per-cell and one-teacher-per-hour rules.
var gridIndexStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_grid_cell ON sessions (day, slot, year_group)
		WHERE day IS NOT NULL AND slot IS NOT NULL AND year_group IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_teacher_slot ON sessions (day, slot, assigned_teacher_id)
		WHERE assigned_teacher_id IS NOT NULL AND day IS NOT NULL AND slot IS NOT NULL`,
}
