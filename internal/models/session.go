package models

// Session occupies one timetable cell. Day and YearGroup are empty for legacy rows.
type Session struct {
	ID              int64  `db:"id" json:"id"`
	RequiredSkillID int64  `db:"required_skill_id" json:"required_skill_id"`
	Day             string `db:"day" json:"day"`
	Slot            string `db:"slot" json:"slot"`
	YearGroup       string `db:"year_group" json:"year_group"`
	TeacherID       *int64 `db:"assigned_teacher_id" json:"assigned_teacher_id"`
}

// Assigned reports whether a teacher is set.
func (s Session) Assigned() bool {
	return s.TeacherID != nil
}

// SameTeacher compares the assigned teacher of two sessions, treating two empty values as equal.
func SameTeacher(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
