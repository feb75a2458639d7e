package models

import "strings"

// Teacher is a staff member with skills and a free-time declaration.
type Teacher struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	FreeSlots string  `db:"free_slots" json:"free_slots"`
	Skills    []Skill `db:"-" json:"skills"`
}

// HasSkill reports whether the teacher holds the given skill.
func (t Teacher) HasSkill(skillID int64) bool {
	for _, skill := range t.Skills {
		if skill.ID == skillID {
			return true
		}
	}
	return false
}

// SkillIDs returns the teacher's skills as a set.
func (t Teacher) SkillIDs() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(t.Skills))
	for _, skill := range t.Skills {
		ids[skill.ID] = struct{}{}
	}
	return ids
}

// SkillSummary joins skill names for display.
func (t Teacher) SkillSummary() string {
	if len(t.Skills) == 0 {
		return "No skills"
	}
	names := make([]string, len(t.Skills))
	for i, skill := range t.Skills {
		names[i] = skill.Name
	}
	return strings.Join(names, ", ")
}

// TeacherSkill links a teacher to one skill.
type TeacherSkill struct {
	TeacherID int64  `db:"teacher_id"`
	SkillID   int64  `db:"skill_id"`
	SkillName string `db:"skill_name"`
}
