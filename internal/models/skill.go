package models

// Skill is a teachable subject. Names are unique ignoring case and spacing.
type Skill struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
