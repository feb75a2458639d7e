package timetable

import (
	"errors"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var (
	// ErrUnavailable means the teacher did not declare the hour free.
	ErrUnavailable = errors.New("teacher not available in slot")
	// ErrMissingSkill means the teacher lacks the cell's required skill.
	ErrMissingSkill = errors.New("teacher lacks required skill")
)

// CheckManualAssignment validates a hand-picked teacher for a cell. Double
// booking depends on the stored grid and is checked by the caller.
func CheckManualAssignment(teacher models.Teacher, requiredSkillID int64, day, slot string) error {
	if !ParseAvailability(teacher.FreeSlots).IsAvailable(day, slot) {
		return ErrUnavailable
	}
	if !teacher.HasSkill(requiredSkillID) {
		return ErrMissingSkill
	}
	return nil
}
