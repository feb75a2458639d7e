package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func findCell(t *testing.T, schedule []DaySchedule, day, slot, year string) Cell {
	t.Helper()
	for _, d := range schedule {
		if d.Day != day {
			continue
		}
		for _, row := range d.Rows {
			if row.Slot != slot {
				continue
			}
			for _, cell := range row.Cells {
				if cell.YearGroup == year {
					return cell
				}
			}
		}
	}
	t.Fatalf("cell %s %s %s not found", day, slot, year)
	return Cell{}
}

func optionFor(cell Cell, teacherID int64) TeacherOption {
	for _, opt := range cell.TeacherOptions {
		if opt.ID == teacherID {
			return opt
		}
	}
	return TeacherOption{}
}

func TestBuildScheduleShape(t *testing.T) {
	schedule := BuildSchedule(nil, nil)

	require.Len(t, schedule, len(Weekdays))
	for i, day := range schedule {
		assert.Equal(t, Weekdays[i], day.Day)
		require.Len(t, day.Rows, len(TimeRows))
		for j, row := range day.Rows {
			assert.Equal(t, TimeRows[j].Slot, row.Slot)
			if row.IsLunch {
				assert.Empty(t, row.Cells)
				continue
			}
			require.Len(t, row.Cells, len(YearGroups))
			for k, cell := range row.Cells {
				assert.Equal(t, YearGroups[k], cell.YearGroup)
				assert.Nil(t, cell.SessionID)
			}
		}
	}
}

func TestBuildScheduleTeacherOptions(t *testing.T) {
	teachers := []models.Teacher{
		{ID: 1, Name: "Ann", FreeSlots: "Mon 08:00-09:00", Skills: []models.Skill{{ID: 1, Name: "Math"}}},
		{ID: 2, Name: "Bob", FreeSlots: DefaultFreeSlots(), Skills: []models.Skill{{ID: 1, Name: "Math"}, {ID: 2, Name: "Art"}}},
		{ID: 3, Name: "Cy", FreeSlots: DefaultFreeSlots()},
	}
	sessions := []models.Session{
		session(10, 1, "Monday", "08:00-09:00", "Grade 1", ptr(1)),
		session(11, 2, "Monday", "08:00-09:00", "Grade 2", nil),
		session(12, 2, "Monday", "08:00-09:00", "Grade 2", ptr(2)),
	}

	schedule := BuildSchedule(teachers, sessions)

	first := findCell(t, schedule, "Monday", "08:00-09:00", "Grade 1")
	require.NotNil(t, first.SessionID)
	assert.Equal(t, int64(10), *first.SessionID)
	require.NotNil(t, first.AssignedTeacherName)
	assert.Equal(t, "Ann", *first.AssignedTeacherName)
	ann := optionFor(first, 1)
	assert.True(t, ann.Selected)
	assert.False(t, ann.Busy)
	assert.True(t, ann.Selectable)
	bob := optionFor(first, 2)
	assert.True(t, bob.Busy, "Bob teaches Grade 2 in the same hour")
	assert.False(t, bob.Selectable)
	assert.Equal(t, "Math, Art", bob.Skills)
	cy := optionFor(first, 3)
	assert.False(t, cy.HasSkill)
	assert.Equal(t, "No skills", cy.Skills)

	second := findCell(t, schedule, "Monday", "08:00-09:00", "Grade 2")
	require.NotNil(t, second.SessionID)
	assert.Equal(t, int64(11), *second.SessionID)
	assert.Nil(t, second.AssignedTeacherID)
	assert.True(t, optionFor(second, 1).Busy)
	assert.False(t, optionFor(second, 1).HasSkill)

	empty := findCell(t, schedule, "Tuesday", "09:00-10:00", "Grade 3")
	assert.Nil(t, empty.RequiredSkillID)
	assert.False(t, optionFor(empty, 1).Available)
	assert.True(t, optionFor(empty, 3).HasSkill)
	assert.True(t, optionFor(empty, 3).Selectable)
}

func TestBuildScheduleDoesNotMutate(t *testing.T) {
	sessions := []models.Session{session(1, 1, "Monday", "08:00-09:00", "Grade 1", ptr(5))}
	_ = BuildSchedule([]models.Teacher{{ID: 5, Name: "E"}}, sessions)
	require.NotNil(t, sessions[0].TeacherID)
	assert.Equal(t, int64(5), *sessions[0].TeacherID)
}

func TestCountUnassigned(t *testing.T) {
	sessions := []models.Session{
		session(1, 1, "Monday", "08:00-09:00", "Grade 1", nil),
		session(2, 1, "Monday", "09:00-10:00", "Grade 1", ptr(1)),
		session(3, 1, "", "09:00-10:00", "", nil),
	}
	assert.Equal(t, 1, CountUnassigned(sessions))
}

func TestCheckManualAssignment(t *testing.T) {
	tch := teacher(1, "Ann", "Mon 08:00-09:00", 1)

	assert.NoError(t, CheckManualAssignment(tch, 1, "Monday", "08:00-09:00"))
	assert.ErrorIs(t, CheckManualAssignment(tch, 1, "Monday", "09:00-10:00"), ErrUnavailable)
	assert.ErrorIs(t, CheckManualAssignment(tch, 2, "Monday", "08:00-09:00"), ErrMissingSkill)
}
