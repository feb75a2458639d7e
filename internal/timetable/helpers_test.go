package timetable

import "github.com/noah-isme/sma-timetable-api/internal/models"

func ptr(v int64) *int64 {
	return &v
}

func session(id int64, skill int64, day, slot, year string, teacher *int64) models.Session {
	return models.Session{ID: id, RequiredSkillID: skill, Day: day, Slot: slot, YearGroup: year, TeacherID: teacher}
}

func teacher(id int64, name, freeSlots string, skills ...int64) models.Teacher {
	t := models.Teacher{ID: id, Name: name, FreeSlots: freeSlots}
	for _, skill := range skills {
		t.Skills = append(t.Skills, models.Skill{ID: skill, Name: "skill"})
	}
	return t
}

func assertGridInvariants(sessions []models.Session) (cellDupes, hourDupes int) {
	cells := map[CellKey]int{}
	hours := map[teacherHourKey]int{}
	for _, s := range sessions {
		if !OnGrid(s) {
			continue
		}
		cells[CellKey{Day: s.Day, Slot: s.Slot, YearGroup: s.YearGroup}]++
		if s.TeacherID != nil {
			hours[teacherHourKey{HourKey: HourKey{Day: s.Day, Slot: s.Slot}, TeacherID: *s.TeacherID}]++
		}
	}
	for _, n := range cells {
		if n > 1 {
			cellDupes++
		}
	}
	for _, n := range hours {
		if n > 1 {
			hourDupes++
		}
	}
	return cellDupes, hourDupes
}
