package timetable

import "github.com/noah-isme/sma-timetable-api/internal/models"

// TeacherOption describes one teacher as a manual choice for a cell.
type TeacherOption struct {
	ID         int64  `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Skills     string `json:"skills" yaml:"skills"`
	Selected   bool   `json:"selected" yaml:"selected"`
	Available  bool   `json:"available" yaml:"available"`
	Busy       bool   `json:"busy" yaml:"busy"`
	HasSkill   bool   `json:"has_skill" yaml:"has_skill"`
	Selectable bool   `json:"selectable" yaml:"selectable"`
}

// Cell is one (day, slot, year group) position of the grid.
type Cell struct {
	Day                 string          `json:"day" yaml:"day"`
	Slot                string          `json:"slot" yaml:"slot"`
	YearGroup           string          `json:"year_group" yaml:"year_group"`
	SessionID           *int64          `json:"session_id" yaml:"session_id"`
	RequiredSkillID     *int64          `json:"required_skill_id" yaml:"required_skill_id"`
	AssignedTeacherID   *int64          `json:"assigned_teacher_id" yaml:"assigned_teacher_id"`
	AssignedTeacherName *string         `json:"assigned_teacher_name" yaml:"assigned_teacher_name"`
	TeacherOptions      []TeacherOption `json:"teacher_options" yaml:"teacher_options"`
}

// Row is one time row of a day. Lunch rows carry no cells.
type Row struct {
	Slot    string `json:"slot" yaml:"slot"`
	IsLunch bool   `json:"is_lunch" yaml:"is_lunch"`
	Cells   []Cell `json:"cells" yaml:"cells"`
}

// DaySchedule is the grid of one weekday.
type DaySchedule struct {
	Day  string `json:"day" yaml:"day"`
	Rows []Row  `json:"rows" yaml:"rows"`
}

// BuildSchedule derives the editable grid from the current assignment state.
// It never changes assignments. When a cell holds several sessions the lowest
// id is shown, matching the session DedupeGrid keeps.
func BuildSchedule(teachers []models.Teacher, sessions []models.Session) []DaySchedule {
	lookup := make(map[CellKey]models.Session)
	busy := make(map[HourKey]map[int64]struct{})
	for _, s := range sortedByID(GridSessions(sessions)) {
		key := CellKey{Day: s.Day, Slot: s.Slot, YearGroup: s.YearGroup}
		if _, exists := lookup[key]; !exists {
			lookup[key] = s
		}
		if s.TeacherID != nil {
			hour := HourKey{Day: s.Day, Slot: s.Slot}
			if busy[hour] == nil {
				busy[hour] = make(map[int64]struct{})
			}
			busy[hour][*s.TeacherID] = struct{}{}
		}
	}

	availability := make([]Availability, len(teachers))
	names := make(map[int64]string, len(teachers))
	for i, t := range teachers {
		availability[i] = ParseAvailability(t.FreeSlots)
		names[t.ID] = t.Name
	}

	schedule := make([]DaySchedule, 0, len(Weekdays))
	for _, day := range Weekdays {
		rows := make([]Row, 0, len(TimeRows))
		for _, tr := range TimeRows {
			if tr.IsLunch {
				rows = append(rows, Row{Slot: tr.Slot, IsLunch: true, Cells: []Cell{}})
				continue
			}
			cells := make([]Cell, 0, len(YearGroups))
			for _, year := range YearGroups {
				cell := Cell{Day: day, Slot: tr.Slot, YearGroup: year}
				existing, found := lookup[CellKey{Day: day, Slot: tr.Slot, YearGroup: year}]
				if found {
					sessionID, skillID := existing.ID, existing.RequiredSkillID
					cell.SessionID = &sessionID
					cell.RequiredSkillID = &skillID
					if existing.TeacherID != nil {
						teacherID := *existing.TeacherID
						cell.AssignedTeacherID = &teacherID
						if name, ok := names[teacherID]; ok {
							cell.AssignedTeacherName = &name
						}
					}
				}
				cell.TeacherOptions = teacherOptions(teachers, availability, busy[HourKey{Day: day, Slot: tr.Slot}], cell)
				cells = append(cells, cell)
			}
			rows = append(rows, Row{Slot: tr.Slot, Cells: cells})
		}
		schedule = append(schedule, DaySchedule{Day: day, Rows: rows})
	}
	return schedule
}

func teacherOptions(teachers []models.Teacher, availability []Availability, busyInHour map[int64]struct{}, cell Cell) []TeacherOption {
	options := make([]TeacherOption, 0, len(teachers))
	for i, t := range teachers {
		selected := cell.AssignedTeacherID != nil && *cell.AssignedTeacherID == t.ID
		_, occupied := busyInHour[t.ID]
		busyElsewhere := occupied && !selected
		available := availability[i].IsAvailable(cell.Day, cell.Slot)
		hasSkill := cell.RequiredSkillID == nil || t.HasSkill(*cell.RequiredSkillID)

		options = append(options, TeacherOption{
			ID:         t.ID,
			Name:       t.Name,
			Skills:     t.SkillSummary(),
			Selected:   selected,
			Available:  available,
			Busy:       busyElsewhere,
			HasSkill:   hasSkill,
			Selectable: available && !busyElsewhere && hasSkill,
		})
	}
	return options
}

// CountUnassigned counts grid sessions without a teacher.
func CountUnassigned(sessions []models.Session) int {
	count := 0
	for _, s := range sessions {
		if OnGrid(s) && s.TeacherID == nil {
			count++
		}
	}
	return count
}
