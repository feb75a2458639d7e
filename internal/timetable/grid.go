package timetable

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// CellKey addresses one grid cell.
type CellKey struct {
	Day       string
	Slot      string
	YearGroup string
}

// HourKey addresses one teaching hour across all year groups.
type HourKey struct {
	Day  string
	Slot string
}

type teacherHourKey struct {
	HourKey
	TeacherID int64
}

// OnGrid reports whether the session sits inside the fixed grid vocabulary.
func OnGrid(s models.Session) bool {
	return IsGridCell(s.Day, s.Slot, s.YearGroup)
}

// GridSessions keeps only sessions inside the fixed grid vocabulary.
func GridSessions(sessions []models.Session) []models.Session {
	out := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if OnGrid(s) {
			out = append(out, s)
		}
	}
	return out
}

// RepairPlan lists the writes that restore one session per cell and one
// teacher per hour.
type RepairPlan struct {
	// Deleted holds ids of duplicate sessions merged into their cell's canonical session.
	Deleted []int64
	// Updated holds surviving sessions whose assigned teacher changed.
	Updated []models.Session
	// Sessions is the repaired grid ordered by id.
	Sessions         []models.Session
	Removed          int
	ConflictsCleared int
}

// Empty reports whether the grid was already consistent.
func (p RepairPlan) Empty() bool {
	return len(p.Deleted) == 0 && len(p.Updated) == 0
}

// CollapseCell merges sessions sharing a cell. The lowest id survives; when it has
// no teacher it inherits the first duplicate's teacher. Returned ids are the
// duplicates to delete.
func CollapseCell(matches []models.Session) (models.Session, []int64) {
	ordered := sortedByID(matches)
	keep := ordered[0]
	duplicates := make([]int64, 0, len(ordered)-1)
	for _, extra := range ordered[1:] {
		if keep.TeacherID == nil && extra.TeacherID != nil {
			teacherID := *extra.TeacherID
			keep.TeacherID = &teacherID
		}
		duplicates = append(duplicates, extra.ID)
	}
	return keep, duplicates
}

// DedupeGrid computes the repair plan for the grid sessions among sessions.
// Running it on its own output yields an empty plan.
func DedupeGrid(sessions []models.Session) RepairPlan {
	grid := sortedByID(GridSessions(sessions))
	original := make(map[int64]*int64, len(grid))
	for _, s := range grid {
		original[s.ID] = s.TeacherID
	}

	cells := make(map[CellKey][]models.Session)
	order := make([]CellKey, 0, len(grid))
	for _, s := range grid {
		key := CellKey{Day: s.Day, Slot: s.Slot, YearGroup: s.YearGroup}
		if _, seen := cells[key]; !seen {
			order = append(order, key)
		}
		cells[key] = append(cells[key], s)
	}

	plan := RepairPlan{}
	survivors := make([]models.Session, 0, len(order))
	for _, key := range order {
		keep, duplicates := CollapseCell(cells[key])
		plan.Deleted = append(plan.Deleted, duplicates...)
		survivors = append(survivors, keep)
	}
	plan.Removed = len(plan.Deleted)
	survivors = sortedByID(survivors)

	holders := make(map[teacherHourKey]struct{})
	for i := range survivors {
		s := &survivors[i]
		if s.TeacherID == nil {
			continue
		}
		key := teacherHourKey{HourKey: HourKey{Day: s.Day, Slot: s.Slot}, TeacherID: *s.TeacherID}
		if _, taken := holders[key]; taken {
			s.TeacherID = nil
			plan.ConflictsCleared++
			continue
		}
		holders[key] = struct{}{}
	}

	for _, s := range survivors {
		if !models.SameTeacher(original[s.ID], s.TeacherID) {
			plan.Updated = append(plan.Updated, s)
		}
	}
	plan.Sessions = survivors
	return plan
}

func sortedByID(sessions []models.Session) []models.Session {
	out := make([]models.Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
