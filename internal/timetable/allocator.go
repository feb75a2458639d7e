package timetable

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// AllocationOutcome is the result of one greedy pass over the grid.
type AllocationOutcome struct {
	// Sessions are the grid sessions in processing order carrying their new teacher.
	Sessions   []models.Session
	Assigned   int
	Unassigned int
	// UnfilledIDs lists sessions no eligible teacher could take.
	UnfilledIDs []int64
	// Loads counts sessions per teacher id for this run.
	Loads map[int64]int
}

type candidate struct {
	teacher      models.Teacher
	sortName     string
	skills       map[int64]struct{}
	availability Availability
}

// Allocate assigns teachers to every grid session from scratch. Sessions are
// visited in (day, slot, year group) order and each takes the eligible teacher
// with the lowest load so far, ties broken by case-insensitive name then id.
// A teacher is eligible when they hold the required skill, declared the hour
// free and are not yet placed in that hour. The inputs are not modified.
func Allocate(teachers []models.Teacher, sessions []models.Session) AllocationOutcome {
	ordered := SortForAllocation(GridSessions(sessions))

	pool := make([]candidate, len(teachers))
	loads := make(map[int64]int, len(teachers))
	for i, t := range teachers {
		pool[i] = candidate{
			teacher:      t,
			sortName:     strings.ToLower(t.Name),
			skills:       t.SkillIDs(),
			availability: ParseAvailability(t.FreeSlots),
		}
		loads[t.ID] = 0
	}

	busy := make(map[HourKey]map[int64]struct{})
	outcome := AllocationOutcome{Sessions: ordered, Loads: loads}

	for i := range ordered {
		session := &ordered[i]
		session.TeacherID = nil
		hour := HourKey{Day: session.Day, Slot: session.Slot}

		var best *candidate
		for j := range pool {
			c := &pool[j]
			if _, ok := c.skills[session.RequiredSkillID]; !ok {
				continue
			}
			if !c.availability.IsAvailable(session.Day, session.Slot) {
				continue
			}
			if _, taken := busy[hour][c.teacher.ID]; taken {
				continue
			}
			if best == nil || preferred(c, best, loads) {
				best = c
			}
		}

		if best == nil {
			outcome.Unassigned++
			outcome.UnfilledIDs = append(outcome.UnfilledIDs, session.ID)
			continue
		}

		teacherID := best.teacher.ID
		session.TeacherID = &teacherID
		if busy[hour] == nil {
			busy[hour] = make(map[int64]struct{})
		}
		busy[hour][teacherID] = struct{}{}
		loads[teacherID]++
		outcome.Assigned++
	}

	return outcome
}

func preferred(a, b *candidate, loads map[int64]int) bool {
	if la, lb := loads[a.teacher.ID], loads[b.teacher.ID]; la != lb {
		return la < lb
	}
	if a.sortName != b.sortName {
		return a.sortName < b.sortName
	}
	return a.teacher.ID < b.teacher.ID
}

// SortForAllocation returns a copy ordered by day, slot and year group, then id.
func SortForAllocation(sessions []models.Session) []models.Session {
	out := make([]models.Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if dayOrder[a.Day] != dayOrder[b.Day] {
			return dayOrder[a.Day] < dayOrder[b.Day]
		}
		if slotOrder[a.Slot] != slotOrder[b.Slot] {
			return slotOrder[a.Slot] < slotOrder[b.Slot]
		}
		if yearOrder[a.YearGroup] != yearOrder[b.YearGroup] {
			return yearOrder[a.YearGroup] < yearOrder[b.YearGroup]
		}
		return a.ID < b.ID
	})
	return out
}
