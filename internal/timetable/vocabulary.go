// Package timetable holds the allocation and grid-consistency engine. It is pure:
// callers load teachers and sessions, call into the package, then persist the result.
package timetable

import (
	"fmt"
	"strings"
)

// Weekdays is the fixed, ordered day axis of the grid.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

var dayShort = map[string]string{
	"Monday":    "Mon",
	"Tuesday":   "Tue",
	"Wednesday": "Wed",
	"Thursday":  "Thu",
	"Friday":    "Fri",
}

// TimeRow is one row of the daily grid. Lunch rows never host sessions.
type TimeRow struct {
	Slot    string `json:"slot" yaml:"slot"`
	IsLunch bool   `json:"is_lunch" yaml:"is_lunch"`
}

// TimeRows lists every display row in time order.
var TimeRows = []TimeRow{
	{Slot: "08:00-09:00"},
	{Slot: "09:00-10:00"},
	{Slot: "10:00-11:00"},
	{Slot: "11:00-12:00"},
	{Slot: "12:00-13:00", IsLunch: true},
	{Slot: "13:00-14:00"},
	{Slot: "14:00-15:00"},
}

// TeachingSlots are the non-lunch rows.
var TeachingSlots = teachingSlots()

// YearGroups is the fixed, ordered year-group axis.
var YearGroups = []string{"Grade 1", "Grade 2", "Grade 3", "Grade 4", "Grade 5"}

// LegacyYearGroups maps labels stored by older releases onto YearGroups.
var LegacyYearGroups = map[string]string{
	"First":  "Grade 1",
	"Second": "Grade 2",
	"Third":  "Grade 3",
	"Fourth": "Grade 4",
	"Fifth":  "Grade 5",
}

var (
	dayOrder  = indexOf(Weekdays)
	slotOrder = indexOf(TeachingSlots)
	yearOrder = indexOf(YearGroups)
)

func teachingSlots() []string {
	slots := make([]string, 0, len(TimeRows))
	for _, row := range TimeRows {
		if !row.IsLunch {
			slots = append(slots, row.Slot)
		}
	}
	return slots
}

func indexOf(values []string) map[string]int {
	out := make(map[string]int, len(values))
	for i, v := range values {
		out[v] = i
	}
	return out
}

// IsGridCell reports whether all three coordinates belong to the fixed vocabulary.
func IsGridCell(day, slot, yearGroup string) bool {
	_, okDay := dayOrder[day]
	_, okSlot := slotOrder[slot]
	_, okYear := yearOrder[yearGroup]
	return okDay && okSlot && okYear
}

// ParseActiveDay returns raw when it names a weekday, Monday otherwise.
func ParseActiveDay(raw string) string {
	if _, ok := dayOrder[raw]; ok {
		return raw
	}
	return Weekdays[0]
}

// DefaultFreeSlots declares availability for every teaching slot of the week.
func DefaultFreeSlots() string {
	slots := make([]string, 0, len(Weekdays)*len(TeachingSlots))
	for _, day := range Weekdays {
		for _, slot := range TeachingSlots {
			slots = append(slots, fmt.Sprintf("%s %s", dayShort[day], slot))
		}
	}
	return strings.Join(slots, ", ")
}
