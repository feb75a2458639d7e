package timetable

import (
	"regexp"
	"strings"
)

var multiValueSeparator = regexp.MustCompile(`[|;,]`)

// SplitMultiValue splits a free-form list on commas, semicolons or pipes,
// trimming items and dropping empty ones.
func SplitMultiValue(value string) []string {
	text := strings.TrimSpace(value)
	if text == "" {
		return nil
	}
	parts := multiValueSeparator.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Normalize lowercases and collapses runs of Unicode whitespace, including
// no-break spaces, to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// NormalizeSlotList rewrites a raw declaration as a ", " separated list.
func NormalizeSlotList(raw string) string {
	return strings.Join(SplitMultiValue(raw), ", ")
}

// Availability is the canonical token set of one teacher's free-time declaration.
type Availability map[string]struct{}

// ParseAvailability builds the token set once so later lookups never re-parse.
func ParseAvailability(raw string) Availability {
	tokens := SplitMultiValue(raw)
	set := make(Availability, len(tokens))
	for _, token := range tokens {
		set[Normalize(token)] = struct{}{}
	}
	return set
}

// IsAvailable reports whether any declared token matches an alias of (day, slot).
func (a Availability) IsAvailable(day, slot string) bool {
	if len(a) == 0 {
		return false
	}
	for _, alias := range SlotAliases(day, slot) {
		if _, ok := a[alias]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of distinct tokens.
func (a Availability) Len() int {
	return len(a)
}

// SlotAliases lists the accepted spellings of (day, slot), already normalized:
// full or short day name combined with the full slot, its start time, the
// start time without a leading zero, or the full slot with that shorter start.
func SlotAliases(day, slot string) []string {
	start, end, hasEnd := strings.Cut(slot, "-")
	shortStart := strings.TrimPrefix(start, "0")
	times := []string{slot, start, shortStart}
	if hasEnd {
		times = append(times, shortStart+"-"+end)
	}

	days := []string{day}
	if short, ok := dayShort[day]; ok {
		days = append(days, short)
	}

	seen := make(map[string]struct{}, len(days)*len(times))
	aliases := make([]string, 0, len(days)*len(times))
	for _, d := range days {
		for _, t := range times {
			alias := Normalize(d + " " + t)
			if _, dup := seen[alias]; dup {
				continue
			}
			seen[alias] = struct{}{}
			aliases = append(aliases, alias)
		}
	}
	return aliases
}
