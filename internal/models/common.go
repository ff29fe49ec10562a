package models

import "strings"

// Pagination describes list metadata shared across endpoints.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Weekday identifies the day a placement or block falls on.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

var weekdays = map[string]Weekday{
	"MONDAY":    Monday,
	"TUESDAY":   Tuesday,
	"WEDNESDAY": Wednesday,
	"THURSDAY":  Thursday,
	"FRIDAY":    Friday,
	"SATURDAY":  Saturday,
	"SUNDAY":    Sunday,
}

// ParseWeekday normalises a day name; the bool reports whether it is known.
func ParseWeekday(raw string) (Weekday, bool) {
	day, ok := weekdays[strings.ToUpper(strings.TrimSpace(raw))]
	return day, ok
}

// Shift labels the portion of the day a time block belongs to.
type Shift string

const (
	ShiftMorning   Shift = "MORNING"
	ShiftAfternoon Shift = "AFTERNOON"
	ShiftEvening   Shift = "EVENING"
)

// ShiftOrder ranks shifts for greedy placement (earlier preferred).
func ShiftOrder(s Shift) int {
	switch s {
	case ShiftMorning:
		return 0
	case ShiftAfternoon:
		return 1
	case ShiftEvening:
		return 2
	default:
		return 3
	}
}
