package models

// RoomType distinguishes lecture rooms from laboratories.
type RoomType string

const (
	RoomLecture RoomType = "LECTURE"
	RoomLab     RoomType = "LAB"
)

// Classroom is a bookable room with per-block availability.
type Classroom struct {
	ID         string   `db:"id" json:"id"`
	Code       string   `db:"code" json:"code"`
	Capacity   int      `db:"capacity" json:"capacity"`
	Type       RoomType `db:"type" json:"type"`
	BuildingID string   `db:"building_id" json:"building_id"`
	// AvailableBlocks holds ids of time blocks the room is open for.
	AvailableBlocks []string `db:"-" json:"available_blocks"`
}

// HasBlock reports whether the room is available at the given block.
func (c Classroom) HasBlock(blockID string) bool {
	for _, id := range c.AvailableBlocks {
		if id == blockID {
			return true
		}
	}
	return false
}

// Professor carries the scheduling-relevant snapshot of a teaching user.
type Professor struct {
	ID              string   `db:"id" json:"id"`
	Name            string   `db:"name" json:"name"`
	MaxWeeklyHours  float64  `db:"max_weekly_hours" json:"max_weekly_hours"`
	AvailableBlocks []string `db:"-" json:"available_blocks"`
}
