package models

// TimeBlock is a catalog slot against which room and professor
// availability is declared. Placements reference blocks by id.
type TimeBlock struct {
	ID       string  `db:"id" json:"id"`
	Day      Weekday `db:"day_of_week" json:"day_of_week"`
	StartMin int     `db:"start_min" json:"start_min"`
	EndMin   int     `db:"end_min" json:"end_min"`
	Shift    Shift   `db:"shift" json:"shift"`
}

// Hours returns the block duration in hours.
func (b TimeBlock) Hours() float64 {
	return float64(b.EndMin-b.StartMin) / 60.0
}
