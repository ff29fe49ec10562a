package models

// TimePlacement is one weekly meeting of a section. Start and End are
// minutes from midnight; [Start, End) intervals on the same day overlap
// when start_a < end_b && start_b < end_a.
type TimePlacement struct {
	ID        string  `db:"id" json:"id"`
	SectionID string  `db:"section_id" json:"section_id"`
	Day       Weekday `db:"day_of_week" json:"day_of_week"`
	StartMin  int     `db:"start_min" json:"start_min"`
	EndMin    int     `db:"end_min" json:"end_min"`
	Shift     Shift   `db:"shift" json:"shift"`
	BlockID   string  `db:"block_id" json:"block_id"`
	RoomID    string  `db:"room_id" json:"room_id,omitempty"`
}

// Hours returns the placement duration in hours.
func (p TimePlacement) Hours() float64 {
	return float64(p.EndMin-p.StartMin) / 60.0
}

// Section is one offered instance of a subject in a term. Capacity and
// Enrolled are read-only snapshots for the duration of a search run.
type Section struct {
	ID          string          `db:"id" json:"id"`
	SubjectID   string          `db:"subject_id" json:"subject_id"`
	SubjectName string          `db:"subject_name" json:"subject_name"`
	RequiresLab bool            `db:"requires_lab" json:"requires_lab"`
	TermID      string          `db:"term_id" json:"term_id"`
	Label       string          `db:"label" json:"label"`
	ProfessorID string          `db:"professor_id" json:"professor_id"`
	Capacity    int             `db:"capacity" json:"capacity"`
	Enrolled    int             `db:"enrolled" json:"enrolled"`
	Placements  []TimePlacement `db:"-" json:"placements"`
}

// OccupancyRatio reports enrolled/capacity in percent; full when capacity is 0.
func (s Section) OccupancyRatio() float64 {
	if s.Capacity <= 0 {
		return 100
	}
	return float64(s.Enrolled) / float64(s.Capacity) * 100
}
