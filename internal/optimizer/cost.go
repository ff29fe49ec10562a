package optimizer

import (
	"sort"

	"github.com/samber/lo"

	"github.com/uniplan/enrollment-api/internal/models"
)

// Cost is the lower-is-better penalty total of an institution-wide
// schedule. Distinct from Score on purpose; see Score.
type Cost float64

// Weights are the penalty multipliers of the institution cost model. The
// mapstructure tags let callers override individual weights from a plain
// map without touching the rest.
type Weights struct {
	HardConstraint        float64 `mapstructure:"hardConstraint" json:"hard_constraint"`
	ProfessorConflict     float64 `mapstructure:"professorConflict" json:"professor_conflict"`
	ClassroomConflict     float64 `mapstructure:"classroomConflict" json:"classroom_conflict"`
	CapacityViolation     float64 `mapstructure:"capacityViolation" json:"capacity_violation"`
	TypeMismatch          float64 `mapstructure:"typeMismatch" json:"type_mismatch"`
	ProfessorAvailability float64 `mapstructure:"professorAvailability" json:"professor_availability"`
	ClassroomAvailability float64 `mapstructure:"classroomAvailability" json:"classroom_availability"`
	ProfessorMaxHours     float64 `mapstructure:"professorMaxHours" json:"professor_max_hours"`
	Compactness           float64 `mapstructure:"compactness" json:"compactness"`
	Preference            float64 `mapstructure:"preference" json:"preference"`
}

// DefaultWeights returns the standard penalty multipliers.
func DefaultWeights() Weights {
	return Weights{
		HardConstraint:        1000,
		ProfessorConflict:     500,
		ClassroomConflict:     500,
		CapacityViolation:     300,
		TypeMismatch:          200,
		ProfessorAvailability: 400,
		ClassroomAvailability: 400,
		ProfessorMaxHours:     600,
		Compactness:           50,
		Preference:            30,
	}
}

// Validate rejects negative multipliers.
func (w Weights) Validate() error {
	for name, value := range w.asMap() {
		if value < 0 {
			return &negativeWeightError{name: name, value: value}
		}
	}
	return nil
}

func (w Weights) asMap() map[string]float64 {
	return map[string]float64{
		"hardConstraint":        w.HardConstraint,
		"professorConflict":     w.ProfessorConflict,
		"classroomConflict":     w.ClassroomConflict,
		"capacityViolation":     w.CapacityViolation,
		"typeMismatch":          w.TypeMismatch,
		"professorAvailability": w.ProfessorAvailability,
		"classroomAvailability": w.ClassroomAvailability,
		"professorMaxHours":     w.ProfessorMaxHours,
		"compactness":           w.Compactness,
		"preference":            w.Preference,
	}
}

type negativeWeightError struct {
	name  string
	value float64
}

func (e *negativeWeightError) Error() string {
	return "weight " + e.name + " must not be negative"
}

// defaultMaxWeeklyHours applies to professors without an explicit limit.
const defaultMaxWeeklyHours = 20.0

// Assignment places one section into a classroom and a catalog block.
type Assignment struct {
	SectionID   string `json:"section_id"`
	ClassroomID string `json:"classroom_id"`
	BlockID     string `json:"block_id"`
}

// Solution maps section ids to their assignments. Sections absent from
// the map are unassigned and draw the full invalid-assignment penalty.
type Solution map[string]Assignment

// Clone returns an independent copy of the solution.
func (s Solution) Clone() Solution {
	out := make(Solution, len(s))
	for id, a := range s {
		out[id] = a
	}
	return out
}

// InstitutionProblem is the read-only input snapshot of an
// institution-wide run. ProfessorPreferences is keyed by professor id and
// may be sparse.
type InstitutionProblem struct {
	Sections             []models.Section
	Classrooms           []models.Classroom
	Professors           []models.Professor
	Catalog              []models.TimeBlock
	ProfessorPreferences map[string]*models.PreferenceProfile
}

// CostModel evaluates institution-wide schedules. It precomputes lookup
// tables once per run; Evaluate itself is read-only and may be called from
// a single goroutine at a time.
type CostModel struct {
	weights    Weights
	problem    InstitutionProblem
	sections   map[string]models.Section
	rooms      map[string]models.Classroom
	professors map[string]models.Professor
	blocks     map[string]models.TimeBlock
}

// NewCostModel validates the weights and indexes the problem.
func NewCostModel(problem InstitutionProblem, weights Weights) (*CostModel, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &CostModel{
		weights:    weights,
		problem:    problem,
		sections:   lo.KeyBy(problem.Sections, func(s models.Section) string { return s.ID }),
		rooms:      lo.KeyBy(problem.Classrooms, func(c models.Classroom) string { return c.ID }),
		professors: lo.KeyBy(problem.Professors, func(p models.Professor) string { return p.ID }),
		blocks:     lo.KeyBy(problem.Catalog, func(b models.TimeBlock) string { return b.ID }),
	}, nil
}

// Breakdown itemizes an evaluated cost by penalty category.
type Breakdown map[string]float64

// Evaluate computes the total penalty of a solution together with its
// per-category breakdown.
func (m *CostModel) Evaluate(sol Solution) (Cost, Breakdown) {
	breakdown := Breakdown{}
	add := func(category string, amount float64) {
		breakdown[category] += amount
	}

	type roomBlock struct{ roomID, blockID string }
	roomBlockCount := map[roomBlock]int{}
	profBlockCount := map[string]int{}
	profBlocks := map[string][]models.TimeBlock{}

	for _, section := range m.problem.Sections {
		assignment, ok := sol[section.ID]
		if !ok {
			add("hardConstraint", m.weights.HardConstraint*10)
			continue
		}
		room, roomOK := m.rooms[assignment.ClassroomID]
		block, blockOK := m.blocks[assignment.BlockID]
		if !roomOK || !blockOK {
			add("hardConstraint", m.weights.HardConstraint*10)
			continue
		}

		// Mismatch in either direction: labs need lab rooms and lecture
		// sections must not occupy them.
		if section.RequiresLab != (room.Type == models.RoomLab) {
			add("typeMismatch", m.weights.TypeMismatch)
		}
		if shortfall := section.Enrolled - room.Capacity; shortfall > 0 {
			add("capacityViolation", m.weights.CapacityViolation*float64(shortfall))
		}
		if !room.HasBlock(block.ID) {
			add("classroomAvailability", m.weights.ClassroomAvailability)
		}

		roomBlockCount[roomBlock{roomID: room.ID, blockID: block.ID}]++

		professor, profOK := m.professors[section.ProfessorID]
		if profOK {
			if !lo.Contains(professor.AvailableBlocks, block.ID) {
				add("professorAvailability", m.weights.ProfessorAvailability)
			}
			profBlockCount[professor.ID+"/"+block.ID]++
			profBlocks[professor.ID] = append(profBlocks[professor.ID], block)
			m.addPreferencePenalty(add, professor.ID, block)
		}
	}

	for _, count := range roomBlockCount {
		if count > 1 {
			add("classroomConflict", m.weights.ClassroomConflict*float64(count-1))
		}
	}
	for _, count := range profBlockCount {
		if count > 1 {
			add("professorConflict", m.weights.ProfessorConflict*float64(count-1))
		}
	}
	for id, blocks := range profBlocks {
		m.addWorkloadPenalty(add, id, blocks)
		m.addCompactnessPenalty(add, blocks)
	}

	return Cost(lo.Sum(lo.Values(breakdown))), breakdown
}

func (m *CostModel) addPreferencePenalty(add func(string, float64), professorID string, block models.TimeBlock) {
	pref := m.problem.ProfessorPreferences[professorID]
	if pref == nil {
		return
	}
	if pref.PreferredShift != "" && block.Shift != pref.PreferredShift {
		add("preference", m.weights.Preference)
	}
	if pref.AvoidsDay(block.Day) {
		add("preference", m.weights.Preference*2)
	}
}

func (m *CostModel) addWorkloadPenalty(add func(string, float64), professorID string, blocks []models.TimeBlock) {
	limit := defaultMaxWeeklyHours
	if p, ok := m.professors[professorID]; ok && p.MaxWeeklyHours > 0 {
		limit = float64(p.MaxWeeklyHours)
	}
	total := lo.SumBy(blocks, func(b models.TimeBlock) float64 { return b.Hours() })
	if excess := total - limit; excess > 0 {
		add("professorMaxHours", m.weights.ProfessorMaxHours*excess)
	}
}

// addCompactnessPenalty charges idle gaps longer than an hour between a
// professor's consecutive blocks on the same day.
func (m *CostModel) addCompactnessPenalty(add func(string, float64), blocks []models.TimeBlock) {
	for _, day := range lo.GroupBy(blocks, func(b models.TimeBlock) models.Weekday { return b.Day }) {
		if len(day) < 2 {
			continue
		}
		sort.Slice(day, func(i, j int) bool { return day[i].StartMin < day[j].StartMin })
		for i := 1; i < len(day); i++ {
			gapHours := float64(day[i].StartMin-day[i-1].EndMin) / 60.0
			if gapHours > 1 {
				add("compactness", m.weights.Compactness*gapHours)
			}
		}
	}
}
