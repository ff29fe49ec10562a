package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/models"
)

// AnnealConfig tunes the institution-wide search.
type AnnealConfig struct {
	MaxIterations      int
	InitialTemperature float64
	CoolingRate        float64
	Timeout            time.Duration
	// Seed makes the run reproducible when non-zero.
	Seed int64
}

// DefaultAnnealConfig returns the standard annealing parameters.
func DefaultAnnealConfig() AnnealConfig {
	return AnnealConfig{
		MaxIterations:      10000,
		InitialTemperature: 1000,
		CoolingRate:        0.995,
		Timeout:            30 * time.Second,
	}
}

// Validate rejects malformed parameters before a run starts.
func (c AnnealConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("maxIterations must be positive, got %d", c.MaxIterations)
	}
	if c.InitialTemperature <= 0 {
		return fmt.Errorf("initialTemperature must be positive, got %g", c.InitialTemperature)
	}
	if c.CoolingRate <= 0 || c.CoolingRate >= 1 {
		return fmt.Errorf("coolingRate must be within (0, 1), got %g", c.CoolingRate)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// InstitutionResult is the best institution-wide schedule found by an
// annealing run. Unassigned lists sections the search could not place;
// they carry their penalty in Cost but produce no assignment.
type InstitutionResult struct {
	Assignments []Assignment `json:"assignments"`
	Cost        float64      `json:"cost"`
	Breakdown   Breakdown    `json:"breakdown"`
	Unassigned  []string     `json:"unassigned,omitempty"`
	Iterations  int          `json:"iterations"`
	TimedOut    bool         `json:"timed_out"`
}

// Annealer searches for a low-cost institution schedule by simulated
// annealing over room/block assignments. Each instance owns its state and
// random generator; not safe for concurrent reuse.
type Annealer struct {
	cfg     AnnealConfig
	problem InstitutionProblem
	model   *CostModel
	rng     *rand.Rand
	logger  *zap.Logger
}

// NewAnnealer validates the config and weights and prepares a run.
func NewAnnealer(problem InstitutionProblem, cfg AnnealConfig, weights Weights, logger *zap.Logger) (*Annealer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := NewCostModel(problem, weights)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Annealer{
		cfg:     cfg,
		problem: problem,
		model:   model,
		rng:     rand.New(rand.NewSource(seed)),
		logger:  logger,
	}, nil
}

// Run executes the annealing loop. Hitting the timeout is a normal
// termination, reported via TimedOut; context cancellation likewise stops
// the loop at the next iteration boundary. The incumbent is returned in
// every case.
func (a *Annealer) Run(ctx context.Context) *InstitutionResult {
	deadline := time.Now().Add(a.cfg.Timeout)

	current := a.greedyInitial()
	currentCost, _ := a.model.Evaluate(current)
	best := current.Clone()
	bestCost := currentCost

	temperature := a.cfg.InitialTemperature
	iterations := 0
	timedOut := false

loop:
	for ; iterations < a.cfg.MaxIterations; iterations++ {
		select {
		case <-ctx.Done():
			a.logger.Info("annealing cancelled", zap.Int("iteration", iterations))
			break loop
		default:
		}
		if time.Now().After(deadline) {
			timedOut = true
			a.logger.Info("annealing timed out", zap.Int("iteration", iterations))
			break
		}

		neighbor := a.neighbor(current)
		neighborCost, _ := a.model.Evaluate(neighbor)

		if a.accept(currentCost, neighborCost, temperature) {
			current = neighbor
			currentCost = neighborCost
			if currentCost < bestCost {
				best = current.Clone()
				bestCost = currentCost
				a.logger.Debug("new incumbent",
					zap.Int("iteration", iterations+1),
					zap.Float64("cost", float64(bestCost)))
			}
		}
		temperature *= a.cfg.CoolingRate
	}

	finalCost, breakdown := a.model.Evaluate(best)
	result := &InstitutionResult{
		Assignments: a.sortedAssignments(best),
		Cost:        float64(finalCost),
		Breakdown:   breakdown,
		Unassigned:  a.unassigned(best),
		Iterations:  iterations,
		TimedOut:    timedOut,
	}
	a.logger.Info("annealing finished",
		zap.Float64("cost", result.Cost),
		zap.Int("assignments", len(result.Assignments)),
		zap.Int("unassigned", len(result.Unassigned)),
		zap.Int("iterations", iterations))
	return result
}

// accept implements the Metropolis criterion: improvements always, uphill
// moves with probability exp(-delta/temperature).
func (a *Annealer) accept(current, candidate Cost, temperature float64) bool {
	if candidate < current {
		return true
	}
	if temperature <= 0 {
		return false
	}
	delta := float64(candidate - current)
	return a.rng.Float64() < math.Exp(-delta/temperature)
}

// greedyInitial builds the starting solution: sections in descending
// enrollment order, each taking the smallest room that fits and the
// earliest free block its professor can teach. Sections with no feasible
// combination stay unassigned.
func (a *Annealer) greedyInitial() Solution {
	sections := make([]models.Section, len(a.problem.Sections))
	copy(sections, a.problem.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Enrolled > sections[j].Enrolled
	})

	roomsBySize := make([]models.Classroom, len(a.problem.Classrooms))
	copy(roomsBySize, a.problem.Classrooms)
	sort.SliceStable(roomsBySize, func(i, j int) bool {
		return roomsBySize[i].Capacity < roomsBySize[j].Capacity
	})

	type roomBlock struct{ roomID, blockID string }
	usedRoomBlock := map[roomBlock]bool{}
	usedProfBlock := map[string]bool{}

	solution := make(Solution, len(sections))
	for _, section := range sections {
		placed := false
		for _, room := range roomsBySize {
			if room.Capacity < section.Enrolled {
				continue
			}
			if section.RequiresLab != (room.Type == models.RoomLab) {
				continue
			}
			for _, block := range a.blocksByShift(section.ProfessorID) {
				if usedRoomBlock[roomBlock{room.ID, block.ID}] {
					continue
				}
				if usedProfBlock[section.ProfessorID+"/"+block.ID] {
					continue
				}
				if !room.HasBlock(block.ID) {
					continue
				}
				solution[section.ID] = Assignment{
					SectionID:   section.ID,
					ClassroomID: room.ID,
					BlockID:     block.ID,
				}
				usedRoomBlock[roomBlock{room.ID, block.ID}] = true
				usedProfBlock[section.ProfessorID+"/"+block.ID] = true
				placed = true
				break
			}
			if placed {
				break
			}
		}
	}
	return solution
}

// blocksByShift returns the professor's available blocks ordered
// morning, afternoon, evening, then by start time. Professors without an
// availability list get the whole catalog.
func (a *Annealer) blocksByShift(professorID string) []models.TimeBlock {
	blocks := a.problem.Catalog
	if prof, ok := a.model.professors[professorID]; ok && len(prof.AvailableBlocks) > 0 {
		blocks = lo.Filter(a.problem.Catalog, func(b models.TimeBlock, _ int) bool {
			return lo.Contains(prof.AvailableBlocks, b.ID)
		})
	}
	sorted := make([]models.TimeBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := models.ShiftOrder(sorted[i].Shift), models.ShiftOrder(sorted[j].Shift)
		if si != sj {
			return si < sj
		}
		return sorted[i].StartMin < sorted[j].StartMin
	})
	return sorted
}

// neighbor copies the solution and applies one to three random mutations:
// replace a room, replace a block, or swap two sections' blocks.
func (a *Annealer) neighbor(current Solution) Solution {
	next := current.Clone()
	assigned := lo.Keys(next)
	if len(assigned) == 0 {
		return next
	}
	sort.Strings(assigned)

	mutations := 1 + a.rng.Intn(3)
	for i := 0; i < mutations; i++ {
		switch a.rng.Intn(3) {
		case 0:
			a.mutateRoom(next, assigned)
		case 1:
			a.mutateBlock(next, assigned)
		default:
			a.swapBlocks(next, assigned)
		}
	}
	return next
}

func (a *Annealer) mutateRoom(sol Solution, assigned []string) {
	if len(a.problem.Classrooms) == 0 {
		return
	}
	id := assigned[a.rng.Intn(len(assigned))]
	assignment := sol[id]
	assignment.ClassroomID = a.problem.Classrooms[a.rng.Intn(len(a.problem.Classrooms))].ID
	sol[id] = assignment
}

func (a *Annealer) mutateBlock(sol Solution, assigned []string) {
	id := assigned[a.rng.Intn(len(assigned))]
	section, ok := a.model.sections[id]
	if !ok {
		return
	}
	blocks := a.blocksByShift(section.ProfessorID)
	if len(blocks) == 0 {
		return
	}
	assignment := sol[id]
	assignment.BlockID = blocks[a.rng.Intn(len(blocks))].ID
	sol[id] = assignment
}

func (a *Annealer) swapBlocks(sol Solution, assigned []string) {
	if len(assigned) < 2 {
		return
	}
	i := a.rng.Intn(len(assigned))
	j := a.rng.Intn(len(assigned))
	if i == j {
		return
	}
	first, second := sol[assigned[i]], sol[assigned[j]]
	first.BlockID, second.BlockID = second.BlockID, first.BlockID
	sol[assigned[i]] = first
	sol[assigned[j]] = second
}

func (a *Annealer) sortedAssignments(sol Solution) []Assignment {
	assignments := lo.Values(sol)
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].SectionID < assignments[j].SectionID
	})
	return assignments
}

func (a *Annealer) unassigned(sol Solution) []string {
	var missing []string
	for _, section := range a.problem.Sections {
		if _, ok := sol[section.ID]; !ok {
			missing = append(missing, section.ID)
		}
	}
	sort.Strings(missing)
	return missing
}
