package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/models"
)

// GeneticConfig tunes the personal-schedule search.
type GeneticConfig struct {
	PopulationSize int
	Generations    int
	MutationRate   float64
	// AllowBootstrapConflicts enables the one-shot initialization fallback:
	// when a fresh individual ends up with zero sections, one subject is
	// filled ignoring conflicts so the individual is non-empty.
	AllowBootstrapConflicts bool
	// Seed makes the run reproducible when non-zero.
	Seed int64
}

// DefaultGeneticConfig returns the standard search parameters.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize:          50,
		Generations:             100,
		MutationRate:            0.1,
		AllowBootstrapConflicts: true,
	}
}

// Validate rejects malformed parameters before a run starts.
func (c GeneticConfig) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("populationSize must be positive, got %d", c.PopulationSize)
	}
	if c.Generations <= 0 {
		return fmt.Errorf("generations must be positive, got %d", c.Generations)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutationRate must be within [0, 1], got %g", c.MutationRate)
	}
	return nil
}

// StudentProblem is the read-only input snapshot of a personal search run.
type StudentProblem struct {
	// SubjectIDs is the student's selection set, in priority order. The
	// order matters: initialization fills subjects greedily in this order.
	SubjectIDs []string
	Candidates []models.Section
	Catalog    []models.TimeBlock
	Preference *models.PreferenceProfile
}

// StudentResult is the best schedule found by a genetic run.
type StudentResult struct {
	Sections        []models.Section `json:"sections"`
	Score           float64          `json:"score"`
	CoveredSubjects int              `json:"covered_subjects"`
	Generations     int              `json:"generations"`
	PopulationSize  int              `json:"population_size"`
}

type individual struct {
	sections []models.Section
	score    Score
}

func (ind individual) coveredSubjects() int {
	return len(lo.UniqBy(ind.sections, func(s models.Section) string { return s.SubjectID }))
}

// GeneticSearch evolves a population of candidate schedules. Each search
// owns its state and random generator; instances are not safe for reuse
// across concurrent runs.
type GeneticSearch struct {
	cfg       GeneticConfig
	problem   StudentProblem
	bySubject map[string][]models.Section
	eval      *Evaluator
	rng       *rand.Rand
	logger    *zap.Logger
}

// NewGeneticSearch validates the config and prepares a search run.
func NewGeneticSearch(problem StudentProblem, cfg GeneticConfig, logger *zap.Logger) (*GeneticSearch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &GeneticSearch{
		cfg:       cfg,
		problem:   problem,
		bySubject: lo.GroupBy(problem.Candidates, func(s models.Section) string { return s.SubjectID }),
		eval:      NewEvaluator(problem.Catalog, len(problem.SubjectIDs), problem.Preference),
		rng:       rand.New(rand.NewSource(seed)),
		logger:    logger,
	}, nil
}

// Run executes the full evolutionary loop and returns the best individual
// ever seen. Context cancellation stops the loop at the next generation
// boundary; the incumbent found so far is returned.
func (g *GeneticSearch) Run(ctx context.Context) *StudentResult {
	population := g.initializePopulation()
	if len(population) == 0 {
		g.logger.Warn("no schedulable individuals, returning empty schedule")
		return &StudentResult{
			Score:          0,
			Generations:    g.cfg.Generations,
			PopulationSize: g.cfg.PopulationSize,
		}
	}

	var best individual
	best.score = EmptyScheduleScore

	for gen := 0; gen < g.cfg.Generations; gen++ {
		select {
		case <-ctx.Done():
			g.logger.Info("genetic search cancelled", zap.Int("generation", gen))
			return g.result(best)
		default:
		}

		for i := range population {
			population[i].score = g.eval.Score(population[i].sections)
		}
		sort.SliceStable(population, func(i, j int) bool {
			return population[i].score > population[j].score
		})

		if population[0].score > best.score {
			best = population[0]
			g.logger.Debug("new incumbent",
				zap.Int("generation", gen+1),
				zap.Float64("score", float64(best.score)))
		}

		next := make([]individual, 0, g.cfg.PopulationSize)
		next = append(next, population[0]) // elitism
		for len(next) < g.cfg.PopulationSize {
			parent1 := g.selectParent(population)
			parent2 := g.selectParent(population)
			child := g.crossover(parent1, parent2)
			g.mutate(&child)
			next = append(next, child)
		}
		population = next
	}

	g.logger.Info("genetic search finished",
		zap.Float64("best_score", float64(best.score)),
		zap.Int("covered_subjects", best.coveredSubjects()))
	return g.result(best)
}

func (g *GeneticSearch) result(best individual) *StudentResult {
	score := float64(best.score)
	if score < 0 {
		score = 0
	}
	return &StudentResult{
		Sections:        best.sections,
		Score:           score,
		CoveredSubjects: best.coveredSubjects(),
		Generations:     g.cfg.Generations,
		PopulationSize:  g.cfg.PopulationSize,
	}
}

func (g *GeneticSearch) initializePopulation() []individual {
	population := make([]individual, 0, g.cfg.PopulationSize)
	for i := 0; i < g.cfg.PopulationSize; i++ {
		ind := g.randomIndividual()
		if len(ind.sections) > 0 {
			population = append(population, ind)
		}
	}
	return population
}

// randomIndividual fills subjects in selection order, choosing uniformly
// among conflict-free candidates and omitting subjects that have none.
func (g *GeneticSearch) randomIndividual() individual {
	var chosen []models.Section
	for _, subjectID := range g.problem.SubjectIDs {
		free := g.conflictFree(subjectID, chosen, "")
		if len(free) == 0 {
			continue
		}
		chosen = append(chosen, free[g.rng.Intn(len(free))])
	}

	// One-shot bootstrap: the first subject with any candidate at all is
	// filled ignoring conflicts, so the individual is never empty.
	if len(chosen) == 0 && g.cfg.AllowBootstrapConflicts {
		for _, subjectID := range g.problem.SubjectIDs {
			candidates := g.bySubject[subjectID]
			if len(candidates) == 0 {
				continue
			}
			chosen = append(chosen, candidates[g.rng.Intn(len(candidates))])
			break
		}
	}
	return individual{sections: chosen}
}

// conflictFree returns the candidates of a subject that fit into chosen,
// excluding excludeID.
func (g *GeneticSearch) conflictFree(subjectID string, chosen []models.Section, excludeID string) []models.Section {
	return lo.Filter(g.bySubject[subjectID], func(s models.Section, _ int) bool {
		if excludeID != "" && s.ID == excludeID {
			return false
		}
		return !HasConflict(s, chosen)
	})
}

// selectParent picks an individual by roulette over the non-negative
// scores; an all-zero population falls back to a uniform pick.
func (g *GeneticSearch) selectParent(population []individual) individual {
	total := 0.0
	for _, ind := range population {
		if ind.score > 0 {
			total += float64(ind.score)
		}
	}
	if total <= 0 {
		return population[g.rng.Intn(len(population))]
	}

	threshold := g.rng.Float64() * total
	cumulative := 0.0
	for _, ind := range population {
		if ind.score > 0 {
			cumulative += float64(ind.score)
		}
		if cumulative >= threshold {
			return ind
		}
	}
	return population[0]
}

// crossover inherits each covered subject from a coin-flipped parent,
// skipping sections that would conflict with ones already accepted, then
// tries to refill any still-uncovered requested subject at random.
func (g *GeneticSearch) crossover(parent1, parent2 individual) individual {
	p1 := sectionsBySubject(parent1.sections)
	p2 := sectionsBySubject(parent2.sections)

	var chosen []models.Section
	covered := make(map[string]bool)
	for _, subjectID := range g.problem.SubjectIDs {
		if _, ok1 := p1[subjectID]; !ok1 {
			if _, ok2 := p2[subjectID]; !ok2 {
				continue
			}
		}
		source := p1
		if g.rng.Float64() > 0.5 {
			source = p2
		}
		section, ok := source[subjectID]
		if !ok {
			continue
		}
		if HasConflict(section, chosen) {
			continue
		}
		chosen = append(chosen, section)
		covered[subjectID] = true
	}

	for _, subjectID := range g.problem.SubjectIDs {
		if covered[subjectID] {
			continue
		}
		free := g.conflictFree(subjectID, chosen, "")
		if len(free) == 0 {
			continue
		}
		chosen = append(chosen, free[g.rng.Intn(len(free))])
		covered[subjectID] = true
	}

	return individual{sections: chosen}
}

// mutate replaces one random section with a conflict-free alternative for
// the same subject, with probability MutationRate. No-op when no
// alternative fits.
func (g *GeneticSearch) mutate(child *individual) {
	if g.rng.Float64() > g.cfg.MutationRate {
		return
	}
	if len(child.sections) == 0 {
		return
	}

	idx := g.rng.Intn(len(child.sections))
	current := child.sections[idx]

	others := make([]models.Section, 0, len(child.sections)-1)
	others = append(others, child.sections[:idx]...)
	others = append(others, child.sections[idx+1:]...)

	alternatives := g.conflictFree(current.SubjectID, others, current.ID)
	if len(alternatives) == 0 {
		return
	}

	mutated := make([]models.Section, len(child.sections))
	copy(mutated, child.sections)
	mutated[idx] = alternatives[g.rng.Intn(len(alternatives))]
	child.sections = mutated
}

func sectionsBySubject(sections []models.Section) map[string]models.Section {
	result := make(map[string]models.Section, len(sections))
	for _, section := range sections {
		result[section.SubjectID] = section
	}
	return result
}
