package optimizer

import (
	"math"

	"github.com/samber/lo"

	"github.com/uniplan/enrollment-api/internal/models"
)

// Score is the higher-is-better fitness of a candidate personal schedule.
// It is deliberately a distinct type from Cost: the two evaluators have
// opposite polarity and must not be mixed.
type Score float64

// EmptyScheduleScore is the sentinel returned for a schedule with no
// sections. It is the only negative value the evaluator produces.
const EmptyScheduleScore Score = -1000

const (
	baseScore          = 100.0
	coverageWeight     = 200.0
	shiftWeight        = 30.0
	avoidDayPenalty    = 10.0
	conflictPenalty    = 100.0
	compactDialPacked  = 7
	compactDialSpread  = 3
	defaultCompactDial = 5
)

// Evaluator scores candidate personal schedules against a student's
// selection set and preference profile.
type Evaluator struct {
	catalog       []models.TimeBlock
	totalSubjects int
	pref          *models.PreferenceProfile
}

// NewEvaluator builds a fitness evaluator. pref may be nil, meaning
// neutral preferences (dial 5, no shift, no avoided days).
func NewEvaluator(catalog []models.TimeBlock, totalSubjects int, pref *models.PreferenceProfile) *Evaluator {
	return &Evaluator{catalog: catalog, totalSubjects: totalSubjects, pref: pref}
}

// Score computes the additive fitness of a section set. The result is
// floored at zero; only the empty-schedule sentinel is negative.
func (e *Evaluator) Score(sections []models.Section) Score {
	if len(sections) == 0 {
		return EmptyScheduleScore
	}

	score := baseScore
	score += e.coverageScore(sections)
	score += e.shiftScore(sections)
	score += e.compactnessScore(sections)
	score -= e.avoidedDayPenalty(sections)
	score -= float64(BuildMatrix(e.catalog, sections).ConflictCount()) * conflictPenalty
	score += e.capacityScore(sections)
	score += e.distributionScore(sections)

	return Score(math.Max(0, score))
}

func (e *Evaluator) coverageScore(sections []models.Section) float64 {
	if e.totalSubjects <= 0 {
		return 0
	}
	covered := lo.UniqBy(sections, func(s models.Section) string { return s.SubjectID })
	return float64(len(covered)) / float64(e.totalSubjects) * coverageWeight
}

func (e *Evaluator) shiftScore(sections []models.Section) float64 {
	if e.pref == nil || e.pref.PreferredShift == "" {
		return 0
	}
	matches, total := 0, 0
	for _, section := range sections {
		for _, placement := range section.Placements {
			if placement.Shift == e.pref.PreferredShift {
				matches++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matches) / float64(total) * shiftWeight
}

func (e *Evaluator) compactnessScore(sections []models.Section) float64 {
	dial := defaultCompactDial
	if e.pref != nil && e.pref.Compactness > 0 {
		dial = e.pref.Compactness
	}
	if dial > compactDialSpread && dial < compactDialPacked {
		return 0
	}

	score := 0.0
	for _, placements := range placementsByDay(sections) {
		if len(placements) < 2 {
			continue
		}
		first := lo.MinBy(placements, func(a, b models.TimePlacement) bool { return a.StartMin < b.StartMin })
		last := lo.MaxBy(placements, func(a, b models.TimePlacement) bool { return a.EndMin > b.EndMin })
		spanHours := float64(last.EndMin-first.StartMin) / 60.0

		if dial >= compactDialPacked {
			score += math.Max(0, 20-spanHours*5)
		} else {
			score += spanHours * 2
		}
	}
	return score
}

func (e *Evaluator) avoidedDayPenalty(sections []models.Section) float64 {
	if e.pref == nil || len(e.pref.AvoidDays) == 0 {
		return 0
	}
	penalty := 0.0
	for _, section := range sections {
		for _, placement := range section.Placements {
			if e.pref.AvoidsDay(placement.Day) {
				penalty += avoidDayPenalty
			}
		}
	}
	return penalty
}

func (e *Evaluator) capacityScore(sections []models.Section) float64 {
	score := 0.0
	for _, section := range sections {
		switch ratio := section.OccupancyRatio(); {
		case ratio < 30:
			score += 10
		case ratio < 60:
			score += 5
		case ratio < 80:
			score += 2
		default:
			score -= 5
		}
	}
	return score
}

func (e *Evaluator) distributionScore(sections []models.Section) float64 {
	byDay := placementsByDay(sections)
	if len(byDay) == 0 {
		return 0
	}
	total := lo.SumBy(lo.Values(byDay), func(p []models.TimePlacement) int { return len(p) })
	mean := float64(total) / float64(len(byDay))

	score := 0.0
	for _, placements := range byDay {
		score += math.Max(0, 5-math.Abs(float64(len(placements))-mean))
	}
	return score
}

func placementsByDay(sections []models.Section) map[models.Weekday][]models.TimePlacement {
	all := lo.FlatMap(sections, func(s models.Section, _ int) []models.TimePlacement { return s.Placements })
	return lo.GroupBy(all, func(p models.TimePlacement) models.Weekday { return p.Day })
}
