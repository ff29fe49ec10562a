package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniplan/enrollment-api/internal/models"
)

var annealCatalog = []models.TimeBlock{
	{ID: "b1", Day: models.Monday, StartMin: 480, EndMin: 600, Shift: models.ShiftMorning},
	{ID: "b2", Day: models.Monday, StartMin: 600, EndMin: 720, Shift: models.ShiftMorning},
	{ID: "b3", Day: models.Monday, StartMin: 840, EndMin: 960, Shift: models.ShiftAfternoon},
	{ID: "t1", Day: models.Tuesday, StartMin: 480, EndMin: 600, Shift: models.ShiftMorning},
}

var allBlockIDs = []string{"b1", "b2", "b3", "t1"}

func institutionSection(id, professorID string, enrolled int) models.Section {
	return models.Section{
		ID:          id,
		SubjectID:   "sub-" + id,
		ProfessorID: professorID,
		Capacity:    enrolled + 10,
		Enrolled:    enrolled,
	}
}

func feasibleProblem() InstitutionProblem {
	return InstitutionProblem{
		Sections: []models.Section{
			institutionSection("sec-1", "prof-1", 30),
			institutionSection("sec-2", "prof-2", 20),
		},
		Classrooms: []models.Classroom{
			{ID: "room-1", Capacity: 40, Type: models.RoomLecture, AvailableBlocks: allBlockIDs},
			{ID: "room-2", Capacity: 40, Type: models.RoomLecture, AvailableBlocks: allBlockIDs},
		},
		Professors: []models.Professor{
			{ID: "prof-1", AvailableBlocks: allBlockIDs},
			{ID: "prof-2", AvailableBlocks: allBlockIDs},
		},
		Catalog: annealCatalog,
	}
}

func fastAnnealConfig(seed int64) AnnealConfig {
	cfg := DefaultAnnealConfig()
	cfg.MaxIterations = 500
	cfg.Seed = seed
	return cfg
}

func TestAnnealConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AnnealConfig)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *AnnealConfig) {}},
		{name: "zero iterations", mutate: func(c *AnnealConfig) { c.MaxIterations = 0 }, wantErr: true},
		{name: "zero temperature", mutate: func(c *AnnealConfig) { c.InitialTemperature = 0 }, wantErr: true},
		{name: "cooling rate of one", mutate: func(c *AnnealConfig) { c.CoolingRate = 1 }, wantErr: true},
		{name: "negative cooling rate", mutate: func(c *AnnealConfig) { c.CoolingRate = -0.5 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *AnnealConfig) { c.Timeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAnnealConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	bad := DefaultWeights()
	bad.Compactness = -1
	assert.ErrorContains(t, bad.Validate(), "compactness")
}

func TestCostModelCategories(t *testing.T) {
	problem := feasibleProblem()
	weights := DefaultWeights()

	evaluate := func(t *testing.T, problem InstitutionProblem, sol Solution) (Cost, Breakdown) {
		t.Helper()
		model, err := NewCostModel(problem, weights)
		require.NoError(t, err)
		return model.Evaluate(sol)
	}

	feasible := Solution{
		"sec-1": {SectionID: "sec-1", ClassroomID: "room-1", BlockID: "b1"},
		"sec-2": {SectionID: "sec-2", ClassroomID: "room-2", BlockID: "b2"},
	}

	t.Run("feasible solution costs zero", func(t *testing.T) {
		cost, breakdown := evaluate(t, problem, feasible)
		assert.Zero(t, float64(cost))
		assert.Empty(t, breakdown)
	})

	t.Run("unassigned section", func(t *testing.T) {
		sol := feasible.Clone()
		delete(sol, "sec-2")
		_, breakdown := evaluate(t, problem, sol)
		assert.InDelta(t, 10000, breakdown["hardConstraint"], 0.001)
	})

	t.Run("unknown room is a hard violation", func(t *testing.T) {
		sol := feasible.Clone()
		sol["sec-2"] = Assignment{SectionID: "sec-2", ClassroomID: "ghost", BlockID: "b2"}
		_, breakdown := evaluate(t, problem, sol)
		assert.InDelta(t, 10000, breakdown["hardConstraint"], 0.001)
	})

	t.Run("capacity shortfall scales with overflow", func(t *testing.T) {
		p := feasibleProblem()
		p.Sections[0].Enrolled = 45 // room-1 holds 40
		_, breakdown := evaluate(t, p, feasible)
		assert.InDelta(t, 300*5, breakdown["capacityViolation"], 0.001)
	})

	t.Run("lab section in lecture room", func(t *testing.T) {
		p := feasibleProblem()
		p.Sections[0].RequiresLab = true
		_, breakdown := evaluate(t, p, feasible)
		assert.InDelta(t, 200, breakdown["typeMismatch"], 0.001)
	})

	t.Run("lecture section in lab room", func(t *testing.T) {
		p := feasibleProblem()
		p.Classrooms[0].Type = models.RoomLab
		_, breakdown := evaluate(t, p, feasible)
		assert.InDelta(t, 200, breakdown["typeMismatch"], 0.001)
	})

	t.Run("double booked classroom", func(t *testing.T) {
		sol := feasible.Clone()
		sol["sec-2"] = Assignment{SectionID: "sec-2", ClassroomID: "room-1", BlockID: "b1"}
		_, breakdown := evaluate(t, problem, sol)
		assert.InDelta(t, 500, breakdown["classroomConflict"], 0.001)
	})

	t.Run("double booked professor", func(t *testing.T) {
		p := feasibleProblem()
		p.Sections[1].ProfessorID = "prof-1"
		sol := Solution{
			"sec-1": {SectionID: "sec-1", ClassroomID: "room-1", BlockID: "b1"},
			"sec-2": {SectionID: "sec-2", ClassroomID: "room-2", BlockID: "b1"},
		}
		_, breakdown := evaluate(t, p, sol)
		assert.InDelta(t, 500, breakdown["professorConflict"], 0.001)
	})

	t.Run("room unavailable at block", func(t *testing.T) {
		p := feasibleProblem()
		p.Classrooms[1].AvailableBlocks = []string{"b1"}
		_, breakdown := evaluate(t, p, feasible)
		assert.InDelta(t, 400, breakdown["classroomAvailability"], 0.001)
	})

	t.Run("professor unavailable at block", func(t *testing.T) {
		p := feasibleProblem()
		p.Professors[1].AvailableBlocks = []string{"b1"}
		_, breakdown := evaluate(t, p, feasible)
		assert.InDelta(t, 400, breakdown["professorAvailability"], 0.001)
	})

	t.Run("weekly hours over the limit", func(t *testing.T) {
		p := feasibleProblem()
		p.Sections[1].ProfessorID = "prof-1"
		p.Professors[0].MaxWeeklyHours = 2
		_, breakdown := evaluate(t, p, feasible)
		// two 2h blocks against a 2h limit: 600 per excess hour
		assert.InDelta(t, 600*2, breakdown["professorMaxHours"], 0.001)
	})

	t.Run("idle gap between same day blocks", func(t *testing.T) {
		p := feasibleProblem()
		p.Sections[1].ProfessorID = "prof-1"
		sol := Solution{
			"sec-1": {SectionID: "sec-1", ClassroomID: "room-1", BlockID: "b1"},
			"sec-2": {SectionID: "sec-2", ClassroomID: "room-2", BlockID: "b3"},
		}
		_, breakdown := evaluate(t, p, sol)
		// b1 ends 10:00, b3 starts 14:00: a 4h gap
		assert.InDelta(t, 50*4, breakdown["compactness"], 0.001)
	})

	t.Run("professor preference penalties", func(t *testing.T) {
		p := feasibleProblem()
		p.ProfessorPreferences = map[string]*models.PreferenceProfile{
			"prof-1": {
				PreferredShift: models.ShiftAfternoon,
				AvoidDays:      []models.Weekday{models.Monday},
			},
		}
		_, breakdown := evaluate(t, p, feasible)
		// morning block against an afternoon preference (30) on an avoided day (60)
		assert.InDelta(t, 90, breakdown["preference"], 0.001)
	})
}

func TestAnnealerFeasibleInstance(t *testing.T) {
	problem := feasibleProblem()
	annealer, err := NewAnnealer(problem, fastAnnealConfig(42), DefaultWeights(), nil)
	require.NoError(t, err)

	result := annealer.Run(context.Background())

	assert.Zero(t, result.Cost)
	assert.Len(t, result.Assignments, 2)
	assert.Empty(t, result.Unassigned)
	assert.False(t, result.TimedOut)
}

func TestAnnealerCostMatchesEvaluation(t *testing.T) {
	problem := feasibleProblem()
	annealer, err := NewAnnealer(problem, fastAnnealConfig(7), DefaultWeights(), nil)
	require.NoError(t, err)

	result := annealer.Run(context.Background())

	sol := Solution{}
	for _, a := range result.Assignments {
		sol[a.SectionID] = a
	}
	model, err := NewCostModel(problem, DefaultWeights())
	require.NoError(t, err)
	cost, _ := model.Evaluate(sol)
	assert.InDelta(t, float64(cost), result.Cost, 0.001)
}

func TestAnnealerPrefersSufficientRoom(t *testing.T) {
	problem := InstitutionProblem{
		Sections: []models.Section{institutionSection("sec-1", "prof-1", 40)},
		Classrooms: []models.Classroom{
			{ID: "room-small", Capacity: 30, Type: models.RoomLecture, AvailableBlocks: allBlockIDs},
			{ID: "room-big", Capacity: 45, Type: models.RoomLecture, AvailableBlocks: allBlockIDs},
		},
		Professors: []models.Professor{{ID: "prof-1", AvailableBlocks: allBlockIDs}},
		Catalog:    annealCatalog,
	}

	annealer, err := NewAnnealer(problem, fastAnnealConfig(21), DefaultWeights(), nil)
	require.NoError(t, err)

	result := annealer.Run(context.Background())

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, "room-big", result.Assignments[0].ClassroomID)
	assert.Zero(t, result.Cost)
}

func TestAnnealerKeepsLectureSectionsOutOfLabRooms(t *testing.T) {
	problem := InstitutionProblem{
		Sections: []models.Section{
			institutionSection("sec-1", "prof-1", 30),
			{
				ID:          "sec-2",
				SubjectID:   "sub-sec-2",
				ProfessorID: "prof-2",
				Capacity:    30,
				Enrolled:    20,
				RequiresLab: true,
			},
		},
		Classrooms: []models.Classroom{
			{ID: "lab-1", Capacity: 40, Type: models.RoomLab, AvailableBlocks: allBlockIDs},
			{ID: "room-1", Capacity: 40, Type: models.RoomLecture, AvailableBlocks: allBlockIDs},
		},
		Professors: []models.Professor{
			{ID: "prof-1", AvailableBlocks: allBlockIDs},
			{ID: "prof-2", AvailableBlocks: allBlockIDs},
		},
		Catalog: annealCatalog,
	}

	annealer, err := NewAnnealer(problem, fastAnnealConfig(5), DefaultWeights(), nil)
	require.NoError(t, err)

	result := annealer.Run(context.Background())

	rooms := map[string]string{}
	for _, a := range result.Assignments {
		rooms[a.SectionID] = a.ClassroomID
	}
	assert.Equal(t, "room-1", rooms["sec-1"])
	assert.Equal(t, "lab-1", rooms["sec-2"])
	assert.Zero(t, result.Cost)
}

func TestAnnealerReportsUnplaceableSections(t *testing.T) {
	problem := feasibleProblem()
	problem.Sections[0].RequiresLab = true // no lab rooms exist

	annealer, err := NewAnnealer(problem, fastAnnealConfig(3), DefaultWeights(), nil)
	require.NoError(t, err)

	result := annealer.Run(context.Background())

	assert.Equal(t, []string{"sec-1"}, result.Unassigned)
	assert.GreaterOrEqual(t, result.Cost, 10000.0)
}

func TestAnnealerDeterministicWithSeed(t *testing.T) {
	run := func() *InstitutionResult {
		annealer, err := NewAnnealer(feasibleProblem(), fastAnnealConfig(1234), DefaultWeights(), nil)
		require.NoError(t, err)
		return annealer.Run(context.Background())
	}

	first := run()
	second := run()

	assert.Equal(t, first.Cost, second.Cost)
	assert.Equal(t, first.Assignments, second.Assignments)
}

func TestAnnealerTimeout(t *testing.T) {
	cfg := fastAnnealConfig(1)
	cfg.MaxIterations = 1 << 30
	cfg.Timeout = time.Millisecond

	annealer, err := NewAnnealer(feasibleProblem(), cfg, DefaultWeights(), nil)
	require.NoError(t, err)

	result := annealer.Run(context.Background())

	assert.True(t, result.TimedOut)
	assert.Less(t, result.Iterations, cfg.MaxIterations)
	assert.NotNil(t, result.Assignments)
}

func TestAnnealerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	annealer, err := NewAnnealer(feasibleProblem(), fastAnnealConfig(9), DefaultWeights(), nil)
	require.NoError(t, err)

	result := annealer.Run(ctx)

	require.NotNil(t, result)
	assert.False(t, result.TimedOut)
	assert.Zero(t, result.Iterations)
}
