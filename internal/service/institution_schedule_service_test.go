package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/dto"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/optimizer"
	"github.com/uniplan/enrollment-api/pkg/config"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/jobs"
)

type stubTermSectionStore struct {
	sections []models.Section
}

func (s *stubTermSectionStore) ListByTerm(ctx context.Context, termID string) ([]models.Section, error) {
	return s.sections, nil
}

type stubClassroomStore struct {
	rooms []models.Classroom
}

func (s *stubClassroomStore) ListAll(ctx context.Context) ([]models.Classroom, error) {
	return s.rooms, nil
}

type stubProfessorStore struct {
	professors []models.Professor
}

func (s *stubProfessorStore) ListByTerm(ctx context.Context, termID string) ([]models.Professor, error) {
	return s.professors, nil
}

type stubPreferenceBatchStore struct{}

func (s *stubPreferenceBatchStore) ListByUsers(ctx context.Context, userIDs []string) (map[string]*models.PreferenceProfile, error) {
	return map[string]*models.PreferenceProfile{}, nil
}

type stubInstitutionWriter struct {
	schedule    *models.GeneratedSchedule
	assignments []models.AssignmentRecord
}

func (s *stubInstitutionWriter) CreateInstitution(ctx context.Context, schedule *models.GeneratedSchedule, assignments []models.AssignmentRecord) error {
	s.schedule = schedule
	s.assignments = assignments
	return nil
}

func newInstitutionService(jobStore *stubJobStore, queue *stubQueue, writer *stubInstitutionWriter) *InstitutionScheduleService {
	blockIDs := []string{"b1", "b2"}
	return NewInstitutionScheduleService(
		jobStore,
		&stubTermSectionStore{sections: []models.Section{
			{ID: "sec-1", SubjectID: "sub-1", TermID: "term-1", ProfessorID: "prof-1", Capacity: 40, Enrolled: 25},
		}},
		&stubClassroomStore{rooms: []models.Classroom{
			{ID: "room-1", Capacity: 40, Type: models.RoomLecture, AvailableBlocks: blockIDs},
		}},
		&stubProfessorStore{professors: []models.Professor{
			{ID: "prof-1", AvailableBlocks: blockIDs},
		}},
		&stubBlockStore{blocks: []models.TimeBlock{
			{ID: "b1", Day: models.Monday, StartMin: 480, EndMin: 600, Shift: models.ShiftMorning},
			{ID: "b2", Day: models.Monday, StartMin: 600, EndMin: 720, Shift: models.ShiftMorning},
		}},
		&stubPreferenceBatchStore{},
		writer,
		queue,
		newMemCache(),
		validator.New(),
		zap.NewNop(),
		config.OptimizerConfig{MaxIterations: 200, InitialTemperature: 1000, CoolingRate: 0.99},
	)
}

func TestInstitutionGenerateRejectsUnknownWeightKeys(t *testing.T) {
	svc := newInstitutionService(newStubJobStore(), &stubQueue{}, &stubInstitutionWriter{})

	_, err := svc.Generate(context.Background(), dto.GenerateInstitutionScheduleRequest{
		TermID: "term-1",
		Overrides: &dto.AnnealOverrides{
			Weights: map[string]float64{"professorConflict": 800, "bogus": 1},
		},
	}, "staff-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErr.Code)
}

func TestInstitutionGenerateRejectsNegativeWeights(t *testing.T) {
	svc := newInstitutionService(newStubJobStore(), &stubQueue{}, &stubInstitutionWriter{})

	_, err := svc.Generate(context.Background(), dto.GenerateInstitutionScheduleRequest{
		TermID: "term-1",
		Overrides: &dto.AnnealOverrides{
			Weights: map[string]float64{"compactness": -10},
		},
	}, "staff-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErr.Code)
}

func TestApplyWeightOverrides(t *testing.T) {
	weights, err := applyWeightOverrides(optimizer.DefaultWeights(), map[string]float64{
		"professorConflict": 800,
		"preference":        0,
	})
	require.NoError(t, err)
	assert.Equal(t, 800.0, weights.ProfessorConflict)
	assert.Equal(t, 0.0, weights.Preference)
	// untouched multipliers keep their defaults
	assert.Equal(t, 1000.0, weights.HardConstraint)
}

func TestInstitutionProcessJobCompletesRun(t *testing.T) {
	jobStore := newStubJobStore()
	queue := &stubQueue{}
	writer := &stubInstitutionWriter{}
	svc := newInstitutionService(jobStore, queue, writer)

	resp, err := svc.Generate(context.Background(), dto.GenerateInstitutionScheduleRequest{
		TermID:    "term-1",
		Overrides: &dto.AnnealOverrides{Seed: 42, MaxIterations: 100},
	}, "staff-1")
	require.NoError(t, err)
	require.Len(t, queue.enqueued, 1)

	require.NoError(t, svc.ProcessJob(context.Background(), jobs.Job{ID: resp.ID}))

	job, err := jobStore.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleJobDone, job.Status)
	assert.NotEmpty(t, job.Result)

	require.NotNil(t, writer.schedule)
	assert.Equal(t, "term-1", writer.schedule.TermID)
	assert.Zero(t, writer.schedule.Cost)
	require.Len(t, writer.assignments, 1)
	assert.Equal(t, "sec-1", writer.assignments[0].SectionID)
	assert.Equal(t, "room-1", writer.assignments[0].ClassroomID)
}

func TestInstitutionGetStatusMissing(t *testing.T) {
	svc := newInstitutionService(newStubJobStore(), &stubQueue{}, &stubInstitutionWriter{})

	_, err := svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
