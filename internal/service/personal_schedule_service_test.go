package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/dto"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/repository"
	"github.com/uniplan/enrollment-api/pkg/config"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/jobs"
)

type stubJobStore struct {
	jobs      map[string]*models.ScheduleJob
	createErr error
}

func newStubJobStore() *stubJobStore {
	return &stubJobStore{jobs: map[string]*models.ScheduleJob{}}
}

func (s *stubJobStore) Create(ctx context.Context, job *models.ScheduleJob) error {
	if s.createErr != nil {
		return s.createErr
	}
	if job.ID == "" {
		job.ID = "job-1"
	}
	if job.Status == "" {
		job.Status = models.ScheduleJobQueued
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *stubJobStore) GetByID(ctx context.Context, id string) (*models.ScheduleJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *stubJobStore) Update(ctx context.Context, id string, params repository.UpdateScheduleJobParams) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Result != nil {
		job.Result = *params.Result
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.StartedAt != nil {
		job.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *stubJobStore) ListQueued(ctx context.Context, limit int) ([]models.ScheduleJob, error) {
	var queued []models.ScheduleJob
	for _, job := range s.jobs {
		if job.Status == models.ScheduleJobQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

type stubQueue struct {
	enqueued []jobs.Job
	err      error
}

func (s *stubQueue) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, job)
	return nil
}

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

type stubSelectionStore struct {
	selections []models.SubjectSelection
}

func (s *stubSelectionStore) ListByStudentTerm(ctx context.Context, studentID, termID string) ([]models.SubjectSelection, error) {
	return s.selections, nil
}

type stubCandidateStore struct {
	sections []models.Section
}

func (s *stubCandidateStore) ListBySubjects(ctx context.Context, termID string, subjectIDs []string) ([]models.Section, error) {
	return s.sections, nil
}

type stubBlockStore struct {
	blocks []models.TimeBlock
}

func (s *stubBlockStore) ListAll(ctx context.Context) ([]models.TimeBlock, error) {
	return s.blocks, nil
}

type stubPreferenceStore struct {
	profile *models.PreferenceProfile
}

func (s *stubPreferenceStore) GetByUser(ctx context.Context, userID string) (*models.PreferenceProfile, error) {
	if s.profile == nil {
		return nil, sql.ErrNoRows
	}
	return s.profile, nil
}

type stubScheduleWriter struct {
	schedule *models.GeneratedSchedule
	items    []models.PersonalScheduleItem
}

func (s *stubScheduleWriter) CreatePersonal(ctx context.Context, schedule *models.GeneratedSchedule, items []models.PersonalScheduleItem) error {
	s.schedule = schedule
	s.items = items
	return nil
}

func newPersonalService(jobStore *stubJobStore, queue *stubQueue, writer *stubScheduleWriter) *PersonalScheduleService {
	return NewPersonalScheduleService(
		jobStore,
		&stubSelectionStore{selections: []models.SubjectSelection{
			{StudentID: "student-1", TermID: "term-1", SubjectID: "sub-1", Priority: 1},
		}},
		&stubCandidateStore{sections: []models.Section{{
			ID:        "sec-1",
			SubjectID: "sub-1",
			TermID:    "term-1",
			Capacity:  30,
			Enrolled:  10,
			Placements: []models.TimePlacement{{
				Day: models.Monday, StartMin: 480, EndMin: 600,
				Shift: models.ShiftMorning, BlockID: "b1",
			}},
		}}},
		&stubBlockStore{blocks: []models.TimeBlock{
			{ID: "b1", Day: models.Monday, StartMin: 480, EndMin: 600, Shift: models.ShiftMorning},
		}},
		&stubPreferenceStore{},
		writer,
		queue,
		newMemCache(),
		validator.New(),
		zap.NewNop(),
		config.OptimizerConfig{PopulationSize: 10, Generations: 10, MutationRate: 0.1},
	)
}

func TestPersonalGenerateValidation(t *testing.T) {
	svc := newPersonalService(newStubJobStore(), &stubQueue{}, &stubScheduleWriter{})

	_, err := svc.Generate(context.Background(), dto.GeneratePersonalScheduleRequest{}, "student-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPersonalGenerateQueuesJob(t *testing.T) {
	jobStore := newStubJobStore()
	queue := &stubQueue{}
	svc := newPersonalService(jobStore, queue, &stubScheduleWriter{})

	resp, err := svc.Generate(context.Background(), dto.GeneratePersonalScheduleRequest{TermID: "term-1"}, "student-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleJobQueued, resp.Status)
	assert.Equal(t, models.ScheduleJobPersonal, resp.Type)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
}

func TestPersonalGenerateEnqueueFailureMarksJobFailed(t *testing.T) {
	jobStore := newStubJobStore()
	queue := &stubQueue{err: errors.New("queue full")}
	svc := newPersonalService(jobStore, queue, &stubScheduleWriter{})

	_, err := svc.Generate(context.Background(), dto.GeneratePersonalScheduleRequest{TermID: "term-1"}, "student-1")
	require.Error(t, err)

	job, getErr := jobStore.GetByID(context.Background(), "job-1")
	require.NoError(t, getErr)
	assert.Equal(t, models.ScheduleJobFailed, job.Status)
}

func TestPersonalProcessJobCompletesRun(t *testing.T) {
	jobStore := newStubJobStore()
	queue := &stubQueue{}
	writer := &stubScheduleWriter{}
	svc := newPersonalService(jobStore, queue, writer)

	resp, err := svc.Generate(context.Background(), dto.GeneratePersonalScheduleRequest{
		TermID:    "term-1",
		Overrides: &dto.SearchOverrides{Seed: 42},
	}, "student-1")
	require.NoError(t, err)

	require.NoError(t, svc.ProcessJob(context.Background(), jobs.Job{ID: resp.ID}))

	job, err := jobStore.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleJobDone, job.Status)
	assert.NotEmpty(t, job.Result)
	require.NotNil(t, job.FinishedAt)

	require.NotNil(t, writer.schedule)
	assert.Equal(t, "term-1", writer.schedule.TermID)
	assert.Greater(t, writer.schedule.Score, 0.0)
	require.Len(t, writer.items, 1)
	assert.Equal(t, "sec-1", writer.items[0].SectionID)
}

func TestPersonalProcessJobSkipsNonQueued(t *testing.T) {
	jobStore := newStubJobStore()
	queue := &stubQueue{}
	svc := newPersonalService(jobStore, queue, &stubScheduleWriter{})

	resp, err := svc.Generate(context.Background(), dto.GeneratePersonalScheduleRequest{TermID: "term-1"}, "student-1")
	require.NoError(t, err)
	require.NoError(t, svc.ProcessJob(context.Background(), jobs.Job{ID: resp.ID}))

	// A duplicate delivery must not rerun the finished job.
	require.NoError(t, svc.ProcessJob(context.Background(), jobs.Job{ID: resp.ID}))
	job, err := jobStore.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleJobDone, job.Status)
}

func TestPersonalGetStatusOwnership(t *testing.T) {
	jobStore := newStubJobStore()
	svc := newPersonalService(jobStore, &stubQueue{}, &stubScheduleWriter{})

	resp, err := svc.Generate(context.Background(), dto.GeneratePersonalScheduleRequest{TermID: "term-1"}, "student-1")
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), resp.ID, "student-2", models.RoleStudent)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	status, err := svc.GetStatus(context.Background(), resp.ID, "student-1", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleJobQueued, status.Status)

	// Staff see any run.
	_, err = svc.GetStatus(context.Background(), resp.ID, "staff-1", models.RoleStaff)
	assert.NoError(t, err)
}

func TestPersonalGetStatusUnknownJob(t *testing.T) {
	svc := newPersonalService(newStubJobStore(), &stubQueue{}, &stubScheduleWriter{})

	_, err := svc.GetStatus(context.Background(), "missing", "student-1", models.RoleStudent)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
