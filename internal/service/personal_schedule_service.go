package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/dto"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/optimizer"
	"github.com/uniplan/enrollment-api/internal/repository"
	"github.com/uniplan/enrollment-api/pkg/config"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/jobs"
)

type selectionStore interface {
	ListByStudentTerm(ctx context.Context, studentID, termID string) ([]models.SubjectSelection, error)
}

type candidateSectionStore interface {
	ListBySubjects(ctx context.Context, termID string, subjectIDs []string) ([]models.Section, error)
}

type blockCatalogStore interface {
	ListAll(ctx context.Context) ([]models.TimeBlock, error)
}

type preferenceStore interface {
	GetByUser(ctx context.Context, userID string) (*models.PreferenceProfile, error)
}

type scheduleJobStore interface {
	Create(ctx context.Context, job *models.ScheduleJob) error
	GetByID(ctx context.Context, id string) (*models.ScheduleJob, error)
	Update(ctx context.Context, id string, params repository.UpdateScheduleJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ScheduleJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type personalScheduleWriter interface {
	CreatePersonal(ctx context.Context, schedule *models.GeneratedSchedule, items []models.PersonalScheduleItem) error
}

type statusCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// PersonalScheduleService orchestrates student schedule runs: it accepts
// requests, queues them, executes the search in the background and exposes
// run status.
type PersonalScheduleService struct {
	jobs        scheduleJobStore
	selections  selectionStore
	sections    candidateSectionStore
	blocks      blockCatalogStore
	preferences preferenceStore
	schedules   personalScheduleWriter
	queue       jobDispatcher
	cache       statusCache
	validate    *validator.Validate
	logger      *zap.Logger
	cfg         config.OptimizerConfig
}

// NewPersonalScheduleService constructs the service.
func NewPersonalScheduleService(
	jobStore scheduleJobStore,
	selections selectionStore,
	sections candidateSectionStore,
	blocks blockCatalogStore,
	preferences preferenceStore,
	schedules personalScheduleWriter,
	queue jobDispatcher,
	cache statusCache,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.OptimizerConfig,
) *PersonalScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonalScheduleService{
		jobs:        jobStore,
		selections:  selections,
		sections:    sections,
		blocks:      blocks,
		preferences: preferences,
		schedules:   schedules,
		queue:       queue,
		cache:       cache,
		validate:    validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate validates the request, persists a queued job and enqueues the run.
func (s *PersonalScheduleService) Generate(ctx context.Context, req dto.GeneratePersonalScheduleRequest, actorID string) (*dto.ScheduleJobResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, err := s.buildConfig(req.Overrides); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	params, err := json.Marshal(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run parameters")
	}
	job := &models.ScheduleJob{
		Type:      models.ScheduleJobPersonal,
		TermID:    req.TermID,
		StudentID: &actorID,
		Params:    types.JSONText(params),
		CreatedBy: actorID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue run")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue schedule job")
	}
	return &dto.ScheduleJobResponse{ID: job.ID, Type: job.Type, Status: job.Status}, nil
}

// GetStatus returns run progress; students only see their own runs. Recent
// statuses come from the snapshot cache to absorb polling.
func (s *PersonalScheduleService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ScheduleJobStatusResponse, error) {
	cacheKey := jobStatusKey(id)
	var cached cachedJobStatus
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		if err := authorizeJobAccess(cached.Owner, actorID, role); err != nil {
			return nil, err
		}
		return &cached.Status, nil
	}

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule job")
	}
	if err := authorizeJobAccess(job.CreatedBy, actorID, role); err != nil {
		return nil, err
	}

	resp := jobStatusResponse(job)
	if err := s.cache.Set(ctx, cacheKey, cachedJobStatus{Owner: job.CreatedBy, Status: *resp}); err != nil {
		s.logger.Warn("failed to cache job status", zap.String("job_id", id), zap.Error(err))
	}
	return resp, nil
}

// ProcessJob is the queue handler: it runs the genetic search for a queued
// job and persists the outcome. An empty best schedule is a successful
// run; only infrastructure failures mark the job FAILED.
func (s *PersonalScheduleService) ProcessJob(ctx context.Context, queued jobs.Job) error {
	job, err := s.jobs.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load schedule job %s: %w", queued.ID, err)
	}
	if job.Status != models.ScheduleJobQueued {
		s.logger.Info("skipping job not in queued state",
			zap.String("job_id", job.ID), zap.String("status", string(job.Status)))
		return nil
	}

	var req dto.GeneratePersonalScheduleRequest
	if err := json.Unmarshal(job.Params, &req); err != nil {
		s.markFailed(ctx, job.ID, "malformed run parameters")
		return nil
	}

	s.markRunning(ctx, job.ID)

	result, runErr := s.run(ctx, job, req)
	if runErr != nil {
		s.markFailed(ctx, job.ID, runErr.Error())
		return runErr
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.markFailed(ctx, job.ID, "failed to encode run result")
		return fmt.Errorf("encode result for job %s: %w", job.ID, err)
	}
	if len(result.Sections) > 0 {
		if err := s.persistSchedule(ctx, job, result); err != nil {
			s.markFailed(ctx, job.ID, "failed to persist schedule")
			return err
		}
	}

	status := models.ScheduleJobDone
	now := time.Now().UTC()
	resultJSON := types.JSONText(payload)
	if err := s.jobs.Update(ctx, job.ID, repository.UpdateScheduleJobParams{
		Status:     &status,
		Result:     &resultJSON,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finish job %s: %w", job.ID, err)
	}
	_ = s.cache.Delete(ctx, jobStatusKey(job.ID))
	s.logger.Info("personal schedule run finished",
		zap.String("job_id", job.ID),
		zap.Float64("score", result.Score),
		zap.Int("covered_subjects", result.CoveredSubjects))
	return nil
}

func (s *PersonalScheduleService) run(ctx context.Context, job *models.ScheduleJob, req dto.GeneratePersonalScheduleRequest) (*optimizer.StudentResult, error) {
	studentID := job.CreatedBy
	if job.StudentID != nil {
		studentID = *job.StudentID
	}

	selections, err := s.selections.ListByStudentTerm(ctx, studentID, job.TermID)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}
	subjectIDs := lo.Map(selections, func(sel models.SubjectSelection, _ int) string { return sel.SubjectID })

	candidates, err := s.sections.ListBySubjects(ctx, job.TermID, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("load candidate sections: %w", err)
	}
	catalog, err := s.blocks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load time blocks: %w", err)
	}
	preference, err := s.preferences.GetByUser(ctx, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load preference profile: %w", err)
	}

	cfg, err := s.buildConfig(req.Overrides)
	if err != nil {
		return nil, err
	}
	search, err := optimizer.NewGeneticSearch(optimizer.StudentProblem{
		SubjectIDs: subjectIDs,
		Candidates: candidates,
		Catalog:    catalog,
		Preference: preference,
	}, cfg, s.logger.With(zap.String("job_id", job.ID)))
	if err != nil {
		return nil, err
	}
	return search.Run(ctx), nil
}

func (s *PersonalScheduleService) persistSchedule(ctx context.Context, job *models.ScheduleJob, result *optimizer.StudentResult) error {
	schedule := &models.GeneratedSchedule{
		TermID:    job.TermID,
		StudentID: job.StudentID,
		Score:     result.Score,
		CreatedBy: job.CreatedBy,
	}
	items := lo.Map(result.Sections, func(section models.Section, _ int) models.PersonalScheduleItem {
		return models.PersonalScheduleItem{SectionID: section.ID, SubjectID: section.SubjectID}
	})
	if err := s.schedules.CreatePersonal(ctx, schedule, items); err != nil {
		return fmt.Errorf("persist personal schedule: %w", err)
	}
	return nil
}

func (s *PersonalScheduleService) buildConfig(overrides *dto.SearchOverrides) (optimizer.GeneticConfig, error) {
	cfg := optimizer.DefaultGeneticConfig()
	if s.cfg.PopulationSize > 0 {
		cfg.PopulationSize = s.cfg.PopulationSize
	}
	if s.cfg.Generations > 0 {
		cfg.Generations = s.cfg.Generations
	}
	if s.cfg.MutationRate > 0 {
		cfg.MutationRate = s.cfg.MutationRate
	}
	if overrides != nil {
		if overrides.PopulationSize > 0 {
			cfg.PopulationSize = overrides.PopulationSize
		}
		if overrides.Generations > 0 {
			cfg.Generations = overrides.Generations
		}
		if overrides.MutationRate > 0 {
			cfg.MutationRate = overrides.MutationRate
		}
		cfg.Seed = overrides.Seed
	}
	if err := cfg.Validate(); err != nil {
		return optimizer.GeneticConfig{}, err
	}
	return cfg, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *PersonalScheduleService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.jobs.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued schedule jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if job.Type != models.ScheduleJobPersonal {
			continue
		}
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (s *PersonalScheduleService) markRunning(ctx context.Context, jobID string) {
	status := models.ScheduleJobRunning
	now := time.Now().UTC()
	if err := s.jobs.Update(ctx, jobID, repository.UpdateScheduleJobParams{
		Status:    &status,
		StartedAt: &now,
	}); err != nil {
		s.logger.Warn("failed to mark job running", zap.String("job_id", jobID), zap.Error(err))
	}
	_ = s.cache.Delete(ctx, jobStatusKey(jobID))
}

func (s *PersonalScheduleService) markFailed(ctx context.Context, jobID, message string) {
	status := models.ScheduleJobFailed
	now := time.Now().UTC()
	if err := s.jobs.Update(ctx, jobID, repository.UpdateScheduleJobParams{
		Status:       &status,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	_ = s.cache.Delete(ctx, jobStatusKey(jobID))
}

func jobStatusKey(id string) string {
	return "schedule_job:" + id
}

// cachedJobStatus pairs the status payload with its owner so cached reads
// keep enforcing ownership.
type cachedJobStatus struct {
	Owner  string                        `json:"owner"`
	Status dto.ScheduleJobStatusResponse `json:"status"`
}

func jobStatusResponse(job *models.ScheduleJob) *dto.ScheduleJobStatusResponse {
	resp := &dto.ScheduleJobStatusResponse{
		ID:     job.ID,
		Type:   job.Type,
		Status: job.Status,
	}
	if len(job.Result) > 0 {
		resp.Result = json.RawMessage(job.Result)
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	if job.StartedAt != nil {
		started := job.StartedAt.UTC().Format(time.RFC3339)
		resp.StartedAt = &started
	}
	if job.FinishedAt != nil {
		finished := job.FinishedAt.UTC().Format(time.RFC3339)
		resp.FinishedAt = &finished
	}
	return resp
}

func authorizeJobAccess(ownerID, actorID string, role models.UserRole) error {
	if role == models.RoleStudent && ownerID != actorID {
		return appErrors.ErrForbidden
	}
	return nil
}
