package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"github.com/mitchellh/mapstructure"
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

type termSectionStore interface {
	ListByTerm(ctx context.Context, termID string) ([]models.Section, error)
}

type classroomStore interface {
	ListAll(ctx context.Context) ([]models.Classroom, error)
}

type professorStore interface {
	ListByTerm(ctx context.Context, termID string) ([]models.Professor, error)
}

type preferenceBatchStore interface {
	ListByUsers(ctx context.Context, userIDs []string) (map[string]*models.PreferenceProfile, error)
}

type institutionScheduleWriter interface {
	CreateInstitution(ctx context.Context, schedule *models.GeneratedSchedule, assignments []models.AssignmentRecord) error
}

// InstitutionScheduleService orchestrates institution-wide runs: the
// simulated annealing search over room/block assignments for a whole term.
type InstitutionScheduleService struct {
	jobs        scheduleJobStore
	sections    termSectionStore
	classrooms  classroomStore
	professors  professorStore
	blocks      blockCatalogStore
	preferences preferenceBatchStore
	schedules   institutionScheduleWriter
	queue       jobDispatcher
	cache       statusCache
	validate    *validator.Validate
	logger      *zap.Logger
	cfg         config.OptimizerConfig
}

// NewInstitutionScheduleService constructs the service.
func NewInstitutionScheduleService(
	jobStore scheduleJobStore,
	sections termSectionStore,
	classrooms classroomStore,
	professors professorStore,
	blocks blockCatalogStore,
	preferences preferenceBatchStore,
	schedules institutionScheduleWriter,
	queue jobDispatcher,
	cache statusCache,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.OptimizerConfig,
) *InstitutionScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstitutionScheduleService{
		jobs:        jobStore,
		sections:    sections,
		classrooms:  classrooms,
		professors:  professors,
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
func (s *InstitutionScheduleService) Generate(ctx context.Context, req dto.GenerateInstitutionScheduleRequest, actorID string) (*dto.ScheduleJobResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, _, err := s.buildConfig(req.Overrides); err != nil {
		return nil, err
	}

	params, err := json.Marshal(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run parameters")
	}
	job := &models.ScheduleJob{
		Type:      models.ScheduleJobInstitution,
		TermID:    req.TermID,
		Params:    types.JSONText(params),
		CreatedBy: actorID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.failJob(ctx, job.ID, "failed to enqueue run")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue schedule job")
	}
	return &dto.ScheduleJobResponse{ID: job.ID, Type: job.Type, Status: job.Status}, nil
}

// ProcessJob is the queue handler for institution runs. Unplaceable
// sections and high costs are results, not failures.
func (s *InstitutionScheduleService) ProcessJob(ctx context.Context, queued jobs.Job) error {
	job, err := s.jobs.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load schedule job %s: %w", queued.ID, err)
	}
	if job.Status != models.ScheduleJobQueued {
		s.logger.Info("skipping job not in queued state",
			zap.String("job_id", job.ID), zap.String("status", string(job.Status)))
		return nil
	}

	var req dto.GenerateInstitutionScheduleRequest
	if err := json.Unmarshal(job.Params, &req); err != nil {
		s.failJob(ctx, job.ID, "malformed run parameters")
		return nil
	}

	s.startJob(ctx, job.ID)

	result, runErr := s.run(ctx, job, req)
	if runErr != nil {
		s.failJob(ctx, job.ID, runErr.Error())
		return runErr
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.failJob(ctx, job.ID, "failed to encode run result")
		return fmt.Errorf("encode result for job %s: %w", job.ID, err)
	}
	if len(result.Assignments) > 0 {
		if err := s.persistSchedule(ctx, job, result); err != nil {
			s.failJob(ctx, job.ID, "failed to persist schedule")
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
	s.logger.Info("institution schedule run finished",
		zap.String("job_id", job.ID),
		zap.Float64("cost", result.Cost),
		zap.Int("assignments", len(result.Assignments)),
		zap.Int("unassigned", len(result.Unassigned)))
	return nil
}

// GetStatus returns run progress. Institution runs are visible to staff
// and admins only; the handler layer enforces the role gate, so any
// authenticated caller reaching this sees the run.
func (s *InstitutionScheduleService) GetStatus(ctx context.Context, id string) (*dto.ScheduleJobStatusResponse, error) {
	cacheKey := jobStatusKey(id)
	var cached cachedJobStatus
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return &cached.Status, nil
	}

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule job")
	}

	resp := jobStatusResponse(job)
	if err := s.cache.Set(ctx, cacheKey, cachedJobStatus{Owner: job.CreatedBy, Status: *resp}); err != nil {
		s.logger.Warn("failed to cache job status", zap.String("job_id", id), zap.Error(err))
	}
	return resp, nil
}

func (s *InstitutionScheduleService) run(ctx context.Context, job *models.ScheduleJob, req dto.GenerateInstitutionScheduleRequest) (*optimizer.InstitutionResult, error) {
	sections, err := s.sections.ListByTerm(ctx, job.TermID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	classrooms, err := s.classrooms.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load classrooms: %w", err)
	}
	professors, err := s.professors.ListByTerm(ctx, job.TermID)
	if err != nil {
		return nil, fmt.Errorf("load professors: %w", err)
	}
	catalog, err := s.blocks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load time blocks: %w", err)
	}
	professorIDs := lo.Map(professors, func(p models.Professor, _ int) string { return p.ID })
	preferences, err := s.preferences.ListByUsers(ctx, professorIDs)
	if err != nil {
		return nil, fmt.Errorf("load professor preferences: %w", err)
	}

	cfg, weights, err := s.buildConfig(req.Overrides)
	if err != nil {
		return nil, err
	}
	annealer, err := optimizer.NewAnnealer(optimizer.InstitutionProblem{
		Sections:             sections,
		Classrooms:           classrooms,
		Professors:           professors,
		Catalog:              catalog,
		ProfessorPreferences: preferences,
	}, cfg, weights, s.logger.With(zap.String("job_id", job.ID)))
	if err != nil {
		return nil, err
	}
	return annealer.Run(ctx), nil
}

func (s *InstitutionScheduleService) persistSchedule(ctx context.Context, job *models.ScheduleJob, result *optimizer.InstitutionResult) error {
	schedule := &models.GeneratedSchedule{
		TermID:    job.TermID,
		Cost:      result.Cost,
		CreatedBy: job.CreatedBy,
	}
	assignments := lo.Map(result.Assignments, func(a optimizer.Assignment, _ int) models.AssignmentRecord {
		return models.AssignmentRecord{SectionID: a.SectionID, ClassroomID: a.ClassroomID, BlockID: a.BlockID}
	})
	if err := s.schedules.CreateInstitution(ctx, schedule, assignments); err != nil {
		return fmt.Errorf("persist institution schedule: %w", err)
	}
	return nil
}

func (s *InstitutionScheduleService) buildConfig(overrides *dto.AnnealOverrides) (optimizer.AnnealConfig, optimizer.Weights, error) {
	cfg := optimizer.DefaultAnnealConfig()
	if s.cfg.MaxIterations > 0 {
		cfg.MaxIterations = s.cfg.MaxIterations
	}
	if s.cfg.InitialTemperature > 0 {
		cfg.InitialTemperature = s.cfg.InitialTemperature
	}
	if s.cfg.CoolingRate > 0 {
		cfg.CoolingRate = s.cfg.CoolingRate
	}
	if s.cfg.Timeout > 0 {
		cfg.Timeout = s.cfg.Timeout
	}

	weights := optimizer.DefaultWeights()
	if overrides != nil {
		if overrides.MaxIterations > 0 {
			cfg.MaxIterations = overrides.MaxIterations
		}
		if overrides.TimeoutMs > 0 {
			cfg.Timeout = time.Duration(overrides.TimeoutMs) * time.Millisecond
		}
		cfg.Seed = overrides.Seed

		var err error
		weights, err = applyWeightOverrides(weights, overrides.Weights)
		if err != nil {
			return optimizer.AnnealConfig{}, optimizer.Weights{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return optimizer.AnnealConfig{}, optimizer.Weights{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := weights.Validate(); err != nil {
		return optimizer.AnnealConfig{}, optimizer.Weights{}, appErrors.Clone(appErrors.ErrInvalidWeights, err.Error())
	}
	return cfg, weights, nil
}

// applyWeightOverrides decodes a sparse weight map onto the base weights.
// Unknown keys are rejected instead of being silently dropped.
func applyWeightOverrides(base optimizer.Weights, overrides map[string]float64) (optimizer.Weights, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	var meta mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   &base,
		Metadata: &meta,
	})
	if err != nil {
		return optimizer.Weights{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build weight decoder")
	}
	if err := decoder.Decode(overrides); err != nil {
		return optimizer.Weights{}, appErrors.Clone(appErrors.ErrInvalidWeights, err.Error())
	}
	if len(meta.Unused) > 0 {
		return optimizer.Weights{}, appErrors.Clone(appErrors.ErrInvalidWeights,
			fmt.Sprintf("unknown weight keys: %s", strings.Join(meta.Unused, ", ")))
	}
	return base, nil
}

// RecoverPendingJobs replays queued institution jobs after a restart.
func (s *InstitutionScheduleService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.jobs.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued schedule jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if job.Type != models.ScheduleJobInstitution {
			continue
		}
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (s *InstitutionScheduleService) startJob(ctx context.Context, jobID string) {
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

func (s *InstitutionScheduleService) failJob(ctx context.Context, jobID, message string) {
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
