package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/uniplan/enrollment-api/internal/models"
)

// ScheduleJobRepository persists optimization run metadata.
type ScheduleJobRepository struct {
	db *sqlx.DB
}

// NewScheduleJobRepository constructs the repository.
func NewScheduleJobRepository(db *sqlx.DB) *ScheduleJobRepository {
	return &ScheduleJobRepository{db: db}
}

const scheduleJobColumns = `id, type, status, term_id, student_id, params, result, error_message, created_by, created_at, started_at, finished_at`

// Create inserts a new job row with generated defaults.
func (r *ScheduleJobRepository) Create(ctx context.Context, job *models.ScheduleJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ScheduleJobQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schedule_jobs (id, type, status, term_id, student_id, params, result, error_message, created_by, created_at, started_at, finished_at)
VALUES (:id, :type, :status, :term_id, :student_id, :params, :result, :error_message, :created_by, :created_at, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create schedule job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *ScheduleJobRepository) GetByID(ctx context.Context, id string) (*models.ScheduleJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_jobs WHERE id = $1`, scheduleJobColumns)
	var job models.ScheduleJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateScheduleJobParams defines the mutable fields of a job row.
type UpdateScheduleJobParams struct {
	Status       *models.ScheduleJobStatus
	Result       *types.JSONText
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *ScheduleJobRepository) Update(ctx context.Context, id string, params UpdateScheduleJobParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.Result != nil {
		set = append(set, fmt.Sprintf("result = $%d", argPos))
		args = append(args, *params.Result)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.StartedAt != nil {
		set = append(set, fmt.Sprintf("started_at = $%d", argPos))
		args = append(args, *params.StartedAt)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE schedule_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update schedule job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs oldest first (used for cold start recovery).
func (r *ScheduleJobRepository) ListQueued(ctx context.Context, limit int) ([]models.ScheduleJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM schedule_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`, scheduleJobColumns)
	var jobs []models.ScheduleJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued schedule jobs: %w", err)
	}
	return jobs, nil
}
