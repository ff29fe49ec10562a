package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniplan/enrollment-api/internal/models"
)

// ScheduleRepository persists accepted search results: the schedule
// header plus its items (personal) or assignments (institution).
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, kind, term_id, student_id, score, cost, created_by, created_at`

// CreatePersonal stores a personal schedule and its section picks in one
// transaction.
func (r *ScheduleRepository) CreatePersonal(ctx context.Context, schedule *models.GeneratedSchedule, items []models.PersonalScheduleItem) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.Kind = models.ScheduleKindPersonal
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create personal schedule: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertScheduleHeader(ctx, tx, schedule); err != nil {
		return err
	}
	const insert = `INSERT INTO personal_schedule_items (schedule_id, section_id, subject_id)
VALUES ($1, $2, $3)`
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, insert, schedule.ID, item.SectionID, item.SubjectID); err != nil {
			return fmt.Errorf("insert personal schedule item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit personal schedule: %w", err)
	}
	return nil
}

// CreateInstitution stores an institution-wide schedule and its room/block
// assignments in one transaction. Unassigned sections have no row.
func (r *ScheduleRepository) CreateInstitution(ctx context.Context, schedule *models.GeneratedSchedule, assignments []models.AssignmentRecord) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.Kind = models.ScheduleKindInstitution
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create institution schedule: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertScheduleHeader(ctx, tx, schedule); err != nil {
		return err
	}
	const insert = `INSERT INTO schedule_assignments (schedule_id, section_id, classroom_id, block_id)
VALUES ($1, $2, $3, $4)`
	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, insert, schedule.ID, a.SectionID, a.ClassroomID, a.BlockID); err != nil {
			return fmt.Errorf("insert schedule assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit institution schedule: %w", err)
	}
	return nil
}

func insertScheduleHeader(ctx context.Context, tx *sqlx.Tx, schedule *models.GeneratedSchedule) error {
	const query = `INSERT INTO generated_schedules (id, kind, term_id, student_id, score, cost, created_by, created_at)
VALUES (:id, :kind, :term_id, :student_id, :score, :cost, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("insert generated schedule: %w", err)
	}
	return nil
}

// GetByID returns a schedule header.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.GeneratedSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM generated_schedules WHERE id = $1`, scheduleColumns)
	var schedule models.GeneratedSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListByTerm returns schedule headers of a term, newest first.
func (r *ScheduleRepository) ListByTerm(ctx context.Context, termID string, kind models.ScheduleKind) ([]models.GeneratedSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM generated_schedules
WHERE term_id = $1 AND kind = $2 ORDER BY created_at DESC`, scheduleColumns)
	var schedules []models.GeneratedSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, termID, kind); err != nil {
		return nil, fmt.Errorf("list generated schedules: %w", err)
	}
	return schedules, nil
}

// ListItems returns the section picks of a personal schedule.
func (r *ScheduleRepository) ListItems(ctx context.Context, scheduleID string) ([]models.PersonalScheduleItem, error) {
	const query = `SELECT schedule_id, section_id, subject_id
FROM personal_schedule_items WHERE schedule_id = $1 ORDER BY subject_id ASC`
	var items []models.PersonalScheduleItem
	if err := r.db.SelectContext(ctx, &items, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list personal schedule items: %w", err)
	}
	return items, nil
}

// ListAssignments returns the room/block decisions of an institution schedule.
func (r *ScheduleRepository) ListAssignments(ctx context.Context, scheduleID string) ([]models.AssignmentRecord, error) {
	const query = `SELECT schedule_id, section_id, classroom_id, block_id
FROM schedule_assignments WHERE schedule_id = $1 ORDER BY section_id ASC`
	var assignments []models.AssignmentRecord
	if err := r.db.SelectContext(ctx, &assignments, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule assignments: %w", err)
	}
	return assignments, nil
}
