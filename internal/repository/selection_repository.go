package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uniplan/enrollment-api/internal/models"
)

// SelectionRepository persists student subject selections.
type SelectionRepository struct {
	db *sqlx.DB
}

// NewSelectionRepository constructs the repository.
func NewSelectionRepository(db *sqlx.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// ListByStudentTerm returns the student's selection set ordered by priority.
func (r *SelectionRepository) ListByStudentTerm(ctx context.Context, studentID, termID string) ([]models.SubjectSelection, error) {
	const query = `SELECT id, student_id, term_id, subject_id, priority
FROM subject_selections WHERE student_id = $1 AND term_id = $2 ORDER BY priority ASC, subject_id ASC`
	var selections []models.SubjectSelection
	if err := r.db.SelectContext(ctx, &selections, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list subject selections: %w", err)
	}
	return selections, nil
}

// Replace swaps the student's selection set for the term in one transaction.
// Priorities follow the order of subjectIDs.
func (r *SelectionRepository) Replace(ctx context.Context, studentID, termID string, subjectIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace selections: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subject_selections WHERE student_id = $1 AND term_id = $2`,
		studentID, termID); err != nil {
		return fmt.Errorf("clear subject selections: %w", err)
	}

	const insert = `INSERT INTO subject_selections (id, student_id, term_id, subject_id, priority)
VALUES ($1, $2, $3, $4, $5)`
	for i, subjectID := range subjectIDs {
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), studentID, termID, subjectID, i+1); err != nil {
			return fmt.Errorf("insert subject selection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace selections: %w", err)
	}
	return nil
}

// ListSubjectsByIDs loads subject metadata for the given ids.
func (r *SelectionRepository) ListSubjectsByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, code, name, credits, requires_lab, created_at, updated_at
FROM subjects WHERE id = ANY($1) ORDER BY code ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}
