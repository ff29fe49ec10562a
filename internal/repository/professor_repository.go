package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uniplan/enrollment-api/internal/models"
)

// ProfessorRepository loads the professors teaching in a term together
// with their block availability.
type ProfessorRepository struct {
	db *sqlx.DB
}

// NewProfessorRepository constructs the repository.
func NewProfessorRepository(db *sqlx.DB) *ProfessorRepository {
	return &ProfessorRepository{db: db}
}

// ListByTerm returns the distinct professors assigned to sections of the
// term, availability attached.
func (r *ProfessorRepository) ListByTerm(ctx context.Context, termID string) ([]models.Professor, error) {
	const query = `SELECT DISTINCT p.id, p.name, p.max_weekly_hours
FROM professors p
JOIN sections s ON s.professor_id = p.id
WHERE s.term_id = $1 ORDER BY p.id ASC`
	var professors []models.Professor
	if err := r.db.SelectContext(ctx, &professors, query, termID); err != nil {
		return nil, fmt.Errorf("list professors by term: %w", err)
	}
	if len(professors) == 0 {
		return professors, nil
	}

	ids := make([]string, len(professors))
	for i, p := range professors {
		ids[i] = p.ID
	}
	const availability = `SELECT professor_id, block_id
FROM professor_availability WHERE professor_id = ANY($1) ORDER BY block_id ASC`
	var rows []struct {
		ProfessorID string `db:"professor_id"`
		BlockID     string `db:"block_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, availability, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list professor availability: %w", err)
	}

	byProfessor := make(map[string][]string, len(professors))
	for _, row := range rows {
		byProfessor[row.ProfessorID] = append(byProfessor[row.ProfessorID], row.BlockID)
	}
	for i := range professors {
		professors[i].AvailableBlocks = byProfessor[professors[i].ID]
	}
	return professors, nil
}
