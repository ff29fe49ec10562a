package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/uniplan/enrollment-api/internal/models"
)

// TimeBlockRepository loads the institutional time-block catalog.
type TimeBlockRepository struct {
	db *sqlx.DB
}

// NewTimeBlockRepository constructs the repository.
func NewTimeBlockRepository(db *sqlx.DB) *TimeBlockRepository {
	return &TimeBlockRepository{db: db}
}

// ListAll returns the full catalog ordered by day and start time.
func (r *TimeBlockRepository) ListAll(ctx context.Context) ([]models.TimeBlock, error) {
	const query = `SELECT id, day_of_week, start_min, end_min, shift
FROM time_blocks ORDER BY day_of_week ASC, start_min ASC`
	var blocks []models.TimeBlock
	if err := r.db.SelectContext(ctx, &blocks, query); err != nil {
		return nil, fmt.Errorf("list time blocks: %w", err)
	}
	return blocks, nil
}
