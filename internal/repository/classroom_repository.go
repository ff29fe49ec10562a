package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uniplan/enrollment-api/internal/models"
)

// ClassroomRepository loads rooms and their per-block availability.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs the repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// ListAll returns every room with its available block ids attached.
func (r *ClassroomRepository) ListAll(ctx context.Context) ([]models.Classroom, error) {
	const query = `SELECT id, code, capacity, type, building_id
FROM classrooms ORDER BY code ASC`
	var rooms []models.Classroom
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	if len(rooms) == 0 {
		return rooms, nil
	}

	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	const availability = `SELECT classroom_id, block_id
FROM classroom_availability WHERE classroom_id = ANY($1) ORDER BY block_id ASC`
	var rows []struct {
		ClassroomID string `db:"classroom_id"`
		BlockID     string `db:"block_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, availability, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list classroom availability: %w", err)
	}

	byRoom := make(map[string][]string, len(rooms))
	for _, row := range rows {
		byRoom[row.ClassroomID] = append(byRoom[row.ClassroomID], row.BlockID)
	}
	for i := range rooms {
		rooms[i].AvailableBlocks = byRoom[rooms[i].ID]
	}
	return rooms, nil
}
