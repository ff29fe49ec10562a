package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uniplan/enrollment-api/internal/models"
)

// SectionRepository loads section snapshots for search runs. Sections are
// read-only here; enrollment mutation lives in the registration flow.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = `s.id, s.subject_id, sub.name AS subject_name, sub.requires_lab,
s.term_id, s.label, s.professor_id, s.capacity, s.enrolled`

// ListByTerm returns every section of a term with its weekly placements.
func (r *SectionRepository) ListByTerm(ctx context.Context, termID string) ([]models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections s
JOIN subjects sub ON sub.id = s.subject_id
WHERE s.term_id = $1 ORDER BY s.id ASC`, sectionColumns)

	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, termID); err != nil {
		return nil, fmt.Errorf("list sections by term: %w", err)
	}
	return r.attachPlacements(ctx, sections)
}

// ListBySubjects returns the candidate sections of the given subjects in a
// term, with placements attached.
func (r *SectionRepository) ListBySubjects(ctx context.Context, termID string, subjectIDs []string) ([]models.Section, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM sections s
JOIN subjects sub ON sub.id = s.subject_id
WHERE s.term_id = $1 AND s.subject_id = ANY($2) ORDER BY s.id ASC`, sectionColumns)

	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, termID, pq.Array(subjectIDs)); err != nil {
		return nil, fmt.Errorf("list sections by subjects: %w", err)
	}
	return r.attachPlacements(ctx, sections)
}

func (r *SectionRepository) attachPlacements(ctx context.Context, sections []models.Section) ([]models.Section, error) {
	if len(sections) == 0 {
		return sections, nil
	}
	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.ID
	}

	const query = `SELECT id, section_id, day_of_week, start_min, end_min, shift, block_id, room_id
FROM section_placements WHERE section_id = ANY($1) ORDER BY section_id ASC, day_of_week ASC, start_min ASC`
	var placements []models.TimePlacement
	if err := r.db.SelectContext(ctx, &placements, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list section placements: %w", err)
	}

	bySection := make(map[string][]models.TimePlacement, len(sections))
	for _, p := range placements {
		bySection[p.SectionID] = append(bySection[p.SectionID], p)
	}
	for i := range sections {
		sections[i].Placements = bySection[sections[i].ID]
	}
	return sections, nil
}
