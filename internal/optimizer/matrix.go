package optimizer

import "github.com/uniplan/enrollment-api/internal/models"

type matrixCell struct {
	Day     models.Weekday
	BlockID string
}

// Matrix maps (day, block) cells of the time-block catalog to the sections
// occupying them. It is rebuilt whenever a section list changes; catalogs
// are small enough that incremental updates are not worth the bookkeeping.
type Matrix struct {
	cells map[matrixCell][]string
}

// BuildMatrix places every placement of every section into its catalog
// cell. Placements referencing unknown blocks are skipped.
func BuildMatrix(catalog []models.TimeBlock, sections []models.Section) *Matrix {
	cells := make(map[matrixCell][]string, len(catalog))
	for _, block := range catalog {
		cells[matrixCell{Day: block.Day, BlockID: block.ID}] = nil
	}
	for _, section := range sections {
		for _, placement := range section.Placements {
			key := matrixCell{Day: placement.Day, BlockID: placement.BlockID}
			if _, ok := cells[key]; !ok {
				continue
			}
			cells[key] = append(cells[key], section.ID)
		}
	}
	return &Matrix{cells: cells}
}

// ConflictCount sums the excess occupants across all cells: a cell holding
// n sections contributes max(0, n-1).
func (m *Matrix) ConflictCount() int {
	count := 0
	for _, occupants := range m.cells {
		if len(occupants) > 1 {
			count += len(occupants) - 1
		}
	}
	return count
}

// Occupants returns the section ids placed at the given cell.
func (m *Matrix) Occupants(day models.Weekday, blockID string) []string {
	return m.cells[matrixCell{Day: day, BlockID: blockID}]
}
