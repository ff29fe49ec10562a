package optimizer

import "github.com/uniplan/enrollment-api/internal/models"

// Overlaps reports whether two weekly placements collide: same day and
// intersecting half-open [start, end) intervals.
func Overlaps(a, b models.TimePlacement) bool {
	if a.Day != b.Day {
		return false
	}
	return a.StartMin < b.EndMin && b.StartMin < a.EndMin
}

// SectionsConflict reports whether any placement of a collides with any
// placement of b. A section never conflicts with itself by identity.
func SectionsConflict(a, b models.Section) bool {
	if a.ID == b.ID {
		return false
	}
	for _, pa := range a.Placements {
		for _, pb := range b.Placements {
			if Overlaps(pa, pb) {
				return true
			}
		}
	}
	return false
}

// HasConflict reports whether candidate collides with any already chosen
// section, excluding itself by identity.
func HasConflict(candidate models.Section, chosen []models.Section) bool {
	for _, other := range chosen {
		if SectionsConflict(candidate, other) {
			return true
		}
	}
	return false
}
