package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/uniplan/enrollment-api/internal/models"
)

// CSV fixture rows. List-valued columns (placements, availability) are
// pipe-separated so each entity stays on one line.

type sectionRow struct {
	ID          string `csv:"id"`
	SubjectID   string `csv:"subject_id"`
	SubjectName string `csv:"subject_name"`
	RequiresLab bool   `csv:"requires_lab"`
	TermID      string `csv:"term_id"`
	Label       string `csv:"label"`
	ProfessorID string `csv:"professor_id"`
	Capacity    int    `csv:"capacity"`
	Enrolled    int    `csv:"enrolled"`
}

type blockRow struct {
	ID       string `csv:"id"`
	Day      string `csv:"day"`
	StartMin int    `csv:"start_min"`
	EndMin   int    `csv:"end_min"`
	Shift    string `csv:"shift"`
}

type classroomRow struct {
	ID              string `csv:"id"`
	Code            string `csv:"code"`
	Capacity        int    `csv:"capacity"`
	Type            string `csv:"type"`
	AvailableBlocks string `csv:"available_blocks"`
}

type professorRow struct {
	ID              string  `csv:"id"`
	Name            string  `csv:"name"`
	MaxWeeklyHours  float64 `csv:"max_weekly_hours"`
	AvailableBlocks string  `csv:"available_blocks"`
}

type fixtures struct {
	Sections   []models.Section
	Blocks     []models.TimeBlock
	Classrooms []models.Classroom
	Professors []models.Professor
}

func loadFixtures(dir string) (*fixtures, error) {
	var sections []*sectionRow
	if err := readCSV(filepath.Join(dir, "sections.csv"), &sections); err != nil {
		return nil, err
	}
	var blocks []*blockRow
	if err := readCSV(filepath.Join(dir, "blocks.csv"), &blocks); err != nil {
		return nil, err
	}
	var rooms []*classroomRow
	if err := readCSV(filepath.Join(dir, "classrooms.csv"), &rooms); err != nil {
		return nil, err
	}
	var professors []*professorRow
	if err := readCSV(filepath.Join(dir, "professors.csv"), &professors); err != nil {
		return nil, err
	}

	out := &fixtures{}
	for _, row := range sections {
		out.Sections = append(out.Sections, models.Section{
			ID:          row.ID,
			SubjectID:   row.SubjectID,
			SubjectName: row.SubjectName,
			RequiresLab: row.RequiresLab,
			TermID:      row.TermID,
			Label:       row.Label,
			ProfessorID: row.ProfessorID,
			Capacity:    row.Capacity,
			Enrolled:    row.Enrolled,
		})
	}
	for _, row := range blocks {
		day, ok := models.ParseWeekday(row.Day)
		if !ok {
			return nil, fmt.Errorf("blocks.csv: unknown day %q for block %s", row.Day, row.ID)
		}
		out.Blocks = append(out.Blocks, models.TimeBlock{
			ID:       row.ID,
			Day:      day,
			StartMin: row.StartMin,
			EndMin:   row.EndMin,
			Shift:    models.Shift(strings.ToUpper(row.Shift)),
		})
	}
	for _, row := range rooms {
		out.Classrooms = append(out.Classrooms, models.Classroom{
			ID:              row.ID,
			Code:            row.Code,
			Capacity:        row.Capacity,
			Type:            models.RoomType(strings.ToUpper(row.Type)),
			AvailableBlocks: splitList(row.AvailableBlocks),
		})
	}
	for _, row := range professors {
		out.Professors = append(out.Professors, models.Professor{
			ID:              row.ID,
			Name:            row.Name,
			MaxWeeklyHours:  row.MaxWeeklyHours,
			AvailableBlocks: splitList(row.AvailableBlocks),
		})
	}
	return out, nil
}

func readCSV(path string, dest interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, dest); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
