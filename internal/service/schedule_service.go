package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/dto"
	"github.com/uniplan/enrollment-api/internal/models"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/export"
)

type scheduleReader interface {
	GetByID(ctx context.Context, id string) (*models.GeneratedSchedule, error)
	ListByTerm(ctx context.Context, termID string, kind models.ScheduleKind) ([]models.GeneratedSchedule, error)
	ListItems(ctx context.Context, scheduleID string) ([]models.PersonalScheduleItem, error)
	ListAssignments(ctx context.Context, scheduleID string) ([]models.AssignmentRecord, error)
}

type sectionLookupStore interface {
	ListByTerm(ctx context.Context, termID string) ([]models.Section, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ScheduleExport is a rendered download.
type ScheduleExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ScheduleService reads stored generated schedules and renders exports.
type ScheduleService struct {
	schedules scheduleReader
	sections  sectionLookupStore
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(schedules scheduleReader, sections sectionLookupStore, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{schedules: schedules, sections: sections, csv: csv, pdf: pdf, logger: logger}
}

// ListByTerm returns schedule summaries of one kind in a term.
func (s *ScheduleService) ListByTerm(ctx context.Context, termID string, kind models.ScheduleKind) ([]dto.ScheduleSummary, error) {
	schedules, err := s.schedules.ListByTerm(ctx, termID, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return lo.Map(schedules, func(sched models.GeneratedSchedule, _ int) dto.ScheduleSummary {
		return dto.ScheduleSummary{
			ID:        sched.ID,
			Kind:      sched.Kind,
			TermID:    sched.TermID,
			StudentID: sched.StudentID,
			Score:     sched.Score,
			Cost:      sched.Cost,
			CreatedAt: sched.CreatedAt.UTC().Format(time.RFC3339),
		}
	}), nil
}

// Export renders a stored schedule as CSV or PDF. Students may only
// export their own personal schedules.
func (s *ScheduleService) Export(ctx context.Context, scheduleID, format, actorID string, role models.UserRole) (*ScheduleExport, error) {
	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if role == models.RoleStudent {
		if schedule.Kind != models.ScheduleKindPersonal || schedule.StudentID == nil || *schedule.StudentID != actorID {
			return nil, appErrors.ErrForbidden
		}
	}

	dataset, err := s.buildDataset(ctx, schedule)
	if err != nil {
		return nil, err
	}

	switch format {
	case "", "csv":
		data, err := s.csv.Render(*dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ScheduleExport{
			Filename:    fmt.Sprintf("schedule-%s.csv", schedule.ID),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case "pdf":
		title := fmt.Sprintf("%s schedule %s", schedule.Kind, schedule.TermID)
		data, err := s.pdf.Render(*dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ScheduleExport{
			Filename:    fmt.Sprintf("schedule-%s.pdf", schedule.ID),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *ScheduleService) buildDataset(ctx context.Context, schedule *models.GeneratedSchedule) (*export.Dataset, error) {
	sections, err := s.sections.ListByTerm(ctx, schedule.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	byID := lo.KeyBy(sections, func(section models.Section) string { return section.ID })

	if schedule.Kind == models.ScheduleKindPersonal {
		items, err := s.schedules.ListItems(ctx, schedule.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule items")
		}
		return personalDataset(items, byID), nil
	}

	assignments, err := s.schedules.ListAssignments(ctx, schedule.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule assignments")
	}
	return institutionDataset(assignments, byID), nil
}

func personalDataset(items []models.PersonalScheduleItem, sections map[string]models.Section) *export.Dataset {
	dataset := &export.Dataset{
		Headers: []string{"Subject", "Section", "Day", "Start", "End"},
	}
	for _, item := range items {
		section, ok := sections[item.SectionID]
		if !ok {
			continue
		}
		if len(section.Placements) == 0 {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Subject": section.SubjectName,
				"Section": section.Label,
			})
			continue
		}
		for _, placement := range section.Placements {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Subject": section.SubjectName,
				"Section": section.Label,
				"Day":     string(placement.Day),
				"Start":   formatMinutes(placement.StartMin),
				"End":     formatMinutes(placement.EndMin),
			})
		}
	}
	return dataset
}

func institutionDataset(assignments []models.AssignmentRecord, sections map[string]models.Section) *export.Dataset {
	dataset := &export.Dataset{
		Headers: []string{"Subject", "Section", "Professor", "Classroom", "Block"},
	}
	for _, a := range assignments {
		row := map[string]string{
			"Classroom": a.ClassroomID,
			"Block":     a.BlockID,
		}
		if section, ok := sections[a.SectionID]; ok {
			row["Subject"] = section.SubjectName
			row["Section"] = section.Label
			row["Professor"] = section.ProfessorID
		} else {
			row["Section"] = a.SectionID
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset
}

func formatMinutes(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}
