package dto

import (
	"encoding/json"

	"github.com/uniplan/enrollment-api/internal/models"
)

// SearchOverrides tunes a single run without touching server defaults.
// Zero values mean "use the configured default".
type SearchOverrides struct {
	PopulationSize int     `json:"populationSize" validate:"omitempty,min=1,max=1000"`
	Generations    int     `json:"generations" validate:"omitempty,min=1,max=10000"`
	MutationRate   float64 `json:"mutationRate" validate:"omitempty,gt=0,lte=1"`
	Seed           int64   `json:"seed"`
}

// GeneratePersonalScheduleRequest captures POST /schedules/personal/generate.
type GeneratePersonalScheduleRequest struct {
	TermID    string           `json:"termId" validate:"required"`
	Overrides *SearchOverrides `json:"overrides,omitempty" validate:"omitempty"`
}

// AnnealOverrides tunes a single institution run. Weights accepts a sparse
// map of penalty multipliers, e.g. {"professorConflict": 800}.
type AnnealOverrides struct {
	MaxIterations int                `json:"maxIterations" validate:"omitempty,min=1,max=1000000"`
	TimeoutMs     int                `json:"timeoutMs" validate:"omitempty,min=100,max=300000"`
	Seed          int64              `json:"seed"`
	Weights       map[string]float64 `json:"weights,omitempty"`
}

// GenerateInstitutionScheduleRequest captures POST /schedules/institution/generate.
type GenerateInstitutionScheduleRequest struct {
	TermID    string           `json:"termId" validate:"required"`
	Overrides *AnnealOverrides `json:"overrides,omitempty" validate:"omitempty"`
}

// ScheduleJobResponse is returned after a run is accepted.
type ScheduleJobResponse struct {
	ID     string                   `json:"id"`
	Type   models.ScheduleJobType   `json:"type"`
	Status models.ScheduleJobStatus `json:"status"`
}

// ScheduleJobStatusResponse exposes run progress and, once finished, the
// raw optimizer result.
type ScheduleJobStatusResponse struct {
	ID         string                   `json:"id"`
	Type       models.ScheduleJobType   `json:"type"`
	Status     models.ScheduleJobStatus `json:"status"`
	Result     json.RawMessage          `json:"result,omitempty"`
	Error      *string                  `json:"error,omitempty"`
	StartedAt  *string                  `json:"startedAt,omitempty"`
	FinishedAt *string                  `json:"finishedAt,omitempty"`
}

// PreferenceRequest captures PUT /preferences payloads.
type PreferenceRequest struct {
	PreferredShift string             `json:"preferredShift" validate:"omitempty,oneof=MORNING AFTERNOON EVENING"`
	Compactness    int                `json:"compactness" validate:"omitempty,min=1,max=10"`
	AvoidDays      []string           `json:"avoidDays" validate:"omitempty,max=7,dive,required"`
	WeightOverride map[string]float64 `json:"weightOverride,omitempty"`
}

// PreferenceResponse echoes the stored profile.
type PreferenceResponse struct {
	UserID         string             `json:"userId"`
	PreferredShift models.Shift       `json:"preferredShift,omitempty"`
	Compactness    int                `json:"compactness"`
	AvoidDays      []models.Weekday   `json:"avoidDays,omitempty"`
	WeightOverride map[string]float64 `json:"weightOverride,omitempty"`
}

// ScheduleSummary lists a stored generated schedule.
type ScheduleSummary struct {
	ID        string              `json:"id"`
	Kind      models.ScheduleKind `json:"kind"`
	TermID    string              `json:"termId"`
	StudentID *string             `json:"studentId,omitempty"`
	Score     float64             `json:"score"`
	Cost      float64             `json:"cost"`
	CreatedAt string              `json:"createdAt"`
}

// ExportQuery selects the export format for a stored schedule.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
