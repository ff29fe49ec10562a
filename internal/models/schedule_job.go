package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleJobType enumerates the two optimization run kinds.
type ScheduleJobType string

const (
	ScheduleJobPersonal    ScheduleJobType = "personal"
	ScheduleJobInstitution ScheduleJobType = "institution"
)

// ScheduleJobStatus captures background run lifecycle states.
type ScheduleJobStatus string

const (
	ScheduleJobQueued  ScheduleJobStatus = "QUEUED"
	ScheduleJobRunning ScheduleJobStatus = "RUNNING"
	ScheduleJobDone    ScheduleJobStatus = "DONE"
	ScheduleJobFailed  ScheduleJobStatus = "FAILED"
)

// ScheduleJob is the persisted record of a queued optimization run.
type ScheduleJob struct {
	ID           string            `db:"id" json:"id"`
	Type         ScheduleJobType   `db:"type" json:"type"`
	Status       ScheduleJobStatus `db:"status" json:"status"`
	TermID       string            `db:"term_id" json:"term_id"`
	StudentID    *string           `db:"student_id" json:"student_id,omitempty"`
	Params       types.JSONText    `db:"params" json:"params,omitempty"`
	Result       types.JSONText    `db:"result" json:"result,omitempty"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string            `db:"created_by" json:"created_by"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	StartedAt    *time.Time        `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
}
