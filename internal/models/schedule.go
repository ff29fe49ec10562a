package models

import "time"

// ScheduleKind distinguishes stored personal and institution schedules.
type ScheduleKind string

const (
	ScheduleKindPersonal    ScheduleKind = "PERSONAL"
	ScheduleKindInstitution ScheduleKind = "INSTITUTION"
)

// GeneratedSchedule is the persisted header of an accepted search result.
// Score holds the genetic fitness for personal schedules; Cost holds the
// annealer penalty total for institution schedules.
type GeneratedSchedule struct {
	ID        string       `db:"id" json:"id"`
	Kind      ScheduleKind `db:"kind" json:"kind"`
	TermID    string       `db:"term_id" json:"term_id"`
	StudentID *string      `db:"student_id" json:"student_id,omitempty"`
	Score     float64      `db:"score" json:"score"`
	Cost      float64      `db:"cost" json:"cost"`
	CreatedBy string       `db:"created_by" json:"created_by"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// PersonalScheduleItem links a stored personal schedule to a chosen section.
type PersonalScheduleItem struct {
	ScheduleID string `db:"schedule_id" json:"schedule_id"`
	SectionID  string `db:"section_id" json:"section_id"`
	SubjectID  string `db:"subject_id" json:"subject_id"`
}

// AssignmentRecord is one persisted room/block decision of an
// institution-wide schedule. Invalid assignments are never stored.
type AssignmentRecord struct {
	ScheduleID  string `db:"schedule_id" json:"schedule_id"`
	SectionID   string `db:"section_id" json:"section_id"`
	ClassroomID string `db:"classroom_id" json:"classroom_id"`
	BlockID     string `db:"block_id" json:"block_id"`
}
