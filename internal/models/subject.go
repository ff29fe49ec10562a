package models

import "time"

// Subject represents an academic subject offered in a term.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Credits     int       `db:"credits" json:"credits"`
	RequiresLab bool      `db:"requires_lab" json:"requires_lab"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectSelection is one entry of a student's ordered selection set.
type SubjectSelection struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	TermID    string `db:"term_id" json:"term_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
	Priority  int    `db:"priority" json:"priority"`
}
