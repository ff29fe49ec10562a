package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/uniplan/enrollment-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleJobRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewScheduleJobRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_jobs")).
		WithArgs(sqlmock.AnyArg(), "personal", "QUEUED", "term-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	studentID := "student-1"
	job := &models.ScheduleJob{
		Type:      models.ScheduleJobPersonal,
		TermID:    "term-1",
		StudentID: &studentID,
		Params:    types.JSONText(`{"termId":"term-1"}`),
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.ScheduleJobQueued, job.Status)

	rows := sqlmock.NewRows([]string{"id", "type", "status", "term_id", "student_id", "params", "result", "error_message", "created_by", "created_at", "started_at", "finished_at"}).
		AddRow(job.ID, "personal", "QUEUED", "term-1", studentID, []byte(`{}`), nil, nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, status, term_id, student_id, params, result, error_message, created_by, created_at, started_at, finished_at FROM schedule_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleJobRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleJobRepository(db)

	now := time.Now()
	status := models.ScheduleJobDone
	result := types.JSONText(`{"score":310}`)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_jobs SET status = $1, result = $2, finished_at = $3 WHERE id = $4")).
		WithArgs(status, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateScheduleJobParams{
		Status:     &status,
		Result:     &result,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleJobRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleJobRepository(db)

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateScheduleJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleJobRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleJobRepository(db)

	rows := sqlmock.NewRows([]string{"id", "type", "status", "term_id", "student_id", "params", "result", "error_message", "created_by", "created_at", "started_at", "finished_at"}).
		AddRow("job-1", "institution", "QUEUED", "term-1", nil, []byte(`{}`), nil, nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
