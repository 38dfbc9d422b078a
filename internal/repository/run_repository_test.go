package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

func newRunMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRunRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("INSERT INTO schedule_runs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.ScheduleRun{
		RosterID:   "roster-1",
		Status:     models.RunStatusSearching,
		StaffCount: 4,
		SlotCount:  6,
		Config:     types.JSONText(`{"dailyHourCap":4}`),
	}
	require.NoError(t, repo.Create(context.Background(), run))
	assert.NotEmpty(t, run.ID, "id assigned on insert")
	assert.False(t, run.StartedAt.IsZero())

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "roster_id", "status", "objective", "improvements",
		"staff_count", "slot_count", "config", "report", "error", "started_at", "finished_at",
	}).AddRow(run.ID, "roster-1", "OPTIMAL", 1930, 3, 4, 6, `{}`, `null`, "", now, now)

	mock.ExpectQuery("SELECT (.+) FROM schedule_runs WHERE id").
		WithArgs(run.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusOptimal, found.Status)
	assert.Equal(t, int64(1930), found.Objective)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryFindMissing(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM schedule_runs WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRunRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("UPDATE schedule_runs SET status").
		WithArgs("run-1", models.RunStatusSearching).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "run-1", models.RunStatusSearching))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryFinish(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("UPDATE schedule_runs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	run := &models.ScheduleRun{
		ID:           "run-1",
		Status:       models.RunStatusOptimal,
		Objective:    1930,
		Improvements: 3,
		Report:       types.JSONText(`{"status":"OPTIMAL"}`),
	}
	require.NoError(t, repo.Finish(context.Background(), run))
	assert.NotNil(t, run.FinishedAt)

	mock.ExpectExec("UPDATE schedule_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Finish(context.Background(), &models.ScheduleRun{ID: "missing", Status: models.RunStatusFailed})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryList(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "roster_id", "status", "objective", "improvements",
		"staff_count", "slot_count", "config", "report", "error", "started_at", "finished_at",
	}).
		AddRow("run-2", "roster-1", "TIMED_OUT", 1200, 2, 4, 6, `{}`, `null`, "", now, nil).
		AddRow("run-1", "roster-1", "OPTIMAL", 1930, 3, 4, 6, `{}`, `null`, "", now.Add(-time.Hour), now)

	mock.ExpectQuery("SELECT (.+) FROM schedule_runs").
		WithArgs("roster-1", "", 50, 0).
		WillReturnRows(rows)

	out, err := repo.List(context.Background(), "roster-1", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "run-2", out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
