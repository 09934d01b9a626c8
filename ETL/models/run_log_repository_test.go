package models

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLogEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunLogRepository(db)
	startTime := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO pipeline_run_log").
		WithArgs("run-uuid-1", startTime).
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := repo.CreateLogEntry("run-uuid-1", startTime)
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLogEntrySuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunLogRepository(db)

	startTime := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	endTime := startTime.Add(90 * time.Second)

	mock.ExpectQuery("SELECT start_time FROM pipeline_run_log").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow(startTime))

	mock.ExpectExec("UPDATE pipeline_run_log").
		WithArgs(endTime, 100, 5, 2, 3, 1, 90.0, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	totals := RunTotals{
		Accepted:        100,
		Rejected:        5,
		Orphaned:        2,
		VersionsCreated: 3,
		VersionsClosed:  1,
	}

	require.NoError(t, repo.UpdateLogEntrySuccess(42, endTime, totals))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLogEntryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunLogRepository(db)

	startTime := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	endTime := startTime.Add(30 * time.Second)

	mock.ExpectQuery("SELECT start_time FROM pipeline_run_log").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow(startTime))

	mock.ExpectExec("UPDATE pipeline_run_log").
		WithArgs(endTime, "структурная ошибка схемы", 30.0, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLogEntryFailure(42, endTime, "структурная ошибка схемы"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLastSuccessfulRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunLogRepository(db)

	startTime := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	endTime := startTime.Add(time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "run_id", "start_time", "end_time", "status",
		"accepted", "rejected", "orphaned",
		"versions_created", "versions_closed",
		"error_message", "execution_time_seconds",
	}).AddRow(7, "run-uuid-7", startTime, endTime, "success", 100, 5, 2, 3, 1, "", 60.0)

	mock.ExpectQuery("SELECT(.|\n)+FROM pipeline_run_log(.|\n)+WHERE status = 'success'").
		WillReturnRows(rows)

	run, err := repo.GetLastSuccessfulRun()
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, "run-uuid-7", run.RunID)
	assert.Equal(t, 100, run.Accepted)
	assert.Equal(t, 2, run.Orphaned)
	assert.Equal(t, endTime, run.EndTime)
}

func TestGetLastSuccessfulRunNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunLogRepository(db)

	mock.ExpectQuery("SELECT(.|\n)+FROM pipeline_run_log").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	run, err := repo.GetLastSuccessfulRun()
	require.NoError(t, err)
	assert.Nil(t, run, "отсутствие успешных запусков не является ошибкой")
}

func TestGetRunStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLRunLogRepository(db)

	startTime := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "run_id", "start_time", "end_time", "status",
		"accepted", "rejected", "orphaned",
		"versions_created", "versions_closed",
		"error_message", "execution_time_seconds",
	}).
		// Выполняющийся запуск: end_time и execution_time_seconds еще NULL
		AddRow(3, "run-3", startTime.AddDate(0, 0, 2), nil, "in_progress", 0, 0, 0, 0, 0, "", nil).
		AddRow(2, "run-2", startTime.AddDate(0, 0, 1), startTime.AddDate(0, 0, 1), "success", 50, 0, 0, 1, 0, "", 30.0).
		AddRow(1, "run-1", startTime, startTime, "failed", 0, 0, 0, 0, 0, "ошибка", 5.0)

	mock.ExpectQuery("SELECT(.|\n)+FROM pipeline_run_log(.|\n)+DATE_SUB").
		WithArgs(7).
		WillReturnRows(rows)

	logs, err := repo.GetRunStats(7)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	assert.Equal(t, "run-3", logs[0].RunID)
	assert.Equal(t, "in_progress", logs[0].Status)
	assert.True(t, logs[0].EndTime.IsZero())
	assert.Equal(t, 0.0, logs[0].ExecutionTimeSeconds)

	assert.Equal(t, "run-2", logs[1].RunID)
	assert.Equal(t, "failed", logs[2].Status)
	assert.Equal(t, "ошибка", logs[2].ErrorMessage)
}
