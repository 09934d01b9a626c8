// routes/report_handlers_test.go
package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdbank/analytics_pipeline/ETL/models"
)

// stubRunLogRepo — заглушка репозитория журнала запусков
type stubRunLogRepo struct {
	lastRun *models.RunLog
	stats   []models.RunLog
	err     error
}

func (s *stubRunLogRepo) CreateLogEntry(runID string, startTime time.Time) (int, error) {
	return 0, nil
}

func (s *stubRunLogRepo) UpdateLogEntrySuccess(id int, endTime time.Time, totals models.RunTotals) error {
	return nil
}

func (s *stubRunLogRepo) UpdateLogEntryFailure(id int, endTime time.Time, errorMessage string) error {
	return nil
}

func (s *stubRunLogRepo) GetLastSuccessfulRun() (*models.RunLog, error) {
	return s.lastRun, s.err
}

func (s *stubRunLogRepo) GetRunStats(days int) ([]models.RunLog, error) {
	return s.stats, s.err
}

func TestGetLatestRunHandler(t *testing.T) {
	repo := &stubRunLogRepo{
		lastRun: &models.RunLog{
			ID:       7,
			RunID:    "run-uuid-7",
			Status:   "success",
			Accepted: 100,
			Orphaned: 2,
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/latest", nil)
	rec := httptest.NewRecorder()

	GetLatestRunHandler(repo)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var run models.RunLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-uuid-7", run.RunID)
	assert.Equal(t, 100, run.Accepted)
	assert.Equal(t, 2, run.Orphaned)
}

func TestGetLatestRunHandlerNoRuns(t *testing.T) {
	repo := &stubRunLogRepo{}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/latest", nil)
	rec := httptest.NewRecorder()

	GetLatestRunHandler(repo)(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRunStatsHandler(t *testing.T) {
	repo := &stubRunLogRepo{
		stats: []models.RunLog{
			{RunID: "run-2", Status: "success"},
			{RunID: "run-1", Status: "failed"},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs?days=14", nil)
	rec := httptest.NewRecorder()

	GetRunStatsHandler(repo)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 2)
	assert.Equal(t, "run-2", resp.Runs[0].RunID)
}

func TestGetRunStatsHandlerInvalidDays(t *testing.T) {
	repo := &stubRunLogRepo{}

	req := httptest.NewRequest(http.MethodGet, "/api/runs?days=abc", nil)
	rec := httptest.NewRecorder()

	GetRunStatsHandler(repo)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrphansHandlerByRunID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eventDate := time.Date(2023, time.March, 11, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"run_id", "transaction_id", "country_code", "event_date"}).
		AddRow("run-uuid-1", "T9", "XXX", eventDate)

	mock.ExpectQuery("SELECT run_id, transaction_id, country_code, event_date(.|\n)+FROM orphan_facts(.|\n)+WHERE run_id = ?").
		WithArgs("run-uuid-1").
		WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/orphans?runId=run-uuid-1", nil)
	rec := httptest.NewRecorder()

	GetOrphansHandler(db)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp OrphansResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Orphans, 1)
	assert.Equal(t, "T9", resp.Orphans[0].TransactionID)
	assert.Equal(t, "XXX", resp.Orphans[0].CountryCode)
	assert.Equal(t, "2023-03-11", resp.Orphans[0].EventDate)
}
