package models

import (
	"time"
)

// RunLog представляет запись о запуске пайплайна
type RunLog struct {
	ID                   int       `json:"id"`
	RunID                string    `json:"run_id"` // UUID запуска
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	Status               string    `json:"status"` // "success", "failed", "in_progress"
	Accepted             int       `json:"accepted"`
	Rejected             int       `json:"rejected"`
	Orphaned             int       `json:"orphaned"`
	VersionsCreated      int       `json:"versions_created"`
	VersionsClosed       int       `json:"versions_closed"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	ExecutionTimeSeconds float64   `json:"execution_time_seconds"`
}

// RunLogRepository представляет репозиторий для работы с журналом запусков
type RunLogRepository interface {
	// CreateLogEntry создает новую запись о запуске
	CreateLogEntry(runID string, startTime time.Time) (int, error)

	// UpdateLogEntrySuccess обновляет запись при успешном завершении
	UpdateLogEntrySuccess(id int, endTime time.Time, totals RunTotals) error

	// UpdateLogEntryFailure обновляет запись при неудачном завершении
	UpdateLogEntryFailure(id int, endTime time.Time, errorMessage string) error

	// GetLastSuccessfulRun получает информацию о последнем успешном запуске
	GetLastSuccessfulRun() (*RunLog, error)

	// GetRunStats получает статистику о запусках за определенный период
	GetRunStats(days int) ([]RunLog, error)
}
