package models

import (
	"database/sql"
	"fmt"
	"time"
)

// MySQLRunLogRepository реализация RunLogRepository для MySQL
type MySQLRunLogRepository struct {
	db *sql.DB
}

// NewMySQLRunLogRepository создает новый экземпляр MySQLRunLogRepository
func NewMySQLRunLogRepository(db *sql.DB) *MySQLRunLogRepository {
	return &MySQLRunLogRepository{
		db: db,
	}
}

// CreateRunLogTable создает таблицу журнала запусков, если она не существует
func (r *MySQLRunLogRepository) CreateRunLogTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS pipeline_run_log (
		id INT AUTO_INCREMENT PRIMARY KEY,
		run_id CHAR(36) NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NULL,
		status ENUM('success', 'failed', 'in_progress') NOT NULL DEFAULT 'in_progress',
		accepted INT DEFAULT 0,
		rejected INT DEFAULT 0,
		orphaned INT DEFAULT 0,
		versions_created INT DEFAULT 0,
		versions_closed INT DEFAULT 0,
		error_message TEXT,
		execution_time_seconds FLOAT
	);
	`

	_, err := r.db.Exec(query)
	if err != nil {
		return fmt.Errorf("ошибка при создании таблицы pipeline_run_log: %w", err)
	}

	return nil
}

// CreateLogEntry создает новую запись о запуске
func (r *MySQLRunLogRepository) CreateLogEntry(runID string, startTime time.Time) (int, error) {
	query := `
	INSERT INTO pipeline_run_log (run_id, start_time, status)
	VALUES (?, ?, 'in_progress')
	`

	result, err := r.db.Exec(query, runID, startTime)
	if err != nil {
		return 0, fmt.Errorf("ошибка при создании записи о запуске: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка при получении ID созданной записи: %w", err)
	}

	return int(id), nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении
func (r *MySQLRunLogRepository) UpdateLogEntrySuccess(id int, endTime time.Time, totals RunTotals) error {
	// Рассчитываем время выполнения в секундах
	var startTime time.Time
	err := r.db.QueryRow("SELECT start_time FROM pipeline_run_log WHERE id = ?", id).Scan(&startTime)
	if err != nil {
		return fmt.Errorf("ошибка при получении времени начала запуска: %w", err)
	}

	executionTime := endTime.Sub(startTime).Seconds()

	// Обновляем запись
	query := `
	UPDATE pipeline_run_log
	SET
		end_time = ?,
		status = 'success',
		accepted = ?,
		rejected = ?,
		orphaned = ?,
		versions_created = ?,
		versions_closed = ?,
		execution_time_seconds = ?
	WHERE id = ?
	`

	_, err = r.db.Exec(
		query,
		endTime,
		totals.Accepted,
		totals.Rejected,
		totals.Orphaned,
		totals.VersionsCreated,
		totals.VersionsClosed,
		executionTime,
		id,
	)

	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске: %w", err)
	}

	return nil
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении
func (r *MySQLRunLogRepository) UpdateLogEntryFailure(id int, endTime time.Time, errorMessage string) error {
	// Рассчитываем время выполнения в секундах
	var startTime time.Time
	err := r.db.QueryRow("SELECT start_time FROM pipeline_run_log WHERE id = ?", id).Scan(&startTime)
	if err != nil {
		return fmt.Errorf("ошибка при получении времени начала запуска: %w", err)
	}

	executionTime := endTime.Sub(startTime).Seconds()

	// Обновляем запись
	query := `
	UPDATE pipeline_run_log
	SET
		end_time = ?,
		status = 'failed',
		error_message = ?,
		execution_time_seconds = ?
	WHERE id = ?
	`

	_, err = r.db.Exec(query, endTime, errorMessage, executionTime, id)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске: %w", err)
	}

	return nil
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске
func (r *MySQLRunLogRepository) GetLastSuccessfulRun() (*RunLog, error) {
	query := `
	SELECT
		id, run_id, start_time, end_time, status,
		accepted, rejected, orphaned,
		versions_created, versions_closed,
		IFNULL(error_message, ''), execution_time_seconds
	FROM pipeline_run_log
	WHERE status = 'success'
	ORDER BY end_time DESC
	LIMIT 1
	`

	var log RunLog
	err := r.db.QueryRow(query).Scan(
		&log.ID, &log.RunID, &log.StartTime, &log.EndTime, &log.Status,
		&log.Accepted, &log.Rejected, &log.Orphaned,
		&log.VersionsCreated, &log.VersionsClosed,
		&log.ErrorMessage, &log.ExecutionTimeSeconds,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Нет успешных запусков
		}
		return nil, fmt.Errorf("ошибка при получении информации о последнем успешном запуске: %w", err)
	}

	return &log, nil
}

// GetRunStats получает статистику о запусках за определенный период
func (r *MySQLRunLogRepository) GetRunStats(days int) ([]RunLog, error) {
	query := `
	SELECT
		id, run_id, start_time, end_time, status,
		accepted, rejected, orphaned,
		versions_created, versions_closed,
		IFNULL(error_message, ''), execution_time_seconds
	FROM pipeline_run_log
	WHERE start_time >= DATE_SUB(NOW(), INTERVAL ? DAY)
	ORDER BY start_time DESC
	`

	rows, err := r.db.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков: %w", err)
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var log RunLog
		// У незавершенных запусков end_time и execution_time_seconds еще NULL
		var endTime sql.NullTime
		var executionTime sql.NullFloat64
		err := rows.Scan(
			&log.ID, &log.RunID, &log.StartTime, &endTime, &log.Status,
			&log.Accepted, &log.Rejected, &log.Orphaned,
			&log.VersionsCreated, &log.VersionsClosed,
			&log.ErrorMessage, &executionTime,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании записи о запуске: %w", err)
		}
		if endTime.Valid {
			log.EndTime = endTime.Time
		}
		if executionTime.Valid {
			log.ExecutionTimeSeconds = executionTime.Float64
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по записям о запусках: %w", err)
	}

	return logs, nil
}
