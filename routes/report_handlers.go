// routes/report_handlers.go
package routes

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/stream"
)

// OrphanInfo структура для информации о потерянной транзакции
type OrphanInfo struct {
	RunID         string `json:"runId"`
	TransactionID string `json:"transactionId"`
	CountryCode   string `json:"countryCode"`
	EventDate     string `json:"eventDate"`
}

// RunsResponse структура ответа API для списка запусков
type RunsResponse struct {
	Runs []models.RunLog `json:"runs"`
}

// OrphansResponse структура ответа API для потерянных транзакций
type OrphansResponse struct {
	Orphans []OrphanInfo `json:"orphans"`
}

// IngestStatsResponse структура ответа API для счетчиков потокового приема
type IngestStatsResponse struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}

// GetLatestRunHandler обрабатывает запросы на получение последнего успешного запуска
func GetLatestRunHandler(repo models.RunLogRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := repo.GetLastSuccessfulRun()
		if err != nil {
			log.Printf("❌ Ошибка при запросе последнего запуска: %v", err)
			http.Error(w, "Ошибка при получении последнего запуска", http.StatusInternalServerError)
			return
		}

		if run == nil {
			http.Error(w, "Успешных запусков еще не было", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(run); err != nil {
			log.Printf("❌ Ошибка при кодировании JSON: %v", err)
			http.Error(w, "Ошибка при формировании ответа", http.StatusInternalServerError)
			return
		}
	}
}

// GetRunStatsHandler обрабатывает запросы на получение статистики запусков.
// Параметр days задает глубину выборки (по умолчанию 7)
func GetRunStatsHandler(repo models.RunLogRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 7
		if daysStr := r.URL.Query().Get("days"); daysStr != "" {
			parsed, err := strconv.Atoi(daysStr)
			if err != nil || parsed <= 0 {
				http.Error(w, "Неверный формат параметра days", http.StatusBadRequest)
				return
			}
			days = parsed
		}

		runs, err := repo.GetRunStats(days)
		if err != nil {
			log.Printf("❌ Ошибка при запросе статистики запусков: %v", err)
			http.Error(w, "Ошибка при получении статистики запусков", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(RunsResponse{Runs: runs}); err != nil {
			log.Printf("❌ Ошибка при кодировании JSON: %v", err)
			http.Error(w, "Ошибка при формировании ответа", http.StatusInternalServerError)
			return
		}

		log.Printf("✅ Отправлена статистика по %d запускам за %d дней", len(runs), days)
	}
}

// GetOrphansHandler обрабатывает запросы на получение потерянных транзакций.
// Параметр runId ограничивает выборку одним запуском
func GetOrphansHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Query().Get("runId")
		if runID == "" {
			runID = r.URL.Query().Get("run_id")
		}

		query := `
			SELECT run_id, transaction_id, country_code, event_date
			FROM orphan_facts
		`
		var rows *sql.Rows
		var err error

		if runID != "" {
			query += " WHERE run_id = ? ORDER BY event_date, transaction_id"
			rows, err = db.Query(query, runID)
		} else {
			query += " ORDER BY event_date, transaction_id LIMIT 1000"
			rows, err = db.Query(query)
		}

		if err != nil {
			log.Printf("❌ Ошибка при запросе потерянных транзакций: %v", err)
			http.Error(w, "Ошибка при получении потерянных транзакций", http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		var orphans []OrphanInfo
		for rows.Next() {
			var o OrphanInfo
			var eventDate time.Time

			if err := rows.Scan(&o.RunID, &o.TransactionID, &o.CountryCode, &eventDate); err != nil {
				log.Printf("❌ Ошибка при сканировании потерянной транзакции: %v", err)
				continue
			}

			o.EventDate = eventDate.Format("2006-01-02")
			orphans = append(orphans, o)
		}

		if err = rows.Err(); err != nil {
			log.Printf("❌ Ошибка при итерации по потерянным транзакциям: %v", err)
			http.Error(w, "Ошибка при обработке потерянных транзакций", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(OrphansResponse{Orphans: orphans}); err != nil {
			log.Printf("❌ Ошибка при кодировании JSON: %v", err)
			http.Error(w, "Ошибка при формировании ответа", http.StatusInternalServerError)
			return
		}
	}
}

// GetIngestStatsHandler возвращает счетчики потокового приема
func GetIngestStatsHandler(ingest *stream.IngestServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accepted, rejected := ingest.Stats()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(IngestStatsResponse{
			Accepted: accepted,
			Rejected: rejected,
		}); err != nil {
			log.Printf("❌ Ошибка при кодировании JSON: %v", err)
			http.Error(w, "Ошибка при формировании ответа", http.StatusInternalServerError)
			return
		}
	}
}
