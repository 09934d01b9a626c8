// routes/api_routes.go
package routes

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/stream"
)

// SetupRoutes настраивает все маршруты API и WebSocket
func SetupRoutes(router *mux.Router, db *sql.DB, runLogRepo models.RunLogRepository, ingest *stream.IngestServer) {
	// Применяем CORS middleware
	router.Use(corsMiddleware)

	// WebSocket-прием транзакций
	router.HandleFunc("/ws/ingest", ingest.HandleConnections)

	// API отчетов о запусках пайплайна
	router.HandleFunc("/api/runs/latest", GetLatestRunHandler(runLogRepo)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/runs", GetRunStatsHandler(runLogRepo)).Methods("GET", "OPTIONS")

	// API потерянных транзакций
	router.HandleFunc("/api/orphans", GetOrphansHandler(db)).Methods("GET", "OPTIONS")

	// Состояние потокового приема
	router.HandleFunc("/api/ingest/stats", GetIngestStatsHandler(ingest)).Methods("GET", "OPTIONS")
}

// corsMiddleware разрешает кросс-доменные запросы к API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
