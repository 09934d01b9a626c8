// main.go
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"

	"github.com/rdbank/analytics_pipeline/ETL/config"
	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/routes"
	"github.com/rdbank/analytics_pipeline/stream"
)

func main() {
	fmt.Println("Запуск сервера пайплайна...")

	// Получаем конфигурацию
	pipelineConfig := config.GetConfig()

	// Подключаемся к базам данных
	connections, err := config.ConnectDatabases(pipelineConfig)
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к базам данных: %v", err)
	}
	defer config.CloseDatabases(connections)

	// Репозиторий журнала запусков (для API отчетов)
	runLogRepo := models.NewMySQLRunLogRepository(connections.MartDB)
	if err := runLogRepo.CreateRunLogTable(); err != nil {
		log.Fatalf("❌ Не удалось создать таблицу журнала запусков: %v", err)
	}

	// Сервер потокового приема транзакций (пишет в Staging)
	ingest := stream.NewIngestServer(connections.StagingDB)

	// Создаем маршрутизатор
	router := mux.NewRouter()
	routes.SetupRoutes(router, connections.MartDB, runLogRepo, ingest)

	// Настраиваем сервер
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", pipelineConfig.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запускаем сервер в отдельной горутине
	go func() {
		log.Printf("✅ Сервер запущен на http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Ошибка запуска сервера: %v", err)
		}
	}()

	// Канал для сигналов завершения
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Ожидаем сигнал завершения
	<-stop
	log.Println("⚠️ Получен сигнал завершения, закрываем соединения...")

	if err := server.Close(); err != nil {
		log.Printf("❌ Ошибка остановки сервера: %v", err)
	}

	log.Println("👋 Сервер остановлен")
}
