package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/rdbank/analytics_pipeline/ETL/config"
	"github.com/rdbank/analytics_pipeline/ETL/extractors"
	"github.com/rdbank/analytics_pipeline/ETL/load"
	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/transform"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
	"github.com/rdbank/analytics_pipeline/archive"
)

type PipelineRunner struct {
	config        config.PipelineConfig
	dbConnections *config.DBConnections
	logger        *utils.ETLLogger
	extractor     *extractors.Extractor
	transformer   *transform.Transformer
	loadManager   *load.LoadManager
	archiver      *archive.BatchArchiver
	runLogRepo    models.RunLogRepository
}

// NewPipelineRunner создает новый экземпляр PipelineRunner
func NewPipelineRunner() (*PipelineRunner, error) {
	// Получаем конфигурацию
	pipelineConfig := config.GetConfig()

	// Инициализируем логгер
	logger := utils.NewETLLogger(pipelineConfig.EnableDetailedLogging)
	logger.Info("Инициализация Pipeline Runner")

	// Подключаемся к базам данных
	connections, err := config.ConnectDatabases(pipelineConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базам данных: %w", err)
	}

	// Инициализируем репозиторий журнала запусков
	runLogRepo := models.NewMySQLRunLogRepository(connections.MartDB)

	// Создаем таблицу журнала, если она еще не существует
	if err := runLogRepo.CreateRunLogTable(); err != nil {
		return nil, fmt.Errorf("ошибка при создании таблицы журнала запусков: %w", err)
	}

	// Создаем архиватор батчей
	archiver, err := archive.NewBatchArchiver(pipelineConfig.ArchiveDir, logger)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании архиватора: %w", err)
	}

	// Создаем экстрактор
	extractor := extractors.NewExtractor(
		connections.StagingDB, connections.MartDB, logger, pipelineConfig.BatchSize)

	// Создаем трансформатор
	transformer := transform.NewTransformer(pipelineConfig, logger)

	// Создаем загрузчик
	loadManager := load.NewLoadManager(connections.MartDB, logger)

	return &PipelineRunner{
		config:        pipelineConfig,
		dbConnections: connections,
		logger:        logger,
		extractor:     extractor,
		transformer:   transformer,
		loadManager:   loadManager,
		archiver:      archiver,
		runLogRepo:    runLogRepo,
	}, nil
}

// Close закрывает соединения с базами данных
func (r *PipelineRunner) Close() {
	r.logger.Info("Завершение работы Pipeline Runner")
	config.CloseDatabases(r.dbConnections)
}

// ExecutePipeline выполняет полный прогон пайплайна
func (r *PipelineRunner) ExecutePipeline() error {
	startTime := time.Now()
	runID := uuid.New().String()
	r.logger.LogRunStart(runID)

	// Создаем запись в журнале запусков
	logID, err := r.runLogRepo.CreateLogEntry(runID, startTime)
	if err != nil {
		r.logger.Error("Ошибка при создании записи в журнале запусков: %v", err)
		return fmt.Errorf("ошибка при создании записи в журнале запусков: %w", err)
	}

	// Получаем метаданные последнего успешного запуска
	lastRun, err := r.runLogRepo.GetLastSuccessfulRun()
	if err != nil {
		r.logger.Error("Не удалось получить информацию о последнем успешном запуске: %v. Будет выполнен полный прогон.", err)
		// Продолжаем выполнение, но обрабатываем все данные
	}

	var lastRunTime time.Time
	if lastRun != nil {
		lastRunTime = lastRun.EndTime
		r.logger.Info("Последний успешный запуск: %v", lastRunTime)
	}

	// 1. Фаза извлечения данных (Extract)
	batch, err := r.extractor.Extract(lastRunTime)
	if err != nil {
		errMsg := fmt.Sprintf("Ошибка в фазе Extract: %v", err)
		r.logger.Error(errMsg)
		r.updateRunLogFailure(logID, errMsg)
		return fmt.Errorf("ошибка в фазе Extract: %w", err)
	}

	// Если нет новых данных, завершаем процесс
	if len(batch.Observations) == 0 && len(batch.Facts) == 0 && len(batch.Indicators) == 0 {
		r.logger.Info("Нет новых данных для обработки")
		r.updateRunLogSuccess(logID, models.RunTotals{})
		return nil
	}

	// Архивируем извлеченный батч для возможности повторного прогона
	if _, err := r.archiver.ArchiveBatch(batch, runID); err != nil {
		r.logger.Error("Ошибка при архивировании батча: %v", err)
		// Не прерываем прогон: архив — вспомогательный компонент
	}

	// 2. Фаза трансформации данных (Transform)
	transformedData, err := r.transformer.Transform(batch)
	if err != nil {
		errMsg := fmt.Sprintf("Ошибка в фазе Transform: %v", err)
		r.logger.Error(errMsg)
		r.updateRunLogFailure(logID, errMsg)
		return fmt.Errorf("ошибка в фазе Transform: %w", err)
	}

	// 3. Фаза загрузки данных (Load)
	if err := r.loadManager.Load(runID, transformedData); err != nil {
		errMsg := fmt.Sprintf("Ошибка в фазе Load: %v", err)
		r.logger.Error(errMsg)
		r.updateRunLogFailure(logID, errMsg)
		return fmt.Errorf("ошибка в фазе Load: %w", err)
	}

	// Обновляем запись в журнале с итоговыми счетчиками
	r.updateRunLogSuccess(logID, transformedData.Totals)

	r.logger.LogRunComplete(startTime,
		transformedData.Totals.Accepted,
		transformedData.Totals.Rejected,
		transformedData.Totals.Orphaned,
		transformedData.Totals.VersionsCreated,
		transformedData.Totals.VersionsClosed)

	return nil
}

// updateRunLogSuccess обновляет запись в журнале при успешном завершении
func (r *PipelineRunner) updateRunLogSuccess(logID int, totals models.RunTotals) {
	if err := r.runLogRepo.UpdateLogEntrySuccess(logID, time.Now(), totals); err != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале запусков: %v", err)
	}
}

// updateRunLogFailure обновляет запись в журнале при ошибке
func (r *PipelineRunner) updateRunLogFailure(logID int, errorMessage string) {
	if err := r.runLogRepo.UpdateLogEntryFailure(logID, time.Now(), errorMessage); err != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале запусков: %v", err)
	}
}

// StartScheduler запускает планировщик для регулярного выполнения пайплайна
func (r *PipelineRunner) StartScheduler(ctx context.Context) {
	scheduler := gocron.NewScheduler(time.UTC)

	r.logger.Info("Запуск планировщика пайплайна с интервалом %v", r.config.RunInterval)

	_, err := scheduler.Every(r.config.RunInterval).Do(func() {
		r.logger.Info("Запланированный запуск пайплайна")
		if err := r.ExecutePipeline(); err != nil {
			r.logger.Error("Ошибка при выполнении запланированного прогона: %v", err)
		}
	})

	if err != nil {
		r.logger.Error("Ошибка при настройке планировщика: %v", err)
		return
	}

	// Запускаем планировщик
	scheduler.StartAsync()

	// Ожидаем сигнал остановки из контекста
	<-ctx.Done()

	// Останавливаем планировщик
	scheduler.Stop()
	r.logger.Info("Планировщик пайплайна остановлен")
}

// RunOnce запускает пайплайн один раз
func RunOnce() {
	runner, err := NewPipelineRunner()
	if err != nil {
		log.Fatalf("Ошибка при создании Pipeline Runner: %v", err)
	}
	defer runner.Close()

	if err := runner.ExecutePipeline(); err != nil {
		log.Fatalf("Ошибка при выполнении пайплайна: %v", err)
	}
}

// RunScheduled запускает пайплайн по расписанию
func RunScheduled() {
	// Создаем контекст, который будет отменен при получении сигнала завершения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Настраиваем обработку сигналов завершения
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	// Запускаем горутину для обработки сигналов
	go func() {
		<-signalCh
		log.Println("Получен сигнал завершения. Останавливаем Pipeline Runner...")
		cancel()
	}()

	runner, err := NewPipelineRunner()
	if err != nil {
		log.Fatalf("Ошибка при создании Pipeline Runner: %v", err)
	}
	defer runner.Close()

	// Запускаем планировщик
	runner.StartScheduler(ctx)
}

func main() {
	// Параметры командной строки
	modePtr := flag.String("mode", "scheduled", "Режим работы: scheduled или once")

	flag.Parse()

	log.Println("Запуск Pipeline Runner в режиме:", *modePtr)

	switch *modePtr {
	case "once":
		RunOnce()
	case "scheduled":
		RunScheduled()
	default:
		log.Println("Неизвестный режим работы:", *modePtr)
		log.Println("Доступные режимы: scheduled, once")
		os.Exit(1)
	}

	log.Println("Pipeline Runner завершил работу")
}
