package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// LoadManager координирует фазу Load: изменения измерения применяются
// первыми, факты и отчет о потерянных транзакциях — следом, производные
// таблицы пересоздаются в конце
type LoadManager struct {
	db     *sql.DB
	logger *utils.ETLLogger
	loader Loader
}

// NewLoadManager создает новый экземпляр LoadManager
func NewLoadManager(db *sql.DB, logger *utils.ETLLogger) *LoadManager {
	return &LoadManager{
		db:     db,
		logger: logger,
		loader: NewMartLoader(db, logger),
	}
}

// Load записывает результат преобразования в Mart
func (m *LoadManager) Load(runID string, data *models.TransformedData) error {
	startTime := time.Now()
	m.logger.Info("Начало фазы Load (Загрузка данных)")

	// 1. История версий измерения
	if err := m.loader.LoadDimensionVersions(data.NewVersions, data.ClosedVersions); err != nil {
		return fmt.Errorf("ошибка при загрузке версий измерения: %w", err)
	}

	// 2. Привязанные транзакции
	if err := m.loader.LoadResolvedFacts(data.ResolvedFacts); err != nil {
		return fmt.Errorf("ошибка при загрузке транзакций: %w", err)
	}

	// 3. Отчет о потерянных транзакциях
	if err := m.loader.LoadOrphanFacts(runID, data.Orphans); err != nil {
		return fmt.Errorf("ошибка при сохранении потерянных транзакций: %w", err)
	}

	// 4. Производные таблицы
	if err := m.loader.LoadDailyMetrics(data.Daily); err != nil {
		return fmt.Errorf("ошибка при загрузке дневных агрегатов: %w", err)
	}
	if err := m.loader.LoadRollingMetrics(data.Rolling); err != nil {
		return fmt.Errorf("ошибка при загрузке скользящих агрегатов: %w", err)
	}
	if err := m.loader.LoadMonthToDateMetrics(data.MonthToDate); err != nil {
		return fmt.Errorf("ошибка при загрузке MTD-агрегатов: %w", err)
	}
	if err := m.loader.LoadIndicatorMetrics(data.Indicators); err != nil {
		return fmt.Errorf("ошибка при загрузке метрик индикаторов: %w", err)
	}

	// 5. Аналитическая витрина
	if err := m.loader.LoadAnalyticsMart(data.Mart); err != nil {
		return fmt.Errorf("ошибка при загрузке аналитической витрины: %w", err)
	}

	duration := time.Since(startTime)
	m.logger.Info("Фаза Load завершена. Длительность: %v", duration)

	return nil
}
