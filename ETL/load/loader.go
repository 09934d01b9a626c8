package load

import (
	"database/sql"
	"fmt"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// Loader интерфейс для загрузки данных в Mart
type Loader interface {
	// LoadDimensionVersions применяет изменения истории версий измерения
	LoadDimensionVersions(newVersions []models.DimensionVersion, closures []models.VersionClosure) error

	// LoadResolvedFacts загружает привязанные транзакции (идемпотентно)
	LoadResolvedFacts(facts []models.ResolvedFact) error

	// LoadOrphanFacts сохраняет отчет о потерянных транзакциях
	LoadOrphanFacts(runID string, orphans []models.OrphanFact) error

	// LoadDailyMetrics пересоздает таблицу дневных агрегатов
	LoadDailyMetrics(metrics []models.DailyMetric) error

	// LoadRollingMetrics пересоздает таблицу скользящих агрегатов
	LoadRollingMetrics(metrics []models.RollingMetric) error

	// LoadMonthToDateMetrics пересоздает таблицу MTD-агрегатов
	LoadMonthToDateMetrics(metrics []models.MonthToDateMetric) error

	// LoadIndicatorMetrics пересоздает таблицу метрик индикаторов
	LoadIndicatorMetrics(metrics []models.IndicatorMetric) error

	// LoadAnalyticsMart пересоздает аналитическую витрину
	LoadAnalyticsMart(records []models.AnalyticsRecord) error
}

// MartLoader реализация Loader для Mart базы данных
type MartLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger

	// Загрузчики для отдельных типов данных
	versionLoader *VersionLoader
	factLoader    *FactLoader
	metricsLoader *MetricsLoader
	martLoader    *AnalyticsMartLoader
}

// NewMartLoader создает новый экземпляр MartLoader
func NewMartLoader(db *sql.DB, logger *utils.ETLLogger) *MartLoader {
	loader := &MartLoader{
		db:     db,
		logger: logger,
	}

	// Инициализация загрузчиков для отдельных типов данных
	loader.versionLoader = NewVersionLoader(db, logger)
	loader.factLoader = NewFactLoader(db, logger)
	loader.metricsLoader = NewMetricsLoader(db, logger)
	loader.martLoader = NewAnalyticsMartLoader(db, logger)

	return loader
}

// LoadDimensionVersions применяет изменения истории версий измерения
func (l *MartLoader) LoadDimensionVersions(newVersions []models.DimensionVersion, closures []models.VersionClosure) error {
	return l.versionLoader.Load(newVersions, closures)
}

// LoadResolvedFacts загружает привязанные транзакции
func (l *MartLoader) LoadResolvedFacts(facts []models.ResolvedFact) error {
	return l.factLoader.LoadFacts(facts)
}

// LoadOrphanFacts сохраняет отчет о потерянных транзакциях
func (l *MartLoader) LoadOrphanFacts(runID string, orphans []models.OrphanFact) error {
	return l.factLoader.LoadOrphans(runID, orphans)
}

// LoadDailyMetrics пересоздает таблицу дневных агрегатов
func (l *MartLoader) LoadDailyMetrics(metrics []models.DailyMetric) error {
	return l.metricsLoader.LoadDaily(metrics)
}

// LoadRollingMetrics пересоздает таблицу скользящих агрегатов
func (l *MartLoader) LoadRollingMetrics(metrics []models.RollingMetric) error {
	return l.metricsLoader.LoadRolling(metrics)
}

// LoadMonthToDateMetrics пересоздает таблицу MTD-агрегатов
func (l *MartLoader) LoadMonthToDateMetrics(metrics []models.MonthToDateMetric) error {
	return l.metricsLoader.LoadMonthToDate(metrics)
}

// LoadIndicatorMetrics пересоздает таблицу метрик индикаторов
func (l *MartLoader) LoadIndicatorMetrics(metrics []models.IndicatorMetric) error {
	return l.metricsLoader.LoadIndicators(metrics)
}

// LoadAnalyticsMart пересоздает аналитическую витрину
func (l *MartLoader) LoadAnalyticsMart(records []models.AnalyticsRecord) error {
	return l.martLoader.Load(records)
}

// rebuildAndSwap пересоздает производную таблицу атомарной подменой:
// данные пишутся в <table>_staging, затем таблицы меняются местами одним
// RENAME TABLE. Потребители никогда не видят частично собранную таблицу
func rebuildAndSwap(db *sql.DB, logger *utils.ETLLogger, table string, fill func(tx *sql.Tx) error) error {
	staging := table + "_staging"
	old := table + "_old"

	// Готовим чистую staging-таблицу той же структуры
	if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", staging)); err != nil {
		return fmt.Errorf("ошибка при удалении staging-таблицы %s: %w", staging, err)
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %s LIKE %s", staging, table)); err != nil {
		return fmt.Errorf("ошибка при создании staging-таблицы %s: %w", staging, err)
	}

	// Наполняем staging-таблицу в транзакции
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	if err := fill(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при наполнении staging-таблицы %s: %w", staging, err)
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	// Атомарная подмена таблиц
	if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", old)); err != nil {
		return fmt.Errorf("ошибка при удалении старой таблицы %s: %w", old, err)
	}
	if _, err := db.Exec(fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s", table, old, staging, table)); err != nil {
		return fmt.Errorf("ошибка при подмене таблицы %s: %w", table, err)
	}
	if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", old)); err != nil {
		logger.Error("Не удалось удалить старую таблицу %s: %v", old, err)
	}

	return nil
}
