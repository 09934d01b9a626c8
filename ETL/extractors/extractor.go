package extractors

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// SchemaError — структурная ошибка входного батча (отсутствует таблица или колонка).
// Единственный фатальный класс ошибок: запуск прерывается до любых мутаций
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("структурная ошибка схемы таблицы %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Extractor координирует процесс извлечения данных из Staging и Mart
type Extractor struct {
	stagingDB      *sql.DB
	martDB         *sql.DB
	logger         *utils.ETLLogger
	observationExt *ObservationExtractor
	factExt        *FactExtractor
	indicatorExt   *IndicatorExtractor
	dimensionExt   *DimensionExtractor
	batchSize      int
}

// NewExtractor создает новый экземпляр Extractor
func NewExtractor(stagingDB, martDB *sql.DB, logger *utils.ETLLogger, batchSize int) *Extractor {
	return &Extractor{
		stagingDB:      stagingDB,
		martDB:         martDB,
		logger:         logger,
		observationExt: NewObservationExtractor(stagingDB, logger),
		factExt:        NewFactExtractor(stagingDB, logger),
		indicatorExt:   NewIndicatorExtractor(stagingDB, logger),
		dimensionExt:   NewDimensionExtractor(martDB, logger),
		batchSize:      batchSize,
	}
}

// Extract выполняет извлечение сырых батчей из Staging и текущей истории
// версий измерения из Mart. Перед извлечением проверяется схема входа:
// структурно неполный батч прерывает запуск до любых мутаций
func (e *Extractor) Extract(lastRunTime time.Time) (*models.ExtractedBatch, error) {
	startTime := time.Now()
	e.logger.LogExtractStart()

	// Проверяем схему входных таблиц до чтения данных
	if err := e.VerifySchema(); err != nil {
		e.logger.Error("Проверка схемы не пройдена: %v", err)
		return nil, err
	}

	var batch models.ExtractedBatch
	var err error

	// Извлекаем наблюдения измерения стран
	batch.Observations, err = e.observationExt.ExtractObservations(lastRunTime, e.batchSize)
	if err != nil {
		e.logger.Error("Ошибка при извлечении наблюдений измерения: %v", err)
		return nil, fmt.Errorf("ошибка извлечения наблюдений измерения: %w", err)
	}

	// Извлекаем транзакции
	batch.Facts, err = e.factExt.ExtractFacts(lastRunTime, e.batchSize)
	if err != nil {
		e.logger.Error("Ошибка при извлечении транзакций: %v", err)
		return nil, fmt.Errorf("ошибка извлечения транзакций: %w", err)
	}

	// Извлекаем индикаторы
	batch.Indicators, err = e.indicatorExt.ExtractIndicators(lastRunTime, e.batchSize)
	if err != nil {
		e.logger.Error("Ошибка при извлечении индикаторов: %v", err)
		return nil, fmt.Errorf("ошибка извлечения индикаторов: %w", err)
	}

	// Извлекаем существующую историю версий измерения из Mart
	batch.ExistingVersions, batch.MaxSurrogateKey, err = e.dimensionExt.ExtractVersions()
	if err != nil {
		e.logger.Error("Ошибка при извлечении истории версий: %v", err)
		return nil, fmt.Errorf("ошибка извлечения истории версий: %w", err)
	}

	// Записываем время извлечения
	batch.ExtractedAt = time.Now()

	// Выводим информацию о завершении
	e.logger.LogExtractComplete(
		len(batch.Observations),
		len(batch.Facts),
		len(batch.Indicators),
		time.Since(startTime),
	)

	return &batch, nil
}

// requiredColumns описывает обязательные колонки входных таблиц Staging
var requiredColumns = map[string]string{
	"country_observations": "country_code, country_name, population, gdp_per_capita, literacy_rate, life_expectancy, urban_population_pct, year, source, last_updated",
	"transactions":         "transaction_id, country_code, loan_id, transaction_type, amount, currency, transaction_date, beneficiary_id, sector, status, source",
	"economic_indicators":  "country_code, indicator_code, indicator_name, value, unit, year, month, source, last_updated",
}

// VerifySchema проверяет наличие обязательных таблиц и колонок во входных
// таблицах Staging. Возвращает *SchemaError при любом несоответствии
func (e *Extractor) VerifySchema() error {
	for table, columns := range requiredColumns {
		// LIMIT 0 проверяет существование таблицы и всех колонок без чтения строк
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", columns, table)
		rows, err := e.stagingDB.Query(query)
		if err != nil {
			return &SchemaError{Table: table, Err: err}
		}
		rows.Close()
	}

	e.logger.Debug("Схема входных таблиц проверена")
	return nil
}
