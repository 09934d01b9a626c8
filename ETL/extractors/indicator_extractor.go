package extractors

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// IndicatorExtractor отвечает за извлечение экономических индикаторов
type IndicatorExtractor struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewIndicatorExtractor создает новый экземпляр IndicatorExtractor
func NewIndicatorExtractor(db *sql.DB, logger *utils.ETLLogger) *IndicatorExtractor {
	return &IndicatorExtractor{
		db:     db,
		logger: logger,
	}
}

// ExtractIndicators извлекает всю доступную историю индикаторов.
// Оконные метрики (YoY, скользящие средние, волатильность) пересчитываются
// по полному ряду, поэтому инкрементальное извлечение здесь не применяется
func (e *IndicatorExtractor) ExtractIndicators(lastRunTime time.Time, limit int) ([]models.RawIndicatorRecord, error) {
	query := `
		SELECT country_code, indicator_code, IFNULL(indicator_name, ''),
			value, IFNULL(unit, ''), year, month,
			IFNULL(source, ''), last_updated
		FROM economic_indicators
		ORDER BY country_code, indicator_code, year, month
		LIMIT ?
	`

	rows, err := e.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе индикаторов: %w", err)
	}
	defer rows.Close()

	var indicators []models.RawIndicatorRecord
	for rows.Next() {
		var ind models.RawIndicatorRecord
		var value sql.NullFloat64
		var lastUpdated sql.NullTime

		err := rows.Scan(
			&ind.NaturalKey, &ind.IndicatorCode, &ind.IndicatorName,
			&value, &ind.Unit, &ind.Year, &ind.Month,
			&ind.Source, &lastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании индикатора: %w", err)
		}

		if value.Valid {
			v := value.Float64
			ind.Value = &v
		}
		if lastUpdated.Valid {
			t := lastUpdated.Time
			ind.LastUpdated = &t
		}

		indicators = append(indicators, ind)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по индикаторам: %w", err)
	}

	e.logger.Debug("Извлечено индикаторов: %d", len(indicators))
	return indicators, nil
}
