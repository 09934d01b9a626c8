package extractors

import (
	"database/sql"
	"fmt"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// DimensionExtractor отвечает за чтение истории версий измерения из Mart
type DimensionExtractor struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewDimensionExtractor создает новый экземпляр DimensionExtractor
func NewDimensionExtractor(db *sql.DB, logger *utils.ETLLogger) *DimensionExtractor {
	return &DimensionExtractor{
		db:     db,
		logger: logger,
	}
}

// ExtractVersions читает полную историю версий измерения стран и
// максимальный занятый суррогатный ключ
func (e *DimensionExtractor) ExtractVersions() ([]models.DimensionVersion, int64, error) {
	query := `
		SELECT surrogate_key, country_code, country_name, population,
			gdp_per_capita, literacy_rate, life_expectancy,
			urban_population_pct, effective_date, end_date, is_current
		FROM dim_country_versions
		ORDER BY country_code, effective_date
	`

	rows, err := e.db.Query(query)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка при запросе истории версий измерения: %w", err)
	}
	defer rows.Close()

	var versions []models.DimensionVersion
	var maxKey int64

	for rows.Next() {
		var v models.DimensionVersion

		err := rows.Scan(
			&v.SurrogateKey, &v.NaturalKey, &v.Attributes.CountryName,
			&v.Attributes.Population, &v.Attributes.GDPPerCapita,
			&v.Attributes.LiteracyRate, &v.Attributes.LifeExpectancy,
			&v.Attributes.UrbanPopulationPct,
			&v.EffectiveDate, &v.EndDate, &v.IsCurrent,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка при сканировании версии измерения: %w", err)
		}

		if v.SurrogateKey > maxKey {
			maxKey = v.SurrogateKey
		}

		versions = append(versions, v)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка после итерации по версиям измерения: %w", err)
	}

	e.logger.Debug("Извлечено версий измерения: %d, максимальный суррогатный ключ: %d",
		len(versions), maxKey)
	return versions, maxKey, nil
}
