package extractors

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// ObservationExtractor отвечает за извлечение наблюдений измерения стран
type ObservationExtractor struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewObservationExtractor создает новый экземпляр ObservationExtractor
func NewObservationExtractor(db *sql.DB, logger *utils.ETLLogger) *ObservationExtractor {
	return &ObservationExtractor{
		db:     db,
		logger: logger,
	}
}

// ExtractObservations извлекает наблюдения измерения стран, загруженные после lastRunTime
func (e *ObservationExtractor) ExtractObservations(lastRunTime time.Time, limit int) ([]models.RawObservation, error) {
	query := `
		SELECT country_code, country_name, IFNULL(population, 0),
			IFNULL(gdp_per_capita, 0), IFNULL(literacy_rate, 0),
			IFNULL(life_expectancy, 0), IFNULL(urban_population_pct, 0),
			year, IFNULL(source, ''), last_updated
		FROM country_observations
		WHERE loaded_at > ?
		ORDER BY country_code, year
		LIMIT ?
	`

	rows, err := e.db.Query(query, lastRunTime, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе наблюдений измерения: %w", err)
	}
	defer rows.Close()

	var observations []models.RawObservation
	for rows.Next() {
		var obs models.RawObservation
		var lastUpdated sql.NullTime

		err := rows.Scan(
			&obs.NaturalKey, &obs.CountryName, &obs.Population,
			&obs.GDPPerCapita, &obs.LiteracyRate,
			&obs.LifeExpectancy, &obs.UrbanPopulationPct,
			&obs.ObservationYear, &obs.Source, &lastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании наблюдения: %w", err)
		}

		if lastUpdated.Valid {
			t := lastUpdated.Time
			obs.LastUpdated = &t
		}

		observations = append(observations, obs)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по наблюдениям: %w", err)
	}

	e.logger.Debug("Извлечено наблюдений измерения: %d", len(observations))
	return observations, nil
}
