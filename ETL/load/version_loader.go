package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// VersionLoader отвечает за применение изменений истории версий измерения.
// Таблица dim_country_versions — единственная долгоживущая изменяемая
// таблица: существующие строки только закрываются, новые добавляются,
// удаление не выполняется
type VersionLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewVersionLoader создает новый экземпляр VersionLoader
func NewVersionLoader(db *sql.DB, logger *utils.ETLLogger) *VersionLoader {
	return &VersionLoader{
		db:     db,
		logger: logger,
	}
}

// Load применяет закрытия и вставки новых версий в одной транзакции
func (l *VersionLoader) Load(newVersions []models.DimensionVersion, closures []models.VersionClosure) error {
	if len(newVersions) == 0 && len(closures) == 0 {
		l.logger.Debug("Нет изменений истории версий для загрузки")
		return nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки изменений измерения (новых: %d, закрытий: %d)",
		len(newVersions), len(closures))

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	// Сначала закрываем действующие версии
	closeStmt, err := tx.Prepare(`
		UPDATE dim_country_versions
		SET end_date = ?, is_current = FALSE
		WHERE surrogate_key = ?
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при подготовке запроса закрытия версий: %w", err)
	}
	defer closeStmt.Close()

	for _, c := range closures {
		if _, err := closeStmt.Exec(c.EndDate.Format("2006-01-02"), c.SurrogateKey); err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при закрытии версии %d: %w", c.SurrogateKey, err)
		}
	}

	// Затем вставляем новые версии
	insertStmt, err := tx.Prepare(`
		INSERT INTO dim_country_versions
		(surrogate_key, country_code, country_name, population,
		gdp_per_capita, literacy_rate, life_expectancy, urban_population_pct,
		effective_date, end_date, is_current)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при подготовке запроса вставки версий: %w", err)
	}
	defer insertStmt.Close()

	for _, v := range newVersions {
		_, err := insertStmt.Exec(
			v.SurrogateKey,
			v.NaturalKey,
			v.Attributes.CountryName,
			v.Attributes.Population,
			v.Attributes.GDPPerCapita,
			v.Attributes.LiteracyRate,
			v.Attributes.LifeExpectancy,
			v.Attributes.UrbanPopulationPct,
			v.EffectiveDate.Format("2006-01-02"),
			v.EndDate.Format("2006-01-02"),
			v.IsCurrent,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке версии для ключа %s: %w", v.NaturalKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	duration := time.Since(startTime)
	l.logger.Info("Загрузка изменений измерения завершена. Длительность: %v", duration)

	return nil
}
