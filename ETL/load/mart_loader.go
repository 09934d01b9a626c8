package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// AnalyticsMartLoader отвечает за пересоздание аналитической витрины
type AnalyticsMartLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewAnalyticsMartLoader создает новый экземпляр AnalyticsMartLoader
func NewAnalyticsMartLoader(db *sql.DB, logger *utils.ETLLogger) *AnalyticsMartLoader {
	return &AnalyticsMartLoader{
		db:     db,
		logger: logger,
	}
}

// Load пересоздает витрину analytics_mart атомарной подменой
func (l *AnalyticsMartLoader) Load(records []models.AnalyticsRecord) error {
	startTime := time.Now()
	l.logger.Info("Пересоздание аналитической витрины (строк: %d)", len(records))

	err := rebuildAndSwap(l.db, l.logger, "analytics_mart", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO analytics_mart_staging
			(country_code, month, country_name, population, gdp_per_capita,
			development_index, transaction_count, total_amount, disbursed_amount,
			repaid_amount, failed_count, avg_indicator_value, indicator_count,
			amount_per_capita, transactions_per_1000, repayment_to_disbursement, failure_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			_, err := stmt.Exec(
				r.NaturalKey, r.Month.Format("2006-01-02"),
				r.CountryName, r.Population, r.GDPPerCapita, r.DevelopmentIndex,
				r.TransactionCount, r.TotalAmount, r.DisbursedAmount,
				r.RepaidAmount, r.FailedCount,
				r.AvgIndicatorValue, r.IndicatorCount,
				r.AmountPerCapita, r.TransactionsPer1000,
				r.RepaymentToDisbursement, r.FailureRate,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка при пересоздании аналитической витрины: %w", err)
	}

	l.logger.Info("Аналитическая витрина пересоздана. Длительность: %v", time.Since(startTime))
	return nil
}
