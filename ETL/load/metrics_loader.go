package load

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// MetricsLoader отвечает за пересоздание производных таблиц метрик.
// Все таблицы пересоздаются целиком с атомарной подменой
type MetricsLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewMetricsLoader создает новый экземпляр MetricsLoader
func NewMetricsLoader(db *sql.DB, logger *utils.ETLLogger) *MetricsLoader {
	return &MetricsLoader{
		db:     db,
		logger: logger,
	}
}

// LoadDaily пересоздает таблицу дневных агрегатов
func (l *MetricsLoader) LoadDaily(metrics []models.DailyMetric) error {
	startTime := time.Now()
	l.logger.Info("Пересоздание таблицы дневных агрегатов (строк: %d)", len(metrics))

	err := rebuildAndSwap(l.db, l.logger, "daily_metrics", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO daily_metrics_staging
			(country_code, metric_date, transaction_count, total_amount,
			min_amount, max_amount, category_counts, category_amounts,
			high_value_count, high_value_amount, failed_count, failed_amount,
			distinct_loans, distinct_beneficiaries, distinct_sectors, distinct_currencies)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range metrics {
			// Разбивки по категориям храним как JSON
			counts, err := json.Marshal(m.CategoryCounts)
			if err != nil {
				return fmt.Errorf("ошибка сериализации разбивки по категориям: %w", err)
			}
			amounts, err := json.Marshal(m.CategoryAmounts)
			if err != nil {
				return fmt.Errorf("ошибка сериализации сумм по категориям: %w", err)
			}

			_, err = stmt.Exec(
				m.NaturalKey, m.Date.Format("2006-01-02"),
				m.TransactionCount, m.TotalAmount, m.MinAmount, m.MaxAmount,
				string(counts), string(amounts),
				m.HighValueCount, m.HighValueAmount,
				m.FailedCount, m.FailedAmount,
				m.DistinctLoans, m.DistinctBeneficiaries,
				m.DistinctSectors, m.DistinctCurrencies,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка при пересоздании дневных агрегатов: %w", err)
	}

	l.logger.Info("Таблица дневных агрегатов пересоздана. Длительность: %v", time.Since(startTime))
	return nil
}

// LoadRolling пересоздает таблицу скользящих агрегатов
func (l *MetricsLoader) LoadRolling(metrics []models.RollingMetric) error {
	startTime := time.Now()
	l.logger.Info("Пересоздание таблицы скользящих агрегатов (строк: %d)", len(metrics))

	err := rebuildAndSwap(l.db, l.logger, "rolling_metrics", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO rolling_metrics_staging
			(country_code, metric_date, window_days, avg_daily_count,
			avg_daily_amount, failure_rate)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range metrics {
			_, err := stmt.Exec(
				m.NaturalKey, m.Date.Format("2006-01-02"), m.WindowDays,
				m.AvgDailyCount, m.AvgDailyAmount, m.FailureRate,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка при пересоздании скользящих агрегатов: %w", err)
	}

	l.logger.Info("Таблица скользящих агрегатов пересоздана. Длительность: %v", time.Since(startTime))
	return nil
}

// LoadMonthToDate пересоздает таблицу MTD-агрегатов
func (l *MetricsLoader) LoadMonthToDate(metrics []models.MonthToDateMetric) error {
	startTime := time.Now()
	l.logger.Info("Пересоздание таблицы MTD-агрегатов (строк: %d)", len(metrics))

	err := rebuildAndSwap(l.db, l.logger, "mtd_metrics", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO mtd_metrics_staging
			(country_code, metric_date, mtd_count, mtd_amount, mtd_disbursed,
			mtd_repaid, mtd_failed_count, disbursement_ratio, repayment_ratio, failure_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range metrics {
			_, err := stmt.Exec(
				m.NaturalKey, m.Date.Format("2006-01-02"),
				m.MTDCount, m.MTDAmount, m.MTDDisbursed, m.MTDRepaid,
				m.MTDFailedCount, m.DisbursementRatio, m.RepaymentRatio, m.FailureRate,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка при пересоздании MTD-агрегатов: %w", err)
	}

	l.logger.Info("Таблица MTD-агрегатов пересоздана. Длительность: %v", time.Since(startTime))
	return nil
}

// LoadIndicators пересоздает таблицу метрик индикаторов.
// Указатели (недостаточно истории) сохраняются как NULL
func (l *MetricsLoader) LoadIndicators(metrics []models.IndicatorMetric) error {
	startTime := time.Now()
	l.logger.Info("Пересоздание таблицы метрик индикаторов (строк: %d)", len(metrics))

	err := rebuildAndSwap(l.db, l.logger, "indicator_metrics", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO indicator_metrics_staging
			(country_code, indicator_code, year, month, value,
			yoy_growth_pct, moving_avg_3m, moving_avg_12m, volatility_12m)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range metrics {
			_, err := stmt.Exec(
				m.NaturalKey, m.IndicatorCode, m.Year, m.Month, m.Value,
				nullableFloat(m.YoYGrowthPct),
				nullableFloat(m.MovingAvg3M),
				nullableFloat(m.MovingAvg12M),
				nullableFloat(m.Volatility12M),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка при пересоздании метрик индикаторов: %w", err)
	}

	l.logger.Info("Таблица метрик индикаторов пересоздана. Длительность: %v", time.Since(startTime))
	return nil
}

// nullableFloat преобразует указатель в sql.NullFloat64
func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
