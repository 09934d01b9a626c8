package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdbank/analytics_pipeline/ETL/models"
)

func dailyMetric(key string, d time.Time, count int, amount float64, failed int) models.DailyMetric {
	return models.DailyMetric{
		NaturalKey:       key,
		Date:             d,
		TransactionCount: count,
		TotalAmount:      amount,
		FailedCount:      failed,
	}
}

func findRolling(metrics []models.RollingMetric, d time.Time, window int) (models.RollingMetric, bool) {
	for _, m := range metrics {
		if m.Date.Equal(d) && m.WindowDays == window {
			return m, true
		}
	}
	return models.RollingMetric{}, false
}

func TestProcessRollingMetricsSevenDayAverage(t *testing.T) {
	p := NewRollingMetricsProcessor(testLogger(), 7)

	// Семь последовательных дней с суммами 10..70: среднее за окно — 40
	start := date(2023, time.March, 1)
	var daily []models.DailyMetric
	for i := 0; i < 7; i++ {
		daily = append(daily, dailyMetric("BRA", start.AddDate(0, 0, i), 1, float64((i+1)*10), 0))
	}

	metrics := p.ProcessRollingMetrics(daily)
	require.Len(t, metrics, 7)

	last, ok := findRolling(metrics, date(2023, time.March, 7), 7)
	require.True(t, ok)
	assert.InDelta(t, 40.0, last.AvgDailyAmount, 1e-9)
	assert.InDelta(t, 1.0, last.AvgDailyCount, 1e-9)
}

func TestProcessRollingMetricsMissingDaysContributeZero(t *testing.T) {
	p := NewRollingMetricsProcessor(testLogger(), 7)

	// Единственный день с транзакциями: окно всё равно делится на 7
	daily := []models.DailyMetric{
		dailyMetric("BRA", date(2023, time.March, 7), 7, 700, 0),
	}

	metrics := p.ProcessRollingMetrics(daily)
	require.Len(t, metrics, 1)

	assert.InDelta(t, 100.0, metrics[0].AvgDailyAmount, 1e-9)
	assert.InDelta(t, 1.0, metrics[0].AvgDailyCount, 1e-9)
}

func TestProcessRollingMetricsFailureRateZeroDenominator(t *testing.T) {
	p := NewRollingMetricsProcessor(testLogger(), 7)

	// В окне нет транзакций с ненулевым количеством: доля равна 0, не NaN
	daily := []models.DailyMetric{
		dailyMetric("BRA", date(2023, time.March, 7), 0, 0, 0),
	}

	metrics := p.ProcessRollingMetrics(daily)
	require.Len(t, metrics, 1)
	assert.Equal(t, 0.0, metrics[0].FailureRate)
}

func TestProcessRollingMetricsFailureRate(t *testing.T) {
	p := NewRollingMetricsProcessor(testLogger(), 7)

	daily := []models.DailyMetric{
		dailyMetric("BRA", date(2023, time.March, 6), 6, 600, 0),
		dailyMetric("BRA", date(2023, time.March, 7), 4, 400, 2),
	}

	metrics := p.ProcessRollingMetrics(daily)

	last, ok := findRolling(metrics, date(2023, time.March, 7), 7)
	require.True(t, ok)
	assert.InDelta(t, 0.2, last.FailureRate, 1e-9)
}

func TestProcessRollingMetricsBothWindows(t *testing.T) {
	p := NewRollingMetricsProcessor(testLogger(), 7, 30)

	daily := []models.DailyMetric{
		dailyMetric("BRA", date(2023, time.March, 1), 30, 3000, 0),
		// Через 10 дней: вне 7-дневного окна, внутри 30-дневного
		dailyMetric("BRA", date(2023, time.March, 11), 0, 0, 0),
	}

	metrics := p.ProcessRollingMetrics(daily)
	require.Len(t, metrics, 4)

	week, ok := findRolling(metrics, date(2023, time.March, 11), 7)
	require.True(t, ok)
	assert.Equal(t, 0.0, week.AvgDailyAmount)

	month, ok := findRolling(metrics, date(2023, time.March, 11), 30)
	require.True(t, ok)
	assert.InDelta(t, 100.0, month.AvgDailyAmount, 1e-9)
}

func TestSafeRatio(t *testing.T) {
	assert.Equal(t, 0.0, safeRatio(5, 0))
	assert.Equal(t, 2.5, safeRatio(5, 2))
	assert.Equal(t, 0.0, safeRatio(0, 0))
}
