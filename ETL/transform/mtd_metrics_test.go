package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdbank/analytics_pipeline/ETL/models"
)

func dailyWithCategories(key string, d time.Time, disbursed, repaid float64, count, failed int) models.DailyMetric {
	return models.DailyMetric{
		NaturalKey:       key,
		Date:             d,
		TransactionCount: count,
		TotalAmount:      disbursed + repaid,
		FailedCount:      failed,
		CategoryAmounts: map[models.TransactionCategory]float64{
			models.CategoryDisbursement: disbursed,
			models.CategoryRepayment:    repaid,
		},
	}
}

func TestProcessMonthToDateAccumulation(t *testing.T) {
	p := NewMonthToDateProcessor(testLogger())

	daily := []models.DailyMetric{
		dailyWithCategories("BRA", date(2023, time.March, 1), 1000, 0, 2, 0),
		dailyWithCategories("BRA", date(2023, time.March, 15), 0, 500, 3, 1),
	}

	metrics := p.ProcessMonthToDate(daily)
	require.Len(t, metrics, 2)

	first := metrics[0]
	assert.Equal(t, 2, first.MTDCount)
	assert.InDelta(t, 1000.0, first.MTDAmount, 1e-9)
	assert.InDelta(t, 1.0, first.DisbursementRatio, 1e-9)

	second := metrics[1]
	assert.Equal(t, 5, second.MTDCount)
	assert.InDelta(t, 1500.0, second.MTDAmount, 1e-9)
	assert.InDelta(t, 1000.0, second.MTDDisbursed, 1e-9)
	assert.InDelta(t, 500.0, second.MTDRepaid, 1e-9)
	assert.Equal(t, 1, second.MTDFailedCount)
	assert.InDelta(t, 500.0/1500.0, second.RepaymentRatio, 1e-9)
	assert.InDelta(t, 0.2, second.FailureRate, 1e-9)
}

func TestProcessMonthToDateResetsAtMonthBoundary(t *testing.T) {
	p := NewMonthToDateProcessor(testLogger())

	daily := []models.DailyMetric{
		dailyWithCategories("BRA", date(2023, time.March, 31), 9000, 0, 9, 3),
		// Новый месяц: накопители начинаются заново
		dailyWithCategories("BRA", date(2023, time.April, 1), 100, 0, 1, 0),
	}

	metrics := p.ProcessMonthToDate(daily)
	require.Len(t, metrics, 2)

	april := metrics[1]
	assert.Equal(t, date(2023, time.April, 1), april.Date)
	assert.Equal(t, 1, april.MTDCount)
	assert.InDelta(t, 100.0, april.MTDAmount, 1e-9)
	assert.Equal(t, 0, april.MTDFailedCount)
	assert.Equal(t, 0.0, april.FailureRate)
}

func TestProcessMonthToDateResetsAtYearBoundary(t *testing.T) {
	p := NewMonthToDateProcessor(testLogger())

	// Декабрь 2022 и декабрь 2023 — разные месяцы, несмотря на равный номер
	daily := []models.DailyMetric{
		dailyWithCategories("BRA", date(2022, time.December, 15), 1000, 0, 1, 0),
		dailyWithCategories("BRA", date(2023, time.December, 15), 200, 0, 2, 0),
	}

	metrics := p.ProcessMonthToDate(daily)
	require.Len(t, metrics, 2)
	assert.Equal(t, 2, metrics[1].MTDCount)
	assert.InDelta(t, 200.0, metrics[1].MTDAmount, 1e-9)
}

func TestProcessMonthToDateZeroDenominator(t *testing.T) {
	p := NewMonthToDateProcessor(testLogger())

	daily := []models.DailyMetric{
		dailyWithCategories("BRA", date(2023, time.March, 1), 0, 0, 0, 0),
	}

	metrics := p.ProcessMonthToDate(daily)
	require.Len(t, metrics, 1)

	assert.Equal(t, 0.0, metrics[0].DisbursementRatio)
	assert.Equal(t, 0.0, metrics[0].RepaymentRatio)
	assert.Equal(t, 0.0, metrics[0].FailureRate)
}
