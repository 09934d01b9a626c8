package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdbank/analytics_pipeline/ETL/config"
	"github.com/rdbank/analytics_pipeline/ETL/models"
)

func TestTransformEndToEnd(t *testing.T) {
	cfg := config.GetConfig()
	tr := NewTransformer(cfg, testLogger())

	updated := date(2023, time.January, 5)
	value := 4.5

	batch := &models.ExtractedBatch{
		Observations: []models.RawObservation{
			observation("BRA", 2023, 9450, &updated),
		},
		Facts: []models.RawFactRecord{
			rawFact("T1", "BRA", "DISB-001", 5000, date(2023, time.March, 10)),
			// Дубликат: схлопывается при нормализации, но считается принятым
			rawFact("T1", "BRA", "DISB-001", 5000, date(2023, time.March, 10)),
			// Потерянная: ключ без версии измерения
			rawFact("T2", "XXX", "REPAY-001", 300, date(2023, time.March, 11)),
			// Отклоненная: неположительная сумма
			rawFact("T3", "BRA", "FEE-001", -5, date(2023, time.March, 12)),
		},
		Indicators: []models.RawIndicatorRecord{
			{NaturalKey: "BRA", IndicatorCode: "INFL-CPI", Value: &value, Year: 2023, Month: 3},
		},
		ExtractedAt: time.Now(),
	}

	data, err := tr.Transform(batch)
	require.NoError(t, err)

	// Счетчики запуска сходятся с размером входа: 6 записей = 5 + 1
	assert.Equal(t, 5, data.Totals.Accepted) // 1 наблюдение + 2 транзакции + 1 дубликат + 1 индикатор
	assert.Equal(t, 1, data.Totals.Rejected)
	assert.Equal(t, 1, data.Totals.Orphaned)
	assert.Equal(t, 1, data.Totals.VersionsCreated)
	assert.Equal(t, 0, data.Totals.VersionsClosed)

	// Версия создана и действует
	require.Len(t, data.NewVersions, 1)
	assert.True(t, data.NewVersions[0].IsCurrent)
	require.Len(t, data.UpdatedVersions, 1)

	// Привязка и потери
	require.Len(t, data.ResolvedFacts, 1)
	assert.Equal(t, "T1", data.ResolvedFacts[0].TransactionID)
	assert.Equal(t, data.NewVersions[0].SurrogateKey, data.ResolvedFacts[0].DimensionSurrogateKey)
	require.Len(t, data.Orphans, 1)
	assert.Equal(t, "T2", data.Orphans[0].TransactionID)

	// Производные таблицы построены
	require.Len(t, data.Daily, 1)
	assert.Len(t, data.Rolling, 2) // окна 7 и 30 дней
	assert.Len(t, data.MonthToDate, 1)
	assert.Len(t, data.Indicators, 1)
	require.NotEmpty(t, data.Mart)
	assert.Equal(t, "BRA", data.Mart[0].NaturalKey)
}

func TestTransformIdempotentRerun(t *testing.T) {
	cfg := config.GetConfig()
	tr := NewTransformer(cfg, testLogger())

	updated := date(2023, time.January, 5)
	batch := &models.ExtractedBatch{
		Observations: []models.RawObservation{
			observation("BRA", 2023, 9450, &updated),
		},
		ExtractedAt: time.Now(),
	}

	first, err := tr.Transform(batch)
	require.NoError(t, err)
	require.Len(t, first.NewVersions, 1)

	// Повторный прогон с тем же батчем поверх обновленной истории
	rerun := &models.ExtractedBatch{
		Observations:     batch.Observations,
		ExistingVersions: first.UpdatedVersions,
		MaxSurrogateKey:  first.NewVersions[0].SurrogateKey,
		ExtractedAt:      time.Now(),
	}

	second, err := tr.Transform(rerun)
	require.NoError(t, err)
	assert.Empty(t, second.NewVersions)
	assert.Empty(t, second.ClosedVersions)
	assert.Equal(t, 0, second.Totals.VersionsCreated)
}
