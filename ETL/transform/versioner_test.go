package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

func testLogger() *utils.ETLLogger {
	return utils.NewETLLogger(false)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func observation(key string, year int, gdp float64, updated *time.Time) models.RawObservation {
	return models.RawObservation{
		NaturalKey:         key,
		CountryName:        "Страна " + key,
		Population:         100000000,
		GDPPerCapita:       gdp,
		LiteracyRate:       90,
		LifeExpectancy:     75,
		UrbanPopulationPct: 80,
		ObservationYear:    year,
		Source:             "test",
		LastUpdated:        updated,
	}
}

func TestProcessVersionsInsertNewKey(t *testing.T) {
	p := NewVersionerProcessor(testLogger(), 4)

	updated := date(2022, time.March, 15)
	newVersions, closures, err := p.ProcessVersions(
		[]models.RawObservation{observation("BRA", 2022, 8900, &updated)},
		nil, 0)

	require.NoError(t, err)
	require.Len(t, newVersions, 1)
	assert.Empty(t, closures)

	v := newVersions[0]
	assert.Equal(t, int64(1), v.SurrogateKey)
	assert.Equal(t, "BRA", v.NaturalKey)
	assert.Equal(t, date(2022, time.March, 15), v.EffectiveDate)
	assert.Equal(t, InfiniteEndDate, v.EndDate)
	assert.True(t, v.IsCurrent)
}

func TestProcessVersionsNoChangeIsIdempotent(t *testing.T) {
	p := NewVersionerProcessor(testLogger(), 4)

	updated := date(2022, time.March, 15)
	obs := []models.RawObservation{observation("BRA", 2022, 8900, &updated)}

	// Первый запуск создает версию
	newVersions, closures, err := p.ProcessVersions(obs, nil, 0)
	require.NoError(t, err)
	require.Len(t, newVersions, 1)

	existing := ApplyVersionChanges(nil, newVersions, closures)

	// Повторный запуск с теми же данными не меняет историю
	again, againClosures, err := p.ProcessVersions(obs, existing, 1)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Empty(t, againClosures)
}

func TestProcessVersionsUpdateClosesCurrent(t *testing.T) {
	p := NewVersionerProcessor(testLogger(), 4)

	first := date(2022, time.March, 15)
	newVersions, closures, err := p.ProcessVersions(
		[]models.RawObservation{observation("BRA", 2022, 8900, &first)}, nil, 0)
	require.NoError(t, err)
	existing := ApplyVersionChanges(nil, newVersions, closures)

	// Изменился атрибут: действующая версия закрывается, открывается новая
	second := date(2023, time.June, 1)
	newVersions, closures, err = p.ProcessVersions(
		[]models.RawObservation{observation("BRA", 2023, 9450, &second)}, existing, 1)
	require.NoError(t, err)
	require.Len(t, newVersions, 1)
	require.Len(t, closures, 1)

	// Предшественник закрывается датой начала новой версии: интервалы
	// [effective_date, end_date) стыкуются без разрыва
	assert.Equal(t, int64(1), closures[0].SurrogateKey)
	assert.Equal(t, date(2023, time.June, 1), closures[0].EndDate)

	v := newVersions[0]
	assert.Equal(t, int64(2), v.SurrogateKey)
	assert.Equal(t, date(2023, time.June, 1), v.EffectiveDate)
	assert.True(t, v.IsCurrent)
}

func TestProcessVersionsThreeRunChain(t *testing.T) {
	p := NewVersionerProcessor(testLogger(), 4)

	var existing []models.DimensionVersion
	var maxKey int64

	runs := []struct {
		updated time.Time
		gdp     float64
	}{
		{date(2022, time.January, 10), 8900},
		{date(2023, time.February, 20), 9450},
		{date(2024, time.March, 30), 10100},
	}

	for _, run := range runs {
		updated := run.updated
		newVersions, closures, err := p.ProcessVersions(
			[]models.RawObservation{observation("BRA", updated.Year(), run.gdp, &updated)},
			existing, maxKey)
		require.NoError(t, err)
		require.Len(t, newVersions, 1)

		existing = ApplyVersionChanges(existing, newVersions, closures)
		maxKey = newVersions[0].SurrogateKey
	}

	require.Len(t, existing, 3)

	// Ровно одна действующая версия
	currentCount := 0
	var current models.DimensionVersion
	for _, v := range existing {
		if v.IsCurrent {
			currentCount++
			current = v
		}
	}
	assert.Equal(t, 1, currentCount)
	assert.Equal(t, 10100.0, current.Attributes.GDPPerCapita)
	assert.Equal(t, InfiniteEndDate, current.EndDate)

	// Интервалы версий стыкуются без пересечений и разрывов:
	// end_date каждой версии равен effective_date следующей
	assert.Equal(t, date(2023, time.February, 20), existing[0].EndDate)
	assert.Equal(t, date(2024, time.March, 30), existing[1].EndDate)
	assert.Equal(t, date(2023, time.February, 20), existing[1].EffectiveDate)
	assert.Equal(t, date(2024, time.March, 30), existing[2].EffectiveDate)

	// Суррогатные ключи никогда не переиспользуются
	assert.Equal(t, int64(1), existing[0].SurrogateKey)
	assert.Equal(t, int64(2), existing[1].SurrogateKey)
	assert.Equal(t, int64(3), existing[2].SurrogateKey)
}

func TestProcessVersionsSameDayUpdateShiftsEffectiveDate(t *testing.T) {
	p := NewVersionerProcessor(testLogger(), 4)

	updated := date(2023, time.June, 1)
	newVersions, closures, err := p.ProcessVersions(
		[]models.RawObservation{observation("BRA", 2023, 8900, &updated)}, nil, 0)
	require.NoError(t, err)
	existing := ApplyVersionChanges(nil, newVersions, closures)

	// Кандидат с той же датой: новая версия сдвигается на день вперед,
	// чтобы интервалы не пересекались
	newVersions, closures, err = p.ProcessVersions(
		[]models.RawObservation{observation("BRA", 2023, 9450, &updated)}, existing, 1)
	require.NoError(t, err)
	require.Len(t, newVersions, 1)
	require.Len(t, closures, 1)

	assert.Equal(t, date(2023, time.June, 2), newVersions[0].EffectiveDate)
	assert.Equal(t, date(2023, time.June, 2), closures[0].EndDate)

	updated2 := ApplyVersionChanges(existing, newVersions, closures)
	for _, v := range updated2 {
		assert.False(t, v.EndDate.Before(v.EffectiveDate),
			"интервал версии %d вывернут", v.SurrogateKey)
	}
}

func TestProcessVersionsSelectsLatestCandidatePerKey(t *testing.T) {
	p := NewVersionerProcessor(testLogger(), 4)

	older := date(2022, time.January, 1)
	newer := date(2023, time.July, 1)

	// За один запуск по ключу применяется только последний кандидат
	newVersions, closures, err := p.ProcessVersions(
		[]models.RawObservation{
			observation("BRA", 2022, 8900, &older),
			observation("BRA", 2023, 9450, &newer),
		}, nil, 0)
	require.NoError(t, err)
	require.Len(t, newVersions, 1)
	assert.Empty(t, closures)
	assert.Equal(t, 9450.0, newVersions[0].Attributes.GDPPerCapita)
}

func TestProcessVersionsDeterministicSurrogateAllocation(t *testing.T) {
	p := NewVersionerProcessor(testLogger(), 8)

	updated := date(2023, time.April, 1)
	obs := []models.RawObservation{
		observation("KEN", 2023, 2100, &updated),
		observation("ARG", 2023, 13600, &updated),
		observation("BRA", 2023, 9450, &updated),
	}

	// Ключи выдаются в порядке натурального ключа независимо от шардирования
	newVersions, _, err := p.ProcessVersions(obs, nil, 100)
	require.NoError(t, err)
	require.Len(t, newVersions, 3)

	assert.Equal(t, "ARG", newVersions[0].NaturalKey)
	assert.Equal(t, int64(101), newVersions[0].SurrogateKey)
	assert.Equal(t, "BRA", newVersions[1].NaturalKey)
	assert.Equal(t, int64(102), newVersions[1].SurrogateKey)
	assert.Equal(t, "KEN", newVersions[2].NaturalKey)
	assert.Equal(t, int64(103), newVersions[2].SurrogateKey)
}

func TestProcessVersionsEffectiveDateWithoutLastUpdated(t *testing.T) {
	p := NewVersionerProcessor(testLogger(), 4)

	// Без last_updated дата начала действия — 1 января года наблюдения
	newVersions, _, err := p.ProcessVersions(
		[]models.RawObservation{observation("BRA", 2022, 8900, nil)}, nil, 0)
	require.NoError(t, err)
	require.Len(t, newVersions, 1)
	assert.Equal(t, date(2022, time.January, 1), newVersions[0].EffectiveDate)
}
