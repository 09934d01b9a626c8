package transform

import (
	"math"
	"sort"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// IndicatorMetricsProcessor строит производные метрики временных рядов
// экономических индикаторов: рост год к году, скользящие средние за 3 и
// 12 месяцев и волатильность за 12 месяцев.
//
// Граница недостаточной истории: окно считается заполненным, только если
// присутствуют все его календарные месяцы; частичные окна не усредняются,
// метрика остается NULL (nil). Рост год к году равен NULL, если значение
// за тот же месяц прошлого года отсутствует или равно нулю
type IndicatorMetricsProcessor struct {
	logger *utils.ETLLogger
}

// NewIndicatorMetricsProcessor создает новый экземпляр IndicatorMetricsProcessor
func NewIndicatorMetricsProcessor(logger *utils.ETLLogger) *IndicatorMetricsProcessor {
	return &IndicatorMetricsProcessor{
		logger: logger,
	}
}

// ProcessIndicatorMetrics строит метрики по каждому ряду (ключ, индикатор)
func (p *IndicatorMetricsProcessor) ProcessIndicatorMetrics(observations []models.IndicatorObservation) []models.IndicatorMetric {
	p.logger.Debug("Формирование метрик индикаторов (точек: %d)...", len(observations))

	type seriesKey struct {
		naturalKey    string
		indicatorCode string
	}

	// Группируем точки по ряду
	bySeries := make(map[seriesKey][]models.IndicatorObservation)
	for _, obs := range observations {
		k := seriesKey{naturalKey: obs.NaturalKey, indicatorCode: obs.IndicatorCode}
		bySeries[k] = append(bySeries[k], obs)
	}

	seriesKeys := make([]seriesKey, 0, len(bySeries))
	for k := range bySeries {
		seriesKeys = append(seriesKeys, k)
	}
	sort.Slice(seriesKeys, func(i, j int) bool {
		if seriesKeys[i].naturalKey != seriesKeys[j].naturalKey {
			return seriesKeys[i].naturalKey < seriesKeys[j].naturalKey
		}
		return seriesKeys[i].indicatorCode < seriesKeys[j].indicatorCode
	})

	var metrics []models.IndicatorMetric

	for _, k := range seriesKeys {
		points := bySeries[k]
		sort.Slice(points, func(i, j int) bool {
			return monthIndex(points[i].Year, points[i].Month) < monthIndex(points[j].Year, points[j].Month)
		})

		// Индекс значений по порядковому номеру месяца
		values := make(map[int]float64, len(points))
		for _, pt := range points {
			values[monthIndex(pt.Year, pt.Month)] = pt.Value
		}

		for _, pt := range points {
			idx := monthIndex(pt.Year, pt.Month)

			metric := models.IndicatorMetric{
				NaturalKey:    pt.NaturalKey,
				IndicatorCode: pt.IndicatorCode,
				Year:          pt.Year,
				Month:         pt.Month,
				Value:         pt.Value,
				YoYGrowthPct:  yearOverYearGrowth(values, idx, pt.Value),
				MovingAvg3M:   trailingAverage(values, idx, 3),
				MovingAvg12M:  trailingAverage(values, idx, 12),
				Volatility12M: trailingVolatility(values, idx, 12),
			}

			metrics = append(metrics, metric)
		}
	}

	p.logger.Info("Сформировано метрик индикаторов: %d", len(metrics))
	return metrics
}

// monthIndex — порядковый номер календарного месяца
func monthIndex(year, month int) int {
	return year*12 + (month - 1)
}

// yearOverYearGrowth вычисляет рост год к году в процентах:
// (value - value_prior_year) / value_prior_year * 100.
// NULL, если значение за тот же месяц прошлого года отсутствует или равно нулю
func yearOverYearGrowth(values map[int]float64, idx int, value float64) *float64 {
	prior, ok := values[idx-12]
	if !ok || prior == 0 {
		return nil
	}
	growth := roundToThousandth((value - prior) / prior * 100)
	return &growth
}

// trailingAverage вычисляет среднее по окну из window месяцев,
// завершающемуся месяцем idx включительно. NULL при неполном окне
func trailingAverage(values map[int]float64, idx, window int) *float64 {
	sum := 0.0
	for i := 0; i < window; i++ {
		v, ok := values[idx-i]
		if !ok {
			return nil
		}
		sum += v
	}
	avg := roundToThousandth(sum / float64(window))
	return &avg
}

// trailingVolatility вычисляет выборочное стандартное отклонение по окну
// из window месяцев, завершающемуся месяцем idx. NULL при неполном окне
func trailingVolatility(values map[int]float64, idx, window int) *float64 {
	points := make([]float64, 0, window)
	sum := 0.0
	for i := 0; i < window; i++ {
		v, ok := values[idx-i]
		if !ok {
			return nil
		}
		points = append(points, v)
		sum += v
	}

	mean := sum / float64(window)
	sumSqDev := 0.0
	for _, v := range points {
		sumSqDev += (v - mean) * (v - mean)
	}

	// Выборочная дисперсия (n-1 в знаменателе)
	volatility := roundToThousandth(math.Sqrt(sumSqDev / float64(window-1)))
	return &volatility
}

// roundToThousandth округляет число до тысячных (3 знака после запятой)
func roundToThousandth(value float64) float64 {
	return math.Round(value*1000) / 1000
}
