package transform

import (
	"sort"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// RollingMetricsProcessor строит скользящие агрегаты по календарным окнам
// фиксированного размера. Окно покрывает WindowDays календарных дней,
// включая день самой метрики; дни без транзакций дают нулевой вклад.
// Доля неуспешных транзакций при нулевом знаменателе равна 0 — никогда
// не NULL и не ошибка деления
type RollingMetricsProcessor struct {
	logger  *utils.ETLLogger
	windows []int
}

// NewRollingMetricsProcessor создает новый экземпляр RollingMetricsProcessor
func NewRollingMetricsProcessor(logger *utils.ETLLogger, windows ...int) *RollingMetricsProcessor {
	if len(windows) == 0 {
		windows = []int{7, 30}
	}
	return &RollingMetricsProcessor{
		logger:  logger,
		windows: windows,
	}
}

// ProcessRollingMetrics строит скользящие агрегаты по дневной серии.
// Метрика формируется для каждой даты, присутствующей в дневных агрегатах
func (p *RollingMetricsProcessor) ProcessRollingMetrics(daily []models.DailyMetric) []models.RollingMetric {
	p.logger.Debug("Формирование скользящих агрегатов (дневных строк: %d)...", len(daily))

	// Группируем дневные агрегаты по ключу; внутри ключа — индекс по дате
	byKey := make(map[string]map[time.Time]models.DailyMetric)
	for _, d := range daily {
		if byKey[d.NaturalKey] == nil {
			byKey[d.NaturalKey] = make(map[time.Time]models.DailyMetric)
		}
		byKey[d.NaturalKey][d.Date] = d
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var metrics []models.RollingMetric

	for _, key := range keys {
		series := byKey[key]

		dates := make([]time.Time, 0, len(series))
		for date := range series {
			dates = append(dates, date)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		for _, date := range dates {
			for _, window := range p.windows {
				metrics = append(metrics, p.computeWindow(key, date, window, series))
			}
		}
	}

	p.logger.Info("Сформировано скользящих агрегатов: %d", len(metrics))
	return metrics
}

// computeWindow сворачивает окно из window календарных дней,
// завершающееся датой date включительно
func (p *RollingMetricsProcessor) computeWindow(
	key string,
	date time.Time,
	window int,
	series map[time.Time]models.DailyMetric,
) models.RollingMetric {
	var totalCount, failedCount int
	var totalAmount float64

	for i := 0; i < window; i++ {
		day := date.AddDate(0, 0, -i)
		if d, ok := series[day]; ok {
			totalCount += d.TransactionCount
			totalAmount += d.TotalAmount
			failedCount += d.FailedCount
		}
	}

	return models.RollingMetric{
		NaturalKey:     key,
		Date:           date,
		WindowDays:     window,
		AvgDailyCount:  float64(totalCount) / float64(window),
		AvgDailyAmount: totalAmount / float64(window),
		FailureRate:    safeRatio(float64(failedCount), float64(totalCount)),
	}
}

// safeRatio возвращает num/den, а при нулевом знаменателе — 0.
// Единая политика защиты от нулевого знаменателя для всех долей
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
