package transform

import (
	"sort"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// MonthToDateProcessor строит накопительные агрегаты с начала календарного
// месяца. Накопители сбрасываются на границе месяца; доли следуют единой
// политике нулевого знаменателя (safeRatio)
type MonthToDateProcessor struct {
	logger *utils.ETLLogger
}

// NewMonthToDateProcessor создает новый экземпляр MonthToDateProcessor
func NewMonthToDateProcessor(logger *utils.ETLLogger) *MonthToDateProcessor {
	return &MonthToDateProcessor{
		logger: logger,
	}
}

// ProcessMonthToDate строит MTD-агрегаты по дневной серии каждого ключа
func (p *MonthToDateProcessor) ProcessMonthToDate(daily []models.DailyMetric) []models.MonthToDateMetric {
	p.logger.Debug("Формирование MTD-агрегатов (дневных строк: %d)...", len(daily))

	// Группируем по ключу с сортировкой дат по возрастанию
	byKey := make(map[string][]models.DailyMetric)
	for _, d := range daily {
		byKey[d.NaturalKey] = append(byKey[d.NaturalKey], d)
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var metrics []models.MonthToDateMetric

	for _, key := range keys {
		series := byKey[key]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

		var mtd models.MonthToDateMetric
		currentYear, currentMonth := 0, 0

		for _, d := range series {
			year, month := d.Date.Year(), int(d.Date.Month())

			// Сброс накопителей на границе календарного месяца
			if year != currentYear || month != currentMonth {
				mtd = models.MonthToDateMetric{NaturalKey: key}
				currentYear, currentMonth = year, month
			}

			mtd.Date = d.Date
			mtd.MTDCount += d.TransactionCount
			mtd.MTDAmount += d.TotalAmount
			mtd.MTDDisbursed += d.CategoryAmounts[models.CategoryDisbursement]
			mtd.MTDRepaid += d.CategoryAmounts[models.CategoryRepayment]
			mtd.MTDFailedCount += d.FailedCount

			mtd.DisbursementRatio = safeRatio(mtd.MTDDisbursed, mtd.MTDAmount)
			mtd.RepaymentRatio = safeRatio(mtd.MTDRepaid, mtd.MTDAmount)
			mtd.FailureRate = safeRatio(float64(mtd.MTDFailedCount), float64(mtd.MTDCount))

			metrics = append(metrics, mtd)
		}
	}

	p.logger.Info("Сформировано MTD-агрегатов: %d", len(metrics))
	return metrics
}
