package transform

import (
	"sort"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// monthlyFactAgg — месячный агрегат транзакций одного ключа
type monthlyFactAgg struct {
	transactionCount int
	totalAmount      float64
	disbursedAmount  float64
	repaidAmount     float64
	failedCount      int
}

// monthlyIndicatorAgg — месячный контекст индикаторов одного ключа
type monthlyIndicatorAgg struct {
	valueSum float64
	count    int
}

// MartComposerProcessor собирает аналитическую витрину по (natural_key, month):
// атрибуты текущей версии измерения, месячные агрегаты транзакций и
// месячный контекст индикаторов. Витрина полностью пересоздается при
// каждом запуске; все доли проходят через единый safeRatio
type MartComposerProcessor struct {
	logger *utils.ETLLogger
}

// NewMartComposerProcessor создает новый экземпляр MartComposerProcessor
func NewMartComposerProcessor(logger *utils.ETLLogger) *MartComposerProcessor {
	return &MartComposerProcessor{
		logger: logger,
	}
}

// ComposeMart строит строки витрины из обновленной таблицы версий,
// дневных агрегатов и метрик индикаторов
func (p *MartComposerProcessor) ComposeMart(
	versions []models.DimensionVersion,
	daily []models.DailyMetric,
	indicators []models.IndicatorMetric,
) []models.AnalyticsRecord {
	p.logger.Debug("Сборка аналитической витрины...")

	// Атрибуты текущих версий измерения
	currentAttrs := make(map[string]models.CountryAttributes)
	for _, v := range versions {
		if v.IsCurrent {
			currentAttrs[v.NaturalKey] = v.Attributes
		}
	}

	type martKey struct {
		naturalKey string
		month      time.Time
	}

	// Месячные агрегаты транзакций из дневной серии
	factAggs := make(map[martKey]*monthlyFactAgg)
	for _, d := range daily {
		k := martKey{naturalKey: d.NaturalKey, month: monthStart(d.Date)}
		agg, exists := factAggs[k]
		if !exists {
			agg = &monthlyFactAgg{}
			factAggs[k] = agg
		}
		agg.transactionCount += d.TransactionCount
		agg.totalAmount += d.TotalAmount
		agg.disbursedAmount += d.CategoryAmounts[models.CategoryDisbursement]
		agg.repaidAmount += d.CategoryAmounts[models.CategoryRepayment]
		agg.failedCount += d.FailedCount
	}

	// Месячный контекст индикаторов
	indicatorAggs := make(map[martKey]*monthlyIndicatorAgg)
	for _, ind := range indicators {
		k := martKey{
			naturalKey: ind.NaturalKey,
			month:      time.Date(ind.Year, time.Month(ind.Month), 1, 0, 0, 0, 0, time.UTC),
		}
		agg, exists := indicatorAggs[k]
		if !exists {
			agg = &monthlyIndicatorAgg{}
			indicatorAggs[k] = agg
		}
		agg.valueSum += ind.Value
		agg.count++
	}

	// Объединение ключей витрины: месяцы транзакций и месяцы индикаторов
	keySet := make(map[martKey]bool)
	for k := range factAggs {
		keySet[k] = true
	}
	for k := range indicatorAggs {
		keySet[k] = true
	}

	martKeys := make([]martKey, 0, len(keySet))
	for k := range keySet {
		martKeys = append(martKeys, k)
	}
	sort.Slice(martKeys, func(i, j int) bool {
		if martKeys[i].naturalKey != martKeys[j].naturalKey {
			return martKeys[i].naturalKey < martKeys[j].naturalKey
		}
		return martKeys[i].month.Before(martKeys[j].month)
	})

	records := make([]models.AnalyticsRecord, 0, len(martKeys))

	for _, k := range martKeys {
		record := models.AnalyticsRecord{
			NaturalKey: k.naturalKey,
			Month:      k.month,
		}

		// Атрибуты текущей версии (могут отсутствовать для ключей,
		// известных только по транзакциям или индикаторам)
		if attrs, ok := currentAttrs[k.naturalKey]; ok {
			record.CountryName = attrs.CountryName
			record.Population = attrs.Population
			record.GDPPerCapita = attrs.GDPPerCapita
			record.DevelopmentIndex = developmentIndex(attrs)
		}

		if agg, ok := factAggs[k]; ok {
			record.TransactionCount = agg.transactionCount
			record.TotalAmount = agg.totalAmount
			record.DisbursedAmount = agg.disbursedAmount
			record.RepaidAmount = agg.repaidAmount
			record.FailedCount = agg.failedCount
		}

		if agg, ok := indicatorAggs[k]; ok {
			record.AvgIndicatorValue = safeRatio(agg.valueSum, float64(agg.count))
			record.IndicatorCount = agg.count
		}

		// Производные KPI; нулевой знаменатель -> 0 по единой политике
		population := float64(record.Population)
		record.AmountPerCapita = safeRatio(record.TotalAmount, population)
		record.TransactionsPer1000 = safeRatio(float64(record.TransactionCount)*1000, population)
		record.RepaymentToDisbursement = safeRatio(record.RepaidAmount, record.DisbursedAmount)
		record.FailureRate = safeRatio(float64(record.FailedCount), float64(record.TransactionCount))

		records = append(records, record)
	}

	p.logger.Info("Собрано строк витрины: %d", len(records))
	return records
}

// developmentIndex — взвешенный индекс развития страны по атрибутам измерения
func developmentIndex(attrs models.CountryAttributes) float64 {
	return attrs.GDPPerCapita/1000*0.4 +
		attrs.LiteracyRate/100*0.3 +
		attrs.LifeExpectancy/100*0.3
}

// monthStart — первый день календарного месяца даты
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
