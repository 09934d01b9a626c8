package transform

import (
	"sort"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// dailyAccumulator — промежуточное состояние агрегации одного дня
type dailyAccumulator struct {
	metric        models.DailyMetric
	loans         map[string]bool
	beneficiaries map[string]bool
	sectors       map[string]bool
	currencies    map[string]bool
}

// DailyMetricsProcessor строит дневные агрегаты по (natural_key, date).
// Агрегаты — чистая функция от истории фактов и пересчитываются целиком
type DailyMetricsProcessor struct {
	logger *utils.ETLLogger
}

// NewDailyMetricsProcessor создает новый экземпляр DailyMetricsProcessor
func NewDailyMetricsProcessor(logger *utils.ETLLogger) *DailyMetricsProcessor {
	return &DailyMetricsProcessor{
		logger: logger,
	}
}

// ProcessDailyMetrics агрегирует привязанные транзакции по дням
func (p *DailyMetricsProcessor) ProcessDailyMetrics(facts []models.ResolvedFact) []models.DailyMetric {
	p.logger.Debug("Формирование дневных агрегатов (транзакций: %d)...", len(facts))

	type dayKey struct {
		naturalKey string
		date       time.Time
	}

	accumulators := make(map[dayKey]*dailyAccumulator)

	for _, fact := range facts {
		k := dayKey{naturalKey: fact.NaturalKey, date: fact.EventDate}

		acc, exists := accumulators[k]
		if !exists {
			acc = &dailyAccumulator{
				metric: models.DailyMetric{
					NaturalKey:      fact.NaturalKey,
					Date:            fact.EventDate,
					MinAmount:       fact.Amount,
					MaxAmount:       fact.Amount,
					CategoryCounts:  make(map[models.TransactionCategory]int),
					CategoryAmounts: make(map[models.TransactionCategory]float64),
				},
				loans:         make(map[string]bool),
				beneficiaries: make(map[string]bool),
				sectors:       make(map[string]bool),
				currencies:    make(map[string]bool),
			}
			accumulators[k] = acc
		}

		m := &acc.metric
		m.TransactionCount++
		m.TotalAmount += fact.Amount
		if fact.Amount < m.MinAmount {
			m.MinAmount = fact.Amount
		}
		if fact.Amount > m.MaxAmount {
			m.MaxAmount = fact.Amount
		}

		// Разбивка по категориям
		m.CategoryCounts[fact.Category]++
		m.CategoryAmounts[fact.Category] += fact.Amount

		// Риск-флаги
		if fact.IsHighValue {
			m.HighValueCount++
			m.HighValueAmount += fact.Amount
		}
		if fact.IsFailed {
			m.FailedCount++
			m.FailedAmount += fact.Amount
		}

		// Уникальные сущности
		if fact.LoanID != "" {
			acc.loans[fact.LoanID] = true
		}
		if fact.BeneficiaryID != "" {
			acc.beneficiaries[fact.BeneficiaryID] = true
		}
		if fact.Sector != "" {
			acc.sectors[fact.Sector] = true
		}
		if fact.Currency != "" {
			acc.currencies[fact.Currency] = true
		}
	}

	// Формируем результат в детерминированном порядке (ключ, дата)
	metrics := make([]models.DailyMetric, 0, len(accumulators))
	for _, acc := range accumulators {
		acc.metric.DistinctLoans = len(acc.loans)
		acc.metric.DistinctBeneficiaries = len(acc.beneficiaries)
		acc.metric.DistinctSectors = len(acc.sectors)
		acc.metric.DistinctCurrencies = len(acc.currencies)
		metrics = append(metrics, acc.metric)
	}

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].NaturalKey != metrics[j].NaturalKey {
			return metrics[i].NaturalKey < metrics[j].NaturalKey
		}
		return metrics[i].Date.Before(metrics[j].Date)
	})

	p.logger.Info("Сформировано дневных агрегатов: %d", len(metrics))
	return metrics
}
