package transform

import (
	"sort"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// ResolverProcessor привязывает каждую транзакцию к версии измерения,
// действовавшей на дату транзакции (point-in-time join), а не к текущей.
// Транзакция без покрывающей версии исключается и попадает в отчет
// о потерянных фактах — это сигнал нарушения ссылочной целостности,
// но не фатальная ошибка
type ResolverProcessor struct {
	logger *utils.ETLLogger
}

// NewResolverProcessor создает новый экземпляр ResolverProcessor
func NewResolverProcessor(logger *utils.ETLLogger) *ResolverProcessor {
	return &ResolverProcessor{
		logger: logger,
	}
}

// ResolveFacts находит для каждой транзакции версию v её ключа, такую что
// v.EffectiveDate <= EventDate < v.EndDate. Таблица версий должна быть
// полностью обновлена версионером до вызова (барьер зависимости)
func (p *ResolverProcessor) ResolveFacts(
	facts []models.FactRecord,
	versions []models.DimensionVersion,
) ([]models.ResolvedFact, []models.OrphanFact) {
	p.logger.Debug("Привязка транзакций к версиям измерения (всего: %d)...", len(facts))

	// Индекс версий по ключу, отсортированных по дате начала действия
	index := make(map[string][]models.DimensionVersion)
	for _, v := range versions {
		index[v.NaturalKey] = append(index[v.NaturalKey], v)
	}
	for key := range index {
		sort.Slice(index[key], func(i, j int) bool {
			return index[key][i].EffectiveDate.Before(index[key][j].EffectiveDate)
		})
	}

	resolved := make([]models.ResolvedFact, 0, len(facts))
	var orphans []models.OrphanFact

	for _, fact := range facts {
		version, found := lookupVersion(index[fact.NaturalKey], fact)
		if !found {
			orphans = append(orphans, models.OrphanFact{
				TransactionID: fact.TransactionID,
				NaturalKey:    fact.NaturalKey,
				EventDate:     fact.EventDate,
			})
			continue
		}

		resolved = append(resolved, models.ResolvedFact{
			FactRecord:            fact,
			DimensionSurrogateKey: version.SurrogateKey,
		})
	}

	if len(orphans) > 0 {
		p.logger.Info("Потерянных транзакций (нет покрывающей версии): %d из %d", len(orphans), len(facts))
	}
	p.logger.Debug("Привязано транзакций: %d", len(resolved))
	return resolved, orphans
}

// lookupVersion ищет версию, интервал которой [EffectiveDate, EndDate)
// покрывает дату транзакции. Версии отсортированы по дате начала действия
func lookupVersion(versions []models.DimensionVersion, fact models.FactRecord) (models.DimensionVersion, bool) {
	if len(versions) == 0 {
		return models.DimensionVersion{}, false
	}

	// Последняя версия с EffectiveDate <= EventDate
	idx := sort.Search(len(versions), func(i int) bool {
		return versions[i].EffectiveDate.After(fact.EventDate)
	}) - 1

	if idx < 0 {
		// Транзакция датирована раньше всей известной истории измерения
		return models.DimensionVersion{}, false
	}

	if !fact.EventDate.Before(versions[idx].EndDate) {
		// Разрыв в истории: версия закончилась раньше даты транзакции
		return models.DimensionVersion{}, false
	}

	return versions[idx], true
}
