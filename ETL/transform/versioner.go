package transform

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// InfiniteEndDate — сентинель «бесконечности» для действующей версии
var InfiniteEndDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// versionAction — классификация кандидата относительно действующей версии
type versionAction int

const (
	actionInsert versionAction = iota
	actionUpdate
	actionNoChange
)

// versionChange — результат классификации по одному натуральному ключу
type versionChange struct {
	key       string
	action    versionAction
	candidate models.RawObservation
	current   *models.DimensionVersion
}

// VersionerProcessor ведет версионную историю измерения стран (SCD Type 2).
// Мутации по одному натуральному ключу строго последовательны: ключи
// распределяются по воркерам хэшированием, поэтому разные ключи
// обрабатываются параллельно, а один ключ — всегда одним воркером
type VersionerProcessor struct {
	logger  *utils.ETLLogger
	workers int
}

// NewVersionerProcessor создает новый экземпляр VersionerProcessor
func NewVersionerProcessor(logger *utils.ETLLogger, workers int) *VersionerProcessor {
	if workers < 1 {
		workers = 1
	}
	return &VersionerProcessor{
		logger:  logger,
		workers: workers,
	}
}

// ProcessVersions применяет наблюдения батча к истории версий измерения.
// Возвращает новые версии и закрытия действующих версий; существующая
// история не модифицируется (append-only). Повторный запуск с теми же
// входными данными не порождает новых версий (NO_CHANGE)
func (p *VersionerProcessor) ProcessVersions(
	observations []models.RawObservation,
	existing []models.DimensionVersion,
	maxSurrogateKey int64,
) ([]models.DimensionVersion, []models.VersionClosure, error) {
	p.logger.Debug("Версионирование измерения: наблюдений %d, существующих версий %d",
		len(observations), len(existing))

	// Группируем наблюдения по натуральному ключу
	byKey := make(map[string][]models.RawObservation)
	for _, obs := range observations {
		byKey[obs.NaturalKey] = append(byKey[obs.NaturalKey], obs)
	}

	// Индекс действующих версий по ключу
	currentByKey := make(map[string]*models.DimensionVersion)
	for i := range existing {
		if existing[i].IsCurrent {
			currentByKey[existing[i].NaturalKey] = &existing[i]
		}
	}

	// Фаза 1: параллельная классификация. Ключи шардируются хэшем,
	// каждый шард обрабатывает свои ключи последовательно
	shards := p.workers
	if len(byKey) < shards {
		shards = len(byKey)
	}
	if shards == 0 {
		return nil, nil, nil
	}

	shardKeys := make([][]string, shards)
	for key := range byKey {
		idx := int(keyShard(key, uint32(shards)))
		shardKeys[idx] = append(shardKeys[idx], key)
	}

	shardChanges := make([][]versionChange, shards)
	var wg sync.WaitGroup
	for s := 0; s < shards; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			changes := make([]versionChange, 0, len(shardKeys[s]))
			for _, key := range shardKeys[s] {
				candidate := selectCandidate(byKey[key])
				change := versionChange{
					key:       key,
					candidate: candidate,
					current:   currentByKey[key],
				}
				change.action = classify(change.current, candidate)
				changes = append(changes, change)
			}
			shardChanges[s] = changes
		}(s)
	}
	wg.Wait()

	// Фаза 2: последовательная выдача суррогатных ключей в детерминированном
	// порядке (по натуральному ключу), чтобы повторный запуск давал
	// идентичный результат
	var mutations []versionChange
	for _, changes := range shardChanges {
		for _, c := range changes {
			if c.action != actionNoChange {
				mutations = append(mutations, c)
			}
		}
	}
	sort.Slice(mutations, func(i, j int) bool {
		return mutations[i].key < mutations[j].key
	})

	var newVersions []models.DimensionVersion
	var closures []models.VersionClosure
	nextKey := maxSurrogateKey

	for _, m := range mutations {
		effective := candidateEffectiveDate(m.candidate)

		if m.action == actionUpdate {
			// Интервалы версий не должны пересекаться: новая версия
			// начинается строго позже действующей
			if !effective.After(m.current.EffectiveDate) {
				effective = m.current.EffectiveDate.AddDate(0, 0, 1)
			}
			// Полуоткрытые интервалы [effective_date, end_date) стыкуются
			// встык: предшественник закрывается датой начала новой версии,
			// иначе день перед сменой версии остался бы непокрытым
			closures = append(closures, models.VersionClosure{
				SurrogateKey: m.current.SurrogateKey,
				EndDate:      effective,
			})
		}

		nextKey++
		newVersions = append(newVersions, models.DimensionVersion{
			SurrogateKey:  nextKey,
			NaturalKey:    m.key,
			Attributes:    observationAttributes(m.candidate),
			EffectiveDate: effective,
			EndDate:       InfiniteEndDate,
			IsCurrent:     true,
		})
	}

	p.logger.Info("Версионирование завершено: создано %d, закрыто %d, без изменений %d",
		len(newVersions), len(closures), len(byKey)-len(mutations))
	return newVersions, closures, nil
}

// ApplyVersionChanges строит полную таблицу версий после применения
// изменений запуска. Используется как барьер зависимости: резолвер
// работает только по этой, полностью обновленной таблице
func ApplyVersionChanges(
	existing []models.DimensionVersion,
	newVersions []models.DimensionVersion,
	closures []models.VersionClosure,
) []models.DimensionVersion {
	closedBy := make(map[int64]time.Time, len(closures))
	for _, c := range closures {
		closedBy[c.SurrogateKey] = c.EndDate
	}

	updated := make([]models.DimensionVersion, 0, len(existing)+len(newVersions))
	for _, v := range existing {
		if endDate, ok := closedBy[v.SurrogateKey]; ok {
			v.EndDate = endDate
			v.IsCurrent = false
		}
		updated = append(updated, v)
	}
	updated = append(updated, newVersions...)

	return updated
}

// selectCandidate выбирает наблюдение-кандидат для ключа: последняя пара
// (observation_year, last_updated), NULL в last_updated сортируется
// последним. Стабильная сортировка дает детерминированный разбор ничьих
func selectCandidate(observations []models.RawObservation) models.RawObservation {
	sorted := make([]models.RawObservation, len(observations))
	copy(sorted, observations)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ObservationYear != sorted[j].ObservationYear {
			return sorted[i].ObservationYear > sorted[j].ObservationYear
		}
		// NULL last_updated сортируется после любого значения
		switch {
		case sorted[i].LastUpdated == nil && sorted[j].LastUpdated == nil:
			return false
		case sorted[i].LastUpdated == nil:
			return false
		case sorted[j].LastUpdated == nil:
			return true
		default:
			return sorted[i].LastUpdated.After(*sorted[j].LastUpdated)
		}
	})

	return sorted[0]
}

// classify определяет действие по кандидату: INSERT при отсутствии
// действующей версии, UPDATE при отличии атрибутов, иначе NO_CHANGE
func classify(current *models.DimensionVersion, candidate models.RawObservation) versionAction {
	if current == nil {
		return actionInsert
	}
	if current.Attributes == observationAttributes(candidate) {
		return actionNoChange
	}
	return actionUpdate
}

// candidateEffectiveDate определяет дату начала действия новой версии:
// дата last_updated наблюдения, а при её отсутствии — 1 января года
// наблюдения (детерминизм вместо текущего времени)
func candidateEffectiveDate(obs models.RawObservation) time.Time {
	if obs.LastUpdated != nil {
		return truncateToDay(*obs.LastUpdated)
	}
	return time.Date(obs.ObservationYear, 1, 1, 0, 0, 0, 0, time.UTC)
}

// observationAttributes извлекает атрибутный набор из наблюдения
func observationAttributes(obs models.RawObservation) models.CountryAttributes {
	return models.CountryAttributes{
		CountryName:        obs.CountryName,
		Population:         obs.Population,
		GDPPerCapita:       obs.GDPPerCapita,
		LiteracyRate:       obs.LiteracyRate,
		LifeExpectancy:     obs.LifeExpectancy,
		UrbanPopulationPct: obs.UrbanPopulationPct,
	}
}

// keyShard возвращает номер шарда для натурального ключа
func keyShard(key string, shards uint32) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % shards
}
