package transform

import (
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/config"
	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// Transformer координирует процесс преобразования сырого батча в
// аналитические таблицы: нормализация, версионирование измерения,
// point-in-time привязка фактов, оконные агрегаты и сборка витрины
type Transformer struct {
	logger             *utils.ETLLogger
	normalizer         *NormalizerProcessor
	versioner          *VersionerProcessor
	resolver           *ResolverProcessor
	dailyProcessor     *DailyMetricsProcessor
	rollingProcessor   *RollingMetricsProcessor
	mtdProcessor       *MonthToDateProcessor
	indicatorProcessor *IndicatorMetricsProcessor
	martComposer       *MartComposerProcessor
}

// NewTransformer создает новый экземпляр Transformer
func NewTransformer(cfg config.PipelineConfig, logger *utils.ETLLogger) *Transformer {
	return &Transformer{
		logger: logger,
		normalizer: NewNormalizerProcessor(
			logger,
			cfg.EventDateWindow.Min,
			cfg.EventDateWindow.MaxAheadDays,
			cfg.HighValueThreshold,
		),
		versioner:          NewVersionerProcessor(logger, cfg.VersionerWorkers),
		resolver:           NewResolverProcessor(logger),
		dailyProcessor:     NewDailyMetricsProcessor(logger),
		rollingProcessor:   NewRollingMetricsProcessor(logger, cfg.RollingWindows.Short, cfg.RollingWindows.Long),
		mtdProcessor:       NewMonthToDateProcessor(logger),
		indicatorProcessor: NewIndicatorMetricsProcessor(logger),
		martComposer:       NewMartComposerProcessor(logger),
	}
}

// Transform выполняет полный процесс преобразования извлеченного батча
func (t *Transformer) Transform(batch *models.ExtractedBatch) (*models.TransformedData, error) {
	startTime := time.Now()
	t.logger.Info("Начало фазы Transform (Преобразование данных)")

	transformedData := &models.TransformedData{}

	// 1. Нормализация сырых записей (валидация, очистка, дедупликация)
	t.logger.Info("Нормализация сырых записей...")
	observations, rejectedObs := t.normalizer.NormalizeObservations(batch.Observations)
	facts, rejectedFacts, duplicateFacts := t.normalizer.NormalizeFacts(batch.Facts)
	indicatorPoints, rejectedInds := t.normalizer.NormalizeIndicators(batch.Indicators)

	// Дубликат — повторная запись уже принятого факта, поэтому считается
	// принятым: accepted + rejected сходится с размером входного батча
	transformedData.Totals.Accepted = len(observations) + len(facts) + duplicateFacts + len(indicatorPoints)
	transformedData.Totals.Rejected = rejectedObs + rejectedFacts + rejectedInds

	// 2. Версионирование измерения стран (SCD Type 2)
	t.logger.Info("Версионирование измерения стран...")
	newVersions, closures, err := t.versioner.ProcessVersions(
		observations, batch.ExistingVersions, batch.MaxSurrogateKey)
	if err != nil {
		t.logger.Error("Ошибка при версионировании измерения: %v", err)
		return nil, err
	}
	transformedData.NewVersions = newVersions
	transformedData.ClosedVersions = closures
	transformedData.Totals.VersionsCreated = len(newVersions)
	transformedData.Totals.VersionsClosed = len(closures)

	// Барьер зависимости: резолвер работает только по полностью
	// обновленной таблице версий
	transformedData.UpdatedVersions = ApplyVersionChanges(
		batch.ExistingVersions, newVersions, closures)

	// 3. Point-in-time привязка транзакций к версиям измерения
	t.logger.Info("Привязка транзакций к версиям измерения...")
	resolvedFacts, orphans := t.resolver.ResolveFacts(facts, transformedData.UpdatedVersions)
	transformedData.ResolvedFacts = resolvedFacts
	transformedData.Orphans = orphans
	transformedData.Totals.Orphaned = len(orphans)

	// 4. Дневные агрегаты
	t.logger.Info("Формирование дневных агрегатов...")
	transformedData.Daily = t.dailyProcessor.ProcessDailyMetrics(resolvedFacts)

	// 5. Скользящие агрегаты
	t.logger.Info("Формирование скользящих агрегатов...")
	transformedData.Rolling = t.rollingProcessor.ProcessRollingMetrics(transformedData.Daily)

	// 6. Накопительные агрегаты с начала месяца
	t.logger.Info("Формирование MTD-агрегатов...")
	transformedData.MonthToDate = t.mtdProcessor.ProcessMonthToDate(transformedData.Daily)

	// 7. Метрики временных рядов индикаторов
	t.logger.Info("Формирование метрик индикаторов...")
	transformedData.Indicators = t.indicatorProcessor.ProcessIndicatorMetrics(indicatorPoints)

	// 8. Сборка аналитической витрины
	t.logger.Info("Сборка аналитической витрины...")
	transformedData.Mart = t.martComposer.ComposeMart(
		transformedData.UpdatedVersions, transformedData.Daily, transformedData.Indicators)

	duration := time.Since(startTime)
	t.logger.Info("Фаза Transform завершена. Длительность: %v", duration)

	return transformedData, nil
}
