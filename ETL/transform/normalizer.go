package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// NormalizerProcessor отвечает за валидацию и очистку сырых записей.
// Отклоненные записи подсчитываются и логируются, но не прерывают запуск
type NormalizerProcessor struct {
	logger             *utils.ETLLogger
	eventDateMin       time.Time
	eventDateMax       time.Time
	highValueThreshold float64
}

// NewNormalizerProcessor создает новый экземпляр NormalizerProcessor.
// maxAheadDays задает, на сколько дней в будущем допускается дата транзакции
func NewNormalizerProcessor(logger *utils.ETLLogger, eventDateMin time.Time, maxAheadDays int, highValueThreshold float64) *NormalizerProcessor {
	return &NormalizerProcessor{
		logger:             logger,
		eventDateMin:       eventDateMin,
		eventDateMax:       time.Now().UTC().AddDate(0, 0, maxAheadDays),
		highValueThreshold: highValueThreshold,
	}
}

// NormalizeObservations валидирует и очищает наблюдения измерения стран.
// Возвращает очищенные записи и количество отклоненных
func (p *NormalizerProcessor) NormalizeObservations(observations []models.RawObservation) ([]models.RawObservation, int) {
	p.logger.Debug("Нормализация наблюдений измерения (всего: %d)...", len(observations))

	cleaned := make([]models.RawObservation, 0, len(observations))
	rejected := 0

	for _, obs := range observations {
		obs.NaturalKey = strings.ToUpper(strings.TrimSpace(obs.NaturalKey))
		obs.CountryName = strings.TrimSpace(obs.CountryName)

		if reason := p.validateObservation(obs); reason != "" {
			p.logger.Debug("Наблюдение отклонено (%s): ключ=%q, год=%d", reason, obs.NaturalKey, obs.ObservationYear)
			rejected++
			continue
		}

		cleaned = append(cleaned, obs)
	}

	if rejected > 0 {
		p.logger.Info("Отклонено наблюдений измерения: %d из %d", rejected, len(observations))
	}
	return cleaned, rejected
}

// validateObservation возвращает причину отклонения или пустую строку
func (p *NormalizerProcessor) validateObservation(obs models.RawObservation) string {
	if obs.NaturalKey == "" {
		return "пустой натуральный ключ"
	}
	if obs.CountryName == "" {
		return "пустое название страны"
	}
	if obs.Population <= 0 {
		return "население должно быть положительным"
	}
	if obs.LiteracyRate < 0 || obs.LiteracyRate > 100 {
		return "грамотность вне диапазона [0,100]"
	}
	if obs.UrbanPopulationPct < 0 || obs.UrbanPopulationPct > 100 {
		return "доля городского населения вне диапазона [0,100]"
	}
	if obs.LifeExpectancy <= 0 || obs.LifeExpectancy > 120 {
		return "ожидаемая продолжительность жизни вне диапазона"
	}
	if obs.GDPPerCapita < 0 {
		return "отрицательный ВВП на душу населения"
	}
	if obs.ObservationYear < 1900 || obs.ObservationYear > 2100 {
		return "год наблюдения вне диапазона"
	}
	return ""
}

// NormalizeFacts валидирует, очищает и дедуплицирует транзакции.
// Возвращает нормализованные факты, количество отклоненных записей и
// количество внутрибатчевых дубликатов. Дубликат — валидная повторная
// запись уже принятого факта: он не попадает ни в результат, ни в
// отклоненные, но учитывается отдельно, чтобы счетчики запуска сходились
// с размером входного батча
func (p *NormalizerProcessor) NormalizeFacts(facts []models.RawFactRecord) ([]models.FactRecord, int, int) {
	p.logger.Debug("Нормализация транзакций (всего: %d)...", len(facts))

	normalized := make([]models.FactRecord, 0, len(facts))
	rejected := 0
	duplicates := 0

	// Дедупликация по контент-хэшу внутри батча
	seenHashes := make(map[string]bool)

	for _, raw := range facts {
		raw.TransactionID = strings.TrimSpace(raw.TransactionID)
		raw.NaturalKey = strings.ToUpper(strings.TrimSpace(raw.NaturalKey))
		raw.TransactionType = strings.ToUpper(strings.TrimSpace(raw.TransactionType))
		raw.Sector = strings.ToUpper(strings.TrimSpace(raw.Sector))
		raw.Currency = strings.ToUpper(strings.TrimSpace(raw.Currency))
		raw.Status = strings.ToUpper(strings.TrimSpace(raw.Status))

		if reason := p.validateFact(raw); reason != "" {
			p.logger.Debug("Транзакция отклонена (%s): id=%q", reason, raw.TransactionID)
			rejected++
			continue
		}

		hash := FactContentHash(raw.TransactionID, raw.NaturalKey, raw.Amount, raw.EventDate)
		if seenHashes[hash] {
			duplicates++
			continue
		}
		seenHashes[hash] = true

		fact := models.FactRecord{
			TransactionID: raw.TransactionID,
			NaturalKey:    raw.NaturalKey,
			LoanID:        strings.TrimSpace(raw.LoanID),
			Category:      MapTransactionCategory(raw.TransactionType),
			Amount:        raw.Amount,
			Currency:      raw.Currency,
			EventDate:     truncateToDay(raw.EventDate),
			BeneficiaryID: strings.TrimSpace(raw.BeneficiaryID),
			Sector:        raw.Sector,
			Status:        raw.Status,
			IsHighValue:   raw.Amount >= p.highValueThreshold,
			IsFailed:      raw.Status == "FAILED",
			ContentHash:   hash,
		}

		normalized = append(normalized, fact)
	}

	if rejected > 0 || duplicates > 0 {
		p.logger.Info("Транзакции: отклонено %d, дубликатов %d из %d", rejected, duplicates, len(facts))
	}
	return normalized, rejected, duplicates
}

// validateFact возвращает причину отклонения или пустую строку
func (p *NormalizerProcessor) validateFact(raw models.RawFactRecord) string {
	if raw.TransactionID == "" {
		return "пустой идентификатор транзакции"
	}
	if raw.NaturalKey == "" {
		return "пустой натуральный ключ"
	}
	if raw.Amount <= 0 {
		return "сумма должна быть положительной"
	}
	if raw.Currency == "" {
		return "пустая валюта"
	}
	if raw.EventDate.Before(p.eventDateMin) || raw.EventDate.After(p.eventDateMax) {
		return "дата транзакции вне допустимого окна"
	}
	return ""
}

// NormalizeIndicators валидирует и очищает записи индикаторов.
// Возвращает точки временных рядов и количество отклоненных записей
func (p *NormalizerProcessor) NormalizeIndicators(indicators []models.RawIndicatorRecord) ([]models.IndicatorObservation, int) {
	p.logger.Debug("Нормализация индикаторов (всего: %d)...", len(indicators))

	observations := make([]models.IndicatorObservation, 0, len(indicators))
	rejected := 0

	for _, raw := range indicators {
		raw.NaturalKey = strings.ToUpper(strings.TrimSpace(raw.NaturalKey))
		raw.IndicatorCode = strings.ToUpper(strings.TrimSpace(raw.IndicatorCode))

		if reason := p.validateIndicator(raw); reason != "" {
			p.logger.Debug("Индикатор отклонен (%s): ключ=%q, код=%q", reason, raw.NaturalKey, raw.IndicatorCode)
			rejected++
			continue
		}

		observations = append(observations, models.IndicatorObservation{
			NaturalKey:    raw.NaturalKey,
			IndicatorCode: raw.IndicatorCode,
			Category:      MapIndicatorCategory(raw.IndicatorCode),
			Value:         *raw.Value,
			Year:          raw.Year,
			Month:         raw.Month,
		})
	}

	if rejected > 0 {
		p.logger.Info("Отклонено индикаторов: %d из %d", rejected, len(indicators))
	}
	return observations, rejected
}

// validateIndicator возвращает причину отклонения или пустую строку
func (p *NormalizerProcessor) validateIndicator(raw models.RawIndicatorRecord) string {
	if raw.NaturalKey == "" {
		return "пустой натуральный ключ"
	}
	if raw.IndicatorCode == "" {
		return "пустой код индикатора"
	}
	if raw.Value == nil {
		return "отсутствует значение"
	}
	if raw.Month < 1 || raw.Month > 12 {
		return "месяц вне диапазона [1,12]"
	}
	if raw.Year < 1900 || raw.Year > 2100 {
		return "год вне диапазона"
	}
	return ""
}

// FactContentHash вычисляет контент-хэш транзакции для идемпотентной
// повторной загрузки: sha256 по кортежу
// (transaction_id, natural_key, amount, event_date)
func FactContentHash(transactionID, naturalKey string, amount float64, eventDate time.Time) string {
	payload := fmt.Sprintf("%s|%s|%s|%s",
		transactionID,
		naturalKey,
		strconv.FormatFloat(amount, 'f', -1, 64),
		eventDate.Format("2006-01-02"),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// truncateToDay отбрасывает время, оставляя дату в UTC
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
