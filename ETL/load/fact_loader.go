package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// FactLoader отвечает за загрузку привязанных транзакций и отчета
// о потерянных фактах
type FactLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewFactLoader создает новый экземпляр FactLoader
func NewFactLoader(db *sql.DB, logger *utils.ETLLogger) *FactLoader {
	return &FactLoader{
		db:     db,
		logger: logger,
	}
}

// LoadFacts загружает привязанные транзакции. Уникальный индекс по
// content_hash вместе с INSERT IGNORE дает идемпотентную повторную
// загрузку: повторная обработка того же батча не создает дубликатов
func (l *FactLoader) LoadFacts(facts []models.ResolvedFact) error {
	if len(facts) == 0 {
		l.logger.Debug("Нет транзакций для загрузки")
		return nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки транзакций (всего: %d)", len(facts))

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT IGNORE INTO resolved_facts
		(transaction_id, country_code, loan_id, category, amount, currency,
		event_date, beneficiary_id, sector, status, is_high_value, is_failed,
		content_hash, dimension_surrogate_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	skipped := 0

	for _, f := range facts {
		result, err := stmt.Exec(
			f.TransactionID,
			f.NaturalKey,
			f.LoanID,
			string(f.Category),
			f.Amount,
			f.Currency,
			f.EventDate.Format("2006-01-02"),
			f.BeneficiaryID,
			f.Sector,
			f.Status,
			f.IsHighValue,
			f.IsFailed,
			f.ContentHash,
			f.DimensionSurrogateKey,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке транзакции %s: %w", f.TransactionID, err)
		}

		affected, _ := result.RowsAffected()
		if affected > 0 {
			inserted++
		} else {
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	duration := time.Since(startTime)
	l.logger.Info("Загрузка транзакций завершена. Вставлено: %d, уже существовало: %d. Длительность: %v",
		inserted, skipped, duration)

	return nil
}

// LoadOrphans сохраняет отчет о потерянных транзакциях текущего запуска
func (l *FactLoader) LoadOrphans(runID string, orphans []models.OrphanFact) error {
	if len(orphans) == 0 {
		l.logger.Debug("Нет потерянных транзакций для сохранения")
		return nil
	}

	l.logger.Info("Сохранение отчета о потерянных транзакциях (всего: %d)", len(orphans))

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO orphan_facts (run_id, transaction_id, country_code, event_date)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	for _, o := range orphans {
		_, err := stmt.Exec(runID, o.TransactionID, o.NaturalKey, o.EventDate.Format("2006-01-02"))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке потерянной транзакции %s: %w", o.TransactionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	return nil
}
