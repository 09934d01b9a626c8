package extractors

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// FactExtractor отвечает за извлечение сырых транзакций
type FactExtractor struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewFactExtractor создает новый экземпляр FactExtractor
func NewFactExtractor(db *sql.DB, logger *utils.ETLLogger) *FactExtractor {
	return &FactExtractor{
		db:     db,
		logger: logger,
	}
}

// ExtractFacts извлекает транзакции, загруженные после lastRunTime
func (e *FactExtractor) ExtractFacts(lastRunTime time.Time, limit int) ([]models.RawFactRecord, error) {
	query := `
		SELECT transaction_id, country_code, IFNULL(loan_id, ''),
			transaction_type, amount, currency, transaction_date,
			IFNULL(beneficiary_id, ''), IFNULL(sector, ''),
			IFNULL(status, ''), IFNULL(source, '')
		FROM transactions
		WHERE loaded_at > ?
		ORDER BY transaction_date, transaction_id
		LIMIT ?
	`

	rows, err := e.db.Query(query, lastRunTime, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе транзакций: %w", err)
	}
	defer rows.Close()

	var facts []models.RawFactRecord
	for rows.Next() {
		var f models.RawFactRecord

		err := rows.Scan(
			&f.TransactionID, &f.NaturalKey, &f.LoanID,
			&f.TransactionType, &f.Amount, &f.Currency, &f.EventDate,
			&f.BeneficiaryID, &f.Sector, &f.Status, &f.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании транзакции: %w", err)
		}

		facts = append(facts, f)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по транзакциям: %w", err)
	}

	e.logger.Debug("Извлечено транзакций: %d", len(facts))
	return facts, nil
}
