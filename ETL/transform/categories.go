package transform

import (
	"strings"

	"github.com/rdbank/analytics_pipeline/ETL/models"
)

// categoryPrefix задает соответствие префикса исходного кода категории
type categoryPrefix struct {
	prefix   string
	category models.TransactionCategory
}

// transactionCategoryTable — таблица соответствия кодов типов транзакций
// закрытому набору категорий. Берется первый совпавший префикс;
// несопоставленные коды попадают в CategoryOther
var transactionCategoryTable = []categoryPrefix{
	{"DISB", models.CategoryDisbursement},
	{"REPAY", models.CategoryRepayment},
	{"GRANT", models.CategoryGrant},
	{"FEE", models.CategoryFee},
	{"TRANSF", models.CategoryTransfer},
}

// MapTransactionCategory сопоставляет исходный код типа транзакции категории
func MapTransactionCategory(typeCode string) models.TransactionCategory {
	code := strings.ToUpper(strings.TrimSpace(typeCode))
	for _, entry := range transactionCategoryTable {
		if strings.HasPrefix(code, entry.prefix) {
			return entry.category
		}
	}
	return models.CategoryOther
}

// indicatorPrefix задает соответствие префикса кода индикатора категории
type indicatorPrefix struct {
	prefix   string
	category models.IndicatorCategory
}

// indicatorCategoryTable — таблица соответствия кодов индикаторов категориям
var indicatorCategoryTable = []indicatorPrefix{
	{"GDP", models.IndicatorGDP},
	{"INFL", models.IndicatorInflation},
	{"EXCH", models.IndicatorExchangeRate},
	{"INT", models.IndicatorInterestRate},
}

// MapIndicatorCategory сопоставляет код индикатора категории
func MapIndicatorCategory(indicatorCode string) models.IndicatorCategory {
	code := strings.ToUpper(strings.TrimSpace(indicatorCode))
	for _, entry := range indicatorCategoryTable {
		if strings.HasPrefix(code, entry.prefix) {
			return entry.category
		}
	}
	return models.IndicatorOther
}
