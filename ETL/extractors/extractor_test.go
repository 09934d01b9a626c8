package extractors

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

func testLogger() *utils.ETLLogger {
	return utils.NewETLLogger(false)
}

func TestVerifySchemaOK(t *testing.T) {
	stagingDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer stagingDB.Close()

	// Таблицы проверяются в недетерминированном порядке
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SELECT (.+) FROM country_observations LIMIT 0").
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectQuery("SELECT (.+) FROM transactions LIMIT 0").
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectQuery("SELECT (.+) FROM economic_indicators LIMIT 0").
		WillReturnRows(sqlmock.NewRows(nil))

	e := NewExtractor(stagingDB, nil, testLogger(), 1000)

	require.NoError(t, e.VerifySchema())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifySchemaMissingColumnIsFatal(t *testing.T) {
	stagingDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer stagingDB.Close()

	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SELECT (.+) FROM country_observations LIMIT 0").
		WillReturnError(errors.New("Unknown column 'literacy_rate'"))
	mock.ExpectQuery("SELECT (.+) FROM transactions LIMIT 0").
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectQuery("SELECT (.+) FROM economic_indicators LIMIT 0").
		WillReturnRows(sqlmock.NewRows(nil))

	e := NewExtractor(stagingDB, nil, testLogger(), 1000)

	err = e.VerifySchema()
	require.Error(t, err)

	// Структурная ошибка схемы — отдельный фатальный класс
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "country_observations", schemaErr.Table)
}
