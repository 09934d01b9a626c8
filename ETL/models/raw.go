package models

import (
	"time"
)

// RawObservation представляет сырое наблюдение измерения стран из Staging
// Не сохраняется дальше фазы нормализации
type RawObservation struct {
	NaturalKey         string
	CountryName        string
	Population         int64
	GDPPerCapita       float64
	LiteracyRate       float64
	LifeExpectancy     float64
	UrbanPopulationPct float64
	ObservationYear    int
	Source             string
	LastUpdated        *time.Time // NULL у части источников
}

// RawFactRecord представляет сырую транзакционную запись из Staging
type RawFactRecord struct {
	TransactionID   string
	NaturalKey      string
	LoanID          string
	TransactionType string
	Amount          float64
	Currency        string
	EventDate       time.Time
	BeneficiaryID   string
	Sector          string
	Status          string
	Source          string
}

// RawIndicatorRecord представляет сырую запись экономического индикатора из Staging
type RawIndicatorRecord struct {
	NaturalKey    string
	IndicatorCode string
	IndicatorName string
	Value         *float64 // NULL допускается источником
	Unit          string
	Year          int
	Month         int
	Source        string
	LastUpdated   *time.Time
}

// ExtractedBatch содержит данные, извлечённые из Staging за один запуск,
// а также текущее состояние измерения из Mart
type ExtractedBatch struct {
	Observations []RawObservation
	Facts        []RawFactRecord
	Indicators   []RawIndicatorRecord

	// Существующая история версий измерения (из Mart)
	ExistingVersions []DimensionVersion

	// Максимальный занятый суррогатный ключ (для выдачи новых)
	MaxSurrogateKey int64

	ExtractedAt time.Time
}
