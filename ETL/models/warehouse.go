package models

import (
	"time"
)

// TransactionCategory — закрытый набор категорий транзакций
type TransactionCategory string

const (
	CategoryDisbursement TransactionCategory = "Disbursement"
	CategoryRepayment    TransactionCategory = "Repayment"
	CategoryGrant        TransactionCategory = "Grant"
	CategoryFee          TransactionCategory = "Fee"
	CategoryTransfer     TransactionCategory = "Transfer"
	CategoryOther        TransactionCategory = "Other"
)

// IndicatorCategory — закрытый набор категорий экономических индикаторов
type IndicatorCategory string

const (
	IndicatorGDP          IndicatorCategory = "GDP"
	IndicatorInflation    IndicatorCategory = "Inflation"
	IndicatorExchangeRate IndicatorCategory = "Exchange Rate"
	IndicatorInterestRate IndicatorCategory = "Interest Rate"
	IndicatorOther        IndicatorCategory = "Other"
)

// CountryAttributes — атрибутный набор версии измерения стран
type CountryAttributes struct {
	CountryName        string
	Population         int64
	GDPPerCapita       float64
	LiteracyRate       float64
	LifeExpectancy     float64
	UrbanPopulationPct float64
}

// DimensionVersion представляет одну версию измерения стран (SCD Type 2).
// Интервал действия версии — [EffectiveDate, EndDate)
type DimensionVersion struct {
	SurrogateKey  int64
	NaturalKey    string
	Attributes    CountryAttributes
	EffectiveDate time.Time
	EndDate       time.Time
	IsCurrent     bool
}

// FactRecord представляет нормализованную транзакцию.
// Неизменяема после нормализации; дедупликация по ContentHash
type FactRecord struct {
	TransactionID string
	NaturalKey    string
	LoanID        string
	Category      TransactionCategory
	Amount        float64
	Currency      string
	EventDate     time.Time
	BeneficiaryID string
	Sector        string
	Status        string
	IsHighValue   bool
	IsFailed      bool
	ContentHash   string
}

// ResolvedFact — транзакция, привязанная к версии измерения,
// действовавшей на дату транзакции
type ResolvedFact struct {
	FactRecord
	DimensionSurrogateKey int64
}

// OrphanFact — транзакция, для даты которой не нашлось ни одной версии измерения
type OrphanFact struct {
	TransactionID string
	NaturalKey    string
	EventDate     time.Time
}

// IndicatorObservation — нормализованная точка временного ряда индикатора
type IndicatorObservation struct {
	NaturalKey    string
	IndicatorCode string
	Category      IndicatorCategory
	Value         float64
	Year          int
	Month         int
}

// DailyMetric — дневной агрегат транзакций по (natural_key, date)
type DailyMetric struct {
	NaturalKey       string
	Date             time.Time
	TransactionCount int
	TotalAmount      float64
	MinAmount        float64
	MaxAmount        float64

	// Разбивка по категориям
	CategoryCounts  map[TransactionCategory]int
	CategoryAmounts map[TransactionCategory]float64

	// Риск-флаги
	HighValueCount  int
	HighValueAmount float64
	FailedCount     int
	FailedAmount    float64

	// Количество уникальных сущностей за день
	DistinctLoans         int
	DistinctBeneficiaries int
	DistinctSectors       int
	DistinctCurrencies    int
}

// RollingMetric — скользящий агрегат по окну в WindowDays дней,
// завершающемуся датой Date
type RollingMetric struct {
	NaturalKey     string
	Date           time.Time
	WindowDays     int
	AvgDailyCount  float64
	AvgDailyAmount float64
	FailureRate    float64
}

// MonthToDateMetric — накопительный агрегат с начала календарного месяца
type MonthToDateMetric struct {
	NaturalKey     string
	Date           time.Time
	MTDCount       int
	MTDAmount      float64
	MTDDisbursed   float64
	MTDRepaid      float64
	MTDFailedCount int

	// Доли с защитой от нулевого знаменателя
	DisbursementRatio float64
	RepaymentRatio    float64
	FailureRate       float64
}

// IndicatorMetric — производные метрики временного ряда индикатора.
// Указатели означают «недостаточно истории» (NULL в витрине)
type IndicatorMetric struct {
	NaturalKey    string
	IndicatorCode string
	Year          int
	Month         int
	Value         float64
	YoYGrowthPct  *float64
	MovingAvg3M   *float64
	MovingAvg12M  *float64
	Volatility12M *float64
}

// AnalyticsRecord — строка аналитической витрины по (natural_key, month).
// Полностью пересоздаётся при каждом запуске
type AnalyticsRecord struct {
	NaturalKey string
	Month      time.Time // первый день месяца

	// Атрибуты текущей версии измерения
	CountryName      string
	Population       int64
	GDPPerCapita     float64
	DevelopmentIndex float64

	// Месячные агрегаты транзакций
	TransactionCount int
	TotalAmount      float64
	DisbursedAmount  float64
	RepaidAmount     float64
	FailedCount      int

	// Контекст индикаторов за месяц
	AvgIndicatorValue float64
	IndicatorCount    int

	// Производные KPI (нулевой знаменатель -> 0)
	AmountPerCapita         float64
	TransactionsPer1000     float64
	RepaymentToDisbursement float64
	FailureRate             float64
}

// RunTotals — счетчики запуска для машиночитаемого отчета
type RunTotals struct {
	Accepted        int
	Rejected        int
	Orphaned        int
	VersionsCreated int
	VersionsClosed  int
}

// TransformedData содержит результат фазы Transform для загрузки в Mart
type TransformedData struct {
	// Изменения измерения (единственная долгоживущая изменяемая таблица)
	NewVersions     []DimensionVersion
	ClosedVersions  []VersionClosure
	UpdatedVersions []DimensionVersion // полная таблица после применения изменений

	// Факты
	ResolvedFacts []ResolvedFact
	Orphans       []OrphanFact

	// Производные таблицы (пересоздаются целиком)
	Daily       []DailyMetric
	Rolling     []RollingMetric
	MonthToDate []MonthToDateMetric
	Indicators  []IndicatorMetric
	Mart        []AnalyticsRecord

	Totals RunTotals
}

// VersionClosure — закрытие действующей версии при UPDATE
type VersionClosure struct {
	SurrogateKey int64
	EndDate      time.Time
}
