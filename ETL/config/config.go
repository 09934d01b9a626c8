package config

import (
	"time"
)

// PipelineConfig содержит конфигурацию для ETL-процесса
type PipelineConfig struct {
	// Конфигурация для подключения к Staging БД (исходной, сырые данные)
	StagingConfig DatabaseConfig `json:"staging_config"`

	// Конфигурация для подключения к Mart БД (целевой, аналитической)
	MartConfig DatabaseConfig `json:"mart_config"`

	// Интервал запуска ETL
	RunInterval time.Duration `json:"run_interval"`

	// Максимальное количество записей, извлекаемых за один запуск
	BatchSize int `json:"batch_size"`

	// Допустимое окно дат для транзакций
	EventDateWindow struct {
		Min          time.Time `json:"min"`            // Нижняя граница даты транзакции
		MaxAheadDays int       `json:"max_ahead_days"` // Сколько дней в будущем допускается
	} `json:"event_date_window"`

	// Порог суммы, начиная с которого транзакция считается крупной
	HighValueThreshold float64 `json:"high_value_threshold"`

	// Количество воркеров версионера (партиционирование по натуральному ключу)
	VersionerWorkers int `json:"versioner_workers"`

	// Скользящие окна агрегации (в днях)
	RollingWindows struct {
		Short int `json:"short"`
		Long  int `json:"long"`
	} `json:"rolling_windows"`

	// Каталог для snappy-архивов сырых батчей
	ArchiveDir string `json:"archive_dir"`

	// Порт HTTP-сервера (API отчетов и приём потока)
	HTTPPort int `json:"http_port"`

	// Включение/отключение детального логирования
	EnableDetailedLogging bool `json:"enable_detailed_logging"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
}

// Значения конфигурации по умолчанию
var (
	DefaultStagingConfig = DatabaseConfig{
		Driver:   "mysql",
		Host:     "localhost",
		Port:     3306,
		User:     "etl",
		Password: "etl",
		DBName:   "bank_staging",
	}

	DefaultMartConfig = DatabaseConfig{
		Driver:   "mysql",
		Host:     "localhost",
		Port:     3306,
		User:     "etl",
		Password: "etl",
		DBName:   "bank_analytics",
	}

	DefaultPipelineConfig = PipelineConfig{
		StagingConfig:         DefaultStagingConfig,
		MartConfig:            DefaultMartConfig,
		RunInterval:           24 * time.Hour,
		BatchSize:             50000,
		HighValueThreshold:    1000000,
		VersionerWorkers:      8,
		ArchiveDir:            "archive",
		HTTPPort:              8090,
		EnableDetailedLogging: true,
	}
)

// GetConfig возвращает конфигурацию ETL
func GetConfig() PipelineConfig {
	config := DefaultPipelineConfig

	// Окно допустимых дат транзакций: не раньше 2000 года и не дальше суток в будущем
	config.EventDateWindow.Min = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	config.EventDateWindow.MaxAheadDays = 1

	// Скользящие окна: неделя и месяц
	config.RollingWindows.Short = 7
	config.RollingWindows.Long = 30

	return config
}
