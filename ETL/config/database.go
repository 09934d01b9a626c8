package config

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// DBConnections содержит подключения к базам данных
type DBConnections struct {
	StagingDB *sql.DB
	MartDB    *sql.DB
}

// ConnectDatabases устанавливает подключения к базам данных Staging и Mart
func ConnectDatabases(config PipelineConfig) (*DBConnections, error) {
	var connections DBConnections
	var err error

	// Подключение к Staging базе данных (исходная, сырые батчи)
	stagingDSN := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		config.StagingConfig.User,
		config.StagingConfig.Password,
		config.StagingConfig.Host,
		config.StagingConfig.Port,
		config.StagingConfig.DBName,
	)

	connections.StagingDB, err = sql.Open(config.StagingConfig.Driver, stagingDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к Staging базе данных: %w", err)
	}

	// Настройка параметров подключения к Staging
	connections.StagingDB.SetMaxOpenConns(10)
	connections.StagingDB.SetMaxIdleConns(5)
	connections.StagingDB.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения к Staging
	if err := connections.StagingDB.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось установить соединение со Staging базой данных: %w", err)
	}

	// Подключение к Mart базе данных (целевая)
	martDSN := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		config.MartConfig.User,
		config.MartConfig.Password,
		config.MartConfig.Host,
		config.MartConfig.Port,
		config.MartConfig.DBName,
	)

	connections.MartDB, err = sql.Open(config.MartConfig.Driver, martDSN)
	if err != nil {
		// Закрываем первое подключение при ошибке
		connections.StagingDB.Close()
		return nil, fmt.Errorf("ошибка подключения к Mart базе данных: %w", err)
	}

	// Настройка параметров подключения к Mart
	connections.MartDB.SetMaxOpenConns(10)
	connections.MartDB.SetMaxIdleConns(5)
	connections.MartDB.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения к Mart
	if err := connections.MartDB.Ping(); err != nil {
		// Закрываем оба подключения при ошибке
		connections.StagingDB.Close()
		connections.MartDB.Close()
		return nil, fmt.Errorf("не удалось установить соединение с Mart базой данных: %w", err)
	}

	log.Println("Успешное подключение к базам данных Staging и Mart")
	return &connections, nil
}

// CloseDatabases закрывает подключения к базам данных
func CloseDatabases(connections *DBConnections) {
	if connections.StagingDB != nil {
		if err := connections.StagingDB.Close(); err != nil {
			log.Printf("Ошибка при закрытии соединения со Staging базой данных: %v", err)
		}
	}

	if connections.MartDB != nil {
		if err := connections.MartDB.Close(); err != nil {
			log.Printf("Ошибка при закрытии соединения с Mart базой данных: %v", err)
		}
	}

	log.Println("Соединения с базами данных закрыты")
}
