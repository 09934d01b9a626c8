package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"

	"github.com/rdbank/analytics_pipeline/ETL/models"
	"github.com/rdbank/analytics_pipeline/ETL/utils"
)

// BatchArchiver сохраняет извлеченные батчи на диск в сжатом виде.
// Архив позволяет повторно прогнать преобразование без обращения
// к staging-базе
type BatchArchiver struct {
	dir    string
	logger *utils.ETLLogger
}

// NewBatchArchiver создает новый экземпляр BatchArchiver
func NewBatchArchiver(dir string, logger *utils.ETLLogger) (*BatchArchiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка при создании каталога архива: %w", err)
	}
	return &BatchArchiver{
		dir:    dir,
		logger: logger,
	}, nil
}

// ArchiveBatch сериализует батч в JSON, сжимает и пишет в файл.
// Возвращает путь к созданному файлу
func (a *BatchArchiver) ArchiveBatch(batch *models.ExtractedBatch, runID string) (string, error) {
	startTime := time.Now()

	data, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("ошибка при сериализации батча: %w", err)
	}

	compressed := Compress(data)
	path := filepath.Join(a.dir, fmt.Sprintf("batch_%s.json.sz", runID))

	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return "", fmt.Errorf("ошибка при записи архива: %w", err)
	}

	a.logger.Info("Батч заархивирован: %s (%d -> %d байт). Длительность: %v",
		path, len(data), len(compressed), time.Since(startTime))

	return path, nil
}

// ReadBatch читает и распаковывает ранее заархивированный батч
func (a *BatchArchiver) ReadBatch(path string) (*models.ExtractedBatch, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении архива: %w", err)
	}

	data, err := Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("ошибка при распаковке архива: %w", err)
	}

	var batch models.ExtractedBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("ошибка при десериализации батча: %w", err)
	}

	return &batch, nil
}

func Compress(data []byte) []byte {
	return snappy.Encode(nil, data)
}

func Decompress(data []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	return decompressed, nil
}
