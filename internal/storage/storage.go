// Package storage provides persistent telemetry storage and querying functionality.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

// StorageConfig holds configuration for the telemetry storage system
type StorageConfig struct {
	DatabaseType     string        `json:"database_type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	RetentionDays    int           `json:"retention_days"`
	BatchSize        int           `json:"batch_size"`
	FlushInterval    time.Duration `json:"flush_interval"`
	EnableIndexes    bool          `json:"enable_indexes"`
}

// DefaultStorageConfig returns a default storage configuration
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		DatabaseType:     "sqlite3",
		ConnectionString: "./ess_epm_telemetry.db",
		MaxConnections:   10,
		RetentionDays:    30,
		BatchSize:        100,
		FlushInterval:    5 * time.Second,
		EnableIndexes:    true,
	}
}

// Sample represents one stored telemetry record
type Sample struct {
	ID                int64     `json:"id" db:"id"`
	Timestamp         time.Time `json:"timestamp" db:"timestamp"`
	Topic             string    `json:"topic" db:"topic"`
	SensorName        string    `json:"sensor_name" db:"sensor_name"`
	SystemDescription string    `json:"system_description" db:"system_description"`
	Fields            string    `json:"fields" db:"fields"` // JSON encoded
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// SampleQuery represents query parameters for searching samples
type SampleQuery struct {
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Topic      string     `json:"topic,omitempty"`
	SensorName string     `json:"sensor_name,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
	OrderDesc  bool       `json:"order_desc,omitempty"`
}

// StorageStats tracks storage statistics
type StorageStats struct {
	TotalSamples  int64        `json:"total_samples"`
	SamplesToday  int64        `json:"samples_today"`
	OldestSample  *time.Time   `json:"oldest_sample,omitempty"`
	NewestSample  *time.Time   `json:"newest_sample,omitempty"`
	AveragePerDay float64      `json:"average_per_day"`
	TopicCounts   []TopicStats `json:"topic_counts"`
}

// TopicStats represents per-topic sample counts
type TopicStats struct {
	Topic string `json:"topic"`
	Count int64  `json:"count"`
}

// Storage provides persistent telemetry storage functionality. It implements
// the telemetry Publisher boundary, so a poll engine can write its records
// straight into the database.
type Storage struct {
	config     *StorageConfig
	db         *sql.DB
	batchQueue []*Sample
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewStorage creates a new telemetry storage instance
func NewStorage(cfg config.Provider) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}

	storageConfig := DefaultStorageConfig()

	if dbType, err := cfg.GetString("storage.database_type", storageConfig.DatabaseType); err == nil {
		storageConfig.DatabaseType = dbType
	}
	if connStr, err := cfg.GetString("storage.connection_string", storageConfig.ConnectionString); err == nil {
		storageConfig.ConnectionString = connStr
	}
	if maxConn, err := cfg.GetInt("storage.max_connections", storageConfig.MaxConnections); err == nil {
		storageConfig.MaxConnections = maxConn
	}
	if retention, err := cfg.GetInt("storage.retention_days", storageConfig.RetentionDays); err == nil {
		storageConfig.RetentionDays = retention
	}
	if batchSize, err := cfg.GetInt("storage.batch_size", storageConfig.BatchSize); err == nil {
		storageConfig.BatchSize = batchSize
	}
	if flushInterval, err := cfg.GetDuration("storage.flush_interval", storageConfig.FlushInterval); err == nil {
		storageConfig.FlushInterval = flushInterval
	}

	db, err := sql.Open(storageConfig.DatabaseType, storageConfig.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(storageConfig.MaxConnections)
	db.SetMaxIdleConns(storageConfig.MaxConnections / 2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	storage := &Storage{
		config:     storageConfig,
		db:         db,
		batchQueue: make([]*Sample, 0, storageConfig.BatchSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := storage.initSchema(); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	storage.wg.Add(2)
	go storage.batchWorker()
	go storage.cleanupWorker()

	return storage, nil
}

// initSchema creates the database tables and indexes
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		topic TEXT NOT NULL,
		sensor_name TEXT,
		system_description TEXT,
		fields TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create samples table: %w", err)
	}

	if s.config.EnableIndexes {
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON samples(timestamp);",
			"CREATE INDEX IF NOT EXISTS idx_samples_topic ON samples(topic);",
			"CREATE INDEX IF NOT EXISTS idx_samples_sensor_name ON samples(sensor_name);",
		}

		for _, idx := range indexes {
			if _, err := s.db.Exec(idx); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}
	}

	return nil
}

// Publish stores one telemetry record, adding it to the batch queue. It
// implements the telemetry Publisher boundary.
func (s *Storage) Publish(_ context.Context, topic string, fields telemetry.Record) error {
	sample, err := recordToSample(topic, fields)
	if err != nil {
		return fmt.Errorf("failed to convert record to sample: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batchQueue = append(s.batchQueue, sample)

	if len(s.batchQueue) >= s.config.BatchSize {
		return s.flushBatch()
	}

	return nil
}

// StoreSampleImmediate stores a single sample immediately and returns its ID
func (s *Storage) StoreSampleImmediate(topic string, fields telemetry.Record) (int64, error) {
	sample, err := recordToSample(topic, fields)
	if err != nil {
		return 0, fmt.Errorf("failed to convert record to sample: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		INSERT INTO samples (timestamp, topic, sensor_name, system_description, fields)
		VALUES (?, ?, ?, ?, ?)
	`, sample.Timestamp, sample.Topic, sample.SensorName, sample.SystemDescription, sample.Fields)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sample: %w", err)
	}

	sampleID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return sampleID, nil
}

// recordToSample converts a telemetry record to a storage sample
func recordToSample(topic string, fields map[string]any) (*Sample, error) {
	fieldsJSON, err := json.Marshal(sanitizeValue(fields))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	sample := &Sample{
		Timestamp: time.Now(),
		Topic:     topic,
		Fields:    string(fieldsJSON),
	}
	if name, ok := fields["sensorName"].(string); ok {
		sample.SensorName = name
	}
	if descr, ok := fields["systemDescription"].(string); ok {
		sample.SystemDescription = descr
	}

	return sample, nil
}

// sanitizeValue replaces NaN and infinite floats with nil so the record can
// be JSON encoded. Records use NaN for unavailable float items.
func sanitizeValue(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	case []float64:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

// flushBatch flushes the current batch to database
func (s *Storage) flushBatch() error {
	if len(s.batchQueue) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO samples (timestamp, topic, sensor_name, system_description, fields)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range s.batchQueue {
		_, err := stmt.Exec(sample.Timestamp, sample.Topic, sample.SensorName,
			sample.SystemDescription, sample.Fields)
		if err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.batchQueue = s.batchQueue[:0]
	return nil
}

// Flush writes any queued samples to the database immediately
func (s *Storage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushBatch()
}

// batchWorker periodically flushes batched samples
func (s *Storage) batchWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			// Final flush before shutdown
			s.mu.Lock()
			s.flushBatch()
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.mu.Lock()
			if len(s.batchQueue) > 0 {
				s.flushBatch()
			}
			s.mu.Unlock()
		}
	}
}

// cleanupWorker periodically removes old samples based on retention policy
func (s *Storage) cleanupWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes samples older than the retention period
func (s *Storage) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	s.db.Exec("DELETE FROM samples WHERE timestamp < ?", cutoff)
}

// QuerySamples queries samples based on the provided criteria
func (s *Storage) QuerySamples(query *SampleQuery) ([]*Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlQuery := "SELECT id, timestamp, topic, sensor_name, system_description, fields, created_at FROM samples WHERE 1=1"
	args := []any{}

	if query.StartTime != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, *query.StartTime)
	}
	if query.EndTime != nil {
		sqlQuery += " AND timestamp <= ?"
		args = append(args, *query.EndTime)
	}
	if query.Topic != "" {
		sqlQuery += " AND topic = ?"
		args = append(args, query.Topic)
	}
	if query.SensorName != "" {
		sqlQuery += " AND sensor_name = ?"
		args = append(args, query.SensorName)
	}

	if query.OrderDesc {
		sqlQuery += " ORDER BY timestamp DESC"
	} else {
		sqlQuery += " ORDER BY timestamp ASC"
	}

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)
	}
	if query.Offset > 0 {
		sqlQuery += " OFFSET ?"
		args = append(args, query.Offset)
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		sample := &Sample{}
		err := rows.Scan(&sample.ID, &sample.Timestamp, &sample.Topic,
			&sample.SensorName, &sample.SystemDescription, &sample.Fields,
			&sample.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}

	return samples, nil
}

// GetSample retrieves a single sample by ID
func (s *Storage) GetSample(id int64) (*Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sample := &Sample{}
	err := s.db.QueryRow(`
		SELECT id, timestamp, topic, sensor_name, system_description, fields, created_at
		FROM samples WHERE id = ?
	`, id).Scan(&sample.ID, &sample.Timestamp, &sample.Topic, &sample.SensorName,
		&sample.SystemDescription, &sample.Fields, &sample.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sample not found")
		}
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}

	return sample, nil
}

// GetStats returns storage statistics
func (s *Storage) GetStats() (*StorageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &StorageStats{}

	err := s.db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&stats.TotalSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to get total samples: %w", err)
	}

	today := time.Now().Truncate(24 * time.Hour)
	err = s.db.QueryRow("SELECT COUNT(*) FROM samples WHERE timestamp >= ?", today).Scan(&stats.SamplesToday)
	if err != nil {
		return nil, fmt.Errorf("failed to get samples today: %w", err)
	}

	var oldestTime, newestTime sql.NullTime
	err = s.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM samples").Scan(&oldestTime, &newestTime)
	if err == nil {
		if oldestTime.Valid {
			stats.OldestSample = &oldestTime.Time
		}
		if newestTime.Valid {
			stats.NewestSample = &newestTime.Time
		}
	}

	if stats.OldestSample != nil && stats.NewestSample != nil {
		days := stats.NewestSample.Sub(*stats.OldestSample).Hours() / 24
		if days > 0 {
			stats.AveragePerDay = float64(stats.TotalSamples) / days
		}
	}

	rows, err := s.db.Query("SELECT topic, COUNT(*) FROM samples GROUP BY topic ORDER BY COUNT(*) DESC LIMIT 10")
	if err != nil {
		return nil, fmt.Errorf("failed to get topic counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc TopicStats
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan topic count: %w", err)
		}
		stats.TopicCounts = append(stats.TopicCounts, tc)
	}

	return stats, nil
}

// Close closes the storage system
func (s *Storage) Close() error {
	s.cancel()
	s.wg.Wait()

	// Final flush
	s.mu.Lock()
	s.flushBatch()
	s.mu.Unlock()

	return s.db.Close()
}
