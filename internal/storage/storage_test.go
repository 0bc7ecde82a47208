package storage

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

// mockConfigProvider implements the config.Provider interface for testing.
type mockConfigProvider struct {
	values map[string]interface{}
}

func newMockConfigProvider() *mockConfigProvider {
	return &mockConfigProvider{
		values: map[string]interface{}{
			"storage.database_type":     "sqlite3",
			"storage.connection_string": ":memory:",
			"storage.max_connections":   5,
			"storage.retention_days":    7,
			"storage.batch_size":        10,
			"storage.flush_interval":    "1s",
		},
	}
}

func (m *mockConfigProvider) GetString(path string, defaultValue ...string) (string, error) {
	if val, exists := m.values[path]; exists {
		if str, ok := val.(string); ok {
			return str, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return "", nil
}

func (m *mockConfigProvider) GetInt(path string, defaultValue ...int) (int, error) {
	if val, exists := m.values[path]; exists {
		if i, ok := val.(int); ok {
			return i, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, nil
}

func (m *mockConfigProvider) GetFloat(path string, defaultValue ...float64) (float64, error) {
	if val, exists := m.values[path]; exists {
		if f, ok := val.(float64); ok {
			return f, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, nil
}

func (m *mockConfigProvider) GetBool(path string, defaultValue ...bool) (bool, error) {
	if val, exists := m.values[path]; exists {
		if b, ok := val.(bool); ok {
			return b, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return false, nil
}

func (m *mockConfigProvider) GetDuration(path string, defaultValue ...time.Duration) (time.Duration, error) {
	if val, exists := m.values[path]; exists {
		if str, ok := val.(string); ok {
			return time.ParseDuration(str)
		}
		if d, ok := val.(time.Duration); ok {
			return d, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, nil
}

func (m *mockConfigProvider) GetStringSlice(path string, defaultValue ...[]string) ([]string, error) {
	if val, exists := m.values[path]; exists {
		if slice, ok := val.([]string); ok {
			return slice, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return nil, nil
}

func (m *mockConfigProvider) GetMap(path string) (map[string]any, error) {
	if val, exists := m.values[path]; exists {
		if m, ok := val.(map[string]any); ok {
			return m, nil
		}
	}
	return nil, nil
}

func (m *mockConfigProvider) Exists(path string) bool {
	_, exists := m.values[path]
	return exists
}

func (m *mockConfigProvider) Validate() error {
	return nil
}

func createTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := NewStorage(newMockConfigProvider())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestNewStorage(t *testing.T) {
	storage := createTestStorage(t)

	if storage.config == nil {
		t.Error("Config not set")
	}

	if storage.db == nil {
		t.Error("Database not initialized")
	}
}

func TestNewStorageNilConfig(t *testing.T) {
	_, err := NewStorage(nil)
	if err == nil {
		t.Fatal("Expected error for nil config, got nil")
	}

	expectedMsg := "configuration provider cannot be nil"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
}

func TestDefaultStorageConfig(t *testing.T) {
	config := DefaultStorageConfig()

	if config.DatabaseType == "" {
		t.Error("Database type not set")
	}

	if config.ConnectionString == "" {
		t.Error("Connection string not set")
	}

	if config.MaxConnections <= 0 {
		t.Error("Invalid max connections")
	}

	if config.RetentionDays <= 0 {
		t.Error("Invalid retention days")
	}
}

func TestPublishAndQuery(t *testing.T) {
	storage := createTestStorage(t)

	rec := telemetry.Record{
		"sensorName":        "pdu-1",
		"systemDescription": "test device",
		"batteryVoltage":    48.2,
	}
	if err := storage.Publish(context.Background(), "epm_xups", rec); err != nil {
		t.Fatalf("Failed to publish record: %v", err)
	}
	if err := storage.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	samples, err := storage.QuerySamples(&SampleQuery{Topic: "epm_xups"})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(samples))
	}

	sample := samples[0]
	if sample.Topic != "epm_xups" {
		t.Errorf("Expected topic 'epm_xups', got %q", sample.Topic)
	}
	if sample.SensorName != "pdu-1" {
		t.Errorf("Expected sensor name 'pdu-1', got %q", sample.SensorName)
	}
	if sample.SystemDescription != "test device" {
		t.Errorf("Expected system description 'test device', got %q", sample.SystemDescription)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(sample.Fields), &fields); err != nil {
		t.Fatalf("Failed to decode fields: %v", err)
	}
	if fields["batteryVoltage"] != 48.2 {
		t.Errorf("Expected batteryVoltage 48.2, got %v", fields["batteryVoltage"])
	}
}

func TestPublishNaNFields(t *testing.T) {
	storage := createTestStorage(t)

	rec := telemetry.Record{
		"sensorName":     "pdu-1",
		"batteryVoltage": math.NaN(),
		"inputVoltage":   []any{math.NaN(), 230.0, math.Inf(1)},
		"outletCurrent":  []float64{math.NaN(), 1.5},
	}
	if err := storage.Publish(context.Background(), "epm_xups", rec); err != nil {
		t.Fatalf("Failed to publish record with NaN fields: %v", err)
	}
	if err := storage.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	samples, err := storage.QuerySamples(&SampleQuery{Topic: "epm_xups"})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(samples))
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(samples[0].Fields), &fields); err != nil {
		t.Fatalf("Failed to decode fields: %v", err)
	}
	if fields["batteryVoltage"] != nil {
		t.Errorf("Expected NaN stored as null, got %v", fields["batteryVoltage"])
	}
	voltages, ok := fields["inputVoltage"].([]any)
	if !ok || len(voltages) != 3 {
		t.Fatalf("Expected 3 element inputVoltage array, got %v", fields["inputVoltage"])
	}
	if voltages[0] != nil || voltages[1] != 230.0 || voltages[2] != nil {
		t.Errorf("Expected [null, 230, null], got %v", voltages)
	}
}

func TestStoreSampleImmediate(t *testing.T) {
	storage := createTestStorage(t)

	id, err := storage.StoreSampleImmediate("epm_raritan", telemetry.Record{"sensorName": "pdu-2"})
	if err != nil {
		t.Fatalf("Failed to store sample: %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive sample ID, got %d", id)
	}

	sample, err := storage.GetSample(id)
	if err != nil {
		t.Fatalf("Failed to get sample: %v", err)
	}
	if sample.Topic != "epm_raritan" {
		t.Errorf("Expected topic 'epm_raritan', got %q", sample.Topic)
	}
}

func TestGetSampleNotFound(t *testing.T) {
	storage := createTestStorage(t)

	_, err := storage.GetSample(99999)
	if err == nil {
		t.Fatal("Expected error for missing sample, got nil")
	}
}

func TestQuerySamplesFilters(t *testing.T) {
	storage := createTestStorage(t)

	topics := []string{"epm_xups", "epm_xups", "epm_netbooter"}
	for i, topic := range topics {
		rec := telemetry.Record{"sensorName": "device", "index": i}
		if _, err := storage.StoreSampleImmediate(topic, rec); err != nil {
			t.Fatalf("Failed to store sample: %v", err)
		}
	}

	samples, err := storage.QuerySamples(&SampleQuery{Topic: "epm_xups"})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 2 {
		t.Errorf("Expected 2 xups samples, got %d", len(samples))
	}

	samples, err = storage.QuerySamples(&SampleQuery{Limit: 1, OrderDesc: true})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 1 {
		t.Errorf("Expected 1 sample with limit, got %d", len(samples))
	}

	future := time.Now().Add(time.Hour)
	samples, err = storage.QuerySamples(&SampleQuery{StartTime: &future})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("Expected no future samples, got %d", len(samples))
	}
}

func TestGetStats(t *testing.T) {
	storage := createTestStorage(t)

	for i := 0; i < 3; i++ {
		if _, err := storage.StoreSampleImmediate("epm_schneiderPm5xxx", telemetry.Record{"index": i}); err != nil {
			t.Fatalf("Failed to store sample: %v", err)
		}
	}

	stats, err := storage.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalSamples != 3 {
		t.Errorf("Expected 3 total samples, got %d", stats.TotalSamples)
	}
	if stats.SamplesToday != 3 {
		t.Errorf("Expected 3 samples today, got %d", stats.SamplesToday)
	}
	if len(stats.TopicCounts) != 1 || stats.TopicCounts[0].Count != 3 {
		t.Errorf("Unexpected topic counts: %+v", stats.TopicCounts)
	}
}

func TestBatchFlushOnSize(t *testing.T) {
	storage := createTestStorage(t)

	// Batch size is 10 in the mock config; the tenth publish triggers a flush.
	for i := 0; i < 10; i++ {
		rec := telemetry.Record{"index": i}
		if err := storage.Publish(context.Background(), "epm_agcGenset150", rec); err != nil {
			t.Fatalf("Failed to publish record: %v", err)
		}
	}

	samples, err := storage.QuerySamples(&SampleQuery{Topic: "epm_agcGenset150"})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 10 {
		t.Errorf("Expected 10 samples after batch flush, got %d", len(samples))
	}
}
