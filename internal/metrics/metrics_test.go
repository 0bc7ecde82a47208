package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geekxflood/common/logging"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

// MockConfigProvider implements config.Provider for testing
type MockConfigProvider struct {
	data map[string]any
}

func NewMockConfigProvider() *MockConfigProvider {
	return &MockConfigProvider{
		data: make(map[string]any),
	}
}

func (m *MockConfigProvider) Set(key string, value any) {
	m.data[key] = value
}

func (m *MockConfigProvider) GetString(key string, defaultValue ...string) (string, error) {
	if value, exists := m.data[key]; exists {
		if str, ok := value.(string); ok {
			return str, nil
		}
		return fmt.Sprintf("%v", value), nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return "", fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetInt(key string, defaultValue ...int) (int, error) {
	if value, exists := m.data[key]; exists {
		if i, ok := value.(int); ok {
			return i, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetBool(key string, defaultValue ...bool) (bool, error) {
	if value, exists := m.data[key]; exists {
		if b, ok := value.(bool); ok {
			return b, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return false, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetDuration(key string, defaultValue ...time.Duration) (time.Duration, error) {
	if value, exists := m.data[key]; exists {
		if d, ok := value.(time.Duration); ok {
			return d, nil
		}
		if str, ok := value.(string); ok {
			return time.ParseDuration(str)
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetFloat(key string, defaultValue ...float64) (float64, error) {
	if value, exists := m.data[key]; exists {
		if f, ok := value.(float64); ok {
			return f, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetStringSlice(key string, defaultValue ...[]string) ([]string, error) {
	if value, exists := m.data[key]; exists {
		if slice, ok := value.([]string); ok {
			return slice, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetMap(key string) (map[string]any, error) {
	if value, exists := m.data[key]; exists {
		if mapVal, ok := value.(map[string]any); ok {
			return mapVal, nil
		}
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) Exists(key string) bool {
	_, exists := m.data[key]
	return exists
}

func (m *MockConfigProvider) Validate() error {
	return nil
}

// createTestLogger creates a logger for testing
func createTestLogger() logging.Logger {
	config := logging.Config{
		Level:  "debug",
		Format: "json",
	}
	logger, _, _ := logging.NewLogger(config)
	return logger
}

func createTestManager(t *testing.T) *MetricsManager {
	t.Helper()
	manager, err := NewMetricsManager(NewMockConfigProvider(), createTestLogger())
	if err != nil {
		t.Fatalf("Failed to create metrics manager: %v", err)
	}
	return manager
}

func TestDefaultMetricsConfig(t *testing.T) {
	config := DefaultMetricsConfig()

	if !config.Enabled {
		t.Error("Expected metrics to be enabled by default")
	}

	if config.ListenAddress != ":9090" {
		t.Errorf("Expected listen address ':9090', got '%s'", config.ListenAddress)
	}

	if config.MetricsPath != "/metrics" {
		t.Errorf("Expected metrics path '/metrics', got '%s'", config.MetricsPath)
	}

	if config.HealthPath != "/health" {
		t.Errorf("Expected health path '/health', got '%s'", config.HealthPath)
	}

	if config.ReadyPath != "/ready" {
		t.Errorf("Expected ready path '/ready', got '%s'", config.ReadyPath)
	}

	if config.Namespace != "ess_epm" {
		t.Errorf("Expected namespace 'ess_epm', got '%s'", config.Namespace)
	}
}

func TestLoadMetricsConfig(t *testing.T) {
	cfg := NewMockConfigProvider()
	cfg.Set("metrics.enabled", false)
	cfg.Set("metrics.listen_address", ":8080")
	cfg.Set("metrics.metrics_path", "/custom-metrics")
	cfg.Set("metrics.update_interval", "60s")
	cfg.Set("metrics.namespace", "custom")

	config, err := loadMetricsConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to load metrics config: %v", err)
	}

	if config.Enabled {
		t.Error("Expected metrics to be disabled")
	}

	if config.ListenAddress != ":8080" {
		t.Errorf("Expected listen address ':8080', got '%s'", config.ListenAddress)
	}

	if config.MetricsPath != "/custom-metrics" {
		t.Errorf("Expected metrics path '/custom-metrics', got '%s'", config.MetricsPath)
	}

	if config.UpdateInterval != 60*time.Second {
		t.Errorf("Expected update interval 60s, got %v", config.UpdateInterval)
	}

	if config.Namespace != "custom" {
		t.Errorf("Expected namespace 'custom', got '%s'", config.Namespace)
	}
}

func TestNewMetricsManager(t *testing.T) {
	manager := createTestManager(t)

	if manager.config == nil {
		t.Error("Metrics config is nil")
	}

	if manager.registry == nil {
		t.Error("Prometheus registry is nil")
	}

	if manager.pollMetrics == nil {
		t.Error("Poll metrics is nil")
	}

	if manager.publishMetrics == nil {
		t.Error("Publish metrics is nil")
	}

	if manager.systemMetrics == nil {
		t.Error("System metrics is nil")
	}
}

func TestNewMetricsManagerWithNilLogger(t *testing.T) {
	_, err := NewMetricsManager(NewMockConfigProvider(), nil)
	if err == nil {
		t.Error("Expected error for nil logger")
	}
}

func TestMetricsManagerDisabled(t *testing.T) {
	cfg := NewMockConfigProvider()
	cfg.Set("metrics.enabled", false)

	manager, err := NewMetricsManager(cfg, createTestLogger())
	if err != nil {
		t.Fatalf("Failed to create metrics manager: %v", err)
	}

	// Start should succeed but not actually start a server
	if err := manager.Start(); err != nil {
		t.Fatalf("Failed to start disabled metrics manager: %v", err)
	}

	if err := manager.Stop(); err != nil {
		t.Fatalf("Failed to stop disabled metrics manager: %v", err)
	}
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	manager := createTestManager(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	manager.healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}

	req = httptest.NewRequest("GET", "/ready", nil)
	w = httptest.NewRecorder()
	manager.readyHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}

	manager.SetReady(true)

	req = httptest.NewRequest("GET", "/ready", nil)
	w = httptest.NewRecorder()
	manager.readyHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "READY" {
		t.Errorf("Expected body 'READY', got '%s'", w.Body.String())
	}
}

func TestComponentHealth(t *testing.T) {
	manager := createTestManager(t)

	manager.SetComponentHealth("snmppoll-pdu-1", false)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	manager.healthHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}

	if w.Body.String() != "UNHEALTHY" {
		t.Errorf("Expected body 'UNHEALTHY', got '%s'", w.Body.String())
	}

	manager.SetComponentHealth("snmppoll-pdu-1", true)

	req = httptest.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	manager.healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestObserveCycle(t *testing.T) {
	manager := createTestManager(t)

	manager.ObserveCycle("pdu-1", 25*time.Millisecond, nil)
	manager.ObserveCycle("pdu-1", 30*time.Millisecond, fmt.Errorf("read failed"))
	manager.ObserveReconnect("genset-1")

	poll := manager.GetPollMetrics()
	if v := testutil.ToFloat64(poll.CyclesTotal.WithLabelValues("pdu-1")); v != 2 {
		t.Errorf("Expected 2 cycles, got %v", v)
	}
	if v := testutil.ToFloat64(poll.CycleFailures.WithLabelValues("pdu-1")); v != 1 {
		t.Errorf("Expected 1 failure, got %v", v)
	}
	if v := testutil.ToFloat64(poll.Reconnects.WithLabelValues("genset-1")); v != 1 {
		t.Errorf("Expected 1 reconnect, got %v", v)
	}
}

func TestCounters(t *testing.T) {
	manager := createTestManager(t)

	manager.IncDefaultedItem("pdu-1")
	manager.IncDefaultedItem("pdu-1")
	manager.IncWalkError("pdu-1")

	poll := manager.GetPollMetrics()
	if v := testutil.ToFloat64(poll.DefaultedItems.WithLabelValues("pdu-1")); v != 2 {
		t.Errorf("Expected 2 defaulted items, got %v", v)
	}
	if v := testutil.ToFloat64(poll.WalkErrors.WithLabelValues("pdu-1")); v != 1 {
		t.Errorf("Expected 1 walk error, got %v", v)
	}
}

func TestWrapPublisher(t *testing.T) {
	manager := createTestManager(t)
	recorder := telemetry.NewRecorder()
	pub := manager.WrapPublisher(recorder)

	rec := telemetry.Record{"sensorName": "pdu-1"}
	if err := pub.Publish(context.Background(), "epm_xups", rec); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	if err := pub.Publish(context.Background(), "epm_xups", rec); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	if len(recorder.ForTopic("epm_xups")) != 2 {
		t.Errorf("Expected 2 records delivered, got %d", len(recorder.ForTopic("epm_xups")))
	}

	counts := manager.GetPublishMetrics()
	if v := testutil.ToFloat64(counts.PublishesTotal.WithLabelValues("epm_xups")); v != 2 {
		t.Errorf("Expected 2 publishes counted, got %v", v)
	}
	if v := testutil.ToFloat64(counts.PublishFailures.WithLabelValues("epm_xups")); v != 0 {
		t.Errorf("Expected no publish failures, got %v", v)
	}
}
