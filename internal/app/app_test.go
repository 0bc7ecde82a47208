package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// MockConfigManager implements config.Manager for testing
type MockConfigManager struct {
	data map[string]any
}

func NewMockConfigManager() *MockConfigManager {
	return &MockConfigManager{
		data: make(map[string]any),
	}
}

func (m *MockConfigManager) Set(key string, value any) {
	m.data[key] = value
}

func (m *MockConfigManager) Get(key string) (any, error) {
	if value, exists := m.data[key]; exists {
		return value, nil
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) GetString(key string, defaultValue ...string) (string, error) {
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

func (m *MockConfigManager) GetInt(key string, defaultValue ...int) (int, error) {
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

func (m *MockConfigManager) GetBool(key string, defaultValue ...bool) (bool, error) {
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

func (m *MockConfigManager) GetDuration(key string, defaultValue ...time.Duration) (time.Duration, error) {
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

func (m *MockConfigManager) GetFloat(key string, defaultValue ...float64) (float64, error) {
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

func (m *MockConfigManager) GetStringSlice(key string, defaultValue ...[]string) ([]string, error) {
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

func (m *MockConfigManager) GetMap(key string) (map[string]any, error) {
	if value, exists := m.data[key]; exists {
		if mapVal, ok := value.(map[string]any); ok {
			return mapVal, nil
		}
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) IsSet(key string) bool {
	_, exists := m.data[key]
	return exists
}

func (m *MockConfigManager) AllKeys() []string {
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

func (m *MockConfigManager) AllSettings() map[string]any {
	result := make(map[string]any)
	for key, value := range m.data {
		result[key] = value
	}
	return result
}

func (m *MockConfigManager) Exists(key string) bool {
	_, exists := m.data[key]
	return exists
}

func (m *MockConfigManager) Validate() error {
	return nil
}

func (m *MockConfigManager) Reload() error {
	return nil
}

func (m *MockConfigManager) Close() error {
	return nil
}

func (m *MockConfigManager) OnConfigChange(callback func(error)) {
	// Mock implementation - do nothing
}

func (m *MockConfigManager) StartHotReload(ctx context.Context) error {
	return nil
}

func (m *MockConfigManager) StopHotReload() {
	// Mock implementation - do nothing
}

// newTestManager builds a mock configuration with quiet logging,
// in-memory publishing, and the metrics server disabled.
func newTestManager() *MockConfigManager {
	manager := NewMockConfigManager()
	manager.Set("app.log_level", "error")
	manager.Set("storage.enabled", false)
	manager.Set("metrics.enabled", false)
	return manager
}

// addSimulatedSNMPDevice registers an SNMP device running against the
// in-process walk simulator.
func addSimulatedSNMPDevice(manager *MockConfigManager, name, deviceType string) {
	devices, _ := manager.data["devices"].(map[string]any)
	if devices == nil {
		devices = make(map[string]any)
	}
	devices[name] = map[string]any{}
	manager.Set("devices", devices)

	prefix := "devices." + name
	manager.Set(prefix+".host", "localhost")
	manager.Set(prefix+".device_type", deviceType)
	manager.Set(prefix+".simulate", true)
}

// addSimulatedModbusDevice registers a Modbus device running against the
// in-memory client simulator.
func addSimulatedModbusDevice(manager *MockConfigManager, name string) {
	devices, _ := manager.data["devices"].(map[string]any)
	if devices == nil {
		devices = make(map[string]any)
	}
	devices[name] = map[string]any{}
	manager.Set("devices", devices)

	prefix := "devices." + name
	manager.Set(prefix+".protocol", "modbus")
	manager.Set(prefix+".host", "localhost")
	manager.Set(prefix+".simulate", true)
}

func createTestApplication(t *testing.T, manager *MockConfigManager) *Application {
	t.Helper()

	app, err := NewApplication(manager)
	if err != nil {
		t.Fatalf("Failed to create application: %v", err)
	}
	t.Cleanup(func() {
		_ = app.Shutdown()
	})
	return app
}

func TestNewApplicationNilManager(t *testing.T) {
	_, err := NewApplication(nil)
	if err == nil {
		t.Error("Expected error for nil configuration manager")
	}
}

func TestNewApplicationDefaults(t *testing.T) {
	manager := newTestManager()
	app := createTestApplication(t, manager)

	config := app.GetConfig()
	if config.Name != "ts-ess-epm" {
		t.Errorf("Expected default name 'ts-ess-epm', got '%s'", config.Name)
	}
	if config.SimulatorSeed != 42 {
		t.Errorf("Expected default simulator seed 42, got %d", config.SimulatorSeed)
	}
	if config.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", config.ShutdownTimeout)
	}
}

func TestNewApplicationConfigOverrides(t *testing.T) {
	manager := newTestManager()
	manager.Set("app.name", "epm-test")
	manager.Set("app.version", "2.0.0")
	manager.Set("app.simulator_seed", 7)
	manager.Set("app.shutdown_timeout", "5s")

	app := createTestApplication(t, manager)

	config := app.GetConfig()
	if config.Name != "epm-test" {
		t.Errorf("Expected name 'epm-test', got '%s'", config.Name)
	}
	if config.Version != "2.0.0" {
		t.Errorf("Expected version '2.0.0', got '%s'", config.Version)
	}
	if config.SimulatorSeed != 7 {
		t.Errorf("Expected simulator seed 7, got %d", config.SimulatorSeed)
	}
	if config.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s, got %v", config.ShutdownTimeout)
	}
}

func TestInitializeNoDevices(t *testing.T) {
	manager := newTestManager()
	app := createTestApplication(t, manager)

	err := app.Initialize()
	if err == nil {
		t.Fatal("Expected error when no devices are configured")
	}
}

func TestInitializeSimulatedDevices(t *testing.T) {
	manager := newTestManager()
	addSimulatedSNMPDevice(manager, "ups-sim", "xups")
	addSimulatedModbusDevice(manager, "genset-sim")

	app := createTestApplication(t, manager)

	if err := app.Initialize(); err != nil {
		t.Fatalf("Failed to initialize application: %v", err)
	}

	loops := app.Loops()
	if len(loops) != 2 {
		t.Fatalf("Expected 2 read loops, got %d", len(loops))
	}

	// Device names are enumerated in sorted order.
	if loops[0].Config().DeviceName != "genset-sim" {
		t.Errorf("Expected first loop for 'genset-sim', got '%s'", loops[0].Config().DeviceName)
	}
	if loops[1].Config().DeviceName != "ups-sim" {
		t.Errorf("Expected second loop for 'ups-sim', got '%s'", loops[1].Config().DeviceName)
	}

	stats := app.GetStats()
	if stats.Devices != 2 {
		t.Errorf("Expected 2 devices in stats, got %d", stats.Devices)
	}
	if !app.IsHealthy() {
		t.Error("Expected application to be healthy after initialization")
	}
}

func TestInitializeDevicePollInterval(t *testing.T) {
	manager := newTestManager()
	addSimulatedSNMPDevice(manager, "ups-sim", "xups")
	manager.Set("devices.ups-sim.poll_interval", "5s")

	app := createTestApplication(t, manager)

	if err := app.Initialize(); err != nil {
		t.Fatalf("Failed to initialize application: %v", err)
	}

	loops := app.Loops()
	if len(loops) != 1 {
		t.Fatalf("Expected 1 read loop, got %d", len(loops))
	}
	if loops[0].Config().PollInterval != 5*time.Second {
		t.Errorf("Expected poll interval 5s, got %v", loops[0].Config().PollInterval)
	}
}

func TestInitializeUnknownProtocol(t *testing.T) {
	manager := newTestManager()
	addSimulatedSNMPDevice(manager, "bad-device", "xups")
	manager.Set("devices.bad-device.protocol", "bacnet")

	app := createTestApplication(t, manager)

	err := app.Initialize()
	if err == nil {
		t.Fatal("Expected error for unknown protocol")
	}
	if !strings.Contains(err.Error(), "bad-device") {
		t.Errorf("Expected error to name the device, got: %v", err)
	}
}

func TestInitializeMissingDeviceType(t *testing.T) {
	manager := newTestManager()
	addSimulatedSNMPDevice(manager, "ups-sim", "xups")
	delete(manager.data, "devices.ups-sim.device_type")

	app := createTestApplication(t, manager)

	err := app.Initialize()
	if err == nil {
		t.Fatal("Expected error for SNMP device without device_type")
	}
}

func TestInitializeUnknownDeviceType(t *testing.T) {
	manager := newTestManager()
	addSimulatedSNMPDevice(manager, "mystery", "frobnicator")

	app := createTestApplication(t, manager)

	err := app.Initialize()
	if err == nil {
		t.Fatal("Expected error for unknown device type")
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	manager := newTestManager()
	addSimulatedSNMPDevice(manager, "ups-sim", "xups")

	app, err := NewApplication(manager)
	if err != nil {
		t.Fatalf("Failed to create application: %v", err)
	}
	if err := app.Initialize(); err != nil {
		t.Fatalf("Failed to initialize application: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}
