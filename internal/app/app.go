// Package app provides the main application orchestration and integration layer.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"

	"github.com/lsst-ts/ts-ess-epm/internal/metrics"
	"github.com/lsst-ts/ts-ess-epm/internal/mibtree"
	"github.com/lsst-ts/ts-ess-epm/internal/modbuspoll"
	"github.com/lsst-ts/ts-ess-epm/internal/readloop"
	"github.com/lsst-ts/ts-ess-epm/internal/snmppoll"
	"github.com/lsst-ts/ts-ess-epm/internal/storage"
	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

// AppConfig holds configuration for the main application
type AppConfig struct {
	Name            string        `json:"name"`
	Version         string        `json:"version"`
	LogLevel        string        `json:"log_level"`
	LogFormat       string        `json:"log_format"`
	SimulatorSeed   int64         `json:"simulator_seed"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DefaultAppConfig returns a default application configuration
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Name:            "ts-ess-epm",
		Version:         "1.0.0",
		LogLevel:        "info",
		LogFormat:       "json",
		SimulatorSeed:   42,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Application represents the telemetry poller application: one MIB tree, a
// set of device poll loops, and the shared storage and metrics plumbing.
type Application struct {
	config         *AppConfig
	configProvider config.Provider

	// Core components
	tree    *mibtree.Tree
	metrics *metrics.MetricsManager
	storage *storage.Storage
	loops   []*readloop.Loop

	// Application state
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     logging.Logger
	logCleanup io.Closer

	// Statistics
	stats *AppStats
	mu    sync.RWMutex
}

// AppStats tracks application-wide statistics
type AppStats struct {
	StartTime     time.Time     `json:"start_time"`
	Uptime        time.Duration `json:"uptime"`
	Devices       int           `json:"devices"`
	FailedLoops   int           `json:"failed_loops"`
	HealthStatus  string        `json:"health_status"`
	LastError     string        `json:"last_error,omitempty"`
	LastErrorTime *time.Time    `json:"last_error_time,omitempty"`
}

// NewApplication creates a new telemetry poller application
func NewApplication(configManager config.Manager) (*Application, error) {
	if configManager == nil {
		return nil, fmt.Errorf("configuration manager cannot be nil")
	}

	configProvider := configManager.(config.Provider)

	appConfig := DefaultAppConfig()

	if name, err := configProvider.GetString("app.name", appConfig.Name); err == nil {
		appConfig.Name = name
	}
	if version, err := configProvider.GetString("app.version", appConfig.Version); err == nil {
		appConfig.Version = version
	}
	if logLevel, err := configProvider.GetString("app.log_level", appConfig.LogLevel); err == nil {
		appConfig.LogLevel = logLevel
	}
	if logFormat, err := configProvider.GetString("app.log_format", appConfig.LogFormat); err == nil {
		appConfig.LogFormat = logFormat
	}
	if seed, err := configProvider.GetInt("app.simulator_seed", int(appConfig.SimulatorSeed)); err == nil {
		appConfig.SimulatorSeed = int64(seed)
	}
	if shutdownTimeout, err := configProvider.GetDuration("app.shutdown_timeout", appConfig.ShutdownTimeout); err == nil {
		appConfig.ShutdownTimeout = shutdownTimeout
	}

	logger, logCleanup, err := logging.NewLogger(logging.Config{
		Level:  appConfig.LogLevel,
		Format: appConfig.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config:         appConfig,
		configProvider: configProvider,
		ctx:            ctx,
		cancel:         cancel,
		logger:         logger.With("component", "app"),
		logCleanup:     logCleanup,
		stats: &AppStats{
			StartTime:    time.Now(),
			HealthStatus: "starting",
		},
	}

	app.logger.Info("Creating telemetry poller application",
		"name", appConfig.Name,
		"version", appConfig.Version)

	return app, nil
}

// Initialize initializes all application components
func (a *Application) Initialize() error {
	a.logger.Info("Initializing application components")

	if err := a.initializeTree(); err != nil {
		return fmt.Errorf("failed to initialize MIB tree: %w", err)
	}

	if err := a.initializeMetrics(); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	publisher, err := a.initializePublisher()
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry publisher: %w", err)
	}

	if err := a.initializeDevices(publisher); err != nil {
		return fmt.Errorf("failed to initialize devices: %w", err)
	}

	a.setHealthStatus("healthy")
	a.logger.Info("Application components initialized successfully", "devices", len(a.loops))

	return nil
}

// initializeTree builds the OID tree shared by every SNMP poll engine
func (a *Application) initializeTree() error {
	a.logger.Info("Building OID tree")

	tree, err := mibtree.Build(a.logger)
	if err != nil {
		return err
	}
	a.tree = tree

	a.logger.Info("OID tree built", "nodes", tree.Len())
	return nil
}

// initializeMetrics initializes the metrics manager
func (a *Application) initializeMetrics() error {
	a.logger.Info("Initializing metrics")

	manager, err := metrics.NewMetricsManager(a.configProvider, a.logger)
	if err != nil {
		return err
	}
	a.metrics = manager

	return nil
}

// initializePublisher builds the telemetry sink: the SQLite store when
// enabled, an in-memory recorder otherwise, both wrapped with publish
// counters.
func (a *Application) initializePublisher() (telemetry.Publisher, error) {
	enabled := true
	if v, err := a.configProvider.GetBool("storage.enabled", true); err == nil {
		enabled = v
	}

	var base telemetry.Publisher
	if enabled {
		a.logger.Info("Initializing telemetry storage")
		store, err := storage.NewStorage(a.configProvider)
		if err != nil {
			return nil, err
		}
		a.storage = store
		base = store
	} else {
		a.logger.Info("Telemetry storage disabled, recording in memory")
		base = telemetry.NewRecorder()
	}

	return a.metrics.WrapPublisher(base), nil
}

// initializeDevices creates a poll engine and read loop per configured device
func (a *Application) initializeDevices(publisher telemetry.Publisher) error {
	names, err := a.deviceNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no devices configured")
	}

	for _, name := range names {
		loop, err := a.initializeDevice(name, publisher)
		if err != nil {
			return fmt.Errorf("device %q: %w", name, err)
		}
		a.loops = append(a.loops, loop)
	}

	a.mu.Lock()
	a.stats.Devices = len(a.loops)
	a.mu.Unlock()
	return nil
}

// deviceNames returns the configured device names in stable order
func (a *Application) deviceNames() ([]string, error) {
	devices, err := a.configProvider.GetMap("devices")
	if err != nil {
		return nil, fmt.Errorf("devices section is required: %w", err)
	}

	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// initializeDevice builds one device's poller and read loop
func (a *Application) initializeDevice(name string, publisher telemetry.Publisher) (*readloop.Loop, error) {
	prefix := "devices." + name

	protocol := "snmp"
	if p, err := a.configProvider.GetString(prefix+".protocol", protocol); err == nil {
		protocol = p
	}
	simulate := false
	if s, err := a.configProvider.GetBool(prefix+".simulate", false); err == nil {
		simulate = s
	}

	loopConfig, err := readloop.LoadLoopConfig(a.configProvider)
	if err != nil {
		return nil, err
	}
	loopConfig.DeviceName = name

	var poller readloop.Poller
	switch protocol {
	case "snmp":
		poller, loopConfig, err = a.buildSNMPPoller(name, prefix, simulate, loopConfig, publisher)
	case "modbus":
		poller, loopConfig, err = a.buildModbusPoller(name, prefix, simulate, loopConfig, publisher)
	default:
		return nil, fmt.Errorf("unknown protocol %q", protocol)
	}
	if err != nil {
		return nil, err
	}

	loop, err := readloop.NewLoop(loopConfig, poller, a.logger)
	if err != nil {
		return nil, err
	}
	loop.SetObserver(a.metrics)

	a.logger.Info("Device configured",
		"device", name,
		"protocol", protocol,
		"simulate", simulate,
		"descr", poller.Descr())
	return loop, nil
}

// buildSNMPPoller builds an SNMP poll engine, against the device or against
// the in-process walk simulator.
func (a *Application) buildSNMPPoller(name, prefix string, simulate bool, loopConfig readloop.LoopConfig, publisher telemetry.Publisher) (readloop.Poller, readloop.LoopConfig, error) {
	engineConfig, err := snmppoll.LoadConfig(a.configProvider, prefix)
	if err != nil {
		return nil, loopConfig, err
	}
	if engineConfig.DeviceName == engineConfig.Host {
		engineConfig.DeviceName = name
	}
	loopConfig.PollInterval = engineConfig.PollInterval
	loopConfig.MaxReadFailures = engineConfig.MaxReadTimeouts

	var walker snmppoll.Walker
	if simulate {
		walker = snmppoll.NewSimulator(a.tree, a.logger, a.config.SimulatorSeed)
	} else {
		walker = snmppoll.NewClientWalker(snmppoll.ClientConfig{
			Host:      engineConfig.Host,
			Port:      engineConfig.Port,
			Community: engineConfig.Community,
			Timeout:   engineConfig.ConnectTimeout,
		})
	}

	engine, err := snmppoll.NewEngine(engineConfig, a.tree, walker, publisher, a.logger)
	if err != nil {
		return nil, loopConfig, err
	}
	engine.SetCounters(a.metrics)
	return engine, loopConfig, nil
}

// buildModbusPoller builds a Modbus connector, against the device or against
// the in-memory client simulator.
func (a *Application) buildModbusPoller(name, prefix string, simulate bool, loopConfig readloop.LoopConfig, publisher telemetry.Publisher) (readloop.Poller, readloop.LoopConfig, error) {
	connConfig, err := modbuspoll.LoadConfig(a.configProvider, prefix)
	if err != nil {
		return nil, loopConfig, err
	}
	if connConfig.DeviceName == connConfig.Host {
		connConfig.DeviceName = name
	}
	loopConfig.PollInterval = connConfig.PollInterval
	loopConfig.MaxReadFailures = connConfig.MaxReadTimeouts
	loopConfig.AutoReconnect = connConfig.AutoReconnect

	if simulate {
		client, err := modbuspoll.NewClientSimulator()
		if err != nil {
			return nil, loopConfig, err
		}
		conn, err := modbuspoll.NewConnectorWithClient(connConfig, client, publisher, a.logger)
		if err != nil {
			return nil, loopConfig, err
		}
		return conn, loopConfig, nil
	}

	conn, err := modbuspoll.NewConnector(connConfig, publisher, a.logger)
	if err != nil {
		return nil, loopConfig, err
	}
	return conn, loopConfig, nil
}

// Run starts the application and blocks until shutdown
func (a *Application) Run() error {
	a.logger.Info("Starting telemetry poller application")

	if err := a.metrics.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	for _, loop := range a.loops {
		a.wg.Add(1)
		go a.runLoop(loop)
	}

	a.metrics.SetReady(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	a.logger.Info("Application started successfully. Polling devices...",
		"devices", len(a.loops))

	select {
	case sig := <-sigChan:
		a.logger.Info("Received shutdown signal", "signal", sig.String())
		return a.Shutdown()
	case <-a.ctx.Done():
		a.logger.Info("Application context cancelled")
		return a.Shutdown()
	}
}

// runLoop drives one read loop until it stops. A loop failure marks the
// device unhealthy but leaves the other devices polling.
func (a *Application) runLoop(loop *readloop.Loop) {
	defer a.wg.Done()

	name := loop.Config().DeviceName
	a.metrics.SetComponentHealth(name, true)

	if err := loop.Run(a.ctx); err != nil {
		a.logger.Error("Device poll loop stopped", "device", name, "error", err)
		a.metrics.SetComponentHealth(name, false)
		a.recordError(err)
		return
	}
	a.logger.Info("Device poll loop finished", "device", name)
}

// Loops returns the configured read loops, for tests and status output.
func (a *Application) Loops() []*readloop.Loop {
	return a.loops
}

// Shutdown gracefully shuts down the application
func (a *Application) Shutdown() error {
	a.logger.Info("Shutting down application")
	a.setHealthStatus("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer shutdownCancel()

	a.cancel()
	if a.metrics != nil {
		a.metrics.SetReady(false)
	}

	var shutdownErrors []error

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All poll loops stopped")
	case <-shutdownCtx.Done():
		a.logger.Warn("Shutdown timeout reached, forcing exit")
		shutdownErrors = append(shutdownErrors, fmt.Errorf("shutdown timeout"))
	}

	if a.storage != nil {
		a.logger.Info("Shutting down storage")
		if err := a.storage.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("storage shutdown error: %w", err))
		}
	}

	if a.metrics != nil {
		if err := a.metrics.Stop(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics shutdown error: %w", err))
		}
	}

	a.setHealthStatus("stopped")

	if a.logCleanup != nil {
		a.logCleanup.Close()
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	a.logger.Info("Application shutdown completed successfully")
	return nil
}

func (a *Application) setHealthStatus(status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.HealthStatus = status
}

func (a *Application) recordError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	a.stats.FailedLoops++
	a.stats.LastError = err.Error()
	a.stats.LastErrorTime = &now
}

// GetStats returns a copy of the application statistics
func (a *Application) GetStats() *AppStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := *a.stats
	stats.Uptime = time.Since(a.stats.StartTime)
	return &stats
}

// GetConfig returns the application configuration
func (a *Application) GetConfig() *AppConfig {
	return a.config
}

// IsHealthy reports whether the application is running and no loop has
// failed.
func (a *Application) IsHealthy() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats.HealthStatus == "healthy" && a.stats.FailedLoops == 0
}
