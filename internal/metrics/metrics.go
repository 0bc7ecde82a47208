// Package metrics provides Prometheus metrics integration and system monitoring
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

// MetricsConfig defines the configuration for the metrics system
type MetricsConfig struct {
	Enabled        bool          `json:"enabled"`
	ListenAddress  string        `json:"listen_address"`
	MetricsPath    string        `json:"metrics_path"`
	HealthPath     string        `json:"health_path"`
	ReadyPath      string        `json:"ready_path"`
	UpdateInterval time.Duration `json:"update_interval"`
	Namespace      string        `json:"namespace"`
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:        true,
		ListenAddress:  ":9090",
		MetricsPath:    "/metrics",
		HealthPath:     "/health",
		ReadyPath:      "/ready",
		UpdateInterval: 30 * time.Second,
		Namespace:      "ess_epm",
	}
}

// MetricsManager manages Prometheus metrics and health endpoints
type MetricsManager struct {
	config   *MetricsConfig
	logger   logging.Logger
	registry *prometheus.Registry
	server   *http.Server

	pollMetrics    *PollMetrics
	publishMetrics *PublishMetrics
	systemMetrics  *SystemMetrics

	// Health status
	healthStatus map[string]bool
	readyStatus  bool
	mu           sync.RWMutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PollMetrics contains per-device poll cycle metrics
type PollMetrics struct {
	CyclesTotal    *prometheus.CounterVec
	CycleFailures  *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec
	Reconnects     *prometheus.CounterVec
	DefaultedItems *prometheus.CounterVec
	WalkErrors     *prometheus.CounterVec
}

// PublishMetrics contains per-topic publish metrics
type PublishMetrics struct {
	PublishesTotal  *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
}

// SystemMetrics contains system resource metrics
type SystemMetrics struct {
	MemoryUsage    prometheus.Gauge
	GoroutineCount prometheus.Gauge
	GCDuration     prometheus.Histogram
	Uptime         prometheus.Gauge
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(cfg config.Provider, logger logging.Logger) (*MetricsManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	metricsConfig, err := loadMetricsConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics configuration: %w", err)
	}

	registry := prometheus.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())

	manager := &MetricsManager{
		config:       metricsConfig,
		logger:       logger.With("component", "metrics"),
		registry:     registry,
		healthStatus: make(map[string]bool),
		readyStatus:  false,
		ctx:          ctx,
		cancel:       cancel,
	}

	if err := manager.initializeMetrics(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return manager, nil
}

// initializeMetrics creates and registers all Prometheus metrics
func (m *MetricsManager) initializeMetrics() error {
	namespace := m.config.Namespace

	m.pollMetrics = &PollMetrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Total number of poll cycles per device",
		}, []string{"device"}),
		CycleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycle_failures_total",
			Help:      "Total number of failed poll cycles per device",
		}, []string{"device"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Time spent per poll cycle",
			Buckets:   prometheus.DefBuckets,
		}, []string{"device"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total number of transport reconnects per device",
		}, []string{"device"}),
		DefaultedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "defaulted_items_total",
			Help:      "Total number of telemetry items that fell back to their default value",
		}, []string{"device"}),
		WalkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walk_errors_total",
			Help:      "Total number of tolerated transport failures during SNMP walks",
		}, []string{"device"}),
	}

	m.publishMetrics = &PublishMetrics{
		PublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Total number of published telemetry records per topic",
		}, []string{"topic"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Total number of failed telemetry publishes per topic",
		}, []string{"topic"}),
	}

	m.systemMetrics = &SystemMetrics{
		MemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_bytes",
			Help:      "Current memory usage in bytes",
		}),
		GoroutineCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		}),
		GCDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gc_duration_seconds",
			Help:      "Total garbage collection pause time",
			Buckets:   prometheus.DefBuckets,
		}),
		Uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the process started",
		}),
	}

	collectors := []prometheus.Collector{
		m.pollMetrics.CyclesTotal,
		m.pollMetrics.CycleFailures,
		m.pollMetrics.CycleDuration,
		m.pollMetrics.Reconnects,
		m.pollMetrics.DefaultedItems,
		m.pollMetrics.WalkErrors,
		m.publishMetrics.PublishesTotal,
		m.publishMetrics.PublishFailures,
		m.systemMetrics.MemoryUsage,
		m.systemMetrics.GoroutineCount,
		m.systemMetrics.GCDuration,
		m.systemMetrics.Uptime,
	}

	for _, collector := range collectors {
		if err := m.registry.Register(collector); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}

// ObserveCycle records one poll cycle. It implements the read loop's
// observer boundary.
func (m *MetricsManager) ObserveCycle(device string, duration time.Duration, err error) {
	m.pollMetrics.CyclesTotal.WithLabelValues(device).Inc()
	m.pollMetrics.CycleDuration.WithLabelValues(device).Observe(duration.Seconds())
	if err != nil {
		m.pollMetrics.CycleFailures.WithLabelValues(device).Inc()
	}
}

// ObserveReconnect records one transport reconnect.
func (m *MetricsManager) ObserveReconnect(device string) {
	m.pollMetrics.Reconnects.WithLabelValues(device).Inc()
}

// IncDefaultedItem implements the telemetry counters boundary.
func (m *MetricsManager) IncDefaultedItem(device string) {
	m.pollMetrics.DefaultedItems.WithLabelValues(device).Inc()
}

// IncWalkError implements the telemetry counters boundary.
func (m *MetricsManager) IncWalkError(device string) {
	m.pollMetrics.WalkErrors.WithLabelValues(device).Inc()
}

// countingPublisher counts publishes on their way to the wrapped publisher.
type countingPublisher struct {
	next    telemetry.Publisher
	metrics *PublishMetrics
}

// WrapPublisher returns a publisher that counts per-topic publishes before
// delegating to the given publisher.
func (m *MetricsManager) WrapPublisher(next telemetry.Publisher) telemetry.Publisher {
	return &countingPublisher{next: next, metrics: m.publishMetrics}
}

func (p *countingPublisher) Publish(ctx context.Context, topic string, fields telemetry.Record) error {
	err := p.next.Publish(ctx, topic, fields)
	if err != nil {
		p.metrics.PublishFailures.WithLabelValues(topic).Inc()
		return err
	}
	p.metrics.PublishesTotal.WithLabelValues(topic).Inc()
	return nil
}

// Start starts the metrics server and background monitoring
func (m *MetricsManager) Start() error {
	if !m.config.Enabled {
		m.logger.Info("Metrics collection is disabled")
		return nil
	}

	m.logger.Info("Starting metrics server",
		"listen_address", m.config.ListenAddress,
		"metrics_path", m.config.MetricsPath)

	mux := http.NewServeMux()

	mux.Handle(m.config.MetricsPath, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc(m.config.HealthPath, m.healthHandler)
	mux.HandleFunc(m.config.ReadyPath, m.readyHandler)

	m.server = &http.Server{
		Addr:    m.config.ListenAddress,
		Handler: mux,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server error", "error", err.Error())
		}
	}()

	m.wg.Add(1)
	go m.collectSystemMetrics()

	m.logger.Info("Metrics server started successfully")
	return nil
}

// Stop stops the metrics server and background monitoring
func (m *MetricsManager) Stop() error {
	if !m.config.Enabled {
		return nil
	}

	m.logger.Info("Stopping metrics server")

	m.cancel()

	if m.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := m.server.Shutdown(ctx); err != nil {
			m.logger.Error("Error shutting down metrics server", "error", err.Error())
		}
	}

	m.wg.Wait()

	m.logger.Info("Metrics server stopped")
	return nil
}

// collectSystemMetrics collects system resource metrics periodically
func (m *MetricsManager) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.UpdateInterval)
	defer ticker.Stop()

	startTime := time.Now()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.updateSystemMetrics(startTime)
		}
	}
}

// updateSystemMetrics updates system resource metrics
func (m *MetricsManager) updateSystemMetrics(startTime time.Time) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.systemMetrics.MemoryUsage.Set(float64(memStats.Alloc))
	m.systemMetrics.GoroutineCount.Set(float64(runtime.NumGoroutine()))
	m.systemMetrics.Uptime.Set(time.Since(startTime).Seconds())
	m.systemMetrics.GCDuration.Observe(float64(memStats.PauseTotalNs) / 1e9)
}

// healthHandler handles health check requests
func (m *MetricsManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	allHealthy := true
	for component, healthy := range m.healthStatus {
		if !healthy {
			allHealthy = false
			m.logger.Debug("Component unhealthy", "component", component)
		}
	}

	if allHealthy {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("UNHEALTHY"))
	}
}

// readyHandler handles readiness check requests
func (m *MetricsManager) readyHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	ready := m.readyStatus
	m.mu.RUnlock()

	if ready {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
	}
}

// SetComponentHealth sets the health status for a component
func (m *MetricsManager) SetComponentHealth(component string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.healthStatus[component] = healthy
	m.logger.Debug("Component health updated",
		"component", component,
		"healthy", healthy)
}

// SetReady sets the overall readiness status
func (m *MetricsManager) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readyStatus = ready
	m.logger.Info("Readiness status updated", "ready", ready)
}

// GetPollMetrics returns the poll metrics instance
func (m *MetricsManager) GetPollMetrics() *PollMetrics {
	return m.pollMetrics
}

// GetPublishMetrics returns the publish metrics instance
func (m *MetricsManager) GetPublishMetrics() *PublishMetrics {
	return m.publishMetrics
}

// GetSystemMetrics returns the system metrics instance
func (m *MetricsManager) GetSystemMetrics() *SystemMetrics {
	return m.systemMetrics
}

// loadMetricsConfig loads metrics configuration from the config provider
func loadMetricsConfig(cfg config.Provider) (*MetricsConfig, error) {
	config := DefaultMetricsConfig()

	if cfg == nil {
		return config, nil
	}

	if enabled, err := cfg.GetBool("metrics.enabled"); err == nil {
		config.Enabled = enabled
	}
	if listenAddress, err := cfg.GetString("metrics.listen_address"); err == nil {
		config.ListenAddress = listenAddress
	}
	if metricsPath, err := cfg.GetString("metrics.metrics_path"); err == nil {
		config.MetricsPath = metricsPath
	}
	if healthPath, err := cfg.GetString("metrics.health_path"); err == nil {
		config.HealthPath = healthPath
	}
	if readyPath, err := cfg.GetString("metrics.ready_path"); err == nil {
		config.ReadyPath = readyPath
	}
	if updateInterval, err := cfg.GetDuration("metrics.update_interval"); err == nil {
		config.UpdateInterval = updateInterval
	}
	if namespace, err := cfg.GetString("metrics.namespace"); err == nil {
		config.Namespace = namespace
	}

	return config, nil
}
