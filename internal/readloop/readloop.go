// Package readloop drives the periodic read cycle of a telemetry poller,
// with exponential backoff on setup and bounded tolerance for read failures.
package readloop

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
)

// Poller is one device poll engine driven by a loop.
type Poller interface {
	// SetupReading prepares the device for polling.
	SetupReading(ctx context.Context) error
	// ReadData performs one poll cycle and publishes its record.
	ReadData(ctx context.Context) error
	// Descr describes the device for log output.
	Descr() string
}

// Reconnector is implemented by pollers whose transport can be torn down and
// reopened, such as the Modbus connector.
type Reconnector interface {
	Connect(ctx context.Context) error
	Disconnect() error
}

// Observer receives per-cycle notifications, for metrics.
type Observer interface {
	ObserveCycle(device string, duration time.Duration, err error)
	ObserveReconnect(device string)
}

// LoopConfig holds configuration for a read loop
type LoopConfig struct {
	DeviceName        string        `json:"device_name"`
	PollInterval      time.Duration `json:"poll_interval"`
	MaxReadFailures   int           `json:"max_read_failures"`
	SetupAttempts     int           `json:"setup_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	Jitter            bool          `json:"jitter"`
	JitterRange       float64       `json:"jitter_range"`
	AutoReconnect     bool          `json:"auto_reconnect"`
}

// DefaultLoopConfig returns a default read loop configuration
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		PollInterval:      1 * time.Second,
		MaxReadFailures:   5,
		SetupAttempts:     3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		JitterRange:       0.1,
	}
}

// LoadLoopConfig loads the shared read loop settings from the config
// provider, falling back to defaults for unset keys.
func LoadLoopConfig(cfg config.Provider) (LoopConfig, error) {
	if cfg == nil {
		return LoopConfig{}, fmt.Errorf("configuration provider cannot be nil")
	}

	loopConfig := DefaultLoopConfig()

	if interval, err := cfg.GetDuration("read_loop.poll_interval", loopConfig.PollInterval); err == nil {
		loopConfig.PollInterval = interval
	}
	if maxFailures, err := cfg.GetInt("read_loop.max_read_failures", loopConfig.MaxReadFailures); err == nil {
		loopConfig.MaxReadFailures = maxFailures
	}
	if attempts, err := cfg.GetInt("read_loop.setup_attempts", loopConfig.SetupAttempts); err == nil {
		loopConfig.SetupAttempts = attempts
	}
	if initialDelay, err := cfg.GetDuration("read_loop.initial_delay", loopConfig.InitialDelay); err == nil {
		loopConfig.InitialDelay = initialDelay
	}
	if maxDelay, err := cfg.GetDuration("read_loop.max_delay", loopConfig.MaxDelay); err == nil {
		loopConfig.MaxDelay = maxDelay
	}
	if multiplier, err := cfg.GetFloat("read_loop.backoff_multiplier", loopConfig.BackoffMultiplier); err == nil {
		loopConfig.BackoffMultiplier = multiplier
	}
	if jitter, err := cfg.GetBool("read_loop.jitter", loopConfig.Jitter); err == nil {
		loopConfig.Jitter = jitter
	}

	return loopConfig, nil
}

// LoopStats tracks read loop statistics
type LoopStats struct {
	Cycles              int64         `json:"cycles"`
	Failures            int64         `json:"failures"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Reconnects          int64         `json:"reconnects"`
	TotalCycleTime      time.Duration `json:"total_cycle_time"`
	LastError           string        `json:"last_error,omitempty"`
}

// Loop drives one poller: setup with backoff, then a read cycle per poll
// interval. Consecutive read failures beyond the configured limit either
// trigger a reconnect or stop the loop.
type Loop struct {
	config   LoopConfig
	poller   Poller
	logger   logging.Logger
	observer Observer
	stats    LoopStats
	mu       sync.RWMutex
}

// NewLoop creates a read loop for one poller
func NewLoop(cfg LoopConfig, poller Poller, logger logging.Logger) (*Loop, error) {
	if poller == nil {
		return nil, fmt.Errorf("poller cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if cfg.MaxReadFailures <= 0 {
		return nil, fmt.Errorf("max read failures must be positive")
	}
	return &Loop{
		config: cfg,
		poller: poller,
		logger: logger.With("component", "readloop", "device", cfg.DeviceName),
	}, nil
}

// Config returns the loop configuration
func (l *Loop) Config() LoopConfig {
	return l.config
}

// SetObserver attaches a cycle observer. Must be called before Run.
func (l *Loop) SetObserver(observer Observer) {
	l.observer = observer
}

// Run performs setup and then polls until the context is canceled or the
// failure limit is reached. A canceled context is a clean shutdown.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.setup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := l.cycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// setup runs the poller setup with exponential backoff
func (l *Loop) setup(ctx context.Context) error {
	var lastError error
	for attempt := 1; attempt <= l.config.SetupAttempts; attempt++ {
		err := l.poller.SetupReading(ctx)
		if err == nil {
			l.logger.Info("Poller ready", "descr", l.poller.Descr(), "attempt", attempt)
			return nil
		}
		lastError = err
		l.logger.Warn("Setup failed", "descr", l.poller.Descr(), "attempt", attempt, "error", err)

		if attempt == l.config.SetupAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.calculateDelay(attempt)):
		}
	}
	return fmt.Errorf("setup failed after %d attempts: %w", l.config.SetupAttempts, lastError)
}

// cycle performs one read and applies the failure policy
func (l *Loop) cycle(ctx context.Context) error {
	start := time.Now()
	err := l.poller.ReadData(ctx)
	duration := time.Since(start)

	l.recordCycle(duration, err)
	if l.observer != nil {
		l.observer.ObserveCycle(l.config.DeviceName, duration, err)
	}

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	failures := l.consecutiveFailures()
	l.logger.Warn("Read cycle failed", "error", err, "consecutive_failures", failures)

	if failures < l.config.MaxReadFailures {
		return nil
	}

	if l.config.AutoReconnect {
		if rc, ok := l.poller.(Reconnector); ok {
			if rerr := l.reconnect(ctx, rc); rerr != nil {
				return fmt.Errorf("reconnect failed after %d consecutive read failures: %w", failures, rerr)
			}
			l.resetFailures()
			return nil
		}
	}

	return fmt.Errorf("giving up after %d consecutive read failures: %w", failures, err)
}

// reconnect tears the transport down and reopens it with backoff
func (l *Loop) reconnect(ctx context.Context, rc Reconnector) error {
	if err := rc.Disconnect(); err != nil {
		l.logger.Warn("Disconnect failed", "error", err)
	}

	var lastError error
	for attempt := 1; attempt <= l.config.SetupAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.calculateDelay(attempt)):
		}

		if err := rc.Connect(ctx); err != nil {
			lastError = err
			l.logger.Warn("Reconnect failed", "attempt", attempt, "error", err)
			continue
		}

		l.mu.Lock()
		l.stats.Reconnects++
		l.mu.Unlock()
		if l.observer != nil {
			l.observer.ObserveReconnect(l.config.DeviceName)
		}
		l.logger.Info("Reconnected", "descr", l.poller.Descr(), "attempt", attempt)
		return nil
	}
	return lastError
}

// calculateDelay calculates the backoff delay for the next attempt
func (l *Loop) calculateDelay(attempt int) time.Duration {
	delay := float64(l.config.InitialDelay) * math.Pow(l.config.BackoffMultiplier, float64(attempt-1))

	if delay > float64(l.config.MaxDelay) {
		delay = float64(l.config.MaxDelay)
	}

	if l.config.Jitter {
		jitterRange := delay * l.config.JitterRange
		jitter := (rand.Float64() - 0.5) * 2 * jitterRange
		delay += jitter

		if delay < 0 {
			delay = float64(l.config.InitialDelay)
		}
	}

	return time.Duration(delay)
}

func (l *Loop) recordCycle(duration time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats.Cycles++
	l.stats.TotalCycleTime += duration
	if err != nil {
		l.stats.Failures++
		l.stats.ConsecutiveFailures++
		l.stats.LastError = err.Error()
	} else {
		l.stats.ConsecutiveFailures = 0
	}
}

func (l *Loop) consecutiveFailures() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats.ConsecutiveFailures
}

func (l *Loop) resetFailures() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.ConsecutiveFailures = 0
}

// GetStats returns a copy of the loop statistics
func (l *Loop) GetStats() LoopStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}
