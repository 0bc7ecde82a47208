package modbuspoll

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/goburrow/modbus"

	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

// Config holds the per-device settings of a Modbus connector.
type Config struct {
	DeviceName      string
	Host            string
	Port            uint16
	SlaveID         byte
	PollInterval    time.Duration
	ConnectTimeout  time.Duration
	MaxReadTimeouts int
	AutoReconnect   bool
}

// DefaultConfig returns the default connector settings.
func DefaultConfig() Config {
	return Config{
		Port:            502,
		SlaveID:         1,
		PollInterval:    time.Second,
		ConnectTimeout:  60 * time.Second,
		MaxReadTimeouts: 5,
	}
}

// LoadConfig loads connector settings from the config provider under the
// given key prefix, falling back to defaults for unset keys.
func LoadConfig(cfg config.Provider, prefix string) (Config, error) {
	c := DefaultConfig()

	host, err := cfg.GetString(prefix + ".host")
	if err != nil {
		return Config{}, fmt.Errorf("device %q: host is required: %w", prefix, err)
	}
	c.Host = host

	if name, err := cfg.GetString(prefix + ".device_name"); err == nil {
		c.DeviceName = name
	} else {
		c.DeviceName = host
	}
	if port, err := cfg.GetInt(prefix + ".port"); err == nil {
		c.Port = uint16(port)
	}
	if slave, err := cfg.GetInt(prefix + ".slave_id"); err == nil {
		c.SlaveID = byte(slave)
	}
	if interval, err := cfg.GetDuration(prefix + ".poll_interval"); err == nil {
		c.PollInterval = interval
	}
	if timeout, err := cfg.GetDuration(prefix + ".connect_timeout"); err == nil {
		c.ConnectTimeout = timeout
	}
	if maxTimeouts, err := cfg.GetInt(prefix + ".max_read_timeouts"); err == nil {
		c.MaxReadTimeouts = int(maxTimeouts)
	}
	if reconnect, err := cfg.GetBool(prefix + ".auto_reconnect"); err == nil {
		c.AutoReconnect = reconnect
	}

	return c, nil
}

// Connector polls one AGC 150 controller over Modbus TCP and assembles its
// telemetry records.
//
// Connect must be called before ProcessTelemetry. A read against a
// disconnected controller fails immediately and publishes nothing.
type Connector struct {
	cfg     Config
	pub     telemetry.Publisher
	logger  logging.Logger
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// NewConnector creates a Modbus connector for one controller.
func NewConnector(cfg Config, pub telemetry.Publisher, logger logging.Logger) (*Connector, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}
	return &Connector{
		cfg:    cfg,
		pub:    pub,
		logger: logger.With("component", "modbuspoll", "device", cfg.DeviceName),
	}, nil
}

// NewConnectorWithClient creates a connector bound to an already constructed
// Modbus client, used with the in-memory simulator.
func NewConnectorWithClient(cfg Config, client modbus.Client, pub telemetry.Publisher, logger logging.Logger) (*Connector, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	c, err := NewConnector(cfg, pub, logger)
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// Config returns the connector settings.
func (c *Connector) Config() Config {
	return c.cfg
}

// Descr describes the connector for log and status output.
func (c *Connector) Descr() string {
	return fmt.Sprintf("[host=%s, port=%d]", c.cfg.Host, c.cfg.Port)
}

// Connected reports whether a client is attached.
func (c *Connector) Connected() bool {
	return c.client != nil
}

// Connect opens the Modbus TCP connection. With an injected client the call
// is a no-op.
func (c *Connector) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}
	handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port))
	handler.Timeout = c.cfg.ConnectTimeout
	handler.SlaveId = c.cfg.SlaveID
	if err := handler.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.Descr(), err)
	}
	c.handler = handler
	c.client = modbus.NewClient(handler)
	c.logger.Info("Connected", "host", c.cfg.Host, "port", c.cfg.Port)
	return nil
}

// Disconnect closes the Modbus TCP connection and detaches the client.
func (c *Connector) Disconnect() error {
	c.client = nil
	if c.handler == nil {
		return nil
	}
	err := c.handler.Close()
	c.handler = nil
	if err != nil {
		return fmt.Errorf("failed to close connection to %s: %w", c.Descr(), err)
	}
	c.logger.Info("Disconnected", "host", c.cfg.Host)
	return nil
}

// ProcessTelemetry reads every discrete input and input register once,
// decodes them and publishes one record. A read failure aborts the cycle
// without publishing.
func (c *Connector) ProcessTelemetry(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("not connected to %s", c.Descr())
	}

	rec := telemetry.Record{}
	for field, members := range ArrayFields {
		rec[field] = make([]any, len(members))
	}

	for _, di := range DiscreteInputs {
		results, err := c.client.ReadDiscreteInputs(di.Address, 1)
		if err != nil {
			return fmt.Errorf("failed to read discrete input %q at %d: %w", di.Name, di.Address, err)
		}
		if len(results) == 0 {
			c.logger.Debug("Discrete input read returned no data", "name", di.Name, "address", di.Address)
			continue
		}
		c.saveField(rec, di.Name, results[0]&0x01 == 0x01)
	}

	for _, ir := range InputRegisters {
		results, err := c.client.ReadInputRegisters(ir.Address, 1)
		if err != nil {
			return fmt.Errorf("failed to read input register %q at %d: %w", ir.Name, ir.Address, err)
		}
		if len(results) < 2 {
			c.logger.Debug("Input register read returned no data", "name", ir.Name, "address", ir.Address)
			continue
		}
		c.saveField(rec, ir.Name, binary.BigEndian.Uint16(results))
	}

	if err := c.pub.Publish(ctx, Topic, rec); err != nil {
		return fmt.Errorf("failed to publish telemetry: %w", err)
	}
	return nil
}

// SetupReading opens the connection. It adapts Connect to the read loop's
// poller boundary.
func (c *Connector) SetupReading(ctx context.Context) error {
	return c.Connect(ctx)
}

// ReadData performs one poll cycle. It adapts ProcessTelemetry to the read
// loop's poller boundary.
func (c *Connector) ReadData(ctx context.Context) error {
	return c.ProcessTelemetry(ctx)
}

// ReadCoils is not part of the AGC 150 register map.
func (c *Connector) ReadCoils(ctx context.Context) error {
	c.logger.Warn("Reading coils is not implemented")
	return nil
}

// ReadHoldingRegisters is not part of the AGC 150 register map.
func (c *Connector) ReadHoldingRegisters(ctx context.Context) error {
	c.logger.Warn("Reading holding registers is not implemented")
	return nil
}

// saveField decodes one raw input value and places it in the record, either
// under its own name or in its array slot.
func (c *Connector) saveField(rec telemetry.Record, inputName string, raw any) {
	field := FieldName(inputName)
	value := decodeValue(field, raw)
	if slots, ok := rec[field].([]any); ok {
		slots[ArraySlot(field, inputName)] = value
		return
	}
	rec[field] = value
}

// decodeValue converts a raw register word to its published value. Booleans
// pass through; register words are sign extended and scaled by the field's
// decimal factor.
func decodeValue(field string, raw any) any {
	word, ok := raw.(uint16)
	if !ok {
		return raw
	}
	signed := int(word)
	if signed >= 1<<15 {
		signed -= 1 << 16
	}
	factor := DecimalFactors[field]
	if factor == 0 {
		return signed
	}
	scale := 1
	for i := 0; i < factor; i++ {
		scale *= 10
	}
	return float64(signed) / float64(scale)
}
