package snmppoll

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"

	"github.com/lsst-ts/ts-ess-epm/internal/mibtree"
	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

// DefaultSystemDescription is published until the device reports its own
// system description during setup.
const DefaultSystemDescription = "No system description set."

var floatRE = regexp.MustCompile(`[-+]?(?:(?:\d*\.\d+)|(?:\d+\.?))(?:[Ee][+-]?\d+)?`)

var hexRunRE = regexp.MustCompile(`[a-zA-Z0-9]*`)

// Config holds the per-device settings of a poll engine.
type Config struct {
	DeviceName      string
	Family          telemetry.Family
	Host            string
	Port            uint16
	Community       string
	PollInterval    time.Duration
	ConnectTimeout  time.Duration
	MaxReadTimeouts int
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		Port:            161,
		Community:       "public",
		PollInterval:    time.Second,
		ConnectTimeout:  60 * time.Second,
		MaxReadTimeouts: 5,
	}
}

// LoadConfig loads engine settings from the config provider under the given
// key prefix, falling back to defaults for unset keys.
func LoadConfig(cfg config.Provider, prefix string) (Config, error) {
	c := DefaultConfig()

	host, err := cfg.GetString(prefix + ".host")
	if err != nil {
		return Config{}, fmt.Errorf("device %q: host is required: %w", prefix, err)
	}
	c.Host = host

	family, err := cfg.GetString(prefix + ".device_type")
	if err != nil {
		return Config{}, fmt.Errorf("device %q: device_type is required: %w", prefix, err)
	}
	c.Family = telemetry.Family(family)

	if name, err := cfg.GetString(prefix + ".device_name"); err == nil {
		c.DeviceName = name
	} else {
		c.DeviceName = host
	}
	if port, err := cfg.GetInt(prefix + ".port"); err == nil {
		c.Port = uint16(port)
	}
	if community, err := cfg.GetString(prefix + ".snmp_community"); err == nil {
		c.Community = community
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

	return c, nil
}

// Engine polls one SNMP device and assembles its telemetry records.
//
// SetupReading must be called once before ReadData. For Raritan devices the
// setup walk also caches the per-sensor decimal scales, which are fixed for
// the lifetime of the device.
type Engine struct {
	cfg    Config
	tree   *mibtree.Tree
	schema telemetry.Schema
	walker Walker
	pub    telemetry.Publisher
	logger logging.Logger

	result            *PollResult
	systemDescription string
	counters          telemetry.Counters

	// Cached Raritan decimal scales. Inlet items have one scale per item,
	// outlet and external sensor items one scale per row.
	scalarDigits map[string]int
	listDigits   map[string][]int
}

// NewEngine creates a poll engine for one device.
func NewEngine(cfg Config, tree *mibtree.Tree, walker Walker, pub telemetry.Publisher, logger logging.Logger) (*Engine, error) {
	if tree == nil {
		return nil, fmt.Errorf("tree cannot be nil")
	}
	if walker == nil {
		return nil, fmt.Errorf("walker cannot be nil")
	}
	if pub == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	schema, err := telemetry.SchemaFor(cfg.Family)
	if err != nil {
		return nil, err
	}
	if !tree.Contains(string(cfg.Family)) {
		return nil, fmt.Errorf("device family %q has no management tree root", cfg.Family)
	}
	return &Engine{
		cfg:               cfg,
		tree:              tree,
		schema:            schema,
		walker:            walker,
		pub:               pub,
		logger:            logger.With("component", "snmppoll", "device", cfg.DeviceName),
		result:            NewPollResult(),
		systemDescription: DefaultSystemDescription,
		scalarDigits:      make(map[string]int),
		listDigits:        make(map[string][]int),
	}, nil
}

// Config returns the engine's settings.
func (e *Engine) Config() Config { return e.cfg }

// Descr returns a brief description distinguishing this engine from others.
func (e *Engine) Descr() string {
	return fmt.Sprintf("[host=%s, port=%d]", e.cfg.Host, e.cfg.Port)
}

// SystemDescription returns the device's system description as retrieved
// during setup.
func (e *Engine) SystemDescription() string { return e.systemDescription }

// SetCounters attaches anomaly counters. Must be called before polling
// starts.
func (e *Engine) SetCounters(counters telemetry.Counters) {
	e.counters = counters
}

func (e *Engine) countDefaultedItem() {
	if e.counters != nil {
		e.counters.IncDefaultedItem(e.cfg.DeviceName)
	}
}

func (e *Engine) countWalkError() {
	if e.counters != nil {
		e.counters.IncWalkError(e.cfg.DeviceName)
	}
}

// SetupReading retrieves the values that do not change over the lifetime of
// the device: the system description, and for Raritan devices the decimal
// scale tables.
func (e *Engine) SetupReading(ctx context.Context) error {
	if err := e.walk(ctx, e.tree.OID("system")); err != nil {
		return err
	}

	sysDescrOID := e.tree.OID("sysDescr") + ".0"
	if v, ok := e.result.Get(sysDescrOID); ok {
		e.systemDescription = v
	} else {
		e.logger.Error("Could not retrieve system description, continuing")
	}

	if e.cfg.Family == telemetry.FamilyRaritan {
		return e.setupRaritanDecimalDigits(ctx)
	}
	return nil
}

// setupRaritanDecimalDigits walks the decimal digit branches and caches the
// scales. The scales are queried once here so every later telemetry cycle
// can convert raw ints without re-querying them.
func (e *Engine) setupRaritanDecimalDigits(ctx context.Context) error {
	if err := e.walk(ctx, telemetry.RaritanDecimalDigitRoots...); err != nil {
		return err
	}

	for _, oid := range e.result.OIDs() {
		itemID, err := lastComponent(oid)
		if err != nil {
			return err
		}
		value, _ := e.result.Get(oid)
		digits, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("decimal digits for %s: %w", oid, err)
		}

		switch {
		case strings.HasPrefix(oid, telemetry.RaritanExternalSensorDecimalDigits):
			// External sensor numbering differs from the inlet and
			// outlet numbering: the id names the physical sensor, and
			// each sensor kind accumulates one scale per sensor.
			name, ok := telemetry.RaritanExternalSensorNames[itemID]
			if !ok {
				return fmt.Errorf("unknown external sensor id %d in %s", itemID, oid)
			}
			e.listDigits[name] = append(e.listDigits[name], digits)
		case strings.HasPrefix(oid, telemetry.RaritanInletDecimalDigits):
			name, ok := telemetry.RaritanItemNames[itemID]
			if !ok {
				return fmt.Errorf("unknown sensor type id %d in %s", itemID, oid)
			}
			e.scalarDigits[telemetry.RaritanInletItemName(name)] = digits
		case strings.HasPrefix(oid, telemetry.RaritanOutletDecimalDigits):
			name, ok := telemetry.RaritanItemNames[itemID]
			if !ok {
				return fmt.Errorf("unknown sensor type id %d in %s", itemID, oid)
			}
			item := telemetry.RaritanOutletItemName(name)
			e.listDigits[item] = append(e.listDigits[item], digits)
		default:
			e.logger.Error("Obtained result for unknown decimal digit OID", "oid", oid)
		}
	}
	return nil
}

// ReadData performs one telemetry cycle: walk the device's branch, assemble
// the record and publish it.
func (e *Engine) ReadData(ctx context.Context) error {
	roots := []string{e.tree.OID(string(e.cfg.Family))}
	if e.cfg.Family == telemetry.FamilyRaritan {
		// The decimal digits were cached during setup, so only the
		// telemetry branches are walked here.
		roots = telemetry.RaritanTelemetryRoots
	}
	if err := e.walk(ctx, roots...); err != nil {
		return err
	}

	rec := telemetry.Record{
		"systemDescription": e.systemDescription,
		"sensorName":        e.cfg.Host,
	}

	if e.cfg.Family == telemetry.FamilyRaritan {
		if err := e.assembleRaritanRecord(ctx, rec); err != nil {
			return err
		}
	} else {
		for _, field := range e.schema.Fields {
			if err := e.assembleField(field, rec); err != nil {
				return err
			}
		}
	}

	return e.pub.Publish(ctx, e.schema.Topic, rec)
}

// assembleField decodes the value of one schema field and adds it to the
// record. Missing values are substituted by the kind's default and logged,
// never treated as fatal.
func (e *Engine) assembleField(field telemetry.Field, rec telemetry.Record) error {
	node, err := e.tree.Node(field.Item)
	if err != nil {
		return err
	}
	if node.Parent == nil {
		return fmt.Errorf("item %q has no parent node", field.Item)
	}

	if node.Parent.Index != "" && field.Multiple() {
		var values []any
		for _, oid := range e.result.OIDs() {
			if strings.HasPrefix(oid, node.OID+".") {
				v, err := e.itemValue(field, oid)
				if err != nil {
					return err
				}
				values = append(values, v)
			}
		}
		rec[field.Name] = values
		return nil
	}

	// Scalar items are usually reported at instance .0, with .1 as a
	// vendor specific fallback.
	oid := node.OID + ".0"
	if !e.result.Has(oid) {
		oid = node.OID + ".1"
	}
	value, err := e.itemValue(field, oid)
	if err != nil {
		return err
	}
	if telemetry.FrequencyOIDs[oid] {
		// These frequencies are reported in tens of Hz.
		if f, ok := value.(float64); ok {
			value = f / 10.0
		}
	}
	rec[field.Name] = value
	return nil
}

// itemValue decodes the polled value at the OID according to the item's
// kind. A missing OID yields the kind's default value.
func (e *Engine) itemValue(field telemetry.Field, oid string) (any, error) {
	desc, ok := telemetry.Items[field.Item]
	if !ok {
		return nil, fmt.Errorf("item %q has no descriptor", field.Item)
	}

	raw, present := e.result.Get(oid)
	switch desc.Kind {
	case telemetry.KindInt:
		if !present {
			e.logger.Debug("Missing OID for int item, ignoring", "oid", oid, "item", field.Name)
			e.countDefaultedItem()
			return 0, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("int value for %s: %w", oid, err)
		}
		return v, nil
	case telemetry.KindFloat:
		if !present {
			e.logger.Debug("Missing OID for float item, ignoring", "oid", oid, "item", field.Name)
			e.countDefaultedItem()
			return math.NaN(), nil
		}
		v, err := extractFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("float value for %s: %w", oid, err)
		}
		return v, nil
	case telemetry.KindString:
		if !present {
			e.logger.Debug("Missing OID for string item, ignoring", "oid", oid, "item", field.Name)
			e.countDefaultedItem()
			return "", nil
		}
		return raw, nil
	}
	return raw, nil
}

// assembleRaritanRecord assembles the record of a Raritan device. The Raritan
// object layout is row driven rather than field driven, so the record is
// reconstructed from the walked rows and the cached decimal scales.
func (e *Engine) assembleRaritanRecord(ctx context.Context, rec telemetry.Record) error {
	if err := e.assembleRaritanInlet(rec); err != nil {
		return err
	}
	if err := e.assembleRaritanOutlets(rec); err != nil {
		return err
	}
	return e.publishRaritanExternalSensors(ctx)
}

func (e *Engine) assembleRaritanInlet(rec telemetry.Record) error {
	for _, oid := range e.result.OIDs() {
		if !strings.HasPrefix(oid, telemetry.RaritanInletTelemetry) {
			continue
		}
		itemID, err := lastComponent(oid)
		if err != nil {
			return err
		}
		name, ok := telemetry.RaritanItemNames[itemID]
		if !ok {
			return fmt.Errorf("unknown sensor type id %d in %s", itemID, oid)
		}
		item := telemetry.RaritanInletItemName(name)
		digits, ok := e.scalarDigits[item]
		if !ok {
			return fmt.Errorf("no decimal scale for %q", item)
		}
		raw, _ := e.result.Get(oid)
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("inlet value for %s: %w", oid, err)
		}
		rec[item] = float64(v) / math.Pow10(digits)
	}
	return nil
}

func (e *Engine) assembleRaritanOutlets(rec telemetry.Record) error {
	for _, oid := range e.result.OIDs() {
		if !strings.HasPrefix(oid, telemetry.RaritanOutletTelemetry) {
			continue
		}
		parts := strings.Split(oid, ".")
		if len(parts) < 2 {
			return fmt.Errorf("malformed outlet OID %s", oid)
		}
		itemID, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			return fmt.Errorf("sensor type id in %s: %w", oid, err)
		}
		row, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil {
			return fmt.Errorf("outlet row in %s: %w", oid, err)
		}
		name, ok := telemetry.RaritanItemNames[itemID]
		if !ok {
			return fmt.Errorf("unknown sensor type id %d in %s", itemID, oid)
		}
		item := telemetry.RaritanOutletItemName(name)
		allDigits, ok := e.listDigits[item]
		if !ok || row < 1 || row > len(allDigits) {
			return fmt.Errorf("no decimal scale for %q row %d", item, row)
		}
		raw, _ := e.result.Get(oid)
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("outlet value for %s: %w", oid, err)
		}
		values, _ := rec[item].([]float64)
		rec[item] = append(values, float64(v)/math.Pow10(allDigits[row-1]))
	}
	return nil
}

// publishRaritanExternalSensors publishes the external temperature and
// humidity sensor readings on their own topics. Each supported device has two
// temperature and two humidity probes.
func (e *Engine) publishRaritanExternalSensors(ctx context.Context) error {
	temperatures := []float64{math.NaN(), math.NaN()}
	humidities := []float64{math.NaN(), math.NaN()}
	tempIndex := 0
	humIndex := 0

	for _, oid := range e.result.OIDs() {
		if !strings.HasPrefix(oid, telemetry.RaritanExternalSensorTelemetry) {
			continue
		}
		itemID, err := lastComponent(oid)
		if err != nil {
			return err
		}
		name, ok := telemetry.RaritanExternalSensorNames[itemID]
		if !ok {
			return fmt.Errorf("unknown external sensor id %d in %s", itemID, oid)
		}
		digits, ok := e.listDigits[name]
		if !ok {
			continue
		}
		raw, _ := e.result.Get(oid)
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("external sensor value for %s: %w", oid, err)
		}
		switch {
		case name == "temperature" && tempIndex < telemetry.RaritanExternalSensorSlots:
			temperatures[tempIndex] = float64(v) / math.Pow10(digits[tempIndex])
			tempIndex++
		case name == "humidity" && humIndex < telemetry.RaritanExternalSensorSlots:
			humidities[humIndex] = float64(v) / math.Pow10(digits[humIndex])
			humIndex++
		}
	}

	timestamp := float64(time.Now().UnixNano()) / 1e9

	temperatureItem := make([]float64, telemetry.TemperatureArrayLen)
	for i := range temperatureItem {
		temperatureItem[i] = math.NaN()
	}
	copy(temperatureItem, temperatures)
	err := e.pub.Publish(ctx, telemetry.TopicTemperature, telemetry.Record{
		"sensorName":      e.cfg.Host,
		"timestamp":       timestamp,
		"temperatureItem": temperatureItem,
		"numChannels":     telemetry.RaritanExternalSensorSlots,
		"location":        "temperature1, temperature2",
	})
	if err != nil {
		return err
	}

	for i, humidity := range humidities {
		err := e.pub.Publish(ctx, telemetry.TopicRelativeHumidity, telemetry.Record{
			"sensorName":           e.cfg.Host,
			"timestamp":            timestamp,
			"relativeHumidityItem": humidity,
			"location":             fmt.Sprintf("relativeHumidity%d", i),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// walk replaces the engine's poll result with a fresh walk of the given
// roots. Transport failures are logged and tolerated; protocol errors are
// returned.
func (e *Engine) walk(ctx context.Context, roots ...string) error {
	e.result = NewPollResult()
	for _, root := range roots {
		values, err := e.walker.Walk(ctx, root)
		if err != nil {
			var transportErr *TransportError
			if errors.As(err, &transportErr) {
				e.logger.Warn("Failed to contact SNMP server, ignoring", "root", root, "error", err)
				e.countWalkError()
				continue
			}
			return err
		}
		for _, v := range values {
			e.result.Add(v.OID, v.Value)
		}
	}
	return nil
}

// extractFloat parses a float from a polled value string. Some devices
// report floats as hex encoded ASCII, others embed the number in surrounding
// text, so parsing falls back to a hex decode and then a regex scan.
func extractFloat(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	candidate := s
	if strings.HasPrefix(candidate, "0x") {
		run := hexRunRE.FindString(candidate[2:])
		if decoded, err := hex.DecodeString(run); err == nil {
			candidate = string(decoded)
		}
	}
	if m := floatRE.FindString(candidate); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no float value in %q", s)
}

// lastComponent returns the final numeric component of an OID.
func lastComponent(oid string) (int, error) {
	idx := strings.LastIndexByte(oid, '.')
	if idx < 0 {
		return 0, fmt.Errorf("malformed OID %s", oid)
	}
	v, err := strconv.Atoi(oid[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed OID %s: %w", oid, err)
	}
	return v, nil
}
