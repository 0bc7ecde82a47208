// Package snmppoll implements the SNMP poll engine: it walks a device's
// management tree, decodes the polled values and assembles telemetry records
// for the supported device families.
package snmppoll

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// PolledValue is one OID/value pair returned by a walk. Values are kept in
// their string rendering; decoding to int or float happens during record
// assembly where the value kind is known.
type PolledValue struct {
	OID   string
	Value string
}

// PollResult holds the values of one or more walks, keyed by OID and
// preserving encounter order. Row-driven record assembly depends on the
// order, so iteration must always go through OIDs.
type PollResult struct {
	oids   []string
	values map[string]string
}

// NewPollResult creates an empty PollResult.
func NewPollResult() *PollResult {
	return &PollResult{values: make(map[string]string)}
}

// Add stores a polled value. A repeated OID overwrites the value but keeps
// the original position.
func (r *PollResult) Add(oid, value string) {
	if _, ok := r.values[oid]; !ok {
		r.oids = append(r.oids, oid)
	}
	r.values[oid] = value
}

// Get returns the value for the OID and whether it is present.
func (r *PollResult) Get(oid string) (string, bool) {
	v, ok := r.values[oid]
	return v, ok
}

// Has reports whether the OID is present.
func (r *PollResult) Has(oid string) bool {
	_, ok := r.values[oid]
	return ok
}

// OIDs returns all OIDs in encounter order. The returned slice must not be
// modified.
func (r *PollResult) OIDs() []string {
	return r.oids
}

// Len returns the number of stored values.
func (r *PollResult) Len() int { return len(r.values) }

// Walker walks an SNMP subtree and returns all values under the root OID in
// encounter order.
type Walker interface {
	Walk(ctx context.Context, rootOID string) ([]PolledValue, error)
}

// TransportError wraps a network level failure to reach the SNMP server.
// Transport failures are transient and tolerated by the engine; protocol
// errors are not.
type TransportError struct {
	OID string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("contacting SNMP server for %s: %v", e.OID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClientConfig holds the connection settings for a ClientWalker.
type ClientConfig struct {
	Host      string
	Port      uint16
	Community string
	Timeout   time.Duration
	Retries   int
}

// DefaultClientConfig returns the default connection settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Port:      161,
		Community: "public",
		Timeout:   2 * time.Second,
		Retries:   3,
	}
}

// ClientWalker is a Walker backed by an SNMP v2c client. It connects lazily
// on the first walk and keeps the connection for subsequent walks.
type ClientWalker struct {
	cfg    ClientConfig
	client *gosnmp.GoSNMP
}

// NewClientWalker creates a ClientWalker for the given connection settings.
func NewClientWalker(cfg ClientConfig) *ClientWalker {
	if cfg.Port == 0 {
		cfg.Port = DefaultClientConfig().Port
	}
	if cfg.Community == "" {
		cfg.Community = DefaultClientConfig().Community
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	return &ClientWalker{cfg: cfg}
}

func (w *ClientWalker) connect(ctx context.Context) error {
	if w.client != nil {
		return nil
	}
	client := &gosnmp.GoSNMP{
		Target:    w.cfg.Host,
		Port:      w.cfg.Port,
		Community: w.cfg.Community,
		Version:   gosnmp.Version2c,
		Timeout:   w.cfg.Timeout,
		Retries:   w.cfg.Retries,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return &TransportError{Err: err}
	}
	w.client = client
	return nil
}

// Walk walks the subtree under rootOID and returns all values in encounter
// order. Network failures are returned as *TransportError.
func (w *ClientWalker) Walk(ctx context.Context, rootOID string) ([]PolledValue, error) {
	if err := w.connect(ctx); err != nil {
		return nil, err
	}
	w.client.Context = ctx

	var values []PolledValue
	err := w.client.BulkWalk(rootOID, func(pdu gosnmp.SnmpPDU) error {
		values = append(values, PolledValue{
			OID:   strings.TrimPrefix(pdu.Name, "."),
			Value: renderValue(pdu),
		})
		return nil
	})
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, &TransportError{OID: rootOID, Err: err}
		}
		return nil, fmt.Errorf("walking %s on %s: %w", rootOID, w.cfg.Host, err)
	}
	return values, nil
}

// Close closes the underlying connection, if any.
func (w *ClientWalker) Close() error {
	if w.client == nil || w.client.Conn == nil {
		return nil
	}
	err := w.client.Conn.Close()
	w.client = nil
	return err
}

// renderValue renders an SNMP variable value as a string. Octet strings are
// taken verbatim; every numeric type is rendered in decimal.
func renderValue(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
