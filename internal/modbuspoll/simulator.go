package modbuspoll

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed presets/agc150.yaml
var agc150Presets []byte

// presetDocument is the YAML shape of a simulator preset: raw register words
// keyed by address. Unlisted addresses read as zero.
type presetDocument struct {
	DiscreteInputs map[uint16]bool   `yaml:"discrete_inputs"`
	InputRegisters map[uint16]uint16 `yaml:"input_registers"`
}

// ClientSimulator is an in-memory Modbus client that serves a fixed register
// image, for tests and the run-with-simulator mode. It implements the same
// client interface the TCP transport does, so the connector cannot tell them
// apart. Only the discrete input and input register function codes are
// served; the AGC 150 map uses nothing else.
type ClientSimulator struct {
	mu             sync.Mutex
	discreteInputs map[uint16]bool
	inputRegisters map[uint16]uint16
	connected      bool
}

// NewClientSimulator creates a simulator preloaded with the embedded AGC 150
// register image.
func NewClientSimulator() (*ClientSimulator, error) {
	var doc presetDocument
	if err := yaml.Unmarshal(agc150Presets, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse register presets: %w", err)
	}
	s := &ClientSimulator{
		discreteInputs: make(map[uint16]bool, len(doc.DiscreteInputs)),
		inputRegisters: make(map[uint16]uint16, len(doc.InputRegisters)),
		connected:      true,
	}
	for addr, v := range doc.DiscreteInputs {
		s.discreteInputs[addr] = v
	}
	for addr, v := range doc.InputRegisters {
		s.inputRegisters[addr] = v
	}
	return s, nil
}

// SetDiscreteInput overrides one discrete input.
func (s *ClientSimulator) SetDiscreteInput(address uint16, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discreteInputs[address] = value
}

// SetInputRegister overrides one input register with a raw word.
func (s *ClientSimulator) SetInputRegister(address uint16, value uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputRegisters[address] = value
}

// SetConnected toggles the simulated link state. While disconnected every
// read fails.
func (s *ClientSimulator) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// ReadDiscreteInputs serves the simulated discrete inputs, bit packed as on
// the wire.
func (s *ClientSimulator) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, fmt.Errorf("connection lost")
	}
	results := make([]byte, (quantity+7)/8)
	for i := uint16(0); i < quantity; i++ {
		if s.discreteInputs[address+i] {
			results[i/8] |= 1 << (i % 8)
		}
	}
	return results, nil
}

// ReadInputRegisters serves the simulated input registers, big endian as on
// the wire.
func (s *ClientSimulator) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, fmt.Errorf("connection lost")
	}
	results := make([]byte, 2*quantity)
	for i := uint16(0); i < quantity; i++ {
		binary.BigEndian.PutUint16(results[2*i:], s.inputRegisters[address+i])
	}
	return results, nil
}

func (s *ClientSimulator) ReadCoils(address, quantity uint16) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 1 is not supported by the simulator")
}

func (s *ClientSimulator) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 3 is not supported by the simulator")
}

func (s *ClientSimulator) WriteSingleCoil(address, value uint16) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 5 is not supported by the simulator")
}

func (s *ClientSimulator) WriteSingleRegister(address, value uint16) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 6 is not supported by the simulator")
}

func (s *ClientSimulator) WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 15 is not supported by the simulator")
}

func (s *ClientSimulator) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 16 is not supported by the simulator")
}

func (s *ClientSimulator) ReadWriteMultipleRegisters(readAddress, readQuantity, writeAddress, writeQuantity uint16, value []byte) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 23 is not supported by the simulator")
}

func (s *ClientSimulator) MaskWriteRegister(address, andMask, orMask uint16) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 22 is not supported by the simulator")
}

func (s *ClientSimulator) ReadFIFOQueue(address uint16) ([]byte, error) {
	return nil, fmt.Errorf("modbus: function code 24 is not supported by the simulator")
}
