package snmppoll

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/geekxflood/common/logging"

	"github.com/lsst-ts/ts-ess-epm/internal/mibtree"
	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

// SimulatedSystemDescription is the system description reported by the
// simulator.
const SimulatedSystemDescription = "SNMP server simulator"

const fiftyHzInTens = 500

// Simulated row counts per indexed branch.
const (
	simNetbooterRows     = 2
	simNetbooterFirstRow = 0
	simXUPSRows          = 3
	simXUPSFirstRow      = 1
	simMiscRows          = 5
	simMiscFirstRow      = 1
)

type digitTemplate struct {
	itemID int
	digits int
}

// Decimal scale templates reported for the simulated Raritan device, in row
// walk order.
var (
	simInletDigits = []digitTemplate{
		{1, 3}, {3, 0}, {4, 0}, {5, 0}, {6, 0}, {7, 2}, {8, 0}, {23, 1}, {60, 0}, {62, 0},
	}
	simOutletDigits = []digitTemplate{
		{1, 3}, {4, 0}, {5, 0}, {6, 0}, {7, 2}, {8, 0}, {14, 0}, {23, 1},
	}
	simExternalSensorDigits = []digitTemplate{
		{1, 1}, {2, 0}, {3, 1}, {4, 0}, {5, 0}, {6, 0}, {7, 0},
	}
)

// Simulator is a Walker that emits plausible values for every supported
// device family without contacting any server. Values are drawn from a
// seeded source, so a fixed seed yields a reproducible walk sequence.
type Simulator struct {
	tree   *mibtree.Tree
	logger logging.Logger
	rnd    *rand.Rand

	values []PolledValue
}

// NewSimulator creates a Simulator over the given management tree.
func NewSimulator(tree *mibtree.Tree, logger logging.Logger, seed int64) *Simulator {
	return &Simulator{
		tree:   tree,
		logger: logger.With("component", "snmpsim"),
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// Walk generates values for every leaf under the root OID in tree order.
// An OID that is not a known branch yields a TransportError, like an
// unreachable server would.
func (s *Simulator) Walk(_ context.Context, rootOID string) ([]PolledValue, error) {
	if rootOID == s.tree.OID("system") {
		return []PolledValue{
			{OID: s.tree.OID("sysDescr") + ".0", Value: SimulatedSystemDescription},
		}, nil
	}

	known := false
	for _, node := range s.tree.Nodes() {
		if node.OID == rootOID {
			known = true
			break
		}
	}
	if !known {
		return nil, &TransportError{OID: rootOID, Err: fmt.Errorf("unknown OID")}
	}

	s.values = nil
	for _, node := range s.tree.Nodes() {
		if node.OID != rootOID && !strings.HasPrefix(node.OID, rootOID+".") {
			continue
		}
		if node.Parent == nil {
			continue
		}
		if node.Parent.Index == "" {
			s.appendRandomValue(node.OID+".0", node.Name)
		} else {
			s.generateIndexedValues(node)
		}
	}
	return s.values, nil
}

// generateIndexedValues emits one value per row for an indexed leaf. The row
// counts mimic the real devices.
func (s *Simulator) generateIndexedValues(node *mibtree.Node) {
	switch {
	case strings.HasPrefix(node.OID, s.tree.OID(string(telemetry.FamilyNetbooter))):
		for i := simNetbooterFirstRow; i < simNetbooterFirstRow+simNetbooterRows; i++ {
			s.appendRandomValue(fmt.Sprintf("%s.%d", node.OID, i), node.Name)
		}
	case strings.HasPrefix(node.OID, s.tree.OID(string(telemetry.FamilyXUPS))):
		for i := simXUPSFirstRow; i < simXUPSFirstRow+simXUPSRows; i++ {
			s.appendRandomValue(fmt.Sprintf("%s.%d", node.OID, i), node.Name)
		}
	case strings.HasPrefix(node.OID, s.tree.OID(string(telemetry.FamilyRaritan))):
		s.generateRaritanValues(node)
	default:
		s.logger.Warn("Unexpected list item", "oid", node.OID)
		for i := simMiscFirstRow; i < simMiscFirstRow+simMiscRows; i++ {
			s.appendRandomValue(fmt.Sprintf("%s.%d", node.OID, i), node.Name)
		}
	}
}

// appendRandomValue emits a random value of the item's kind. Names without a
// telemetry descriptor are structural and skipped.
func (s *Simulator) appendRandomValue(oid, name string) {
	desc, ok := telemetry.Items[name]
	if !ok {
		return
	}
	switch desc.Kind {
	case telemetry.KindInt:
		s.append(oid, s.intString(0, 100))
	case telemetry.KindFloat:
		s.append(oid, s.floatString(oid))
	case telemetry.KindString:
		s.append(oid, s.randomText(20))
	}
}

func (s *Simulator) append(oid, value string) {
	s.values = append(s.values, PolledValue{OID: oid, Value: value})
}

func (s *Simulator) intString(start, stop int) string {
	return strconv.Itoa(start + s.rnd.Intn(stop-start))
}

// floatString renders a float value the way the simulated device family
// reports it: hex encoded ASCII, tens of Hz, a plain text float or a raw int.
func (s *Simulator) floatString(oid string) string {
	switch {
	case strings.HasPrefix(oid, s.tree.OID(string(telemetry.FamilyNetbooter))):
		if telemetry.PDUHexOIDs[oid] {
			return s.hexFloatString()
		}
		return s.intString(100, 1000)
	case telemetry.FrequencyOIDs[oid]:
		return strconv.Itoa(fiftyHzInTens)
	case telemetry.SchneiderFloatStringOIDs[oid]:
		return strconv.FormatFloat(s.rnd.Float64()*250.0, 'f', -1, 64)
	default:
		return s.intString(100, 1000)
	}
}

// hexFloatString encodes a two decimal float as "0x<hex of ascii>00", the
// format certain PDU values arrive in.
func (s *Simulator) hexFloatString() string {
	value := fmt.Sprintf("%.2f", s.rnd.Float64()*10.0)
	var b strings.Builder
	b.WriteString("0x")
	for _, c := range value {
		fmt.Fprintf(&b, "%x", c)
	}
	b.WriteString("00")
	return b.String()
}

const textAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (s *Simulator) randomText(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = textAlphabet[s.rnd.Intn(len(textAlphabet))]
	}
	return string(b)
}

// generateRaritanValues emits the rows of one Raritan branch.
func (s *Simulator) generateRaritanValues(node *mibtree.Node) {
	switch node.OID {
	case telemetry.RaritanInletDecimalDigits:
		s.generateRaritanDigits(node.OID, simInletDigits, 1)
	case telemetry.RaritanOutletDecimalDigits:
		s.generateRaritanDigits(node.OID, simOutletDigits, telemetry.RaritanOutletCount)
	case telemetry.RaritanExternalSensorDecimalDigits:
		s.generateRaritanExternalSensorDigits(node.OID)
	case telemetry.RaritanInletTelemetry:
		s.generateRaritanInletTelemetry(node.OID)
	case telemetry.RaritanOutletTelemetry:
		s.generateRaritanOutletTelemetry(node.OID)
	case telemetry.RaritanExternalSensorTelemetry:
		s.generateRaritanExternalSensorTelemetry(node.OID)
	default:
		s.logger.Warn("Unknown Raritan branch, ignoring", "oid", node.OID)
	}
}

// generateRaritanDigits repeats the decimal scale template once per row. The
// outlet scales repeat 48 times because that is how many outlets each
// supported device has.
func (s *Simulator) generateRaritanDigits(root string, template []digitTemplate, rows int) {
	for row := 1; row <= rows; row++ {
		for _, t := range template {
			oid := fmt.Sprintf("%s.1.%d.%d", root, row, t.itemID)
			s.append(oid, strconv.Itoa(t.digits))
		}
	}
}

func (s *Simulator) generateRaritanExternalSensorDigits(root string) {
	for _, t := range simExternalSensorDigits {
		oid := fmt.Sprintf("%s.1.%d", root, t.itemID)
		s.append(oid, strconv.Itoa(t.digits))
	}
}

func (s *Simulator) generateRaritanInletTelemetry(root string) {
	ranges := []struct {
		itemID      int
		start, stop int
	}{
		{1, 3775, 4001},
		{3, 60, 70},
		{4, 395, 405},
		{5, 1250, 1750},
		{6, 1700, 1800},
		{7, 0, 100},
		{8, 10000, 15000},
		{23, 495, 505},
		{60, 1, 2},
		{62, 0, 1},
	}
	for _, r := range ranges {
		oid := fmt.Sprintf("%s.1.1.%d", root, r.itemID)
		s.append(oid, s.intString(r.start, r.stop))
	}
}

func (s *Simulator) generateRaritanOutletTelemetry(root string) {
	ranges := []struct {
		itemID      int
		start, stop int
	}{
		{1, 0, 250},
		{4, 229, 230},
		{5, 0, 100},
		{6, 0, 100},
		{7, 0, 100},
		{8, 10000, 15000},
		{14, 0, 2},
		{23, 495, 505},
	}
	for row := 1; row <= telemetry.RaritanOutletCount; row++ {
		for _, r := range ranges {
			oid := fmt.Sprintf("%s.1.%d.%d", root, row, r.itemID)
			s.append(oid, s.intString(r.start, r.stop))
		}
	}
}

func (s *Simulator) generateRaritanExternalSensorTelemetry(root string) {
	ranges := []struct {
		sensorID    int
		start, stop int
	}{
		{1, 100, 250},
		{2, 10, 70},
		{3, 100, 250},
		{4, 10, 70},
		{5, 0, 1},
		{6, 0, 1},
		{7, 0, 1},
	}
	for _, r := range ranges {
		oid := fmt.Sprintf("%s.1.%d", root, r.sensorID)
		s.append(oid, s.intString(r.start, r.stop))
	}
}
