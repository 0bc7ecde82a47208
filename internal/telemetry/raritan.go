package telemetry

// Raritan PDUs expose a fully generic, self-describing object layout. The
// device reports which sensor items it publishes and at which decimal scale,
// so the poll engine reconstructs records row by row instead of field by
// field. The constants below pin down the branches and item numbering.

// Raritan walk roots. The decimal-digit branches are walked once at setup to
// build the scale table; the telemetry branches are walked every cycle.
const (
	RaritanInletDecimalDigits          = "1.3.6.1.4.1.13742.6.3.3.4.1.7"
	RaritanOutletDecimalDigits         = "1.3.6.1.4.1.13742.6.3.5.4.1.7"
	RaritanExternalSensorDecimalDigits = "1.3.6.1.4.1.13742.6.3.6.3.1.17"
	RaritanInletTelemetry              = "1.3.6.1.4.1.13742.6.5.2.3.1.4"
	RaritanOutletTelemetry             = "1.3.6.1.4.1.13742.6.5.4.3.1.4"
	RaritanExternalSensorTelemetry     = "1.3.6.1.4.1.13742.6.5.5.3.1.4"
)

// RaritanDecimalDigitRoots are the setup-time walk roots, in walk order.
var RaritanDecimalDigitRoots = []string{
	RaritanInletDecimalDigits,
	RaritanOutletDecimalDigits,
	RaritanExternalSensorDecimalDigits,
}

// RaritanTelemetryRoots are the per-cycle walk roots, in walk order.
var RaritanTelemetryRoots = []string{
	RaritanInletTelemetry,
	RaritanOutletTelemetry,
	RaritanExternalSensorTelemetry,
}

// RaritanItemNames maps the sensor-type id used in inlet and outlet rows to
// the item name. The ids follow the device telemetry numbering, which starts
// at 1.
var RaritanItemNames = map[int]string{
	1:  "rmsCurrent",
	2:  "peakCurrent",
	3:  "unbalancedCurrent",
	4:  "rmsVoltage",
	5:  "activePower",
	6:  "apparentPower",
	7:  "powerFactor",
	8:  "activeEnergy",
	9:  "apparentEnergy",
	10: "temperature",
	11: "humidity",
	14: "onOff",
	22: "surgeProtectorStatus",
	23: "frequency",
	24: "phaseAngle",
	26: "residualCurrent",
	27: "rcmState",
	29: "reactivePower",
	32: "powerQuality",
	35: "displacementPowerFactor",
	36: "residualDcCurrent",
	51: "crestFactor",
	54: "activePowerDemand",
	55: "residualAcCurrent",
	57: "voltageThd",
	58: "currentThd",
	60: "unbalancedVoltage",
	61: "unbalancedLineLineCurrent",
	62: "unbalancedLineLineVoltage",
}

// RaritanExternalSensorNames maps the external sensor numbering to item
// names. External sensors are numbered differently from inlets and outlets:
// each semantic name recurs, one id per physical sensor.
var RaritanExternalSensorNames = map[int]string{
	1: "temperature",
	2: "humidity",
	3: "temperature",
	4: "humidity",
	5: "onOff",
	6: "onOff",
	7: "onOff",
}

// RaritanOutletCount is the fixed number of outlets per supported device.
const RaritanOutletCount = 48

// RaritanExternalSensorSlots is the fixed number of sensors per external
// sensor kind (two temperature and two humidity probes per device).
const RaritanExternalSensorSlots = 2

// RaritanInletItemName builds the record field name for an inlet row item,
// e.g. rmsCurrent -> inletRmsCurrent.
func RaritanInletItemName(item string) string {
	return "inlet" + capitalize(item)
}

// RaritanOutletItemName builds the record field name for an outlet row item,
// e.g. rmsCurrent -> outletRmsCurrent.
func RaritanOutletItemName(item string) string {
	return "outlet" + capitalize(item)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
