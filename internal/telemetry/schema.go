package telemetry

import "fmt"

// Field describes one output field of a telemetry topic: the published field
// name, the management-tree item it is read from, and the array length
// (1 for scalar fields).
type Field struct {
	Name string
	Item string
	Len  int
}

// Multiple reports whether the field carries more than one value.
func (f Field) Multiple() bool { return f.Len > 1 }

// Schema is the externally defined shape of one device family's telemetry
// topic. Metadata fields (systemDescription, sensorName) are added by the
// poll engine and are not listed here.
type Schema struct {
	Topic  string
	Fields []Field
}

// Family identifies a supported SNMP device family.
type Family string

const (
	FamilyNetbooter Family = "netbooter"
	FamilyRaritan   Family = "raritan"
	FamilySchneider Family = "schneiderPm5xxx"
	FamilyXUPS      Family = "xups"
)

// Families lists the supported SNMP device families.
var Families = []Family{FamilyNetbooter, FamilyRaritan, FamilySchneider, FamilyXUPS}

// Raritan auxiliary topics: the external sensor readings are published on
// their own topics in addition to the family's primary topic.
const (
	TopicTemperature      = "epm_temperature"
	TopicRelativeHumidity = "epm_relativeHumidity"
)

// TemperatureArrayLen is the slot count of the temperatureItem array on the
// temperature topic.
const TemperatureArrayLen = 16

// SchemaFor returns the telemetry schema for the given device family.
func SchemaFor(family Family) (Schema, error) {
	s, ok := schemas[family]
	if !ok {
		return Schema{}, fmt.Errorf("unknown device family %q", family)
	}
	return s, nil
}

var schemas = map[Family]Schema{
	FamilyNetbooter: {
		Topic: "epm_netbooter",
		Fields: []Field{
			{Name: "acCurrentDraw", Item: "currentDrawStatus1", Len: 1},
			{Name: "acMaxDraw", Item: "currentDrawMax1", Len: 1},
			{Name: "powerOutletStatus", Item: "outletStatus", Len: 8},
		},
	},
	FamilySchneider: {
		Topic: "epm_schneiderPm5xxx",
		Fields: []Field{
			{Name: "serialNumber", Item: "midSerialNumber", Len: 1},
			{Name: "activeEnergyDelivered", Item: "aeActiveEDelivered", Len: 1},
			{Name: "apparentEnergyDelivered", Item: "aeApparentEDelivered", Len: 1},
			{Name: "reactiveEnergyDelivered", Item: "aeReactiveEDelivered", Len: 1},
			{Name: "resetDateTime", Item: "aeResetDateTime", Len: 1},
			{Name: "loadCurrentA", Item: "lcIa", Len: 1},
			{Name: "loadCurrentB", Item: "lcIb", Len: 1},
			{Name: "loadCurrentC", Item: "lcIC", Len: 1},
			{Name: "neutralCurrent", Item: "lcIn", Len: 1},
			{Name: "measuredLineVoltageVab", Item: "vVab", Len: 1},
			{Name: "measuredLineVoltageVbc", Item: "vVbc", Len: 1},
			{Name: "measuredLineVoltageVca", Item: "vVca", Len: 1},
			{Name: "measuredLineVoltageVan", Item: "vVan", Len: 1},
			{Name: "measuredLineVoltageVbn", Item: "vVbn", Len: 1},
			{Name: "measuredLineVoltageVcn", Item: "vVcn", Len: 1},
			{Name: "activePowerA", Item: "pActivePa", Len: 1},
			{Name: "activePowerB", Item: "pActivePb", Len: 1},
			{Name: "activePowerC", Item: "pActivePc", Len: 1},
			{Name: "totalActivePower", Item: "pActivePtot", Len: 1},
			{Name: "reactivePowerA", Item: "pReactivePa", Len: 1},
			{Name: "reactivePowerB", Item: "pReactivePb", Len: 1},
			{Name: "reactivePowerC", Item: "pReactivePc", Len: 1},
			{Name: "totalReactivePower", Item: "pReactivePtot", Len: 1},
			{Name: "apparentPowerA", Item: "pApparentPa", Len: 1},
			{Name: "apparentPowerB", Item: "pApparentPb", Len: 1},
			{Name: "apparentPowerC", Item: "pApparentPc", Len: 1},
			{Name: "totalApparentPower", Item: "pApparentPtot", Len: 1},
			{Name: "powerFactorA", Item: "pfPfa", Len: 1},
			{Name: "powerFactorB", Item: "pfPfb", Len: 1},
			{Name: "powerFactorC", Item: "pfPfc", Len: 1},
			{Name: "totalPowerFactor", Item: "pfPftot", Len: 1},
			{Name: "displacementPowerFactorA", Item: "pfPfDisplacementA", Len: 1},
			{Name: "displacementPowerFactorB", Item: "pfPfDisplacementB", Len: 1},
			{Name: "displacementPowerFactorC", Item: "pfPfDisplacementC", Len: 1},
			{Name: "totalDisplacementPowerFactor", Item: "pfPfDisplacementTotal", Len: 1},
			{Name: "systemFrequency", Item: "fFrequency", Len: 1},
		},
	},
	FamilyXUPS: {
		Topic: "epm_xups",
		Fields: []Field{
			{Name: "batteryTimeRemaining", Item: "xupsBatTimeRemaining", Len: 1},
			{Name: "batteryVoltage", Item: "xupsBatVoltage", Len: 1},
			{Name: "batteryCurrent", Item: "xupsBatCurrent", Len: 1},
			{Name: "batteryCapacity", Item: "xupsBatCapacity", Len: 1},
			{Name: "batteryAbmStatus", Item: "xupsBatteryAbmStatus", Len: 1},
			{Name: "inputFrequency", Item: "xupsInputFrequency", Len: 1},
			{Name: "inputTable", Item: "xupsInputTable", Len: 1},
			{Name: "inputVoltage", Item: "xupsInputVoltage", Len: 3},
			{Name: "inputCurrent", Item: "xupsInputCurrent", Len: 3},
			{Name: "inputPower", Item: "xupsInputWatts", Len: 3},
			{Name: "outputLoad", Item: "xupsOutputLoad", Len: 1},
			{Name: "outputFrequency", Item: "xupsOutputFrequency", Len: 1},
			{Name: "outputTable", Item: "xupsOutputTable", Len: 1},
			{Name: "outputVoltage", Item: "xupsOutputVoltage", Len: 3},
			{Name: "outputCurrent", Item: "xupsOutputCurrent", Len: 3},
			{Name: "outputPower", Item: "xupsOutputWatts", Len: 3},
			{Name: "bypassFrequency", Item: "xupsBypassFrequency", Len: 1},
			{Name: "bypassTable", Item: "xupsBypassTable", Len: 1},
			{Name: "bypassVoltage", Item: "xupsBypassVoltage", Len: 3},
			{Name: "envAmbientTemp", Item: "xupsEnvAmbientTemp", Len: 1},
		},
	},
	// The Raritan record is assembled row-driven from the walk result rather
	// than schema-driven; only the topic and the fixed outlet arrays are
	// declared here.
	FamilyRaritan: {
		Topic: "epm_raritan",
	},
}
