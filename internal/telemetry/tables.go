// Package telemetry holds the static decoding tables and output schemas for
// the supported device families, plus the record and publish boundary types.
package telemetry

// Kind is the value kind of a telemetry item.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	}
	return "unknown"
}

// ItemDescriptor describes one known telemetry item by its management-tree
// name: the value kind and the display unit.
type ItemDescriptor struct {
	Kind Kind
	Unit string
}

// Items maps every known management-tree item name to its descriptor. A lookup
// by a name missing from this table is a configuration defect, not a runtime
// condition.
var Items = map[string]ItemDescriptor{
	"aeActiveEDelivered":              {KindFloat, "J"},
	"aeApparentEDelivered":            {KindFloat, "J"},
	"aeReactiveEDelivered":            {KindFloat, "J"},
	"aeResetDateTime":                 {KindString, "unitless"},
	"currentDrawMax1":                 {KindFloat, "A"},
	"currentDrawStatus1":              {KindFloat, "A"},
	"fFrequency":                      {KindFloat, "Hz"},
	"lcIC":                            {KindFloat, "A"},
	"lcIa":                            {KindFloat, "A"},
	"lcIb":                            {KindFloat, "A"},
	"lcIn":                            {KindFloat, "A"},
	"measurementsExternalSensorValue": {KindFloat, "unitless"},
	"measurementsInletSensorValue":    {KindFloat, "unitless"},
	"measurementsOutletSensorValue":   {KindFloat, "unitless"},
	"midSerialNumber":                 {KindString, "unitless"},
	"outletStatus":                    {KindInt, "unitless"},
	"pActivePa":                       {KindFloat, "kW"},
	"pActivePb":                       {KindFloat, "kW"},
	"pActivePc":                       {KindFloat, "kW"},
	"pActivePtot":                     {KindFloat, "kW"},
	"pApparentPa":                     {KindFloat, "kW"},
	"pApparentPb":                     {KindFloat, "kW"},
	"pApparentPc":                     {KindFloat, "kW"},
	"pApparentPtot":                   {KindFloat, "kW"},
	"pReactivePa":                     {KindFloat, "kW"},
	"pReactivePb":                     {KindFloat, "kW"},
	"pReactivePc":                     {KindFloat, "kW"},
	"pReactivePtot":                   {KindFloat, "kW"},
	"pfPfDisplacementA":               {KindFloat, "unitless"},
	"pfPfDisplacementB":               {KindFloat, "unitless"},
	"pfPfDisplacementC":               {KindFloat, "unitless"},
	"pfPfDisplacementTotal":           {KindFloat, "unitless"},
	"pfPfa":                           {KindFloat, "unitless"},
	"pfPfb":                           {KindFloat, "unitless"},
	"pfPfc":                           {KindFloat, "unitless"},
	"pfPftot":                         {KindFloat, "unitless"},
	"sysDescr":                        {KindString, "unitless"},
	"vVab":                            {KindFloat, "V"},
	"vVan":                            {KindFloat, "V"},
	"vVbc":                            {KindFloat, "V"},
	"vVbn":                            {KindFloat, "V"},
	"vVca":                            {KindFloat, "V"},
	"vVcn":                            {KindFloat, "V"},
	"xupsBatCapacity":                 {KindFloat, "%"},
	"xupsBatCurrent":                  {KindFloat, "A"},
	"xupsBatTimeRemaining":            {KindFloat, "s"},
	"xupsBatVoltage":                  {KindFloat, "V"},
	"xupsBatteryAbmStatus":            {KindInt, "unitless"},
	"xupsBypassFrequency":             {KindFloat, "Hz"},
	"xupsBypassTable":                 {KindString, "unitless"},
	"xupsBypassVoltage":               {KindFloat, "V"},
	"xupsEnvAmbientTemp":              {KindFloat, "deg_C"},
	"xupsInputCurrent":                {KindFloat, "A"},
	"xupsInputFrequency":              {KindFloat, "Hz"},
	"xupsInputTable":                  {KindString, "unitless"},
	"xupsInputVoltage":                {KindFloat, "V"},
	"xupsInputWatts":                  {KindFloat, "W"},
	"xupsOutputCurrent":               {KindFloat, "A"},
	"xupsOutputFrequency":             {KindFloat, "Hz"},
	"xupsOutputLoad":                  {KindFloat, "unitless"},
	"xupsOutputTable":                 {KindString, "unitless"},
	"xupsOutputVoltage":               {KindFloat, "V"},
	"xupsOutputWatts":                 {KindFloat, "W"},
}

// FrequencyOIDs lists the OIDs whose frequency value is reported in tens of
// Hz. The decoded value must be divided by 10.
var FrequencyOIDs = map[string]bool{
	"1.3.6.1.4.1.534.1.3.1.0": true,
	"1.3.6.1.4.1.534.1.4.2.0": true,
	"1.3.6.1.4.1.534.1.5.1.0": true,
}

// PDUHexOIDs lists the Netbooter PDU OIDs whose float value is reported as a
// hexadecimal encoded ASCII string.
var PDUHexOIDs = map[string]bool{
	"1.3.6.1.4.1.21728.3.3.2.0": true,
	"1.3.6.1.4.1.21728.3.3.3.0": true,
	"1.3.6.1.4.1.21728.3.3.4.0": true,
	"1.3.6.1.4.1.21728.3.3.5.0": true,
}

// SchneiderFloatStringOIDs lists the Schneider power meter OIDs whose float
// value is reported as a plain text string.
var SchneiderFloatStringOIDs = map[string]bool{
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.5.1.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.5.2.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.5.3.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.5.5.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.5.6.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.5.7.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.3.1.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.3.2.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.3.3.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.3.4.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.2.1.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.1.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.2.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.3.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.4.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.5.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.6.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.7.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.8.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.9.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.10.0":  true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.11.0":  true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.7.12.0":  true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.8.1.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.8.2.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.8.3.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.8.4.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.8.5.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.8.6.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.8.7.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.8.8.0":   true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.10.2.0":  true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.10.6.0":  true,
	"1.3.6.1.4.1.3833.1.100.1.3.1.3.10.10.0": true,
}
