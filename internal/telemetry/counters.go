package telemetry

// Counters receives poll anomaly notifications, for metrics. Implementations
// must be safe for concurrent use.
type Counters interface {
	// IncDefaultedItem counts an item that fell back to its default value
	// because the device did not report it.
	IncDefaultedItem(device string)
	// IncWalkError counts a tolerated transport failure during a walk.
	IncWalkError(device string)
}
