package ir

// Version constants for the receipt model and scheduler.
const (
	// ReceiptVersion is the receipt hashing schema version.
	ReceiptVersion = "1"

	// SchedulerVersion is the cadence scheduler version.
	SchedulerVersion = "0.1.0"
)
