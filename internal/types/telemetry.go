package types

// Telemetry metric names for CloudWatch and Prometheus.
// All components MUST use these constants.
const (
	// Metric Names
	MetricRemindersScheduled   = "RemindersScheduled"
	MetricRemindersSkipped     = "RemindersSkippedExisting"
	MetricRemindersUnreachable = "RemindersSkippedUnreachable"
	MetricScheduleFailed       = "ScheduleFailed"
	MetricAppointmentsScanned  = "AppointmentsScanned"
	MetricDispatchProcessed    = "DispatchProcessed"
	MetricDeliverySuccess      = "DeliverySuccess"
	MetricDeliveryFailed       = "DeliveryFailed"
	MetricDeliveryLatency      = "DeliveryLatency"
	MetricRunDuration          = "RunDuration"

	// Dimension Keys
	DimChannel = "Channel"
	DimTask    = "Task"

	// Metric Namespace
	MetricNamespace = "CareReminders"
)
