package types

// Telemetry metric names for CloudWatch.
const (
	MetricMessageCompleted    = "MessageCompleted"
	MetricMessageFailed       = "MessageFailed"
	MetricMessageDeadLettered = "MessageDeadLettered"
	MetricMessageLatency      = "MessageProcessingLatency"
	MetricMessageQueueLag     = "MessageQueueLag"
	MetricMessagesDrained     = "MessagesDrained"
	MetricExternalAPIFailure  = "ExternalAPIFailure"

	DimMessageType = "MessageType"
	DimProvider    = "Provider"
	DimOutcome     = "Outcome"

	MetricNamespace = "BenefitClaims/Messaging"
)
