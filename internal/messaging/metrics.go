package messaging

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"benefitclaims/internal/types"
)

// Outcome is the result of one dispatch.
type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeFailed       Outcome = "failed"
	OutcomeDeadLettered Outcome = "dead_lettered"
	// OutcomeSkipped means the handler was never invoked: the delivery
	// bookkeeping could not be committed, or another drain already took the
	// message.
	OutcomeSkipped Outcome = "skipped"
)

// Metrics receives dispatch telemetry. Implementations must not fail the
// dispatch; errors are logged and dropped.
type Metrics interface {
	RecordOutcome(ctx context.Context, t types.MessageType, outcome Outcome)
	RecordLatency(ctx context.Context, t types.MessageType, d time.Duration)
	RecordQueueLag(ctx context.Context, t types.MessageType, lag time.Duration)
	RecordDrained(ctx context.Context, t types.MessageType, n int)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordOutcome(context.Context, types.MessageType, Outcome)        {}
func (NoopMetrics) RecordLatency(context.Context, types.MessageType, time.Duration)  {}
func (NoopMetrics) RecordQueueLag(context.Context, types.MessageType, time.Duration) {}
func (NoopMetrics) RecordDrained(context.Context, types.MessageType, int)            {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics publishes dispatch metrics to CloudWatch.
//
// Metrics emitted:
//   - MessageCompleted / MessageFailed / MessageDeadLettered: Dims {MessageType}
//   - MessageProcessingLatency: Dims {MessageType}, milliseconds
//   - MessageQueueLag: Dims {MessageType}, milliseconds since creation
//   - MessagesDrained: Dims {MessageType}, messages handled in one tick
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates metrics publishing to namespace. An empty
// namespace falls back to types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func outcomeMetricName(o Outcome) string {
	switch o {
	case OutcomeCompleted:
		return types.MetricMessageCompleted
	case OutcomeDeadLettered:
		return types.MetricMessageDeadLettered
	default:
		return types.MetricMessageFailed
	}
}

// RecordOutcome emits one count against the metric for outcome.
func (m *CloudWatchMetrics) RecordOutcome(ctx context.Context, t types.MessageType, outcome Outcome) {
	m.put(ctx, "outcome", outcomeMetricName(outcome), 1, cwtypes.StandardUnitCount, t)
}

// RecordLatency emits handler latency in milliseconds.
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, t types.MessageType, d time.Duration) {
	m.put(ctx, "latency", types.MetricMessageLatency, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds, t)
}

// RecordQueueLag emits the age of a message when it was picked up.
func (m *CloudWatchMetrics) RecordQueueLag(ctx context.Context, t types.MessageType, lag time.Duration) {
	m.put(ctx, "queue lag", types.MetricMessageQueueLag, float64(lag.Milliseconds()), cwtypes.StandardUnitMilliseconds, t)
}

// RecordDrained emits the number of messages handled in one tick.
func (m *CloudWatchMetrics) RecordDrained(ctx context.Context, t types.MessageType, n int) {
	m.put(ctx, "drained", types.MetricMessagesDrained, float64(n), cwtypes.StandardUnitCount, t)
}

func (m *CloudWatchMetrics) put(ctx context.Context, kind, name string, value float64, unit cwtypes.StandardUnit, t types.MessageType) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       unit,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(types.DimMessageType),
						Value: aws.String(string(t)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record "+kind+" metric",
			"error", err.Error(),
			"metric", name,
			"message_type", string(t),
		)
	}
}
