package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"benefitclaims/internal/types"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cloudwatch.PutMetricDataOutput)
	return out, args.Error(1)
}

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Info(string, ...any)           {}
func (l *recordingLogger) Warn(string, ...any)           {}
func (l *recordingLogger) Error(msg string, args ...any) { l.errors = append(l.errors, msg) }
func (l *recordingLogger) With(...any) types.Logger      { return l }

func datumMatches(name string, unit cwtypes.StandardUnit, value float64, mt types.MessageType) any {
	return mock.MatchedBy(func(in *cloudwatch.PutMetricDataInput) bool {
		if len(in.MetricData) != 1 || *in.Namespace != "Test/NS" {
			return false
		}
		d := in.MetricData[0]
		return *d.MetricName == name &&
			d.Unit == unit &&
			*d.Value == value &&
			len(d.Dimensions) == 1 &&
			*d.Dimensions[0].Name == types.DimMessageType &&
			*d.Dimensions[0].Value == string(mt)
	})
}

func TestCloudWatchMetrics_Emits(t *testing.T) {
	cw := &mockCloudWatch{}
	m := NewCloudWatchMetrics(cw, "Test/NS", &recordingLogger{})
	ctx := context.Background()

	cw.On("PutMetricData", ctx, datumMatches(types.MetricMessageCompleted, cwtypes.StandardUnitCount, 1, types.MessageTypeSendEmail)).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()
	cw.On("PutMetricData", ctx, datumMatches(types.MetricMessageFailed, cwtypes.StandardUnitCount, 1, types.MessageTypeSendEmail)).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()
	cw.On("PutMetricData", ctx, datumMatches(types.MetricMessageDeadLettered, cwtypes.StandardUnitCount, 1, types.MessageTypeSendEmail)).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()
	cw.On("PutMetricData", ctx, datumMatches(types.MetricMessageLatency, cwtypes.StandardUnitMilliseconds, 1500, types.MessageTypeMakePayment)).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()
	cw.On("PutMetricData", ctx, datumMatches(types.MetricMessageQueueLag, cwtypes.StandardUnitMilliseconds, 60000, types.MessageTypeMakePayment)).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()
	cw.On("PutMetricData", ctx, datumMatches(types.MetricMessagesDrained, cwtypes.StandardUnitCount, 7, types.MessageTypeReportClaim)).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()

	m.RecordOutcome(ctx, types.MessageTypeSendEmail, OutcomeCompleted)
	m.RecordOutcome(ctx, types.MessageTypeSendEmail, OutcomeFailed)
	m.RecordOutcome(ctx, types.MessageTypeSendEmail, OutcomeDeadLettered)
	m.RecordLatency(ctx, types.MessageTypeMakePayment, 1500*time.Millisecond)
	m.RecordQueueLag(ctx, types.MessageTypeMakePayment, time.Minute)
	m.RecordDrained(ctx, types.MessageTypeReportClaim, 7)

	cw.AssertExpectations(t)
}

func TestCloudWatchMetrics_ErrorIsLogged(t *testing.T) {
	cw := &mockCloudWatch{}
	logger := &recordingLogger{}
	m := NewCloudWatchMetrics(cw, "", logger)

	cw.On("PutMetricData", mock.Anything, mock.MatchedBy(func(in *cloudwatch.PutMetricDataInput) bool {
		return *in.Namespace == types.MetricNamespace
	})).Return(nil, errors.New("throttled"))

	assert.NotPanics(t, func() {
		m.RecordOutcome(context.Background(), types.MessageTypeSendText, OutcomeCompleted)
	})
	assert.Equal(t, []string{"failed to record outcome metric"}, logger.errors)
}
