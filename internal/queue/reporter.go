// Package queue publishes management-information reports to SQS for the
// downstream reporting pipeline.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"benefitclaims/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

const (
	reportTypeClaim   = "CLAIM"
	reportTypePayment = "PAYMENT"
)

// ClaimReport is one claim lifecycle event.
type ClaimReport struct {
	ReportID         string            `json:"report_id"`
	ClaimID          string            `json:"claim_id"`
	ClaimAction      types.ClaimAction `json:"claim_action"`
	ClaimStatus      types.ClaimStatus `json:"claim_status"`
	CardStatus       types.CardStatus  `json:"card_status,omitempty"`
	NumberOfChildren int               `json:"number_of_children"`
	Pregnant         bool              `json:"pregnant"`
	Timestamp        time.Time         `json:"timestamp"`
}

// PaymentReport is one payment event.
type PaymentReport struct {
	ReportID       string                   `json:"report_id"`
	ClaimID        string                   `json:"claim_id"`
	PaymentCycleID string                   `json:"payment_cycle_id"`
	PaymentAction  types.PaymentAction      `json:"payment_action"`
	PaymentAmount  decimal.Decimal          `json:"payment_amount"`
	CycleStatus    types.PaymentCycleStatus `json:"payment_cycle_status,omitempty"`
	CycleStartDate time.Time                `json:"cycle_start_date"`
	CycleEndDate   time.Time                `json:"cycle_end_date"`
	Timestamp      time.Time                `json:"timestamp"`
}

// Reporter publishes reports to the reporting queue. With no queue URL it
// only logs, which is how local environments run.
type Reporter struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewReporter creates a Reporter.
func NewReporter(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *Reporter {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

// ReportClaim publishes a claim event.
func (r *Reporter) ReportClaim(ctx context.Context, report ClaimReport) error {
	if report.ReportID == "" {
		report.ReportID = uuid.NewString()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = r.clock.Now()
	}
	return r.send(ctx, reportTypeClaim, report.ClaimID, report)
}

// ReportPayment publishes a payment event.
func (r *Reporter) ReportPayment(ctx context.Context, report PaymentReport) error {
	if report.ReportID == "" {
		report.ReportID = uuid.NewString()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = r.clock.Now()
	}
	return r.send(ctx, reportTypePayment, report.ClaimID, report)
}

func (r *Reporter) send(ctx context.Context, reportType, claimID string, report any) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal %s report: %w", reportType, err)
	}

	if r.queueURL == "" || r.client == nil {
		r.logger.InfoContext(ctx, "reporting queue not configured, report logged only",
			"report_type", reportType,
			"claim_id", claimID,
		)
		return nil
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(r.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"report_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reportType),
			},
		},
	}
	if id := types.GetMessageID(ctx); id != "" {
		input.MessageAttributes["source_message_id"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(id),
		}
	}

	out, err := r.client.SendMessage(ctx, input)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamReporting,
			fmt.Sprintf("failed to publish %s report", reportType), err)
	}

	r.logger.InfoContext(ctx, "report published",
		"report_type", reportType,
		"claim_id", claimID,
		"sqs_message_id", aws.ToString(out.MessageId),
	)
	return nil
}
