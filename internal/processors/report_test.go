package processors

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"benefitclaims/internal/messaging"
	"benefitclaims/internal/queue"
	"benefitclaims/internal/types"
)

func TestReportClaim(t *testing.T) {
	f := newFixture(t, activeClaim())
	f.reporter.On("ReportClaim", mock.Anything, mock.MatchedBy(func(r queue.ClaimReport) bool {
		return r.ReportID == "msg-1" &&
			r.ClaimAction == types.ClaimActionNew &&
			r.ClaimStatus == types.ClaimStatusActive &&
			r.NumberOfChildren == 1 &&
			!r.Pregnant
	})).Return(nil)

	msg := newMessage(t, types.MessageTypeReportClaim, types.ReportClaimPayload{ClaimID: "claim-1", ClaimAction: types.ClaimActionNew})
	status, err := f.handler(t, msg.Type).Process(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, messaging.StatusCompleted, status)
	f.reporter.AssertExpectations(t)
}

func TestReportPayment(t *testing.T) {
	f := newFixture(t, activeClaim(), determinedCycle(types.PaymentCycleStatusFullPaymentMade))
	f.reporter.On("ReportPayment", mock.Anything, mock.MatchedBy(func(r queue.PaymentReport) bool {
		return r.PaymentCycleID == "cycle-1" &&
			r.PaymentAction == types.PaymentActionSchedule &&
			r.PaymentAmount.Equal(fourWeeks) &&
			r.CycleStatus == types.PaymentCycleStatusFullPaymentMade
	})).Return(nil)

	msg := newMessage(t, types.MessageTypeReportPayment, types.ReportPaymentPayload{
		ClaimID:        "claim-1",
		PaymentCycleID: "cycle-1",
		PaymentAction:  types.PaymentActionSchedule,
		Amount:         decimal.RequireFromString("34.00"),
	})
	status, err := f.handler(t, msg.Type).Process(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, messaging.StatusCompleted, status)
	f.reporter.AssertExpectations(t)
}

func TestReportClaim_PublishFailure(t *testing.T) {
	f := newFixture(t, activeClaim())
	f.reporter.On("ReportClaim", mock.Anything, mock.Anything).
		Return(types.NewAppError(types.ErrCodeUpstreamReporting, "failed to publish CLAIM report", nil))

	msg := newMessage(t, types.MessageTypeReportClaim, types.ReportClaimPayload{ClaimID: "claim-1", ClaimAction: types.ClaimActionNew})
	status, err := f.handler(t, msg.Type).Process(context.Background(), msg)

	assert.Equal(t, messaging.StatusError, status)
	require.Error(t, err)
}
