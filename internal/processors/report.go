package processors

import (
	"context"

	"benefitclaims/internal/messaging"
	"benefitclaims/internal/queue"
	"benefitclaims/internal/types"
)

// ReportClaimHandler publishes a claim event to the MI feed.
type ReportClaimHandler struct {
	*base
	messaging.NoCompensation
}

func (h *ReportClaimHandler) SupportsType() types.MessageType {
	return types.MessageTypeReportClaim
}

func (h *ReportClaimHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.ReportClaimPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, err := h.loader.Claim(ctx, p.ClaimID)
	if err != nil {
		return messaging.StatusError, err
	}

	err = h.Reporter.ReportClaim(ctx, queue.ClaimReport{
		ReportID:         msg.ID,
		ClaimID:          claim.ID,
		ClaimAction:      p.ClaimAction,
		ClaimStatus:      claim.Status,
		CardStatus:       claim.CardStatus,
		NumberOfChildren: len(claim.Claimant.ChildrenDOB),
		Pregnant:         claim.Claimant.ExpectedDeliveryDate != nil,
		Timestamp:        msg.CreatedTimestamp,
	})
	if err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

// ReportPaymentHandler publishes a payment event to the MI feed.
type ReportPaymentHandler struct {
	*base
	messaging.NoCompensation
}

func (h *ReportPaymentHandler) SupportsType() types.MessageType {
	return types.MessageTypeReportPayment
}

func (h *ReportPaymentHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.ReportPaymentPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	_, cycle, err := h.loader.ClaimAndCycle(ctx, p.ClaimID, p.PaymentCycleID)
	if err != nil {
		return messaging.StatusError, err
	}

	err = h.Reporter.ReportPayment(ctx, queue.PaymentReport{
		ReportID:       msg.ID,
		ClaimID:        cycle.ClaimID,
		PaymentCycleID: cycle.ID,
		PaymentAction:  p.PaymentAction,
		PaymentAmount:  p.Amount,
		CycleStatus:    cycle.Status,
		CycleStartDate: cycle.CycleStartDate,
		CycleEndDate:   cycle.CycleEndDate,
		Timestamp:      msg.CreatedTimestamp,
	})
	if err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}
