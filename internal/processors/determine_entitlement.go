package processors

import (
	"context"
	"time"

	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

// DetermineEntitlementHandler re-checks eligibility for a new payment cycle.
// An eligible claimant gets the cycle's entitlement calculated and a
// REQUEST_PAYMENT queued. An ineligible claimant's claim moves to
// PENDING_EXPIRY, or to EXPIRED if it was already pending.
type DetermineEntitlementHandler struct {
	*base
	messaging.NoCompensation
}

func (h *DetermineEntitlementHandler) SupportsType() types.MessageType {
	return types.MessageTypeDetermineEntitlement
}

func (h *DetermineEntitlementHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.DetermineEntitlementPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, cycle, err := h.loader.ClaimAndCycle(ctx, p.ClaimID, p.CurrentPaymentCycleID)
	if err != nil {
		return messaging.StatusError, err
	}
	now := h.now()

	if claim.Status == types.ClaimStatusPending && h.PendingExpiry > 0 && msg.Age(now) > h.PendingExpiry {
		h.Logger.InfoContext(ctx, "claim pending too long, expiring",
			"claim_id", claim.ID,
			"message_age", msg.Age(now).String(),
		)
		if err := h.markIneligible(ctx, cycle, types.EligibilityPending, now); err != nil {
			return messaging.StatusError, err
		}
		if err := h.expireClaim(ctx, claim, now); err != nil {
			return messaging.StatusError, err
		}
		return messaging.StatusCompleted, nil
	}

	result, err := h.Eligibility.Check(ctx, claim.Claimant)
	if err != nil {
		return messaging.StatusError, err
	}
	if result.Status == types.EligibilityPending {
		return messaging.StatusError, types.NewAppErrorWithDetails(types.ErrCodeUpstreamEligibility,
			"eligibility not yet determined", nil, map[string]any{"claim_id": claim.ID})
	}

	if result.Status != types.EligibilityEligible && !claim.EligibilityOverride {
		if err := h.markIneligible(ctx, cycle, result.Status, now); err != nil {
			return messaging.StatusError, err
		}
		if claim.Status == types.ClaimStatusActive {
			err = h.pendExpiry(ctx, claim, now)
		} else {
			err = h.expireClaim(ctx, claim, now)
		}
		if err != nil {
			return messaging.StatusError, err
		}
		return messaging.StatusCompleted, nil
	}

	dobs := result.ChildrenDOB
	if len(dobs) == 0 {
		dobs = claim.Claimant.ChildrenDOB
	}
	due := claim.Claimant.ExpectedDeliveryDate
	ent := h.Calculator.ForCycle(cycle.CycleStartDate, dobs, due)
	cycle.EligibilityStatus = result.Status
	cycle.ChildrenDOB = dobs
	cycle.ExpectedDueDate = due
	cycle.Entitlement = &ent
	cycle.TotalEntitlement = ent.TotalValue()
	cycle.Status = types.PaymentCycleStatusEligibilityDone
	cycle.UpdatedAt = now
	if err := h.Cycles.Update(ctx, cycle); err != nil {
		return messaging.StatusError, err
	}
	h.Logger.InfoContext(ctx, "entitlement determined",
		"claim_id", claim.ID,
		"payment_cycle_id", cycle.ID,
		"previous_payment_cycle_id", p.PreviousPaymentCycleID,
		"total_vouchers", ent.TotalVouchers(),
	)

	if claim.Status == types.ClaimStatusPendingExpiry {
		if err := h.reactivate(ctx, claim, now); err != nil {
			return messaging.StatusError, err
		}
	}

	err = h.Queue.Enqueue(ctx, types.PaymentCyclePayload{
		ClaimID:        claim.ID,
		PaymentCycleID: cycle.ID,
	}, types.MessageTypeRequestPayment)
	if err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

func (h *DetermineEntitlementHandler) markIneligible(ctx context.Context, cycle *types.PaymentCycle, status types.EligibilityStatus, now time.Time) error {
	cycle.EligibilityStatus = status
	cycle.Status = types.PaymentCycleStatusIneligible
	cycle.UpdatedAt = now
	return h.Cycles.Update(ctx, cycle)
}

func (h *DetermineEntitlementHandler) pendExpiry(ctx context.Context, claim *types.Claim, now time.Time) error {
	return h.transition(ctx, claim, now, types.ClaimStatusPendingExpiry, types.CardStatusPendingStop,
		types.ClaimActionPendingExpiry, types.EmailTypeClaimNoLongerEligible)
}

func (h *DetermineEntitlementHandler) expireClaim(ctx context.Context, claim *types.Claim, now time.Time) error {
	return h.transition(ctx, claim, now, types.ClaimStatusExpired, types.CardStatusScheduled,
		types.ClaimActionExpired, types.EmailTypePaymentStopped)
}

func (h *DetermineEntitlementHandler) reactivate(ctx context.Context, claim *types.Claim, now time.Time) error {
	if err := h.Claims.UpdateStatus(ctx, claim.ID, types.ClaimStatusActive, now); err != nil {
		return err
	}
	if err := h.Claims.UpdateCardStatus(ctx, claim.ID, types.CardStatusActive, now); err != nil {
		return err
	}
	return h.Queue.Enqueue(ctx, types.ReportClaimPayload{
		ClaimID:     claim.ID,
		ClaimAction: types.ClaimActionUpdated,
	}, types.MessageTypeReportClaim)
}

func (h *DetermineEntitlementHandler) transition(ctx context.Context, claim *types.Claim, now time.Time,
	status types.ClaimStatus, card types.CardStatus, action types.ClaimAction, email types.EmailType,
) error {
	if err := h.Claims.UpdateStatus(ctx, claim.ID, status, now); err != nil {
		return err
	}
	if claim.HasCard() {
		if err := h.Claims.UpdateCardStatus(ctx, claim.ID, card, now); err != nil {
			return err
		}
	}
	err := h.Queue.Enqueue(ctx, types.ReportClaimPayload{
		ClaimID:     claim.ID,
		ClaimAction: action,
	}, types.MessageTypeReportClaim)
	if err != nil {
		return err
	}
	return h.Queue.Enqueue(ctx, types.EmailPayload{
		ClaimID:   claim.ID,
		EmailType: email,
	}, types.MessageTypeSendEmail)
}
