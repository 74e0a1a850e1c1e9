package processors

import (
	"context"

	"benefitclaims/internal/external"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

// CreateNewCardHandler opens a card and activates the claim in one step.
// It predates the REQUEST_NEW_CARD / COMPLETE_NEW_CARD split and is kept
// for messages already queued.
type CreateNewCardHandler struct {
	*base
	messaging.NoCompensation
}

func (h *CreateNewCardHandler) SupportsType() types.MessageType {
	return types.MessageTypeCreateNewCard
}

func (h *CreateNewCardHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.ClaimPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, err := h.loader.Claim(ctx, p.ClaimID)
	if err != nil {
		return messaging.StatusError, err
	}

	cardAccountID := claim.CardAccountID
	if !claim.HasCard() {
		card, err := h.Cards.CreateCard(ctx, external.NewCardRequest(claim))
		if err != nil {
			return messaging.StatusError, err
		}
		cardAccountID = card.CardAccountID
	}

	now := h.now()
	if err := h.Claims.UpdateCardAccount(ctx, claim.ID, cardAccountID, types.CardStatusActive, now); err != nil {
		return messaging.StatusError, err
	}
	if err := h.Claims.UpdateStatus(ctx, claim.ID, types.ClaimStatusActive, now); err != nil {
		return messaging.StatusError, err
	}

	err = h.Queue.Enqueue(ctx, types.MakeFirstPaymentPayload{
		ClaimID:       claim.ID,
		CardAccountID: cardAccountID,
	}, types.MessageTypeMakeFirstPayment)
	if err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

// RequestNewCardHandler asks the card issuer for a card. The account id
// it returns is carried to COMPLETE_NEW_CARD.
type RequestNewCardHandler struct {
	*base
	messaging.NoCompensation
}

func (h *RequestNewCardHandler) SupportsType() types.MessageType {
	return types.MessageTypeRequestNewCard
}

func (h *RequestNewCardHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.ClaimPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, err := h.loader.Claim(ctx, p.ClaimID)
	if err != nil {
		return messaging.StatusError, err
	}

	cardAccountID := claim.CardAccountID
	if claim.HasCard() {
		h.Logger.InfoContext(ctx, "claim already has a card, skipping card request",
			"claim_id", claim.ID,
			"card_account_id", cardAccountID,
		)
	} else {
		card, err := h.Cards.CreateCard(ctx, external.NewCardRequest(claim))
		if err != nil {
			return messaging.StatusError, err
		}
		cardAccountID = card.CardAccountID
	}

	err = h.Queue.Enqueue(ctx, types.CompleteNewCardPayload{
		ClaimID:       claim.ID,
		CardAccountID: cardAccountID,
	}, types.MessageTypeCompleteNewCard)
	if err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

// CompleteNewCardHandler links the new card to the claim, activates it and
// opens the first payment cycle.
type CompleteNewCardHandler struct {
	*base
	messaging.NoCompensation
}

func (h *CompleteNewCardHandler) SupportsType() types.MessageType {
	return types.MessageTypeCompleteNewCard
}

func (h *CompleteNewCardHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.CompleteNewCardPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, err := h.loader.Claim(ctx, p.ClaimID)
	if err != nil {
		return messaging.StatusError, err
	}

	now := h.now()
	if err := h.Claims.UpdateCardAccount(ctx, claim.ID, p.CardAccountID, types.CardStatusActive, now); err != nil {
		return messaging.StatusError, err
	}
	if err := h.Claims.UpdateStatus(ctx, claim.ID, types.ClaimStatusActive, now); err != nil {
		return messaging.StatusError, err
	}

	cycle, err := h.createFirstCycle(ctx, claim)
	if err != nil {
		return messaging.StatusError, err
	}

	err = h.Queue.Enqueue(ctx, types.PaymentCyclePayload{
		ClaimID:        claim.ID,
		PaymentCycleID: cycle.ID,
	}, types.MessageTypeRequestPayment)
	if err != nil {
		return messaging.StatusError, err
	}
	err = h.Queue.Enqueue(ctx, types.EmailPayload{
		ClaimID:   claim.ID,
		EmailType: types.EmailTypeNewCard,
	}, types.MessageTypeSendEmail)
	if err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

// UpdateCardStatusHandler accepts card status notifications from the
// issuer. Nothing acts on them yet; they are logged and completed so the
// queue does not back up.
type UpdateCardStatusHandler struct {
	*base
	messaging.NoCompensation
}

func (h *UpdateCardStatusHandler) SupportsType() types.MessageType {
	return types.MessageTypeUpdateCardStatus
}

func (h *UpdateCardStatusHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.UpdateCardStatusPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	h.Logger.InfoContext(ctx, "card status update received, no action taken",
		"claim_id", p.ClaimID,
		"card_status", string(p.CardStatus),
	)
	return messaging.StatusCompleted, nil
}

// createFirstCycle opens a cycle starting today with the entitlement the
// claimant qualified with when the claim was made.
func (b *base) createFirstCycle(ctx context.Context, claim *types.Claim) (*types.PaymentCycle, error) {
	now := b.now()
	start := startOfDay(now)
	ent := b.Calculator.ForCycle(start, claim.Claimant.ChildrenDOB, claim.Claimant.ExpectedDeliveryDate)

	cycle := &types.PaymentCycle{
		ID:                b.NewID(),
		ClaimID:           claim.ID,
		CycleStartDate:    start,
		CycleEndDate:      b.Calculator.CycleEnd(start),
		Status:            types.PaymentCycleStatusEligibilityDone,
		EligibilityStatus: types.EligibilityEligible,
		Entitlement:       &ent,
		ChildrenDOB:       claim.Claimant.ChildrenDOB,
		ExpectedDueDate:   claim.Claimant.ExpectedDeliveryDate,
		TotalEntitlement:  ent.TotalValue(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := b.Cycles.Create(ctx, cycle); err != nil {
		return nil, err
	}
	return cycle, nil
}
