package processors

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"benefitclaims/internal/entitlement"
	"benefitclaims/internal/external"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

// MakeFirstPaymentHandler opens the first payment cycle for a new card and
// pays its full entitlement.
type MakeFirstPaymentHandler struct {
	*base
	messaging.NoCompensation
}

func (h *MakeFirstPaymentHandler) SupportsType() types.MessageType {
	return types.MessageTypeMakeFirstPayment
}

func (h *MakeFirstPaymentHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.MakeFirstPaymentPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, err := h.loader.Claim(ctx, p.ClaimID)
	if err != nil {
		return messaging.StatusError, err
	}
	cycle, err := h.createFirstCycle(ctx, claim)
	if err != nil {
		return messaging.StatusError, err
	}

	amount := cycle.TotalEntitlement
	if _, err := h.deposit(ctx, msg, cycle, p.CardAccountID, amount); err != nil {
		return messaging.StatusError, err
	}
	cycle.Status = types.PaymentCycleStatusFullPaymentMade
	cycle.PaymentAmount = amount
	cycle.UpdatedAt = h.now()
	if err := h.Cycles.Update(ctx, cycle); err != nil {
		return messaging.StatusError, err
	}

	if err := h.enqueuePaid(ctx, cycle, types.PaymentActionInitial, amount, types.EmailTypePayment); err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

// MakePaymentHandler weighs a cycle's entitlement against the card balance
// and deposits in one step. It predates the REQUEST_PAYMENT /
// COMPLETE_PAYMENT split and is kept for messages already queued.
type MakePaymentHandler struct {
	*base
}

func (h *MakePaymentHandler) SupportsType() types.MessageType {
	return types.MessageTypeMakePayment
}

func (h *MakePaymentHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.PaymentCyclePayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, cycle, err := h.loader.ClaimAndCycle(ctx, p.ClaimID, p.PaymentCycleID)
	if err != nil {
		return messaging.StatusError, err
	}
	if paymentSettled(cycle.Status) {
		h.logSettled(ctx, cycle)
		return messaging.StatusCompleted, nil
	}

	decision, err := h.weighBalance(ctx, claim, cycle)
	if err != nil {
		return messaging.StatusError, err
	}
	if decision.Amount.IsPositive() {
		if _, err := h.deposit(ctx, msg, cycle, claim.CardAccountID, decision.Amount); err != nil {
			return messaging.StatusError, err
		}
	}
	cycle.Status = decision.Status
	cycle.PaymentAmount = decision.Amount
	cycle.UpdatedAt = h.now()
	if err := h.Cycles.Update(ctx, cycle); err != nil {
		return messaging.StatusError, err
	}

	if decision.Amount.IsPositive() {
		if err := h.enqueuePaid(ctx, cycle, types.PaymentActionSchedule, decision.Amount, types.EmailTypePayment); err != nil {
			return messaging.StatusError, err
		}
	}
	return messaging.StatusCompleted, nil
}

// ProcessFailedMessage records a FAILED payment for the cycle so the
// attempt is visible to caseworkers.
func (h *MakePaymentHandler) ProcessFailedMessage(ctx context.Context, msg *types.Message, event *messaging.FailureEvent) error {
	p, err := messaging.Decode[types.PaymentCyclePayload](msg)
	if err != nil {
		return err
	}
	claim, cycle, err := h.loader.ClaimAndCycle(ctx, p.ClaimID, p.PaymentCycleID)
	if err != nil {
		return err
	}
	amount := cycle.PaymentAmount
	if !amount.IsPositive() {
		amount = cycle.TotalEntitlement
	}
	_, err = h.recordFailedPayment(ctx, cycle, claim.CardAccountID, amount, event)
	return err
}

// RequestPaymentHandler decides how much to pay for a cycle and hands the
// amount to COMPLETE_PAYMENT.
type RequestPaymentHandler struct {
	*base
	messaging.NoCompensation
}

func (h *RequestPaymentHandler) SupportsType() types.MessageType {
	return types.MessageTypeRequestPayment
}

func (h *RequestPaymentHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.PaymentCyclePayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, cycle, err := h.loader.ClaimAndCycle(ctx, p.ClaimID, p.PaymentCycleID)
	if err != nil {
		return messaging.StatusError, err
	}

	switch {
	case cycle.Status == types.PaymentCycleStatusPaymentRequested || paymentSettled(cycle.Status):
		h.logSettled(ctx, cycle)
		return messaging.StatusCompleted, nil
	case cycle.Status != types.PaymentCycleStatusEligibilityDone && cycle.Status != types.PaymentCycleStatusPaymentFailed:
		return messaging.StatusError, cycleStateError(cycle, types.PaymentCycleStatusEligibilityDone)
	}

	decision, err := h.weighBalance(ctx, claim, cycle)
	if err != nil {
		return messaging.StatusError, err
	}
	cycle.PaymentAmount = decision.Amount
	cycle.UpdatedAt = h.now()
	if !decision.Amount.IsPositive() {
		cycle.Status = decision.Status
		h.Logger.InfoContext(ctx, "no payment due for cycle",
			"payment_cycle_id", cycle.ID,
			"payment_cycle_status", string(cycle.Status),
			"card_balance", cycle.CardBalance.StringFixed(2),
		)
		if err := h.Cycles.Update(ctx, cycle); err != nil {
			return messaging.StatusError, err
		}
		return messaging.StatusCompleted, nil
	}

	cycle.Status = types.PaymentCycleStatusPaymentRequested
	if err := h.Cycles.Update(ctx, cycle); err != nil {
		return messaging.StatusError, err
	}
	err = h.Queue.Enqueue(ctx, types.CompletePaymentPayload{
		ClaimID:        claim.ID,
		PaymentCycleID: cycle.ID,
		Amount:         decision.Amount,
	}, types.MessageTypeCompletePayment)
	if err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

// CompletePaymentHandler deposits the amount agreed by REQUEST_PAYMENT.
type CompletePaymentHandler struct {
	*base
}

func (h *CompletePaymentHandler) SupportsType() types.MessageType {
	return types.MessageTypeCompletePayment
}

func (h *CompletePaymentHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.CompletePaymentPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	if !p.Amount.IsPositive() {
		return messaging.StatusError, types.NewAppErrorWithDetails(types.ErrCodeValidationAmount,
			"payment amount must be positive", nil, map[string]any{"amount": p.Amount.String()})
	}
	claim, cycle, err := h.loader.ClaimAndCycle(ctx, p.ClaimID, p.PaymentCycleID)
	if err != nil {
		return messaging.StatusError, err
	}

	// PAYMENT_FAILED is left behind by an earlier failed delivery of this
	// message; the retry deposits again.
	switch {
	case paymentSettled(cycle.Status):
		h.logSettled(ctx, cycle)
		return messaging.StatusCompleted, nil
	case cycle.Status != types.PaymentCycleStatusPaymentRequested && cycle.Status != types.PaymentCycleStatusPaymentFailed:
		return messaging.StatusError, cycleStateError(cycle, types.PaymentCycleStatusPaymentRequested)
	}

	if _, err := h.deposit(ctx, msg, cycle, claim.CardAccountID, p.Amount); err != nil {
		return messaging.StatusError, err
	}
	cycle.Status = types.PaymentCycleStatusFullPaymentMade
	if p.Amount.LessThan(cycle.TotalEntitlement) {
		cycle.Status = types.PaymentCycleStatusPartialPayment
	}
	cycle.PaymentAmount = p.Amount
	cycle.UpdatedAt = h.now()
	if err := h.Cycles.Update(ctx, cycle); err != nil {
		return messaging.StatusError, err
	}

	if err := h.enqueuePaid(ctx, cycle, types.PaymentActionSchedule, p.Amount, types.EmailTypePayment); err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

// ProcessFailedMessage records a FAILED payment and marks the cycle
// PAYMENT_FAILED.
func (h *CompletePaymentHandler) ProcessFailedMessage(ctx context.Context, msg *types.Message, event *messaging.FailureEvent) error {
	p, err := messaging.Decode[types.CompletePaymentPayload](msg)
	if err != nil {
		return err
	}
	claim, cycle, err := h.loader.ClaimAndCycle(ctx, p.ClaimID, p.PaymentCycleID)
	if err != nil {
		return err
	}
	if paymentSettled(cycle.Status) {
		return nil
	}
	if _, err := h.recordFailedPayment(ctx, cycle, claim.CardAccountID, p.Amount, event); err != nil {
		return err
	}
	cycle.Status = types.PaymentCycleStatusPaymentFailed
	cycle.UpdatedAt = h.now()
	return h.Cycles.Update(ctx, cycle)
}

// AdditionalPregnancyPaymentHandler tops up a cycle that was calculated
// before the claimant reported a pregnancy.
type AdditionalPregnancyPaymentHandler struct {
	*base
	messaging.NoCompensation
}

func (h *AdditionalPregnancyPaymentHandler) SupportsType() types.MessageType {
	return types.MessageTypeAdditionalPregnancyPayment
}

func (h *AdditionalPregnancyPaymentHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.PaymentCyclePayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, cycle, err := h.loader.ClaimAndCycle(ctx, p.ClaimID, p.PaymentCycleID)
	if err != nil {
		return messaging.StatusError, err
	}

	due := claim.Claimant.ExpectedDeliveryDate
	if cycle.HasPregnancyVouchers() || due == nil {
		h.Logger.InfoContext(ctx, "no pregnancy top-up due",
			"payment_cycle_id", cycle.ID,
			"has_pregnancy_vouchers", cycle.HasPregnancyVouchers(),
		)
		return messaging.StatusCompleted, nil
	}
	amount := h.Calculator.PregnancyTopUp(cycle, *due)
	if !amount.IsPositive() {
		return messaging.StatusCompleted, nil
	}

	if _, err := h.deposit(ctx, msg, cycle, claim.CardAccountID, amount); err != nil {
		return messaging.StatusError, err
	}
	ent := h.Calculator.ForCycle(cycle.CycleStartDate, cycle.ChildrenDOB, due)
	cycle.Entitlement = &ent
	cycle.ExpectedDueDate = due
	cycle.TotalEntitlement = ent.TotalValue()
	cycle.PaymentAmount = cycle.PaymentAmount.Add(amount)
	cycle.UpdatedAt = h.now()
	if err := h.Cycles.Update(ctx, cycle); err != nil {
		return messaging.StatusError, err
	}

	if err := h.enqueuePaid(ctx, cycle, types.PaymentActionTopUp, amount, types.EmailTypePregnancyPayment); err != nil {
		return messaging.StatusError, err
	}
	return messaging.StatusCompleted, nil
}

// weighBalance fetches the card balance, stores it on the cycle and decides
// the payment.
func (b *base) weighBalance(ctx context.Context, claim *types.Claim, cycle *types.PaymentCycle) (entitlement.Decision, error) {
	balance, err := b.Cards.GetBalance(ctx, claim.CardAccountID)
	if err != nil {
		return entitlement.Decision{}, err
	}
	at := b.now()
	cycle.CardBalance = balance.AvailableBalance
	cycle.CardBalanceAt = &at
	return b.Calculator.PaymentFor(cycle.TotalEntitlement, balance.AvailableBalance), nil
}

// deposit pays amount onto the card and records a SUCCESS payment. The
// message id is the deposit reference, so a redelivered message cannot pay
// twice at an issuer that deduplicates references.
func (b *base) deposit(ctx context.Context, msg *types.Message, cycle *types.PaymentCycle, cardAccountID string, amount decimal.Decimal) (*types.Payment, error) {
	if cardAccountID == "" {
		return nil, &PaymentError{
			PaymentCycleID: cycle.ID,
			Amount:         amount,
			Err:            types.NewAppError(types.ErrCodeValidationPayload, "claim has no card account", nil),
		}
	}
	resp, err := b.Cards.Deposit(ctx, external.DepositRequest{
		CardAccountID: cardAccountID,
		Amount:        amount,
		Reference:     msg.ID,
	})
	if err != nil {
		return nil, &PaymentError{PaymentCycleID: cycle.ID, CardAccountID: cardAccountID, Amount: amount, Err: err}
	}

	payment := &types.Payment{
		ID:               b.NewID(),
		ClaimID:          cycle.ClaimID,
		PaymentCycleID:   cycle.ID,
		CardAccountID:    cardAccountID,
		Amount:           amount,
		PaymentReference: resp.ReferenceID,
		Status:           types.PaymentStatusSuccess,
		PaymentTimestamp: b.now(),
	}
	if err := b.Payments.Insert(ctx, payment); err != nil {
		return nil, err
	}
	b.Logger.InfoContext(ctx, "payment made",
		"claim_id", cycle.ClaimID,
		"payment_cycle_id", cycle.ID,
		"payment_amount", amount.StringFixed(2),
	)
	return payment, nil
}

func (b *base) recordFailedPayment(ctx context.Context, cycle *types.PaymentCycle, cardAccountID string, amount decimal.Decimal, event *messaging.FailureEvent) (*types.Payment, error) {
	payment := &types.Payment{
		ID:               b.NewID(),
		ClaimID:          cycle.ClaimID,
		PaymentCycleID:   cycle.ID,
		CardAccountID:    cardAccountID,
		Amount:           amount,
		Status:           types.PaymentStatusFailed,
		FailureReason:    event.ErrorText(),
		PaymentTimestamp: b.now(),
	}
	if err := b.Payments.Insert(ctx, payment); err != nil {
		return nil, err
	}
	event.WithDetail("failed_payment_id", payment.ID)
	return payment, nil
}

// enqueuePaid queues the MI report and claimant email for a deposit.
func (b *base) enqueuePaid(ctx context.Context, cycle *types.PaymentCycle, action types.PaymentAction, amount decimal.Decimal, email types.EmailType) error {
	err := b.Queue.Enqueue(ctx, types.ReportPaymentPayload{
		ClaimID:        cycle.ClaimID,
		PaymentCycleID: cycle.ID,
		PaymentAction:  action,
		Amount:         amount,
	}, types.MessageTypeReportPayment)
	if err != nil {
		return err
	}
	return b.Queue.Enqueue(ctx, types.EmailPayload{
		ClaimID:   cycle.ClaimID,
		EmailType: email,
		Personalisation: map[string]string{
			"payment_amount":   amount.StringFixed(2),
			"cycle_start_date": cycle.CycleStartDate.Format("2 January 2006"),
			"cycle_end_date":   cycle.CycleEndDate.Format("2 January 2006"),
		},
	}, types.MessageTypeSendEmail)
}

func (b *base) logSettled(ctx context.Context, cycle *types.PaymentCycle) {
	b.Logger.InfoContext(ctx, "payment already handled for cycle, skipping",
		"payment_cycle_id", cycle.ID,
		"payment_cycle_status", string(cycle.Status),
	)
}

// paymentSettled reports whether a cycle has already had its payment
// decided and made.
func paymentSettled(s types.PaymentCycleStatus) bool {
	switch s {
	case types.PaymentCycleStatusFullPaymentMade,
		types.PaymentCycleStatusPartialPayment,
		types.PaymentCycleStatusBalanceTooHigh:
		return true
	}
	return false
}

func cycleStateError(cycle *types.PaymentCycle, want types.PaymentCycleStatus) error {
	return types.NewAppErrorWithDetails(types.ErrCodeConflictCycleState,
		fmt.Sprintf("payment cycle is %s, expected %s", cycle.Status, want), nil,
		map[string]any{"payment_cycle_id": cycle.ID})
}
