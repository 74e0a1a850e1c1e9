package processors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Channel names used in NotificationError.
const (
	ChannelEmail  = "email"
	ChannelText   = "text"
	ChannelLetter = "letter"
)

// NotificationError is returned when a claimant notification cannot be
// sent. Its details land in the failure record.
type NotificationError struct {
	Channel  string
	Template string
	ClaimID  string
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to send %s %s for claim %s: %v", e.Channel, e.Template, e.ClaimID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// FailureDetails implements messaging.DetailedError.
func (e *NotificationError) FailureDetails() map[string]any {
	return map[string]any{
		"channel":  e.Channel,
		"template": e.Template,
		"claim_id": e.ClaimID,
	}
}

// PaymentError is returned when a deposit onto a card fails.
type PaymentError struct {
	PaymentCycleID string
	CardAccountID  string
	Amount         decimal.Decimal
	Err            error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("failed to deposit %s onto card %s for payment cycle %s: %v",
		e.Amount.StringFixed(2), e.CardAccountID, e.PaymentCycleID, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// FailureDetails implements messaging.DetailedError.
func (e *PaymentError) FailureDetails() map[string]any {
	return map[string]any{
		"payment_cycle_id": e.PaymentCycleID,
		"card_account_id":  e.CardAccountID,
		"payment_amount":   e.Amount.StringFixed(2),
	}
}
