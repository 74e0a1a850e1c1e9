package types

import (
	"github.com/shopspring/decimal"
)

// Message payloads. Each type's payload is serialized as JSON into
// Message.Payload and decoded only by that type's handler.

// ClaimPayload references a claim and nothing else.
// Used by CREATE_NEW_CARD and REQUEST_NEW_CARD.
type ClaimPayload struct {
	ClaimID string `json:"claim_id" validate:"required"`
}

// CompleteNewCardPayload carries the card account id returned by the issuer.
type CompleteNewCardPayload struct {
	ClaimID       string `json:"claim_id" validate:"required"`
	CardAccountID string `json:"card_account_id" validate:"required"`
}

// MakeFirstPaymentPayload starts the first payment cycle for a claim.
type MakeFirstPaymentPayload struct {
	ClaimID       string `json:"claim_id" validate:"required"`
	CardAccountID string `json:"card_account_id" validate:"required"`
}

// PaymentCyclePayload references an existing payment cycle.
// Used by MAKE_PAYMENT, REQUEST_PAYMENT and ADDITIONAL_PREGNANCY_PAYMENT.
type PaymentCyclePayload struct {
	ClaimID        string `json:"claim_id" validate:"required"`
	PaymentCycleID string `json:"payment_cycle_id" validate:"required"`
}

// CompletePaymentPayload carries the amount agreed by REQUEST_PAYMENT.
type CompletePaymentPayload struct {
	ClaimID        string          `json:"claim_id" validate:"required"`
	PaymentCycleID string          `json:"payment_cycle_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
}

// DetermineEntitlementPayload asks for eligibility and entitlement to be
// (re)established for the current cycle.
type DetermineEntitlementPayload struct {
	ClaimID                string `json:"claim_id" validate:"required"`
	PreviousPaymentCycleID string `json:"previous_payment_cycle_id,omitempty"`
	CurrentPaymentCycleID  string `json:"current_payment_cycle_id" validate:"required"`
}

// EmailPayload requests a templated email to the claimant.
type EmailPayload struct {
	ClaimID         string            `json:"claim_id" validate:"required"`
	EmailType       EmailType         `json:"email_type" validate:"required"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
}

// TextPayload requests a templated SMS to the claimant.
type TextPayload struct {
	ClaimID         string            `json:"claim_id" validate:"required"`
	TextType        TextType          `json:"text_type" validate:"required"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
}

// LetterPayload requests a templated letter to the claimant's address.
type LetterPayload struct {
	ClaimID         string            `json:"claim_id" validate:"required"`
	LetterType      LetterType        `json:"letter_type" validate:"required"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
}

// ReportClaimPayload emits a claim event to the MI feed.
type ReportClaimPayload struct {
	ClaimID     string      `json:"claim_id" validate:"required"`
	ClaimAction ClaimAction `json:"claim_action" validate:"required"`
}

// ReportPaymentPayload emits a payment event to the MI feed.
type ReportPaymentPayload struct {
	ClaimID        string          `json:"claim_id" validate:"required"`
	PaymentCycleID string          `json:"payment_cycle_id" validate:"required"`
	PaymentAction  PaymentAction   `json:"payment_action" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
}

// UpdateCardStatusPayload records a card status change reported by the issuer.
type UpdateCardStatusPayload struct {
	ClaimID       string     `json:"claim_id" validate:"required"`
	CardAccountID string     `json:"card_account_id,omitempty"`
	CardStatus    CardStatus `json:"card_status" validate:"required"`
}

// NewPayload returns a pointer to an empty payload struct for the given
// message type, suitable for json.Unmarshal and struct validation. It
// returns nil for undeclared types.
func NewPayload(t MessageType) any {
	switch t {
	case MessageTypeCreateNewCard, MessageTypeRequestNewCard:
		return &ClaimPayload{}
	case MessageTypeCompleteNewCard:
		return &CompleteNewCardPayload{}
	case MessageTypeMakeFirstPayment:
		return &MakeFirstPaymentPayload{}
	case MessageTypeMakePayment, MessageTypeRequestPayment, MessageTypeAdditionalPregnancyPayment:
		return &PaymentCyclePayload{}
	case MessageTypeCompletePayment:
		return &CompletePaymentPayload{}
	case MessageTypeDetermineEntitlement:
		return &DetermineEntitlementPayload{}
	case MessageTypeSendEmail:
		return &EmailPayload{}
	case MessageTypeSendText:
		return &TextPayload{}
	case MessageTypeSendLetter:
		return &LetterPayload{}
	case MessageTypeReportClaim:
		return &ReportClaimPayload{}
	case MessageTypeReportPayment:
		return &ReportPaymentPayload{}
	case MessageTypeUpdateCardStatus:
		return &UpdateCardStatusPayload{}
	default:
		return nil
	}
}
