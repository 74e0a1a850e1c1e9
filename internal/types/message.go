package types

import (
	"encoding/json"
	"time"
)

// MessageType selects the handler responsible for a queued message.
type MessageType string

const (
	MessageTypeCreateNewCard              MessageType = "CREATE_NEW_CARD"
	MessageTypeRequestNewCard             MessageType = "REQUEST_NEW_CARD"
	MessageTypeCompleteNewCard            MessageType = "COMPLETE_NEW_CARD"
	MessageTypeMakeFirstPayment           MessageType = "MAKE_FIRST_PAYMENT"
	MessageTypeMakePayment                MessageType = "MAKE_PAYMENT"
	MessageTypeRequestPayment             MessageType = "REQUEST_PAYMENT"
	MessageTypeCompletePayment            MessageType = "COMPLETE_PAYMENT"
	MessageTypeAdditionalPregnancyPayment MessageType = "ADDITIONAL_PREGNANCY_PAYMENT"
	MessageTypeDetermineEntitlement       MessageType = "DETERMINE_ENTITLEMENT"
	MessageTypeSendEmail                  MessageType = "SEND_EMAIL"
	MessageTypeSendText                   MessageType = "SEND_TEXT"
	MessageTypeSendLetter                 MessageType = "SEND_LETTER"
	MessageTypeReportClaim                MessageType = "REPORT_CLAIM"
	MessageTypeReportPayment              MessageType = "REPORT_PAYMENT"
	MessageTypeUpdateCardStatus           MessageType = "UPDATE_CARD_STATUS"
)

var allMessageTypes = []MessageType{
	MessageTypeCreateNewCard,
	MessageTypeRequestNewCard,
	MessageTypeCompleteNewCard,
	MessageTypeMakeFirstPayment,
	MessageTypeMakePayment,
	MessageTypeRequestPayment,
	MessageTypeCompletePayment,
	MessageTypeAdditionalPregnancyPayment,
	MessageTypeDetermineEntitlement,
	MessageTypeSendEmail,
	MessageTypeSendText,
	MessageTypeSendLetter,
	MessageTypeReportClaim,
	MessageTypeReportPayment,
	MessageTypeUpdateCardStatus,
}

// AllMessageTypes returns every declared message type in declaration order.
// The returned slice is a copy and may be modified by the caller.
func AllMessageTypes() []MessageType {
	out := make([]MessageType, len(allMessageTypes))
	copy(out, allMessageTypes)
	return out
}

// Valid reports whether t is one of the declared message types.
func (t MessageType) Valid() bool {
	for _, known := range allMessageTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseMessageType converts a raw string (e.g. from a URL or CLI flag)
// into a MessageType, rejecting anything undeclared.
func ParseMessageType(s string) (MessageType, error) {
	t := MessageType(s)
	if !t.Valid() {
		return "", NewAppError(ErrCodeValidationMessageType, "unknown message type "+s, nil)
	}
	return t, nil
}

// Message is the durable unit of queued work.
//
// A message with a row in the store is pending. Completion deletes the row.
// Failures are represented by an incremented DeliveryCount and a pushed-out
// ProcessAfter, never by a status column.
type Message struct {
	ID               string          `json:"id" db:"id"`
	Type             MessageType     `json:"type" db:"message_type"`
	Payload          json.RawMessage `json:"payload" db:"payload"`
	CreatedTimestamp time.Time       `json:"created_timestamp" db:"created_timestamp"`
	ProcessAfter     time.Time       `json:"process_after" db:"process_after"`
	DeliveryCount    int             `json:"delivery_count" db:"delivery_count"`
}

// Age returns how long the message has existed at the given instant.
func (m *Message) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedTimestamp)
}

// DeadLetter is a message removed from the live queue after exceeding the
// configured delivery ceiling.
type DeadLetter struct {
	Message
	LastError      string    `json:"last_error" db:"last_error"`
	DeadLetteredAt time.Time `json:"dead_lettered_at" db:"dead_lettered_at"`
}

// FailureRecord is the persisted form of a failure event, kept for audit.
type FailureRecord struct {
	ID            string      `json:"id" db:"id"`
	MessageID     string      `json:"message_id" db:"message_id"`
	MessageType   MessageType `json:"message_type" db:"message_type"`
	DeliveryCount int         `json:"delivery_count" db:"delivery_count"`
	Description   string      `json:"description" db:"description"`
	ErrorText     string      `json:"error" db:"error_text"`
	Details       Details     `json:"details,omitempty" db:"details"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}
