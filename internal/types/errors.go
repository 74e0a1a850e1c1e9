package types

import (
	"maps"
	"net/http"
	"strings"
)

// ErrorCode is the stable machine-readable part of an AppError. The prefix
// decides the HTTP status.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationMessageType    ErrorCode = "validation_unknown_message_type"
	ErrCodeValidationPayload        ErrorCode = "validation_invalid_payload"
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationBatchSize      ErrorCode = "validation_batch_size_invalid"
	ErrCodeValidationAmount         ErrorCode = "validation_invalid_amount"
	ErrCodeValidationMessageDecoded ErrorCode = "validation_payload_undecodable"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Not Found (404)
	ErrCodeNotFoundMessage      ErrorCode = "not_found_message"
	ErrCodeNotFoundClaim        ErrorCode = "not_found_claim"
	ErrCodeNotFoundPaymentCycle ErrorCode = "not_found_payment_cycle"
	ErrCodeNotFoundHandler      ErrorCode = "not_found_message_handler"

	// Conflict (409)
	ErrCodeConflictDuplicateHandler ErrorCode = "conflict_duplicate_message_handler"
	ErrCodeConflictLockHeld         ErrorCode = "conflict_lock_held"
	ErrCodeConflictCycleState       ErrorCode = "conflict_payment_cycle_state"
	ErrCodeConflictStaleMessage     ErrorCode = "conflict_stale_message"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeInternalHandlerPanic  ErrorCode = "internal_handler_panic"
	ErrCodeUpstreamCardIssuer    ErrorCode = "upstream_card_issuer_unavailable"
	ErrCodeUpstreamEligibility   ErrorCode = "upstream_eligibility_unavailable"
	ErrCodeUpstreamNotify        ErrorCode = "upstream_notify_unavailable"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamReporting     ErrorCode = "upstream_reporting_unavailable"
	ErrCodeUpstreamArchive       ErrorCode = "upstream_archive_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamRejected      ErrorCode = "upstream_request_rejected"

	// Payment-specific
	ErrCodePaymentDeclined ErrorCode = "payment_declined"
)

var statusByPrefix = []struct {
	prefix string
	status int
}{
	{"validation_", http.StatusBadRequest},
	{"auth_", http.StatusUnauthorized},
	{"not_found_", http.StatusNotFound},
	{"conflict_", http.StatusConflict},
	{"upstream_", http.StatusBadGateway},
}

// HTTPStatus is the ops API status for c. Unknown codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodePaymentDeclined:
		return http.StatusPaymentRequired
	case ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests
	}
	for _, p := range statusByPrefix {
		if strings.HasPrefix(string(c), p.prefix) {
			return p.status
		}
	}
	return http.StatusInternalServerError
}

// AppError carries a stable code alongside the human message. Repositories,
// clients and handlers return it so that the ops API and the failure audit
// trail agree on what went wrong.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy with details merged over the existing ones.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	out := *e
	out.Details = merged
	return &out
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}
