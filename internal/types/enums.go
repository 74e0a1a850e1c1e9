package types

// ClaimStatus is the lifecycle state of a benefit claim.
type ClaimStatus string

const (
	ClaimStatusNew           ClaimStatus = "NEW"
	ClaimStatusPending       ClaimStatus = "PENDING"
	ClaimStatusActive        ClaimStatus = "ACTIVE"
	ClaimStatusPendingExpiry ClaimStatus = "PENDING_EXPIRY"
	ClaimStatusExpired       ClaimStatus = "EXPIRED"
	ClaimStatusError         ClaimStatus = "ERROR"
)

// CardStatus mirrors the card issuer's view of a claimant's card.
type CardStatus string

const (
	CardStatusPending     CardStatus = "PENDING"
	CardStatusActive      CardStatus = "ACTIVE"
	CardStatusPendingStop CardStatus = "PENDING_CANCELLATION"
	CardStatusScheduled   CardStatus = "SCHEDULED_FOR_CANCELLATION"
	CardStatusCancelled   CardStatus = "CANCELLED"
)

// PaymentCycleStatus tracks a payment cycle through entitlement and payment.
type PaymentCycleStatus string

const (
	PaymentCycleStatusNew              PaymentCycleStatus = "NEW"
	PaymentCycleStatusEligibilityDone  PaymentCycleStatus = "ELIGIBILITY_DETERMINED"
	PaymentCycleStatusPaymentRequested PaymentCycleStatus = "PAYMENT_REQUESTED"
	PaymentCycleStatusFullPaymentMade  PaymentCycleStatus = "FULL_PAYMENT_MADE"
	PaymentCycleStatusPartialPayment   PaymentCycleStatus = "PARTIAL_PAYMENT_MADE"
	PaymentCycleStatusBalanceTooHigh   PaymentCycleStatus = "BALANCE_TOO_HIGH_FOR_PAYMENT"
	PaymentCycleStatusPaymentFailed    PaymentCycleStatus = "PAYMENT_FAILED"
	PaymentCycleStatusIneligible       PaymentCycleStatus = "INELIGIBLE"
)

// PaymentStatus is the outcome recorded for one payment attempt.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// EligibilityStatus is the verdict returned by the eligibility service.
type EligibilityStatus string

const (
	EligibilityEligible   EligibilityStatus = "ELIGIBLE"
	EligibilityIneligible EligibilityStatus = "INELIGIBLE"
	EligibilityNoMatch    EligibilityStatus = "NO_MATCH"
	EligibilityPending    EligibilityStatus = "PENDING"
	EligibilityDuplicate  EligibilityStatus = "DUPLICATE"
)

// EmailType selects the template for a SEND_EMAIL message.
type EmailType string

const (
	EmailTypeNewCard               EmailType = "NEW_CARD"
	EmailTypePayment               EmailType = "PAYMENT"
	EmailTypePregnancyPayment      EmailType = "PREGNANCY_PAYMENT"
	EmailTypeClaimNoLongerEligible EmailType = "CLAIM_NO_LONGER_ELIGIBLE"
	EmailTypePendingExpiry         EmailType = "PENDING_EXPIRY"
	EmailTypePaymentStopped        EmailType = "PAYMENT_STOPPED"
)

// TextType selects the template for a SEND_TEXT message.
type TextType string

const (
	TextTypeNewCard TextType = "NEW_CARD"
	TextTypePayment TextType = "PAYMENT"
	TextTypeExpired TextType = "CLAIM_EXPIRED"
)

// LetterType selects the template for a SEND_LETTER message.
type LetterType string

const (
	LetterTypeUpdateYourAddress  LetterType = "UPDATE_YOUR_ADDRESS"
	LetterTypeApplicationSuccess LetterType = "APPLICATION_SUCCESS_CHILDREN_MISMATCH"
)

// ClaimAction labels a REPORT_CLAIM event for the MI feed.
type ClaimAction string

const (
	ClaimActionNew           ClaimAction = "NEW"
	ClaimActionUpdated       ClaimAction = "UPDATED"
	ClaimActionRejected      ClaimAction = "REJECTED"
	ClaimActionExpired       ClaimAction = "EXPIRED"
	ClaimActionPendingExpiry ClaimAction = "PENDING_EXPIRY"
)

// PaymentAction labels a REPORT_PAYMENT event for the MI feed.
type PaymentAction string

const (
	PaymentActionInitial  PaymentAction = "INITIAL_PAYMENT"
	PaymentActionSchedule PaymentAction = "SCHEDULED_PAYMENT"
	PaymentActionTopUp    PaymentAction = "TOP_UP_PAYMENT"
)
