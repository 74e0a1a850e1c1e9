package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claimant holds the personal details captured when a claim is made.
type Claimant struct {
	FirstName            string      `json:"first_name" db:"first_name"`
	LastName             string      `json:"last_name" db:"last_name"`
	NINO                 string      `json:"nino" db:"nino"`
	DateOfBirth          time.Time   `json:"date_of_birth" db:"date_of_birth"`
	EmailAddress         string      `json:"email_address,omitempty" db:"email_address"`
	PhoneNumber          string      `json:"phone_number,omitempty" db:"phone_number"`
	AddressLine1         string      `json:"address_line_1" db:"address_line_1"`
	AddressLine2         string      `json:"address_line_2,omitempty" db:"address_line_2"`
	TownOrCity           string      `json:"town_or_city" db:"town_or_city"`
	Postcode             string      `json:"postcode" db:"postcode"`
	ExpectedDeliveryDate *time.Time  `json:"expected_delivery_date,omitempty" db:"expected_delivery_date"`
	ChildrenDOB          []time.Time `json:"children_dob,omitempty" db:"children_dob"`
}

// FullName returns the claimant's display name.
func (c Claimant) FullName() string {
	return c.FirstName + " " + c.LastName
}

// IsPregnant reports whether the claimant has a due date that is still
// relevant at the given instant. A grace period after the due date allows
// for late births before the pregnancy voucher stops.
func (c Claimant) IsPregnant(at time.Time, grace time.Duration) bool {
	if c.ExpectedDeliveryDate == nil {
		return false
	}
	return !at.After(c.ExpectedDeliveryDate.Add(grace))
}

// Claim is a single benefit claim and its card linkage.
type Claim struct {
	ID                  string      `json:"id" db:"id"`
	Claimant            Claimant    `json:"claimant" db:"-"`
	Status              ClaimStatus `json:"claim_status" db:"claim_status"`
	StatusTimestamp     time.Time   `json:"claim_status_timestamp" db:"claim_status_timestamp"`
	CardAccountID       string      `json:"card_account_id,omitempty" db:"card_account_id"`
	CardStatus          CardStatus  `json:"card_status,omitempty" db:"card_status"`
	CardStatusTimestamp *time.Time  `json:"card_status_timestamp,omitempty" db:"card_status_timestamp"`
	EligibilityOverride bool        `json:"eligibility_override" db:"eligibility_override"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// HasCard reports whether a card account has been issued for the claim.
func (c *Claim) HasCard() bool {
	return c.CardAccountID != ""
}

// VoucherEntitlement is the number of vouchers a claimant is entitled to in
// a single week, broken down by reason.
type VoucherEntitlement struct {
	WeekStart                            time.Time       `json:"week_start"`
	VouchersForChildrenUnderOne          int             `json:"vouchers_for_children_under_one"`
	VouchersForChildrenBetweenOneAndFour int             `json:"vouchers_for_children_between_one_and_four"`
	VouchersForPregnancy                 int             `json:"vouchers_for_pregnancy"`
	SingleVoucherValue                   decimal.Decimal `json:"single_voucher_value"`
}

// TotalVouchers is the sum of vouchers across all reasons.
func (v VoucherEntitlement) TotalVouchers() int {
	return v.VouchersForChildrenUnderOne + v.VouchersForChildrenBetweenOneAndFour + v.VouchersForPregnancy
}

// Value is the monetary worth of the week's vouchers.
func (v VoucherEntitlement) Value() decimal.Decimal {
	return v.SingleVoucherValue.Mul(decimal.NewFromInt(int64(v.TotalVouchers())))
}

// CycleEntitlement aggregates weekly entitlements over one payment cycle.
// Stored as JSONB on the payment cycle row.
type CycleEntitlement struct {
	Weeks              []VoucherEntitlement `json:"weeks"`
	SingleVoucherValue decimal.Decimal      `json:"single_voucher_value"`
}

// TotalVouchers is the number of vouchers across every week of the cycle.
func (e CycleEntitlement) TotalVouchers() int {
	total := 0
	for _, w := range e.Weeks {
		total += w.TotalVouchers()
	}
	return total
}

// PregnancyVouchers is the number of vouchers awarded for pregnancy.
func (e CycleEntitlement) PregnancyVouchers() int {
	total := 0
	for _, w := range e.Weeks {
		total += w.VouchersForPregnancy
	}
	return total
}

// TotalValue is the cycle's full entitlement in pounds.
func (e CycleEntitlement) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, w := range e.Weeks {
		total = total.Add(w.Value())
	}
	return total
}

// PaymentCycle is one period (typically four weeks) of entitlement for a claim.
type PaymentCycle struct {
	ID                string             `json:"id" db:"id"`
	ClaimID           string             `json:"claim_id" db:"claim_id"`
	CycleStartDate    time.Time          `json:"cycle_start_date" db:"cycle_start_date"`
	CycleEndDate      time.Time          `json:"cycle_end_date" db:"cycle_end_date"`
	Status            PaymentCycleStatus `json:"payment_cycle_status" db:"payment_cycle_status"`
	EligibilityStatus EligibilityStatus  `json:"eligibility_status,omitempty" db:"eligibility_status"`
	Entitlement       *CycleEntitlement  `json:"voucher_entitlement,omitempty" db:"voucher_entitlement"`
	ChildrenDOB       []time.Time        `json:"children_dob,omitempty" db:"children_dob"`
	ExpectedDueDate   *time.Time         `json:"expected_due_date,omitempty" db:"expected_due_date"`
	TotalEntitlement  decimal.Decimal    `json:"total_entitlement" db:"total_entitlement_amount"`
	CardBalance       decimal.Decimal    `json:"card_balance" db:"card_balance"`
	CardBalanceAt     *time.Time         `json:"card_balance_timestamp,omitempty" db:"card_balance_timestamp"`
	PaymentAmount     decimal.Decimal    `json:"payment_amount" db:"payment_amount"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
}

// HasPregnancyVouchers reports whether the stored entitlement already
// includes vouchers for a pregnancy.
func (p *PaymentCycle) HasPregnancyVouchers() bool {
	return p.Entitlement != nil && p.Entitlement.PregnancyVouchers() > 0
}

// Payment records one deposit attempt against a claimant's card.
type Payment struct {
	ID               string          `json:"id" db:"id"`
	ClaimID          string          `json:"claim_id" db:"claim_id"`
	PaymentCycleID   string          `json:"payment_cycle_id" db:"payment_cycle_id"`
	CardAccountID    string          `json:"card_account_id" db:"card_account_id"`
	Amount           decimal.Decimal `json:"payment_amount" db:"payment_amount"`
	PaymentReference string          `json:"payment_reference,omitempty" db:"payment_reference"`
	Status           PaymentStatus   `json:"payment_status" db:"payment_status"`
	FailureReason    string          `json:"failure_reason,omitempty" db:"failure_reason"`
	PaymentTimestamp time.Time       `json:"payment_timestamp" db:"payment_timestamp"`
}
