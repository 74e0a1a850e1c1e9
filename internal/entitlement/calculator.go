// Package entitlement computes voucher entitlements and payment amounts.
//
// A claimant earns, per week of a payment cycle:
//   - 2 vouchers for each child under one
//   - 1 voucher for each child aged one to under four
//   - 1 voucher while pregnant (up to the due date plus a grace period)
//
// The week is evaluated at its start date.
package entitlement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"benefitclaims/internal/config"
	"benefitclaims/internal/types"
)

const (
	vouchersPerChildUnderOne       = 2
	vouchersPerChildOneToFour      = 1
	vouchersPerPregnancy           = 1
	daysPerWeek                    = 7
	yearsUntilChildStopsQualifying = 4
)

// Calculator holds the scheme constants.
type Calculator struct {
	voucherValue     decimal.Decimal
	cycleDays        int
	pregnancyGrace   time.Duration
	maxBalanceCycles int
}

// NewCalculator builds a Calculator from configuration.
func NewCalculator(cfg config.EntitlementConfig) (*Calculator, error) {
	value, err := decimal.NewFromString(cfg.VoucherValue)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationAmount,
			fmt.Sprintf("invalid voucher value %q", cfg.VoucherValue), err)
	}
	if !value.IsPositive() {
		return nil, types.NewAppError(types.ErrCodeValidationAmount, "voucher value must be positive", nil)
	}
	if cfg.CycleDurationDays < daysPerWeek || cfg.CycleDurationDays%daysPerWeek != 0 {
		return nil, types.NewAppError(types.ErrCodeValidationAmount,
			fmt.Sprintf("cycle duration must be whole weeks, got %d days", cfg.CycleDurationDays), nil)
	}
	return &Calculator{
		voucherValue:     value,
		cycleDays:        cfg.CycleDurationDays,
		pregnancyGrace:   cfg.PregnancyGracePeriod,
		maxBalanceCycles: cfg.MaxBalanceCycles,
	}, nil
}

// CycleDays is the length of a payment cycle.
func (c *Calculator) CycleDays() int { return c.cycleDays }

// CycleEnd returns the last day of a cycle that starts on start.
func (c *Calculator) CycleEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, c.cycleDays-1)
}

// ForWeek computes the vouchers earned in the week starting weekStart.
func (c *Calculator) ForWeek(weekStart time.Time, childrenDOB []time.Time, dueDate *time.Time) types.VoucherEntitlement {
	v := types.VoucherEntitlement{
		WeekStart:          weekStart,
		SingleVoucherValue: c.voucherValue,
	}
	for _, dob := range childrenDOB {
		if dob.After(weekStart) {
			continue
		}
		switch {
		case weekStart.Before(dob.AddDate(1, 0, 0)):
			v.VouchersForChildrenUnderOne += vouchersPerChildUnderOne
		case weekStart.Before(dob.AddDate(yearsUntilChildStopsQualifying, 0, 0)):
			v.VouchersForChildrenBetweenOneAndFour += vouchersPerChildOneToFour
		}
	}
	if dueDate != nil && !weekStart.After(dueDate.Add(c.pregnancyGrace)) {
		v.VouchersForPregnancy = vouchersPerPregnancy
	}
	return v
}

// ForCycle computes the entitlement for every week of a cycle starting on
// cycleStart.
func (c *Calculator) ForCycle(cycleStart time.Time, childrenDOB []time.Time, dueDate *time.Time) types.CycleEntitlement {
	weeks := c.cycleDays / daysPerWeek
	e := types.CycleEntitlement{
		Weeks:              make([]types.VoucherEntitlement, 0, weeks),
		SingleVoucherValue: c.voucherValue,
	}
	for w := 0; w < weeks; w++ {
		e.Weeks = append(e.Weeks, c.ForWeek(cycleStart.AddDate(0, 0, w*daysPerWeek), childrenDOB, dueDate))
	}
	return e
}

// PregnancyTopUp is the value of the pregnancy vouchers a cycle would have
// carried had dueDate been known when it was calculated.
func (c *Calculator) PregnancyTopUp(cycle *types.PaymentCycle, dueDate time.Time) decimal.Decimal {
	e := c.ForCycle(cycle.CycleStartDate, nil, &dueDate)
	return c.voucherValue.Mul(decimal.NewFromInt(int64(e.PregnancyVouchers())))
}

// Decision is the outcome of weighing an entitlement against the card
// balance.
type Decision struct {
	Amount decimal.Decimal
	Status types.PaymentCycleStatus
}

// PaymentFor decides how much to deposit. The card balance may not exceed
// maxBalanceCycles cycles' worth of entitlement: the payment is reduced to
// fit under that ceiling, or skipped when the balance is already there.
func (c *Calculator) PaymentFor(entitlement decimal.Decimal, balance decimal.Decimal) Decision {
	if !entitlement.IsPositive() {
		return Decision{Amount: decimal.Zero, Status: types.PaymentCycleStatusFullPaymentMade}
	}
	ceiling := entitlement.Mul(decimal.NewFromInt(int64(c.maxBalanceCycles)))

	switch {
	case balance.GreaterThanOrEqual(ceiling):
		return Decision{Amount: decimal.Zero, Status: types.PaymentCycleStatusBalanceTooHigh}
	case balance.Add(entitlement).GreaterThan(ceiling):
		return Decision{Amount: ceiling.Sub(balance), Status: types.PaymentCycleStatusPartialPayment}
	default:
		return Decision{Amount: entitlement, Status: types.PaymentCycleStatusFullPaymentMade}
	}
}
