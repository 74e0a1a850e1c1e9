package external

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"benefitclaims/internal/types"
)

// CardIssuer is the prepaid card provider.
type CardIssuer interface {
	// CreateCard opens a card account for the claimant and returns its id.
	CreateCard(ctx context.Context, req CardRequest) (*CardResponse, error)
	// GetBalance returns the available balance on a card account.
	GetBalance(ctx context.Context, cardAccountID string) (*CardBalance, error)
	// Deposit loads funds onto a card account. reference must be unique per
	// payment so the issuer can deduplicate retried deposits.
	Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error)
}

// EligibilityService checks a claimant against the benefits record.
type EligibilityService interface {
	Check(ctx context.Context, claimant types.Claimant) (*EligibilityResult, error)
}

// Notifier sends SMS and letters through the notification gateway.
type Notifier interface {
	SendText(ctx context.Context, req TextRequest) (string, error)
	SendLetter(ctx context.Context, req LetterRequest) (string, error)
}

// EmailSender delivers templated email.
type EmailSender interface {
	// Send returns the provider's message id.
	Send(ctx context.Context, input EmailInput) (string, error)
}

// CardRequest carries what the issuer needs to open and post a card.
type CardRequest struct {
	ClaimID      string    `json:"client_reference"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	AddressLine1 string    `json:"address_line_1"`
	AddressLine2 string    `json:"address_line_2,omitempty"`
	TownOrCity   string    `json:"town_or_city"`
	Postcode     string    `json:"postcode"`
	EmailAddress string    `json:"email_address,omitempty"`
	PhoneNumber  string    `json:"mobile,omitempty"`
}

// NewCardRequest builds a CardRequest from a claim.
func NewCardRequest(claim *types.Claim) CardRequest {
	c := claim.Claimant
	return CardRequest{
		ClaimID:      claim.ID,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		DateOfBirth:  c.DateOfBirth,
		AddressLine1: c.AddressLine1,
		AddressLine2: c.AddressLine2,
		TownOrCity:   c.TownOrCity,
		Postcode:     c.Postcode,
		EmailAddress: c.EmailAddress,
		PhoneNumber:  c.PhoneNumber,
	}
}

type CardResponse struct {
	CardAccountID string `json:"card_account_id"`
}

type CardBalance struct {
	CardAccountID    string          `json:"card_account_id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	LedgerBalance    decimal.Decimal `json:"ledger_balance"`
}

type DepositRequest struct {
	CardAccountID string          `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"payment_reference"`
}

type DepositResponse struct {
	ReferenceID string `json:"reference_id"`
}

// EligibilityResult is the eligibility verdict and the household details it
// was based on.
type EligibilityResult struct {
	Status      types.EligibilityStatus `json:"eligibility_status"`
	HouseholdID string                  `json:"household_identifier,omitempty"`
	ChildrenDOB []time.Time             `json:"dates_of_birth_of_children,omitempty"`
}

type TextRequest struct {
	PhoneNumber     string            `json:"phone_number"`
	TemplateID      string            `json:"template_id"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Reference       string            `json:"reference,omitempty"`
}

type LetterRequest struct {
	TemplateID      string            `json:"template_id"`
	Personalisation map[string]string `json:"personalisation"`
	Reference       string            `json:"reference,omitempty"`
}

// EmailInput is a templated email. TemplateData is rendered by the
// provider.
type EmailInput struct {
	To           string
	TemplateName string
	TemplateData map[string]string
	ReferenceID  string
}
