package external

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"benefitclaims/internal/types"
)

// Stub implementations let the worker boot locally without credentials.
// They log each call and return predictable values.

// StubCardIssuer opens cards with ids derived from the claim id and reports
// an empty balance.
type StubCardIssuer struct {
	logger *slog.Logger
}

// NewStubCardIssuer creates a new StubCardIssuer.
func NewStubCardIssuer(logger *slog.Logger) *StubCardIssuer {
	return &StubCardIssuer{logger: logger}
}

func (s *StubCardIssuer) CreateCard(ctx context.Context, req CardRequest) (*CardResponse, error) {
	s.logger.InfoContext(ctx, "stub: CreateCard called", "claim_id", req.ClaimID)
	return &CardResponse{CardAccountID: fmt.Sprintf("card_stub_%s", req.ClaimID)}, nil
}

func (s *StubCardIssuer) GetBalance(ctx context.Context, cardAccountID string) (*CardBalance, error) {
	s.logger.InfoContext(ctx, "stub: GetBalance called", "card_account_id", cardAccountID)
	return &CardBalance{CardAccountID: cardAccountID, AvailableBalance: decimal.Zero, LedgerBalance: decimal.Zero}, nil
}

func (s *StubCardIssuer) Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error) {
	s.logger.InfoContext(ctx, "stub: Deposit called",
		"card_account_id", req.CardAccountID,
		"amount", req.Amount.StringFixed(2),
		"payment_reference", req.Reference,
	)
	return &DepositResponse{ReferenceID: "dep_stub_" + uuid.NewString()}, nil
}

// StubEligibilityService reports every claimant as eligible with the
// children recorded on the claim.
type StubEligibilityService struct {
	logger *slog.Logger
}

// NewStubEligibilityService creates a new StubEligibilityService.
func NewStubEligibilityService(logger *slog.Logger) *StubEligibilityService {
	return &StubEligibilityService{logger: logger}
}

func (s *StubEligibilityService) Check(ctx context.Context, claimant types.Claimant) (*EligibilityResult, error) {
	s.logger.InfoContext(ctx, "stub: eligibility Check called", "postcode", claimant.Postcode)
	return &EligibilityResult{
		Status:      types.EligibilityEligible,
		HouseholdID: "household_stub",
		ChildrenDOB: claimant.ChildrenDOB,
	}, nil
}

// StubNotifier logs texts and letters.
type StubNotifier struct {
	logger *slog.Logger
}

// NewStubNotifier creates a new StubNotifier.
func NewStubNotifier(logger *slog.Logger) *StubNotifier {
	return &StubNotifier{logger: logger}
}

func (s *StubNotifier) SendText(ctx context.Context, req TextRequest) (string, error) {
	s.logger.InfoContext(ctx, "stub: SendText called", "template_id", req.TemplateID, "reference", req.Reference)
	return "sms_stub_" + uuid.NewString(), nil
}

func (s *StubNotifier) SendLetter(ctx context.Context, req LetterRequest) (string, error) {
	s.logger.InfoContext(ctx, "stub: SendLetter called", "template_id", req.TemplateID, "reference", req.Reference)
	return "letter_stub_" + uuid.NewString(), nil
}

// StubEmailSender logs emails.
type StubEmailSender struct {
	logger *slog.Logger
}

// NewStubEmailSender creates a new StubEmailSender.
func NewStubEmailSender(logger *slog.Logger) *StubEmailSender {
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, input EmailInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: email Send called",
		"template", input.TemplateName,
		"reference_id", input.ReferenceID,
	)
	return "email_stub_" + uuid.NewString(), nil
}

var (
	_ CardIssuer         = (*StubCardIssuer)(nil)
	_ EligibilityService = (*StubEligibilityService)(nil)
	_ Notifier           = (*StubNotifier)(nil)
	_ EmailSender        = (*StubEmailSender)(nil)
)
