// Package processors holds one messaging.Handler per message type. Each
// handler decodes its payload, loads the claim and payment cycle it refers
// to, calls out to the card issuer, eligibility service, notification
// gateways or reporting queue, and enqueues the next step of the claim's
// workflow.
//
// Every handler runs inside the dispatcher's transaction, so database
// writes and follow-on messages commit together with the completion of the
// message being processed.
package processors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"benefitclaims/internal/entitlement"
	"benefitclaims/internal/external"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/queue"
	"benefitclaims/internal/types"
)

// ClaimStore is the subset of db.ClaimRepository the handlers use.
type ClaimStore interface {
	Get(ctx context.Context, id string) (*types.Claim, error)
	UpdateCardAccount(ctx context.Context, claimID, cardAccountID string, status types.CardStatus, at time.Time) error
	UpdateStatus(ctx context.Context, claimID string, status types.ClaimStatus, at time.Time) error
	UpdateCardStatus(ctx context.Context, claimID string, status types.CardStatus, at time.Time) error
}

// CycleStore is the subset of db.PaymentCycleRepository the handlers use.
type CycleStore interface {
	Get(ctx context.Context, id string) (*types.PaymentCycle, error)
	Create(ctx context.Context, p *types.PaymentCycle) error
	Update(ctx context.Context, p *types.PaymentCycle) error
}

// PaymentStore records deposit attempts.
type PaymentStore interface {
	Insert(ctx context.Context, p *types.Payment) error
}

// Enqueuer adds follow-on messages. messaging.MessageQueue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, t types.MessageType) error
}

// Reporter publishes MI events. queue.Reporter satisfies it.
type Reporter interface {
	ReportClaim(ctx context.Context, report queue.ClaimReport) error
	ReportPayment(ctx context.Context, report queue.PaymentReport) error
}

// Deps are the collaborators shared by every handler.
type Deps struct {
	Claims   ClaimStore
	Cycles   CycleStore
	Payments PaymentStore
	Queue    Enqueuer

	Cards       external.CardIssuer
	Eligibility external.EligibilityService
	Notifier    external.Notifier
	Email       external.EmailSender
	Reporter    Reporter

	Calculator *entitlement.Calculator
	Templates  Templates

	// PendingExpiry is how long a claim may stay PENDING before
	// DETERMINE_ENTITLEMENT expires it instead of asking again.
	PendingExpiry time.Duration

	Clock  types.Clock
	Logger *slog.Logger
	NewID  func() string
}

// base is embedded by every handler.
type base struct {
	Deps
	loader *MessageContextLoader
}

func newBase(d Deps) *base {
	if d.Clock == nil {
		d.Clock = types.RealClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return &base{Deps: d, loader: NewMessageContextLoader(d.Claims, d.Cycles)}
}

func (b *base) now() time.Time {
	return b.Clock.Now().UTC()
}

// All returns a handler for every declared message type, ready to be passed
// to messaging.NewRegistry.
func All(d Deps) []messaging.Handler {
	b := newBase(d)
	return []messaging.Handler{
		&CreateNewCardHandler{base: b},
		&RequestNewCardHandler{base: b},
		&CompleteNewCardHandler{base: b},
		&MakeFirstPaymentHandler{base: b},
		&MakePaymentHandler{base: b},
		&RequestPaymentHandler{base: b},
		&CompletePaymentHandler{base: b},
		&AdditionalPregnancyPaymentHandler{base: b},
		&DetermineEntitlementHandler{base: b},
		&SendEmailHandler{base: b},
		&SendTextHandler{base: b},
		&SendLetterHandler{base: b},
		&ReportClaimHandler{base: b},
		&ReportPaymentHandler{base: b},
		&UpdateCardStatusHandler{base: b},
	}
}

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
