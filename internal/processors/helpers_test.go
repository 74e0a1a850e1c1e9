package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"benefitclaims/internal/config"
	"benefitclaims/internal/entitlement"
	"benefitclaims/internal/external"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/queue"
	"benefitclaims/internal/types"
)

var (
	testNow   = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	cycleDay  = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	babyDOB   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dueDate   = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fourWeeks = decimal.RequireFromString("34.00") // 2 vouchers x 4 weeks x 4.25
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// --- stores ---

type fakeClaims struct {
	claims map[string]*types.Claim
	err    error
}

func newFakeClaims(claims ...*types.Claim) *fakeClaims {
	f := &fakeClaims{claims: map[string]*types.Claim{}}
	for _, c := range claims {
		f.claims[c.ID] = c
	}
	return f
}

func (f *fakeClaims) Get(ctx context.Context, id string) (*types.Claim, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.claims[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundClaim, "claim not found", nil)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClaims) UpdateCardAccount(ctx context.Context, claimID, cardAccountID string, status types.CardStatus, at time.Time) error {
	c := f.claims[claimID]
	c.CardAccountID = cardAccountID
	c.CardStatus = status
	c.CardStatusTimestamp = &at
	return nil
}

func (f *fakeClaims) UpdateStatus(ctx context.Context, claimID string, status types.ClaimStatus, at time.Time) error {
	c := f.claims[claimID]
	c.Status = status
	c.StatusTimestamp = at
	return nil
}

func (f *fakeClaims) UpdateCardStatus(ctx context.Context, claimID string, status types.CardStatus, at time.Time) error {
	c := f.claims[claimID]
	c.CardStatus = status
	c.CardStatusTimestamp = &at
	return nil
}

type fakeCycles struct {
	cycles  map[string]*types.PaymentCycle
	created []*types.PaymentCycle
}

func newFakeCycles(cycles ...*types.PaymentCycle) *fakeCycles {
	f := &fakeCycles{cycles: map[string]*types.PaymentCycle{}}
	for _, c := range cycles {
		f.cycles[c.ID] = c
	}
	return f
}

func (f *fakeCycles) Get(ctx context.Context, id string) (*types.PaymentCycle, error) {
	c, ok := f.cycles[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundPaymentCycle, "payment cycle not found", nil)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCycles) Create(ctx context.Context, p *types.PaymentCycle) error {
	cp := *p
	f.cycles[p.ID] = &cp
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeCycles) Update(ctx context.Context, p *types.PaymentCycle) error {
	cp := *p
	f.cycles[p.ID] = &cp
	return nil
}

type fakePayments struct {
	payments []*types.Payment
}

func (f *fakePayments) Insert(ctx context.Context, p *types.Payment) error {
	f.payments = append(f.payments, p)
	return nil
}

// enqueued is one follow-on message captured by recordingQueue.
type enqueued struct {
	Type    types.MessageType
	Payload any
}

type recordingQueue struct {
	messages []enqueued
}

func (q *recordingQueue) Enqueue(ctx context.Context, payload any, t types.MessageType) error {
	q.messages = append(q.messages, enqueued{Type: t, Payload: payload})
	return nil
}

func (q *recordingQueue) sent() []types.MessageType {
	out := make([]types.MessageType, 0, len(q.messages))
	for _, m := range q.messages {
		out = append(out, m.Type)
	}
	return out
}

// --- external collaborators ---

type mockCards struct{ mock.Mock }

func (m *mockCards) CreateCard(ctx context.Context, req external.CardRequest) (*external.CardResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*external.CardResponse), args.Error(1)
}

func (m *mockCards) GetBalance(ctx context.Context, cardAccountID string) (*external.CardBalance, error) {
	args := m.Called(ctx, cardAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*external.CardBalance), args.Error(1)
}

func (m *mockCards) Deposit(ctx context.Context, req external.DepositRequest) (*external.DepositResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*external.DepositResponse), args.Error(1)
}

type mockEligibility struct{ mock.Mock }

func (m *mockEligibility) Check(ctx context.Context, claimant types.Claimant) (*external.EligibilityResult, error) {
	args := m.Called(ctx, claimant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*external.EligibilityResult), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) SendText(ctx context.Context, req external.TextRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockNotifier) SendLetter(ctx context.Context, req external.LetterRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockEmail struct{ mock.Mock }

func (m *mockEmail) Send(ctx context.Context, input external.EmailInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

type mockReporter struct{ mock.Mock }

func (m *mockReporter) ReportClaim(ctx context.Context, report queue.ClaimReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *mockReporter) ReportPayment(ctx context.Context, report queue.PaymentReport) error {
	return m.Called(ctx, report).Error(0)
}

// --- fixture ---

type fixture struct {
	claims      *fakeClaims
	cycles      *fakeCycles
	payments    *fakePayments
	queue       *recordingQueue
	cards       *mockCards
	eligibility *mockEligibility
	notifier    *mockNotifier
	email       *mockEmail
	reporter    *mockReporter
	deps        Deps
}

func newFixture(t *testing.T, claim *types.Claim, cycles ...*types.PaymentCycle) *fixture {
	t.Helper()
	calc, err := entitlement.NewCalculator(config.EntitlementConfig{
		VoucherValue:         "4.25",
		CycleDurationDays:    28,
		PregnancyGracePeriod: 12 * 7 * 24 * time.Hour,
		MaxBalanceCycles:     4,
	})
	require.NoError(t, err)

	f := &fixture{
		claims:      newFakeClaims(claim),
		cycles:      newFakeCycles(cycles...),
		payments:    &fakePayments{},
		queue:       &recordingQueue{},
		cards:       &mockCards{},
		eligibility: &mockEligibility{},
		notifier:    &mockNotifier{},
		email:       &mockEmail{},
		reporter:    &mockReporter{},
	}
	ids := 0
	f.deps = Deps{
		Claims:        f.claims,
		Cycles:        f.cycles,
		Payments:      f.payments,
		Queue:         f.queue,
		Cards:         f.cards,
		Eligibility:   f.eligibility,
		Notifier:      f.notifier,
		Email:         f.email,
		Reporter:      f.reporter,
		Calculator:    calc,
		Templates:     NewTemplates(map[string]string{"PAYMENT": "payment-v2"}, map[string]string{"TEXT:NEW_CARD": "tmpl-text-new-card"}),
		PendingExpiry: 16 * 7 * 24 * time.Hour,
		Clock:         fixedClock{testNow},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	}
	return f
}

// handler returns the handler for t from All.
func (f *fixture) handler(t *testing.T, mt types.MessageType) messaging.Handler {
	t.Helper()
	for _, h := range All(f.deps) {
		if h.SupportsType() == mt {
			return h
		}
	}
	t.Fatalf("no handler for %s", mt)
	return nil
}

func activeClaim() *types.Claim {
	return &types.Claim{
		ID: "claim-1",
		Claimant: types.Claimant{
			FirstName:    "Ada",
			LastName:     "Lovelace",
			EmailAddress: "ada@example.com",
			PhoneNumber:  "07700900123",
			AddressLine1: "1 Test Street",
			TownOrCity:   "Leeds",
			Postcode:     "LS1 1AA",
			ChildrenDOB:  []time.Time{babyDOB},
		},
		Status:        types.ClaimStatusActive,
		CardAccountID: "card-1",
		CardStatus:    types.CardStatusActive,
	}
}

func determinedCycle(status types.PaymentCycleStatus) *types.PaymentCycle {
	return &types.PaymentCycle{
		ID:               "cycle-1",
		ClaimID:          "claim-1",
		CycleStartDate:   cycleDay,
		CycleEndDate:     cycleDay.AddDate(0, 0, 27),
		Status:           status,
		ChildrenDOB:      []time.Time{babyDOB},
		TotalEntitlement: fourWeeks,
	}
}

func newMessage(t *testing.T, mt types.MessageType, payload any) *types.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &types.Message{
		ID:               "msg-1",
		Type:             mt,
		Payload:          raw,
		CreatedTimestamp: testNow.Add(-time.Minute),
		ProcessAfter:     testNow,
		DeliveryCount:    1,
	}
}
