package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"benefitclaims/internal/types"
)

// ============================================================
// FailureRepository
// ============================================================

func TestFailureRepository_Insert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFailureRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	f := &types.FailureRecord{
		ID:          "f-1", MessageID: "m-1", MessageType: types.MessageTypeSendEmail, DeliveryCount: 2,
		Description: "Failed to process SEND_EMAIL message", ErrorText: "smtp down",
		Details:     types.Details{"claim_id": "c-1"}, CreatedAt: now,
	}
	db.On("Exec", ctx, sqlContains("INSERT INTO message_failures"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 8 && args[1] == "m-1" && args[3] == 2
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Insert(ctx, f))
	db.AssertExpectations(t)
}

func TestFailureRepository_Insert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFailureRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("timeout"))

	err := repo.Insert(ctx, &types.FailureRecord{})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestFailureRepository_DeleteBefore(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFailureRepository(db)
	ctx := context.Background()
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	db.On("Exec", ctx, sqlContains("DELETE FROM message_failures"), []any{cutoff}).
		Return(pgconn.NewCommandTag("DELETE 12"), nil)

	n, err := repo.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestFailureRepository_ListByMessage(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFailureRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	db.On("Query", ctx, sqlContains("WHERE message_id = $1"), []any{"m-1"}).Return(newMockRows([][]any{
		{"f-1", "m-1", types.MessageTypeSendEmail, 1, "first", "e1", types.Details(nil), now},
		{"f-2", "m-1", types.MessageTypeSendEmail, 2, "second", "e2", types.Details{"k": "v"}, now},
	}), nil)

	out, err := repo.ListByMessage(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[1].DeliveryCount)
	assert.Equal(t, "v", out[1].Details["k"])
}

func TestFailureRepository_ListByType(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFailureRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, sqlContains("WHERE message_type = $1"), []any{types.MessageTypeMakePayment, 25}).
		Return(newMockRows(nil), nil)

	out, err := repo.ListByType(ctx, types.MessageTypeMakePayment, 25)
	require.NoError(t, err)
	assert.Empty(t, out)
	db.AssertExpectations(t)
}

// ============================================================
// ClaimRepository
// ============================================================

func TestClaimRepository_Get_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewClaimRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	cardID := "card-77"
	cardStatus := string(types.CardStatusActive)

	db.On("QueryRow", ctx, sqlContains("JOIN claimant"), []any{"c-1"}).Return(&mockRow{
		scanFn: func(dest ...any) error {
			return assign(dest,
				"c-1", types.ClaimStatusActive, now, &cardID, &cardStatus,
				nil, false, now, now,
				"Lisa", "Simpson", "EB123456C", now.AddDate(-30, 0, 0), "lisa@example.com",
				"07700900000", "742 Evergreen Terrace", "", "Springfield", "AA1 1AA", nil, []time.Time{now.AddDate(-1, 0, 0)},
			)
		},
	})

	claim, err := repo.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "card-77", claim.CardAccountID)
	assert.Equal(t, types.CardStatusActive, claim.CardStatus)
	assert.Equal(t, "Lisa Simpson", claim.Claimant.FullName())
	assert.Len(t, claim.Claimant.ChildrenDOB, 1)
	assert.True(t, claim.HasCard())
}

func TestClaimRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(ctx, "nope")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundClaim, appErr.Code)
	assert.Equal(t, "nope", appErr.Details["claim_id"])
}

func TestClaimRepository_UpdateCardAccount(t *testing.T) {
	db := new(mockDBTX)
	repo := NewClaimRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	db.On("Exec", ctx, sqlContains("SET card_account_id = $2"),
		[]any{"c-1", "card-1", types.CardStatusActive, now, types.ClaimStatusActive}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, repo.UpdateCardAccount(ctx, "c-1", "card-1", types.CardStatusActive, now))
	db.AssertExpectations(t)
}

func TestClaimRepository_UpdateStatus_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdateStatus(ctx, "c-1", types.ClaimStatusExpired, time.Now())
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundClaim, appErr.Code)
}

// ============================================================
// PaymentCycleRepository
// ============================================================

func TestPaymentCycleRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentCycleRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"pc-1"}).Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(ctx, "pc-1")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundPaymentCycle, appErr.Code)
}

func TestPaymentCycleRepository_Create(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentCycleRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	pc := &types.PaymentCycle{
		ID:        "pc-1", ClaimID: "c-1", CycleStartDate: now, CycleEndDate: now.AddDate(0, 0, 28),
		Status:    types.PaymentCycleStatusNew, TotalEntitlement: decimal.RequireFromString("12.40"),
		CreatedAt: now, UpdatedAt: now,
	}
	db.On("Exec", ctx, sqlContains("INSERT INTO payment_cycle"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 15 && args[0] == "pc-1" && args[5] == ""
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Create(ctx, pc))
	db.AssertExpectations(t)
}

func TestPaymentCycleRepository_Update_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentCycleRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, sqlContains("UPDATE payment_cycle"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.Update(ctx, &types.PaymentCycle{ID: "pc-x"})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundPaymentCycle, appErr.Code)
}

// ============================================================
// PaymentRepository
// ============================================================

func TestPaymentRepository_Insert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := &types.Payment{ID: "p-1", ClaimID: "c-1", PaymentCycleID: "pc-1", CardAccountID: "card-1",
		Amount: decimal.RequireFromString("24.80"), Status: types.PaymentStatusFailed, FailureReason: "declined"}
	db.On("Exec", ctx, sqlContains("INSERT INTO payment"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 9 && args[6] == types.PaymentStatusFailed && args[7] == "declined"
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Insert(ctx, p))
	db.AssertExpectations(t)
}

func TestPaymentRepository_ListByCycle(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	db.On("Query", ctx, sqlContains("WHERE payment_cycle_id = $1"), []any{"pc-1"}).Return(newMockRows([][]any{
		{"p-1", "c-1", "pc-1", "card-1", decimal.RequireFromString("10"), "", types.PaymentStatusFailed, "timeout", now},
		{"p-2", "c-1", "pc-1", "card-1", decimal.RequireFromString("10"), "ref-2", types.PaymentStatusSuccess, "", now},
	}), nil)

	out, err := repo.ListByCycle(ctx, "pc-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, types.PaymentStatusSuccess, out[1].Status)
	assert.Equal(t, "ref-2", out[1].PaymentReference)
}

// ============================================================
// JobLockRepository
// ============================================================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestJobLockRepository_Acquire(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tag  string
		err  error
		want bool
	}{
		{name: "new lock", tag: "INSERT 0 1", want: true},
		{name: "held by another worker", tag: "INSERT 0 0", want: false},
		{name: "db error", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			repo := NewJobLockRepository(db)
			repo.clock = fixedClock{t: now}
			ctx := context.Background()

			db.On("Exec", ctx, sqlContains("ON CONFLICT (id) DO UPDATE"),
				[]any{"messages:SEND_EMAIL", "worker-1", now, now.Add(5 * time.Minute)}).
				Return(pgconn.NewCommandTag(tt.tag), tt.err)

			got, err := repo.Acquire(ctx, "messages:SEND_EMAIL", "worker-1", 5*time.Minute)
			if tt.err != nil {
				var appErr *types.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			db.AssertExpectations(t)
		})
	}
}

func TestJobLockRepository_Release(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobLockRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, sqlContains("DELETE FROM job_locks"), []any{"messages:SEND_EMAIL", "worker-1"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	require.NoError(t, repo.Release(ctx, "messages:SEND_EMAIL", "worker-1"))
	db.AssertExpectations(t)
}
