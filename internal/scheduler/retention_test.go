package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	n      int64
	err    error
	cutoff time.Time
	calls  int
}

func (f *fakePurger) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.n, f.err
}

func (f *fakePurger) DeleteDeadLettersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.DeleteBefore(ctx, cutoff)
}

type stubClock struct{ t time.Time }

func (c stubClock) Now() time.Time { return c.t }

var retentionNow = time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)

func TestRetention_PurgesBothTables(t *testing.T) {
	failures := &fakePurger{n: 40}
	dead := &fakePurger{n: 2}
	svc := NewRetentionService(failures, dead, RetentionConfig{
		FailureRetention:    90 * 24 * time.Hour,
		DeadLetterRetention: 365 * 24 * time.Hour,
	}, stubClock{retentionNow}, nil)

	res, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RetentionResult{Failures: 40, DeadLetters: 2}, res)
	assert.Equal(t, retentionNow.Add(-90*24*time.Hour), failures.cutoff)
	assert.Equal(t, retentionNow.Add(-365*24*time.Hour), dead.cutoff)
	assert.Equal(t, "@daily", svc.Schedule())
}

func TestRetention_ZeroRetentionKeepsRows(t *testing.T) {
	failures := &fakePurger{}
	dead := &fakePurger{}
	svc := NewRetentionService(failures, dead, RetentionConfig{FailureRetention: time.Hour}, stubClock{retentionNow}, nil)

	_, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, failures.calls)
	assert.Zero(t, dead.calls)
}

func TestRetention_ContinuesAfterError(t *testing.T) {
	failures := &fakePurger{err: errors.New("statement timeout")}
	dead := &fakePurger{n: 5}
	svc := NewRetentionService(failures, dead, RetentionConfig{
		FailureRetention:    time.Hour,
		DeadLetterRetention: time.Hour,
	}, stubClock{retentionNow}, nil)

	res, err := svc.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "message failures")
	assert.Equal(t, int64(5), res.DeadLetters)
}
