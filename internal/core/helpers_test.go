package core

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"benefitclaims/internal/config"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

var opsNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeProcessor struct {
	processed []types.MessageType
	result    messaging.DrainResult
	all       map[types.MessageType]messaging.DrainResult
	err       error
}

func (f *fakeProcessor) ProcessNow(ctx context.Context, t types.MessageType) (messaging.DrainResult, error) {
	f.processed = append(f.processed, t)
	return f.result, f.err
}

func (f *fakeProcessor) ProcessAll(ctx context.Context) (map[types.MessageType]messaging.DrainResult, error) {
	return f.all, f.err
}

type fakeQueue struct {
	payload      any
	messageType  types.MessageType
	processAfter time.Time
	err          error
}

func (f *fakeQueue) EnqueueAfter(ctx context.Context, payload any, t types.MessageType, processAfter time.Time) (*types.Message, error) {
	f.payload, f.messageType, f.processAfter = payload, t, processAfter
	if f.err != nil {
		return nil, f.err
	}
	return &types.Message{ID: "msg-1", Type: t, ProcessAfter: processAfter}, nil
}

type fakeMessages struct {
	markedIDs  []string
	markedType types.MessageType
	markedAt   time.Time
	pending    map[types.MessageType]int
	dead       []*types.DeadLetter
	limit      int
}

func (f *fakeMessages) MarkProcessable(ctx context.Context, ids []string, now time.Time) (int64, error) {
	f.markedIDs, f.markedAt = ids, now
	return int64(len(ids)), nil
}

func (f *fakeMessages) MarkTypeProcessable(ctx context.Context, t types.MessageType, now time.Time) (int64, error) {
	f.markedType, f.markedAt = t, now
	return 7, nil
}

func (f *fakeMessages) CountPending(ctx context.Context) (map[types.MessageType]int, error) {
	return f.pending, nil
}

func (f *fakeMessages) ListDeadLetters(ctx context.Context, t types.MessageType, limit int) ([]*types.DeadLetter, error) {
	f.limit = limit
	return f.dead, nil
}

type fakeFailures struct {
	records []*types.FailureRecord
	limit   int
	byType  types.MessageType
	byID    string
}

func (f *fakeFailures) ListByType(ctx context.Context, t types.MessageType, limit int) ([]*types.FailureRecord, error) {
	f.byType, f.limit = t, limit
	return f.records, nil
}

func (f *fakeFailures) ListByMessage(ctx context.Context, messageID string) ([]*types.FailureRecord, error) {
	f.byID = messageID
	return f.records, nil
}

type testServer struct {
	*Server
	processor *fakeProcessor
	queue     *fakeQueue
	messages  *fakeMessages
	failures  *fakeFailures
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *testServer {
	t.Helper()
	ts := &testServer{
		processor: &fakeProcessor{},
		queue:     &fakeQueue{},
		messages:  &fakeMessages{},
		failures:  &fakeFailures{},
	}
	srv, err := NewServer(cfg, Deps{
		Processor: ts.processor,
		Queue:     ts.queue,
		Messages:  ts.messages,
		Failures:  ts.failures,
		Clock:     fixedClock{opsNow},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.MountRoutes()
	ts.Server = srv
	return ts
}
