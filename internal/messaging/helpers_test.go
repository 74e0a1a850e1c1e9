package messaging

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"benefitclaims/internal/types"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory MessageStore. Domain writes made by test
// handlers go into effects so rollback can be observed.
type memStore struct {
	mu          sync.Mutex
	messages    map[string]types.Message
	deadLetters []types.DeadLetter
	effects     []string

	saveErr error
	saves   int
}

func newMemStore(msgs ...*types.Message) *memStore {
	s := &memStore{messages: map[string]types.Message{}}
	for _, m := range msgs {
		s.messages[m.ID] = *m
	}
	return s
}

func (s *memStore) FindReady(_ context.Context, t types.MessageType, now time.Time, limit int) ([]*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Message
	for _, m := range s.messages {
		if m.Type == t && !m.ProcessAfter.After(now) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedTimestamp.Equal(out[j].CreatedTimestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedTimestamp.Before(out[j].CreatedTimestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, m *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = *m
	return nil
}

func (s *memStore) Save(_ context.Context, m *types.Message, prevDeliveryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	stored, ok := s.messages[m.ID]
	if !ok || stored.DeliveryCount != prevDeliveryCount {
		return types.NewAppError(types.ErrCodeConflictStaleMessage, "stale message", nil)
	}
	s.saves++
	stored.DeliveryCount = m.DeliveryCount
	stored.ProcessAfter = m.ProcessAfter
	s.messages[m.ID] = stored
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
	}
	delete(s.messages, id)
	return nil
}

func (s *memStore) DeadLetter(_ context.Context, m *types.Message, lastErr string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLetters = append(s.deadLetters, types.DeadLetter{Message: *m, LastError: lastErr, DeadLetteredAt: at})
	delete(s.messages, m.ID)
	return nil
}

func (s *memStore) record(effect string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects = append(s.effects, effect)
}

func (s *memStore) get(id string) (types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	return m, ok
}

func (s *memStore) byType(t types.MessageType) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Message
	for _, m := range s.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type storeSnapshot struct {
	messages    map[string]types.Message
	deadLetters []types.DeadLetter
	effects     []string
}

func (s *memStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make(map[string]types.Message, len(s.messages))
	for k, v := range s.messages {
		msgs[k] = v
	}
	return storeSnapshot{
		messages:    msgs,
		deadLetters: append([]types.DeadLetter(nil), s.deadLetters...),
		effects:     append([]string(nil), s.effects...),
	}
}

func (s *memStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = snap.messages
	s.deadLetters = snap.deadLetters
	s.effects = snap.effects
}

// snapshotTx rolls the memStore back to its state at RunInTx entry when fn
// fails.
type snapshotTx struct {
	store   *memStore
	commits int
	aborts  int
}

func (t *snapshotTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		t.aborts++
		return err
	}
	t.commits++
	return nil
}

type memFailures struct {
	mu      sync.Mutex
	records []*types.FailureRecord
	err     error
}

func (f *memFailures) Insert(_ context.Context, r *types.FailureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, r)
	return nil
}

func (f *memFailures) all() []*types.FailureRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.FailureRecord(nil), f.records...)
}

type fakeArchiver struct {
	archived []*types.DeadLetter
	err      error
}

func (a *fakeArchiver) Archive(_ context.Context, dl *types.DeadLetter) error {
	a.archived = append(a.archived, dl)
	return a.err
}

// funcHandler adapts closures to Handler.
type funcHandler struct {
	typ        types.MessageType
	process    func(ctx context.Context, msg *types.Message) (Status, error)
	compensate func(ctx context.Context, msg *types.Message, event *FailureEvent) error

	mu     sync.Mutex
	events []*FailureEvent
	seen   []string
}

func (h *funcHandler) SupportsType() types.MessageType { return h.typ }

func (h *funcHandler) Process(ctx context.Context, msg *types.Message) (Status, error) {
	h.mu.Lock()
	h.seen = append(h.seen, msg.ID)
	h.mu.Unlock()
	if h.process == nil {
		return StatusCompleted, nil
	}
	return h.process(ctx, msg)
}

func (h *funcHandler) ProcessFailedMessage(ctx context.Context, msg *types.Message, event *FailureEvent) error {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	if h.compensate == nil {
		return nil
	}
	return h.compensate(ctx, msg, event)
}

// completeRegistry registers overrides plus a completing handler for every
// other type.
func completeRegistry(overrides ...Handler) *Registry {
	set := map[types.MessageType]bool{}
	handlers := append([]Handler(nil), overrides...)
	for _, h := range overrides {
		set[h.SupportsType()] = true
	}
	for _, t := range types.AllMessageTypes() {
		if !set[t] {
			handlers = append(handlers, &funcHandler{typ: t})
		}
	}
	r, err := NewRegistry(handlers...)
	if err != nil {
		panic(err)
	}
	return r
}

func newMessage(id string, t types.MessageType, created time.Time) *types.Message {
	return &types.Message{
		ID:               id,
		Type:             t,
		Payload:          []byte(`{"claim_id":"claim-1"}`),
		CreatedTimestamp: created,
		ProcessAfter:     created,
	}
}

var errUpstream = errors.New("upstream timeout")
