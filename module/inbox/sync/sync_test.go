package sync

import (
	"context"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

var (
	testT0    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testOwn   = "+15559990000"
	testOther = "+15550001111"
)

type fakeSource struct {
	mu   stdsync.Mutex
	rows []model.ConversationReadState
	err  error
}

func (f *fakeSource) ListByUser(_ context.Context, _ string) ([]model.ConversationReadState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeSource) set(phone string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = []model.ConversationReadState{
		{UserID: "u1", PhoneNumber: phone, LastReadAt: &at, UpdatedAt: at},
	}
}

type fakeUpserter struct {
	name    string
	calls   int32
	receipt *model.ReadReceipt
	err     error
	block   chan struct{} // when set, MarkRead waits here
}

func (f *fakeUpserter) Name() string { return f.name }

func (f *fakeUpserter) MarkRead(_ context.Context, _ string, phone string) (*model.ReadReceipt, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &model.ReadReceipt{PhoneNumber: phone, LastReadAt: testT0}, nil
}

func unreadMessages() []model.Message {
	return []model.Message{
		{SID: "m1", From: testOther, To: testOwn, Direction: model.DirectionReceived, Timestamp: testT0},
	}
}

func TestMarkAsReadValidatesArgs(t *testing.T) {
	s := New("", testOwn, &fakeSource{}, &fakeUpserter{name: "a"})
	if _, err := s.MarkAsRead(context.Background(), testOther); !errs.ErrArgs.Is(err) {
		t.Fatalf("empty userID must fail with invalid-argument, got %v", err)
	}
	s = New("u1", testOwn, &fakeSource{}, &fakeUpserter{name: "a"})
	if _, err := s.MarkAsRead(context.Background(), ""); !errs.ErrArgs.Is(err) {
		t.Fatalf("empty phone must fail with invalid-argument, got %v", err)
	}
}

func TestMarkAsReadNoUnreadIsNoop(t *testing.T) {
	up := &fakeUpserter{name: "a"}
	s := New("u1", testOwn, &fakeSource{}, up)
	// no messages at all: nothing to mark
	if _, err := s.MarkAsRead(context.Background(), testOther); err != nil {
		t.Fatalf("noop mark must not fail: %v", err)
	}
	if n := atomic.LoadInt32(&up.calls); n != 0 {
		t.Fatalf("noop mark issued %d upserts, want 0", n)
	}
}

// P3: a second MarkAsRead while the first is pending short-circuits.
func TestMarkAsReadSingleFlight(t *testing.T) {
	src := &fakeSource{}
	src.set(testOther, testT0.Add(time.Minute))
	up := &fakeUpserter{
		name:    "slow",
		block:   make(chan struct{}),
		receipt: &model.ReadReceipt{PhoneNumber: testOther, LastReadAt: testT0.Add(time.Minute)},
	}
	s := New("u1", testOwn, src, up)
	s.SetMessages(unreadMessages())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.MarkAsRead(context.Background(), testOther); err != nil {
			t.Errorf("first mark failed: %v", err)
		}
	}()

	// wait until the first call is inside the upserter
	for atomic.LoadInt32(&up.calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := s.MarkAsRead(context.Background(), testOther); err != nil {
		t.Fatalf("pending mark must be a noop, got error: %v", err)
	}
	close(up.block)
	<-done

	if n := atomic.LoadInt32(&up.calls); n != 1 {
		t.Fatalf("expected exactly one upsert call, got %d", n)
	}
}

// P4: after a failed mark the unread count must not drop.
func TestMarkAsReadRollback(t *testing.T) {
	src := &fakeSource{err: errs.ErrStore} // reload also fails
	up := &fakeUpserter{name: "broken", err: errs.ErrStore.WithDetail("db down")}
	s := New("u1", testOwn, src, up)
	s.SetMessages(unreadMessages())

	before := s.UnreadCount(testOther)
	if before != 1 {
		t.Fatalf("setup: unread = %d, want 1", before)
	}

	if _, err := s.MarkAsRead(context.Background(), testOther); err == nil {
		t.Fatal("mark must propagate the failure")
	}
	if after := s.UnreadCount(testOther); after < before {
		t.Fatalf("rollback lost unread state: before=%d after=%d", before, after)
	}
	if _, ok := s.ReadStates()[testOther]; ok {
		t.Fatal("optimistic entry must be deleted on rollback, not restored")
	}
}

// Rollback with a healthy store recovers the authoritative value.
func TestMarkAsReadRollbackReload(t *testing.T) {
	src := &fakeSource{}
	authoritative := testT0.Add(-time.Hour)
	src.set(testOther, authoritative)
	up := &fakeUpserter{name: "broken", err: errs.ErrStore.WithDetail("db down")}
	s := New("u1", testOwn, src, up)
	s.Load(context.Background())
	s.SetMessages(unreadMessages())

	if _, err := s.MarkAsRead(context.Background(), testOther); err == nil {
		t.Fatal("mark must propagate the failure")
	}
	got, ok := s.ReadStates()[testOther]
	if !ok || !got.Equal(authoritative) {
		t.Fatalf("reload after rollback = %v (present=%v), want %v", got, ok, authoritative)
	}
}

// Scenario C: after a confirmed mark the reloaded map drives unread to 0.
func TestMarkAsReadConfirmedReload(t *testing.T) {
	src := &fakeSource{}
	serverAt := testT0.Add(time.Minute)
	up := &fakeUpserter{
		name:    "gateway",
		receipt: &model.ReadReceipt{PhoneNumber: testOther, LastReadAt: serverAt},
	}
	src.set(testOther, serverAt) // what the reload will observe
	s := New("u1", testOwn, src, up)
	s.SetMessages(unreadMessages())

	receipt, err := s.MarkAsRead(context.Background(), testOther)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if !receipt.LastReadAt.Equal(serverAt) {
		t.Errorf("receipt carries %v, want the server instant %v", receipt.LastReadAt, serverAt)
	}
	if n := s.UnreadCount(testOther); n != 0 {
		t.Errorf("unread after confirm = %d, want 0", n)
	}
}

// Scenario D: primary signals fallback, direct store runs exactly once.
func TestChainFallsBackOnce(t *testing.T) {
	src := &fakeSource{}
	primary := &fakeUpserter{name: "gateway", err: Fallback(errs.ErrGateway.WithDetail("status 404"))}
	direct := &fakeUpserter{
		name:    "direct-store",
		receipt: &model.ReadReceipt{PhoneNumber: testOther, LastReadAt: testT0.Add(time.Minute)},
	}
	s := New("u1", testOwn, src, primary, direct)
	s.SetMessages(unreadMessages())

	receipt, err := s.MarkAsRead(context.Background(), testOther)
	if err != nil {
		t.Fatalf("fallback path failed: %v", err)
	}
	if atomic.LoadInt32(&primary.calls) != 1 || atomic.LoadInt32(&direct.calls) != 1 {
		t.Fatalf("calls primary=%d direct=%d, want 1 and 1", primary.calls, direct.calls)
	}
	if receipt.PhoneNumber != testOther {
		t.Errorf("receipt phone = %s", receipt.PhoneNumber)
	}
}

// A terminal primary error must not reach the fallback.
func TestChainStopsOnTerminalError(t *testing.T) {
	primary := &fakeUpserter{name: "gateway", err: errs.ErrArgs.WithDetail("status 400")}
	direct := &fakeUpserter{name: "direct-store"}
	s := New("u1", testOwn, &fakeSource{}, primary, direct)
	s.SetMessages(unreadMessages())

	if _, err := s.MarkAsRead(context.Background(), testOther); !errs.ErrArgs.Is(err) {
		t.Fatalf("expected the terminal error back, got %v", err)
	}
	if n := atomic.LoadInt32(&direct.calls); n != 0 {
		t.Fatalf("fallback ran %d times after a terminal error, want 0", n)
	}
}

func TestLoadFailsSoft(t *testing.T) {
	s := New("u1", testOwn, &fakeSource{err: errs.ErrStore}, &fakeUpserter{name: "a"})
	s.Load(context.Background())
	s.SetMessages(unreadMessages())
	// absent read state degrades to "everything unread", never to an error
	if n := s.UnreadCount(testOther); n != 1 {
		t.Fatalf("unread = %d, want 1 with empty read-state map", n)
	}
}

func TestManagerSessionLifecycle(t *testing.T) {
	m := NewManager(&fakeSource{}, &fakeUpserter{name: "a"})
	a := m.ForUser(context.Background(), "u1", testOwn)
	b := m.ForUser(context.Background(), "u1", testOwn)
	if a != b {
		t.Fatal("same user must reuse the session synchronizer")
	}
	c := m.ForUser(context.Background(), "u1", "+15558887777")
	if c == a {
		t.Fatal("reassigned phone must replace the session")
	}
	m.Drop("u1")
	if d := m.ForUser(context.Background(), "u1", "+15558887777"); d == c {
		t.Fatal("dropped session must not be reused")
	}
}
