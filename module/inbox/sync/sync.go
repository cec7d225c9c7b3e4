package sync

import (
	"context"
	stdsync "sync"
	"time"

	"SMSDesk/logger"
	"SMSDesk/module/inbox/conversation"
	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

// Source loads the authoritative read-state rows for a user.
type Source interface {
	ListByUser(ctx context.Context, userID string) ([]model.ConversationReadState, error)
}

// Synchronizer owns the read/unread state one dashboard session sees.
// Per counterparty it walks Idle -> Pending -> Confirmed | RolledBack,
// back to Idle; the inflight set is the Pending marker.
//
// The optimistic instant is only ever displayed; the value kept after a
// confirm comes from the server, which stays the source of truth.
type Synchronizer struct {
	userID   string
	ownPhone string
	source   Source
	chain    []Upserter
	now      func() time.Time

	mu       stdsync.Mutex
	reads    map[string]time.Time
	inflight map[string]bool
	messages []model.Message
}

func New(userID, ownPhone string, source Source, chain ...Upserter) *Synchronizer {
	return &Synchronizer{
		userID:   userID,
		ownPhone: ownPhone,
		source:   source,
		chain:    chain,
		now:      time.Now,
		reads:    make(map[string]time.Time),
		inflight: make(map[string]bool),
	}
}

// Load bulk-fetches the read-state map. Fails soft: on error the map is
// left empty and every received message counts as unread, which is
// always safe to display.
func (s *Synchronizer) Load(ctx context.Context) {
	m, err := s.fetch(ctx)
	if err != nil {
		logger.Warnf("[sync] load read states user=%s: %v", s.userID, err)
		m = make(map[string]time.Time)
	}
	s.mu.Lock()
	s.reads = m
	s.mu.Unlock()
}

func (s *Synchronizer) fetch(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.source.ListByUser(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	m := make(map[string]time.Time, len(rows))
	for _, rs := range rows {
		if rs.LastReadAt != nil {
			m[rs.PhoneNumber] = *rs.LastReadAt
		}
	}
	return m, nil
}

// SetMessages replaces the message snapshot projections derive from.
func (s *Synchronizer) SetMessages(messages []model.Message) {
	s.mu.Lock()
	s.messages = messages
	s.mu.Unlock()
}

// Projections recomputes the conversation list from the current
// snapshot and read-state map.
func (s *Synchronizer) Projections() []model.ConversationProjection {
	s.mu.Lock()
	msgs := s.messages
	reads := s.readsCopy()
	s.mu.Unlock()
	return conversation.Group(msgs, s.ownPhone, reads)
}

func (s *Synchronizer) UnreadCount(phone string) int {
	return conversation.UnreadFor(s.Projections(), phone)
}

// ReadStates returns a copy of the current map.
func (s *Synchronizer) ReadStates() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readsCopy()
}

func (s *Synchronizer) readsCopy() map[string]time.Time {
	m := make(map[string]time.Time, len(s.reads))
	for k, v := range s.reads {
		m[k] = v
	}
	return m
}

// MarkAsRead runs the mark-as-read workflow for one counterparty:
// optimistic apply, exactly one upsert attempt through the strategy
// chain, full reload on success, rollback by deletion on failure.
//
// A call while the pair is already Pending is a no-op and returns the
// optimistic value; a call with nothing unread is a no-op and returns
// the current value. Neither issues a network call.
func (s *Synchronizer) MarkAsRead(ctx context.Context, phone string) (*model.ReadReceipt, error) {
	if s.userID == "" || phone == "" {
		return nil, errs.ErrArgs.WithDetail("userID and phone are required")
	}

	s.mu.Lock()
	if s.inflight[phone] {
		r := &model.ReadReceipt{PhoneNumber: phone, LastReadAt: s.reads[phone]}
		s.mu.Unlock()
		return r, nil
	}
	unread := conversation.UnreadFor(conversation.Group(s.messages, s.ownPhone, s.reads), phone)
	if unread == 0 {
		r := &model.ReadReceipt{PhoneNumber: phone, LastReadAt: s.reads[phone]}
		s.mu.Unlock()
		return r, nil
	}
	s.reads[phone] = s.now().UTC()
	s.inflight[phone] = true
	s.mu.Unlock()

	receipt, err := s.runChain(ctx, phone)

	if err != nil {
		// RolledBack: drop the optimistic entry entirely, then try to
		// recover the authoritative value. If that also fails the pair
		// stays "never read" until the next successful sync.
		s.mu.Lock()
		delete(s.reads, phone)
		s.mu.Unlock()
		if m, rerr := s.fetch(ctx); rerr == nil {
			s.mu.Lock()
			s.reads = m
			s.mu.Unlock()
		} else {
			logger.Warnf("[sync] rollback reload user=%s: %v", s.userID, rerr)
		}
		s.clearInflight(phone)
		return nil, err
	}

	// Confirmed: reload the whole map, not just this entry, so writes
	// from other sessions are picked up too.
	if m, rerr := s.fetch(ctx); rerr == nil {
		s.mu.Lock()
		s.reads = m
		s.mu.Unlock()
	} else {
		logger.Warnf("[sync] confirm reload user=%s: %v", s.userID, rerr)
		s.mu.Lock()
		s.reads[phone] = receipt.LastReadAt
		s.mu.Unlock()
	}
	s.clearInflight(phone)
	return receipt, nil
}

func (s *Synchronizer) runChain(ctx context.Context, phone string) (*model.ReadReceipt, error) {
	var lastErr error
	for _, u := range s.chain {
		receipt, err := u.MarkRead(ctx, s.userID, phone)
		if err == nil {
			return receipt, nil
		}
		lastErr = err
		if !IsFallback(err) {
			return nil, err
		}
		logger.Warnf("[sync] strategy %s failed for %s, trying next: %v", u.Name(), phone, err)
	}
	if lastErr == nil {
		lastErr = errs.ErrStore.WithDetail("no upsert strategy configured")
	}
	return nil, lastErr
}

func (s *Synchronizer) clearInflight(phone string) {
	s.mu.Lock()
	delete(s.inflight, phone)
	s.mu.Unlock()
}

// Manager hands out one Synchronizer per signed-in user and tears it
// down on logout. Explicit container instead of package globals.
type Manager struct {
	mu       stdsync.Mutex
	source   Source
	chain    []Upserter
	sessions map[string]*Synchronizer
}

func NewManager(source Source, chain ...Upserter) *Manager {
	return &Manager{
		source:   source,
		chain:    chain,
		sessions: make(map[string]*Synchronizer),
	}
}

// ForUser returns the session synchronizer, creating and loading it on
// first use. A changed phone assignment replaces the session.
func (m *Manager) ForUser(ctx context.Context, userID, ownPhone string) *Synchronizer {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok && s.ownPhone == ownPhone {
		m.mu.Unlock()
		return s
	}
	s = New(userID, ownPhone, m.source, m.chain...)
	m.sessions[userID] = s
	m.mu.Unlock()

	s.Load(ctx)
	return s
}

func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}
