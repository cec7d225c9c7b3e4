package conversation

import (
	"reflect"
	"testing"
	"time"

	"SMSDesk/module/inbox/model"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func recv(from, to string, at time.Time) model.Message {
	return model.Message{SID: from + at.String(), From: from, To: to, Direction: model.DirectionReceived, Body: "hi", Timestamp: at}
}

func sent(from, to string, at time.Time) model.Message {
	return model.Message{SID: from + at.String(), From: from, To: to, Direction: model.DirectionSent, Body: "yo", Timestamp: at}
}

func TestGroupScenarioA(t *testing.T) {
	msgs := []model.Message{
		recv("+15550001111", "+15559990000", t0),
		sent("+15559990000", "+15550001111", t0.Add(time.Minute)),
	}

	got := Group(msgs, "+15559990000", nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(got))
	}
	c := got[0]
	if c.PhoneNumber != "+15550001111" {
		t.Errorf("counterparty = %s", c.PhoneNumber)
	}
	if c.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1 (sent messages never count)", c.UnreadCount)
	}
	if !c.LastMessage.Timestamp.Equal(t0.Add(time.Minute)) {
		t.Errorf("last message should be the newest one")
	}
}

func TestGroupScenarioB(t *testing.T) {
	msgs := []model.Message{
		recv("+15550001111", "+15559990000", t0),
		sent("+15559990000", "+15550001111", t0.Add(time.Minute)),
	}
	reads := map[string]time.Time{"+15550001111": t0.Add(time.Second)}

	got := Group(msgs, "+15559990000", reads)
	if got[0].UnreadCount != 0 {
		t.Errorf("unread = %d, want 0 (received at t0 is before lastReadAt)", got[0].UnreadCount)
	}
}

func TestGroupDeterministic(t *testing.T) {
	msgs := []model.Message{
		recv("+15550001111", "+15559990000", t0.Add(3*time.Minute)),
		recv("+15550002222", "+15559990000", t0.Add(2*time.Minute)),
		sent("+15559990000", "+15550001111", t0.Add(time.Minute)),
		recv("+15550002222", "+15559990000", t0),
	}
	reads := map[string]time.Time{"+15550002222": t0.Add(time.Minute)}

	a := Group(msgs, "+15559990000", reads)
	b := Group(msgs, "+15559990000", reads)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two runs over identical input disagree")
	}
	if a[0].PhoneNumber != "+15550001111" || a[1].PhoneNumber != "+15550002222" {
		t.Errorf("conversations not sorted newest-first: %s, %s", a[0].PhoneNumber, a[1].PhoneNumber)
	}
	if a[1].UnreadCount != 1 {
		t.Errorf("unread for +15550002222 = %d, want 1", a[1].UnreadCount)
	}
}

func TestGroupSelfExclusion(t *testing.T) {
	own := "+15551230000"
	msgs := []model.Message{
		{SID: "self", From: own, To: own, Direction: model.DirectionReceived, Timestamp: t0},
		recv("+15550001111", own, t0),
	}

	got := Group(msgs, own, nil)
	if len(got) != 1 {
		t.Fatalf("self-conversation must be dropped, got %d conversations", len(got))
	}
	if got[0].PhoneNumber == own {
		t.Errorf("own number leaked as counterparty")
	}
}

func TestGroupNoOwnPhone(t *testing.T) {
	// Without an assigned number the from/to selection rule still applies,
	// just without the self check.
	msgs := []model.Message{
		recv("+15550001111", "+15559990000", t0),
		sent("+15559998888", "+15550001111", t0.Add(time.Minute)),
	}
	got := Group(msgs, "", nil)
	if len(got) != 1 {
		t.Fatalf("expected both messages grouped under +15550001111, got %d groups", len(got))
	}
	if got[0].UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", got[0].UnreadCount)
	}
}

func TestGroupEmpty(t *testing.T) {
	if got := Group(nil, "+15559990000", nil); len(got) != 0 {
		t.Fatalf("empty input must yield empty projection, got %d", len(got))
	}
}

func TestGroupSentOnlyThread(t *testing.T) {
	msgs := []model.Message{
		sent("+15559990000", "+15550001111", t0),
		sent("+15559990000", "+15550001111", t0.Add(time.Minute)),
	}
	got := Group(msgs, "+15559990000", nil)
	if got[0].UnreadCount != 0 {
		t.Errorf("sent-only thread unread = %d, want 0", got[0].UnreadCount)
	}
}

func TestThreadChronological(t *testing.T) {
	own := "+15559990000"
	other := "+15550001111"
	third := "+15550002222"
	msgs := []model.Message{
		sent(own, other, t0.Add(2*time.Minute)),
		recv(other, own, t0),
		recv(third, own, t0.Add(time.Minute)), // different thread
	}

	got := Thread(msgs, other, own)
	if len(got) != 2 {
		t.Fatalf("thread length = %d, want 2", len(got))
	}
	if !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Errorf("thread must be oldest-first")
	}
}

func TestUnreadFor(t *testing.T) {
	msgs := []model.Message{recv("+15550001111", "+15559990000", t0)}
	ps := Group(msgs, "+15559990000", nil)
	if n := UnreadFor(ps, "+15550001111"); n != 1 {
		t.Errorf("UnreadFor = %d, want 1", n)
	}
	if n := UnreadFor(ps, "+15550009999"); n != 0 {
		t.Errorf("unknown counterparty must report 0, got %d", n)
	}
}
