package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

func TestGatewayUpserterSuccess(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var gotMethod, gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"phone_number": "+15550001111",
			"last_read_at": at.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	g := NewGatewayUpserter(srv.URL, time.Second)
	receipt, err := g.MarkRead(context.Background(), "u1", "+15550001111")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotPath != "/api/conversations/+15550001111/mark-read" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody["userId"] != "u1" {
		t.Errorf("body userId = %q", gotBody["userId"])
	}
	if receipt.PhoneNumber != "+15550001111" || !receipt.LastReadAt.Equal(at) {
		t.Errorf("receipt = %+v", receipt)
	}
}

func TestGatewayUpserterNotFoundIsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewGatewayUpserter(srv.URL, time.Second)
	_, err := g.MarkRead(context.Background(), "u1", "+15550001111")
	if err == nil || !IsFallback(err) {
		t.Fatalf("404 must be fallback-eligible, got %v", err)
	}
}

func TestGatewayUpserterServerErrorIsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "store blew up"})
	}))
	defer srv.Close()

	g := NewGatewayUpserter(srv.URL, time.Second)
	_, err := g.MarkRead(context.Background(), "u1", "+15550001111")
	if err == nil || !IsFallback(err) {
		t.Fatalf("5xx must be fallback-eligible, got %v", err)
	}
}

func TestGatewayUpserterBadRequestIsTerminal(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusMethodNotAllowed} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rejected"})
		}))
		g := NewGatewayUpserter(srv.URL, time.Second)
		_, err := g.MarkRead(context.Background(), "u1", "+15550001111")
		srv.Close()
		if err == nil || IsFallback(err) {
			t.Fatalf("status %d must be terminal, got %v", status, err)
		}
		if !errs.ErrArgs.Is(err) {
			t.Errorf("status %d: want invalid-argument, got %v", status, err)
		}
	}
}

func TestGatewayUpserterNetworkErrorIsFallback(t *testing.T) {
	// closed server: connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	g := NewGatewayUpserter(srv.URL, 200*time.Millisecond)
	_, err := g.MarkRead(context.Background(), "u1", "+15550001111")
	if err == nil || !IsFallback(err) {
		t.Fatalf("network failure must be fallback-eligible, got %v", err)
	}
}

type fakeReadStateStore struct {
	lastAt   time.Time
	lastUser string
	calls    int
	err      error
}

func (f *fakeReadStateStore) Upsert(_ context.Context, userID, phone string, at time.Time) (*model.ConversationReadState, error) {
	f.calls++
	f.lastUser = userID
	f.lastAt = at
	if f.err != nil {
		return nil, f.err
	}
	return &model.ConversationReadState{UserID: userID, PhoneNumber: phone, LastReadAt: &at, UpdatedAt: at}, nil
}

func TestDirectUpserterStampsCallSiteInstant(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeReadStateStore{}
	d := &DirectUpserter{Store: store, Now: func() time.Time { return now }}

	receipt, err := d.MarkRead(context.Background(), "u1", "+15550001111")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !store.lastAt.Equal(now) || store.lastUser != "u1" {
		t.Errorf("store saw at=%v user=%s", store.lastAt, store.lastUser)
	}
	if !receipt.LastReadAt.Equal(now) {
		t.Errorf("receipt instant = %v, want %v", receipt.LastReadAt, now)
	}
}

func TestDirectUpserterStoreFailure(t *testing.T) {
	d := NewDirectUpserter(&fakeReadStateStore{err: errs.ErrStore})
	_, err := d.MarkRead(context.Background(), "u1", "+15550001111")
	if err == nil || IsFallback(err) {
		t.Fatalf("store failure is terminal, got %v", err)
	}
	if !errs.ErrStore.Is(err) {
		t.Errorf("want store-failure, got %v", err)
	}
}
