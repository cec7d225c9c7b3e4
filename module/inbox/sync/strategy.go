package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	perrors "github.com/pkg/errors"

	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

// Upserter is one way to persist "this conversation was read now".
// Every strategy in a chain must be the same upsert semantically: keyed
// on (userID, phone), idempotent under retry, differing at most in
// updated_at.
type Upserter interface {
	Name() string
	MarkRead(ctx context.Context, userID, phone string) (*model.ReadReceipt, error)
}

type fallbackError struct{ err error }

func (e *fallbackError) Error() string { return e.err.Error() }
func (e *fallbackError) Unwrap() error { return e.err }

// Fallback marks err as "try the next strategy" instead of terminal.
func Fallback(err error) error { return &fallbackError{err: err} }

func IsFallback(err error) bool {
	var fe *fallbackError
	return errors.As(err, &fe)
}

// GatewayUpserter is the primary path: PATCH against the REST shim.
type GatewayUpserter struct {
	BaseURL string
	Client  *http.Client
}

func NewGatewayUpserter(baseURL string, timeout time.Duration) *GatewayUpserter {
	return &GatewayUpserter{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (g *GatewayUpserter) Name() string { return "gateway" }

func (g *GatewayUpserter) MarkRead(ctx context.Context, userID, phone string) (*model.ReadReceipt, error) {
	payload, _ := json.Marshal(map[string]string{"userId": userID})
	u := fmt.Sprintf("%s/api/conversations/%s/mark-read", g.BaseURL, url.PathEscape(phone))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(payload))
	if err != nil {
		return nil, perrors.Wrap(err, "build mark-read request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		// Unreachable or timed out: the shim may simply not be deployed.
		return nil, Fallback(errs.ErrGateway.WithDetail(err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var body struct {
			Success     bool      `json:"success"`
			PhoneNumber string    `json:"phone_number"`
			LastReadAt  time.Time `json:"last_read_at"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, Fallback(errs.ErrGateway.WithDetail("bad response: " + err.Error()))
		}
		return &model.ReadReceipt{PhoneNumber: body.PhoneNumber, LastReadAt: body.LastReadAt}, nil
	}

	var errBody struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errBody)
	if errBody.Error == "" {
		errBody.Error = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		// The shim exists and rejected the call; retrying elsewhere
		// with the same arguments cannot help.
		return nil, errs.ErrArgs.WithDetail(errBody.Error)
	default:
		// 404 means "route not deployed" here, and any other status is
		// treated the same way: eligible for the direct-store fallback.
		return nil, Fallback(errs.ErrGateway.WithDetail(
			fmt.Sprintf("status %d: %s", resp.StatusCode, errBody.Error)))
	}
}

// ReadStateStore is the slice of the conversations repo the fallback
// path needs.
type ReadStateStore interface {
	Upsert(ctx context.Context, userID, phone string, at time.Time) (*model.ConversationReadState, error)
}

// DirectUpserter is the fallback path: upsert straight into the store,
// stamping the instant measured at the call site.
type DirectUpserter struct {
	Store ReadStateStore
	Now   func() time.Time
}

func NewDirectUpserter(store ReadStateStore) *DirectUpserter {
	return &DirectUpserter{Store: store, Now: time.Now}
}

func (d *DirectUpserter) Name() string { return "direct-store" }

func (d *DirectUpserter) MarkRead(ctx context.Context, userID, phone string) (*model.ReadReceipt, error) {
	at := d.Now().UTC()
	rs, err := d.Store.Upsert(ctx, userID, phone, at)
	if err != nil {
		return nil, errs.ErrStore.WithDetail(err.Error())
	}
	out := &model.ReadReceipt{PhoneNumber: rs.PhoneNumber, LastReadAt: at}
	if rs.LastReadAt != nil {
		out.LastReadAt = *rs.LastReadAt
	}
	return out, nil
}
