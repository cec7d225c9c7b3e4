package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

const apiVersion = "2010-04-01"

// Client talks to the messaging provider's REST API. Only the two
// calls the dashboard needs: list messages around a number, send one.
type Client struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	HTTP       *http.Client
}

func NewClient(accountSID, authToken, baseURL string) *Client {
	return &Client{
		AccountSID: accountSID,
		AuthToken:  authToken,
		BaseURL:    baseURL,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
	}
}

type wireMessage struct {
	Sid       string `json:"sid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Direction string `json:"direction"` // "inbound" | "outbound-api" | ...
	Body      string `json:"body"`
	NumMedia  string `json:"num_media"`
	DateSent  string `json:"date_sent"` // RFC1123Z, may be empty for queued
	Status    string `json:"status"`
}

type wirePage struct {
	Messages []wireMessage `json:"messages"`
}

// ListMessages fetches both directions for the number and merges them,
// newest first, deduped by sid.
func (c *Client) ListMessages(ctx context.Context, number string) ([]model.Message, error) {
	incoming, err := c.page(ctx, url.Values{"To": {number}, "PageSize": {"100"}})
	if err != nil {
		return nil, err
	}
	outgoing, err := c.page(ctx, url.Values{"From": {number}, "PageSize": {"100"}})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(incoming)+len(outgoing))
	out := make([]model.Message, 0, len(incoming)+len(outgoing))
	for _, w := range append(incoming, outgoing...) {
		if seen[w.Sid] {
			continue
		}
		seen[w.Sid] = true
		out = append(out, toModel(w))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Send submits one outbound message and returns the provider's record
// of it (status is usually "queued" at this point).
func (c *Client) Send(ctx context.Context, from, to, body string) (*model.Message, error) {
	form := url.Values{"From": {from}, "To": {to}, "Body": {body}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build send request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.AccountSID, c.AuthToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errs.ErrProvider.WithDetail(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.ErrProvider.WithDetail(providerError(resp))
	}
	var w wireMessage
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, errs.ErrProvider.WithDetail("bad send response: " + err.Error())
	}
	m := toModel(w)
	return &m, nil
}

func (c *Client) page(ctx context.Context, query url.Values) ([]wireMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.messagesURL()+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build list request")
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errs.ErrProvider.WithDetail(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.ErrProvider.WithDetail(providerError(resp))
	}
	var page wirePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errs.ErrProvider.WithDetail("bad list response: " + err.Error())
	}
	return page.Messages, nil
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/Accounts/%s/Messages.json", c.BaseURL, apiVersion, c.AccountSID)
}

func providerError(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Message == "" {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, body.Message)
}

func toModel(w wireMessage) model.Message {
	dir := model.DirectionSent
	if w.Direction == "inbound" {
		dir = model.DirectionReceived
	}
	media, _ := strconv.Atoi(w.NumMedia)
	ts, err := time.Parse(time.RFC1123Z, w.DateSent)
	if err != nil {
		// queued messages have no date_sent yet; keep them newest
		ts = time.Now().UTC()
	}
	return model.Message{
		SID:        w.Sid,
		From:       w.From,
		To:         w.To,
		Direction:  dir,
		Body:       w.Body,
		MediaCount: media,
		Timestamp:  ts,
		Status:     w.Status,
	}
}
