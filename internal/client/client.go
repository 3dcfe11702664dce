// Package client is a typed HTTP client for the finboard API together with
// per-resource stores that keep a local copy of what the server returned.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finboard/internal/analytics"
	"finboard/internal/core"
	"finboard/internal/services"
)

// APIError is a non-2xx response or a body that could not be decoded.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Client talks to one finboard server on behalf of one user.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL, userID string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) UserID() string { return c.userID }

// NewTransaction is the body of a transaction create. A zero Date lets the
// server use the current time.
type NewTransaction struct {
	Amount      core.Money
	Description string
	Type        core.TransactionType
	CategoryID  string
	AccountID   string
	Date        time.Time
}

func (c *Client) Accounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	err := c.get(ctx, "/api/accounts", nil, &out)
	return out, err
}

func (c *Client) CreateAccount(ctx context.Context, name string, balance core.Money) (core.Account, error) {
	var out core.Account
	err := c.post(ctx, "/api/accounts", map[string]any{
		"name":    name,
		"balance": balance,
		"userId":  c.userID,
	}, &out)
	return out, err
}

// Categories lists the user's categories; the server seeds defaults on
// first use.
func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	err := c.get(ctx, "/api/categories", nil, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, name, icon, color string) (core.Category, error) {
	var out core.Category
	err := c.post(ctx, "/api/categories", map[string]any{
		"name":   name,
		"icon":   icon,
		"color":  color,
		"userId": c.userID,
	}, &out)
	return out, err
}

func (c *Client) Transactions(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	err := c.get(ctx, "/api/transactions", nil, &out)
	return out, err
}

// TransactionsBetween lists transactions dated within [from, to].
func (c *Client) TransactionsBetween(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	err := c.get(ctx, "/api/transactions", url.Values{
		"from": {from.Format(time.RFC3339)},
		"to":   {to.Format(time.RFC3339)},
	}, &out)
	return out, err
}

func (c *Client) CreateTransaction(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	body := map[string]any{
		"amount":      in.Amount,
		"description": in.Description,
		"type":        in.Type,
		"categoryId":  in.CategoryID,
		"accountId":   in.AccountID,
		"userId":      c.userID,
	}
	if !in.Date.IsZero() {
		body["date"] = in.Date.Format(time.RFC3339)
	}
	var out core.Transaction
	err := c.post(ctx, "/api/transactions", body, &out)
	return out, err
}

func (c *Client) Monthly(ctx context.Context, date time.Time) (analytics.MonthlySummary, error) {
	var out analytics.MonthlySummary
	err := c.get(ctx, "/api/analytics", analyticsQuery("monthly", date, 0), &out)
	return out, err
}

func (c *Client) Weekly(ctx context.Context, date time.Time) ([]analytics.DayTotal, error) {
	var out []analytics.DayTotal
	err := c.get(ctx, "/api/analytics", analyticsQuery("weekly", date, 0), &out)
	return out, err
}

// Trends returns months monthly totals ending at date's month; months <= 0
// uses the server default.
func (c *Client) Trends(ctx context.Context, date time.Time, months int) ([]analytics.MonthTotal, error) {
	var out []analytics.MonthTotal
	err := c.get(ctx, "/api/analytics", analyticsQuery("trends", date, months), &out)
	return out, err
}

func (c *Client) Dashboard(ctx context.Context, date time.Time) (services.Dashboard, error) {
	q := url.Values{}
	if !date.IsZero() {
		q.Set("date", date.Format(time.RFC3339))
	}
	var out services.Dashboard
	err := c.get(ctx, "/api/dashboard", q, &out)
	return out, err
}

func (c *Client) User(ctx context.Context, id string) (core.User, error) {
	var out core.User
	err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &out)
	return out, err
}

func analyticsQuery(kind string, date time.Time, months int) url.Values {
	q := url.Values{"type": {kind}}
	if !date.IsZero() {
		q.Set("date", date.Format(time.RFC3339))
	}
	if months > 0 {
		q.Set("months", strconv.Itoa(months))
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("userId", c.userID)
	return c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error == "" {
			envelope.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
