// Package remoteapi implements domain.RemoteStore against the remote HTTP
// API served by adapter/http.
package remoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"datausage/internal/domain"
	"datausage/internal/wire"
)

const pageSize = 500

// Client talks to the remote API. Authentication is handled by the
// underlying *http.Client.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

var (
	_ domain.RemoteStore = (*Client)(nil)
	_ domain.UsagePager  = (*Client)(nil)
)

// New creates a Client for the API rooted at baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient, logger: logger}, nil
}

// HTTPClient returns a client that authenticates with the OAuth2 client
// credentials flow when cc is set, or with a static bearer token otherwise.
func HTTPClient(ctx context.Context, token string, cc *clientcredentials.Config) *http.Client {
	var c *http.Client
	switch {
	case cc != nil:
		c = cc.Client(ctx)
	case token != "":
		c = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	default:
		c = &http.Client{}
	}
	c.Timeout = 30 * time.Second
	return c
}

// statusError is a non-2xx API response.
type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote api: %d %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.base + "/api" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e wire.Error
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &statusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func hasStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.Code == code
}

func saveFailure(reason string, err error) error {
	if hasStatus(err, http.StatusConflict) {
		return domain.SaveFailure(reason, fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err))
	}
	return domain.SaveFailure(reason, err)
}

// AccountStatus maps the API's answer to an account status. Transport
// failures report the account as temporarily unavailable.
func (c *Client) AccountStatus(ctx context.Context) (domain.AccountStatus, error) {
	var acct wire.Account
	err := c.do(ctx, http.MethodGet, "/account", nil, nil, &acct)
	switch {
	case err == nil:
		return acct.Status, nil
	case hasStatus(err, http.StatusUnauthorized), hasStatus(err, http.StatusForbidden):
		c.logger.Warn("remote api rejected credentials", "err", err)
		return domain.AccountNoAccount, nil
	case errors.As(err, new(*statusError)):
		c.logger.Warn("remote api account check failed", "err", err)
		return domain.AccountCouldNotDetermine, nil
	default:
		c.logger.Warn("remote api unreachable", "err", err)
		return domain.AccountTemporarilyUnavailable, nil
	}
}

// FetchUsage returns the remote records for days.
func (c *Client) FetchUsage(ctx context.Context, days []time.Time) ([]domain.RemoteUsageRecord, error) {
	q := url.Values{}
	for _, d := range days {
		q.Add("day", domain.DayKey(d))
	}
	var batch wire.UsageBatch
	if err := c.do(ctx, http.MethodGet, "/usage", q, nil, &batch); err != nil {
		return nil, domain.FetchFailure("fetch usage", err)
	}
	recs, err := wire.Records(batch.Records)
	if err != nil {
		return nil, domain.FetchFailure("fetch usage", err)
	}
	return recs, nil
}

// UsagePage returns one page of records after the day key after.
func (c *Client) UsagePage(ctx context.Context, after string, limit int) ([]domain.RemoteUsageRecord, string, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if after != "" {
		q.Set("after", after)
	}
	var page wire.UsagePage
	if err := c.do(ctx, http.MethodGet, "/usage/all", q, nil, &page); err != nil {
		return nil, "", domain.FetchFailure("fetch usage page", err)
	}
	recs, err := wire.Records(page.Records)
	if err != nil {
		return nil, "", domain.FetchFailure("fetch usage page", err)
	}
	return recs, page.Next, nil
}

// FetchAllUsage follows pages until the server reports no more.
func (c *Client) FetchAllUsage(ctx context.Context) ([]domain.RemoteUsageRecord, error) {
	var all []domain.RemoteUsageRecord
	after := ""
	for {
		page, next, err := c.UsagePage(ctx, after, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" || next == after {
			return all, nil
		}
		after = next
	}
}

// InsertUsage adds records.
func (c *Client) InsertUsage(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error) {
	return c.writeUsage(ctx, http.MethodPost, "insert usage", recs)
}

// UpdateUsage raises stored values.
func (c *Client) UpdateUsage(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error) {
	return c.writeUsage(ctx, http.MethodPut, "update usage", recs)
}

func (c *Client) writeUsage(ctx context.Context, method, reason string, recs []domain.RemoteUsageRecord) (bool, error) {
	var res wire.Result
	if err := c.do(ctx, method, "/usage", nil, wire.UsageBatch{Records: wire.FromUsages(recs)}, &res); err != nil {
		return false, saveFailure(reason, err)
	}
	return res.OK, nil
}

// FetchPlan returns the remote plan, or nil when none is stored.
func (c *Client) FetchPlan(ctx context.Context) (*domain.PlanRecord, error) {
	var p wire.Plan
	err := c.do(ctx, http.MethodGet, "/plan", nil, nil, &p)
	if hasStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.FetchFailure("fetch plan", err)
	}
	rec, err := p.Record()
	if err != nil {
		return nil, domain.FetchFailure("fetch plan", err)
	}
	return &rec, nil
}

// InsertPlan stores the plan.
func (c *Client) InsertPlan(ctx context.Context, p domain.PlanRecord) (bool, error) {
	return c.writePlan(ctx, http.MethodPost, "insert plan", p)
}

// UpdatePlan rewrites the plan.
func (c *Client) UpdatePlan(ctx context.Context, p domain.PlanRecord) (bool, error) {
	return c.writePlan(ctx, http.MethodPut, "update plan", p)
}

func (c *Client) writePlan(ctx context.Context, method, reason string, p domain.PlanRecord) (bool, error) {
	var res wire.Result
	if err := c.do(ctx, method, "/plan", nil, wire.FromPlan(p), &res); err != nil {
		return false, saveFailure(reason, err)
	}
	return res.OK, nil
}

// FetchSubscriptionIDs lists subscription ids.
func (c *Client) FetchSubscriptionIDs(ctx context.Context) ([]string, error) {
	var subs wire.Subscriptions
	if err := c.do(ctx, http.MethodGet, "/subscriptions", nil, nil, &subs); err != nil {
		return nil, domain.FetchFailure("fetch subscriptions", err)
	}
	return subs.IDs, nil
}

// CreateSubscription registers a subscription.
func (c *Client) CreateSubscription(ctx context.Context, recordType domain.RecordType, id string) (bool, error) {
	var res wire.Result
	body := wire.Subscription{ID: id, RecordType: recordType}
	if err := c.do(ctx, http.MethodPost, "/subscriptions", nil, body, &res); err != nil {
		return false, saveFailure("create subscription", err)
	}
	return res.OK, nil
}
