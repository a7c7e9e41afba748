// Package client is a typed client for the market REST API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 2
)

// Options tunes the client. Zero values select the defaults; a negative
// Retries disables retrying.
type Options struct {
	Timeout    time.Duration
	Retries    int
	LLMAPIKey  string
	HTTPClient *http.Client
}

// Client calls a running market API.
type Client struct {
	rest *resty.Client
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts Options) *Client {
	var rest *resty.Client
	if opts.HTTPClient != nil {
		rest = resty.NewWithClient(opts.HTTPClient)
	} else {
		rest = resty.New()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	switch {
	case opts.Retries == 0:
		opts.Retries = DefaultRetries
	case opts.Retries < 0:
		opts.Retries = 0
	}

	rest.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// assistant and tool calls are not idempotent
			if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
				return false
			}
			if err != nil {
				return true
			}
			switch resp.StatusCode() {
			case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return true
			}
			return false
		})
	if opts.LLMAPIKey != "" {
		rest.SetHeader("X-LLM-API-Key", opts.LLMAPIKey)
	}
	return &Client{rest: rest}
}

// Problem is an RFC 7807 error answered by the API.
type Problem struct {
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Status    int             `json:"status"`
	Detail    string          `json:"detail"`
	Instance  string          `json:"instance"`
	ErrorCode string          `json:"error_code"`
	TraceID   string          `json:"trace_id"`
	Details   json.RawMessage `json:"details,omitempty"`
}

func (p *Problem) Error() string {
	msg := p.Detail
	if msg == "" {
		msg = p.Title
	}
	if p.ErrorCode != "" {
		return fmt.Sprintf("api error %d %s: %s", p.Status, p.ErrorCode, msg)
	}
	return fmt.Sprintf("api error %d: %s", p.Status, msg)
}

// do sends req and decodes the success body into out; non-2xx responses
// become a *Problem.
func (c *Client) do(req *resty.Request, method, path string, out interface{}) error {
	problem := &Problem{}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.SetError(problem).Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if problem.Status == 0 {
			problem.Status = resp.StatusCode()
			problem.Title = http.StatusText(resp.StatusCode())
			problem.Detail = strings.TrimSpace(resp.String())
		}
		return problem
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	return c.do(c.rest.R().SetContext(ctx).SetQueryParams(query), http.MethodGet, path, out)
}

// LatestPrices fetches GET /api/latest-prices.
func (c *Client) LatestPrices(ctx context.Context) (domain.LatestPrices, error) {
	var out domain.LatestPrices
	err := c.get(ctx, "/api/latest-prices", nil, &out)
	return out, err
}

// MarketOverview fetches GET /api/market-overview.
func (c *Client) MarketOverview(ctx context.Context) (domain.MarketOverview, error) {
	var out domain.MarketOverview
	err := c.get(ctx, "/api/market-overview", nil, &out)
	return out, err
}

// Instruments fetches GET /api/instruments.
func (c *Client) Instruments(ctx context.Context) ([]domain.Instrument, error) {
	var out struct {
		Instruments []domain.Instrument `json:"instruments"`
		Count       int                 `json:"count"`
	}
	err := c.get(ctx, "/api/instruments", nil, &out)
	return out.Instruments, err
}

// ListRows fetches one page of stored rows.
func (c *Client) ListRows(ctx context.Context, filter domain.RowFilter) (domain.RowPage, error) {
	query := map[string]string{}
	if filter.Limit > 0 {
		query["limit"] = strconv.Itoa(filter.Limit)
	}
	if filter.Offset > 0 {
		query["offset"] = strconv.Itoa(filter.Offset)
	}
	for name, date := range map[string]*time.Time{
		"date_eq":  filter.DateEq,
		"date_gte": filter.DateGte,
		"date_lte": filter.DateLte,
	} {
		if date != nil {
			query[name] = date.Format("2006-01-02")
		}
	}

	var out domain.RowPage
	err := c.get(ctx, "/api/stock-datas", query, &out)
	return out, err
}

// GetRow fetches one stored row by id.
func (c *Client) GetRow(ctx context.Context, id int64) (domain.DailyRow, error) {
	var out domain.DailyRow
	err := c.get(ctx, "/api/stock-datas/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

// HistoricalAnalysis fetches the analysis of one symbol. days of zero lets
// the server pick its default window.
func (c *Client) HistoricalAnalysis(ctx context.Context, symbol string, days int) (domain.AnalysisResult, error) {
	query := map[string]string{"symbol": symbol}
	if days != 0 {
		query["days"] = strconv.Itoa(days)
	}
	var out domain.AnalysisResult
	err := c.get(ctx, "/api/historical-analysis", query, &out)
	return out, err
}

// Compare fetches the comparison of several symbols.
func (c *Client) Compare(ctx context.Context, symbols []string, days int) (domain.ComparisonResult, error) {
	query := map[string]string{"symbols": strings.Join(symbols, ",")}
	if days != 0 {
		query["days"] = strconv.Itoa(days)
	}
	var out domain.ComparisonResult
	err := c.get(ctx, "/api/compare", query, &out)
	return out, err
}

// Tools returns the raw tool definitions served at GET /tools.
func (c *Client) Tools(ctx context.Context) ([]json.RawMessage, error) {
	var out struct {
		Tools []json.RawMessage `json:"tools"`
	}
	err := c.get(ctx, "/tools", nil, &out)
	return out.Tools, err
}

// CallTool executes one tool and returns its JSON result.
func (c *Client) CallTool(ctx context.Context, name string, args interface{}) (json.RawMessage, error) {
	body := map[string]interface{}{"name": name}
	if args != nil {
		body["arguments"] = args
	}
	var out struct {
		Result json.RawMessage `json:"result"`
	}
	req := c.rest.R().SetContext(ctx).SetHeader("Content-Type", "application/json").SetBody(body)
	err := c.do(req, http.MethodPost, "/tools/call", &out)
	return out.Result, err
}

// OpenSession starts an assistant session and returns its id.
func (c *Client) OpenSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	req := c.rest.R().SetContext(ctx).SetHeader("Content-Type", "application/json").SetBody(map[string]string{})
	err := c.do(req, http.MethodPost, "/tools/sessions", &out)
	return out.SessionID, err
}

// Ask sends a question to an assistant session.
func (c *Client) Ask(ctx context.Context, sessionID, question string) (string, error) {
	var out struct {
		Answer string `json:"answer"`
	}
	req := c.rest.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"question": question})
	err := c.do(req, http.MethodPost, "/tools/sessions/"+sessionID+"/ask", &out)
	return out.Answer, err
}

// CloseSession ends an assistant session.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	return c.do(c.rest.R().SetContext(ctx), http.MethodDelete, "/tools/sessions/"+sessionID, nil)
}

// Ready fetches GET /api/health/ready and reports the readiness status.
// A server that answers "not_ready" is not an error.
func (c *Client) Ready(ctx context.Context) (string, error) {
	resp, err := c.rest.R().SetContext(ctx).Get("/api/health/ready")
	if err != nil {
		return "", fmt.Errorf("GET /api/health/ready: %w", err)
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.Status == "" {
		return "", &Problem{Status: resp.StatusCode(), Title: http.StatusText(resp.StatusCode()), Detail: strings.TrimSpace(resp.String())}
	}
	return out.Status, nil
}
