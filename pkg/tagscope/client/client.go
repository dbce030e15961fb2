// Package client is a Go client for the Tagscope HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"evalgo.org/tagscope/internal/version"
	"evalgo.org/tagscope/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  version.Get().UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Error is a non-2xx API response.
type Error struct {
	StatusCode  int               `json:"code"`
	Message     string            `json:"message"`
	Details     string            `json:"details,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("tagscope api: %d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("tagscope api: %d %s", e.StatusCode, e.Message)
}

// Breakdown is one scored dimension.
type Breakdown struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Weight    float64 `json:"weight"`
	Available bool    `json:"available"`
}

// Quality is the weighted container score.
type Quality struct {
	Total     float64        `json:"total"`
	Breakdown []Breakdown    `json:"breakdown"`
	Status    models.Status  `json:"status"`
	Message   models.Message `json:"message"`
}

// Report holds the commonly used parts of an analysis report. Raw keeps
// the complete document.
type Report struct {
	ID          string         `json:"id"`
	Quality     Quality        `json:"quality"`
	Issues      []models.Issue `json:"issues"`
	Warnings    []string       `json:"warnings"`
	Unavailable []string       `json:"unavailable"`

	Raw json.RawMessage `json:"-"`
}

// IssueQuery filters and pages the issues of a report.
type IssueQuery struct {
	Category string
	Severity models.Severity
	Limit    int
	Offset   int
}

// IssuePage is one page of issues.
type IssuePage struct {
	ReportID string         `json:"report_id"`
	Total    int            `json:"total"`
	Count    int            `json:"count"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
	Issues   []models.Issue `json:"issues"`
}

// Health is the server health document.
type Health struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	CachedReports    int    `json:"cached_reports"`
	WebSocketClients int    `json:"websocket_clients"`
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if _, err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Analyze submits a container export and returns its report.
func (c *Client) Analyze(ctx context.Context, container []byte) (*Report, error) {
	return c.report(ctx, http.MethodPost, "/api/v1/analyze", container)
}

// Report fetches a cached report.
func (c *Client) Report(ctx context.Context, id string) (*Report, error) {
	return c.report(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(id), nil)
}

// Issues fetches one page of a report's issues.
func (c *Client) Issues(ctx context.Context, id string, q IssueQuery) (*IssuePage, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Severity != "" {
		params.Set("severity", string(q.Severity))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	path := "/api/v1/reports/" + url.PathEscape(id) + "/issues"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page IssuePage
	if _, err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) report(ctx context.Context, method, path string, body []byte) (*Report, error) {
	var r Report
	raw, err := c.do(ctx, method, path, body, &r)
	if err != nil {
		return nil, err
	}
	r.Raw = raw
	return &r, nil
}

// do sends the request and decodes a 2xx body into out. It returns the
// raw body.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return data, nil
}
