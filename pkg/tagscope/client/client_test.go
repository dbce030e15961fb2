package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/internal/api"
	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/models"
)

const container = `{
  "tag": [
    {"tagId": "1", "name": "Old UA Tag", "type": "ua", "paused": true, "firingTriggerId": ["10"]},
    {"tagId": "2", "name": "ga4_event", "type": "gaawe", "firingTriggerId": ["10"]}
  ],
  "trigger": [{"triggerId": "10", "name": "pv_all", "type": "PAGEVIEW"}]
}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Security.RateLimit = 0

	s, err := api.New(cfg, analysis.New(cfg.Analysis, nil), nil, nil, api.WithRequestLog(io.Discard))
	require.NoError(t, err)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"valid", "http://localhost:8080/", false},
		{"empty", "", true},
		{"relative", "localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:8080", c.baseURL)
		})
	}
}

func TestClient_AnalyzeAndFetch(t *testing.T) {
	ts := newServer(t)
	c, err := New(ts.URL, WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)

	r, err := c.Analyze(ctx, []byte(container))
	require.NoError(t, err)
	assert.Len(t, r.ID, 36)
	assert.NotEmpty(t, r.Issues)
	assert.Len(t, r.Quality.Breakdown, 3)
	assert.True(t, json.Valid(r.Raw))

	again, err := c.Report(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, again.ID)
	assert.Equal(t, r.Issues, again.Issues)

	page, err := c.Issues(ctx, r.ID, IssueQuery{Category: models.CategoryPaused, Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, page.Issues)
	assert.Equal(t, 10, page.Limit)
	for _, i := range page.Issues {
		assert.True(t, i.HasCategory(models.CategoryPaused))
	}
}

func TestClient_Errors(t *testing.T) {
	ts := newServer(t)
	c, err := New(ts.URL, WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		code int
	}{
		{"unprocessable container", func() error { _, err := c.Analyze(ctx, []byte(`[]`)); return err }, http.StatusUnprocessableEntity},
		{"unknown report", func() error {
			_, err := c.Report(ctx, "6ba7b811-9dad-11d1-80b4-00c04fd430c8")
			return err
		}, http.StatusNotFound},
		{"invalid severity", func() error {
			_, err := c.Issues(ctx, "6ba7b811-9dad-11d1-80b4-00c04fd430c8", IssueQuery{Severity: "fatal"})
			return err
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.code, apiErr.StatusCode)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer ts.Close()

	c, err := New(ts.URL)
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}
