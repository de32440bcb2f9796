package jisilu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmliu/cb-tracker/internal/infrastructure/feeds"
)

const (
	defaultBaseURL  = "https://www.jisilu.cn"
	preIssuancePath = "/data/cbnew/pre_list/"
	listedPath      = "/data/cbnew/cb_list_new/"
	delistedPath    = "/data/cbnew/delisted/"
)

// Client implements the feeds.Provider interface against the jisilu
// convertible-bond endpoints.
type Client struct {
	baseURL    string
	cookie     string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a jisilu client. cookie is optional; some endpoints
// return a truncated row set without a logged-in session cookie.
func NewClient(cookie string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		cookie:  cookie,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// NewClientWithBaseURL creates a client against a non-default base URL
// (useful for testing).
func NewClientWithBaseURL(baseURL, cookie string) *Client {
	c := NewClient(cookie)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

// SetBaseURL sets the base URL for the API (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// listResponse is the envelope every jisilu list endpoint shares.
type listResponse struct {
	Rows []feeds.Row `json:"rows"`
}

// PreIssuance fetches bonds that have not been issued yet.
func (c *Client) PreIssuance(ctx context.Context) ([]feeds.Row, error) {
	return c.fetchRows(ctx, http.MethodGet, preIssuancePath)
}

// Listed fetches bonds currently trading.
func (c *Client) Listed(ctx context.Context) ([]feeds.Row, error) {
	return c.fetchRows(ctx, http.MethodPost, listedPath)
}

// Delisted fetches bonds that have matured or been delisted.
func (c *Client) Delisted(ctx context.Context) ([]feeds.Row, error) {
	return c.fetchRows(ctx, http.MethodPost, delistedPath)
}

func (c *Client) fetchRows(ctx context.Context, method, path string) ([]feeds.Row, error) {
	// The ___jsl parameter is a cache buster the site requires.
	reqURL := fmt.Sprintf("%s%s?___jsl=LST___t=%d", c.baseURL, path, c.now().UnixMilli())

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", "https://www.jisilu.cn/")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "url", reqURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var listResp listResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return listResp.Rows, nil
}
