package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"optionsMirror/internal/model"
)

// Page is one response of the indexer events endpoint.
type Page struct {
	Data    []model.RawEvent `json:"data"`
	NextURL *string          `json:"next_url"`
	// Message is set instead of data when the indexer throttles the caller.
	Message *string `json:"message"`
}

// Throttled reports whether the page is a rate-limit signal rather than data.
func (p Page) Throttled() bool {
	return p.Message != nil && *p.Message != ""
}

// Query selects the first page of a crawl.
type Query struct {
	FromAddress string
	FromBlock   uint64
	ToBlock     *uint64
	Limit       int
}

// Client fetches event pages from the indexer REST API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse indexer url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("indexer url must be absolute: %q", baseURL)
	}
	return &Client{
		baseURL: u,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// FirstPageURL builds the URL of the first page for q.
func (c *Client) FirstPageURL(q Query) string {
	u := *c.baseURL
	params := u.Query()
	params.Set("from_address", q.FromAddress)
	params.Set("from_block", strconv.FormatUint(q.FromBlock, 10))
	if q.ToBlock != nil {
		params.Set("to_block", strconv.FormatUint(*q.ToBlock, 10))
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	u.RawQuery = params.Encode()
	return u.String()
}

// Resolve turns a next_url value into an absolute URL.
func (c *Client) Resolve(next string) (string, error) {
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse next_url: %w", err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// Get fetches one page. A throttled response is returned as a page with Message
// set; any other non-200 status or undecodable body is an error.
func (c *Client) Get(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("get page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("read response: %w", err)
	}

	var page Page
	decodeErr := json.Unmarshal(body, &page)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && page.Throttled() {
			return Page{Message: page.Message}, nil
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			msg := resp.Status
			return Page{Message: &msg}, nil
		}
		return Page{}, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 256))
	}
	if decodeErr != nil {
		return Page{}, fmt.Errorf("parse response: %w", decodeErr)
	}
	return page, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
