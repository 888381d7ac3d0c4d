// Package scrapegraph provides a client for the ScrapeGraphAI SmartScraper API,
// which extracts structured data from a web page given a natural-language
// prompt and an output schema.
package scrapegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.scrapegraphai.com/v1"

// Client defines the ScrapeGraphAI operations used by the pipeline.
type Client interface {
	SmartScraper(ctx context.Context, req SmartScraperRequest) (*SmartScraperResponse, error)
}

// SmartScraperRequest is the body for POST /smartscraper.
type SmartScraperRequest struct {
	WebsiteURL   string          `json:"website_url"`
	UserPrompt   string          `json:"user_prompt"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}

// SmartScraperResponse is the response from POST /smartscraper. Result holds
// the extracted data shaped by the request's output schema.
type SmartScraperResponse struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
	Error     string          `json:"error,omitempty"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scrapegraph: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a ScrapeGraphAI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SmartScraper(ctx context.Context, req SmartScraperRequest) (*SmartScraperResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrapegraph: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/smartscraper", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrapegraph: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("SGAI-APIKEY", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "scrapegraph: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "scrapegraph: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result SmartScraperResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "scrapegraph: unmarshal response")
	}
	if result.Status == "failed" {
		return nil, eris.Errorf("scrapegraph: request %s failed: %s", result.RequestID, result.Error)
	}

	return &result, nil
}
