package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sia-group/procure-agent/internal/artifact"
	"github.com/sia-group/procure-agent/internal/config"
	"github.com/sia-group/procure-agent/internal/store"
	"github.com/sia-group/procure-agent/pkg/anthropic"
	"github.com/sia-group/procure-agent/pkg/scrapegraph"
	"github.com/sia-group/procure-agent/pkg/tavily"
)

// mockLLM returns canned text responses in call order, or the same error
// every time when err is set.
type mockLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	requests  []anthropic.MessageRequest
}

func (m *mockLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		m.calls++
		return nil, m.err
	}
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.responses[idx]}},
	}, nil
}

// mockSearch serves a fixed response per query string.
type mockSearch struct {
	mu        sync.Mutex
	responses map[string]*tavily.SearchResponse
	errs      map[string]error
	requests  []tavily.SearchRequest
}

func (m *mockSearch) Search(_ context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err, ok := m.errs[req.Query]; ok {
		return nil, err
	}
	if resp, ok := m.responses[req.Query]; ok {
		return resp, nil
	}
	return &tavily.SearchResponse{Query: req.Query}, nil
}

// mockScraper serves a fixed JSON result per URL.
type mockScraper struct {
	mu       sync.Mutex
	results  map[string]json.RawMessage
	errs     map[string]error
	requests []scrapegraph.SmartScraperRequest
}

func (m *mockScraper) SmartScraper(_ context.Context, req scrapegraph.SmartScraperRequest) (*scrapegraph.SmartScraperResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err, ok := m.errs[req.WebsiteURL]; ok {
		return nil, err
	}
	result, ok := m.results[req.WebsiteURL]
	if !ok {
		result = json.RawMessage(`{}`)
	}
	return &scrapegraph.SmartScraperResponse{
		RequestID: "req-1",
		Status:    "completed",
		Result:    result,
	}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Anthropic.Model = "claude-sonnet-4-5-20250929"
	cfg.Anthropic.MaxTokens = 4096
	cfg.Tavily.SearchDepth = "advanced"
	cfg.Pipeline.MaxKeywords = 10
	cfg.Pipeline.ScoreThreshold = 0.10
	cfg.Pipeline.Language = "English"
	cfg.Pipeline.SearchConcurrency = 5
	cfg.Pipeline.ScrapeConcurrency = 3
	cfg.Pipeline.RequestsPerSecond = 1000
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.InitialBackoffMs = 1
	cfg.Retry.MaxBackoffMs = 5
	cfg.Retry.Multiplier = 2.0
	cfg.Breaker.FailureThreshold = 5
	cfg.Breaker.ResetTimeoutSecs = 30
	cfg.Company.Name = "SIA Group"
	cfg.Company.Context = "SIA Group sources industrial and consumer goods."
	return cfg
}

func newTestPipeline(t *testing.T, llm anthropic.Client, search tavily.Client, scraper scrapegraph.Client) (*Pipeline, store.Store, *artifact.Store) {
	t.Helper()

	st, err := store.NewSQLite(t.TempDir() + "/jobs.db")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	artifacts := artifact.NewStore(t.TempDir())
	return New(testConfig(), st, artifacts, llm, search, scraper), st, artifacts
}

const validProductJSON = `{
	"product_title": "Dell XPS 15 Gaming Laptop",
	"product_image_url": "https://www.currys.co.uk/img/xps15.jpg",
	"product_url": "https://www.currys.co.uk/products/xps15",
	"product_current_price": 1499.00,
	"product_original_price": 1699.00,
	"product_discount_percentage": 11.8,
	"product_specs": [
		{"specification_name": "CPU", "specification_value": "Intel Core i7-13700H"},
		{"specification_name": "RAM", "specification_value": "16 GB DDR5"}
	],
	"recommendation_rank": 1,
	"recommendation_notes": ["Best balance of price and performance."]
}`
