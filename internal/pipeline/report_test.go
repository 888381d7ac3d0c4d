package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sia-group/procure-agent/internal/model"
)

const reportHTML = `<!DOCTYPE html>
<html>
<head><title>Procurement Report</title></head>
<body><h1>Executive Summary</h1></body>
</html>`

func reportProducts(t *testing.T) *model.ProductSet {
	t.Helper()
	price := 1499.00
	return &model.ProductSet{Products: []*model.Product{
		{
			PageURL:      "https://www.currys.co.uk/products/xps15",
			Title:        "Dell XPS 15 Gaming Laptop",
			ProductURL:   "https://www.currys.co.uk/products/xps15",
			CurrentPrice: price,
			Specs:        []model.ProductSpec{{Name: "CPU", Value: "i7"}},
			Rank:         1,
		},
		nil,
	}}
}

func TestWriteReport_Success(t *testing.T) {
	llm := &mockLLM{responses: []string{reportHTML}}
	p, _, _ := newTestPipeline(t, llm, &mockSearch{}, &mockScraper{})

	html, err := p.WriteReport(context.Background(), queriesJob(), reportProducts(t))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<html")
	assert.Contains(t, string(html), "Executive Summary")

	require.Len(t, llm.requests, 1)
	prompt := llm.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "Dell XPS 15 Gaming Laptop")
	assert.Contains(t, prompt, "United Kingdom")
}

func TestWriteReport_StripsCodeFence(t *testing.T) {
	llm := &mockLLM{responses: []string{"```html\n" + reportHTML + "\n```"}}
	p, _, _ := newTestPipeline(t, llm, &mockSearch{}, &mockScraper{})

	html, err := p.WriteReport(context.Background(), queriesJob(), reportProducts(t))
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(string(html), "```"))
	assert.Contains(t, string(html), "<html")
}

func TestWriteReport_RejectsNonHTML(t *testing.T) {
	llm := &mockLLM{responses: []string{"Here is a summary of the products in plain text."}}
	p, _, _ := newTestPipeline(t, llm, &mockSearch{}, &mockScraper{})

	_, err := p.WriteReport(context.Background(), queriesJob(), reportProducts(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an HTML document")
}
