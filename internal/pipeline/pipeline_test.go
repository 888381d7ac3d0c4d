package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sia-group/procure-agent/internal/artifact"
	"github.com/sia-group/procure-agent/internal/model"
	"github.com/sia-group/procure-agent/internal/store"
	"github.com/sia-group/procure-agent/pkg/tavily"
)

func TestRun_FullPipeline(t *testing.T) {
	queriesJSON := `{"queries": ["best gaming laptop uk", "gaming laptop deals"]}`
	llm := &mockLLM{responses: []string{queriesJSON, reportHTML}}
	search := &mockSearch{responses: map[string]*tavily.SearchResponse{
		"best gaming laptop uk": {Results: []tavily.Result{
			tavilyResult("https://www.currys.co.uk/products/xps15", 0.9),
		}},
		"gaming laptop deals": {Results: []tavily.Result{
			tavilyResult("https://www.amazon.com/legion", 0.7),
		}},
	}}
	scraper := &mockScraper{results: map[string]json.RawMessage{
		"https://www.currys.co.uk/products/xps15": json.RawMessage(validProductJSON),
		"https://www.amazon.com/legion":           json.RawMessage(validProductJSON),
	}}
	p, st, artifacts := newTestPipeline(t, llm, search, scraper)

	job := model.Job{
		ProductName: "gaming laptop",
		Country:     "United Kingdom",
		ResultCount: 5,
	}
	result, err := p.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Queries)
	assert.Equal(t, 2, result.Results)
	assert.Equal(t, 2, result.Products)
	assert.Equal(t, 2, result.Extracted)
	require.Len(t, result.Stages, 4)
	for _, stage := range result.Stages {
		assert.Equal(t, model.StageStatusComplete, stage.Status)
		assert.NotEmpty(t, stage.Artifact)
	}
	assert.Equal(t, StageQueries, result.Stages[0].Name)
	assert.Equal(t, StageReport, result.Stages[3].Name)

	// The job record reached its terminal state with the result attached.
	records, err := st.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, model.JobStatusDone, rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, result.ReportURL, rec.Result.ReportURL)

	// All four artifacts were persisted under the job directory.
	assert.True(t, artifacts.Exists(rec.ID, artifact.QueriesFile))
	assert.True(t, artifacts.Exists(rec.ID, artifact.ResultsFile))
	assert.True(t, artifacts.Exists(rec.ID, artifact.ProductsFile))
	assert.True(t, artifacts.ReportExists(rec.ID))

	html, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Executive Summary")
	assert.Equal(t, "/reports/"+rec.ID+"/"+artifact.ReportFile, result.ReportURL)

	var persisted model.QuerySet
	require.NoError(t, artifacts.ReadJSON(rec.ID, artifact.QueriesFile, &persisted))
	assert.Len(t, persisted.Queries, 2)
}

func TestRun_AppliesJobDefaults(t *testing.T) {
	llm := &mockLLM{responses: []string{`{"queries": ["q"]}`, reportHTML}}
	search := &mockSearch{responses: map[string]*tavily.SearchResponse{
		"q": {Results: []tavily.Result{tavilyResult("https://www.amazon.com/a", 0.9)}},
	}}
	scraper := &mockScraper{results: map[string]json.RawMessage{
		"https://www.amazon.com/a": json.RawMessage(validProductJSON),
	}}
	p, st, _ := newTestPipeline(t, llm, search, scraper)

	_, err := p.Run(context.Background(), model.Job{
		ProductName: "usb microphone",
		Country:     "Egypt",
		Language:    "ar",
		ResultCount: 3,
	})
	require.NoError(t, err)

	records, err := st.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	saved := records[0].Job
	assert.Equal(t, model.DefaultWebsites, saved.Websites)
	assert.Equal(t, "Arabic", saved.Language)
	assert.Equal(t, 10, saved.MaxKeywords)
	assert.Equal(t, 0.10, saved.ScoreThreshold)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestRun_InvalidJobRejectedBeforePersisting(t *testing.T) {
	p, st, _ := newTestPipeline(t, &mockLLM{}, &mockSearch{}, &mockScraper{})

	_, err := p.Run(context.Background(), model.Job{Country: "France", ResultCount: 5})
	require.Error(t, err)

	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "product_name", verr.Field)

	records, err := st.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRun_SearchFailureFailsJob(t *testing.T) {
	llm := &mockLLM{responses: []string{`{"queries": ["q1"]}`}}
	search := &mockSearch{errs: map[string]error{"q1": errors.New("upstream down")}}
	p, st, artifacts := newTestPipeline(t, llm, search, &mockScraper{})

	result, err := p.Run(context.Background(), model.Job{
		ProductName: "gaming laptop",
		Country:     "United Kingdom",
		ResultCount: 5,
	})
	require.Error(t, err)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageSearch, serr.Stage)

	// The first stage completed and its artifact survives the failure.
	require.Len(t, result.Stages, 2)
	assert.Equal(t, model.StageStatusComplete, result.Stages[0].Status)
	assert.Equal(t, model.StageStatusFailed, result.Stages[1].Status)

	records, dbErr := st.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, dbErr)
	require.Len(t, records, 1)
	assert.Equal(t, model.JobStatusFailed, records[0].Status)
	assert.Contains(t, records[0].Error, "search")

	assert.True(t, artifacts.Exists(records[0].ID, artifact.QueriesFile))
	assert.False(t, artifacts.Exists(records[0].ID, artifact.ResultsFile))
	assert.False(t, artifacts.ReportExists(records[0].ID))
}

func TestRun_NonHTMLReportFailsJob(t *testing.T) {
	llm := &mockLLM{responses: []string{`{"queries": ["q"]}`, "plain prose, not a document"}}
	search := &mockSearch{responses: map[string]*tavily.SearchResponse{
		"q": {Results: []tavily.Result{tavilyResult("https://www.amazon.com/a", 0.9)}},
	}}
	scraper := &mockScraper{results: map[string]json.RawMessage{
		"https://www.amazon.com/a": json.RawMessage(validProductJSON),
	}}
	p, st, artifacts := newTestPipeline(t, llm, search, scraper)

	_, err := p.Run(context.Background(), model.Job{
		ProductName: "gaming laptop",
		Country:     "United Kingdom",
		ResultCount: 5,
	})
	require.Error(t, err)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageReport, serr.Stage)

	records, dbErr := st.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, dbErr)
	require.Len(t, records, 1)
	assert.Equal(t, model.JobStatusFailed, records[0].Status)
	assert.True(t, artifacts.Exists(records[0].ID, artifact.ProductsFile))
	assert.False(t, artifacts.ReportExists(records[0].ID))
}

func TestRun_StageRowsRecorded(t *testing.T) {
	llm := &mockLLM{responses: []string{`{"queries": ["q"]}`, reportHTML}}
	search := &mockSearch{responses: map[string]*tavily.SearchResponse{
		"q": {Results: []tavily.Result{tavilyResult("https://www.amazon.com/a", 0.9)}},
	}}
	scraper := &mockScraper{results: map[string]json.RawMessage{
		"https://www.amazon.com/a": json.RawMessage(validProductJSON),
	}}
	p, st, _ := newTestPipeline(t, llm, search, scraper)

	result, err := p.Run(context.Background(), model.Job{
		ProductName: "gaming laptop",
		Country:     "United Kingdom",
		ResultCount: 5,
	})
	require.NoError(t, err)

	names := make([]string, 0, len(result.Stages))
	for _, s := range result.Stages {
		names = append(names, s.Name)
		assert.GreaterOrEqual(t, s.Duration, int64(0))
	}
	assert.Equal(t, []string{StageQueries, StageSearch, StageExtraction, StageReport}, names)

	records, err := st.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Result)
	assert.Len(t, records[0].Result.Stages, 4)
}
