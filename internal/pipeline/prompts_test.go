package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapePrompt_RankDirection(t *testing.T) {
	prompt := scrapePrompt(queriesJob())

	// Rank semantics follow the report ordering: 5 is the strongest
	// recommendation, 1 the weakest.
	assert.Contains(t, prompt, "from 1 to 5 where higher is better")
	assert.NotContains(t, prompt, "1 (best)")
	assert.Contains(t, prompt, "English")
}

func TestProductSchema_IsValidJSON(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(productSchemaJSON), &schema))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	rank, ok := props["recommendation_rank"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, rank["description"], "higher is better")
}
