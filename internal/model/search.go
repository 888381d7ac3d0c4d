package model

// SearchResult is a single candidate product listing returned for a query.
// URL is the unique key within a job's result set.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Query   string  `json:"search_query"`
}

// Validate checks a single search result record.
func (r SearchResult) Validate() error {
	if r.URL == "" {
		return invalid("url", "required")
	}
	if r.Score < 0 || r.Score > 1 {
		return invalid("score", "must be in [0, 1]")
	}
	return nil
}

// ResultSet is the deduplicated, threshold-filtered union of results across
// all of a job's queries, ordered best score first.
type ResultSet struct {
	Results []SearchResult `json:"results"`
}
