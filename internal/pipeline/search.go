package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sia-group/procure-agent/internal/model"
	"github.com/sia-group/procure-agent/internal/resilience"
	"github.com/sia-group/procure-agent/pkg/tavily"
)

// Search fans the job's queries out to the search API, then merges the
// per-query results into one deduplicated, threshold-filtered set ordered
// best score first. Individual query failures are tolerated; the stage fails
// only when every query fails or nothing survives the score filter.
func (p *Pipeline) Search(ctx context.Context, job model.Job, queries []string) (*model.ResultSet, error) {
	log := zap.L().With(zap.String("job_id", job.ID))

	domains := make([]string, len(job.Websites))
	for i, w := range job.Websites {
		domains[i] = strings.TrimPrefix(strings.TrimPrefix(w, "https://"), "www.")
	}

	// Results are collected per query index so the merged order is
	// deterministic regardless of goroutine scheduling.
	perQuery := make([][]model.SearchResult, len(queries))
	errs := make([]error, len(queries))

	breaker := p.breakers.Get("tavily")

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.SearchConcurrency)
	for i, query := range queries {
		g.Go(func() error {
			if err := p.limiter.Wait(gCtx); err != nil {
				errs[i] = err
				return nil
			}

			retryCfg := p.retryCfg
			retryCfg.OnRetry = resilience.RetryLogger("tavily", "search")

			resp, err := resilience.DoVal(gCtx, retryCfg, func(ctx context.Context) (*tavily.SearchResponse, error) {
				return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*tavily.SearchResponse, error) {
					return p.search.Search(ctx, tavily.SearchRequest{
						Query:          query,
						SearchDepth:    p.cfg.Tavily.SearchDepth,
						IncludeDomains: domains,
						MaxResults:     job.ResultCount,
					})
				})
			})
			if err != nil {
				log.Warn("search query failed",
					zap.String("query", query),
					zap.Error(err),
				)
				errs[i] = err
				return nil
			}

			results := make([]model.SearchResult, 0, len(resp.Results))
			for _, r := range resp.Results {
				sr := model.SearchResult{
					Title:   r.Title,
					URL:     r.URL,
					Content: r.Content,
					Score:   r.Score,
					Query:   query,
				}
				if err := sr.Validate(); err != nil {
					log.Warn("dropping malformed search result",
						zap.String("query", query),
						zap.String("url", r.URL),
						zap.Error(err),
					)
					continue
				}
				results = append(results, sr)
			}
			perQuery[i] = results
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "search: cancelled")
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(queries) {
		return nil, eris.Errorf("search: all %d queries failed", len(queries))
	}

	merged := mergeResults(perQuery, job.ScoreThreshold)
	if len(merged) == 0 {
		return nil, eris.Errorf("search: no results scored at or above %.2f", job.ScoreThreshold)
	}

	log.Info("search complete",
		zap.Int("queries", len(queries)),
		zap.Int("failed_queries", failed),
		zap.Int("results", len(merged)),
	)
	return &model.ResultSet{Results: merged}, nil
}

// mergeResults flattens per-query results, drops entries below the score
// threshold, and deduplicates by URL keeping the higher-scored occurrence.
// The final order is score descending so downstream top-N selection takes
// the best candidates; the sort is stable over query order, so equal scores
// rank by earliest query.
func mergeResults(perQuery [][]model.SearchResult, threshold float64) []model.SearchResult {
	var merged []model.SearchResult
	index := make(map[string]int)

	for _, results := range perQuery {
		for _, r := range results {
			if r.Score < threshold {
				continue
			}
			if at, seen := index[r.URL]; seen {
				if r.Score > merged[at].Score {
					merged[at] = r
				}
				continue
			}
			index[r.URL] = len(merged)
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}
