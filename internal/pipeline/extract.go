package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sia-group/procure-agent/internal/model"
	"github.com/sia-group/procure-agent/internal/resilience"
	"github.com/sia-group/procure-agent/pkg/scrapegraph"
)

// Extract scrapes the top-N search results into structured product records.
// Positions are preserved: a URL whose extraction fails or yields an invalid
// record becomes a nil entry, keeping the gap visible in the artifact and the
// report.
func (p *Pipeline) Extract(ctx context.Context, job model.Job, results []model.SearchResult) (*model.ProductSet, error) {
	log := zap.L().With(zap.String("job_id", job.ID))

	// Results arrive best score first, so truncation keeps the top
	// candidates.
	top := results
	if len(top) > job.ResultCount {
		top = top[:job.ResultCount]
	}

	products := make([]*model.Product, len(top))
	breaker := p.breakers.Get("scrapegraph")

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.ScrapeConcurrency)
	for i, result := range top {
		g.Go(func() error {
			if err := p.limiter.Wait(gCtx); err != nil {
				return nil //nolint:nilerr // position stays nil on cancellation
			}

			retryCfg := p.retryCfg
			retryCfg.OnRetry = resilience.RetryLogger("scrapegraph", "smartscraper")

			resp, err := resilience.DoVal(gCtx, retryCfg, func(ctx context.Context) (*scrapegraph.SmartScraperResponse, error) {
				return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*scrapegraph.SmartScraperResponse, error) {
					return p.scraper.SmartScraper(ctx, scrapegraph.SmartScraperRequest{
						WebsiteURL:   result.URL,
						UserPrompt:   scrapePrompt(job),
						OutputSchema: json.RawMessage(productSchemaJSON),
					})
				})
			})
			if err != nil {
				log.Warn("product extraction failed",
					zap.String("url", result.URL),
					zap.Error(err),
				)
				return nil
			}

			var product model.Product
			if err := json.Unmarshal(resp.Result, &product); err != nil {
				log.Warn("product extraction returned undecodable data",
					zap.String("url", result.URL),
					zap.Error(err),
				)
				return nil
			}
			product.PageURL = result.URL
			if product.ProductURL == "" {
				product.ProductURL = result.URL
			}
			if err := product.Validate(); err != nil {
				log.Warn("discarding invalid product record",
					zap.String("url", result.URL),
					zap.Error(err),
				)
				return nil
			}

			products[i] = &product
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := &model.ProductSet{Products: products}
	log.Info("extraction complete",
		zap.Int("pages", len(top)),
		zap.Int("extracted", set.Extracted()),
	)
	return set, nil
}
