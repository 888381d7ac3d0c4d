package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sia-group/procure-agent/internal/model"
	"github.com/sia-group/procure-agent/internal/resilience"
	"github.com/sia-group/procure-agent/pkg/anthropic"
)

// RecommendQueries asks the model for up to MaxKeywords search queries
// tailored to the job's product, country, language, and target stores.
func (p *Pipeline) RecommendQueries(ctx context.Context, job model.Job) (*model.QuerySet, error) {
	retryCfg := p.retryCfg
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "recommend_queries")
	breaker := p.breakers.Get("anthropic")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return p.llm.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     p.cfg.Anthropic.Model,
				MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
				System:    systemPrompt(p.companyContext(job)),
				Messages: []anthropic.Message{
					{Role: "user", Content: queriesPrompt(job)},
				},
			})
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "queries: create message")
	}

	var qs model.QuerySet
	if err := json.Unmarshal([]byte(anthropic.ExtractJSON(resp.Text())), &qs); err != nil {
		return nil, eris.Wrap(err, "queries: decode response")
	}
	if err := qs.Validate(job.MaxKeywords); err != nil {
		return nil, err
	}

	zap.L().Info("queries recommended",
		zap.String("job_id", job.ID),
		zap.Int("count", len(qs.Queries)),
	)
	return &qs, nil
}
