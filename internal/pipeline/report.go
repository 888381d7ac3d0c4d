package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sia-group/procure-agent/internal/model"
	"github.com/sia-group/procure-agent/internal/resilience"
	"github.com/sia-group/procure-agent/pkg/anthropic"
)

// WriteReport asks the model for the final HTML comparison report and returns
// the document bytes. The caller persists it; regenerating the report for the
// same job replaces the previous file.
func (p *Pipeline) WriteReport(ctx context.Context, job model.Job, products *model.ProductSet) ([]byte, error) {
	productsJSON, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal products")
	}

	retryCfg := p.retryCfg
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "write_report")
	breaker := p.breakers.Get("anthropic")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return p.llm.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     p.cfg.Anthropic.Model,
				MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
				System:    systemPrompt(p.companyContext(job)),
				Messages: []anthropic.Message{
					{Role: "user", Content: reportPrompt(job, string(productsJSON))},
				},
			})
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "report: create message")
	}

	html := anthropic.ExtractHTML(resp.Text())
	if !strings.Contains(strings.ToLower(html), "<html") {
		return nil, eris.New("report: response is not an HTML document")
	}

	zap.L().Info("report authored",
		zap.String("job_id", job.ID),
		zap.Int("bytes", len(html)),
	)
	return []byte(html), nil
}
