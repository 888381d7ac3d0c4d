// Package pipeline orchestrates the four-stage procurement research run:
// query recommendation, web search, product extraction, and report authoring.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sia-group/procure-agent/internal/artifact"
	"github.com/sia-group/procure-agent/internal/config"
	"github.com/sia-group/procure-agent/internal/model"
	"github.com/sia-group/procure-agent/internal/resilience"
	"github.com/sia-group/procure-agent/internal/store"
	"github.com/sia-group/procure-agent/pkg/anthropic"
	"github.com/sia-group/procure-agent/pkg/scrapegraph"
	"github.com/sia-group/procure-agent/pkg/tavily"
)

// Stage names, in execution order. Each maps to a job status while running.
const (
	StageQueries    = "query_recommendation"
	StageSearch     = "search"
	StageExtraction = "extraction"
	StageReport     = "report"
)

// Pipeline runs procurement jobs end to end.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	artifacts *artifact.Store
	llm       anthropic.Client
	search    tavily.Client
	scraper   scrapegraph.Client
	breakers  *resilience.ServiceBreakers
	retryCfg  resilience.RetryConfig
	limiter   *rate.Limiter
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	artifacts *artifact.Store,
	llm anthropic.Client,
	searchClient tavily.Client,
	scraper scrapegraph.Client,
) *Pipeline {
	rps := cfg.Pipeline.RequestsPerSecond
	if rps <= 0 {
		rps = 2.0
	}
	if cfg.Pipeline.SearchConcurrency <= 0 {
		cfg.Pipeline.SearchConcurrency = 5
	}
	if cfg.Pipeline.ScrapeConcurrency <= 0 {
		cfg.Pipeline.ScrapeConcurrency = 3
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		artifacts: artifacts,
		llm:       llm,
		search:    searchClient,
		scraper:   scraper,
		breakers: resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSecs) * time.Second,
		}),
		retryCfg: resilience.FromConfig(
			cfg.Retry.MaxAttempts,
			cfg.Retry.InitialBackoffMs,
			cfg.Retry.MaxBackoffMs,
			cfg.Retry.Multiplier,
			cfg.Retry.JitterFraction,
		),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Prepare fills job defaults from configuration and validates the result.
// Callers submit sparse jobs; everything the stages need is settled here.
func (p *Pipeline) Prepare(job *model.Job) error {
	if len(job.Websites) == 0 {
		job.Websites = model.DefaultWebsites
	}
	if job.Language == "" {
		job.Language = p.cfg.Pipeline.Language
	}
	job.Language = config.NormalizeLanguage(job.Language)
	if job.MaxKeywords == 0 {
		job.MaxKeywords = p.cfg.Pipeline.MaxKeywords
	}
	if job.ScoreThreshold == 0 {
		job.ScoreThreshold = p.cfg.Pipeline.ScoreThreshold
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	return job.Validate()
}

func (p *Pipeline) companyContext(job model.Job) string {
	if job.CompanyContext != "" {
		return job.CompanyContext
	}
	return p.cfg.Company.Context
}

// Run executes the full pipeline for one job. The job fails at the first
// stage error; completed stages keep their artifacts either way.
func (p *Pipeline) Run(ctx context.Context, job model.Job) (*model.JobResult, error) {
	if err := p.Prepare(&job); err != nil {
		return nil, err
	}

	rec, err := p.store.CreateJob(ctx, job)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create job")
	}
	job.ID = rec.ID

	log := zap.L().With(
		zap.String("job_id", job.ID),
		zap.String("product", job.ProductName),
		zap.String("country", job.Country),
	)
	log.Info("pipeline: starting job")

	result := &model.JobResult{}

	setStatus := func(status model.JobStatus) {
		if statusErr := p.store.UpdateJobStatus(ctx, job.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	// Stage tracking helper. Records the audit row, logs timing, and
	// appends the outcome to the job result.
	runStage := func(name string, fn func() (items int, artifactPath string, err error)) error {
		stage, stageErr := p.store.CreateStage(ctx, job.ID, name)
		if stageErr != nil {
			log.Warn("pipeline: failed to create stage", zap.String("stage", name), zap.Error(stageErr))
		}

		start := time.Now()
		items, artifactPath, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		sr := model.StageResult{
			Name:     name,
			Duration: duration,
			Items:    items,
			Artifact: artifactPath,
		}
		if fnErr != nil {
			sr.Status = model.StageStatusFailed
			sr.Error = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			sr.Status = model.StageStatusComplete
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Int("items", items),
			)
		}

		if stage != nil {
			_ = p.store.CompleteStage(ctx, stage.ID, &sr)
		}
		result.Stages = append(result.Stages, sr)

		if fnErr != nil {
			failErr := &StageError{Stage: name, Err: fnErr}
			if dbErr := p.store.FailJob(ctx, job.ID, failErr.Error()); dbErr != nil {
				log.Warn("pipeline: failed to record job failure", zap.Error(dbErr))
			}
			return failErr
		}
		return nil
	}

	// Stage 1: query recommendation.
	setStatus(model.JobStatusQueries)
	var queries *model.QuerySet
	if err := runStage(StageQueries, func() (int, string, error) {
		qs, qErr := p.RecommendQueries(ctx, job)
		if qErr != nil {
			return 0, "", qErr
		}
		path, wErr := p.artifacts.WriteJSON(job.ID, artifact.QueriesFile, qs)
		if wErr != nil {
			return 0, "", wErr
		}
		queries = qs
		return len(qs.Queries), path, nil
	}); err != nil {
		return result, err
	}
	result.Queries = len(queries.Queries)

	// Stage 2: search.
	setStatus(model.JobStatusSearch)
	var results *model.ResultSet
	if err := runStage(StageSearch, func() (int, string, error) {
		rs, sErr := p.Search(ctx, job, queries.Queries)
		if sErr != nil {
			return 0, "", sErr
		}
		path, wErr := p.artifacts.WriteJSON(job.ID, artifact.ResultsFile, rs)
		if wErr != nil {
			return 0, "", wErr
		}
		results = rs
		return len(rs.Results), path, nil
	}); err != nil {
		return result, err
	}
	result.Results = len(results.Results)

	// Stage 3: extraction.
	setStatus(model.JobStatusExtraction)
	var products *model.ProductSet
	if err := runStage(StageExtraction, func() (int, string, error) {
		ps, eErr := p.Extract(ctx, job, results.Results)
		if eErr != nil {
			return 0, "", eErr
		}
		path, wErr := p.artifacts.WriteJSON(job.ID, artifact.ProductsFile, ps)
		if wErr != nil {
			return 0, "", wErr
		}
		products = ps
		return ps.Extracted(), path, nil
	}); err != nil {
		return result, err
	}
	result.Products = len(products.Products)
	result.Extracted = products.Extracted()

	// Stage 4: report.
	setStatus(model.JobStatusReport)
	if err := runStage(StageReport, func() (int, string, error) {
		html, rErr := p.WriteReport(ctx, job, products)
		if rErr != nil {
			return 0, "", rErr
		}
		path, wErr := p.artifacts.WriteReport(job.ID, html)
		if wErr != nil {
			return 0, "", wErr
		}
		if !p.artifacts.ReportExists(job.ID) {
			return 0, "", ErrArtifactMissing
		}
		return 1, path, nil
	}); err != nil {
		return result, err
	}
	result.ReportPath = p.artifacts.ReportPath(job.ID)
	result.ReportURL = p.artifacts.ReportURL(job.ID)

	if err := p.store.CompleteJob(ctx, job.ID, result); err != nil {
		log.Warn("pipeline: failed to save job result", zap.Error(err))
	}

	log.Info("pipeline: job complete",
		zap.Int("queries", result.Queries),
		zap.Int("results", result.Results),
		zap.Int("extracted", result.Extracted),
		zap.String("report", result.ReportPath),
	)
	return result, nil
}
