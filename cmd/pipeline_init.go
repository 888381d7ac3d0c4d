package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sia-group/procure-agent/internal/artifact"
	"github.com/sia-group/procure-agent/internal/pipeline"
	"github.com/sia-group/procure-agent/internal/store"
	anthropicpkg "github.com/sia-group/procure-agent/pkg/anthropic"
	"github.com/sia-group/procure-agent/pkg/scrapegraph"
	"github.com/sia-group/procure-agent/pkg/tavily"
)

// pipelineEnv holds the initialized store, artifact directory, and pipeline
// shared by the run/serve/jobs commands.
type pipelineEnv struct {
	Store     store.Store
	Artifacts *artifact.Store
	Pipeline  *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config, opens and migrates the store, builds the
// API clients, and assembles the pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	artifacts := artifact.NewStore(cfg.Artifacts.Dir)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	tavilyClient := tavily.NewClient(cfg.Tavily.Key,
		tavily.WithBaseURL(cfg.Tavily.BaseURL),
		tavily.WithSearchDepth(cfg.Tavily.SearchDepth),
	)
	scrapeClient := scrapegraph.NewClient(cfg.ScrapeGraph.Key,
		scrapegraph.WithBaseURL(cfg.ScrapeGraph.BaseURL),
	)

	p := pipeline.New(cfg, st, artifacts, anthropicClient, tavilyClient, scrapeClient)

	return &pipelineEnv{
		Store:     st,
		Artifacts: artifacts,
		Pipeline:  p,
	}, nil
}
