package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"news-agent/internal/config"
	"news-agent/internal/repo"
	"news-agent/internal/services/agent"
	"news-agent/internal/services/daterange"
	"news-agent/internal/services/language"
	"news-agent/internal/services/llm"
	"news-agent/internal/services/news"
)

type loader func() (*config.Config, error)

// app holds the wired pipeline and the optional audit database.
type app struct {
	agent *agent.Orchestrator
	db    *repo.DB
	runs  *repo.RunRepository
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	a := &app{}
	var opts []agent.Option
	if cfg.Database.URL != "" {
		db, err := repo.NewDB(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		runs := repo.NewRunRepository(db.DB)
		if err := runs.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db, a.runs = db, runs
		opts = append(opts, agent.WithRecorder(runs))
	} else {
		log.Info().Msg("DATABASE_URL not set, run audit log disabled")
	}

	tool := news.NewFetchTool(news.NewRetriever(cfg.News), news.WithMaxArticles(cfg.News.MaxArticles))
	a.agent = agent.NewOrchestrator(
		client,
		language.NewDetector(client),
		daterange.NewResolver(),
		tool,
		opts...,
	)

	log.Info().
		Str("llm_provider", cfg.LLM.Provider).
		Str("llm_model", cfg.LLM.Model).
		Bool("audit_log", a.runs != nil).
		Msg("News agent initialized")

	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
