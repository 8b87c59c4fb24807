package main

import (
	"context"

	"github.com/furgoplaza/enrich-cli/internal/enrich"
	"github.com/furgoplaza/enrich-cli/internal/extract"
	"github.com/furgoplaza/enrich-cli/internal/store"
	"github.com/furgoplaza/enrich-cli/internal/valuation"
	"github.com/furgoplaza/enrich-cli/pkg/anthropic"
	"github.com/furgoplaza/enrich-cli/pkg/jina"
	"github.com/furgoplaza/enrich-cli/pkg/places"
)

// env holds the wired pipeline dependencies shared by commands.
type env struct {
	store  store.Store
	runner *enrich.Runner
}

func (e *env) Close() {
	e.store.Close()
}

// initEnv opens the store and wires the pipeline from config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}

	anthropicClient := anthropic.NewClient(cfg.Anthropic.Key)
	jinaClient := jina.NewClient(cfg.Jina.Key,
		jina.WithBaseURL(cfg.Jina.BaseURL),
		jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL),
	)

	var placesClient places.Client
	if cfg.Places.Key != "" {
		placesClient = places.NewClient(cfg.Places.Key,
			places.WithBaseURL(cfg.Places.BaseURL),
			places.WithQPS(cfg.Places.QPS),
		)
	}

	provider, err := extract.NewConfigProvider(st)
	if err != nil {
		st.Close()
		return nil, err
	}
	engine := extract.NewEngine(anthropicClient, provider)

	assembler := valuation.NewAssembler(
		valuation.NewJinaFinder(jinaClient),
		cfg.Valuation.Marketplaces,
		cfg.Valuation.MaxComparables,
	)

	runner := enrich.NewRunner(st, engine, jinaClient, placesClient, assembler, cfg.Evidence, cfg.Enrich)

	return &env{store: st, runner: runner}, nil
}
