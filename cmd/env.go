package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/classify"
	"github.com/tradeware/exportguard/internal/pipeline"
	"github.com/tradeware/exportguard/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "exportguard.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initClassifier builds the classification chain: the offline keyword
// detector first, the Anthropic model as fallback when configured.
func initClassifier() classify.Classifier {
	keyword := classify.NewKeywordClassifier()
	if !cfg.Anthropic.Enabled() {
		zap.L().Debug("EXPORTGUARD_ANTHROPIC_KEY not set, AI classification disabled")
		return keyword
	}
	ai := classify.NewAnthropicClassifier(cfg.Anthropic.Key, cfg.Anthropic.Model)
	return classify.NewChain(cfg.Anthropic.MinConfidence, keyword, ai)
}

// evalEnv holds the store and evaluator shared by the document and shipment
// commands. Callers should defer env.Close().
type evalEnv struct {
	Store     store.Store
	Evaluator *pipeline.Evaluator
}

func (e *evalEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initEvaluator(ctx context.Context) (*evalEnv, error) {
	if err := cfg.Validate("evaluate"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ev, err := pipeline.New(cfg, st, initClassifier())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &evalEnv{Store: st, Evaluator: ev}, nil
}
