package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/store"
)

// initStore validates the store settings for mode, opens the store, and
// applies migrations.
func initStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// tryStore opens the store when one is configured. Commands that can run
// offline get (nil, nil) without a database URL.
func tryStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, nil
	}
	return initStore(ctx, "match")
}

// loadSnapshot returns the catalogs commands resolve against. A configured
// catalog file wins over the store, which wins over the built-in catalogs.
func loadSnapshot(ctx context.Context, st store.Store) (*catalog.Snapshot, error) {
	if cfg.Catalog.Path != "" {
		snap, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, eris.Wrap(err, "load catalog file")
		}
		return snap, nil
	}
	if st != nil {
		snap, err := st.LoadCatalog(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load stored catalogs")
		}
		return snap, nil
	}
	zap.L().Debug("using built-in catalogs")
	return catalog.Default(), nil
}

func newScorer() (*matching.Scorer, error) {
	return matching.NewScorer(matching.WeightsFromConfig(cfg.Matching.Weights), nil)
}
