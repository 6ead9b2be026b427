// Package store persists profiles, catalog options, and match records.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/config"
	"github.com/sells-group/dealmatch/internal/db"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/profile"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for matching.
type Store interface {
	// Profiles
	GetProfile(ctx context.Context, kind profile.Kind, id int64) (*profile.Record, error)
	SaveProfile(ctx context.Context, rec *profile.Record) (int64, error)
	ActiveInvestors(ctx context.Context) ([]profile.Record, error)
	ActiveTargets(ctx context.Context) ([]profile.Record, error)
	ReferenceCodeExists(ctx context.Context, kind profile.Kind, code string) (bool, error)

	// Catalogs
	LoadCatalog(ctx context.Context) (*catalog.Snapshot, error)
	SeedCatalog(ctx context.Context, snap *catalog.Snapshot) (int64, error)
	AddCatalogOption(ctx context.Context, catalogName, name string) (catalog.Option, error)

	// Matches
	UpsertMatch(ctx context.Context, rec matching.Record) (bool, error)
	GetMatch(ctx context.Context, investorID, targetID int64) (*matching.Record, error)
	ListMatches(ctx context.Context, filter matching.Filter) ([]matching.Record, error)
	SetMatchStatus(ctx context.Context, investorID, targetID int64, status string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "":
		return NewPostgres(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// mergeCatalogs layers stored options over the built-in vocabularies. A
// catalog with no stored rows keeps its defaults.
func mergeCatalogs(rows map[string][]catalog.Option) *catalog.Snapshot {
	snap := catalog.Default()
	for name, opts := range rows {
		snap = snap.With(catalog.New(name, opts))
	}
	return snap
}

// builtinCatalog returns a snapshot holding only the built-in catalog name,
// or nil when there is no such built-in.
func builtinCatalog(name string) *catalog.Snapshot {
	def := catalog.Default()
	if !def.Has(name) {
		return nil
	}
	return catalog.NewSnapshot([]*catalog.Catalog{def.Get(name)}, nil)
}

// seedRows flattens a snapshot into catalog_options rows.
func seedRows(snap *catalog.Snapshot) [][]any {
	var rows [][]any
	for _, name := range snap.Names() {
		for _, o := range snap.Get(name).Options() {
			rows = append(rows, []any{name, o.ID, o.Name, o.Code, o.Region})
		}
	}
	return rows
}

var catalogColumns = []string{"catalog", "id", "name", "code", "region"}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 500
	}
	return n
}
