package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/db"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/profile"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, opts db.PoolOptions) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, opts)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS catalog_options (
	catalog TEXT    NOT NULL,
	id      BIGINT  NOT NULL,
	name    TEXT    NOT NULL,
	code    TEXT    NOT NULL DEFAULT '',
	region  BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (catalog, id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_catalog_options_name ON catalog_options(catalog, lower(name));

CREATE TABLE IF NOT EXISTS investors (
	id             BIGSERIAL PRIMARY KEY,
	reference_code TEXT UNIQUE,
	name           TEXT        NOT NULL,
	active         BOOLEAN     NOT NULL DEFAULT true,
	data           JSONB       NOT NULL DEFAULT '{}',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS targets (
	id             BIGSERIAL PRIMARY KEY,
	reference_code TEXT UNIQUE,
	name           TEXT        NOT NULL,
	active         BOOLEAN     NOT NULL DEFAULT true,
	data           JSONB       NOT NULL DEFAULT '{}',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS matches (
	id              BIGSERIAL PRIMARY KEY,
	investor_id     BIGINT           NOT NULL REFERENCES investors(id) ON DELETE CASCADE,
	target_id       BIGINT           NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
	total           INTEGER          NOT NULL,
	industry_score  DOUBLE PRECISION NOT NULL,
	geography_score DOUBLE PRECISION NOT NULL,
	financial_score DOUBLE PRECISION NOT NULL,
	profile_score   DOUBLE PRECISION NOT NULL,
	timeline_score  DOUBLE PRECISION NOT NULL,
	ownership_score DOUBLE PRECISION NOT NULL,
	status          TEXT             NOT NULL DEFAULT 'pending',
	computed_at     TIMESTAMPTZ      NOT NULL,
	created_at      TIMESTAMPTZ      NOT NULL DEFAULT now(),
	UNIQUE (investor_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_investors_active ON investors(active);
CREATE INDEX IF NOT EXISTS idx_targets_active ON targets(active);
CREATE INDEX IF NOT EXISTS idx_matches_target ON matches(target_id);
CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// profileSelect selects the profile columns of kind's table, with the kind
// itself as the second column.
func profileSelect(kind profile.Kind) string {
	return fmt.Sprintf(`SELECT id, '%s', COALESCE(reference_code, ''), name, active, data, updated_at FROM %s`,
		kind, pgx.Identifier{kind.Table()}.Sanitize())
}

// GetProfile loads one investor or target.
func (s *PostgresStore) GetProfile(ctx context.Context, kind profile.Kind, id int64) (*profile.Record, error) {
	row := s.pool.QueryRow(ctx, profileSelect(kind)+` WHERE id = $1`, id)
	rec, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get %s %d", kind, id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s %d", kind, id)
	}
	return rec, nil
}

// SaveProfile inserts rec, or replaces it when rec.ID is set.
func (s *PostgresStore) SaveProfile(ctx context.Context, rec *profile.Record) (int64, error) {
	data := []byte(rec.Data)
	if len(data) == 0 {
		data = []byte("{}")
	}
	table := pgx.Identifier{rec.Kind.Table()}.Sanitize()

	var id int64
	var err error
	if rec.ID > 0 {
		err = s.pool.QueryRow(ctx, fmt.Sprintf(
			`INSERT INTO %s (id, reference_code, name, active, data, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())
			 ON CONFLICT (id) DO UPDATE SET reference_code = EXCLUDED.reference_code,
			   name = EXCLUDED.name, active = EXCLUDED.active, data = EXCLUDED.data, updated_at = now()
			 RETURNING id`, table),
			rec.ID, nullIfEmpty(rec.ReferenceCode), rec.Name, rec.Active, data,
		).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx, fmt.Sprintf(
			`INSERT INTO %s (reference_code, name, active, data, updated_at)
			 VALUES ($1, $2, $3, $4, now()) RETURNING id`, table),
			nullIfEmpty(rec.ReferenceCode), rec.Name, rec.Active, data,
		).Scan(&id)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save %s", rec.Kind)
	}
	rec.ID = id
	return id, nil
}

// ActiveInvestors lists every active investor.
func (s *PostgresStore) ActiveInvestors(ctx context.Context) ([]profile.Record, error) {
	return s.activeProfiles(ctx, profile.KindInvestor)
}

// ActiveTargets lists every active target.
func (s *PostgresStore) ActiveTargets(ctx context.Context) ([]profile.Record, error) {
	return s.activeProfiles(ctx, profile.KindTarget)
}

func (s *PostgresStore) activeProfiles(ctx context.Context, kind profile.Kind) ([]profile.Record, error) {
	rows, err := s.pool.Query(ctx, profileSelect(kind)+` WHERE active ORDER BY id`)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list active %s", kind.Table())
	}
	defer rows.Close()

	var out []profile.Record
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", kind)
		}
		out = append(out, *rec)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: list active %s iterate", kind.Table())
}

// ReferenceCodeExists reports whether code is already taken for kind.
func (s *PostgresStore) ReferenceCodeExists(ctx context.Context, kind profile.Kind, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE upper(reference_code) = upper($1))`,
			pgx.Identifier{kind.Table()}.Sanitize()),
		code,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: reference code %s", code)
	}
	return exists, nil
}

// LoadCatalog reads stored options layered over the built-in vocabularies.
func (s *PostgresStore) LoadCatalog(ctx context.Context) (*catalog.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT catalog, id, name, code, region FROM catalog_options ORDER BY catalog, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load catalog")
	}
	defer rows.Close()

	byName := make(map[string][]catalog.Option)
	for rows.Next() {
		var name string
		var o catalog.Option
		if err := rows.Scan(&name, &o.ID, &o.Name, &o.Code, &o.Region); err != nil {
			return nil, eris.Wrap(err, "postgres: scan catalog option")
		}
		byName[name] = append(byName[name], o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load catalog iterate")
	}
	return mergeCatalogs(byName), nil
}

// SeedCatalog inserts every option of snap. Existing rows are kept.
func (s *PostgresStore) SeedCatalog(ctx context.Context, snap *catalog.Snapshot) (int64, error) {
	n, err := db.CopyMerge(ctx, s.pool, db.Merge{
		Table:     "catalog_options",
		Columns:   catalogColumns,
		Keys:      []string{"catalog", "id"},
		Overwrite: []string{},
	}, seedRows(snap))
	return n, eris.Wrap(err, "postgres: seed catalog")
}

// AddCatalogOption appends name to the catalog unless an option with the
// same case-insensitive name exists, and returns the stored option.
func (s *PostgresStore) AddCatalogOption(ctx context.Context, catalogName, name string) (catalog.Option, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return catalog.Option{}, eris.New("postgres: add catalog option: empty name")
	}
	if err := s.seedBeforeAppend(ctx, catalogName); err != nil {
		return catalog.Option{}, err
	}

	var o catalog.Option
	err := s.pool.QueryRow(ctx,
		`INSERT INTO catalog_options (catalog, id, name)
		 SELECT $1, COALESCE(MAX(id), 0) + 1, $2 FROM catalog_options WHERE catalog = $1
		 ON CONFLICT DO NOTHING
		 RETURNING id, name, code, region`,
		catalogName, name,
	).Scan(&o.ID, &o.Name, &o.Code, &o.Region)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return o, eris.Wrapf(err, "postgres: add %s option %q", catalogName, name)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT id, name, code, region FROM catalog_options WHERE catalog = $1 AND lower(name) = lower($2)`,
		catalogName, name,
	).Scan(&o.ID, &o.Name, &o.Code, &o.Region)
	return o, eris.Wrapf(err, "postgres: find %s option %q", catalogName, name)
}

// seedBeforeAppend stores the built-in options of an empty catalog so a
// stored catalog never shadows its defaults with a single appended row.
func (s *PostgresStore) seedBeforeAppend(ctx context.Context, catalogName string) error {
	defaults := builtinCatalog(catalogName)
	if defaults == nil {
		return nil
	}
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM catalog_options WHERE catalog = $1`, catalogName,
	).Scan(&n); err != nil {
		return eris.Wrapf(err, "postgres: count %s options", catalogName)
	}
	if n > 0 {
		return nil
	}
	_, err := s.SeedCatalog(ctx, defaults)
	return err
}

// upsertMatchSQL leaves status out of the update set so reviewer decisions
// survive rescoring.
const upsertMatchSQL = `INSERT INTO matches (investor_id, target_id, total, industry_score, geography_score,
	financial_score, profile_score, timeline_score, ownership_score, status, computed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
ON CONFLICT (investor_id, target_id) DO UPDATE SET
	total = EXCLUDED.total,
	industry_score = EXCLUDED.industry_score,
	geography_score = EXCLUDED.geography_score,
	financial_score = EXCLUDED.financial_score,
	profile_score = EXCLUDED.profile_score,
	timeline_score = EXCLUDED.timeline_score,
	ownership_score = EXCLUDED.ownership_score,
	computed_at = EXCLUDED.computed_at
RETURNING (xmax = 0)`

// UpsertMatch inserts a pending record, or refreshes the scores of an
// existing one without touching its status. It reports whether a row was
// created.
func (s *PostgresStore) UpsertMatch(ctx context.Context, rec matching.Record) (bool, error) {
	d := rec.Dimensions
	var created bool
	err := s.pool.QueryRow(ctx, upsertMatchSQL,
		rec.InvestorID, rec.TargetID, rec.Total,
		d.Industry, d.Geography, d.Financial, d.Profile, d.Timeline, d.Ownership,
		rec.ComputedAt,
	).Scan(&created)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert match %d/%d", rec.InvestorID, rec.TargetID)
	}
	return created, nil
}

const matchColumns = `id, investor_id, target_id, total, industry_score, geography_score,
	financial_score, profile_score, timeline_score, ownership_score, status, computed_at, created_at`

// GetMatch loads the record for one pair.
func (s *PostgresStore) GetMatch(ctx context.Context, investorID, targetID int64) (*matching.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE investor_id = $1 AND target_id = $2`,
		investorID, targetID,
	)
	rec, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get match %d/%d", investorID, targetID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get match %d/%d", investorID, targetID)
	}
	return rec, nil
}

// ListMatches returns records matching filter, best first.
func (s *PostgresStore) ListMatches(ctx context.Context, filter matching.Filter) ([]matching.Record, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.InvestorID > 0 {
		query += ` AND investor_id = ` + arg(filter.InvestorID)
	}
	if filter.TargetID > 0 {
		query += ` AND target_id = ` + arg(filter.TargetID)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(filter.Status)
	}
	if filter.MinTotal > 0 {
		query += ` AND total >= ` + arg(filter.MinTotal)
	}
	query += ` ORDER BY total DESC, investor_id, target_id LIMIT ` + arg(limitOrDefault(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list matches")
	}
	defer rows.Close()

	var out []matching.Record
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan match")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list matches iterate")
}

// SetMatchStatus records a reviewer decision on a pair.
func (s *PostgresStore) SetMatchStatus(ctx context.Context, investorID, targetID int64, status string) error {
	if err := matching.ValidateStatus(status); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE matches SET status = $1 WHERE investor_id = $2 AND target_id = $3`,
		status, investorID, targetID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set match status %d/%d", investorID, targetID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: set match status %d/%d", investorID, targetID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProfile(row scannable) (*profile.Record, error) {
	var rec profile.Record
	var kind string
	var data []byte
	var updated time.Time
	if err := row.Scan(&rec.ID, &kind, &rec.ReferenceCode, &rec.Name, &rec.Active, &data, &updated); err != nil {
		return nil, err
	}
	rec.Kind = profile.Kind(kind)
	rec.Data = data
	rec.UpdatedAt = updated.UTC()
	return &rec, nil
}

func scanMatch(row scannable) (*matching.Record, error) {
	var rec matching.Record
	d := &rec.Dimensions
	if err := row.Scan(&rec.ID, &rec.InvestorID, &rec.TargetID, &rec.Total,
		&d.Industry, &d.Geography, &d.Financial, &d.Profile, &d.Timeline, &d.Ownership,
		&rec.Status, &rec.ComputedAt, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.ComputedAt = rec.ComputedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}
