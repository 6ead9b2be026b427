package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/profile"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS catalog_options (
	catalog TEXT    NOT NULL,
	id      INTEGER NOT NULL,
	name    TEXT    NOT NULL,
	code    TEXT    NOT NULL DEFAULT '',
	region  BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (catalog, id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_catalog_options_name ON catalog_options(catalog, lower(name));

CREATE TABLE IF NOT EXISTS investors (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	reference_code TEXT UNIQUE,
	name           TEXT     NOT NULL,
	active         BOOLEAN  NOT NULL DEFAULT 1,
	data           TEXT     NOT NULL DEFAULT '{}',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS targets (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	reference_code TEXT UNIQUE,
	name           TEXT     NOT NULL,
	active         BOOLEAN  NOT NULL DEFAULT 1,
	data           TEXT     NOT NULL DEFAULT '{}',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS matches (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	investor_id     INTEGER  NOT NULL REFERENCES investors(id) ON DELETE CASCADE,
	target_id       INTEGER  NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
	total           INTEGER  NOT NULL,
	industry_score  REAL     NOT NULL,
	geography_score REAL     NOT NULL,
	financial_score REAL     NOT NULL,
	profile_score   REAL     NOT NULL,
	timeline_score  REAL     NOT NULL,
	ownership_score REAL     NOT NULL,
	status          TEXT     NOT NULL DEFAULT 'pending',
	computed_at     DATETIME NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (investor_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_investors_active ON investors(active);
CREATE INDEX IF NOT EXISTS idx_targets_active ON targets(active);
CREATE INDEX IF NOT EXISTS idx_matches_target ON matches(target_id);
CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteProfileSelect(kind profile.Kind) string {
	return fmt.Sprintf(`SELECT id, '%s', COALESCE(reference_code, ''), name, active, data, updated_at FROM %s`,
		kind, kind.Table())
}

// GetProfile loads one investor or target.
func (s *SQLiteStore) GetProfile(ctx context.Context, kind profile.Kind, id int64) (*profile.Record, error) {
	row := s.db.QueryRowContext(ctx, sqliteProfileSelect(kind)+` WHERE id = ?`, id)
	rec, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get %s %d", kind, id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s %d", kind, id)
	}
	return rec, nil
}

// SaveProfile inserts rec, or replaces it when rec.ID is set.
func (s *SQLiteStore) SaveProfile(ctx context.Context, rec *profile.Record) (int64, error) {
	data := string(rec.Data)
	if data == "" {
		data = "{}"
	}
	now := time.Now().UTC()
	table := rec.Kind.Table()

	var res sql.Result
	var err error
	if rec.ID > 0 {
		res, err = s.db.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (id, reference_code, name, active, data, updated_at) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET reference_code = excluded.reference_code,
			   name = excluded.name, active = excluded.active, data = excluded.data, updated_at = excluded.updated_at`, table),
			rec.ID, nullIfEmpty(rec.ReferenceCode), rec.Name, rec.Active, data, now,
		)
	} else {
		res, err = s.db.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (reference_code, name, active, data, updated_at) VALUES (?, ?, ?, ?, ?)`, table),
			nullIfEmpty(rec.ReferenceCode), rec.Name, rec.Active, data, now,
		)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: save %s", rec.Kind)
	}
	if rec.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: last insert id")
		}
		rec.ID = id
	}
	rec.UpdatedAt = now
	return rec.ID, nil
}

// ActiveInvestors lists every active investor.
func (s *SQLiteStore) ActiveInvestors(ctx context.Context) ([]profile.Record, error) {
	return s.activeProfiles(ctx, profile.KindInvestor)
}

// ActiveTargets lists every active target.
func (s *SQLiteStore) ActiveTargets(ctx context.Context) ([]profile.Record, error) {
	return s.activeProfiles(ctx, profile.KindTarget)
}

func (s *SQLiteStore) activeProfiles(ctx context.Context, kind profile.Kind) ([]profile.Record, error) {
	rows, err := s.db.QueryContext(ctx, sqliteProfileSelect(kind)+` WHERE active ORDER BY id`)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list active %s", kind.Table())
	}
	defer rows.Close() //nolint:errcheck

	var out []profile.Record
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", kind)
		}
		out = append(out, *rec)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: list active %s iterate", kind.Table())
}

// ReferenceCodeExists reports whether code is already taken for kind.
func (s *SQLiteStore) ReferenceCodeExists(ctx context.Context, kind profile.Kind, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE upper(reference_code) = upper(?))`, kind.Table()),
		code,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: reference code %s", code)
	}
	return exists, nil
}

// LoadCatalog reads stored options layered over the built-in vocabularies.
func (s *SQLiteStore) LoadCatalog(ctx context.Context) (*catalog.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT catalog, id, name, code, region FROM catalog_options ORDER BY catalog, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load catalog")
	}
	defer rows.Close() //nolint:errcheck

	byName := make(map[string][]catalog.Option)
	for rows.Next() {
		var name string
		var o catalog.Option
		if err := rows.Scan(&name, &o.ID, &o.Name, &o.Code, &o.Region); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan catalog option")
		}
		byName[name] = append(byName[name], o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load catalog iterate")
	}
	return mergeCatalogs(byName), nil
}

// SeedCatalog inserts every option of snap. Existing rows are kept.
func (s *SQLiteStore) SeedCatalog(ctx context.Context, snap *catalog.Snapshot) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed catalog: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO catalog_options (`+strings.Join(catalogColumns, ", ")+`) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed catalog: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var total int64
	for _, row := range seedRows(snap) {
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed catalog %v", row[0])
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: seed catalog: commit")
	}
	return total, nil
}

// AddCatalogOption appends name to the catalog unless an option with the
// same case-insensitive name exists, and returns the stored option.
func (s *SQLiteStore) AddCatalogOption(ctx context.Context, catalogName, name string) (catalog.Option, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return catalog.Option{}, eris.New("sqlite: add catalog option: empty name")
	}
	if err := s.seedBeforeAppend(ctx, catalogName); err != nil {
		return catalog.Option{}, err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO catalog_options (catalog, id, name)
		 SELECT ?, COALESCE(MAX(id), 0) + 1, ? FROM catalog_options WHERE catalog = ?`,
		catalogName, name, catalogName,
	); err != nil {
		return catalog.Option{}, eris.Wrapf(err, "sqlite: add %s option %q", catalogName, name)
	}

	var o catalog.Option
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, code, region FROM catalog_options WHERE catalog = ? AND lower(name) = lower(?)`,
		catalogName, name,
	).Scan(&o.ID, &o.Name, &o.Code, &o.Region)
	return o, eris.Wrapf(err, "sqlite: find %s option %q", catalogName, name)
}

// seedBeforeAppend stores the built-in options of an empty catalog so a
// stored catalog never shadows its defaults with a single appended row.
func (s *SQLiteStore) seedBeforeAppend(ctx context.Context, catalogName string) error {
	defaults := builtinCatalog(catalogName)
	if defaults == nil {
		return nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM catalog_options WHERE catalog = ?`, catalogName,
	).Scan(&n); err != nil {
		return eris.Wrapf(err, "sqlite: count %s options", catalogName)
	}
	if n > 0 {
		return nil
	}
	_, err := s.SeedCatalog(ctx, defaults)
	return err
}

// UpsertMatch inserts a pending record, or refreshes the scores of an
// existing one without touching its status. It reports whether a row was
// created.
func (s *SQLiteStore) UpsertMatch(ctx context.Context, rec matching.Record) (bool, error) {
	d := rec.Dimensions
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: upsert match: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO matches (investor_id, target_id, total, industry_score, geography_score,
		   financial_score, profile_score, timeline_score, ownership_score, status, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)
		 ON CONFLICT (investor_id, target_id) DO NOTHING`,
		rec.InvestorID, rec.TargetID, rec.Total,
		d.Industry, d.Geography, d.Financial, d.Profile, d.Timeline, d.Ownership,
		rec.ComputedAt.UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert match %d/%d", rec.InvestorID, rec.TargetID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	created := n == 1

	if !created {
		if _, err := tx.ExecContext(ctx,
			`UPDATE matches SET total = ?, industry_score = ?, geography_score = ?, financial_score = ?,
			   profile_score = ?, timeline_score = ?, ownership_score = ?, computed_at = ?
			 WHERE investor_id = ? AND target_id = ?`,
			rec.Total, d.Industry, d.Geography, d.Financial, d.Profile, d.Timeline, d.Ownership,
			rec.ComputedAt.UTC(), rec.InvestorID, rec.TargetID,
		); err != nil {
			return false, eris.Wrapf(err, "sqlite: update match %d/%d", rec.InvestorID, rec.TargetID)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: upsert match: commit")
	}
	return created, nil
}

// GetMatch loads the record for one pair.
func (s *SQLiteStore) GetMatch(ctx context.Context, investorID, targetID int64) (*matching.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE investor_id = ? AND target_id = ?`,
		investorID, targetID,
	)
	rec, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get match %d/%d", investorID, targetID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get match %d/%d", investorID, targetID)
	}
	return rec, nil
}

// ListMatches returns records matching filter, best first.
func (s *SQLiteStore) ListMatches(ctx context.Context, filter matching.Filter) ([]matching.Record, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE 1=1`
	var args []any

	if filter.InvestorID > 0 {
		query += ` AND investor_id = ?`
		args = append(args, filter.InvestorID)
	}
	if filter.TargetID > 0 {
		query += ` AND target_id = ?`
		args = append(args, filter.TargetID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.MinTotal > 0 {
		query += ` AND total >= ?`
		args = append(args, filter.MinTotal)
	}
	query += ` ORDER BY total DESC, investor_id, target_id LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list matches")
	}
	defer rows.Close() //nolint:errcheck

	var out []matching.Record
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list matches iterate")
}

// SetMatchStatus records a reviewer decision on a pair.
func (s *SQLiteStore) SetMatchStatus(ctx context.Context, investorID, targetID int64, status string) error {
	if err := matching.ValidateStatus(status); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET status = ? WHERE investor_id = ? AND target_id = ?`,
		status, investorID, targetID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set match status %d/%d", investorID, targetID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: set match status %d/%d", investorID, targetID)
	}
	return nil
}
