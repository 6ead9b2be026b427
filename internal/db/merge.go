// Package db provides shared Postgres helpers: pool construction and staged
// COPY merges.
package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Merge describes how staged rows land in a table.
type Merge struct {
	Table   string   // optionally schema-qualified
	Columns []string // column order of each staged row
	Keys    []string // unique constraint the merge resolves against

	// Overwrite lists the columns replaced when a key collides. Nil means
	// every non-key column; an empty slice leaves existing rows untouched.
	Overwrite []string
}

func (m Merge) check() error {
	switch {
	case m.Table == "":
		return eris.New("db: merge: no table")
	case len(m.Columns) == 0:
		return eris.New("db: merge: no columns")
	case len(m.Keys) == 0:
		return eris.New("db: merge: no conflict keys")
	}
	return nil
}

func (m Merge) overwriteColumns() []string {
	if m.Overwrite != nil {
		return m.Overwrite
	}
	keys := make(map[string]struct{}, len(m.Keys))
	for _, k := range m.Keys {
		keys[k] = struct{}{}
	}
	var cols []string
	for _, c := range m.Columns {
		if _, ok := keys[c]; !ok {
			cols = append(cols, c)
		}
	}
	return cols
}

func (m Merge) stagingTable() string {
	return "_stage_" + strings.ReplaceAll(m.Table, ".", "_")
}

// statement renders the INSERT ... SELECT that moves staged rows into Table.
func (m Merge) statement() string {
	cols := identList(m.Columns)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(m.Table))
	b.WriteString(" (" + cols + ") SELECT " + cols + " FROM ")
	b.WriteString(pgx.Identifier{m.stagingTable()}.Sanitize())
	b.WriteString(" ON CONFLICT (" + identList(m.Keys) + ") ")

	over := m.overwriteColumns()
	if len(over) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	b.WriteString("DO UPDATE SET ")
	for i, c := range over {
		if i > 0 {
			b.WriteString(", ")
		}
		q := pgx.Identifier{c}.Sanitize()
		b.WriteString(q + " = EXCLUDED." + q)
	}
	return b.String()
}

// CopyMerge stages rows with COPY into a transaction-scoped temp table shaped
// like m.Table and merges them in a single statement. It returns the number
// of rows inserted or updated.
func CopyMerge(ctx context.Context, pool Pool, m Merge, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := m.check(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: merge: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := m.stagingTable()
	if _, err := tx.Exec(ctx,
		"CREATE TEMP TABLE "+pgx.Identifier{stage}.Sanitize()+
			" (LIKE "+tableIdent(m.Table)+" INCLUDING DEFAULTS) ON COMMIT DROP",
	); err != nil {
		return 0, eris.Wrapf(err, "db: merge: stage %s", m.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, m.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: copy %d rows into %s", len(rows), stage)
	}

	tag, err := tx.Exec(ctx, m.statement())
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge: apply to %s", m.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: merge: commit tx")
	}
	return tag.RowsAffected(), nil
}

// tableIdent quotes a table name, splitting an optional schema prefix.
func tableIdent(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
