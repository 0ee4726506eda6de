// Package postgres adapts PostgreSQL (and CockroachDB, which rides the
// same wire protocol) to backend.Adapter via jackc/pgx/v5 and pgxpool.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tanker/backend"
)

func init() {
	backend.Register(backend.PostgreSQL, func() backend.Adapter { return &Adapter{} })
	backend.Register(backend.CRDB, func() backend.Adapter { return &Adapter{Distributed: true} })
}

// Adapter implements backend.Adapter for PostgreSQL and, when
// Distributed is set, CockroachDB — same SQL surface, wrapped in
// cockroach-go's serialization-retry loop for the distributed case.
type Adapter struct {
	Distributed bool
	Pool        *pgxpool.Pool
}

func (a *Adapter) Name() backend.Type {
	if a.Distributed {
		return backend.CRDB
	}
	return backend.PostgreSQL
}

func (a *Adapter) Kind() backend.Kind {
	if a.Distributed {
		return backend.KindDistributed
	}
	return backend.KindClientServer
}

func (a *Adapter) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, `"`, `""`)
	return `"` + name + `"`
}

func (a *Adapter) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// RewriteSQL rewrites positional "%s" markers into "$1", "$2", ... pgx's
// native bind syntax; "ilike" is left untouched since PostgreSQL has a
// native ILIKE operator, per §4.8.
func (a *Adapter) RewriteSQL(sql string) string {
	var b strings.Builder
	n := 0
	inQuote := byte(0)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if inQuote != 0 {
			b.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			b.WriteByte(c)
			continue
		}
		if c == '%' && i+1 < len(sql) && sql[i+1] == 's' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (a *Adapter) UpsertSupported() bool { return true } // INSERT ... ON CONFLICT

func (a *Adapter) ArrayLiteral(literal string) string { return literal } // native array syntax

func (a *Adapter) CreateTableIDClause(quote func(string) string) string {
	return quote("id") + " BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY"
}

// BulkLoad uses PostgreSQL's COPY protocol via pgx — the backend's
// COPY-style channel §4.6 step 3 prefers over a prepared multi-row
// insert. On the distributed backend the copy runs inside
// cockroach-go's serialization-retry wrapper.
func (a *Adapter) BulkLoad(ctx context.Context, _ *sql.Conn, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if a.Pool == nil {
		return fmt.Errorf("postgres: BulkLoad requires a configured pgxpool.Pool")
	}

	copyFn := func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, &sliceRows{rows: rows, idx: -1})
		return err
	}

	if a.Distributed {
		return crdbpgx.ExecuteTx(ctx, a.Pool, pgx.TxOptions{}, copyFn)
	}

	tx, err := a.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := copyFn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// sliceRows adapts a row-major row batch to pgx.CopyFromSource.
type sliceRows struct {
	rows [][]any
	idx  int
}

func (s *sliceRows) Next() bool {
	s.idx++
	return s.idx < len(s.rows)
}

func (s *sliceRows) Values() ([]any, error) { return s.rows[s.idx], nil }
func (s *sliceRows) Err() error             { return nil }
