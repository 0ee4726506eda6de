// Package sqlite adapts the embedded-file engine to backend.Adapter via
// modernc.org/sqlite, a pure-Go driver requiring no cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"tanker/backend"
)

func init() {
	backend.Register(backend.SQLite, func() backend.Adapter { return &Adapter{} })
}

// Adapter implements backend.Adapter for the embedded-file engine. Per
// §4.8, all access to one file is serialized through a single pooled
// connection — modernc.org/sqlite does not support true concurrent
// writers.
type Adapter struct{}

func (a *Adapter) Name() backend.Type { return backend.SQLite }
func (a *Adapter) Kind() backend.Kind { return backend.KindEmbedded }

func (a *Adapter) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, `"`, `""`)
	return `"` + name + `"`
}

func (a *Adapter) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// RewriteSQL rewrites "%(name)s" into ":name", positional "%s" into "?", and
// lowers "ilike" to "like" (SQLite's LIKE is already case-insensitive
// for ASCII, so this is semantically a no-op rewrite, not a behavior
// change), per §4.8.
func (a *Adapter) RewriteSQL(sql string) string {
	sql = rewriteNamedParams(sql)
	sql = rewritePositionalParams(sql)
	return rewriteILike(sql)
}

func (a *Adapter) UpsertSupported() bool { return true } // INSERT ... ON CONFLICT (SQLite >= 3.24)

func (a *Adapter) CreateTableIDClause(quote func(string) string) string {
	return quote("id") + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (a *Adapter) ArrayLiteral(literal string) string {
	// SQLite has no array type; arrays are stored as JSON text.
	return "[" + strings.Trim(literal, "{}") + "]"
}

// BulkLoad executes a prepared single-row INSERT once per row inside one
// transaction; SQLite has no COPY-style bulk channel.
func (a *Adapter) BulkLoad(ctx context.Context, conn *sql.Conn, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = (&Adapter{}).QuoteIdentifier(c)
	}
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", (&Adapter{}).QuoteIdentifier(table), strings.Join(quotedCols, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func rewriteNamedParams(sql string) string {
	var b strings.Builder
	for i := 0; i < len(sql); i++ {
		if sql[i] == '%' && i+1 < len(sql) && sql[i+1] == '(' {
			end := strings.IndexByte(sql[i:], ')')
			if end >= 0 && i+end+1 < len(sql) && sql[i+end+1] == 's' {
				b.WriteString(":" + sql[i+2:i+end])
				i += end + 1
				continue
			}
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

func rewritePositionalParams(sql string) string {
	var b strings.Builder
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
			b.WriteByte('?')
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func rewriteILike(sql string) string {
	var b strings.Builder
	inQuote := byte(0)
	i := 0
	for i < len(sql) {
		c := sql[i]
		if inQuote != 0 {
			b.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
			i++
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			b.WriteByte(c)
			i++
			continue
		}
		if strings.HasPrefix(strings.ToLower(sql[i:]), "ilike") && wordBoundary(sql, i, i+5) {
			b.WriteString("like")
			i += 5
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 && isIdentByte(s[start-1]) {
		return false
	}
	if end < len(s) && isIdentByte(s[end]) {
		return false
	}
	return true
}

func isIdentByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
