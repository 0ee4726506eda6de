// Package mysql adapts the MySQL client-server wire protocol to
// backend.Adapter, via database/sql and the go-sql-driver/mysql driver —
// the teacher's own direct client-server dependency.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	tidbparser "github.com/pingcap/tidb/pkg/parser"

	"tanker/backend"
)

func init() {
	backend.Register(backend.MySQL, func() backend.Adapter { return &Adapter{} })
}

// Adapter implements backend.Adapter for MySQL/MariaDB. Statement
// splitting reuses the TiDB parser the way internal/apply splits
// multi-statement DDL before executing it one statement at a time.
type Adapter struct{}

func (a *Adapter) Name() backend.Type { return backend.MySQL }
func (a *Adapter) Kind() backend.Kind { return backend.KindClientServer }

// QuoteIdentifier backtick-quotes name, doubling any embedded backtick,
// grounded on internal/dialect/mysql.Generator.QuoteIdentifier.
func (a *Adapter) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "`", "``")
	return "`" + name + "`"
}

// QuoteString single-quotes value, doubling embedded single quotes,
// grounded on internal/dialect/mysql.Generator.QuoteString.
func (a *Adapter) QuoteString(value string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range value {
		if r == '\'' {
			b.WriteString("''")
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// RewriteSQL turns "%(name)s" kwargs syntax into "?", rewrites
// positional "%s" into "?", and lowers bare "ilike" to "like" outside
// quoted literals (MySQL has no native ILIKE), per §4.8.
func (a *Adapter) RewriteSQL(sql string) string {
	sql = rewriteNamedParams(sql)
	sql = rewritePositionalParams(sql, "?")
	return rewriteILike(sql)
}

func (a *Adapter) UpsertSupported() bool { return true } // INSERT ... ON DUPLICATE KEY UPDATE

func (a *Adapter) CreateTableIDClause(quote func(string) string) string {
	return quote("id") + " BIGINT AUTO_INCREMENT PRIMARY KEY"
}

func (a *Adapter) ArrayLiteral(literal string) string {
	// MySQL has no native array type; array columns are stored as JSON
	// text, so the "{...}" literal is rewritten into a JSON array.
	return "[" + strings.Trim(literal, "{}") + "]"
}

// BulkLoad uses a prepared multi-row INSERT; MySQL's LOAD DATA requires
// file-system or LOCAL INFILE privileges this adapter does not assume.
func (a *Adapter) BulkLoad(ctx context.Context, conn *sql.Conn, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = (&Adapter{}).QuoteIdentifier(c)
	}
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	rowPlaceholders := strings.TrimSuffix(strings.Repeat(placeholders+",", len(rows)), ",")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", (&Adapter{}).QuoteIdentifier(table), strings.Join(quotedCols, ", "), rowPlaceholders)

	args := make([]any, 0, len(rows)*len(columns))
	for _, row := range rows {
		args = append(args, row...)
	}

	_, err := conn.ExecContext(ctx, query, args...)
	return err
}

// SplitStatements splits a multi-statement DDL blob using the TiDB
// parser for quoting-aware semicolon detection, grounded on
// internal/apply.splitStatementsUsingTiDBParser.
func SplitStatements(sql string) ([]string, error) {
	p := tidbparser.New()
	nodes, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Text())
	}
	return out, nil
}

func rewriteNamedParams(sql string) string {
	var b strings.Builder
	for i := 0; i < len(sql); i++ {
		if sql[i] == '%' && i+1 < len(sql) && sql[i+1] == '(' {
			end := strings.IndexByte(sql[i:], ')')
			if end >= 0 && i+end+1 < len(sql) && sql[i+end+1] == 's' {
				b.WriteByte('?')
				i += end + 1
				continue
			}
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

func rewritePositionalParams(sql, replacement string) string {
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
			b.WriteString(replacement)
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// rewriteILike lowers a bare "ilike" keyword to "like" outside quoted
// string literals, via a single pre-scan, per §4.8.
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
