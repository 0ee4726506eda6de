package tanker

import (
	"context"
	"fmt"
	"strings"

	"tanker/schema"
	"tanker/stage"
	"tanker/view"
)

// CreateTables brings the live database in line with the Pool's
// Registry: a missing table is created with all non-o2m columns, a
// present table gets any missing columns added, unique constraints are
// (re-)declared, and declared seed rows are written through the write
// pipeline with ACL filters disabled, per §4.2/§4.8's idempotent
// table-creation contract. Every step tolerates "already exists" errors
// from a concurrent or prior run, so CreateTables is safe to call on
// every process start.
func CreateTables(ctx context.Context, c *Context, pool *Pool) error {
	quote := pool.adapter.QuoteIdentifier
	for _, t := range pool.registry.Tables() {
		createSQL := createTableSQL(t, pool, quote)
		if _, err := c.Exec(ctx, createSQL); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("tanker: create table %q: %w", t.Name, err)
		}

		for _, col := range t.Columns {
			if col.Name == "id" || col.CType == schema.CTypeO2M {
				continue
			}
			alterSQL := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quote(t.Name), quote(col.Name), stage.ColumnType(t, col.Name))
			if _, err := c.Exec(ctx, alterSQL); err != nil && !isAlreadyExists(err) {
				return fmt.Errorf("tanker: add column %q.%q: %w", t.Name, col.Name, err)
			}
		}

		for _, u := range t.Unique {
			idxSQL := uniqueIndexSQL(t, u, quote)
			if _, err := c.Exec(ctx, idxSQL); err != nil && !isAlreadyExists(err) {
				return fmt.Errorf("tanker: unique index on %q%v: %w", t.Name, u, err)
			}
		}

		if len(t.SeedValues) == 0 {
			continue
		}
		if err := seedTable(ctx, c, pool, t); err != nil {
			return fmt.Errorf("tanker: seed %q: %w", t.Name, err)
		}
	}
	return nil
}

// createTableSQL emits "CREATE TABLE IF NOT EXISTS" with every
// non-relation and m2o column plus the backend's native auto-id clause.
// o2m columns are virtual (reverse relations) and carry no column.
func createTableSQL(t *schema.Table, pool *Pool, quote func(string) string) string {
	defs := []string{pool.adapter.CreateTableIDClause(quote)}
	for _, c := range t.Columns {
		if c.Name == "id" || c.CType == schema.CTypeO2M {
			continue
		}
		def := quote(c.Name) + " " + stage.ColumnType(t, c.Name)
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.Default != nil {
			def += " DEFAULT " + *c.Default
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(t.Name), strings.Join(defs, ", "))
}

// uniqueIndexSQL names the index "unique_index_<table>", per §6's
// persisted-state naming.
func uniqueIndexSQL(t *schema.Table, cols []string, quote func(string) string) string {
	name := "unique_index_" + t.Name
	if len(name) > 63 {
		name = name[:63]
	}
	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = quote(c)
	}
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", quote(name), quote(t.Name), strings.Join(quotedCols, ", "))
}

// seedTable writes t.SeedValues through the standard write pipeline with
// access filters disabled, exercising the same apply path client writes
// use rather than a bespoke bulk-insert.
func seedTable(ctx context.Context, c *Context, pool *Pool, t *schema.Table) error {
	fieldNames, err := t.DefaultFields(pool.registry)
	if err != nil {
		return err
	}
	var fields []view.ViewField
	seenBase := map[string]bool{}
	for _, name := range fieldNames {
		base := name
		if i := strings.IndexByte(name, '.'); i >= 0 {
			base = name[:i]
		}
		if seenBase[base] {
			continue
		}
		seenBase[base] = true
		fields = append(fields, view.ViewField{Name: base, Kind: view.FieldColumn, Path: base})
	}

	v, err := view.New(t, pool.registry, fields)
	if err != nil {
		return err
	}
	pipeline, err := v.Write(view.WriteOptions{
		Rows:       t.SeedValues,
		DisableACL: true,
		Backend:    pool.adapter,
		Quote:      pool.adapter.QuoteIdentifier,
	})
	if err != nil {
		return err
	}
	_, err = c.RunWrite(ctx, pipeline)
	return err
}

// isAlreadyExists reports whether err looks like a backend's
// "already exists"/"duplicate" DDL error, which CreateTables tolerates
// to stay idempotent across concurrent or repeated runs.
func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "duplicate column") ||
		strings.Contains(msg, "duplicate key name")
}
