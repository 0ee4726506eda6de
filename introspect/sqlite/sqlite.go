// Package sqlite introspects an embedded-file database via sqlite_master
// and PRAGMA table_info/foreign_key_list, the embedded-engine analogue
// of internal/introspect/mysql's information_schema queries (the
// teacher's own sqlite introspecter is an unfilled stub; this one is
// built out properly since tanker's auto-schema mode needs it).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"tanker/backend"
	"tanker/introspect"
	"tanker/schema"
)

func init() {
	introspect.Register(backend.SQLite, func() introspect.Introspecter { return &Introspecter{} })
}

type Introspecter struct{}

func (in *Introspecter) Introspect(ctx context.Context, db *sql.DB) ([]*schema.Table, error) {
	names, err := queryTableNames(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("introspect/sqlite: list tables: %w", err)
	}

	var tables []*schema.Table
	for _, name := range names {
		cols, pk, err := queryColumns(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("introspect/sqlite: table %q: %w", name, err)
		}
		fks, err := queryForeignKeys(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("introspect/sqlite: table %q: %w", name, err)
		}
		for _, c := range cols {
			if ref, ok := fks[c.Name]; ok {
				c.CType = schema.CTypeM2O
				c.FKTable = ref.table
				c.FKColumn = ref.column
			}
		}

		var key []string
		if len(pk) > 0 && !(len(pk) == 1 && pk[0] == "id") {
			key = pk
		}
		t, err := schema.NewTable(name, cols, key, nil, "", nil)
		if err != nil {
			return nil, fmt.Errorf("introspect/sqlite: table %q: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func queryTableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func queryColumns(ctx context.Context, db *sql.DB, table string) ([]*schema.Column, []string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []*schema.Column
	var pk []string
	for rows.Next() {
		var cid int
		var name, declType string
		var notNull, pkOrdinal int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pkOrdinal); err != nil {
			return nil, nil, err
		}

		col := &schema.Column{Name: name, CType: schema.NormalizeDataType(declType), Nullable: notNull == 0}
		if dflt.Valid {
			d := dflt.String
			col.Default = &d
		}
		if pkOrdinal > 0 {
			pk = append(pk, name)
		}
		cols = append(cols, col)
	}
	return cols, pk, rows.Err()
}

type fkRef struct{ table, column string }

func queryForeignKeys(ctx context.Context, db *sql.DB, table string) (map[string]fkRef, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%q)`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]fkRef{}
	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		out[from] = fkRef{table: refTable, column: to}
	}
	return out, rows.Err()
}
