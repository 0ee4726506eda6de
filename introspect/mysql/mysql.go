// Package mysql introspects a MySQL/MariaDB database's information_schema
// into tanker's portable schema.Table shape, grounded on
// internal/introspect/mysql's tables.go/columns.go query shapes.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"tanker/backend"
	"tanker/introspect"
	"tanker/schema"
)

func init() {
	introspect.Register(backend.MySQL, func() introspect.Introspecter { return &Introspecter{} })
}

type Introspecter struct{}

type fkRef struct {
	table, column string
}

func (in *Introspecter) Introspect(ctx context.Context, db *sql.DB) ([]*schema.Table, error) {
	tableNames, err := queryTableNames(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("introspect/mysql: list tables: %w", err)
	}

	fks, err := queryForeignKeys(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("introspect/mysql: list foreign keys: %w", err)
	}

	var tables []*schema.Table
	for _, name := range tableNames {
		cols, pk, err := queryColumns(ctx, db, name, fks[name])
		if err != nil {
			return nil, fmt.Errorf("introspect/mysql: table %q: %w", name, err)
		}
		var key []string
		if len(pk) > 0 && !(len(pk) == 1 && pk[0] == "id") {
			key = pk
		}
		t, err := schema.NewTable(name, cols, key, nil, "", nil)
		if err != nil {
			return nil, fmt.Errorf("introspect/mysql: table %q: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func queryTableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
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

// queryForeignKeys returns, per table, a map of column name to the
// single-column foreign key it participates in.
func queryForeignKeys(ctx context.Context, db *sql.DB) (map[string]map[string]fkRef, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]map[string]fkRef{}
	for rows.Next() {
		var table, column, refTable, refColumn string
		if err := rows.Scan(&table, &column, &refTable, &refColumn); err != nil {
			return nil, err
		}
		if out[table] == nil {
			out[table] = map[string]fkRef{}
		}
		out[table][column] = fkRef{table: refTable, column: refColumn}
	}
	return out, rows.Err()
}

func queryColumns(ctx context.Context, db *sql.DB, table string, fks map[string]fkRef) ([]*schema.Column, []string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, column_key, column_default
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []*schema.Column
	var pk []string
	for rows.Next() {
		var name, dataType, nullable, colKey string
		var def sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &colKey, &def); err != nil {
			return nil, nil, err
		}

		col := &schema.Column{Name: name, Nullable: nullable == "YES"}
		if def.Valid {
			d := def.String
			col.Default = &d
		}

		if ref, ok := fks[name]; ok {
			col.CType = schema.CTypeM2O
			col.FKTable = ref.table
			col.FKColumn = ref.column
		} else {
			col.CType = schema.NormalizeDataType(dataType)
		}

		if colKey == "PRI" {
			pk = append(pk, name)
		}
		cols = append(cols, col)
	}
	return cols, pk, rows.Err()
}
