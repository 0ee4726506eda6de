// Package tomlschema decodes a TOML schema file into the []*schema.Table
// slice a schema.Registry is built from, per §6's schema entry format.
// It follows the teacher's two-stage decode-then-convert structure:
// a flat TOML document type, then a converter that builds the domain
// type and reports every error with the offending table name attached.
package tomlschema

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"tanker/schema"
)

// document is the top-level TOML shape: a flat list of table entries,
// each a standalone [[tables]] block (mirrors internal/parser/toml's
// schemaFile, minus the [database]/[validation] sections tanker has no
// use for).
type document struct {
	Tables []tomlTable `toml:"tables"`
}

type tomlTable struct {
	Table    string            `toml:"table"`
	Columns  map[string]string `toml:"columns"`
	Key      []string          `toml:"key"`
	Unique   [][]string        `toml:"unique"`
	UseIndex string            `toml:"use-index"`
	Defaults map[string]string `toml:"defaults"`
	Values   []map[string]any  `toml:"values"`
}

// Load reads and parses the TOML schema file at path.
func Load(path string) ([]*schema.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tomlschema: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes TOML content from r into a []*schema.Table, per §6's
// schema entry format.
func Parse(r io.Reader) ([]*schema.Table, error) {
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("tomlschema: decode: %w", err)
	}

	tables := make([]*schema.Table, 0, len(doc.Tables))
	for i := range doc.Tables {
		t, err := convertTable(&doc.Tables[i])
		if err != nil {
			return nil, fmt.Errorf("tomlschema: table %q: %w", doc.Tables[i].Table, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func convertTable(tt *tomlTable) (*schema.Table, error) {
	names := make([]string, 0, len(tt.Columns))
	for name := range tt.Columns {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic column order; TOML maps are unordered

	columns := make([]*schema.Column, 0, len(names))
	for _, name := range names {
		col, err := schema.ParseTypeExpr(tt.Columns[name])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		col.Name = name
		if def, ok := tt.Defaults[name]; ok {
			d := def
			col.Default = &d
		}
		columns = append(columns, &col)
	}

	useIndex, err := parseUseIndex(tt.UseIndex)
	if err != nil {
		return nil, err
	}

	return schema.NewTable(tt.Table, columns, tt.Key, tt.Unique, useIndex, tt.Values)
}

func parseUseIndex(raw string) (schema.IndexKind, error) {
	switch raw {
	case "":
		return "", nil
	case string(schema.UseIndexBTree):
		return schema.UseIndexBTree, nil
	case string(schema.UseIndexBRIN):
		return schema.UseIndexBRIN, nil
	default:
		return "", fmt.Errorf("unsupported use-index %q; supported: btree, brin", raw)
	}
}
