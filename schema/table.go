package schema

import (
	"fmt"
	"strings"

	"tanker/tankerr"
)

// IndexKind selects the storage structure backing a table's declared
// secondary index (§3, Table).
type IndexKind string

const (
	UseIndexBTree IndexKind = "btree"
	UseIndexBRIN  IndexKind = "brin"
)

// Table is one registered table: its columns, its natural key, any extra
// unique constraints, and optional seed rows written on create_tables.
type Table struct {
	Name       string
	Columns    []*Column
	Key        []string
	Unique     [][]string
	UseIndex   IndexKind
	SeedValues []map[string]any
}

// NewTable validates and constructs a Table. id is injected automatically
// unless the caller already declared a column named "id". The natural
// key, when not supplied, defaults to the single non-id column if there
// is exactly one.
func NewTable(name string, columns []*Column, key []string, unique [][]string, useIndex IndexKind, seed []map[string]any) (*Table, error) {
	t := &Table{Name: name, Unique: unique, UseIndex: useIndex, SeedValues: seed}

	hasID := false
	for _, c := range columns {
		if c.Name == "id" {
			hasID = true
		}
	}
	if !hasID {
		t.Columns = append(t.Columns, &Column{Name: "id", CType: CTypeBigint})
	}
	t.Columns = append(t.Columns, columns...)

	if len(key) == 0 {
		var nonID []*Column
		for _, c := range columns {
			if c.Name != "id" {
				nonID = append(nonID, c)
			}
		}
		if len(nonID) == 1 {
			key = []string{nonID[0].Name}
		}
	}
	t.Key = key

	for _, k := range t.Key {
		if t.FindColumn(k) == nil {
			return nil, tankerr.NewSchemaError(name, k, "key column not found in table")
		}
	}
	for _, u := range unique {
		for _, col := range u {
			if t.FindColumn(col) == nil {
				return nil, tankerr.NewSchemaError(name, col, "unique-constraint column not found in table")
			}
		}
	}
	for _, c := range t.Columns {
		if c.CType.IsRelation() && c.ArrayDim > 0 {
			return nil, tankerr.NewSchemaError(name, c.Name, "array dimensions are forbidden on relation columns")
		}
	}

	switch useIndex {
	case "", UseIndexBTree, UseIndexBRIN:
	default:
		return nil, tankerr.NewSchemaError(name, "", fmt.Sprintf("unsupported index kind %q", useIndex))
	}

	return t, nil
}

// FindColumn returns the named column, or nil.
func (t *Table) FindColumn(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// DefaultFields enumerates the non-id, non-o2m columns of t. Each m2o
// column contributes one entry per component of the remote table's
// natural key (col.part1, col.part2, ...), per §4.2.
func (t *Table) DefaultFields(reg *Registry) ([]string, error) {
	var fields []string
	for _, c := range t.Columns {
		if c.Name == "id" || c.CType == CTypeO2M {
			continue
		}
		if c.CType != CTypeM2O {
			fields = append(fields, c.Name)
			continue
		}
		remote := reg.MustTable(c.FKTable)
		for _, k := range remote.Key {
			fields = append(fields, c.Name+"."+k)
		}
	}
	return fields, nil
}

// String renders a short human summary of the table, matching the
// teacher's Table.String convention.
func (t *Table) String() string {
	return fmt.Sprintf("Table: %s (%d cols, key=%v)", t.Name, len(t.Columns), t.Key)
}

// LinkEdge is one hop of a Table.Link path: the column carrying the
// relation and the table it lands on.
type LinkEdge struct {
	Column string
	Table  string
	Reverse bool // true when traversing an o2m (reverse) edge
}

// Link performs a BFS over the relation graph (both m2o and o2m edges)
// and returns all acyclic edge sequences from t to dest, sorted by
// length. A column may appear at most once in a path, whichever direction
// it is traversed in. Every such path is enumerated; no memoization is
// applied.
func (t *Table) Link(reg *Registry, dest string) [][]LinkEdge {
	type state struct {
		table string
		path  []LinkEdge
		used  map[string]bool
	}

	var results [][]LinkEdge
	queue := []state{{table: t.Name, path: nil, used: map[string]bool{}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.table == dest && len(cur.path) > 0 {
			results = append(results, cur.path)
			continue
		}

		curTable, ok := reg.Table(cur.table)
		if !ok {
			continue
		}

		for _, c := range curTable.Columns {
			key := curTable.Name + "." + c.Name
			if cur.used[key] {
				continue
			}
			switch c.CType {
			case CTypeM2O:
				nextUsed := cloneUsed(cur.used)
				nextUsed[key] = true
				nextPath := append(append([]LinkEdge{}, cur.path...), LinkEdge{Column: c.Name, Table: c.FKTable})
				queue = append(queue, state{table: c.FKTable, path: nextPath, used: nextUsed})
			}
		}

		// reverse (o2m) edges: any table whose m2o points back at cur.table
		for _, other := range reg.Tables() {
			for _, c := range other.Columns {
				if c.CType != CTypeM2O || c.FKTable != curTable.Name {
					continue
				}
				key := other.Name + "." + c.Name
				if cur.used[key] {
					continue
				}
				nextUsed := cloneUsed(cur.used)
				nextUsed[key] = true
				nextPath := append(append([]LinkEdge{}, cur.path...), LinkEdge{Column: c.Name, Table: other.Name, Reverse: true})
				queue = append(queue, state{table: other.Name, path: nextPath, used: nextUsed})
			}
		}
	}

	return results
}

func cloneUsed(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NormalizeDataType classifies a backend-reported raw type string into a
// portable CType, used by introspection. Case-insensitive, substring
// based, matching the teacher's NormalizeDataType convention.
func NormalizeDataType(raw string) CType {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, "bigint"):
		return CTypeBigint
	case strings.Contains(lower, "int"):
		return CTypeInteger
	case containsAny(lower, "float", "double", "decimal", "numeric", "real"):
		return CTypeFloat
	case strings.Contains(lower, "bool"):
		return CTypeBool
	case strings.Contains(lower, "timestamptz") || strings.Contains(lower, "with time zone"):
		return CTypeTimestampTZ
	case strings.Contains(lower, "timestamp"):
		return CTypeTimestamp
	case strings.Contains(lower, "date"):
		return CTypeDate
	case strings.Contains(lower, "jsonb") || strings.Contains(lower, "json"):
		return CTypeJSONB
	case containsAny(lower, "blob", "bytea", "binary"):
		return CTypeBytea
	default:
		return CTypeVarchar
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
