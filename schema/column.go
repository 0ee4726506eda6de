// Package schema is the single source of truth for a registered database:
// tables, columns, keys, relations, defaults, and seed values. It also
// carries the coercion rules that turn heterogeneous Go input into
// backend-ready values ahead of a write.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// CType is the portable column type. Every value is one of the base
// tokens below, optionally wrapped in one or more array dimensions.
type CType string

const (
	CTypeInteger     CType = "integer"
	CTypeBigint      CType = "bigint"
	CTypeFloat       CType = "float"
	CTypeBool        CType = "bool"
	CTypeVarchar     CType = "varchar"
	CTypeDate        CType = "date"
	CTypeTimestamp   CType = "timestamp"
	CTypeTimestampTZ CType = "timestamptz"
	CTypeJSONB       CType = "jsonb"
	CTypeBytea       CType = "bytea"
	CTypeM2O         CType = "m2o"
	CTypeO2M         CType = "o2m"
)

var baseCTypes = map[CType]bool{
	CTypeInteger: true, CTypeBigint: true, CTypeFloat: true, CTypeBool: true,
	CTypeVarchar: true, CTypeDate: true, CTypeTimestamp: true, CTypeTimestampTZ: true,
	CTypeJSONB: true, CTypeBytea: true, CTypeM2O: true, CTypeO2M: true,
}

// IsRelation reports whether ctype is a foreign reference (m2o or o2m).
func (c CType) IsRelation() bool { return c == CTypeM2O || c == CTypeO2M }

// Column describes one column of a Table.
type Column struct {
	Name      string
	CType     CType
	ArrayDim  int // number of "[]" suffixes; 0 for a scalar column
	FKTable   string
	FKColumn  string
	Default   *string // backend literal, applied at table-creation time
	Nullable  bool
}

// String renders the column's declared type expression, e.g.
// "varchar[][]" or "m2o team.id".
func (c *Column) String() string {
	if c.CType.IsRelation() {
		return fmt.Sprintf("%s %s.%s", c.CType, c.FKTable, c.FKColumn)
	}
	return string(c.CType) + strings.Repeat("[]", c.ArrayDim)
}

// ParseTypeExpr parses one schema entry's column type-expr, per the
// schema entry format in §6: "<ctype>", "m2o <tbl.col>", "o2m <tbl.col>",
// or "<ctype>[][]...".
func ParseTypeExpr(raw string) (Column, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Column{}, fmt.Errorf("schema: empty type expression")
	}

	fields := strings.Fields(raw)
	head := strings.ToLower(fields[0])
	if head == "m2o" || head == "o2m" {
		if len(fields) != 2 {
			return Column{}, fmt.Errorf("schema: %q relation requires exactly one %q reference", head, "table.column")
		}
		table, col, ok := splitTableColumn(fields[1])
		if !ok {
			return Column{}, fmt.Errorf("schema: invalid relation target %q, expected table.column", fields[1])
		}
		return Column{CType: CType(head), FKTable: table, FKColumn: col}, nil
	}

	if len(fields) != 1 {
		return Column{}, fmt.Errorf("schema: invalid type expression %q", raw)
	}

	base, dim, err := splitArrayDims(fields[0])
	if err != nil {
		return Column{}, err
	}
	if !baseCTypes[base] {
		return Column{}, fmt.Errorf("schema: unknown column type %q", base)
	}
	if base.IsRelation() {
		return Column{}, fmt.Errorf("schema: %q cannot be declared as a bare type, use %q syntax", base, "m2o tbl.col")
	}
	return Column{CType: base, ArrayDim: dim}, nil
}

func splitArrayDims(raw string) (CType, int, error) {
	dim := 0
	for strings.HasSuffix(raw, "[]") {
		raw = strings.TrimSuffix(raw, "[]")
		dim++
	}
	return CType(strings.ToLower(raw)), dim, nil
}

func splitTableColumn(ref string) (table, column string, ok bool) {
	dot := strings.LastIndex(ref, ".")
	if dot <= 0 || dot >= len(ref)-1 {
		return "", "", false
	}
	return ref[:dot], ref[dot+1:], true
}

// parseIntLiteral is a small helper shared by the coercion rules in
// format.go for "already-a-string" integral values.
func parseIntLiteral(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
