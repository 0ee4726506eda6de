// Package view binds a schema.Table to an ordered list of named fields
// and assembles the SQL for reads and filter-driven deletes.
package view

import (
	"fmt"
	"strings"

	"tanker/expr"
	"tanker/reference"
	"tanker/schema"
	"tanker/tankerr"
)

// FieldKind distinguishes how a ViewField is rendered.
type FieldKind int

const (
	FieldColumn FieldKind = iota // direct column on the base table
	FieldPath                    // dotted path, e.g. "owner.email"
	FieldExpr                    // s-expression starting with "("
	FieldLiteral                 // "{...}" literal alias
)

// ViewField is one named, ordered projection of a View.
type ViewField struct {
	Name string
	Kind FieldKind
	// Path is the dotted path for FieldColumn/FieldPath (a bare column
	// name has no dot).
	Path string
	// Expr is the parsed s-expression for FieldExpr.
	Expr expr.Node
	// Literal is the raw "{...}" text for FieldLiteral.
	Literal string
}

// backingColumn returns the column name this field's value ultimately
// comes from, for field_map grouping; empty for FieldExpr/FieldLiteral.
func (f ViewField) backingColumn() string {
	if f.Kind != FieldColumn && f.Kind != FieldPath {
		return ""
	}
	if i := strings.IndexByte(f.Path, '.'); i >= 0 {
		return f.Path[:i]
	}
	return f.Path
}

// View binds a Table to an ordered list of fields.
type View struct {
	Table    *schema.Table
	Registry *schema.Registry
	Fields   []ViewField

	fieldMap map[string][]int // backing column -> field indices
	fieldIdx map[string]int   // field name -> index
	keyCols  []string
}

// New builds a View, computing field_map, field_idx, and key_cols (§4.5).
// disableACL and ACL filters are supplied by the caller at read/write
// time, not stored here.
func New(table *schema.Table, reg *schema.Registry, fields []ViewField) (*View, error) {
	v := &View{
		Table:    table,
		Registry: reg,
		Fields:   fields,
		fieldMap: map[string][]int{},
		fieldIdx: map[string]int{},
	}

	seen := map[string]bool{}
	for i, f := range fields {
		v.fieldIdx[f.Name] = i
		col := f.backingColumn()
		if col == "" {
			continue
		}
		baseCol := table.FindColumn(strings.SplitN(col, ".", 2)[0])
		if baseCol != nil && !baseCol.CType.IsRelation() && seen[col] {
			return nil, tankerr.NewSchemaError(table.Name, col, "a non-relation column may appear at most once in a view")
		}
		seen[col] = true
		v.fieldMap[col] = append(v.fieldMap[col], i)
	}

	if err := v.deriveKeyCols(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *View) deriveKeyCols() error {
	if _, ok := v.fieldIdx["id"]; ok {
		v.keyCols = []string{"id"}
		return nil
	}
	var missing []string
	for _, k := range v.Table.Key {
		if _, ok := v.fieldIdx[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return tankerr.NewUsageError("view on %q is missing natural-key columns: %s", v.Table.Name, strings.Join(missing, ", "))
	}
	v.keyCols = append([]string{}, v.Table.Key...)
	return nil
}

// KeyCols returns the resolved row-key columns.
func (v *View) KeyCols() []string { return v.keyCols }

// FieldIndex returns the position of the named field, or -1.
func (v *View) FieldIndex(name string) int {
	if i, ok := v.fieldIdx[name]; ok {
		return i
	}
	return -1
}

// ColumnIndices returns every field index backed by the named column,
// used by the write path to rebuild per-column vectors (§4.5 field_map).
func (v *View) ColumnIndices(column string) []int { return v.fieldMap[column] }

// ReadOptions configures a View.Read call (§4.5).
type ReadOptions struct {
	Filters    []string
	ACLFilters []string
	Args       map[string]any
	Positional []any
	Order      []OrderItem
	GroupBy    []string
	Limit      *int
	Offset     *int
	Distinct   bool
	DisableACL bool
	Quote      func(string) string
}

// OrderItem is one ORDER BY item; Expr is used when non-empty, else Col.
type OrderItem struct {
	Col  string
	Dir  string // "ASC" or "DESC"
	Expr string // raw s-expression text, when ordering by an expression
}

// Statement is an assembled, ready-to-prepare SQL statement.
type Statement struct {
	SQL    string
	Params []any
}

// Read assembles the SELECT statement for this view per §4.5 steps 1-3.
// The returned Statement is handed to the backend for execution; cursor
// materialization lives one layer up (the tanker package), since it needs
// a live connection.
func (v *View) Read(opts ReadOptions) (*Statement, error) {
	quote := opts.Quote
	if quote == nil {
		quote = func(s string) string { return `"` + s + `"` }
	}

	refs := reference.New(v.Registry, v.Table.Name)
	env := expr.NewEnv(refs, v.fieldPaths(), opts.Args, opts.Positional, quote)

	selectItems := make([]string, 0, len(v.Fields))
	var params []any
	hasAggregate := false

	for _, f := range v.Fields {
		sql, p, agg, err := v.renderField(f, env)
		if err != nil {
			return nil, err
		}
		selectItems = append(selectItems, sql+" AS "+quote(f.Name))
		params = append(params, p...)
		hasAggregate = hasAggregate || agg
	}

	groupBy := opts.GroupBy
	if hasAggregate && len(groupBy) == 0 {
		for _, f := range v.Fields {
			if f.Kind == FieldExpr {
				if call, ok := f.Expr.(expr.Call); ok && expr.IsAggregate(call.Op) {
					continue
				}
			}
			groupBy = append(groupBy, f.Name)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if opts.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(selectItems, ", "))
	fmt.Fprintf(&b, " FROM %s", quote(v.Table.Name))
	b.WriteString(refs.GetSQLJoins(quote))

	allFilters := append(append([]string{}, opts.Filters...), opts.ACLFilters...)
	if opts.DisableACL {
		allFilters = opts.Filters
	}
	if len(allFilters) > 0 {
		clauseSQL, clauseParams, err := v.renderFilters(allFilters, env)
		if err != nil {
			return nil, err
		}
		b.WriteString(" WHERE " + clauseSQL)
		params = append(params, clauseParams...)
	}

	if len(groupBy) > 0 {
		quoted := make([]string, len(groupBy))
		for i, g := range groupBy {
			quoted[i] = quote(v.Table.Name) + "." + quote(g)
		}
		b.WriteString(" GROUP BY " + strings.Join(quoted, ", "))
	}

	if len(opts.Order) > 0 {
		items := make([]string, len(opts.Order))
		for i, o := range opts.Order {
			if o.Expr != "" {
				node, err := expr.Parse(o.Expr)
				if err != nil {
					return nil, err
				}
				sql, p, err := expr.Eval(node, env)
				if err != nil {
					return nil, err
				}
				params = append(params, p...)
				items[i] = sql
				continue
			}
			dir := o.Dir
			if dir == "" {
				dir = "ASC"
			}
			items[i] = quote(v.Table.Name) + "." + quote(o.Col) + " " + strings.ToUpper(dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(items, ", "))
	}

	if opts.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *opts.Limit)
	}
	if opts.Offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *opts.Offset)
	}

	return &Statement{SQL: b.String(), Params: params}, nil
}

func (v *View) fieldPaths() map[string]string {
	out := make(map[string]string, len(v.Fields))
	for _, f := range v.Fields {
		if f.Kind == FieldColumn || f.Kind == FieldPath {
			out[f.Name] = f.Path
		}
	}
	return out
}

func (v *View) renderField(f ViewField, env *expr.Env) (string, []any, bool, error) {
	switch f.Kind {
	case FieldColumn, FieldPath:
		ref, err := env.Refs.GetRef(f.Path)
		if err != nil {
			return "", nil, false, err
		}
		return env.Quote(ref.JoinAlias) + "." + env.Quote(ref.RemoteField), nil, false, nil
	case FieldExpr:
		sql, params, err := expr.Eval(f.Expr, env)
		if err != nil {
			return "", nil, false, err
		}
		agg := false
		if call, ok := f.Expr.(expr.Call); ok {
			agg = expr.IsAggregate(call.Op)
		}
		return sql, params, agg, nil
	case FieldLiteral:
		node, err := expr.Parse(f.Literal)
		if err != nil {
			return "", nil, false, err
		}
		sql, params, err := expr.Eval(node, env)
		if err != nil {
			return "", nil, false, err
		}
		return sql, params, false, nil
	default:
		return "", nil, false, tankerr.NewExpressionError("unknown view field kind", -1)
	}
}

// renderFilters parses and joins a set of filter expressions with AND,
// matching the "filters may be a string, list of strings, or {field:
// value} mapping" contract (the mapping form is expanded by the caller
// into ("= field {}") strings before reaching here).
func (v *View) renderFilters(filters []string, env *expr.Env) (string, []any, error) {
	clauses := make([]string, 0, len(filters))
	var params []any
	for _, f := range filters {
		node, err := expr.Parse(f)
		if err != nil {
			return "", nil, err
		}
		sql, p, err := expr.Eval(node, env)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, sql)
		params = append(params, p...)
	}
	return strings.Join(clauses, " AND "), params, nil
}

// FilterMap expands a {field: value} mapping into the "(= field {})"
// string form renderFilters expects, binding each value positionally.
func FilterMap(m map[string]any) ([]string, map[string]any) {
	clauses := make([]string, 0, len(m))
	args := make(map[string]any, len(m))
	for field, value := range m {
		key := "_filtermap_" + field
		clauses = append(clauses, fmt.Sprintf("(= %s {%s})", field, key))
		args[key] = value
	}
	return clauses, args
}
