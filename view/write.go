package view

import (
	"fmt"
	"sort"
	"strings"

	"tanker/backend"
	"tanker/expr"
	"tanker/fkcache"
	"tanker/reference"
	"tanker/schema"
	"tanker/stage"
	"tanker/tankerr"
)

// RowMajor is one accepted input shape for Write: a fixed column order
// plus one slice per row, each aligned to Columns.
type RowMajor struct {
	Columns []string
	Data    [][]any
}

// normalizeRows accepts any of the three input shapes named in §4.6 step
// 1 — a list of {field: value} dicts, a column-major {field: [values]}
// map, or a RowMajor — and returns a uniform list of dicts.
func normalizeRows(input any) ([]map[string]any, error) {
	switch rows := input.(type) {
	case []map[string]any:
		return rows, nil
	case map[string][]any:
		var n int
		for _, col := range rows {
			if len(col) > n {
				n = len(col)
			}
		}
		out := make([]map[string]any, n)
		for i := range out {
			out[i] = make(map[string]any, len(rows))
			for field, values := range rows {
				if i < len(values) {
					out[i][field] = values[i]
				}
			}
		}
		return out, nil
	case RowMajor:
		out := make([]map[string]any, len(rows.Data))
		for i, row := range rows.Data {
			if len(row) != len(rows.Columns) {
				return nil, tankerr.NewUsageError("write: row %d has %d values, want %d", i, len(row), len(rows.Columns))
			}
			m := make(map[string]any, len(rows.Columns))
			for j, c := range rows.Columns {
				m[c] = row[j]
			}
			out[i] = m
		}
		return out, nil
	default:
		return nil, tankerr.NewUsageError("write: unsupported input shape %T", input)
	}
}

// ForeignKeyResolver loads ids for a batch of natural-key tuples on the
// remote side of one m2o column, the Loader half of a fkcache.Cache.
type ForeignKeyResolver struct {
	Cache  *fkcache.Cache
	Loader fkcache.Loader
}

// WriteOptions configures a View.Write call (§4.6).
type WriteOptions struct {
	// Rows is any of the shapes normalizeRows accepts.
	Rows any

	Filters    []string
	ACLFilters []string
	Args       map[string]any
	Positional []any
	DisableACL bool

	// Swap, when set, additionally purges main-table rows that match the
	// active filter but are absent from the written batch (§4.6 step 8);
	// otherwise the write is a pure upsert of the given rows.
	Swap bool

	Backend backend.Adapter
	Quote   func(string) string

	// Resolvers supplies a ForeignKeyResolver per m2o field name whose
	// incoming values are natural-key tuples rather than raw ids.
	Resolvers map[string]ForeignKeyResolver
}

// Step is one statement of an assembled write Pipeline, in execution
// order. BulkLoad steps carry no SQL; the caller drives the configured
// backend.Adapter.BulkLoad directly using Pipeline.StagingColumns/Rows.
type Step struct {
	Kind string // create | purge_pre | purge_post | apply | apply_insert | apply_update | purge_main | drop
	Statement
}

// Pipeline is the ordered set of statements the tanker package executes
// against a live connection to carry out one View.Write call.
type Pipeline struct {
	Plan           *stage.Plan
	StagingColumns []string
	Rows           [][]any // formatted, FK-resolved, column order == StagingColumns
	Steps          []Step
}

// WriteResult reports the rows a Pipeline rejected or removed while it
// ran, per §4.6's closing "report filtered/deleted counts" contract.
// Filtered sums the rows purge_pre and purge_post removed from staging
// because they failed the active filter or ACL on the pre- or
// post-image; Deleted is purge_main's count of main-table rows dropped
// by a swap write. The runner (tanker.Context.RunWrite) fills this in
// from each step's RowsAffected as it drives the Pipeline; View.Write
// only shapes the Steps that produce these counts.
type WriteResult struct {
	Filtered int64
	Deleted  int64
}

// Write assembles the staging-table write pipeline for opts.Rows against
// v, per the nine steps of §4.6. It does not execute anything — the
// returned Pipeline is a plan for the tanker package to run against a
// live connection, the same division of labor as Read's Statement.
func (v *View) Write(opts WriteOptions) (*Pipeline, error) {
	quote := opts.Quote
	if quote == nil {
		quote = func(s string) string { return `"` + s + `"` }
	}
	if opts.Backend == nil {
		return nil, tankerr.NewUsageError("write: a backend adapter is required")
	}

	dicts, err := normalizeRows(opts.Rows)
	if err != nil {
		return nil, err
	}

	columns := v.writeColumns()
	for _, k := range v.keyCols {
		if _, ok := indexOf(columns, k); !ok {
			columns = append(columns, k)
		}
	}
	sort.Strings(columns)

	formatted, err := v.formatRows(dicts, columns, opts.Resolvers)
	if err != nil {
		return nil, err
	}

	plan := stage.NewPlan(v.Table.Name, columns, v.keyCols, opts.Backend.Kind() == backend.KindDistributed)

	columnType := func(name string) string { return stage.ColumnType(v.Table, name) }

	p := &Pipeline{Plan: plan, StagingColumns: columns, Rows: formatted}
	p.Steps = append(p.Steps, Step{Kind: "create", Statement: Statement{SQL: plan.CreateSQL(quote, columnType)}})

	allFilters := opts.Filters
	if !opts.DisableACL {
		allFilters = append(append([]string{}, opts.Filters...), opts.ACLFilters...)
	}

	if len(allFilters) > 0 {
		preEnv := expr.NewEnv(reference.New(v.Registry, v.Table.Name), v.fieldPaths(), opts.Args, opts.Positional, quote)
		preSQL, preParams, err := v.renderFilters(allFilters, preEnv)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, Step{
			Kind:      "purge_pre",
			Statement: Statement{SQL: plan.PurgePreImageSQL(quote, preSQL), Params: preParams},
		})

		postRefs := reference.New(v.Registry, v.Table.Name)
		postRefs.OverrideRootAlias(plan.Table)
		postEnv := expr.NewEnv(postRefs, v.fieldPaths(), opts.Args, opts.Positional, quote)
		postSQL, postParams, err := v.renderFilters(allFilters, postEnv)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, Step{
			Kind:      "purge_post",
			Statement: Statement{SQL: plan.PurgePostImageSQL(quote, postSQL), Params: postParams},
		})
	}

	switch {
	case opts.Backend.Name() == backend.MySQL:
		// MySQL supports upsert but not ON CONFLICT; it has its own
		// ON DUPLICATE KEY UPDATE dialect.
		p.Steps = append(p.Steps, Step{Kind: "apply", Statement: Statement{SQL: plan.MySQLUpsertApplySQL(quote, true)}})
	case opts.Backend.UpsertSupported():
		p.Steps = append(p.Steps, Step{Kind: "apply", Statement: Statement{SQL: plan.UpsertApplySQL(quote, true)}})
	case opts.Backend.Kind() == backend.KindEmbedded:
		allCols := make([]string, 0, len(v.Table.Columns))
		for _, c := range v.Table.Columns {
			if !c.CType.IsRelation() || c.CType == schema.CTypeM2O {
				allCols = append(allCols, c.Name)
			}
		}
		p.Steps = append(p.Steps, Step{Kind: "apply", Statement: Statement{SQL: plan.EmbeddedApplySQL(quote, allCols)}})
	default:
		insertSQL, updateSQL := plan.LegacyApplySQL(quote)
		p.Steps = append(p.Steps, Step{Kind: "apply_insert", Statement: Statement{SQL: insertSQL}})
		p.Steps = append(p.Steps, Step{Kind: "apply_update", Statement: Statement{SQL: updateSQL}})
	}

	if opts.Swap {
		var filterSQL string
		var filterParams []any
		if len(allFilters) > 0 {
			env := expr.NewEnv(reference.New(v.Registry, v.Table.Name), v.fieldPaths(), opts.Args, opts.Positional, quote)
			filterSQL, filterParams, err = v.renderFilters(allFilters, env)
			if err != nil {
				return nil, err
			}
		}
		p.Steps = append(p.Steps, Step{
			Kind:      "purge_main",
			Statement: Statement{SQL: plan.PurgeMainSQL(quote, filterSQL), Params: filterParams},
		})
	}

	p.Steps = append(p.Steps, Step{Kind: "drop", Statement: Statement{SQL: plan.DropSQL(quote)}})
	return p, nil
}

// writeColumns lists the base-table columns actually written: the
// backing column of every FieldColumn field (FieldPath/FieldExpr/
// FieldLiteral fields are read-only projections, per §4.5).
func (v *View) writeColumns() []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range v.Fields {
		if f.Kind != FieldColumn {
			continue
		}
		col := f.backingColumn()
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		out = append(out, col)
	}
	return out
}

// formatRows coerces each dict row to the given column order, resolving
// m2o columns through the matching ForeignKeyResolver when the incoming
// value is a natural-key tuple rather than an already-resolved id.
func (v *View) formatRows(dicts []map[string]any, columns []string, resolvers map[string]ForeignKeyResolver) ([][]any, error) {
	out := make([][]any, len(dicts))
	for i := range out {
		out[i] = make([]any, len(columns))
	}

	for ci, name := range columns {
		col := v.Table.FindColumn(name)
		if col == nil {
			return nil, tankerr.NewSchemaError(v.Table.Name, name, "write: column not found in table")
		}

		raw := make([]any, len(dicts))
		for ri, d := range dicts {
			raw[ri] = d[name]
		}

		if col.CType == schema.CTypeM2O {
			resolved, err := v.resolveColumn(col, raw, resolvers[name])
			if err != nil {
				return nil, err
			}
			for ri, v := range resolved {
				out[ri][ci] = v
			}
			continue
		}

		formatted, err := col.FormatAll(raw)
		if err != nil {
			return nil, err
		}
		for ri, v := range formatted {
			out[ri][ci] = v
		}
	}
	return out, nil
}

// resolveColumn formats an m2o column's incoming values: a value that is
// already a scalar id passes through scalar integer coercion; a value
// that is a natural-key tuple ([]any or map[string]any) is batched
// through the resolver's fkcache.Cache, per §4.7.
func (v *View) resolveColumn(col *schema.Column, raw []any, resolver ForeignKeyResolver) ([]any, error) {
	out := make([]any, len(raw))
	var keys [][]any
	var pending []int

	for i, rv := range raw {
		tuple, ok := asKeyTuple(rv)
		if !ok {
			scalar, err := col.FormatAll([]any{rv})
			if err != nil {
				return nil, err
			}
			out[i] = scalar[0]
			continue
		}
		keys = append(keys, tuple)
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		return out, nil
	}
	if resolver.Loader == nil {
		return nil, tankerr.NewUsageError("write: column %q needs a foreign-key resolver for natural-key input", col.Name)
	}
	cache := resolver.Cache
	if cache == nil {
		cache = fkcache.New(col.FKTable)
	}

	ids, err := cache.Resolve(keys, resolver.Loader)
	if err != nil {
		return nil, err
	}
	for j, idx := range pending {
		if ids[j] == nil {
			out[idx] = nil
			continue
		}
		out[idx] = *ids[j]
	}
	return out, nil
}

func asKeyTuple(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tuple := make([]any, len(keys))
		for i, k := range keys {
			tuple[i] = t[k]
		}
		return tuple, true
	default:
		return nil, false
	}
}

func indexOf(s []string, v string) (int, bool) {
	for i, x := range s {
		if x == v {
			return i, true
		}
	}
	return -1, false
}

// Describe renders a human-readable dry-run preview of p, grounded on
// internal/apply's preflight display.
func (p *Pipeline) Describe(quote func(string) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "staging table %s (%d columns, %d rows)\n", p.Plan.Table, len(p.StagingColumns), len(p.Rows))
	for _, step := range p.Steps {
		fmt.Fprintf(&b, "[%s] %s\n", step.Kind, step.Statement.SQL)
	}
	return b.String()
}
