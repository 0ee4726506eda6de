package view

import (
	"fmt"

	"tanker/backend"
	"tanker/expr"
	"tanker/reference"
	"tanker/stage"
	"tanker/tankerr"
)

// DeleteOptions configures a View.Delete call (§4.6's delete() operation).
// Exactly one of Filters or Data must be supplied.
type DeleteOptions struct {
	Filters    []string
	ACLFilters []string
	Args       map[string]any
	Positional []any

	// Data, when set, deletes rows matching the given key-column values
	// instead of a filter predicate. Any of normalizeRows's accepted
	// shapes.
	Data any
	// Swap inverts the data-driven delete: rows whose key is absent from
	// Data are deleted, instead of the rows present in it.
	Swap bool

	DisableACL bool
	Backend    backend.Adapter
	Quote      func(string) string
	Resolvers  map[string]ForeignKeyResolver
}

// Delete assembles the delete Pipeline for either filter-driven or
// data-driven row removal. It does not execute anything — the returned
// Pipeline is a plan for the tanker package to run against a live
// connection, via the same Context.RunWrite loop Write's Pipeline uses
// (a "create" step is always followed by a bulk load of Pipeline.Rows,
// whether the pipeline is inserting or, as here, staging rows to delete).
//
// With Filters, no staging table is needed: a single "id IN (SELECT id
// ... WHERE ...)" DELETE runs directly against the main table. With
// Data, the key columns are staged and the main table is pruned by an
// EXISTS/NOT EXISTS join on them (NOT EXISTS when Swap is set).
func (v *View) Delete(opts DeleteOptions) (*Pipeline, error) {
	if (len(opts.Filters) == 0) == (opts.Data == nil) {
		return nil, tankerr.NewUsageError("delete requires exactly one of filters or data")
	}

	quote := opts.Quote
	if quote == nil {
		quote = func(s string) string { return `"` + s + `"` }
	}

	if opts.Data != nil {
		return v.deleteByData(opts, quote)
	}
	return v.deleteByFilters(opts, quote)
}

func (v *View) deleteByFilters(opts DeleteOptions, quote func(string) string) (*Pipeline, error) {
	refs := reference.New(v.Registry, v.Table.Name)
	env := expr.NewEnv(refs, v.fieldPaths(), opts.Args, opts.Positional, quote)

	allFilters := append(append([]string{}, opts.Filters...), opts.ACLFilters...)
	if opts.DisableACL {
		allFilters = opts.Filters
	}
	clauseSQL, params, err := v.renderFilters(allFilters, env)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		"DELETE FROM %s WHERE %s IN (SELECT %s.%s FROM %s%s WHERE %s)",
		quote(v.Table.Name), quote("id"), quote(v.Table.Name), quote("id"), quote(v.Table.Name), refs.GetSQLJoins(quote), clauseSQL,
	)
	return &Pipeline{Steps: []Step{{Kind: "delete_filtered", Statement: Statement{SQL: sql, Params: params}}}}, nil
}

func (v *View) deleteByData(opts DeleteOptions, quote func(string) string) (*Pipeline, error) {
	if opts.Backend == nil {
		return nil, tankerr.NewUsageError("delete: a backend adapter is required for data-driven delete")
	}

	dicts, err := normalizeRows(opts.Data)
	if err != nil {
		return nil, err
	}

	columns := append([]string{}, v.keyCols...)
	formatted, err := v.formatRows(dicts, columns, opts.Resolvers)
	if err != nil {
		return nil, err
	}

	plan := stage.NewPlan(v.Table.Name, columns, v.keyCols, opts.Backend.Kind() == backend.KindDistributed)
	columnType := func(name string) string { return stage.ColumnType(v.Table, name) }

	joinSQL := plan.JoinDeleteSQL(quote, opts.Swap)
	var joinParams []any
	if !opts.DisableACL && len(opts.ACLFilters) > 0 {
		refs := reference.New(v.Registry, v.Table.Name)
		env := expr.NewEnv(refs, v.fieldPaths(), opts.Args, opts.Positional, quote)
		aclSQL, aclParams, err := v.renderFilters(opts.ACLFilters, env)
		if err != nil {
			return nil, err
		}
		joinSQL = fmt.Sprintf("%s AND (%s)", joinSQL, aclSQL)
		joinParams = aclParams
	}

	p := &Pipeline{Plan: plan, StagingColumns: columns, Rows: formatted}
	p.Steps = append(p.Steps, Step{Kind: "create", Statement: Statement{SQL: plan.CreateSQL(quote, columnType)}})
	p.Steps = append(p.Steps, Step{Kind: "delete_joined", Statement: Statement{SQL: joinSQL, Params: joinParams}})
	p.Steps = append(p.Steps, Step{Kind: "drop", Statement: Statement{SQL: plan.DropSQL(quote)}})
	return p, nil
}
