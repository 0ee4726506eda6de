// Package reference resolves dotted field paths against a schema.Registry
// into concrete join targets, and accumulates the deduplicated LEFT JOIN
// plan for one expression tree.
package reference

import (
	"fmt"
	"strings"

	"tanker/schema"
	"tanker/tankerr"
)

// Reference is the resolved address of a dotted path.
type Reference struct {
	RemoteTable string
	RemoteField string
	JoinAlias   string
	Column      *schema.Column
}

// joinKey identifies one join edge; identical keys are deduplicated within
// a Set regardless of how many paths reach them.
type joinKey struct {
	LeftTable  string
	RightTable string
	LeftCol    string
	RightCol   string
}

// join is one emitted LEFT JOIN, keyed by joinKey, remembering its alias
// and the ON-clause operands needed to render it.
type join struct {
	key        joinKey
	alias      string
	leftAlias  string
	reverse    bool // o2m edge: ON leftAlias.localCol = alias.fkCol
}

// Set owns the join plan for one expression tree. Alias numbering is
// globally unique across a tree of nested expressions via the
// parent/children backpointer (§4.3).
type Set struct {
	reg       *schema.Registry
	root      string // base table name, unaliased
	rootAlias string

	parent   *Set
	children []*Set

	order    []joinKey
	byKey    map[joinKey]*join

	// aliasOverride, when non-empty, replaces rootAlias for field
	// resolution — used by the write pipeline to rebind the post-image
	// filter evaluation onto the staging table (§4.3 table-aliases
	// override).
	aliasOverride string
	// perColumnAlias overrides individual base-table columns, keyed by
	// column name, to a specific alias — the per-column form of the same
	// override.
	perColumnAlias map[string]string
}

// New builds a Set rooted at table, whose SQL alias is the table's own
// unquoted name.
func New(reg *schema.Registry, table string) *Set {
	return &Set{
		reg:       reg,
		root:      table,
		rootAlias: table,
		byKey:     map[joinKey]*join{},
	}
}

// Sub creates a child Set rooted at table, linked to s so that alias
// numbering across the whole tree stays unique, per §4.3.
func (s *Set) Sub(table string) *Set {
	child := &Set{
		reg:       s.reg,
		root:      table,
		rootAlias: table,
		byKey:     map[joinKey]*join{},
		parent:    s,
	}
	s.children = append(s.children, child)
	return child
}

// OverrideRootAlias rebinds field resolution for the base table onto a
// different alias (e.g. the write pipeline's staging table).
func (s *Set) OverrideRootAlias(alias string) {
	s.aliasOverride = alias
}

// OverrideColumnAlias rebinds a single base-table column to alias,
// independent of OverrideRootAlias.
func (s *Set) OverrideColumnAlias(column, alias string) {
	if s.perColumnAlias == nil {
		s.perColumnAlias = map[string]string{}
	}
	s.perColumnAlias[column] = alias
}

func (s *Set) totalJoinCount() int {
	root := s
	for root.parent != nil {
		root = root.parent
	}
	return root.countJoins()
}

func (s *Set) countJoins() int {
	n := len(s.order)
	for _, c := range s.children {
		n += c.countJoins()
	}
	return n
}

func (s *Set) baseAlias(column string) string {
	if a, ok := s.perColumnAlias[column]; ok {
		return a
	}
	if s.aliasOverride != "" {
		return s.aliasOverride
	}
	return s.rootAlias
}

// GetRef walks the dotted path (e.g. "team.owner.email") against the
// table rooted at s, creating joins as needed, and returns the resolved
// Reference for the final component.
func (s *Set) GetRef(path string) (Reference, error) {
	parts := strings.Split(path, ".")
	table, err := s.mustTable(s.root)
	if err != nil {
		return Reference{}, err
	}
	alias := s.baseAlias(parts[0])
	curTable := table

	for i, part := range parts {
		last := i == len(parts)-1
		col := curTable.FindColumn(part)
		if col == nil {
			return Reference{}, tankerr.NewSchemaError(curTable.Name, part, "column not found in table")
		}
		if last && !col.CType.IsRelation() {
			return Reference{RemoteTable: curTable.Name, RemoteField: part, JoinAlias: alias, Column: col}, nil
		}
		if !col.CType.IsRelation() {
			return Reference{}, tankerr.NewSchemaError(curTable.Name, part, "dotted path continues past a non-relation column")
		}

		remote, err := s.mustTable(col.FKTable)
		if err != nil {
			return Reference{}, err
		}

		var jk joinKey
		var reverse bool
		if col.CType == schema.CTypeM2O {
			jk = joinKey{LeftTable: curTable.Name, RightTable: remote.Name, LeftCol: col.Name, RightCol: col.FKColumn}
		} else { // o2m, reverse edge: col.FKColumn is the remote m2o pointing back here
			localCol := "id"
			if back := remote.FindColumn(col.FKColumn); back != nil && back.FKColumn != "" {
				localCol = back.FKColumn
			}
			jk = joinKey{LeftTable: curTable.Name, RightTable: remote.Name, LeftCol: localCol, RightCol: col.FKColumn}
			reverse = true
		}

		nextAlias := s.ensureJoin(jk, alias, reverse)

		if last {
			remoteCol := remote.FindColumn(col.FKColumn)
			if remoteCol == nil {
				return Reference{}, tankerr.NewSchemaError(remote.Name, col.FKColumn, "column not found in table")
			}
			return Reference{RemoteTable: remote.Name, RemoteField: col.FKColumn, JoinAlias: nextAlias, Column: remoteCol}, nil
		}

		curTable = remote
		alias = nextAlias
	}

	return Reference{}, tankerr.NewExpressionError(fmt.Sprintf("empty dotted path %q", path), -1)
}

// ensureJoin returns the alias for jk, creating and recording a new join
// (with a tree-wide-unique alias) if this is the first time jk is seen.
func (s *Set) ensureJoin(jk joinKey, leftAlias string, reverse bool) string {
	if j, ok := s.byKey[jk]; ok {
		return j.alias
	}
	n := s.totalJoinCount() + 1
	alias := fmt.Sprintf("%s_%d", jk.RightTable, n)
	j := &join{key: jk, alias: alias, leftAlias: leftAlias, reverse: reverse}
	s.byKey[jk] = j
	s.order = append(s.order, jk)
	return alias
}

func (s *Set) mustTable(name string) (*schema.Table, error) {
	t, ok := s.reg.Table(name)
	if !ok {
		return nil, tankerr.NewSchemaError(name, "", "table not found in registry")
	}
	return t, nil
}

// GetSQLJoins emits `LEFT JOIN "<table>" AS "<alias>" ON (...)` for every
// join recorded on s, in insertion order, using quote to quote
// identifiers per the active backend.
func (s *Set) GetSQLJoins(quote func(string) string) string {
	var b strings.Builder
	for _, key := range s.order {
		j := s.byKey[key]
		var on string
		if j.reverse {
			on = fmt.Sprintf("%s.%s = %s.%s", quote(j.leftAlias), quote(j.key.LeftCol), quote(j.alias), quote(j.key.RightCol))
		} else {
			on = fmt.Sprintf("%s.%s = %s.%s", quote(j.leftAlias), quote(j.key.LeftCol), quote(j.alias), quote(j.key.RightCol))
		}
		fmt.Fprintf(&b, ` LEFT JOIN %s AS %s ON (%s)`, quote(j.key.RightTable), quote(j.alias), on)
	}
	return b.String()
}

// RootAlias returns the alias field references against the base table
// should use, honoring any override.
func (s *Set) RootAlias() string {
	if s.aliasOverride != "" {
		return s.aliasOverride
	}
	return s.rootAlias
}
