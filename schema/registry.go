package schema

import (
	"fmt"
	"sync"

	"tanker/tankerr"
)

// Registry is an ordered table_name -> Table map for one database URI.
// Entries are populated once, either from an explicit schema or by
// introspecting the live database, and are immutable afterwards (§3,
// Lifecycle).
type Registry struct {
	order []string
	byName map[string]*Table
}

// NewRegistry builds a Registry from a set of tables and validates every
// m2o column points at an existing table/column pair within the same
// registry (§3, Invariants).
func NewRegistry(tables []*Table) (*Registry, error) {
	reg := &Registry{byName: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, exists := reg.byName[t.Name]; exists {
			return nil, tankerr.NewSchemaError(t.Name, "", "duplicate table name in registry")
		}
		reg.byName[t.Name] = t
		reg.order = append(reg.order, t.Name)
	}

	for _, t := range tables {
		for _, c := range t.Columns {
			if c.CType != CTypeM2O {
				continue
			}
			remote, ok := reg.byName[c.FKTable]
			if !ok {
				return nil, tankerr.NewSchemaError(t.Name, c.Name, fmt.Sprintf("m2o references unknown table %q", c.FKTable))
			}
			if remote.FindColumn(c.FKColumn) == nil {
				return nil, tankerr.NewSchemaError(t.Name, c.Name, fmt.Sprintf("m2o references unknown column %q on table %q", c.FKColumn, c.FKTable))
			}
		}
	}

	return reg, nil
}

// Table returns the named table and whether it was found.
func (r *Registry) Table(name string) (*Table, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// MustTable returns the named table, panicking if it is absent. Callers
// that have already validated the reference (e.g. via NewRegistry) use
// this to avoid repeating the ok-check.
func (r *Registry) MustTable(name string) *Table {
	t, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("schema: table %q not found in registry", name))
	}
	return t
}

// Tables returns every table in registration order.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// process-wide, per-URI registry cache (§3, Lifecycle: "cached
// process-wide"). Grounded on internal/dialect.registry's
// mutex-guarded map pattern.
var (
	cacheMu sync.RWMutex
	cache   = map[string]*Registry{}
)

// GetOrBuild returns the cached Registry for uri, building it with build
// on first access. Subsequent callers for the same uri within the
// process see the same Registry without re-running build.
func GetOrBuild(uri string, build func() (*Registry, error)) (*Registry, error) {
	cacheMu.RLock()
	if reg, ok := cache[uri]; ok {
		cacheMu.RUnlock()
		return reg, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if reg, ok := cache[uri]; ok {
		return reg, nil
	}

	reg, err := build()
	if err != nil {
		return nil, err
	}
	cache[uri] = reg
	return reg, nil
}

// resetCache clears the process-wide registry cache. Intended for tests
// only.
func resetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[string]*Registry{}
}
