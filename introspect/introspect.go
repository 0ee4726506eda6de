// Package introspect builds a []*schema.Table from a live database's
// system catalog, for tanker's auto-schema mode (§4.8). It follows the
// teacher's introspect registry almost verbatim: one Introspecter per
// backend, selected by dialect at runtime rather than compiled in.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"tanker/backend"
	"tanker/schema"
)

// Introspecter discovers every base table, column, and single-column
// foreign key reachable through db and returns them as registrable
// schema.Table values.
type Introspecter interface {
	Introspect(ctx context.Context, db *sql.DB) ([]*schema.Table, error)
}

var (
	mu       sync.RWMutex
	registry = make(map[backend.Type]func() Introspecter)
)

// Register adds the constructor for an Introspecter backing t.
func Register(t backend.Type, fn func() Introspecter) {
	mu.Lock()
	defer mu.Unlock()
	registry[t] = fn
}

// New returns a fresh Introspecter for t.
func New(t backend.Type) (Introspecter, error) {
	mu.RLock()
	fn, ok := registry[t]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("introspect: no introspecter registered for %q", t)
	}
	return fn(), nil
}
