// Package backend provides a unified interface over the three connection
// families spec.md §4.8/§6 distinguishes: an embedded-file engine, a
// client-server engine with a connection pool, and a distributed-SQL
// dialect layered on the client-server wire protocol. It is structured
// directly on the teacher's dialect-registry pattern.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"sync"
)

// Type names one backend family, parsed from a connection URI's scheme.
type Type string

const (
	SQLite     Type = "sqlite"
	PostgreSQL Type = "postgresql"
	CRDB       Type = "crdb"
	MySQL      Type = "mysql"
)

// Kind distinguishes the three connection models of §4.8.
type Kind int

const (
	KindEmbedded Kind = iota
	KindClientServer
	KindDistributed
)

// Adapter is the per-backend behavior the rest of tanker drives through:
// identifier/string quoting, backend-specific SQL rewriting, bulk load,
// upsert capability, and array-literal rendering.
type Adapter interface {
	Name() Type
	Kind() Kind
	QuoteIdentifier(name string) string
	QuoteString(value string) string
	// RewriteSQL rewrites portable placeholder syntax into the backend's
	// native form: "%(name)s" -> ":name" on the embedded backend and "?"
	// on MySQL, positional "%s" -> "?" (embedded, MySQL) or "$1", "$2", ...
	// (PostgreSQL, which leaves "%(name)s" untouched), and "ilike" ->
	// "like" where the backend has no native ILIKE (§4.8, SQL preparation).
	RewriteSQL(sql string) string
	// UpsertSupported reports whether the preferred INSERT ... ON
	// CONFLICT apply path (§4.6 step 7) is available.
	UpsertSupported() bool
	// ArrayLiteral quotes a pre-built "{v1,v2,...}" array literal for
	// inclusion as a bound parameter, or rewrites it as needed for
	// backends with no native array type.
	ArrayLiteral(literal string) string
	// CreateTableIDClause renders the column definition for a table's
	// implicit auto-incrementing "id" primary key, in the backend's
	// native syntax, for idempotent table creation.
	CreateTableIDClause(quote func(string) string) string
	// BulkLoad streams row-major rows (one slice per row, aligned to
	// columns) into table via the backend's bulk-insert channel (COPY on
	// PostgreSQL/CRDB, prepared INSERT statements on the other backends),
	// per §4.6 step 3.
	BulkLoad(ctx context.Context, conn *sql.Conn, table string, columns []string, rows [][]any) error
}

var (
	registryMu sync.RWMutex
	registry   = map[Type]func() Adapter{}
)

// Register adds a constructor for Type to the registry.
func Register(t Type, ctor func() Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = ctor
}

// Get constructs and returns the Adapter for t.
func Get(t Type) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("backend %q is not registered", t)
	}
	return ctor(), nil
}

// resetRegistry replaces the registry with r. Intended for testing only.
func resetRegistry(r map[Type]func() Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = r
}

// snapshotRegistry returns a shallow copy of the current registry.
// Intended for testing only.
func snapshotRegistry() map[Type]func() Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	snap := make(map[Type]func() Adapter, len(registry))
	maps.Copy(snap, registry)
	return snap
}

// ParseURIScheme extracts the backend Type from a connection URI's
// scheme, rewriting "crdb" onto the PostgreSQL wire family per §6
// ("crdb://... rewritten to the client-server form internally") while
// still reporting Type=CRDB so the retry wrapper is installed.
func ParseURIScheme(scheme string) (Type, error) {
	switch scheme {
	case "sqlite":
		return SQLite, nil
	case "postgresql", "postgres":
		return PostgreSQL, nil
	case "crdb", "cockroachdb":
		return CRDB, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("backend: unrecognized connection scheme %q", scheme)
	}
}
