// Package tanker is a relational data-access library centered on bulk,
// idempotent, foreign-key-aware table synchronization (§1). Clients
// describe a schema once with schema.NewRegistry or tomlschema.Load,
// open a Pool against a connection URI, and read/write through
// view.View projections inside an Enter/Leave-scoped Context.
package tanker

import (
	"tanker/schema"
)

// Config configures a Pool, per §6's external-interface table.
type Config struct {
	DBURI string

	// Schema supplies the registered tables, either directly or via a
	// TOML file path — exactly one of Tables/TOMLPath should be set. If
	// neither is set, the Pool introspects the live database instead
	// (auto-schema mode, §4.8).
	Schema SchemaSource

	// Encoding is the text encoding non-UTF-8 bytes are decoded with
	// before varchar coercion (§4.1).
	Encoding string

	// ACLRead/ACLWrite map a table name to a filter list implicitly
	// ANDed into every read, or enforced on both images of every write.
	ACLRead  map[string][]string
	ACLWrite map[string][]string

	PGMinPoolSize int
	PGMaxPoolSize int
}

// SchemaSource names where a Pool's schema.Registry comes from.
type SchemaSource struct {
	Tables   []*schema.Table
	TOMLPath string
}
