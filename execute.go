package tanker

import (
	"context"
	"database/sql"
	"fmt"

	"tanker/view"
)

// RunRead executes a view.Statement assembled by View.Read and returns a
// cursor over the result set.
func (c *Context) RunRead(ctx context.Context, stmt *view.Statement) (Rows, error) {
	return c.Query(ctx, stmt.SQL, stmt.Params...)
}

// RunWrite drives the steps of a view.Pipeline assembled by View.Write
// against this Context's connection, per §4.6: each SQL step executes in
// order, with the bulk-load step run through the Pool's backend.Adapter
// directly (it streams Pipeline.Rows rather than carrying a SQL string).
// The returned view.WriteResult reports how many rows purge_pre/
// purge_post rejected (Filtered) and purge_main removed (Deleted),
// drawn from each step's RowsAffected.
func (c *Context) RunWrite(ctx context.Context, p *view.Pipeline) (view.WriteResult, error) {
	root := c.root()
	var result view.WriteResult

	for _, step := range p.Steps {
		if step.Kind == "create" {
			if _, err := c.Exec(ctx, step.SQL, step.Params...); err != nil {
				return result, fmt.Errorf("tanker: write pipeline step %q: %w", step.Kind, err)
			}
			if err := c.bulkLoad(ctx, root, p); err != nil {
				return result, fmt.Errorf("tanker: write pipeline bulk load: %w", err)
			}
			continue
		}
		n, err := c.Exec(ctx, step.SQL, step.Params...)
		if err != nil {
			return result, fmt.Errorf("tanker: write pipeline step %q: %w", step.Kind, err)
		}
		switch step.Kind {
		case "purge_pre", "purge_post":
			result.Filtered += n
		case "purge_main":
			result.Deleted += n
		}
	}
	return result, nil
}

// RunDelete drives the steps of a view.Pipeline assembled by View.Delete.
// A filter-driven delete is a single statement with no staging table; a
// data-driven delete stages key-column rows and joins against them,
// which is exactly the "create" step + bulk load + apply-step shape
// RunWrite already executes, so RunDelete simply reuses it and discards
// the WriteResult, which carries no meaning for a delete pipeline (a
// delete has no purge_pre/purge_post/purge_main steps of its own).
func (c *Context) RunDelete(ctx context.Context, p *view.Pipeline) error {
	_, err := c.RunWrite(ctx, p)
	return err
}

// bulkLoad streams Pipeline.Rows into the staging table right after it is
// created, via the backend's configured bulk-load channel (§4.6 step 3).
func (c *Context) bulkLoad(ctx context.Context, root *Context, p *view.Pipeline) error {
	adapter := root.pool.adapter
	if root.sqlConn != nil {
		return adapter.BulkLoad(ctx, root.sqlConn, p.Plan.Table, p.StagingColumns, p.Rows)
	}
	// postgres/crdb: the adapter drives its own pgxpool.Pool and ignores
	// the *sql.Conn argument entirely.
	return adapter.BulkLoad(ctx, (*sql.Conn)(nil), p.Plan.Table, p.StagingColumns, p.Rows)
}
