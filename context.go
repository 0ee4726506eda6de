package tanker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tanker/tankerr"
)

type ctxKey struct{ pool *Pool }

// Context wraps the single connection/transaction a logical unit of work
// runs through, for exactly one Pool. Enter/Leave realize a thread-bound
// stack as a context.Context value chain (§4.8, Open Question): a nested
// Enter for the same Pool returns a child sharing the outer Context's
// connection and transaction, and only the outermost Leave commits (or
// rolls back) and releases the connection.
type Context struct {
	pool   *Pool
	parent *Context // nil for the outermost Context

	sqlConn *sql.Conn
	sqlTx   *sql.Tx

	pgConn *pgxpool.Conn
	pgTx   pgx.Tx
}

// Enter acquires (or reuses) a connection and begins (or joins) a
// transaction against pool, returning a context.Context carrying the new
// Context for downstream calls to retrieve with FromPool.
func Enter(ctx context.Context, pool *Pool) (context.Context, *Context, error) {
	if existing, ok := FromPool(ctx, pool); ok {
		child := &Context{pool: pool, parent: existing}
		return WithContext(ctx, child), child, nil
	}

	c := &Context{pool: pool}
	if pool.pgPool != nil {
		conn, err := pool.pgPool.Acquire(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("tanker: acquire postgres connection: %w", err)
		}
		tx, err := conn.Begin(ctx)
		if err != nil {
			conn.Release()
			return nil, nil, fmt.Errorf("tanker: begin postgres transaction: %w", err)
		}
		c.pgConn, c.pgTx = conn, tx
	} else {
		conn, err := pool.db.Conn(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("tanker: acquire %s connection: %w", pool.adapter.Name(), err)
		}
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("tanker: begin %s transaction: %w", pool.adapter.Name(), err)
		}
		c.sqlConn, c.sqlTx = conn, tx
	}

	return WithContext(ctx, c), c, nil
}

// Leave ends the unit of work begun by the matching Enter. Nested
// Contexts are a no-op: only the outermost Leave commits (err == nil) or
// rolls back (err != nil), then releases the underlying connection.
func (c *Context) Leave(ctx context.Context, err error) error {
	if c.parent != nil {
		return nil
	}

	var finishErr error
	if c.pgTx != nil {
		if err != nil {
			finishErr = c.pgTx.Rollback(ctx)
		} else {
			finishErr = c.pgTx.Commit(ctx)
		}
		c.pgConn.Release()
	} else if c.sqlTx != nil {
		if err != nil {
			finishErr = c.sqlTx.Rollback()
		} else {
			finishErr = c.sqlTx.Commit()
		}
		_ = c.sqlConn.Close()
	}
	if finishErr != nil {
		return fmt.Errorf("tanker: leave: %w", finishErr)
	}
	return nil
}

// root walks up to the outermost Context, which owns the live
// connection/transaction that every nested Context shares.
func (c *Context) root() *Context {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// Exec runs a statement, rewritten via the Pool's backend.Adapter, and
// returns the number of affected rows.
func (c *Context) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	r := c.root()
	rewritten := r.pool.adapter.RewriteSQL(query)

	if r.pgTx != nil {
		tag, err := r.pgTx.Exec(ctx, rewritten, args...)
		if err != nil {
			return 0, tankerr.NewDatabaseError(rewritten, args, err)
		}
		return tag.RowsAffected(), nil
	}

	res, err := r.sqlTx.ExecContext(ctx, rewritten, args...)
	if err != nil {
		return 0, tankerr.NewDatabaseError(rewritten, args, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, tankerr.NewDatabaseError(rewritten, args, err)
	}
	return n, nil
}

// Query runs a statement and returns a backend-agnostic Rows cursor.
func (c *Context) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	r := c.root()
	rewritten := r.pool.adapter.RewriteSQL(query)

	if r.pgTx != nil {
		rows, err := r.pgTx.Query(ctx, rewritten, args...)
		if err != nil {
			return nil, tankerr.NewDatabaseError(rewritten, args, err)
		}
		return &pgxRows{rows: rows}, nil
	}

	rows, err := r.sqlTx.QueryContext(ctx, rewritten, args...)
	if err != nil {
		return nil, tankerr.NewDatabaseError(rewritten, args, err)
	}
	return rows, nil
}

// WithContext returns a derived context carrying c, retrievable with FromPool.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{pool: c.pool}, c)
}

// FromPool retrieves the Context bound to pool on ctx, if one has been
// installed by a prior Enter/WithContext for that same Pool.
func FromPool(ctx context.Context, pool *Pool) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{pool: pool}).(*Context)
	return c, ok
}

// Rows unifies *sql.Rows (database/sql) and pgx.Rows (pgx) behind one
// cursor interface so view/execution code doesn't branch on backend.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// pgxRows adapts pgx.Rows to the Rows interface: pgx.Rows.Close returns
// no value, and its column metadata comes from FieldDescriptions rather
// than a Columns method.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Close() error {
	r.rows.Close()
	return r.rows.Err()
}

func (r *pgxRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}
