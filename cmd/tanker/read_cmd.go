package main

import (
	"context"
	"fmt"

	"tanker"
	"tanker/view"
)

func runRead(ctx context.Context, table string, f *commonFlags) error {
	pool, err := openPool(ctx, f)
	if err != nil {
		return err
	}
	defer pool.Close()

	t, ok := pool.Registry().Table(table)
	if !ok {
		return fmt.Errorf("tanker: unknown table %q", table)
	}
	v, err := defaultView(t, pool.Registry())
	if err != nil {
		return err
	}

	quote := pool.Adapter().QuoteIdentifier
	aclFilters := pool.Config().ACLRead[table]
	stmt, err := v.Read(view.ReadOptions{
		Filters:    f.filters,
		ACLFilters: aclFilters,
		Order:      parseOrder(f.sort),
		Limit:      limitPtr(f),
		Offset:     offsetPtr(f),
		Quote:      quote,
	})
	if err != nil {
		return err
	}

	ctx, c, err := tanker.Enter(ctx, pool)
	if err != nil {
		return err
	}

	rows, err := c.RunRead(ctx, stmt)
	if err != nil {
		_ = c.Leave(ctx, err)
		return err
	}
	cols, materialized, err := materialize(rows)
	_ = rows.Close()
	if err != nil {
		_ = c.Leave(ctx, err)
		return err
	}
	if err := c.Leave(ctx, nil); err != nil {
		return err
	}

	return printRows(cols, materialized, f)
}
