package main

import (
	"context"
	"fmt"

	"tanker"
	"tanker/view"
)

func runWrite(ctx context.Context, table string, f *commonFlags) error {
	rows, err := loadRowData(f)
	if err != nil {
		return err
	}

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
	pipeline, err := v.Write(view.WriteOptions{
		Rows:       rows,
		Filters:    f.filters,
		ACLFilters: pool.Config().ACLWrite[table],
		Swap:       f.purge,
		Backend:    pool.Adapter(),
		Quote:      quote,
	})
	if err != nil {
		return err
	}

	ctx, c, err := tanker.Enter(ctx, pool)
	if err != nil {
		return err
	}
	result, err := c.RunWrite(ctx, pipeline)
	if err != nil {
		_ = c.Leave(ctx, err)
		return err
	}
	if err := c.Leave(ctx, nil); err != nil {
		return err
	}

	fmt.Printf("wrote %d row(s) to %q (filtered %d, deleted %d)\n", len(rows), table, result.Filtered, result.Deleted)
	return nil
}
