package main

import (
	"context"
	"fmt"

	"tanker"
	"tanker/view"
)

func runDelete(ctx context.Context, table string, f *commonFlags) error {
	var data any
	if len(f.filters) == 0 {
		rows, err := loadRowData(f)
		if err != nil {
			return fmt.Errorf("tanker: delete requires --filter or --file: %w", err)
		}
		data = rows
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
	pipeline, err := v.Delete(view.DeleteOptions{
		Filters:    f.filters,
		ACLFilters: pool.Config().ACLWrite[table],
		Data:       data,
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
	if err := c.RunDelete(ctx, pipeline); err != nil {
		_ = c.Leave(ctx, err)
		return err
	}
	if err := c.Leave(ctx, nil); err != nil {
		return err
	}

	fmt.Printf("deleted rows from %q\n", table)
	return nil
}
