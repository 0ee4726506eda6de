package main

import (
	"context"
	"fmt"

	"tanker"
)

func runInit(ctx context.Context, f *commonFlags) error {
	pool, err := openPool(ctx, f)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, c, err := tanker.Enter(ctx, pool)
	if err != nil {
		return err
	}
	if err := tanker.CreateTables(ctx, c, pool); err != nil {
		_ = c.Leave(ctx, err)
		return err
	}
	if err := c.Leave(ctx, nil); err != nil {
		return err
	}

	fmt.Printf("synchronized %d table(s)\n", len(pool.Registry().Tables()))
	return nil
}
