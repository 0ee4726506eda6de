package main

import (
	"context"
	"fmt"
)

func runInfo(ctx context.Context, f *commonFlags) error {
	pool, err := openPool(ctx, f)
	if err != nil {
		return err
	}
	defer pool.Close()

	fmt.Printf("backend: %s\n", pool.Adapter().Name())
	for _, t := range pool.Registry().Tables() {
		fmt.Println(t.String())
	}
	return nil
}
