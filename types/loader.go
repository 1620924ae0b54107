package types

import "context"

/*
Loader is the contract between the cache and the data it shields.

The cache never knows what a loader does. It may run an aggregate SQL query,
call another service, or read a file. Binding a key to the right loader is
the caller's job:

	c.Get(ctx, "orders:daily", func(ctx context.Context) (any, error) {
		return repo.DailyOrderTotals(ctx)
	})

A loader is invoked at most once per need, no matter how many goroutines
asked for the same key at the same time. The context it receives carries
the values of the caller that triggered the load but is never cancelled by
the cache, so a started load always runs to completion.
*/
type Loader func(ctx context.Context) (any, error)
