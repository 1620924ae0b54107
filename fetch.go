package cache

import (
	"context"
	"fmt"

	api "github.com/krisalay/swr-cache/api"
	"github.com/krisalay/swr-cache/types"
)

// Fetch is Get with a typed loader and result.
//
// All loaders for one key must produce the same T. A cached value of another
// type is reported as an error rather than a panic.
func Fetch[T any](ctx context.Context, c api.Cache, key string, load func(context.Context) (T, error), opts ...types.GetOption) (T, error) {
	var zero T

	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	}, opts...)
	if err != nil || v == nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("swr-cache: value for %q is %T, want %T", key, v, zero)
	}
	return t, nil
}
