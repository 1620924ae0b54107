package types

// GetOptions tune a single Get call.
type GetOptions struct {
	// SkipCache forces the caller to wait for a fresh load even when a
	// value is cached. The result is written back into the store.
	SkipCache bool
}

type GetOption func(*GetOptions)

// SkipCache bypasses the cached value for one call.
func SkipCache() GetOption {
	return func(o *GetOptions) { o.SkipCache = true }
}

// ApplyGetOptions folds opts into a GetOptions value.
func ApplyGetOptions(opts ...GetOption) GetOptions {
	var o GetOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
