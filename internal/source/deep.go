package source

import "context"

type deepFetchKey struct{}

// WithDeepFetch marks a context so adapters raise their per-source
// limits (more comments, more excerpts, more matches). Used by the
// background build path; the on-demand path keeps default limits.
func WithDeepFetch(ctx context.Context) context.Context {
	return context.WithValue(ctx, deepFetchKey{}, true)
}

// IsDeepFetch reports whether the context requests a deep fetch.
func IsDeepFetch(ctx context.Context) bool {
	v, _ := ctx.Value(deepFetchKey{}).(bool)
	return v
}
