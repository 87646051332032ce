package source

import "context"

// Adapter is the contract every context source implements.
//
// Implementations own their network resources (HTTP clients, sessions)
// and release them in Close. FetchTaskContext may return an error; the
// fetch coordinator converts errors and timeouts into failed Contexts so
// a single misbehaving source never aborts a request.
type Adapter interface {
	// Name returns the unique adapter name (e.g. "jira", "docs").
	Name() string

	// SourceType returns one of the fixed source type categories.
	SourceType() string

	// Primary reports whether this adapter is fetched first and its
	// result handed to the secondaries as a hint.
	Primary() bool

	// NeedsPrimaryContext reports whether FetchTaskContext wants the
	// primary's Context as a hint. Adapters flagged true still run
	// with a nil hint when the primary failed or is absent.
	NeedsPrimaryContext() bool

	// FetchTaskContext fetches everything this source knows about a
	// task. hint is the primary source's Context, or nil.
	FetchTaskContext(ctx context.Context, taskID string, hint *Context) (Context, error)

	// Search runs a fast keyword search over this source. No LLM, no
	// caching; used by the search_context tool.
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)

	// HealthCheck reports whether the adapter is configured correctly
	// and can reach its backing service.
	HealthCheck(ctx context.Context) bool

	// Close releases the adapter's resources.
	Close() error
}
