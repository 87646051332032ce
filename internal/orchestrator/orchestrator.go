// Package orchestrator answers context requests, layering the read path
// over the pre-built store and the in-memory dedup cache.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/devscontext/devscontext/internal/dedup"
	"github.com/devscontext/devscontext/internal/fetch"
	"github.com/devscontext/devscontext/internal/prebuilt"
	"github.com/devscontext/devscontext/internal/quality"
	"github.com/devscontext/devscontext/internal/source"
	"github.com/devscontext/devscontext/internal/synthesis"
)

// Prober is implemented by primary adapters that can cheaply report a
// task's last-update time without a full fetch.
type Prober interface {
	Probe(ctx context.Context, taskID string) (time.Time, error)
}

// StandardsProvider is implemented by documentation adapters that can
// render the team's standards documents.
type StandardsProvider interface {
	Standards(ctx context.Context) (string, error)
}

// Status reports the orchestrator's storage and cache state.
type Status struct {
	Store     prebuilt.Stats `json:"store"`
	CacheSize int            `json:"cache_size"`
}

// Orchestrator serves task context, search, and standards requests.
type Orchestrator struct {
	registry *source.Registry
	fetcher  *fetch.Coordinator
	engine   synthesis.Engine
	cache    *dedup.Cache
	store    *prebuilt.Store
	log      *slog.Logger
}

// New wires the read path. store may be shared with the background
// watcher; cache is private to the on-demand path.
func New(reg *source.Registry, fetcher *fetch.Coordinator, engine synthesis.Engine, cache *dedup.Cache, store *prebuilt.Store, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		fetcher:  fetcher,
		engine:   engine,
		cache:    cache,
		store:    store,
		log:      log,
	}
}

// GetTaskContext returns the synthesized context for a task. The fast
// path serves a live pre-built record; otherwise the request falls
// through to the dedup cache, which builds on demand. refresh bypasses
// both layers and rebuilds from the sources.
func (o *Orchestrator) GetTaskContext(ctx context.Context, taskID string, refresh bool) (*synthesis.Synthesized, error) {
	if taskID == "" {
		return nil, fmt.Errorf("orchestrator: task id is required")
	}

	if refresh {
		o.cache.Invalidate(taskID)
		res, err := o.buildOnDemand(ctx, taskID)
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	if rec, err := o.store.Get(taskID); err == nil && rec != nil && !rec.Expired() {
		if !o.prebuiltStale(ctx, rec) {
			o.log.Debug("orchestrator: serving pre-built context",
				"task_id", taskID, "built_at", rec.BuiltAt)
			return rec.Result(), nil
		}
		o.log.Info("orchestrator: pre-built context stale, rebuilding on demand",
			"task_id", taskID)
	}

	return o.cache.GetOrBuild(ctx, taskID, func(ctx context.Context) (*synthesis.Synthesized, error) {
		return o.buildOnDemand(ctx, taskID)
	})
}

// prebuiltStale asks the primary adapter, when it can answer cheaply,
// whether the task changed after the record was built. Probe failures
// never block the fast path.
func (o *Orchestrator) prebuiltStale(ctx context.Context, rec *prebuilt.Record) bool {
	p, ok := o.registry.Primary().(Prober)
	if !ok {
		return false
	}
	updated, err := p.Probe(ctx, rec.TaskID)
	if err != nil {
		o.log.Debug("orchestrator: staleness probe failed, serving stored context",
			"task_id", rec.TaskID, "error", err)
		return false
	}
	return updated.After(rec.BuiltAt)
}

// buildOnDemand runs the interactive single-pass build: shallow fetch,
// one synthesis pass, quality scoring. No refinement, no persistence;
// that is the background pipeline's job.
func (o *Orchestrator) buildOnDemand(ctx context.Context, taskID string) (*synthesis.Synthesized, error) {
	res := o.fetcher.Fetch(ctx, taskID, fetch.Options{})
	if len(res.Contexts) == 0 {
		return nil, fmt.Errorf("orchestrator: build %s: no sources configured", taskID)
	}

	body, err := o.engine.Synthesize(ctx, taskID, res.Contexts)
	if err != nil {
		body = synthesis.Fallback(taskID, res.Contexts)
	}

	ticket := source.TicketFromContext(res.Primary(o.registry))
	score, gaps := quality.Score(ticket, res.Contexts)

	o.log.Info("orchestrator: built context on demand",
		"task_id", taskID, "quality", score, "duration", res.Duration.String())

	return &synthesis.Synthesized{
		TaskID:       taskID,
		Body:         body,
		SourcesUsed:  synthesis.SourcesUsed(res.Contexts),
		QualityScore: score,
		Gaps:         quality.Descriptions(gaps),
		BuiltAt:      time.Now().UTC(),
	}, nil
}

// SearchContext fans a keyword query out to every adapter and merges
// the hits, best first. It reads and writes no caches: results always
// reflect the live sources.
func (o *Orchestrator) SearchContext(ctx context.Context, query string, maxResults int) ([]source.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("orchestrator: search query is required")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	adapters := o.registry.All()
	var (
		mu      sync.Mutex
		results []source.SearchResult
		wg      sync.WaitGroup
	)
	for _, a := range adapters {
		wg.Add(1)
		go func(a source.Adapter) {
			defer wg.Done()
			hits, err := a.Search(ctx, query, maxResults)
			if err != nil {
				o.log.Debug("orchestrator: search failed for source",
					"source", a.Name(), "error", err)
				return
			}
			mu.Lock()
			results = append(results, hits...)
			mu.Unlock()
		}(a)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// GetStandards renders the team's standards documents. It bypasses all
// caching: standards change rarely but must never be served stale.
func (o *Orchestrator) GetStandards(ctx context.Context) (string, error) {
	for _, a := range o.registry.All() {
		if a.SourceType() != source.TypeDocumentation {
			continue
		}
		if sp, ok := a.(StandardsProvider); ok {
			return sp.Standards(ctx)
		}
	}
	return "", fmt.Errorf("orchestrator: no documentation source provides standards")
}

// HealthCheck reports per-adapter health.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[string]bool {
	return o.registry.HealthCheck(ctx)
}

// InvalidateCache drops both the in-memory entry and the stored record
// for a task. Returns whether a stored record existed.
func (o *Orchestrator) InvalidateCache(taskID string) (bool, error) {
	o.cache.Invalidate(taskID)
	return o.store.Delete(taskID)
}

// GetStatus reports storage stats and the dedup cache size.
func (o *Orchestrator) GetStatus() (Status, error) {
	stats, err := o.store.GetStats()
	if err != nil {
		return Status{}, err
	}
	return Status{Store: stats, CacheSize: o.cache.Len()}, nil
}
