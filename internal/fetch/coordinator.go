// Package fetch fans a context request out to every enabled source
// adapter and fans the results back in. The coordinator never fails the
// caller: an adapter error, panic, or timeout becomes a failed Context
// entry, and the result always has one entry per enabled adapter.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devscontext/devscontext/internal/source"
)

// Options tunes one fetch call. Zero values fall back to the
// coordinator's configured defaults.
type Options struct {
	// PerSourceTimeout bounds each adapter invocation.
	PerSourceTimeout time.Duration
	// OverallTimeout is the ceiling on the whole fan-out; adapters
	// still pending when it elapses are reported as timed out.
	OverallTimeout time.Duration
}

// Result is the outcome of one fan-out. Contexts has exactly one entry
// per enabled adapter, in registry order, failures included.
type Result struct {
	TaskID   string
	Contexts []source.Context
	Duration time.Duration
}

// Primary returns the primary adapter's context, or nil when no primary
// is configured.
func (r Result) Primary(reg *source.Registry) *source.Context {
	p := reg.Primary()
	if p == nil {
		return nil
	}
	for i := range r.Contexts {
		if r.Contexts[i].SourceName == p.Name() {
			return &r.Contexts[i]
		}
	}
	return nil
}

// Coordinator owns the fan-out/fan-in for context fetches.
type Coordinator struct {
	registry         *source.Registry
	perSourceTimeout time.Duration
	overallTimeout   time.Duration
	log              *slog.Logger
}

// NewCoordinator creates a Coordinator with default timeouts applied to
// calls that don't override them.
func NewCoordinator(reg *source.Registry, perSource, overall time.Duration, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		registry:         reg,
		perSourceTimeout: perSource,
		overallTimeout:   overall,
		log:              log,
	}
}

// Fetch runs the fan-out for taskID. The primary adapter (if any) is
// fetched first and its context handed as a hint to secondaries flagged
// NeedsPrimaryContext; when the primary failed the hint is nil but those
// secondaries still run. Fetch never returns an error.
func (c *Coordinator) Fetch(ctx context.Context, taskID string, opts Options) Result {
	start := time.Now()

	perSource := opts.PerSourceTimeout
	if perSource <= 0 {
		perSource = c.perSourceTimeout
	}
	overall := opts.OverallTimeout
	if overall <= 0 {
		overall = c.overallTimeout
	}

	fctx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	adapters := c.registry.All()
	byName := make(map[string]source.Context, len(adapters))

	// Primary first: its result seeds the hint for secondaries.
	var primaryCtx *source.Context
	if p := c.registry.Primary(); p != nil {
		sc := c.fetchOne(fctx, p, taskID, nil, perSource)
		byName[p.Name()] = sc
		if !sc.Failed() {
			primaryCtx = &sc
		}
	}

	// Remaining adapters run concurrently.
	secondaries := c.registry.Secondaries()
	results := make([]source.Context, len(secondaries))
	g, gctx := errgroup.WithContext(fctx)
	for i, a := range secondaries {
		g.Go(func() error {
			var hint *source.Context
			if a.NeedsPrimaryContext() {
				hint = primaryCtx
			}
			results[i] = c.fetchOne(gctx, a, taskID, hint, perSource)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are in-band

	for i, a := range secondaries {
		byName[a.Name()] = results[i]
	}

	// Assemble in registry order.
	out := make([]source.Context, 0, len(adapters))
	failed := 0
	for _, a := range adapters {
		sc := byName[a.Name()]
		if sc.Failed() {
			failed++
		}
		out = append(out, sc)
	}

	duration := time.Since(start)
	c.log.Info("fetch complete",
		"task_id", taskID,
		"sources", len(out),
		"failed", failed,
		"duration", duration)

	return Result{TaskID: taskID, Contexts: out, Duration: duration}
}

// fetchOne invokes a single adapter with its own timeout, converting
// errors, panics, and timeouts into a failed Context. The adapter call
// runs in its own goroutine so a source that ignores its context cannot
// stall the fan-out past the deadline.
func (c *Coordinator) fetchOne(ctx context.Context, a source.Adapter, taskID string, hint *source.Context, timeout time.Duration) source.Context {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		sc  source.Context
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("fetch: adapter %s panicked: %v", a.Name(), r)}
			}
		}()
		sc, err := a.FetchTaskContext(actx, taskID, hint)
		ch <- outcome{sc: sc, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			c.log.Warn("adapter fetch failed", "adapter", a.Name(), "task_id", taskID, "error", o.err)
			return failedContext(a, o.err)
		}
		sc := o.sc
		if sc.SourceName == "" {
			sc.SourceName = a.Name()
		}
		if sc.SourceType == "" {
			sc.SourceType = a.SourceType()
		}
		if sc.FetchedAt.IsZero() {
			sc.FetchedAt = time.Now().UTC()
		}
		return sc
	case <-actx.Done():
		c.log.Warn("adapter fetch timed out", "adapter", a.Name(), "task_id", taskID)
		return failedContext(a, actx.Err())
	}
}

func failedContext(a source.Adapter, err error) source.Context {
	return source.Context{
		SourceName: a.Name(),
		SourceType: a.SourceType(),
		FetchedAt:  time.Now().UTC(),
		Err:        err.Error(),
	}
}
