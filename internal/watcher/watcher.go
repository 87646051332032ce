// Package watcher polls the issue tracker for tickets that entered the
// trigger status and feeds them to the preprocessing pipeline.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devscontext/devscontext/internal/prebuilt"
)

// Task is a ticket the tracker reports as ready for preprocessing.
type Task struct {
	ID      string
	Title   string
	Updated time.Time
}

// Lister reports tickets currently in the trigger status.
type Lister interface {
	ListReadyTasks(ctx context.Context) ([]Task, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context) ([]Task, error)

func (f ListerFunc) ListReadyTasks(ctx context.Context) ([]Task, error) { return f(ctx) }

// Builder builds and persists context for a single task.
type Builder interface {
	Build(ctx context.Context, taskID string, force bool) (*prebuilt.Record, error)
}

// Stats summarizes one poll cycle.
type Stats struct {
	Listed  int
	Built   int
	Skipped int
	Failed  int
}

// Watcher runs the poll loop. Cycles never overlap: if a poll is still
// running when the next tick fires, the tick is dropped.
type Watcher struct {
	lister   Lister
	builder  Builder
	store    *prebuilt.Store
	interval time.Duration
	log      *slog.Logger

	mu sync.Mutex
}

// New creates a watcher polling every interval.
func New(lister Lister, builder Builder, store *prebuilt.Store, interval time.Duration, log *slog.Logger) *Watcher {
	return &Watcher{
		lister:   lister,
		builder:  builder,
		store:    store,
		interval: interval,
		log:      log,
	}
}

// Interval returns the poll interval Run uses.
func (w *Watcher) Interval() time.Duration { return w.interval }

// PollOnce runs a single cycle: list ready tickets, build context for the
// ones whose stored record is missing, expired, or older than the ticket's
// last update. Returns cycle stats; a listing failure is an error, but
// individual build failures only count toward Stats.Failed.
func (w *Watcher) PollOnce(ctx context.Context) (Stats, error) {
	if !w.mu.TryLock() {
		w.log.Debug("watcher: poll already in progress, skipping cycle")
		return Stats{}, nil
	}
	defer w.mu.Unlock()

	tasks, err := w.lister.ListReadyTasks(ctx)
	if err != nil {
		w.log.Error("watcher: listing ready tickets failed", "error", err)
		return Stats{}, err
	}

	stats := Stats{Listed: len(tasks)}
	for _, task := range tasks {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if w.fresh(task) {
			stats.Skipped++
			w.log.Debug("watcher: context still fresh", "task_id", task.ID)
			continue
		}
		w.log.Info("watcher: building context", "task_id", task.ID, "title", task.Title)
		if _, err := w.builder.Build(ctx, task.ID, false); err != nil {
			stats.Failed++
			w.log.Error("watcher: build failed", "task_id", task.ID, "error", err)
			continue
		}
		stats.Built++
	}

	w.log.Info("watcher: poll cycle complete",
		"listed", stats.Listed, "built", stats.Built,
		"skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

// fresh reports whether the stored record for the task still covers the
// ticket's latest update.
func (w *Watcher) fresh(task Task) bool {
	rec, err := w.store.Get(task.ID)
	if err != nil || rec == nil {
		return false
	}
	if rec.Expired() {
		return false
	}
	return !task.Updated.After(rec.BuiltAt)
}

// Run polls immediately, then on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watcher: starting", "interval", w.interval.String())

	if _, err := w.PollOnce(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher: stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.PollOnce(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
