// Package server wires all components and creates the MCP server.
//
// This is the composition root: it creates concrete implementations
// (adapters, stores, caches, the orchestrator) and injects them into the
// tools that depend on them. No business logic lives here — only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/devscontext/devscontext/internal/config"
	"github.com/devscontext/devscontext/internal/dedup"
	"github.com/devscontext/devscontext/internal/fetch"
	"github.com/devscontext/devscontext/internal/mcptools"
	"github.com/devscontext/devscontext/internal/orchestrator"
	"github.com/devscontext/devscontext/internal/pipeline"
	"github.com/devscontext/devscontext/internal/prebuilt"
	"github.com/devscontext/devscontext/internal/source"
	"github.com/devscontext/devscontext/internal/source/chat"
	"github.com/devscontext/devscontext/internal/source/demo"
	"github.com/devscontext/devscontext/internal/source/docs"
	"github.com/devscontext/devscontext/internal/source/jira"
	"github.com/devscontext/devscontext/internal/source/meetings"
	"github.com/devscontext/devscontext/internal/synthesis"
	"github.com/devscontext/devscontext/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App holds the wired components. The CLI commands share one App: the
// MCP server, the manual build command, and the watcher all work on the
// same store and registry.
type App struct {
	Config       *config.Config
	Log          *slog.Logger
	Registry     *source.Registry
	Store        *prebuilt.Store
	Builder      *pipeline.Builder
	Orchestrator *orchestrator.Orchestrator

	jira *jira.Adapter
}

// NewApp resolves all dependencies from the configuration. The returned
// cleanup function closes the store and the adapters and must be called
// on shutdown (typically via defer). It is always non-nil.
func NewApp(cfg *config.Config, log *slog.Logger) (*App, func(), error) {
	app := &App{Config: cfg, Log: log}

	reg := source.NewRegistry(log)
	if cfg.Sources.Jira.Enabled {
		app.jira = jira.New(cfg.Sources.Jira, log)
		if err := reg.Register(app.jira); err != nil {
			return nil, noop, fmt.Errorf("server: register jira: %w", err)
		}
	}
	if cfg.Sources.Meetings.Enabled {
		if err := reg.Register(meetings.New(cfg.Sources.Meetings, log)); err != nil {
			return nil, noop, fmt.Errorf("server: register meetings: %w", err)
		}
	}
	if cfg.Sources.Chat.Enabled {
		if err := reg.Register(chat.New(cfg.Sources.Chat, log)); err != nil {
			return nil, noop, fmt.Errorf("server: register chat: %w", err)
		}
	}
	if cfg.Sources.Docs.Enabled {
		if err := reg.Register(docs.New(cfg.Sources.Docs, log)); err != nil {
			return nil, noop, fmt.Errorf("server: register docs: %w", err)
		}
	}
	// Demo adapters fill the gaps: only the source types without a real
	// adapter get a canned stand-in, so a half-configured setup still
	// exercises the full pipeline.
	if cfg.Sources.Demo.Enabled {
		for _, a := range demo.All() {
			if hasSourceType(reg, a.SourceType()) {
				continue
			}
			if err := reg.Register(a); err != nil {
				return nil, noop, fmt.Errorf("server: register %s: %w", a.Name(), err)
			}
		}
	}
	if reg.Len() == 0 {
		return nil, noop, fmt.Errorf("server: no sources enabled")
	}
	app.Registry = reg

	engine, err := synthesis.New(cfg.Synthesis, log)
	if err != nil {
		return nil, noop, fmt.Errorf("server: synthesis engine: %w", err)
	}

	store, err := prebuilt.New(cfg.Storage.Path)
	if err != nil {
		return nil, noop, fmt.Errorf("server: open store: %w", err)
	}
	app.Store = store

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("server: store close", "error", err)
		}
		reg.CloseAll()
	}

	fetcher := fetch.NewCoordinator(reg, cfg.Fetch.PerSourceTimeout(), cfg.Fetch.OverallTimeout(), log)
	cache := dedup.New(cfg.Cache.TTL(), cfg.Cache.MaxSize, log)

	app.Builder = pipeline.NewBuilder(reg, fetcher, engine, store, cfg.Preprocessor.ContextTTL(), log)
	app.Orchestrator = orchestrator.New(reg, fetcher, engine, cache, store, log)

	return app, cleanup, nil
}

// NewMCPServer creates the MCP server with the context tools registered.
func (a *App) NewMCPServer() *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		"devscontext",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions()),
	)

	taskContext := mcptools.NewTaskContextTool(a.Orchestrator)
	s.AddTool(taskContext.Definition(), taskContext.Handle)

	search := mcptools.NewSearchTool(a.Orchestrator)
	s.AddTool(search.Definition(), search.Handle)

	standards := mcptools.NewStandardsTool(a.Orchestrator)
	s.AddTool(standards.Definition(), standards.Handle)

	status := mcptools.NewStatusTool(a.Orchestrator)
	s.AddTool(status.Definition(), status.Handle)

	return s
}

// NewWatcher creates the background watcher, or an error when no source
// can list ready tickets. interval overrides the configured poll
// interval when positive.
func (a *App) NewWatcher(interval time.Duration) (*watcher.Watcher, error) {
	lister, err := a.lister()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = a.Config.Preprocessor.PollInterval()
	}
	return watcher.New(lister, a.Builder, a.Store, interval, a.Log), nil
}

// lister picks the ready-ticket source: the real tracker when
// configured, otherwise the demo data.
func (a *App) lister() (watcher.Lister, error) {
	pre := a.Config.Preprocessor
	if a.jira != nil {
		projects := pre.Projects
		if len(projects) == 0 && a.Config.Sources.Jira.Project != "" {
			projects = []string{a.Config.Sources.Jira.Project}
		}
		j := a.jira
		return watcher.ListerFunc(func(ctx context.Context) ([]watcher.Task, error) {
			ready, err := j.ListReady(ctx, projects, pre.TriggerStatus)
			if err != nil {
				return nil, err
			}
			tasks := make([]watcher.Task, len(ready))
			for i, r := range ready {
				tasks[i] = watcher.Task{ID: r.ID, Title: r.Title, Updated: r.Updated}
			}
			return tasks, nil
		}), nil
	}
	if a.Config.Sources.Demo.Enabled {
		return watcher.ListerFunc(func(context.Context) ([]watcher.Task, error) {
			t := demo.TrackerTicket().Ticket
			return []watcher.Task{{ID: t.ID, Title: t.Title, Updated: t.Updated}}, nil
		}), nil
	}
	return nil, fmt.Errorf("server: no source can list ready tickets")
}

func hasSourceType(reg *source.Registry, sourceType string) bool {
	for _, a := range reg.All() {
		if a.SourceType() == sourceType {
			return true
		}
	}
	return false
}

// noop is the default cleanup when wiring fails early.
func noop() {}

func serverInstructions() string {
	return `devscontext aggregates engineering context for tasks: the ticket,
related meeting transcripts, team chat discussions, and documentation,
synthesized into one briefing.

Start with get_task_context when the user mentions a ticket ID. Use
search_context for ad-hoc questions, get_standards before writing code,
and context_status to diagnose missing sources.`
}
