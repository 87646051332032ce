// Package synthesis combines fetched source contexts into one markdown
// body. Two engines exist: an LLM-backed engine with provider selection
// and a passthrough engine that formats the raw text directly. Both fail
// soft — a synthesis failure degrades to the concatenation fallback, it
// never aborts a request.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devscontext/devscontext/internal/config"
	"github.com/devscontext/devscontext/internal/source"
)

// Engine combines source contexts into a synthesized markdown body.
type Engine interface {
	// Synthesize produces the context body for a task. Implementations
	// degrade to Fallback instead of returning an error for provider
	// failures; an error return means even the fallback was impossible.
	Synthesize(ctx context.Context, taskID string, contexts []source.Context) (string, error)

	// Refine runs a refinement pass over an existing draft, tightening
	// structure and citations. Fails soft by returning the draft.
	Refine(ctx context.Context, taskID, draft string) (string, error)
}

// New builds the engine selected by configuration.
func New(cfg config.SynthesisConfig, log *slog.Logger) (Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Engine {
	case "", "passthrough":
		return &PassthroughEngine{}, nil
	case "llm":
		provider, err := newProvider(cfg)
		if err != nil {
			return nil, err
		}
		return &LLMEngine{
			provider:  provider,
			maxTokens: cfg.MaxOutputTokens,
			log:       log,
		}, nil
	default:
		return nil, fmt.Errorf("synthesis: unknown engine %q", cfg.Engine)
	}
}

// PassthroughEngine formats the raw source text without any LLM call.
type PassthroughEngine struct{}

// Synthesize returns the concatenation fallback directly.
func (e *PassthroughEngine) Synthesize(_ context.Context, taskID string, contexts []source.Context) (string, error) {
	return Fallback(taskID, contexts), nil
}

// Refine is a no-op for the passthrough engine.
func (e *PassthroughEngine) Refine(_ context.Context, _ string, draft string) (string, error) {
	return draft, nil
}

const synthesisPrompt = `Combine the following source material into a unified context block
for an AI coding assistant working on task %s.

Use this structure:
## Task: %s
### Requirements
### Key Decisions
### Architecture Context
### Coding Standards
### Related Work

Rules:
- Be concise but complete.
- For each fact, note the source in [brackets] at the end.
- If sources conflict, note the conflict explicitly.
- Do NOT include generic advice.

Source material:
---
%s
---`

const refinementPrompt = `Refine this context block for task %s: tighten the structure,
remove repetition, and make sure every fact keeps its [source] citation.
Return only the refined markdown.

---
%s
---`

// LLMEngine synthesizes through a configured LLM provider.
type LLMEngine struct {
	provider  Provider
	maxTokens int
	log       *slog.Logger
}

// Synthesize runs a single synthesis pass. Provider failures degrade to
// the concatenation fallback.
func (e *LLMEngine) Synthesize(ctx context.Context, taskID string, contexts []source.Context) (string, error) {
	raw := combineRawText(contexts)
	if raw == "" {
		return Fallback(taskID, contexts), nil
	}

	start := time.Now()
	body, err := e.provider.Generate(ctx, fmt.Sprintf(synthesisPrompt, taskID, taskID, raw), e.maxTokens)
	if err != nil || strings.TrimSpace(body) == "" {
		e.log.Warn("synthesis failed, using fallback",
			"task_id", taskID, "error", err)
		return Fallback(taskID, contexts), nil
	}

	e.log.Debug("synthesis pass complete",
		"task_id", taskID, "duration", time.Since(start))
	return body, nil
}

// Refine runs the refinement pass, returning the draft unchanged when
// the provider fails.
func (e *LLMEngine) Refine(ctx context.Context, taskID, draft string) (string, error) {
	refined, err := e.provider.Generate(ctx, fmt.Sprintf(refinementPrompt, taskID, draft), e.maxTokens)
	if err != nil || strings.TrimSpace(refined) == "" {
		e.log.Warn("refinement failed, keeping draft", "task_id", taskID, "error", err)
		return draft, nil
	}
	return refined, nil
}

// Fallback renders contexts as a plain concatenation grouped by source.
// It is the body used whenever LLM synthesis is unavailable or fails.
func Fallback(taskID string, contexts []source.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Context for %s\n", taskID)

	wrote := false
	for _, c := range contexts {
		if c.Failed() || strings.TrimSpace(c.RawText) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## Source: %s (%s)\n\n%s\n", c.SourceName, c.SourceType, strings.TrimSpace(c.RawText))
		wrote = true
	}
	if !wrote {
		b.WriteString("\nNo source context available.\n")
	}
	return b.String()
}

// combineRawText joins the usable raw text of all contexts with source
// markers, for inclusion in the synthesis prompt.
func combineRawText(contexts []source.Context) string {
	var parts []string
	for _, c := range contexts {
		if c.Failed() || strings.TrimSpace(c.RawText) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("=== %s (%s) ===\n%s", c.SourceName, c.SourceType, strings.TrimSpace(c.RawText)))
	}
	return strings.Join(parts, "\n\n")
}

// SourcesUsed lists the names of contexts that contributed non-empty
// text, in input order.
func SourcesUsed(contexts []source.Context) []string {
	var names []string
	for _, c := range contexts {
		if !c.Failed() && strings.TrimSpace(c.RawText) != "" {
			names = append(names, c.SourceName)
		}
	}
	return names
}
