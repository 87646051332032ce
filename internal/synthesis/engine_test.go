package synthesis

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/devscontext/devscontext/internal/config"
	"github.com/devscontext/devscontext/internal/logging"
	"github.com/devscontext/devscontext/internal/source"
)

// failingProvider always errors, to exercise the fallback path.
type failingProvider struct{}

func (failingProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return "", errors.New("provider down")
}

// cannedProvider returns a fixed body.
type cannedProvider struct{ body string }

func (p cannedProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return p.body, nil
}

func sampleContexts() []source.Context {
	return []source.Context{
		{SourceName: "jira", SourceType: source.TypeIssueTracker, RawText: "Ticket PROJ-1: add webhook retries."},
		{SourceName: "meetings", SourceType: source.TypeMeeting, RawText: ""},
		{SourceName: "chat", SourceType: source.TypeCommunication, Err: "timeout"},
		{SourceName: "docs", SourceType: source.TypeDocumentation, RawText: "Webhook handlers live in internal/hooks."},
	}
}

func TestNew_SelectsEngine(t *testing.T) {
	e, err := New(config.SynthesisConfig{Engine: "passthrough"}, logging.NewDiscard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := e.(*PassthroughEngine); !ok {
		t.Errorf("engine = %T, want *PassthroughEngine", e)
	}

	if _, err := New(config.SynthesisConfig{Engine: "llm", Provider: "anthropic"}, nil); err == nil {
		t.Error("llm engine without api_key should fail")
	}
	if _, err := New(config.SynthesisConfig{Engine: "bogus"}, nil); err == nil {
		t.Error("unknown engine should fail")
	}
}

func TestPassthrough_SynthesizeIsFallback(t *testing.T) {
	e := &PassthroughEngine{}
	body, err := e.Synthesize(context.Background(), "PROJ-1", sampleContexts())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(body, "## Source: jira") || !strings.Contains(body, "## Source: docs") {
		t.Errorf("body missing contributing sources:\n%s", body)
	}
	if strings.Contains(body, "## Source: chat") {
		t.Errorf("failed source should not appear in body:\n%s", body)
	}
}

func TestLLMEngine_FallsBackOnProviderError(t *testing.T) {
	e := &LLMEngine{provider: failingProvider{}, maxTokens: 100, log: logging.NewDiscard()}
	body, err := e.Synthesize(context.Background(), "PROJ-1", sampleContexts())
	if err != nil {
		t.Fatalf("Synthesize should fail soft, got error: %v", err)
	}
	if !strings.Contains(body, "# Context for PROJ-1") {
		t.Errorf("fallback body malformed:\n%s", body)
	}
}

func TestLLMEngine_UsesProviderOutput(t *testing.T) {
	e := &LLMEngine{provider: cannedProvider{body: "## Task: PROJ-1\nsynthesized"}, maxTokens: 100, log: logging.NewDiscard()}
	body, err := e.Synthesize(context.Background(), "PROJ-1", sampleContexts())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if body != "## Task: PROJ-1\nsynthesized" {
		t.Errorf("body = %q, want provider output", body)
	}
}

func TestLLMEngine_RefineKeepsDraftOnError(t *testing.T) {
	e := &LLMEngine{provider: failingProvider{}, maxTokens: 100, log: logging.NewDiscard()}
	got, err := e.Refine(context.Background(), "PROJ-1", "the draft")
	if err != nil {
		t.Fatalf("Refine should fail soft: %v", err)
	}
	if got != "the draft" {
		t.Errorf("Refine = %q, want original draft", got)
	}
}

func TestFallback_NoUsableSources(t *testing.T) {
	body := Fallback("PROJ-9", []source.Context{{SourceName: "jira", Err: "down"}})
	if !strings.Contains(body, "No source context available.") {
		t.Errorf("empty fallback body = %q", body)
	}
}

func TestSourcesUsed(t *testing.T) {
	got := SourcesUsed(sampleContexts())
	want := []string{"jira", "docs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SourcesUsed = %v, want %v", got, want)
	}
}
