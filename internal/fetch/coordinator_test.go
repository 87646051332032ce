package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devscontext/devscontext/internal/logging"
	"github.com/devscontext/devscontext/internal/source"
)

// stubAdapter is a configurable test adapter.
type stubAdapter struct {
	name     string
	primary  bool
	needs    bool
	text     string
	err      error
	panics   bool
	delay    time.Duration
	hintSeen atomic.Pointer[source.Context]
	calls    atomic.Int64
	hinted   atomic.Bool // FetchTaskContext was invoked at all
}

func (s *stubAdapter) Name() string              { return s.name }
func (s *stubAdapter) SourceType() string        { return source.TypeDocumentation }
func (s *stubAdapter) Primary() bool             { return s.primary }
func (s *stubAdapter) NeedsPrimaryContext() bool { return s.needs }

func (s *stubAdapter) FetchTaskContext(ctx context.Context, taskID string, hint *source.Context) (source.Context, error) {
	s.calls.Add(1)
	s.hinted.Store(true)
	if hint != nil {
		s.hintSeen.Store(hint)
	}
	if s.panics {
		panic("adapter exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return source.Context{}, ctx.Err()
		}
	}
	if s.err != nil {
		return source.Context{}, s.err
	}
	return source.Context{
		SourceName: s.name,
		SourceType: s.SourceType(),
		RawText:    s.text,
	}, nil
}

func (s *stubAdapter) Search(ctx context.Context, query string, maxResults int) ([]source.SearchResult, error) {
	return nil, nil
}
func (s *stubAdapter) HealthCheck(ctx context.Context) bool { return true }
func (s *stubAdapter) Close() error                         { return nil }

func newTestRegistry(t *testing.T, adapters ...source.Adapter) *source.Registry {
	t.Helper()
	reg := source.NewRegistry(logging.NewDiscard())
	for _, a := range adapters {
		if err := reg.Register(a); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestFetch_OneEntryPerAdapterDespiteFailures(t *testing.T) {
	ok := &stubAdapter{name: "jira", primary: true, text: "ticket"}
	failing := &stubAdapter{name: "meetings", err: errors.New("api down")}
	panicking := &stubAdapter{name: "chat", panics: true}
	docs := &stubAdapter{name: "docs", text: "docs text"}

	reg := newTestRegistry(t, ok, failing, panicking, docs)
	c := NewCoordinator(reg, time.Second, 5*time.Second, logging.NewDiscard())

	res := c.Fetch(context.Background(), "PROJ-1", Options{})

	if len(res.Contexts) != 4 {
		t.Fatalf("len(Contexts) = %d, want 4", len(res.Contexts))
	}

	byName := map[string]source.Context{}
	for _, sc := range res.Contexts {
		byName[sc.SourceName] = sc
	}
	if byName["jira"].Failed() || byName["docs"].Failed() {
		t.Error("healthy adapters should not be marked failed")
	}
	if !byName["meetings"].Failed() || !byName["chat"].Failed() {
		t.Error("failing and panicking adapters should be marked failed")
	}
	if byName["meetings"].RawText != "" || byName["chat"].RawText != "" {
		t.Error("failed entries must carry empty raw text")
	}
}

func TestFetch_RegistryOrderPreserved(t *testing.T) {
	a := &stubAdapter{name: "jira", primary: true, text: "t"}
	b := &stubAdapter{name: "meetings", text: "m"}
	d := &stubAdapter{name: "docs", text: "d"}
	reg := newTestRegistry(t, a, b, d)
	c := NewCoordinator(reg, time.Second, 5*time.Second, logging.NewDiscard())

	res := c.Fetch(context.Background(), "PROJ-1", Options{})
	for i, want := range []string{"jira", "meetings", "docs"} {
		if res.Contexts[i].SourceName != want {
			t.Errorf("Contexts[%d] = %s, want %s", i, res.Contexts[i].SourceName, want)
		}
	}
}

func TestFetch_SecondaryReceivesPrimaryHint(t *testing.T) {
	primary := &stubAdapter{name: "jira", primary: true, text: "ticket body"}
	secondary := &stubAdapter{name: "docs", needs: true, text: "docs"}
	reg := newTestRegistry(t, primary, secondary)
	c := NewCoordinator(reg, time.Second, 5*time.Second, logging.NewDiscard())

	c.Fetch(context.Background(), "PROJ-1", Options{})

	hint := secondary.hintSeen.Load()
	if hint == nil {
		t.Fatal("secondary flagged needs-primary should receive the primary context")
	}
	if hint.SourceName != "jira" {
		t.Errorf("hint source = %s, want jira", hint.SourceName)
	}
}

func TestFetch_PrimaryTimeoutStillRunsSecondariesWithNilHint(t *testing.T) {
	primary := &stubAdapter{name: "jira", primary: true, delay: 2 * time.Second, text: "late"}
	secondary := &stubAdapter{name: "docs", needs: true, text: "docs"}
	reg := newTestRegistry(t, primary, secondary)
	c := NewCoordinator(reg, 50*time.Millisecond, 3*time.Second, logging.NewDiscard())

	start := time.Now()
	res := c.Fetch(context.Background(), "PROJ-1", Options{})

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fetch took %v, should complete well under the primary's delay", elapsed)
	}
	if !res.Contexts[0].Failed() {
		t.Error("primary should be marked failed after its timeout")
	}
	if !secondary.hinted.Load() {
		t.Fatal("secondary should still run when the primary timed out")
	}
	if secondary.hintSeen.Load() != nil {
		t.Error("secondary hint should be nil when the primary failed")
	}
	if res.Contexts[1].Failed() {
		t.Error("secondary should succeed independently of the primary")
	}
}

func TestFetch_OverallCeilingBoundsSlowSecondaries(t *testing.T) {
	fast := &stubAdapter{name: "jira", primary: true, text: "t"}
	slow := &stubAdapter{name: "meetings", delay: 5 * time.Second}
	reg := newTestRegistry(t, fast, slow)
	c := NewCoordinator(reg, 10*time.Second, 100*time.Millisecond, logging.NewDiscard())

	start := time.Now()
	res := c.Fetch(context.Background(), "PROJ-1", Options{})

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("fetch took %v, want bounded by the 100ms ceiling", elapsed)
	}
	if len(res.Contexts) != 2 {
		t.Fatalf("len(Contexts) = %d, want 2", len(res.Contexts))
	}
	if !res.Contexts[1].Failed() {
		t.Error("adapter pending at the ceiling should be reported as failed")
	}
}

func TestFetch_OptionsOverrideDefaults(t *testing.T) {
	slow := &stubAdapter{name: "jira", primary: true, delay: 150 * time.Millisecond, text: "t"}
	reg := newTestRegistry(t, slow)
	c := NewCoordinator(reg, 10*time.Millisecond, time.Minute, logging.NewDiscard())

	// Default per-source timeout (10ms) would fail; the override allows it.
	res := c.Fetch(context.Background(), "PROJ-1", Options{PerSourceTimeout: time.Second})
	if res.Contexts[0].Failed() {
		t.Error("per-source override should allow the slow adapter to finish")
	}
}
