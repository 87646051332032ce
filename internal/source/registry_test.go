package source

import (
	"context"
	"testing"
)

// fakeAdapter is a minimal Adapter for registry tests.
type fakeAdapter struct {
	name    string
	primary bool
	needs   bool
	closed  bool
}

func (f *fakeAdapter) Name() string              { return f.name }
func (f *fakeAdapter) SourceType() string        { return TypeDocumentation }
func (f *fakeAdapter) Primary() bool             { return f.primary }
func (f *fakeAdapter) NeedsPrimaryContext() bool { return f.needs }
func (f *fakeAdapter) FetchTaskContext(ctx context.Context, taskID string, hint *Context) (Context, error) {
	return Context{SourceName: f.name, SourceType: f.SourceType()}, nil
}
func (f *fakeAdapter) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	return nil, nil
}
func (f *fakeAdapter) HealthCheck(ctx context.Context) bool { return true }
func (f *fakeAdapter) Close() error                         { f.closed = true; return nil }

func TestRegistry_PreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"jira", "meetings", "docs"} {
		if err := r.Register(&fakeAdapter{name: name}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("len(All) = %d, want 3", len(all))
	}
	for i, want := range []string{"jira", "meetings", "docs"} {
		if all[i].Name() != want {
			t.Errorf("All[%d] = %s, want %s", i, all[i].Name(), want)
		}
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&fakeAdapter{name: "jira"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&fakeAdapter{name: "jira"}); err == nil {
		t.Error("expected error registering duplicate adapter name")
	}
}

func TestRegistry_PrimaryAndSecondaries(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&fakeAdapter{name: "docs"})
	_ = r.Register(&fakeAdapter{name: "jira", primary: true})
	_ = r.Register(&fakeAdapter{name: "meetings"})

	primary := r.Primary()
	if primary == nil || primary.Name() != "jira" {
		t.Fatalf("Primary = %v, want jira", primary)
	}

	secs := r.Secondaries()
	if len(secs) != 2 {
		t.Fatalf("len(Secondaries) = %d, want 2", len(secs))
	}
	if secs[0].Name() != "docs" || secs[1].Name() != "meetings" {
		t.Errorf("Secondaries = [%s %s], want [docs meetings]", secs[0].Name(), secs[1].Name())
	}
}

func TestRegistry_NoPrimary(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&fakeAdapter{name: "docs"})
	if r.Primary() != nil {
		t.Error("Primary should be nil when no adapter is flagged primary")
	}
	if len(r.Secondaries()) != 1 {
		t.Error("all adapters should be secondaries when no primary exists")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakeAdapter{name: "docs"}
	b := &fakeAdapter{name: "jira"}
	_ = r.Register(a)
	_ = r.Register(b)

	r.CloseAll()
	if !a.closed || !b.closed {
		t.Error("CloseAll should close every adapter")
	}
}

func TestTicketFromContext(t *testing.T) {
	tc := &TicketContext{Ticket: Ticket{ID: "PROJ-1"}}
	ctx := &Context{SourceName: "jira", Data: tc}
	if got := TicketFromContext(ctx); got != tc {
		t.Error("TicketFromContext should return the embedded TicketContext")
	}
	if TicketFromContext(nil) != nil {
		t.Error("nil context should yield nil")
	}
	failed := &Context{SourceName: "jira", Data: tc, Err: "boom"}
	if TicketFromContext(failed) != nil {
		t.Error("failed context should yield nil")
	}
}
