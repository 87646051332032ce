package demo

import (
	"context"
	"testing"

	"github.com/devscontext/devscontext/internal/quality"
	"github.com/devscontext/devscontext/internal/source"
)

func TestAll_PrimaryFirst(t *testing.T) {
	adapters := All()
	if len(adapters) != 4 {
		t.Fatalf("len(All) = %d, want 4", len(adapters))
	}
	if !adapters[0].Primary() {
		t.Error("first adapter should be the primary")
	}
	types := map[string]bool{}
	for _, a := range adapters {
		types[a.SourceType()] = true
	}
	for _, want := range []string{source.TypeIssueTracker, source.TypeMeeting, source.TypeCommunication, source.TypeDocumentation} {
		if !types[want] {
			t.Errorf("missing source type %s", want)
		}
	}
}

func TestFetchDemoTask_ScoresPerfectly(t *testing.T) {
	var contexts []source.Context
	for _, a := range All() {
		sc, err := a.FetchTaskContext(context.Background(), TaskID, nil)
		if err != nil {
			t.Fatal(err)
		}
		contexts = append(contexts, sc)
	}

	ticket := source.TicketFromContext(&contexts[0])
	if ticket == nil {
		t.Fatal("tracker context should carry a ticket payload")
	}
	score, gaps := quality.Score(ticket, contexts)
	if score != 1.0 {
		t.Errorf("demo data should score 1.0, got %v (gaps %v)", score, gaps)
	}
}

func TestFetchOtherTask_Empty(t *testing.T) {
	sc, err := NewTracker().FetchTaskContext(context.Background(), "OTHER-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !sc.IsEmpty() || sc.Failed() {
		t.Errorf("context = %+v, want empty and not failed", sc)
	}
}

func TestSearch(t *testing.T) {
	results, err := NewDocs().Search(context.Background(), "idempotency", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}

	none, err := NewDocs().Search(context.Background(), "kubernetes", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("unexpected results: %+v", none)
	}
}
