package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devscontext/devscontext/internal/config"
	"github.com/devscontext/devscontext/internal/logging"
	"github.com/devscontext/devscontext/internal/source"
)

const issueJSON = `{
	"key": "PROJ-42",
	"fields": {
		"summary": "Add webhook retries",
		"description": {
			"type": "doc",
			"content": [
				{"type": "paragraph", "content": [{"type": "text", "text": "Retries are dropped today."}]},
				{"type": "heading", "content": [{"type": "text", "text": "Acceptance Criteria"}]},
				{"type": "paragraph", "content": [{"type": "text", "text": "- Exponential backoff"}]}
			]
		},
		"status": {"name": "Ready for Development"},
		"assignee": {"displayName": "Dana Smith"},
		"labels": ["webhook"],
		"components": [{"name": "payments-service"}],
		"created": "2025-05-01T10:00:00.000+0000",
		"updated": "2025-05-02T09:30:00.000+0000",
		"issuelinks": [
			{
				"type": {"name": "Blocks", "outward": "blocks", "inward": "is blocked by"},
				"outwardIssue": {
					"key": "PROJ-40",
					"fields": {"summary": "Webhook signing", "status": {"name": "Done"}}
				}
			}
		],
		"comment": {
			"comments": [
				{
					"author": {"displayName": "Lee"},
					"body": {"type": "doc", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "Use the queue."}]}]},
					"created": "2025-05-01T12:00:00.000+0000"
				}
			]
		}
	}
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.JiraConfig{
		Enabled:  true,
		Primary:  true,
		BaseURL:  srv.URL,
		Email:    "dev@example.com",
		APIToken: "token",
	}, logging.NewDiscard())
}

func TestFetchTaskContext(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/rest/api/3/issue/PROJ-42") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if user, _, _ := r.BasicAuth(); user != "dev@example.com" {
			t.Errorf("basic auth user = %s", user)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(issueJSON))
	})

	sc, err := a.FetchTaskContext(context.Background(), "PROJ-42", nil)
	if err != nil {
		t.Fatal(err)
	}

	tc := source.TicketFromContext(&sc)
	if tc == nil {
		t.Fatal("context should carry a TicketContext payload")
	}
	ticket := tc.Ticket
	if ticket.ID != "PROJ-42" || ticket.Status != "Ready for Development" {
		t.Errorf("ticket = %+v", ticket)
	}
	if ticket.Assignee != "Dana Smith" {
		t.Errorf("assignee = %q", ticket.Assignee)
	}
	if len(ticket.Components) != 1 || ticket.Components[0] != "payments-service" {
		t.Errorf("components = %v", ticket.Components)
	}
	if !strings.Contains(ticket.AcceptanceCriteria, "Exponential backoff") {
		t.Errorf("acceptance criteria = %q", ticket.AcceptanceCriteria)
	}
	if len(tc.Comments) != 1 || tc.Comments[0].Body != "Use the queue." {
		t.Errorf("comments = %+v", tc.Comments)
	}
	if len(tc.LinkedIssues) != 1 || tc.LinkedIssues[0].LinkType != "blocks" {
		t.Errorf("linked = %+v", tc.LinkedIssues)
	}

	for _, want := range []string{"## Description", "## Acceptance Criteria", "payments-service", "[PROJ-40]"} {
		if !strings.Contains(sc.RawText, want) {
			t.Errorf("raw text missing %q", want)
		}
	}
}

func TestFetchTaskContext_HTTPError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "issue does not exist", http.StatusNotFound)
	})
	if _, err := a.FetchTaskContext(context.Background(), "PROJ-404", nil); err == nil {
		t.Fatal("want error on 404")
	}
}

func TestListReady(t *testing.T) {
	var gotJQL string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotJQL = r.URL.Query().Get("jql")
		json.NewEncoder(w).Encode(map[string]any{
			"issues": []map[string]any{
				{"key": "PROJ-1", "fields": map[string]any{"summary": "First", "updated": "2025-05-02T09:30:00.000+0000"}},
				{"key": "PROJ-2", "fields": map[string]any{"summary": "Second", "updated": "2025-05-01T09:30:00.000+0000"}},
			},
		})
	})

	tickets, err := a.ListReady(context.Background(), []string{"PROJ"}, "Ready for Development")
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 2 || tickets[0].ID != "PROJ-1" {
		t.Errorf("tickets = %+v", tickets)
	}
	if tickets[0].Updated.IsZero() {
		t.Error("updated stamp should parse")
	}
	if !strings.Contains(gotJQL, `status = "Ready for Development"`) || !strings.Contains(gotJQL, `project in ("PROJ")`) {
		t.Errorf("jql = %q", gotJQL)
	}
}

func TestProbe(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fields") != "updated" {
			t.Errorf("fields = %q, want a cheap updated-only fetch", r.URL.Query().Get("fields"))
		}
		w.Write([]byte(`{"key": "PROJ-1", "fields": {"updated": "2025-05-02T09:30:00.000+0000"}}`))
	})

	updated, err := a.Probe(context.Background(), "PROJ-1")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Year() != 2025 || updated.Month() != 5 {
		t.Errorf("updated = %v", updated)
	}
}

func TestSearch(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"issues": [{"key": "PROJ-7", "fields": {"summary": "Webhook docs", "status": {"name": "Done"}, "description": "All about webhooks"}}]}`))
	})

	results, err := a.Search(context.Background(), "webhook", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Title != "[PROJ-7] Webhook docs" || results[0].Excerpt != "All about webhooks" {
		t.Errorf("result = %+v", results[0])
	}
}

func TestHealthCheck(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/api/3/myself" {
			w.Write([]byte(`{"accountId": "abc"}`))
			return
		}
		http.NotFound(w, r)
	})
	if !a.HealthCheck(context.Background()) {
		t.Error("health check should pass")
	}

	unconfigured := New(config.JiraConfig{}, logging.NewDiscard())
	if unconfigured.HealthCheck(context.Background()) {
		t.Error("health check should fail without credentials")
	}
}

func TestExtractAcceptanceCriteria(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"heading then next section", "intro\n## Acceptance Criteria\n- a\n- b\n## Notes\nmore", "- a\n- b"},
		{"plain heading", "Acceptance Criteria:\n- done when green", "- done when green"},
		{"absent", "just a description", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractAcceptanceCriteria(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestADFToText(t *testing.T) {
	adf := `{"type":"doc","content":[
		{"type":"paragraph","content":[{"type":"text","text":"line one"}]},
		{"type":"paragraph","content":[{"type":"text","text":"line two"}]}
	]}`
	got := adfToText(json.RawMessage(adf))
	if got != "line one\nline two" {
		t.Errorf("got %q", got)
	}

	if got := adfToText(json.RawMessage(`"plain string"`)); got != "plain string" {
		t.Errorf("plain string: got %q", got)
	}
	if got := adfToText(nil); got != "" {
		t.Errorf("nil: got %q", got)
	}
}
