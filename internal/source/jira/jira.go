// Package jira implements the issue tracker adapter against the Jira
// REST API (v3). It fetches ticket details, comments, and linked issues
// in a single request, converts Atlassian Document Format bodies to
// plain text, and renders the result as synthesis-ready markdown.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devscontext/devscontext/internal/config"
	"github.com/devscontext/devscontext/internal/source"
)

const (
	apiBasePath = "/rest/api/3"
	timeLayout  = "2006-01-02T15:04:05.000-0700"

	defaultMaxComments = 10
	deepMaxComments    = 50
)

// Adapter fetches context from Jira issues.
type Adapter struct {
	cfg     config.JiraConfig
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// New creates a Jira adapter from configuration.
func New(cfg config.JiraConfig, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{},
		log:     log,
	}
}

func (a *Adapter) Name() string              { return "jira" }
func (a *Adapter) SourceType() string        { return source.TypeIssueTracker }
func (a *Adapter) Primary() bool             { return a.cfg.Primary }
func (a *Adapter) NeedsPrimaryContext() bool { return false }

// Close releases adapter resources.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// FetchTaskContext fetches the full ticket context: details, comments,
// and linked issues in one API call. The hint is unused; this adapter
// is the primary source.
func (a *Adapter) FetchTaskContext(ctx context.Context, taskID string, _ *source.Context) (source.Context, error) {
	start := time.Now()

	maxComments := defaultMaxComments
	if source.IsDeepFetch(ctx) {
		maxComments = deepMaxComments
	}

	fields := "summary,description,status,assignee,labels,components,created,updated,issuelinks,comment"
	var resp issueResponse
	if err := a.getJSON(ctx, apiBasePath+"/issue/"+url.PathEscape(taskID), url.Values{"fields": {fields}}, &resp); err != nil {
		return source.Context{}, fmt.Errorf("jira: fetch %s: %w", taskID, err)
	}

	tc := resp.toTicketContext(maxComments)
	a.log.Info("fetched ticket",
		"ticket_id", taskID,
		"comments", len(tc.Comments),
		"linked", len(tc.LinkedIssues),
		"duration", time.Since(start))

	return source.Context{
		SourceName: a.Name(),
		SourceType: a.SourceType(),
		Data:       tc,
		RawText:    renderTicket(tc),
		Metadata: map[string]string{
			"status":   tc.Ticket.Status,
			"assignee": tc.Ticket.Assignee,
			"updated":  tc.Ticket.Updated.UTC().Format(time.RFC3339),
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Search runs a JQL full-text search over issues.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int) ([]source.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	jql := fmt.Sprintf(`text ~ %q ORDER BY updated DESC`, query)
	if a.cfg.Project != "" {
		jql = fmt.Sprintf(`project = %q AND text ~ %q ORDER BY updated DESC`, a.cfg.Project, query)
	}

	var resp searchResponse
	params := url.Values{
		"jql":        {jql},
		"maxResults": {fmt.Sprint(maxResults)},
		"fields":     {"summary,status,description"},
	}
	if err := a.getJSON(ctx, apiBasePath+"/search", params, &resp); err != nil {
		return nil, fmt.Errorf("jira: search %q: %w", query, err)
	}

	out := make([]source.SearchResult, 0, len(resp.Issues))
	for _, iss := range resp.Issues {
		out = append(out, source.SearchResult{
			SourceName: a.Name(),
			SourceType: a.SourceType(),
			Title:      fmt.Sprintf("[%s] %s", iss.Key, iss.Fields.Summary),
			Excerpt:    excerpt(adfToText(iss.Fields.Description), 300),
			URL:        a.baseURL + "/browse/" + iss.Key,
			Metadata:   map[string]string{"status": iss.Fields.Status.Name},
		})
	}
	return out, nil
}

// ReadyTicket is the compact listing the background watcher polls for.
type ReadyTicket struct {
	ID      string
	Title   string
	Updated time.Time
}

// ListReady returns tickets in the given projects whose status matches
// the trigger status, most recently updated first.
func (a *Adapter) ListReady(ctx context.Context, projects []string, status string) ([]ReadyTicket, error) {
	clauses := []string{fmt.Sprintf(`status = %q`, status)}
	if len(projects) > 0 {
		quoted := make([]string, len(projects))
		for i, p := range projects {
			quoted[i] = fmt.Sprintf("%q", p)
		}
		clauses = append(clauses, fmt.Sprintf("project in (%s)", strings.Join(quoted, ", ")))
	}
	jql := strings.Join(clauses, " AND ") + " ORDER BY updated DESC"

	var resp searchResponse
	params := url.Values{
		"jql":        {jql},
		"maxResults": {"50"},
		"fields":     {"summary,updated"},
	}
	if err := a.getJSON(ctx, apiBasePath+"/search", params, &resp); err != nil {
		return nil, fmt.Errorf("jira: list ready: %w", err)
	}

	out := make([]ReadyTicket, 0, len(resp.Issues))
	for _, iss := range resp.Issues {
		updated, _ := time.Parse(timeLayout, iss.Fields.Updated)
		out = append(out, ReadyTicket{
			ID:      iss.Key,
			Title:   iss.Fields.Summary,
			Updated: updated.UTC(),
		})
	}
	return out, nil
}

// Probe cheaply fetches the ticket's last-updated stamp, used for
// opportunistic staleness checks without a full fetch.
func (a *Adapter) Probe(ctx context.Context, taskID string) (time.Time, error) {
	var resp issueResponse
	if err := a.getJSON(ctx, apiBasePath+"/issue/"+url.PathEscape(taskID), url.Values{"fields": {"updated"}}, &resp); err != nil {
		return time.Time{}, fmt.Errorf("jira: probe %s: %w", taskID, err)
	}
	updated, err := time.Parse(timeLayout, resp.Fields.Updated)
	if err != nil {
		return time.Time{}, fmt.Errorf("jira: probe %s: parse updated: %w", taskID, err)
	}
	return updated.UTC(), nil
}

// HealthCheck verifies credentials against the /myself endpoint.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if a.baseURL == "" || a.cfg.Email == "" || a.cfg.APIToken == "" {
		a.log.Warn("jira adapter missing required configuration")
		return false
	}
	var me struct {
		AccountID string `json:"accountId"`
	}
	if err := a.getJSON(ctx, apiBasePath+"/myself", nil, &me); err != nil {
		a.log.Warn("jira health check failed", "error", err)
		return false
	}
	return true
}

func (a *Adapter) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := a.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(a.cfg.Email, a.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ─── API response types ──────────────────────────────────────────────────────

type issueResponse struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	Status      struct {
		Name string `json:"name"`
	} `json:"status"`
	Assignee *struct {
		DisplayName string `json:"displayName"`
	} `json:"assignee"`
	Labels     []string `json:"labels"`
	Components []struct {
		Name string `json:"name"`
	} `json:"components"`
	Created    string      `json:"created"`
	Updated    string      `json:"updated"`
	IssueLinks []issueLink `json:"issuelinks"`
	Comment    struct {
		Comments []commentBody `json:"comments"`
	} `json:"comment"`
}

type issueLink struct {
	Type struct {
		Name    string `json:"name"`
		Inward  string `json:"inward"`
		Outward string `json:"outward"`
	} `json:"type"`
	OutwardIssue *linkedIssueRef `json:"outwardIssue"`
	InwardIssue  *linkedIssueRef `json:"inwardIssue"`
}

type linkedIssueRef struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"fields"`
}

type commentBody struct {
	Author struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Body    json.RawMessage `json:"body"`
	Created string          `json:"created"`
}

type searchResponse struct {
	Issues []issueResponse `json:"issues"`
}

func (r issueResponse) toTicketContext(maxComments int) *source.TicketContext {
	f := r.Fields
	description := adfToText(f.Description)
	created, _ := time.Parse(timeLayout, f.Created)
	updated, _ := time.Parse(timeLayout, f.Updated)

	ticket := source.Ticket{
		ID:                 r.Key,
		Title:              f.Summary,
		Description:        description,
		Status:             f.Status.Name,
		Labels:             f.Labels,
		AcceptanceCriteria: extractAcceptanceCriteria(description),
		Created:            created.UTC(),
		Updated:            updated.UTC(),
	}
	if f.Assignee != nil {
		ticket.Assignee = f.Assignee.DisplayName
	}
	for _, c := range f.Components {
		ticket.Components = append(ticket.Components, c.Name)
	}

	var comments []source.Comment
	for i, c := range f.Comment.Comments {
		if i >= maxComments {
			break
		}
		createdAt, _ := time.Parse(timeLayout, c.Created)
		comments = append(comments, source.Comment{
			Author:  c.Author.DisplayName,
			Body:    adfToText(c.Body),
			Created: createdAt.UTC(),
		})
	}

	var linked []source.LinkedIssue
	for _, link := range f.IssueLinks {
		if li := parseLink(link); li != nil {
			linked = append(linked, *li)
		}
	}

	return &source.TicketContext{Ticket: ticket, Comments: comments, LinkedIssues: linked}
}

func parseLink(link issueLink) *source.LinkedIssue {
	var ref *linkedIssueRef
	linkType := link.Type.Name
	switch {
	case link.OutwardIssue != nil:
		ref = link.OutwardIssue
		if link.Type.Outward != "" {
			linkType = link.Type.Outward
		}
	case link.InwardIssue != nil:
		ref = link.InwardIssue
		if link.Type.Inward != "" {
			linkType = link.Type.Inward
		}
	default:
		return nil
	}
	return &source.LinkedIssue{
		ID:       ref.Key,
		Title:    ref.Fields.Summary,
		Status:   ref.Fields.Status.Name,
		LinkType: linkType,
	}
}

// extractAcceptanceCriteria pulls the "Acceptance Criteria" section out
// of a ticket description, up to the next heading.
func extractAcceptanceCriteria(description string) string {
	lines := strings.Split(description, "\n")
	start := -1
	for i, line := range lines {
		trimmed := strings.ToLower(strings.TrimLeft(strings.TrimSpace(line), "# "))
		if strings.HasPrefix(trimmed, "acceptance criteria") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}
	var out []string
	for _, line := range lines[start:] {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			break
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// renderTicket formats the ticket context as markdown for synthesis.
func renderTicket(tc *source.TicketContext) string {
	t := tc.Ticket
	var b strings.Builder

	fmt.Fprintf(&b, "## [%s] %s\n\n", t.ID, t.Title)
	fmt.Fprintf(&b, "## Description\n%s\n", orText(t.Description, "No description"))

	b.WriteString("\n## Details\n")
	fmt.Fprintf(&b, "- **Status:** %s\n", t.Status)
	if t.Assignee != "" {
		fmt.Fprintf(&b, "- **Assignee:** %s\n", t.Assignee)
	}
	if len(t.Components) > 0 {
		fmt.Fprintf(&b, "- **Components:** %s\n", strings.Join(t.Components, ", "))
	}
	if len(t.Labels) > 0 {
		fmt.Fprintf(&b, "- **Labels:** %s\n", strings.Join(t.Labels, ", "))
	}

	if t.AcceptanceCriteria != "" {
		fmt.Fprintf(&b, "\n## Acceptance Criteria\n%s\n", t.AcceptanceCriteria)
	}

	if len(tc.Comments) > 0 {
		fmt.Fprintf(&b, "\n## Comments (%d)\n", len(tc.Comments))
		for _, c := range tc.Comments {
			fmt.Fprintf(&b, "\n**%s** (%s):\n%s\n", c.Author, c.Created.Format("2006-01-02"), c.Body)
		}
	}

	if len(tc.LinkedIssues) > 0 {
		fmt.Fprintf(&b, "\n## Linked Issues (%d)\n", len(tc.LinkedIssues))
		for _, li := range tc.LinkedIssues {
			fmt.Fprintf(&b, "- [%s] %s (%s) - %s\n", li.ID, li.Title, li.Status, li.LinkType)
		}
	}

	return b.String()
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
