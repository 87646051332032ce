// Package source defines the adapter contract and the data model shared
// by every context source: the SourceContext container produced per fetch,
// search results, issue-tracker ticket data, and the registry that holds
// the adapter implementations configured at process start.
package source

import (
	"time"
)

// Source type categories. Every adapter declares exactly one.
const (
	TypeIssueTracker  = "issue_tracker"
	TypeMeeting       = "meeting"
	TypeCommunication = "communication"
	TypeDocumentation = "documentation"
)

// Context is the container an adapter returns from one fetch. It is
// immutable once created and request-scoped: the caller owns it for the
// duration of one context request and discards it after synthesis.
//
// Data holds adapter-specific structured data (e.g. *TicketContext for
// the issue tracker); RawText is the synthesis-ready string rendering of
// the same data. A failed fetch carries Err and an empty RawText.
type Context struct {
	SourceName string            `json:"source_name"`
	SourceType string            `json:"source_type"`
	Data       any               `json:"-"`
	RawText    string            `json:"raw_text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	FetchedAt  time.Time         `json:"fetched_at"`
	Err        string            `json:"error,omitempty"`
}

// IsEmpty reports whether the context carries no usable data.
func (c Context) IsEmpty() bool {
	return c.Data == nil && c.RawText == ""
}

// Failed reports whether the fetch that produced this context failed.
func (c Context) Failed() bool {
	return c.Err != ""
}

// SearchResult is a single raw excerpt returned by Adapter.Search.
// Search results never pass through synthesis or caching.
type SearchResult struct {
	SourceName string            `json:"source_name"`
	SourceType string            `json:"source_type"`
	Title      string            `json:"title"`
	Excerpt    string            `json:"excerpt"`
	URL        string            `json:"url,omitempty"`
	Relevance  float64           `json:"relevance_score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Ticket holds the core fields of an issue-tracker item.
type Ticket struct {
	ID                 string    `json:"ticket_id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Status             string    `json:"status"`
	Assignee           string    `json:"assignee,omitempty"`
	Labels             []string  `json:"labels,omitempty"`
	Components         []string  `json:"components,omitempty"`
	AcceptanceCriteria string    `json:"acceptance_criteria,omitempty"`
	Created            time.Time `json:"created"`
	Updated            time.Time `json:"updated"`
}

// Comment is a single comment on a ticket.
type Comment struct {
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// LinkedIssue is a reference from one ticket to another.
type LinkedIssue struct {
	ID       string `json:"ticket_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	LinkType string `json:"link_type"`
}

// TicketContext is the structured payload the primary adapter places in
// Context.Data: the ticket plus its comments and linked issues.
type TicketContext struct {
	Ticket       Ticket        `json:"ticket"`
	Comments     []Comment     `json:"comments,omitempty"`
	LinkedIssues []LinkedIssue `json:"linked_issues,omitempty"`
}

// TicketFromContext extracts the TicketContext from a primary source
// context, or nil when the context is missing, failed, or carries a
// different payload.
func TicketFromContext(ctx *Context) *TicketContext {
	if ctx == nil || ctx.Failed() {
		return nil
	}
	tc, ok := ctx.Data.(*TicketContext)
	if !ok {
		return nil
	}
	return tc
}
