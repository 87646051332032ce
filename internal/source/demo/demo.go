// Package demo provides canned adapters for every source type so the
// whole system can be exercised without real API credentials. The data
// describes one ticket, PROJ-123 (payment webhook retries), plus a
// matching meeting, chat thread, and architecture doc.
package demo

import (
	"context"
	"strings"
	"time"

	"github.com/devscontext/devscontext/internal/source"
)

// TaskID is the ticket every demo adapter answers for.
const TaskID = "PROJ-123"

// Adapter serves fixed context for the demo ticket. Fetches for any
// other task return an empty context.
type Adapter struct {
	name        string
	sourceType  string
	primary     bool
	needsHint   bool
	rawText     string
	data        any
	searchTitle string
}

func (a *Adapter) Name() string              { return a.name }
func (a *Adapter) SourceType() string        { return a.sourceType }
func (a *Adapter) Primary() bool             { return a.primary }
func (a *Adapter) NeedsPrimaryContext() bool { return a.needsHint }
func (a *Adapter) Close() error              { return nil }

func (a *Adapter) FetchTaskContext(ctx context.Context, taskID string, _ *source.Context) (source.Context, error) {
	sc := source.Context{
		SourceName: a.name,
		SourceType: a.sourceType,
		FetchedAt:  time.Now().UTC(),
		Metadata:   map[string]string{"demo": "true"},
	}
	if taskID != TaskID {
		return sc, nil
	}
	sc.Data = a.data
	sc.RawText = a.rawText
	return sc, nil
}

func (a *Adapter) Search(ctx context.Context, query string, maxResults int) ([]source.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	if !strings.Contains(strings.ToLower(a.rawText), strings.ToLower(query)) {
		return nil, nil
	}
	return []source.SearchResult{{
		SourceName: a.name,
		SourceType: a.sourceType,
		Title:      a.searchTitle,
		Excerpt:    firstLines(a.rawText, 5),
		Relevance:  0.9,
		Metadata:   map[string]string{"demo": "true"},
	}}, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) bool { return true }

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// All returns the full demo adapter set, primary first.
func All() []source.Adapter {
	return []source.Adapter{NewTracker(), NewMeetings(), NewChat(), NewDocs()}
}

// NewTracker returns the canned issue tracker adapter (the primary).
func NewTracker() *Adapter {
	tc := demoTicketContext()
	return &Adapter{
		name:        "demo-tracker",
		sourceType:  source.TypeIssueTracker,
		primary:     true,
		data:        tc,
		rawText:     demoTicketText,
		searchTitle: "[PROJ-123] Add retry logic to payment webhook handler",
	}
}

// NewMeetings returns the canned meeting transcript adapter.
func NewMeetings() *Adapter {
	return &Adapter{
		name:        "demo-meetings",
		sourceType:  source.TypeMeeting,
		needsHint:   true,
		rawText:     demoMeetingText,
		searchTitle: "Sprint Planning - Webhook Reliability",
	}
}

// NewChat returns the canned team chat adapter.
func NewChat() *Adapter {
	return &Adapter{
		name:        "demo-chat",
		sourceType:  source.TypeCommunication,
		needsHint:   true,
		rawText:     demoChatText,
		searchTitle: "#payments-eng — webhook retry discussion",
	}
}

// NewDocs returns the canned documentation adapter.
func NewDocs() *Adapter {
	return &Adapter{
		name:        "demo-docs",
		sourceType:  source.TypeDocumentation,
		needsHint:   true,
		rawText:     demoDocsText,
		searchTitle: "Payments Service Architecture",
	}
}

// TrackerTicket returns the canned ticket the tracker adapter serves.
// The watcher wiring uses it to report the demo task as ready.
func TrackerTicket() *source.TicketContext {
	return demoTicketContext()
}

func demoTicketContext() *source.TicketContext {
	return &source.TicketContext{
		Ticket: source.Ticket{
			ID:          TaskID,
			Title:       "Add retry logic to payment webhook handler",
			Description: "Implement exponential backoff for failed webhook deliveries.",
			Status:      "Ready for Development",
			Assignee:    "Alex Chen",
			Labels:      []string{"payments", "webhooks", "reliability", "P1"},
			Components:  []string{"payments-service", "webhooks"},
			AcceptanceCriteria: strings.Join([]string{
				"- [ ] Webhooks retry with exponential backoff (1min, 5min, 30min, 2hr, 12hr)",
				"- [ ] Failed webhooks move to DLQ after 5 attempts",
				"- [ ] Dashboard shows retry metrics",
				"- [ ] Unit tests cover retry logic",
			}, "\n"),
			Created: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
			Updated: time.Date(2024, 3, 18, 14, 30, 0, 0, time.UTC),
		},
		Comments: []source.Comment{
			{
				Author:  "Sarah Kim",
				Body:    "For the retry scheduling, let's use SQS visibility timeout instead of a separate cron job.",
				Created: time.Date(2024, 3, 15, 11, 30, 0, 0, time.UTC),
			},
			{
				Author:  "Mike Johnson",
				Body:    "Stripe's guidance: retries at 1min, 5min, 30min, 2hr, 12hr. Use idempotency keys to prevent duplicate charges.",
				Created: time.Date(2024, 3, 16, 9, 15, 0, 0, time.UTC),
			},
		},
		LinkedIssues: []source.LinkedIssue{
			{ID: "PROJ-119", Title: "Webhook signature verification", Status: "Done", LinkType: "relates to"},
			{ID: "PROJ-130", Title: "Retry metrics dashboard", Status: "To Do", LinkType: "blocks"},
		},
	}
}

const demoTicketText = `## [PROJ-123] Add retry logic to payment webhook handler

## Description
Implement exponential backoff for failed webhook deliveries. Payment
webhooks currently fail silently when the receiving endpoint is down.

## Details
- **Status:** Ready for Development
- **Assignee:** Alex Chen
- **Components:** payments-service, webhooks
- **Labels:** payments, webhooks, reliability, P1

## Acceptance Criteria
- [ ] Webhooks retry with exponential backoff (1min, 5min, 30min, 2hr, 12hr)
- [ ] Failed webhooks move to DLQ after 5 attempts
- [ ] Dashboard shows retry metrics
- [ ] Unit tests cover retry logic

## Comments (2)

**Sarah Kim** (2024-03-15):
For the retry scheduling, let's use SQS visibility timeout instead of a separate cron job.

**Mike Johnson** (2024-03-16):
Stripe's guidance: retries at 1min, 5min, 30min, 2hr, 12hr. Use idempotency keys to prevent duplicate charges.

## Linked Issues (2)
- [PROJ-119] Webhook signature verification (Done) - relates to
- [PROJ-130] Retry metrics dashboard (To Do) - blocks
`

const demoMeetingText = `## Meeting: Sprint Planning - Webhook Reliability (2024-03-14)
Participants: Sarah Kim, Mike Johnson, Alex Chen

**Sarah Kim:** For PROJ-123 we decided on SQS visibility timeout for retry scheduling. No separate cron.
**Mike Johnson:** Agreed. We also need idempotency keys so a retried webhook can't double-charge.
**Alex Chen:** I'll follow the existing WebhookWorker pattern and add a calculateBackoff helper.
**Sarah Kim:** Action item: Alex implements retries, Mike sets up the DLQ alarm.
`

const demoChatText = `## Team Discussion

### Decisions
- We decided to cap retries at 5 attempts before the DLQ.

### Action Items
- Action item: add CloudWatch metrics for retry success and failure.

### Messages

**alex** in #payments-eng:
Starting on PROJ-123 today. Backoff schedule is 1min/5min/30min/2hr/12hr per Stripe's guidance.

**sarah** in #payments-eng:
We decided to cap retries at 5 attempts before the DLQ.

**mike** in #payments-eng:
Action item: add CloudWatch metrics for retry success and failure.
`

const demoDocsText = `## Doc: Payments Service Architecture
_Path: docs/architecture/payments-service.md_

# Payments Service Architecture

## Webhook Processing
Webhooks are processed by WebhookWorker off an SQS queue. Each message
carries an idempotency key; handlers must be safe to re-run.

## Failure Handling
Messages that exhaust their retries are routed to a dead-letter queue
with an alarm on queue depth.
`
