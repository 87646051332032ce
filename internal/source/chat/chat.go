// Package chat implements the team communication adapter against a
// Slack-style Web API. It searches messages for the task ID and for
// keywords from the primary ticket, pulls out decision and action-item
// lines, and renders the discussion as markdown.
package chat

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
	"github.com/devscontext/devscontext/internal/textutil"
)

const (
	defaultAPIURL = "https://slack.com/api"

	defaultMaxMessages = 20
	deepMaxMessages    = 50
	// keyword search strategies beyond the task ID itself
	maxKeywordQueries = 3
)

var decisionMarkers = []string{"decided", "decision:", "agreed", "we'll go with", "going with"}
var actionMarkers = []string{"action item", "todo:", "to-do:", "will handle", "i'll take"}

// Adapter fetches context from team chat.
type Adapter struct {
	cfg    config.ChatConfig
	apiURL string
	client *http.Client
	log    *slog.Logger
}

// New creates a chat adapter from configuration.
func New(cfg config.ChatConfig, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Adapter{cfg: cfg, apiURL: strings.TrimRight(apiURL, "/"), client: &http.Client{}, log: log}
}

func (a *Adapter) Name() string              { return "chat" }
func (a *Adapter) SourceType() string        { return source.TypeCommunication }
func (a *Adapter) Primary() bool             { return false }
func (a *Adapter) NeedsPrimaryContext() bool { return true }

func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// FetchTaskContext searches chat for discussion of the task. The task
// ID is queried first, then up to maxKeywordQueries keywords from the
// primary ticket's title. Duplicate messages across strategies are
// collapsed.
func (a *Adapter) FetchTaskContext(ctx context.Context, taskID string, hint *source.Context) (source.Context, error) {
	maxMessages := a.cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	if source.IsDeepFetch(ctx) {
		maxMessages = deepMaxMessages
	}

	queries := []string{taskID}
	if tc := source.TicketFromContext(hint); tc != nil {
		keywords := textutil.ExtractKeywords(tc.Ticket.Title)
		if len(keywords) > maxKeywordQueries {
			keywords = keywords[:maxKeywordQueries]
		}
		queries = append(queries, keywords...)
	}

	seen := make(map[string]bool)
	var messages []message
	for _, q := range queries {
		matches, err := a.searchMessages(ctx, q, maxMessages)
		if err != nil {
			return source.Context{}, fmt.Errorf("chat: search %q: %w", q, err)
		}
		for _, m := range matches {
			key := m.Channel + "/" + m.Timestamp
			if seen[key] {
				continue
			}
			seen[key] = true
			messages = append(messages, m)
			if len(messages) >= maxMessages {
				break
			}
		}
		if len(messages) >= maxMessages {
			break
		}
	}

	a.log.Info("searched chat", "task_id", taskID, "queries", len(queries), "messages", len(messages))

	sc := source.Context{
		SourceName: a.Name(),
		SourceType: a.SourceType(),
		FetchedAt:  time.Now().UTC(),
		Metadata:   map[string]string{"messages": fmt.Sprint(len(messages))},
	}
	if len(messages) == 0 {
		return sc, nil
	}
	sc.Data = messages
	sc.RawText = renderMessages(messages)
	return sc, nil
}

// Search returns chat messages matching the query.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int) ([]source.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	matches, err := a.searchMessages(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("chat: search %q: %w", query, err)
	}

	out := make([]source.SearchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, source.SearchResult{
			SourceName: a.Name(),
			SourceType: a.SourceType(),
			Title:      fmt.Sprintf("#%s — %s", m.Channel, m.Author),
			Excerpt:    textutil.Truncate(m.Text, 300),
			URL:        m.Permalink,
			Metadata:   map[string]string{"channel": m.Channel},
		})
	}
	return out, nil
}

// HealthCheck verifies the bot token against auth.test.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if a.cfg.BotToken == "" {
		a.log.Warn("chat adapter missing bot token")
		return false
	}
	var resp apiEnvelope
	if err := a.call(ctx, "auth.test", nil, &resp); err != nil {
		a.log.Warn("chat health check failed", "error", err)
		return false
	}
	return resp.OK
}

// message is one chat search hit.
type message struct {
	Author    string `json:"author"`
	Text      string `json:"text"`
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
	Permalink string `json:"permalink,omitempty"`
}

type apiEnvelope struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Messages struct {
		Matches []struct {
			Username string `json:"username"`
			Text     string `json:"text"`
			TS       string `json:"ts"`
			Channel  struct {
				Name string `json:"name"`
			} `json:"channel"`
			Permalink string `json:"permalink"`
		} `json:"matches"`
	} `json:"messages"`
}

func (a *Adapter) searchMessages(ctx context.Context, query string, count int) ([]message, error) {
	params := url.Values{
		"query": {query},
		"count": {fmt.Sprint(count)},
		"sort":  {"timestamp"},
	}
	var resp apiEnvelope
	if err := a.call(ctx, "search.messages", params, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("api error: %s", resp.Error)
	}

	out := make([]message, 0, len(resp.Messages.Matches))
	for _, m := range resp.Messages.Matches {
		if len(a.cfg.Channels) > 0 && !contains(a.cfg.Channels, m.Channel.Name) {
			continue
		}
		out = append(out, message{
			Author:    m.Username,
			Text:      m.Text,
			Channel:   m.Channel.Name,
			Timestamp: m.TS,
			Permalink: m.Permalink,
		})
	}
	return out, nil
}

func (a *Adapter) call(ctx context.Context, method string, params url.Values, out any) error {
	u := a.apiURL + "/" + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.BotToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// renderMessages formats the discussion, surfacing decisions and action
// items first.
func renderMessages(messages []message) string {
	var decisions, actions []string
	for _, m := range messages {
		for _, line := range strings.Split(m.Text, "\n") {
			lower := strings.ToLower(line)
			switch {
			case matchesAny(lower, decisionMarkers):
				decisions = append(decisions, strings.TrimSpace(line))
			case matchesAny(lower, actionMarkers):
				actions = append(actions, strings.TrimSpace(line))
			}
		}
	}

	var b strings.Builder
	b.WriteString("## Team Discussion\n")
	if len(decisions) > 0 {
		b.WriteString("\n### Decisions\n")
		for _, d := range decisions {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}
	if len(actions) > 0 {
		b.WriteString("\n### Action Items\n")
		for _, a := range actions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	b.WriteString("\n### Messages\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "\n**%s** in #%s:\n%s\n", m.Author, m.Channel, m.Text)
	}
	return b.String()
}

func matchesAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
