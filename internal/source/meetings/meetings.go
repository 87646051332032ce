// Package meetings implements the meeting transcript adapter against a
// Fireflies-style GraphQL API. Recent transcripts are fetched and
// matched locally against the task ID and keywords extracted from the
// primary ticket, and matching excerpts are returned with a little
// surrounding conversation.
package meetings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/devscontext/devscontext/internal/config"
	"github.com/devscontext/devscontext/internal/source"
	"github.com/devscontext/devscontext/internal/textutil"
)

const (
	defaultAPIURL = "https://api.fireflies.ai/graphql"

	defaultTranscriptLimit = 25
	deepTranscriptLimit    = 50
	// sentences of context kept around each matching line
	excerptWindow = 2
)

const transcriptsQuery = `query Transcripts($limit: Int) {
	transcripts(limit: $limit) {
		id
		title
		date
		participants
		sentences { speaker_name text }
	}
}`

// Adapter fetches context from meeting transcripts.
type Adapter struct {
	cfg    config.MeetingsConfig
	apiURL string
	client *http.Client
	log    *slog.Logger
}

// New creates a meetings adapter from configuration.
func New(cfg config.MeetingsConfig, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Adapter{cfg: cfg, apiURL: apiURL, client: &http.Client{}, log: log}
}

func (a *Adapter) Name() string              { return "meetings" }
func (a *Adapter) SourceType() string        { return source.TypeMeeting }
func (a *Adapter) Primary() bool             { return false }
func (a *Adapter) NeedsPrimaryContext() bool { return true }

func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// FetchTaskContext searches recent transcripts for mentions of the
// task. Matching runs in two strategies: the literal task ID first,
// then keywords from the primary ticket's title when a hint is
// available. Without any match the context is empty but not failed.
func (a *Adapter) FetchTaskContext(ctx context.Context, taskID string, hint *source.Context) (source.Context, error) {
	limit := defaultTranscriptLimit
	if source.IsDeepFetch(ctx) {
		limit = deepTranscriptLimit
	}

	transcripts, err := a.fetchTranscripts(ctx, limit)
	if err != nil {
		return source.Context{}, fmt.Errorf("meetings: fetch transcripts: %w", err)
	}

	terms := []string{taskID}
	if tc := source.TicketFromContext(hint); tc != nil {
		terms = append(terms, textutil.ExtractKeywords(tc.Ticket.Title)...)
	}

	var excerpts []excerptResult
	for _, tr := range transcripts {
		if ex := tr.match(terms); ex != nil {
			excerpts = append(excerpts, *ex)
		}
	}
	a.log.Info("matched meeting transcripts",
		"task_id", taskID,
		"transcripts", len(transcripts),
		"matched", len(excerpts))

	sc := source.Context{
		SourceName: a.Name(),
		SourceType: a.SourceType(),
		FetchedAt:  time.Now().UTC(),
		Metadata:   map[string]string{"matched": fmt.Sprint(len(excerpts))},
	}
	if len(excerpts) == 0 {
		return sc, nil
	}
	sc.Data = excerpts
	sc.RawText = renderExcerpts(excerpts)
	return sc, nil
}

// Search returns transcript excerpts matching the query terms.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int) ([]source.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	transcripts, err := a.fetchTranscripts(ctx, defaultTranscriptLimit)
	if err != nil {
		return nil, fmt.Errorf("meetings: search %q: %w", query, err)
	}

	terms := append([]string{query}, textutil.ExtractKeywords(query)...)
	var out []source.SearchResult
	for _, tr := range transcripts {
		ex := tr.match(terms)
		if ex == nil {
			continue
		}
		out = append(out, source.SearchResult{
			SourceName: a.Name(),
			SourceType: a.SourceType(),
			Title:      tr.Title,
			Excerpt:    textutil.Truncate(ex.Excerpt, 500),
			Metadata:   map[string]string{"date": tr.Date.Format("2006-01-02")},
		})
		if len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

// HealthCheck verifies the API key is present and the endpoint answers.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if a.cfg.APIKey == "" {
		a.log.Warn("meetings adapter missing api key")
		return false
	}
	_, err := a.fetchTranscripts(ctx, 1)
	if err != nil {
		a.log.Warn("meetings health check failed", "error", err)
		return false
	}
	return true
}

func (a *Adapter) fetchTranscripts(ctx context.Context, limit int) ([]transcript, error) {
	body, err := json.Marshal(map[string]any{
		"query":     transcriptsQuery,
		"variables": map[string]any{"limit": limit},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload struct {
		Data struct {
			Transcripts []transcriptPayload `json:"transcripts"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("graphql: %s", payload.Errors[0].Message)
	}

	out := make([]transcript, 0, len(payload.Data.Transcripts))
	for _, tp := range payload.Data.Transcripts {
		out = append(out, tp.toTranscript())
	}
	return out, nil
}

// ─── Transcript matching ─────────────────────────────────────────────────────

type transcriptPayload struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Date         int64  `json:"date"` // epoch millis
	Participants []string
	Sentences    []struct {
		SpeakerName string `json:"speaker_name"`
		Text        string `json:"text"`
	} `json:"sentences"`
}

type transcript struct {
	ID           string
	Title        string
	Date         time.Time
	Participants []string
	Sentences    []sentence
}

type sentence struct {
	Speaker string
	Text    string
}

func (tp transcriptPayload) toTranscript() transcript {
	tr := transcript{
		ID:           tp.ID,
		Title:        tp.Title,
		Date:         time.UnixMilli(tp.Date).UTC(),
		Participants: tp.Participants,
	}
	for _, s := range tp.Sentences {
		tr.Sentences = append(tr.Sentences, sentence{Speaker: s.SpeakerName, Text: s.Text})
	}
	return tr
}

type excerptResult struct {
	MeetingTitle string    `json:"meeting_title"`
	MeetingDate  time.Time `json:"meeting_date"`
	Participants []string  `json:"participants,omitempty"`
	Excerpt      string    `json:"excerpt"`
}

// match returns an excerpt when the transcript title or any sentence
// contains one of the terms, with excerptWindow sentences of context
// around each hit.
func (tr transcript) match(terms []string) *excerptResult {
	titleHit := containsAny(tr.Title, terms)

	include := make([]bool, len(tr.Sentences))
	hit := false
	for i, s := range tr.Sentences {
		if !containsAny(s.Text, terms) {
			continue
		}
		hit = true
		for j := max(0, i-excerptWindow); j <= min(len(tr.Sentences)-1, i+excerptWindow); j++ {
			include[j] = true
		}
	}

	if !hit && !titleHit {
		return nil
	}

	var lines []string
	if hit {
		prevIncluded := false
		for i, s := range tr.Sentences {
			if !include[i] {
				if prevIncluded {
					lines = append(lines, "[...]")
				}
				prevIncluded = false
				continue
			}
			lines = append(lines, fmt.Sprintf("**%s:** %s", s.Speaker, s.Text))
			prevIncluded = true
		}
	} else {
		// Title-only match: keep the opening of the meeting.
		for i, s := range tr.Sentences {
			if i >= 2*excerptWindow {
				break
			}
			lines = append(lines, fmt.Sprintf("**%s:** %s", s.Speaker, s.Text))
		}
	}

	return &excerptResult{
		MeetingTitle: tr.Title,
		MeetingDate:  tr.Date,
		Participants: tr.Participants,
		Excerpt:      strings.Join(lines, "\n"),
	}
}

func containsAny(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, t := range terms {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func renderExcerpts(excerpts []excerptResult) string {
	var b strings.Builder
	for i, ex := range excerpts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Meeting: %s (%s)\n", ex.MeetingTitle, ex.MeetingDate.Format("2006-01-02"))
		if len(ex.Participants) > 0 {
			fmt.Fprintf(&b, "Participants: %s\n", strings.Join(ex.Participants, ", "))
		}
		b.WriteString("\n")
		b.WriteString(ex.Excerpt)
		b.WriteString("\n")
	}
	return b.String()
}
