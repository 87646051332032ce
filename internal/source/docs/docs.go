// Package docs implements the local documentation adapter. It scans
// configured directories for markdown and text files and matches them
// against the task: ticket components and labels against filenames and
// headings, title keywords against bodies. Standards documents (under a
// standards/ directory or named like coding standards) are recognized
// so they can be served directly and always included in deep builds.
package docs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/devscontext/devscontext/internal/config"
	"github.com/devscontext/devscontext/internal/source"
	"github.com/devscontext/devscontext/internal/textutil"
)

const (
	defaultMaxDocs = 5
	deepMaxDocs    = 15
	excerptLimit   = 1500
)

var docExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".rst":      true,
}

// Adapter fetches context from local documentation files.
type Adapter struct {
	cfg config.DocsConfig
	log *slog.Logger
}

// New creates a docs adapter from configuration.
func New(cfg config.DocsConfig, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{cfg: cfg, log: log}
}

func (a *Adapter) Name() string              { return "docs" }
func (a *Adapter) SourceType() string        { return source.TypeDocumentation }
func (a *Adapter) Primary() bool             { return false }
func (a *Adapter) NeedsPrimaryContext() bool { return true }
func (a *Adapter) Close() error              { return nil }

// Document is one scanned documentation file.
type Document struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Headings []string  `json:"headings,omitempty"`
	Body     string    `json:"-"`
	Modified time.Time `json:"modified"`
	Standard bool      `json:"standard"`
}

// FetchTaskContext matches scanned documents against the task. With a
// primary hint, components and labels are matched against filenames and
// headings and title keywords against bodies; without one, only the
// task ID and its keywords are used. Deep fetches return more matches
// and always include standards documents.
func (a *Adapter) FetchTaskContext(ctx context.Context, taskID string, hint *source.Context) (source.Context, error) {
	deep := source.IsDeepFetch(ctx)
	maxDocs := defaultMaxDocs
	if deep {
		maxDocs = deepMaxDocs
	}

	documents, err := a.scan()
	if err != nil {
		return source.Context{}, fmt.Errorf("docs: scan: %w", err)
	}

	var nameTerms, bodyTerms []string
	nameTerms = append(nameTerms, taskID)
	if tc := source.TicketFromContext(hint); tc != nil {
		nameTerms = append(nameTerms, tc.Ticket.Components...)
		nameTerms = append(nameTerms, tc.Ticket.Labels...)
		bodyTerms = append(bodyTerms, textutil.ExtractKeywords(tc.Ticket.Title)...)
	} else {
		bodyTerms = append(bodyTerms, textutil.ExtractKeywords(taskID)...)
	}

	matched := matchDocuments(documents, nameTerms, bodyTerms)
	if len(matched) > maxDocs {
		matched = matched[:maxDocs]
	}
	// Standards are exempt from the cap: appended after it so a long
	// match list can never push them out.
	if deep {
		matched = includeStandards(matched, documents)
	}

	a.log.Info("matched documents",
		"task_id", taskID,
		"scanned", len(documents),
		"matched", len(matched))

	sc := source.Context{
		SourceName: a.Name(),
		SourceType: a.SourceType(),
		FetchedAt:  time.Now().UTC(),
		Metadata:   map[string]string{"matched": fmt.Sprint(len(matched))},
	}
	if len(matched) == 0 {
		return sc, nil
	}
	docsOnly := make([]Document, len(matched))
	for i, m := range matched {
		docsOnly[i] = m.doc
	}
	sc.Data = docsOnly
	sc.RawText = renderDocuments(matched)
	return sc, nil
}

// Search matches query keywords against titles, headings, and bodies.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int) ([]source.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	documents, err := a.scan()
	if err != nil {
		return nil, fmt.Errorf("docs: search %q: %w", query, err)
	}

	terms := append([]string{query}, textutil.ExtractKeywords(query)...)
	matched := matchDocuments(documents, terms, terms)
	if len(matched) > maxResults {
		matched = matched[:maxResults]
	}

	out := make([]source.SearchResult, 0, len(matched))
	for _, m := range matched {
		out = append(out, source.SearchResult{
			SourceName: a.Name(),
			SourceType: a.SourceType(),
			Title:      m.doc.Title,
			Excerpt:    textutil.Truncate(m.doc.Body, 300),
			Relevance:  m.score,
			Metadata:   map[string]string{"path": m.doc.Path},
		})
	}
	return out, nil
}

// Standards returns every standards document found under the configured
// paths, rendered for direct serving.
func (a *Adapter) Standards(ctx context.Context) (string, error) {
	documents, err := a.scan()
	if err != nil {
		return "", fmt.Errorf("docs: standards: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Engineering Standards\n")
	found := 0
	for _, d := range documents {
		if !d.Standard {
			continue
		}
		found++
		fmt.Fprintf(&b, "\n## %s\n_Source: %s_\n\n%s\n", d.Title, d.Path, d.Body)
	}
	if found == 0 {
		return "No standards documents found. Add documents under a standards/ directory or configure standards_path.", nil
	}
	return b.String(), nil
}

// HealthCheck verifies at least one configured path exists.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	for _, p := range a.allPaths() {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return true
		}
	}
	a.log.Warn("docs adapter has no accessible paths", "paths", a.cfg.Paths)
	return false
}

func (a *Adapter) allPaths() []string {
	paths := append([]string{}, a.cfg.Paths...)
	if a.cfg.StandardsPath != "" {
		paths = append(paths, a.cfg.StandardsPath)
	}
	return paths
}

// scan walks the configured directories and loads every doc file.
func (a *Adapter) scan() ([]Document, error) {
	var out []Document
	seen := make(map[string]bool)
	for _, root := range a.allPaths() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped
			}
			if d.IsDir() || !docExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if seen[path] {
				return nil
			}
			seen[path] = true

			body, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			info, _ := d.Info()
			doc := parseDocument(path, string(body))
			if info != nil {
				doc.Modified = info.ModTime().UTC()
			}
			doc.Standard = isStandard(path, a.cfg.StandardsPath)
			out = append(out, doc)
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return out, nil
}

func parseDocument(path, body string) Document {
	doc := Document{
		Path:  path,
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Body:  body,
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if heading == "" {
			continue
		}
		if len(doc.Headings) == 0 {
			doc.Title = heading
		}
		doc.Headings = append(doc.Headings, heading)
	}
	return doc
}

// isStandard applies the naming conventions for standards documents: a
// path segment named "standards", a filename mentioning standards or
// conventions, or residence under the configured standards path.
func isStandard(path, standardsPath string) bool {
	if standardsPath != "" {
		if rel, err := filepath.Rel(standardsPath, path); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	lower := strings.ToLower(path)
	for _, seg := range strings.Split(lower, string(filepath.Separator)) {
		if seg == "standards" {
			return true
		}
	}
	base := filepath.Base(lower)
	return strings.Contains(base, "standards") || strings.Contains(base, "conventions")
}

// ─── Matching ────────────────────────────────────────────────────────────────

type scoredDoc struct {
	doc   Document
	score float64
}

// matchDocuments scores documents against the term sets: nameTerms hit
// filenames and headings (strong signal), bodyTerms hit body text
// (weaker). Results are sorted by score, best first.
func matchDocuments(documents []Document, nameTerms, bodyTerms []string) []scoredDoc {
	var out []scoredDoc
	for _, d := range documents {
		score := 0.0
		nameTarget := strings.ToLower(d.Path + " " + strings.Join(d.Headings, " "))
		for _, t := range nameTerms {
			if t != "" && strings.Contains(nameTarget, strings.ToLower(t)) {
				score += 1.0
			}
		}
		bodyLower := strings.ToLower(d.Body)
		for _, t := range bodyTerms {
			if t != "" && strings.Contains(bodyLower, strings.ToLower(t)) {
				score += 0.3
			}
		}
		if score > 0 {
			out = append(out, scoredDoc{doc: d, score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// includeStandards appends unmatched standards documents to the result.
func includeStandards(matched []scoredDoc, documents []Document) []scoredDoc {
	present := make(map[string]bool, len(matched))
	for _, m := range matched {
		present[m.doc.Path] = true
	}
	for _, d := range documents {
		if d.Standard && !present[d.Path] {
			matched = append(matched, scoredDoc{doc: d})
		}
	}
	return matched
}

func renderDocuments(matched []scoredDoc) string {
	var b strings.Builder
	for i, m := range matched {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Doc: %s\n_Path: %s_\n\n%s\n", m.doc.Title, m.doc.Path, textutil.Truncate(m.doc.Body, excerptLimit))
	}
	return b.String()
}
