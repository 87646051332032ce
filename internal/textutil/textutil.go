// Package textutil provides text helpers shared by the matching and
// synthesis layers: keyword extraction for cross-source matching,
// boundary-aware truncation, and duration formatting for status output.
package textutil

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// stopWords are common English words excluded from keyword extraction.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "were": true, "been": true, "be": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "need": true, "it": true, "its": true,
	"this": true, "that": true, "these": true, "those": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "why": true,
	"how": true, "all": true, "each": true, "every": true, "both": true,
	"few": true, "more": true, "most": true, "other": true, "some": true,
	"such": true, "no": true, "nor": true, "not": true, "only": true,
	"own": true, "same": true, "so": true, "than": true, "too": true,
	"very": true, "just": true, "also": true, "now": true, "here": true,
	"there": true, "then": true, "if": true, "else": true, "because": true,
	"about": true, "into": true, "through": true, "during": true,
	"before": true, "after": true, "above": true, "below": true,
	"between": true, "under": true, "again": true, "further": true,
	"once": true, "any": true, "out": true, "up": true, "down": true,
	"off": true, "over": true, "our": true, "your": true,
}

// actionVerbs are ticket-title verbs that carry no matching signal.
var actionVerbs = map[string]bool{
	"add": true, "fix": true, "update": true, "implement": true, "create": true,
	"remove": true, "delete": true, "change": true, "modify": true,
	"refactor": true, "improve": true, "enhance": true, "optimize": true,
	"handle": true, "support": true, "enable": true, "disable": true,
	"configure": true, "setup": true, "make": true, "get": true, "set": true,
	"use": true, "move": true, "rename": true, "replace": true,
	"resolve": true, "ensure": true, "allow": true, "prevent": true,
	"check": true, "verify": true, "validate": true, "test": true,
	"debug": true, "investigate": true, "review": true, "clean": true,
	"cleanup": true, "simplify": true,
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// ExtractKeywords extracts up to 10 meaningful keywords from text for
// document and cross-source matching. Stop words, common ticket action
// verbs, and words shorter than 3 characters are dropped; results are
// ordered longest first (most specific), then alphabetically for
// stability.
func ExtractKeywords(text string) []string {
	if text == "" {
		return nil
	}

	words := wordRe.FindAllString(strings.ToLower(text), -1)

	var keywords []string
	seen := make(map[string]bool)
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || actionVerbs[w] || seen[w] {
			continue
		}
		keywords = append(keywords, w)
		seen[w] = true
	}

	sort.SliceStable(keywords, func(i, j int) bool {
		if len(keywords[i]) != len(keywords[j]) {
			return len(keywords[i]) > len(keywords[j])
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > 10 {
		keywords = keywords[:10]
	}
	return keywords
}

const truncateSuffix = "... [truncated]"

// Truncate cuts text to at most maxChars, preferring a sentence boundary
// and falling back to a word boundary. The suffix "... [truncated]" is
// appended when text was cut.
func Truncate(text string, maxChars int) string {
	if text == "" || len(text) <= maxChars {
		return text
	}
	if maxChars <= len(truncateSuffix) {
		return cutAtRuneBoundary(text, maxChars)
	}

	available := maxChars - len(truncateSuffix)
	cut := cutAtRuneBoundary(text, available)

	// Last sentence end followed by whitespace, quote, or end of cut.
	sentenceEnd := -1
	for i := len(cut) - 1; i >= 0; i-- {
		c := cut[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i == len(cut)-1 || strings.ContainsRune(" \n\t\"'", rune(cut[i+1])) {
			sentenceEnd = i + 1
			break
		}
	}
	if sentenceEnd > available/2 {
		return strings.TrimRight(cut[:sentenceEnd], " \n\t") + truncateSuffix
	}

	if lastSpace := strings.LastIndexByte(cut, ' '); lastSpace > available/2 {
		return strings.TrimRight(cut[:lastSpace], " \n\t") + truncateSuffix
	}

	return cut + truncateSuffix
}

// cutAtRuneBoundary slices s to at most n bytes, backing off so a
// multi-byte rune is never split.
func cutAtRuneBoundary(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// FormatDuration formats milliseconds as "150ms", "2.5s", or "1m 5s".
func FormatDuration(ms int64) string {
	if ms < 0 {
		return "0ms"
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	seconds := float64(ms) / 1000
	if seconds < 60 {
		if seconds == float64(int64(seconds)) {
			return fmt.Sprintf("%ds", int64(seconds))
		}
		s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", seconds), "0"), ".")
		return s + "s"
	}

	minutes := int64(seconds) / 60
	rem := int64(seconds) % 60
	if rem == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, rem)
}
