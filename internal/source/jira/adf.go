package jira

import (
	"encoding/json"
	"strings"
)

// adfNode is one node of an Atlassian Document Format tree. The v3 API
// returns descriptions and comment bodies in this format; v2-style
// plain strings are also accepted.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// adfToText extracts the plain text from an ADF document. Block nodes
// (paragraphs, headings, list items) get a trailing newline.
func adfToText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Plain string body (API v2 or already-converted content).
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var root adfNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return ""
	}
	return strings.TrimSpace(flattenADF(root))
}

func flattenADF(n adfNode) string {
	if n.Type == "text" {
		return n.Text
	}
	var b strings.Builder
	for _, child := range n.Content {
		b.WriteString(flattenADF(child))
	}
	switch n.Type {
	case "paragraph", "heading", "listItem":
		b.WriteString("\n")
	}
	return b.String()
}
