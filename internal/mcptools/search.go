package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/devscontext/devscontext/internal/orchestrator"
	"github.com/devscontext/devscontext/internal/textutil"
)

// SearchTool handles the search_context MCP tool.
type SearchTool struct {
	orch *orchestrator.Orchestrator
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(orch *orchestrator.Orchestrator) *SearchTool {
	return &SearchTool{orch: orch}
}

// Definition returns the MCP tool definition for search_context.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_context",
		mcp.WithDescription(
			"Keyword search across all configured sources (tickets, meetings, chat, "+
				"docs). Fast and always live: no synthesis, no caching.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query — keywords or a task ID"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Max results across all sources (default: 10)"),
		),
	)
}

// Handle processes the search_context tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	maxResults := intArg(req, "max_results", 10)

	results, err := t.orch.SearchContext(ctx, query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found across the configured sources."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s, relevance %.2f)\n", i+1, r.Title, r.SourceName, r.Relevance)
		if r.Excerpt != "" {
			fmt.Fprintf(&b, "    %s\n", textutil.Truncate(r.Excerpt, 300))
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "    %s\n", r.URL)
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}
