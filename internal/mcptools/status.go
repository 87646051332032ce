package mcptools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/devscontext/devscontext/internal/orchestrator"
)

// StatusTool handles the context_status MCP tool.
type StatusTool struct {
	orch *orchestrator.Orchestrator
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(orch *orchestrator.Orchestrator) *StatusTool {
	return &StatusTool{orch: orch}
}

// Definition returns the MCP tool definition for context_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("context_status",
		mcp.WithDescription(
			"Show the context system's status: pre-built context counts, average "+
				"quality, cache size, and per-source health.",
		),
	)
}

// Handle processes the context_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := t.orch.GetStatus()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get status: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("## Context System Status\n\n")
	fmt.Fprintf(&b, "- **Pre-built contexts**: %d (%d active, %d expired)\n",
		st.Store.Total, st.Store.Active, st.Store.Expired)
	if st.Store.Total > 0 {
		fmt.Fprintf(&b, "- **Average quality**: %.2f\n", st.Store.AvgQuality)
	}
	if st.Store.LastBuild != nil {
		fmt.Fprintf(&b, "- **Last build**: %s ago\n",
			time.Since(*st.Store.LastBuild).Round(time.Second))
	}
	fmt.Fprintf(&b, "- **In-memory cache**: %d entries\n", st.CacheSize)

	health := t.orch.HealthCheck(ctx)
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("\n### Sources\n\n")
	for _, name := range names {
		state := "ok"
		if !health[name] {
			state = "unavailable"
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, state)
	}

	return mcp.NewToolResultText(b.String()), nil
}
