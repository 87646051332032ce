package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/devscontext/devscontext/internal/orchestrator"
)

// StandardsTool handles the get_standards MCP tool.
type StandardsTool struct {
	orch *orchestrator.Orchestrator
}

// NewStandardsTool creates a StandardsTool.
func NewStandardsTool(orch *orchestrator.Orchestrator) *StandardsTool {
	return &StandardsTool{orch: orch}
}

// Definition returns the MCP tool definition for get_standards.
func (t *StandardsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_standards",
		mcp.WithDescription(
			"Get the team's coding standards and conventions documents. Always read "+
				"fresh from the documentation source.",
		),
	)
}

// Handle processes the get_standards tool call.
func (t *StandardsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := t.orch.GetStandards(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load standards: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}
