package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/devscontext/devscontext/internal/orchestrator"
)

// TaskContextTool handles the get_task_context MCP tool.
type TaskContextTool struct {
	orch *orchestrator.Orchestrator
}

// NewTaskContextTool creates a TaskContextTool.
func NewTaskContextTool(orch *orchestrator.Orchestrator) *TaskContextTool {
	return &TaskContextTool{orch: orch}
}

// Definition returns the MCP tool definition for get_task_context.
func (t *TaskContextTool) Definition() mcp.Tool {
	return mcp.NewTool("get_task_context",
		mcp.WithDescription(
			"Get comprehensive engineering context for a task: the ticket, related "+
				"meetings, chat discussions, and documentation, synthesized into one "+
				"briefing. Pre-built context is served instantly when available.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task identifier, e.g. PROJ-123"),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Bypass caches and rebuild from the live sources"),
		),
	)
}

// Handle processes the get_task_context tool call.
func (t *TaskContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := strings.TrimSpace(req.GetString("task_id", ""))
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}
	refresh := boolArg(req, "refresh", false)

	res, err := t.orch.GetTaskContext(ctx, taskID, refresh)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build context for %s: %v", taskID, err)), nil
	}

	var b strings.Builder
	b.WriteString(res.Body)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "Quality: %.2f | Sources: %s | Built: %s\n",
		res.QualityScore,
		strings.Join(res.SourcesUsed, ", "),
		res.BuiltAt.Format("2006-01-02 15:04 MST"),
	)
	if len(res.Gaps) > 0 {
		b.WriteString("\nContext gaps:\n")
		for _, gap := range res.Gaps {
			fmt.Fprintf(&b, "- %s\n", gap)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}
