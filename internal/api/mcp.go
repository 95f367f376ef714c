package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"queryscope/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
	Orch  QueryOrchestrator
}

// NewMCPServer creates an MCP server exposing the generate/analyze
// operations as tools, so agent clients can drive a project end to end.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"queryscope",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("queryscope — generates and analyzes AI-search queries for brand visibility projects."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_queries",
			mcp.WithDescription("Generate a fresh batch of AI-search queries for a project. Replaces any existing batch."),
			mcp.WithString("project_id", mcp.Description("Project to generate queries for"), mcp.Required()),
			mcp.WithNumber("count", mcp.Description("How many queries to generate (default 50)")),
		),
		mcpGenerateQueries(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_queries",
			mcp.WithDescription("Analyze a project's pending queries for brand mentions and sources. Safe to re-run; completed queries are skipped."),
			mcp.WithString("project_id", mcp.Description("Project whose queries to analyze"), mcp.Required()),
		),
		mcpAnalyzeQueries(deps),
	)

	s.AddTool(
		mcp.NewTool("project_status",
			mcp.WithDescription("Report a project's status and per-state query counts."),
			mcp.WithString("project_id", mcp.Description("Project to inspect"), mcp.Required()),
		),
		mcpProjectStatus(deps),
	)

	return s
}

func mcpGenerateQueries(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}
		count := req.GetInt("count", 50)
		if count <= 0 {
			count = 50
		}

		result, err := deps.Orch.Generate(ctx, projectID, count)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Generated %d queries in %dms", result.Count, result.DurationMs)), nil
	}
}

func mcpAnalyzeQueries(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}

		result, err := deps.Orch.Analyze(ctx, projectID, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Analyzed %d of %d queries (%d errors)", result.Analyzed, result.Total, result.Errors)), nil
	}
}

func mcpProjectStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}

		p, err := deps.Store.GetProject(projectID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading project: %v", err)), nil
		}
		counts, err := deps.Store.CountQueriesByStatus(projectID)
		if err != nil {
			return mcpError(fmt.Sprintf("counting queries: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"id":             p.ID,
			"name":           p.Name,
			"status":         p.Status,
			"query_count":    p.QueryCount,
			"analyzed_count": p.AnalyzedCount,
			"queries":        counts,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("marshaling status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
