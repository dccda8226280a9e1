// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/busfactor/core/jobs"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the busfactor MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(svc jobs.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Bus Factor Analysis Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{svc: svc}

	// --- 1. Tool: submit_analysis ---
	s.AddTool(mcp.NewTool("submit_analysis",
		mcp.WithDescription("Queue a bus-factor analysis of a Git repository. Returns the job to poll."),
		mcp.WithString("workspace_id", mcp.Description("Workspace requesting the analysis. Only one analysis per workspace runs at a time."), mcp.Required()),
		mcp.WithString("repo_location", mcp.Description("Local path or remote URL of the Git repository."), mcp.Required()),
	), h.handleSubmitAnalysis)

	// --- 2. Tool: get_analysis_status ---
	s.AddTool(mcp.NewTool("get_analysis_status",
		mcp.WithDescription("Get status, progress and current step of an analysis job. Pass job_id, or workspace_id for its latest job."),
		mcp.WithString("job_id", mcp.Description("Job identifier returned by submit_analysis.")),
		mcp.WithString("workspace_id", mcp.Description("Workspace whose latest job should be reported.")),
	), h.handleGetAnalysisStatus)

	// --- 3. Tool: get_analysis_result ---
	s.AddTool(mcp.NewTool("get_analysis_result",
		mcp.WithDescription("Get contributors, codebase health and recommendations of a completed analysis job."),
		mcp.WithString("job_id", mcp.Description("Job identifier returned by submit_analysis."), mcp.Required()),
	), h.handleGetAnalysisResult)

	return s
}

// StartMCPServer serves the tools over stdio until the client disconnects.
func StartMCPServer(_ context.Context, svc jobs.Service, version string) error {
	s := NewMCPServer(svc, version)
	return server.ServeStdio(s)
}
