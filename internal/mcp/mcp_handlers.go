package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huangsam/busfactor/core/jobs"
	"github.com/huangsam/busfactor/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	svc jobs.Service
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// statusView drops the result so polling stays small.
func statusView(job *schema.AnalysisJob) *schema.AnalysisJob {
	if job == nil {
		return nil
	}
	v := *job
	v.Result = nil
	return &v
}

func (h *toolHandler) handleSubmitAnalysis(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID := request.GetString("workspace_id", "")
	location := request.GetString("repo_location", "")

	job, err := h.svc.Submit(workspaceID, location)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
	}
	return jsonResult(job)
}

func (h *toolHandler) handleGetAnalysisStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	workspaceID := request.GetString("workspace_id", "")

	var (
		status any
		err    error
	)
	switch {
	case jobID != "":
		job, e := h.svc.Status(jobID)
		status, err = statusView(job), e
	case workspaceID != "":
		job, e := h.svc.StatusByWorkspace(workspaceID)
		status, err = statusView(job), e
	default:
		return mcp.NewToolResultError("either job_id or workspace_id is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	return jsonResult(status)
}

func (h *toolHandler) handleGetAnalysisResult(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id is required"), nil
	}

	result, err := h.svc.Result(jobID)
	if errors.Is(err, jobs.ErrNotCompleted) {
		return mcp.NewToolResultError(fmt.Sprintf("%v. Poll get_analysis_status until the job completes", err)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("result failed: %v", err)), nil
	}
	return jsonResult(result)
}
