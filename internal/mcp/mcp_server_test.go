package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/busfactor/core/jobs"
	mcp_internal "github.com/huangsam/busfactor/internal/mcp"
	"github.com/huangsam/busfactor/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

var _ jobs.Service = &mockService{} // Compile-time check

func (m *mockService) Submit(workspaceID, location string) (*schema.AnalysisJob, error) {
	ret := m.Called(workspaceID, location)
	job, _ := ret.Get(0).(*schema.AnalysisJob)
	return job, ret.Error(1)
}

func (m *mockService) Status(id string) (*schema.AnalysisJob, error) {
	ret := m.Called(id)
	job, _ := ret.Get(0).(*schema.AnalysisJob)
	return job, ret.Error(1)
}

func (m *mockService) StatusByWorkspace(workspaceID string) (*schema.AnalysisJob, error) {
	ret := m.Called(workspaceID)
	job, _ := ret.Get(0).(*schema.AnalysisJob)
	return job, ret.Error(1)
}

func (m *mockService) Result(id string) (*schema.AnalysisResult, error) {
	ret := m.Called(id)
	result, _ := ret.Get(0).(*schema.AnalysisResult)
	return result, ret.Error(1)
}

func (m *mockService) Cancel(id string) error {
	return m.Called(id).Error(0)
}

func (m *mockService) Stats() jobs.Stats {
	return m.Called().Get(0).(jobs.Stats)
}

func call(t *testing.T, svc jobs.Service, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(svc, "test")
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotNil(t, res)
	return res
}

func text(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestSubmitAnalysis(t *testing.T) {
	svc := &mockService{}
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Submit", "ws", "/repo").Return(&schema.AnalysisJob{ID: "job-1", WorkspaceID: "ws", Status: schema.StatusQueued, CreatedAt: created}, nil)
	svc.On("Submit", "ws", "/other").Return(nil, &jobs.ActiveJobError{WorkspaceID: "ws", JobID: "job-1"})

	res := call(t, svc, "submit_analysis", map[string]any{"workspace_id": "ws", "repo_location": "/repo"})
	assert.False(t, res.IsError)
	var job schema.AnalysisJob
	require.NoError(t, json.Unmarshal([]byte(text(res)), &job))
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, schema.StatusQueued, job.Status)

	res = call(t, svc, "submit_analysis", map[string]any{"workspace_id": "ws", "repo_location": "/other"})
	assert.True(t, res.IsError, "The response should indicate an error state")
	assert.Contains(t, text(res), "already has active job job-1")
	svc.AssertExpectations(t)
}

func TestGetAnalysisStatus(t *testing.T) {
	svc := &mockService{}
	running := &schema.AnalysisJob{ID: "job-1", WorkspaceID: "ws", Status: schema.StatusProcessing, Progress: 40, CurrentStep: schema.StepProfiling}
	done := &schema.AnalysisJob{ID: "job-2", WorkspaceID: "ws2", Status: schema.StatusCompleted, Progress: 100, Result: schema.EmptyResult(time.Now())}
	svc.On("Status", "job-1").Return(running, nil)
	svc.On("Status", "missing").Return(nil, &jobs.NotFoundError{ID: "missing"})
	svc.On("StatusByWorkspace", "ws2").Return(done, nil)

	res := call(t, svc, "get_analysis_status", map[string]any{"job_id": "job-1"})
	assert.False(t, res.IsError)
	assert.Contains(t, text(res), `"progress": 40`)
	assert.Contains(t, text(res), `"current_step": "profiling"`)

	res = call(t, svc, "get_analysis_status", map[string]any{"workspace_id": "ws2"})
	assert.False(t, res.IsError)
	assert.Contains(t, text(res), `"status": "completed"`)
	assert.NotContains(t, text(res), `"result"`)
	assert.NotNil(t, done.Result, "snapshot held by the service is untouched")

	res = call(t, svc, "get_analysis_status", map[string]any{"job_id": "missing"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "not found")

	res = call(t, svc, "get_analysis_status", map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "either job_id or workspace_id is required")
}

func TestGetAnalysisResult(t *testing.T) {
	svc := &mockService{}
	result := schema.EmptyResult(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	svc.On("Result", "done").Return(result, nil)
	svc.On("Result", "busy").Return(nil, fmt.Errorf("%w: job busy is processing", jobs.ErrNotCompleted))

	res := call(t, svc, "get_analysis_result", map[string]any{"job_id": "done"})
	assert.False(t, res.IsError)
	var decoded schema.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(text(res)), &decoded))
	assert.Equal(t, 0, decoded.CodebaseHealth.BusFactor)

	res = call(t, svc, "get_analysis_result", map[string]any{"job_id": "busy"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "Poll get_analysis_status")

	res = call(t, svc, "get_analysis_result", map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "job_id is required")
}
