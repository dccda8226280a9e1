package contract

import (
	"context"
	"time"

	"github.com/huangsam/busfactor/schema"
	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	callArgs := []any{ctx, repoPath}
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	ret := m.Called(callArgs...)
	out, _ := ret.Get(0).([]byte)
	return out, ret.Error(1)
}

// GetRepoHash implements the GitClient interface.
func (m *MockGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	ret := m.Called(ctx, repoPath)
	return ret.String(0), ret.Error(1)
}

// GetRepoRoot implements the GitClient interface.
func (m *MockGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	ret := m.Called(ctx, contextPath)
	return ret.String(0), ret.Error(1)
}

// GetHistoryLog implements the GitClient interface.
func (m *MockGitClient) GetHistoryLog(ctx context.Context, repoPath string, opts LogOptions) ([]byte, error) {
	ret := m.Called(ctx, repoPath, opts)
	out, _ := ret.Get(0).([]byte)
	return out, ret.Error(1)
}

// Clone implements the GitClient interface.
func (m *MockGitClient) Clone(ctx context.Context, url, dest string) error {
	return m.Called(ctx, url, dest).Error(0)
}

// MockNarrator is a mock implementation of Narrator for testing.
type MockNarrator struct {
	mock.Mock
}

var _ Narrator = &MockNarrator{} // Compile-time check

// Enabled implements the Narrator interface.
func (m *MockNarrator) Enabled() bool {
	return m.Called().Bool(0)
}

// Summarize implements the Narrator interface.
func (m *MockNarrator) Summarize(ctx context.Context, req NarrativeRequest) (string, error) {
	ret := m.Called(ctx, req)
	return ret.String(0), ret.Error(1)
}

// Recommend implements the Narrator interface.
func (m *MockNarrator) Recommend(ctx context.Context, req NarrativeRequest) ([]string, error) {
	ret := m.Called(ctx, req)
	out, _ := ret.Get(0).([]string)
	return out, ret.Error(1)
}

// Label implements the Narrator interface.
func (m *MockNarrator) Label(ctx context.Context, paths []string) (string, error) {
	ret := m.Called(ctx, paths)
	return ret.String(0), ret.Error(1)
}

// MockJobStore is a mock implementation of JobStore for testing.
type MockJobStore struct {
	mock.Mock
}

var _ JobStore = &MockJobStore{} // Compile-time check

// SaveJob implements the JobStore interface.
func (m *MockJobStore) SaveJob(job *schema.AnalysisJob) error {
	return m.Called(job).Error(0)
}

// GetJob implements the JobStore interface.
func (m *MockJobStore) GetJob(id string) (schema.JobRecord, error) {
	ret := m.Called(id)
	rec, _ := ret.Get(0).(schema.JobRecord)
	return rec, ret.Error(1)
}

// ListJobs implements the JobStore interface.
func (m *MockJobStore) ListJobs(limit int) ([]schema.JobRecord, error) {
	ret := m.Called(limit)
	recs, _ := ret.Get(0).([]schema.JobRecord)
	return recs, ret.Error(1)
}

// DeleteJobsBefore implements the JobStore interface.
func (m *MockJobStore) DeleteJobsBefore(cutoff time.Time) (int64, error) {
	ret := m.Called(cutoff)
	return ret.Get(0).(int64), ret.Error(1)
}

// GetStatus implements the JobStore interface.
func (m *MockJobStore) GetStatus() (schema.StoreStatus, error) {
	ret := m.Called()
	status, _ := ret.Get(0).(schema.StoreStatus)
	return status, ret.Error(1)
}

// Close implements the JobStore interface.
func (m *MockJobStore) Close() error {
	return m.Called().Error(0)
}
