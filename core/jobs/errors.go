package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the registry and runner.
var (
	ErrJobActive         = errors.New("workspace already has an analysis in progress")
	ErrQueueFull         = errors.New("analysis queue is full")
	ErrNotFound          = errors.New("analysis job not found")
	ErrNotCompleted      = errors.New("analysis job has not completed")
	ErrCancelUnsupported = errors.New("cancelling an analysis job is not supported")
	ErrStopped           = errors.New("job runner is stopped")
	ErrInvalidRequest    = errors.New("workspace and repository location are required")
)

// ActiveJobError names the job that blocks a new submission.
type ActiveJobError struct {
	WorkspaceID string
	JobID       string
}

func (e *ActiveJobError) Error() string {
	return fmt.Sprintf("workspace %s already has active job %s", e.WorkspaceID, e.JobID)
}

func (e *ActiveJobError) Is(target error) bool { return target == ErrJobActive }

// NotFoundError names the job id that could not be found.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("analysis job %q not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
