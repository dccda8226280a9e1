package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/busfactor/core/jobs"
)

// submitRequest is the body of an analysis submission.
type submitRequest struct {
	RepoLocation string `json:"repo_location" binding:"required"`
}

// jobHandler serves the polling contract over HTTP.
type jobHandler struct {
	svc jobs.Service
}

// submit handles POST /api/v1/workspaces/:workspace/analysis.
func (h *jobHandler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, newAppError(http.StatusBadRequest, "repo_location is required"))
		return
	}

	job, err := h.svc.Submit(c.Param("workspace"), req.RepoLocation)
	if err != nil {
		Error(c, h.translate(err))
		return
	}
	c.Header("Location", "/api/v1/jobs/"+job.ID)
	Accepted(c, job)
}

// latest handles GET /api/v1/workspaces/:workspace/analysis.
func (h *jobHandler) latest(c *gin.Context) {
	job, err := h.svc.StatusByWorkspace(c.Param("workspace"))
	if err != nil {
		Error(c, h.translate(err))
		return
	}
	Success(c, job)
}

// status handles GET /api/v1/jobs/:id. Completed jobs carry their result.
func (h *jobHandler) status(c *gin.Context) {
	job, err := h.svc.Status(c.Param("id"))
	if err != nil {
		Error(c, h.translate(err))
		return
	}
	Success(c, job)
}

// result handles GET /api/v1/jobs/:id/result.
func (h *jobHandler) result(c *gin.Context) {
	result, err := h.svc.Result(c.Param("id"))
	if err != nil {
		Error(c, h.translate(err))
		return
	}
	Success(c, result)
}

// cancel handles DELETE /api/v1/jobs/:id.
func (h *jobHandler) cancel(c *gin.Context) {
	Error(c, h.translate(h.svc.Cancel(c.Param("id"))))
}

// stats handles GET /api/v1/stats.
func (h *jobHandler) stats(c *gin.Context) {
	Success(c, h.svc.Stats())
}

// health handles GET /healthz.
func (h *jobHandler) health(c *gin.Context) {
	stats := h.svc.Stats()
	status := "healthy"
	if stats.QueueLength >= stats.QueueCapacity && stats.QueueCapacity > 0 {
		status = "saturated"
	}
	Success(c, gin.H{"status": status, "queue": stats})
}

// translate maps job errors onto HTTP statuses.
func (h *jobHandler) translate(err error) error {
	var active *jobs.ActiveJobError
	switch {
	case errors.As(err, &active):
		appErr := newAppError(http.StatusConflict, err.Error())
		appErr.Data = gin.H{"job_id": active.JobID}
		return appErr
	case errors.Is(err, jobs.ErrNotFound):
		return newAppError(http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrNotCompleted):
		return newAppError(http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrQueueFull):
		return newAppError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, jobs.ErrInvalidRequest):
		return newAppError(http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrCancelUnsupported):
		return newAppError(http.StatusNotImplemented, err.Error())
	case errors.Is(err, jobs.ErrStopped):
		return newAppError(http.StatusServiceUnavailable, err.Error())
	case err == nil:
		return newAppError(http.StatusInternalServerError, "unexpected empty error")
	default:
		return fmt.Errorf("internal error: %w", err)
	}
}
