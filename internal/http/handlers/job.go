package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dialogforge-backend/internal/http/response"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.jobs.GetStats(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		respondServiceError(c, err, "job_stats_failed")
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}

// GET /api/jobs/active
func (h *JobHandler) ListActive(c *gin.Context) {
	jobs, err := h.jobs.GetActiveJobs(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		respondServiceError(c, err, "list_active_jobs_failed")
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// POST /api/jobs/:id/restart
func (h *JobHandler) RestartJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.RestartForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		respondServiceError(c, err, "restart_job_failed")
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/dialogs/:id/job
func (h *JobHandler) GetDialogJob(c *gin.Context) {
	dialogID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_dialog_id", err)
		return
	}
	job, err := h.jobs.GetByDialogIDForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, dialogID)
	if err != nil {
		respondServiceError(c, err, "get_dialog_job_failed")
		return
	}
	if job == nil {
		response.RespondError(c, http.StatusNotFound, "job_not_found", services.ErrNotFound)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/dialogs/:id/generate
func (h *JobHandler) GenerateDialog(c *gin.Context) {
	dialogID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_dialog_id", err)
		return
	}
	job, created, err := h.jobs.EnqueueForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, dialogID)
	if err != nil {
		respondServiceError(c, err, "enqueue_dialog_failed")
		return
	}
	if created {
		response.RespondCreated(c, gin.H{"job": job, "created": true})
		return
	}
	response.RespondOK(c, gin.H{"job": job, "created": false})
}
