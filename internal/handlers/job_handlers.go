package handlers

import (
	"net/http"

	"scangate/internal/common"
	"scangate/internal/jobs/background"

	"github.com/labstack/echo/v4"
)

// JobRunner is the scheduler surface exposed to platform admins.
type JobRunner interface {
	RunNow(name string) error
	Status() []background.JobStatus
}

type JobHandlers struct {
	jobs JobRunner
}

func NewJobHandlers(jobs JobRunner) *JobHandlers {
	return &JobHandlers{jobs: jobs}
}

// ListJobs handles GET /v1/admin/jobs
func (h *JobHandlers) ListJobs(c echo.Context) error {
	if !common.GetPrincipalFromContext(c.Request().Context()).IsPlatformAdmin {
		return common.SendForbiddenError(c, "PERMISSION_DENIED", "platform admin required")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobs": h.jobs.Status(),
	})
}

// RunJob handles POST /v1/admin/jobs/:name/run
func (h *JobHandlers) RunJob(c echo.Context) error {
	if !common.GetPrincipalFromContext(c.Request().Context()).IsPlatformAdmin {
		return common.SendForbiddenError(c, "PERMISSION_DENIED", "platform admin required")
	}

	name := c.Param("name")
	known := false
	for _, s := range h.jobs.Status() {
		if s.Name == name {
			known = true
			break
		}
	}
	if !known {
		return common.SendNotFoundError(c, "Job")
	}

	if err := h.jobs.RunNow(name); err != nil {
		return common.SendServerError(c, "Failed to trigger job")
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Job triggered",
		"job":     name,
	})
}
