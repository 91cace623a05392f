package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/prerender/models"
	"github.com/use-agent/prerender/prerender"
)

// PostRender returns a handler for POST /api/v1/render.
//
//  1. Bind the job file JSON and webhook settings.
//  2. Resolve the destination under outputRoot.
//  3. Build and pre-flight the job so bad input fails with 400 now,
//     not later in the worker.
//  4. Enqueue and answer 202 with the job id.
func PostRender(q *Queue, outputRoot string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RenderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewPrerenderError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		id := uuid.NewString()
		if req.Destination == "" {
			req.Destination = id
		}
		dest, err := resolveDestination(outputRoot, req.Destination)
		if err != nil {
			respondError(c, err)
			return
		}
		req.Destination = dest

		job, err := prerender.JobFromFile(&req.JobFile)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := job.Check(); err != nil {
			respondError(c, err)
			return
		}
		if len(job.Routes()) == 0 {
			respondError(c, models.Invalid("at least one route is required"))
			return
		}

		rec, err := q.Submit(id, job, req.WebhookURL, req.WebhookSecret)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.RenderAccepted{ID: rec.ID, Status: rec.Status})
	}
}

// GetRender returns a handler for GET /api/v1/render/:id.
func GetRender(q *Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := q.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewPrerenderError(models.ErrCodeNotFound, "render job not found", nil))
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// resolveDestination joins dest onto root and rejects anything that would
// land outside root.
func resolveDestination(root, dest string) (string, error) {
	if filepath.IsAbs(dest) {
		return "", models.Invalid("the destination should be relative to the output root (got: %s)", dest)
	}
	full := filepath.Join(root, dest)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", models.Invalid("the destination should stay inside the output root (got: %s)", dest)
	}
	return full, nil
}

// respondError maps a PrerenderError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error) {
	detail := models.DetailOf(err)
	c.JSON(mapErrorToStatus(detail.Code), models.ErrorResponse{Error: detail})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeInvalidInput, models.ErrCodeConfiguration:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeQueueFull:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
