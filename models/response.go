package models

import "time"

// Render job states reported by GET /api/v1/render/:id.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// RenderAccepted is the immediate response for POST /api/v1/render.
type RenderAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RenderRecord is the state of one API-submitted job.
type RenderRecord struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Destination string       `json:"destination"`
	Report      *Report      `json:"report,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Finished reports whether the job reached a terminal state.
func (r *RenderRecord) Finished() bool {
	return r.Status == JobCompleted || r.Status == JobFailed
}

// ErrorResponse wraps an ErrorDetail for non-2xx API responses.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string     `json:"status"` // "healthy" or "degraded"
	Uptime  string     `json:"uptime"`
	Driver  string     `json:"driver"`
	Queue   QueueStats `json:"queue"`
	Version string     `json:"version"`
}

// QueueStats reports the state of the render queue.
type QueueStats struct {
	Capacity int  `json:"capacity"`
	Waiting  int  `json:"waiting"`
	Busy     bool `json:"busy"`
}
