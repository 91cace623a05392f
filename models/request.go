package models

import "github.com/use-agent/prerender/config"

// RenderRequest is the payload for POST /api/v1/render.
//
// It is a job file in JSON form plus optional webhook settings. Destination
// is resolved under the server's output root; when empty, the job id is used.
type RenderRequest struct {
	config.JobFile

	// WebhookURL receives render.completed or render.failed once the job ends.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs webhook bodies with HMAC-SHA256 when set.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}
