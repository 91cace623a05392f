package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/use-agent/prerender/models"
)

// apiClient talks to a running prerender API.
type apiClient struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

func newAPIClient(baseURL, apiKey string, pollInterval time.Duration) *apiClient {
	return &apiClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: pollInterval,
	}
}

// submit posts a job and returns its id.
func (c *apiClient) submit(ctx context.Context, req *models.RenderRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/render", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var accepted models.RenderAccepted
	if err := c.do(httpReq, http.StatusAccepted, &accepted); err != nil {
		return "", err
	}
	if accepted.ID == "" {
		return "", fmt.Errorf("render job creation failed")
	}
	return accepted.ID, nil
}

// status fetches the current record of a job.
func (c *apiClient) status(ctx context.Context, id string) (*models.RenderRecord, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/render/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	var rec models.RenderRecord
	if err := c.do(httpReq, http.StatusOK, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// wait polls a job until it is completed or failed, or ctx is cancelled.
func (c *apiClient) wait(ctx context.Context, id string) (*models.RenderRecord, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			rec, err := c.status(ctx, id)
			if err != nil {
				return nil, err
			}
			if rec.Finished() {
				return rec, nil
			}
		}
	}
}

// do sends req and decodes the body into out when the status matches want;
// otherwise it decodes the API error.
func (c *apiClient) do(req *http.Request, want int, out any) error {
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		var apiErr models.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
			return fmt.Errorf("[%s] %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
