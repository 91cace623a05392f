package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/models"
)

func handlePrerenderRoutes(client *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		baseURL, err := request.RequireString("base_url")
		if err != nil {
			return mcp.NewToolResultError("base_url is required"), nil
		}
		routes, err := request.RequireStringSlice("routes")
		if err != nil || len(routes) == 0 {
			return mcp.NewToolResultError("routes is required and must be a non-empty array of strings"), nil
		}

		req := &models.RenderRequest{}
		req.BaseURL = baseURL
		req.Destination = request.GetString("destination", "")
		req.Markdown = request.GetBool("markdown", false)
		req.Stealth = request.GetBool("stealth", false)
		// Zero is a real timeout, so only an absent argument keeps the default.
		if _, ok := request.GetArguments()["timeout_ms"]; ok {
			timeout := int64(request.GetInt("timeout_ms", 0))
			req.TimeoutMs = &timeout
		}
		for _, r := range routes {
			req.Routes = append(req.Routes, config.ParseRoute(r))
		}

		id, err := client.submit(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("render request failed: %v", err)), nil
		}

		rec, err := client.wait(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling render job %s failed: %v", id, err)), nil
		}
		return mcp.NewToolResultText(formatRecord(rec)), nil
	}
}

func handleRenderStatus(client *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		rec, err := client.status(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatRecord(rec)), nil
	}
}

// formatRecord renders a job record as plain text for the model.
func formatRecord(rec *models.RenderRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Render %s: %s\nDestination: %s\n", rec.ID, rec.Status, rec.Destination)
	if rec.Error != nil {
		fmt.Fprintf(&sb, "Error: [%s] %s\n", rec.Error.Code, rec.Error.Message)
	}

	rep := rec.Report
	if rep == nil {
		return sb.String()
	}
	fmt.Fprintf(&sb, "Rendered %d, skipped %d, inactive %d in %dms\n\n",
		rep.Rendered, rep.Skipped, rep.Inactive, rep.TotalMs)

	for _, r := range rep.Routes {
		switch r.Status {
		case models.RouteRendered:
			fmt.Fprintf(&sb, "- %s → %s (%d bytes", r.Path, r.OutputPath, r.Bytes)
			if r.Title != "" {
				fmt.Fprintf(&sb, ", title %q", r.Title)
			}
			sb.WriteString(")\n")
		case models.RouteSkipped:
			msg := "unknown error"
			if r.Error != nil {
				msg = fmt.Sprintf("[%s] %s", r.Error.Code, r.Error.Message)
			}
			fmt.Fprintf(&sb, "- %s SKIPPED: %s\n", r.Path, msg)
		default:
			fmt.Fprintf(&sb, "- %s inactive\n", r.Path)
		}
	}
	if len(rep.Uncovered) > 0 {
		fmt.Fprintf(&sb, "\nLinked but not rendered: %s\n", strings.Join(rep.Uncovered, ", "))
	}
	return sb.String()
}
