package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("PRERENDER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PRERENDER_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PRERENDER_API_KEY is required")
		os.Exit(1)
	}

	client := newAPIClient(apiURL, apiKey, 2*time.Second)

	s := server.NewMCPServer(
		"prerender",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	prerenderTool := mcp.NewTool("prerender_routes",
		mcp.WithDescription("Render routes of a single-page application in a headless browser and write one static index.html per route. Waits until the job finishes and returns the per-route report."),
		mcp.WithString("base_url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL every route path is appended to, e.g. http://localhost:3000"),
		),
		mcp.WithArray("routes",
			mcp.Required(),
			mcp.Description(`Routes to render. Each entry is a path, optionally followed by selectors to wait for: "/about|#team,main h1"`),
		),
		mcp.WithString("destination",
			mcp.Description("Output directory relative to the server's output root (default: the job id)"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Navigation and selector wait timeout per route in milliseconds (default: 30000)"),
		),
		mcp.WithBoolean("markdown",
			mcp.Description("Also write index.md next to every index.html"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Inject anti-bot-detection evasions"),
		),
	)
	s.AddTool(prerenderTool, handlePrerenderRoutes(client))

	statusTool := mcp.NewTool("render_status",
		mcp.WithDescription("Fetch the current state of a render job by id."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Job id returned by prerender_routes"),
		),
	)
	s.AddTool(statusTool, handleRenderStatus(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
