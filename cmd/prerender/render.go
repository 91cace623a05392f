package main

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/engine"
	"github.com/use-agent/prerender/models"
	"github.com/use-agent/prerender/prerender"
)

type renderFlags struct {
	configPath string
	baseURL    string
	out        string
	routes     []string
	inactive   []string
	timeout    time.Duration
	debug      bool
	markdown   bool
	stealth    bool
	driver     string
}

var renderOpts renderFlags

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Renders every route of a job and writes one index.html per route.",
	Example: `  prerender render --config job.yaml
  prerender render --base-url http://localhost:3000 --out dist \
    --route / --route "/about|#team,main h1" --inactive /admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jf, err := renderOpts.jobFile(cmd)
		if err != nil {
			return err
		}
		job, err := prerender.JobFromFile(jf)
		if err != nil {
			return err
		}

		browserCfg := config.Load().Browser
		if renderOpts.driver != "" {
			browserCfg.Driver = renderOpts.driver
		}
		launcher, err := engine.NewLauncher(browserCfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := job.Start(ctx, prerender.NewRenderer(launcher, prerender.WithLogger(slog.Default())))
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return err
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderOpts.configPath, "config", "c", "", "job file (YAML, or JSON when it ends in .json)")
	f.StringVar(&renderOpts.baseURL, "base-url", "", "URL every route path is appended to")
	f.StringVarP(&renderOpts.out, "out", "o", "", "destination directory")
	f.StringArrayVarP(&renderOpts.routes, "route", "r", nil, `route to render, optionally with selectors to wait for: "path|sel,sel" (repeatable)`)
	f.StringArrayVar(&renderOpts.inactive, "inactive", nil, "route kept in the job but not rendered (repeatable)")
	f.DurationVar(&renderOpts.timeout, "timeout", prerender.DefaultTimeout, "navigation and selector wait timeout per route")
	f.BoolVar(&renderOpts.debug, "debug", false, "log progress and timings")
	f.BoolVar(&renderOpts.markdown, "markdown", false, "also write index.md next to every index.html")
	f.BoolVar(&renderOpts.stealth, "stealth", false, "inject anti-bot-detection evasions")
	f.StringVar(&renderOpts.driver, "driver", "", "browser driver: rod or chromedp (default from PRERENDER_BROWSER_DRIVER)")
}

// jobFile loads --config when given and lays the explicitly set flags
// over it. Flag routes are appended after the file's routes.
func (o *renderFlags) jobFile(cmd *cobra.Command) (*config.JobFile, error) {
	jf := &config.JobFile{}
	if o.configPath != "" {
		loaded, err := config.LoadJobFile(o.configPath)
		if err != nil {
			return nil, err
		}
		jf = loaded
	}

	changed := cmd.Flags().Changed
	if changed("base-url") {
		jf.BaseURL = o.baseURL
	}
	if changed("out") {
		jf.Destination = o.out
	}
	if changed("timeout") || jf.TimeoutMs == nil {
		ms := o.timeout.Milliseconds()
		jf.TimeoutMs = &ms
	}
	if changed("debug") {
		jf.Debug = o.debug
	}
	if changed("markdown") {
		jf.Markdown = o.markdown
	}
	if changed("stealth") {
		jf.Stealth = o.stealth
	}

	for _, r := range o.routes {
		jf.Routes = append(jf.Routes, config.ParseRoute(r))
	}
	inactive := false
	for _, p := range o.inactive {
		jf.Routes = append(jf.Routes, config.RouteFile{Path: p, Active: &inactive})
	}
	return jf, nil
}

func printReport(w io.Writer, report *models.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Route", "Status", "Output", "Bytes", "Time", "Error"})

	for _, r := range report.Routes {
		errMsg := ""
		if r.Error != nil {
			errMsg = fmt.Sprintf("[%s] %s", r.Error.Code, r.Error.Message)
		}
		t.AppendRow(table.Row{
			r.Path,
			r.Status,
			r.OutputPath,
			r.Bytes,
			(time.Duration(r.Timing.TotalMs) * time.Millisecond).String(),
			errMsg,
		})
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d rendered", report.Rendered),
		fmt.Sprintf("%d skipped", report.Skipped),
		fmt.Sprintf("%d inactive", report.Inactive),
		(time.Duration(report.TotalMs) * time.Millisecond).String(),
		"",
	})
	t.Render()

	if len(report.Uncovered) > 0 {
		fmt.Fprintf(w, "linked but not rendered: %s\n", strings.Join(report.Uncovered, ", "))
	}
}

