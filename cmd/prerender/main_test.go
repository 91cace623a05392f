package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/prerender/models"
)

func newRenderCommand(t *testing.T, args ...string) (*cobra.Command, *renderFlags) {
	t.Helper()
	opts := &renderFlags{}
	cmd := &cobra.Command{Use: "render"}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "")
	f.StringVar(&opts.baseURL, "base-url", "", "")
	f.StringVarP(&opts.out, "out", "o", "", "")
	f.StringArrayVarP(&opts.routes, "route", "r", nil, "")
	f.StringArrayVar(&opts.inactive, "inactive", nil, "")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "")
	f.BoolVar(&opts.debug, "debug", false, "")
	f.BoolVar(&opts.markdown, "markdown", false, "")
	f.BoolVar(&opts.stealth, "stealth", false, "")
	if err := f.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cmd, opts
}

func TestJobFile_FromFlags(t *testing.T) {
	cmd, opts := newRenderCommand(t,
		"--base-url", "http://localhost:3000",
		"--out", "dist",
		"--route", "/",
		"--route", "/about|#team,h1",
		"--inactive", "/admin",
		"--timeout", "5s",
		"--debug",
	)

	jf, err := opts.jobFile(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if jf.BaseURL != "http://localhost:3000" || jf.Destination != "dist" || !jf.Debug {
		t.Errorf("job file = %+v", jf)
	}
	if *jf.TimeoutMs != 5000 {
		t.Errorf("timeout = %d ms, want 5000", *jf.TimeoutMs)
	}
	if len(jf.Routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(jf.Routes))
	}
	if len(jf.Routes[1].WaitFor) != 2 {
		t.Errorf("about selectors = %v", jf.Routes[1].WaitFor)
	}
	if jf.Routes[2].IsActive() {
		t.Error("--inactive route should be inactive")
	}
}

func TestJobFile_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	yaml := "base_url: http://from-file.test\ndestination: out\ntimeout_ms: 1000\nroutes:\n  - path: /\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd, opts := newRenderCommand(t, "--config", path, "--base-url", "http://from-flag.test", "--route", "/extra")
	jf, err := opts.jobFile(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if jf.BaseURL != "http://from-flag.test" {
		t.Errorf("base url = %q, flag should win", jf.BaseURL)
	}
	if jf.Destination != "out" {
		t.Errorf("destination = %q, file value should be kept", jf.Destination)
	}
	if *jf.TimeoutMs != 1000 {
		t.Errorf("timeout = %d, file value should be kept when the flag is unset", *jf.TimeoutMs)
	}
	if len(jf.Routes) != 2 || jf.Routes[1].Path != "/extra" {
		t.Errorf("routes = %+v", jf.Routes)
	}
}

func TestPrintReport(t *testing.T) {
	report := &models.Report{}
	report.Add(&models.RouteResult{Path: "/", Status: models.RouteRendered, OutputPath: "dist/index.html", Bytes: 120})
	report.Add(&models.RouteResult{
		Path:   "/broken",
		Status: models.RouteSkipped,
		Error:  &models.ErrorDetail{Code: models.ErrCodeNavigation, Message: "navigation to route failed"},
	})

	report.Uncovered = []string{"/pricing"}

	var buf bytes.Buffer
	printReport(&buf, report)
	// The table style upper-cases the header and footer.
	out := strings.ToLower(buf.String())

	for _, want := range []string{"dist/index.html", "navigation_failed", "1 rendered", "1 skipped", "linked but not rendered: /pricing"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
