package prerender

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/prerender/models"
	"github.com/use-agent/prerender/route"
)

const base = "http://localhost:3000"

func testSite() *fakeSite {
	return &fakeSite{
		pages: map[string]string{
			base + "/":               `<html><head><title>Home</title></head><body><h1>Home</h1></body></html>`,
			base + "/about":          `<html><head><title>About</title></head><body><div id="team">Team</div></body></html>`,
			base + "/contact":        `<html><body>Contact</body></html>`,
			base + "/search?q=shoes": `<html><body>Results</body></html>`,
		},
		selectors: map[string][]string{
			base + "/about": {"#team", "h1.loaded"},
		},
		hang: map[string]bool{
			base + "/slow": true,
		},
	}
}

func newTestJob(t *testing.T, routes ...*route.Route) (*Job, string) {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "out")
	j := NewJob()
	if err := j.SetBaseURL(base); err != nil {
		t.Fatal(err)
	}
	if err := j.SetDestinationDir(dest); err != nil {
		t.Fatal(err)
	}
	if err := j.SetRoutes(routes); err != nil {
		t.Fatal(err)
	}
	return j, dest
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRender_WritesIndexPerRoute(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, dest := newTestJob(t, route.MustNew("/"), route.MustNew("/about"))

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	home, err := os.ReadFile(filepath.Join(dest, "index.html"))
	if err != nil {
		t.Fatalf("home snapshot: %v", err)
	}
	if !strings.Contains(string(home), "<h1>Home</h1>") {
		t.Errorf("home snapshot = %q", home)
	}
	if _, err := os.Stat(filepath.Join(dest, "about", "index.html")); err != nil {
		t.Errorf("about snapshot: %v", err)
	}

	if l.launches != 1 {
		t.Errorf("launches = %d, want 1", l.launches)
	}
	if got := l.closes(); got != 1 {
		t.Errorf("browser closes = %d, want 1", got)
	}
	if report.Rendered != 2 || report.Skipped != 0 {
		t.Errorf("report = %d rendered, %d skipped", report.Rendered, report.Skipped)
	}
	if report.Routes[0].Title != "Home" {
		t.Errorf("title = %q, want Home", report.Routes[0].Title)
	}
	if report.Driver != "fake" {
		t.Errorf("driver = %q", report.Driver)
	}
}

func TestRender_EveryPageIsClosed(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, _ := newTestJob(t, route.MustNew("/"), route.MustNew("/missing"), route.MustNew("/about"))

	if _, err := job.Start(context.Background(), NewRenderer(l)); err != nil {
		t.Fatal(err)
	}

	pages := l.browsers[0].pages
	if len(pages) != 3 {
		t.Fatalf("pages opened = %d, want 3", len(pages))
	}
	for i, p := range pages {
		if !p.closed {
			t.Errorf("page %d was not closed", i)
		}
	}
}

func TestRender_InactiveRoutesAreSkipped(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, dest := newTestJob(t,
		route.MustNew("/"),
		route.MustNew("/contact").SetInactive(),
		route.MustNew("/about"),
	)

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatal(err)
	}

	if n := countFiles(t, dest); n != 2 {
		t.Errorf("files written = %d, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(dest, "contact")); !os.IsNotExist(err) {
		t.Error("inactive route should not be written")
	}
	if len(l.browsers[0].pages) != 2 {
		t.Errorf("pages opened = %d, want 2", len(l.browsers[0].pages))
	}
	if report.Inactive != 1 || report.Routes[1].Status != models.RouteInactive {
		t.Errorf("inactive route not reported: %+v", report.Routes[1])
	}
}

func TestRender_OnlyInactiveRoutesNeverLaunch(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, _ := newTestJob(t, route.MustNew("/").SetInactive())

	if _, err := job.Start(context.Background(), NewRenderer(l)); err != nil {
		t.Fatal(err)
	}
	if l.launches != 0 {
		t.Errorf("launches = %d, want 0", l.launches)
	}
}

func TestRender_NavigationFailureSkipsOnlyThatRoute(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, dest := newTestJob(t, route.MustNew("/missing"), route.MustNew("/"))

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatalf("route failures must not fail the job: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "index.html")); err != nil {
		t.Errorf("healthy route should still render: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "missing")); !os.IsNotExist(err) {
		t.Error("failed route should leave no output")
	}

	failed := report.Routes[0]
	if failed.Status != models.RouteSkipped {
		t.Errorf("status = %q, want skipped", failed.Status)
	}
	if failed.Error == nil || failed.Error.Code != models.ErrCodeNavigation {
		t.Errorf("error = %+v, want %s", failed.Error, models.ErrCodeNavigation)
	}
}

func TestRender_ZeroTimeoutSkipsEveryRoute(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, dest := newTestJob(t, route.MustNew("/"), route.MustNew("/about"))
	if err := job.SetTimeout(0); err != nil {
		t.Fatal(err)
	}

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if n := countFiles(t, dest); n != 0 {
		t.Errorf("files written = %d, want 0", n)
	}
	if report.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", report.Skipped)
	}
	for _, r := range report.Routes {
		if r.Error == nil || r.Error.Code != models.ErrCodeTimeout {
			t.Errorf("route %s error = %+v, want %s", r.Path, r.Error, models.ErrCodeTimeout)
		}
	}
	if got := l.closes(); got != 1 {
		t.Errorf("browser closes = %d, want 1", got)
	}
}

func TestRender_NavigationTimeout(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, _ := newTestJob(t, route.MustNew("/slow"), route.MustNew("/"))
	if err := job.SetTimeout(50 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatal(err)
	}
	if got := report.Routes[0].Error; got == nil || got.Code != models.ErrCodeTimeout {
		t.Errorf("slow route error = %+v, want %s", got, models.ErrCodeTimeout)
	}
	if report.Routes[1].Status != models.RouteRendered {
		t.Errorf("next route status = %q, want rendered", report.Routes[1].Status)
	}
}

func TestRender_WaitsForAllSelectors(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, dest := newTestJob(t, route.MustNew("/about", "#team", "h1.loaded"))
	if err := job.SetTimeout(time.Second); err != nil {
		t.Fatal(err)
	}

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatal(err)
	}
	if report.Routes[0].Status != models.RouteRendered {
		t.Fatalf("status = %q, error = %+v", report.Routes[0].Status, report.Routes[0].Error)
	}
	if _, err := os.Stat(filepath.Join(dest, "about", "index.html")); err != nil {
		t.Error(err)
	}
}

func TestRender_SelectorsAreAwaitedTogether(t *testing.T) {
	site := testSite()
	site.selectors[base+"/about"] = []string{"#team", "h1.loaded", "footer"}
	site.selectorDelay = 60 * time.Millisecond
	l := &fakeLauncher{site: site}

	// Each selector alone fits the timeout; waiting for them one by one
	// would not.
	job, _ := newTestJob(t, route.MustNew("/about", "#team", "h1.loaded", "footer"))
	if err := job.SetTimeout(150 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatal(err)
	}
	res := report.Routes[0]
	if res.Status != models.RouteRendered {
		t.Fatalf("status = %q, error = %+v", res.Status, res.Error)
	}
	if res.Timing.WaitMs >= 150 {
		t.Errorf("wait took %dms, want roughly one selector delay", res.Timing.WaitMs)
	}
}

func TestRender_MissingSelectorTimesOut(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, dest := newTestJob(t, route.MustNew("/about", "#team", ".never"))
	if err := job.SetTimeout(50 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatal(err)
	}

	res := report.Routes[0]
	if res.Status != models.RouteSkipped {
		t.Errorf("status = %q, want skipped", res.Status)
	}
	if res.Error == nil || res.Error.Code != models.ErrCodeTimeout {
		t.Errorf("error = %+v, want %s", res.Error, models.ErrCodeTimeout)
	}
	if n := countFiles(t, dest); n != 0 {
		t.Errorf("files written = %d, want 0", n)
	}
}

func TestRender_MissingDestinationFailsBeforeLaunch(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job := NewJob()
	if err := job.SetBaseURL(base); err != nil {
		t.Fatal(err)
	}
	if err := job.AddRoute(route.MustNew("/")); err != nil {
		t.Fatal(err)
	}

	_, err := job.Start(context.Background(), NewRenderer(l))
	if !models.IsConfiguration(err) {
		t.Fatalf("err = %v, want a configuration error", err)
	}
	if l.launches != 0 {
		t.Errorf("launches = %d, want 0", l.launches)
	}
}

func TestRender_MissingBaseURLFailsBeforeLaunch(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job := NewJob()
	if err := job.SetDestinationDir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	_, err := job.Start(context.Background(), NewRenderer(l))
	if !models.IsConfiguration(err) {
		t.Fatalf("err = %v, want a configuration error", err)
	}
	if l.launches != 0 {
		t.Errorf("launches = %d, want 0", l.launches)
	}
}

func TestRender_LaunchFailureIsFatal(t *testing.T) {
	l := &fakeLauncher{site: testSite(), launchErr: errors.New("chrome not found")}
	job, dest := newTestJob(t, route.MustNew("/"))

	_, err := job.Start(context.Background(), NewRenderer(l))
	if !models.IsResource(err) {
		t.Fatalf("err = %v, want a resource error", err)
	}
	if models.CodeOf(err) != models.ErrCodeBrowserCrash {
		t.Errorf("code = %s, want %s", models.CodeOf(err), models.ErrCodeBrowserCrash)
	}
	if n := countFiles(t, dest); n != 0 {
		t.Errorf("files written = %d, want 0", n)
	}
}

func TestRender_PageOpenFailureIsFatalAndClosesBrowser(t *testing.T) {
	l := &fakeLauncher{site: testSite(), pageErr: errors.New("target crashed")}
	job, _ := newTestJob(t, route.MustNew("/"), route.MustNew("/about"))

	report, err := job.Start(context.Background(), NewRenderer(l))
	if models.CodeOf(err) != models.ErrCodeBrowserCrash {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeBrowserCrash)
	}
	if got := l.closes(); got != 1 {
		t.Errorf("browser closes = %d, want 1", got)
	}
	if len(report.Routes) != 1 {
		t.Errorf("routes attempted = %d, want 1", len(report.Routes))
	}
}

func TestRender_CancelledContextStops(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, dest := newTestJob(t, route.MustNew("/"), route.MustNew("/about"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := job.Start(ctx, NewRenderer(l))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := l.closes(); got != 1 {
		t.Errorf("browser closes = %d, want 1", got)
	}
	if n := countFiles(t, dest); n != 0 {
		t.Errorf("files written = %d, want 0", n)
	}
}

func TestRender_QueryStringIsNotPartOfOutputPath(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, dest := newTestJob(t, route.MustNew("/search?q=shoes"))

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatal(err)
	}
	if got := l.browsers[0].pages[0].visited[0]; got != base+"/search?q=shoes" {
		t.Errorf("navigated to %q", got)
	}
	want := filepath.Join(dest, "search", "index.html")
	if report.Routes[0].OutputPath != want {
		t.Errorf("output = %q, want %q", report.Routes[0].OutputPath, want)
	}
}

func TestRender_StripSelectorsAndMarkdown(t *testing.T) {
	site := testSite()
	site.pages[base+"/"] = `<html><head><title>Home</title></head><body>` +
		`<h1>Welcome</h1><div class="cookie">cookies!</div></body></html>`
	l := &fakeLauncher{site: site}
	job, dest := newTestJob(t, route.MustNew("/"))
	if err := job.SetStripSelectors([]string{".cookie"}); err != nil {
		t.Fatal(err)
	}
	job.SetMarkdown(true)

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatal(err)
	}

	html, err := os.ReadFile(filepath.Join(dest, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(html), "cookies!") {
		t.Error("stripped element should not be in the snapshot")
	}

	md, err := os.ReadFile(filepath.Join(dest, "index.md"))
	if err != nil {
		t.Fatalf("markdown sidecar: %v", err)
	}
	if !strings.Contains(string(md), "Welcome") {
		t.Errorf("markdown = %q", md)
	}
	if report.Routes[0].MarkdownPath == "" {
		t.Error("markdown path should be reported")
	}
}

func TestRender_PassesPageOptions(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, _ := newTestJob(t, route.MustNew("/"))
	job.SetHeaders(map[string]string{"X-Prerender": "1"})
	job.SetStealth(true)
	if err := job.SetBlockedResources([]string{"Image", "Font"}); err != nil {
		t.Fatal(err)
	}

	if _, err := job.Start(context.Background(), NewRenderer(l)); err != nil {
		t.Fatal(err)
	}

	opts := l.browsers[0].opts[0]
	if opts.Headers["X-Prerender"] != "1" || !opts.Stealth || len(opts.BlockedResources) != 2 {
		t.Errorf("page options = %+v", opts)
	}
	if opts.Viewport.Width != 1920 || opts.Viewport.Height != 1080 {
		t.Errorf("viewport = %+v, want 1920x1080", opts.Viewport)
	}
}

type failingWriter struct{}

func (failingWriter) WriteFile(string, []byte) error { return errors.New("disk full") }

func TestRender_WriteFailureSkipsRoute(t *testing.T) {
	l := &fakeLauncher{site: testSite()}
	job, _ := newTestJob(t, route.MustNew("/"), route.MustNew("/about"))

	report, err := job.Start(context.Background(), NewRenderer(l, WithWriter(failingWriter{})))
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", report.Skipped)
	}
	if report.Routes[0].Error.Code != models.ErrCodeWrite {
		t.Errorf("code = %s, want %s", report.Routes[0].Error.Code, models.ErrCodeWrite)
	}
}

func TestRender_LogsOnlyInDebugMode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	l := &fakeLauncher{site: testSite()}
	r := NewRenderer(l, WithLogger(logger))

	job, _ := newTestJob(t, route.MustNew("/"))
	if _, err := job.Start(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("non-debug job logged: %s", buf.String())
	}

	job.SetDebugMode(true)
	if _, err := job.Start(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "route rendered") {
		t.Errorf("debug job should log progress, got: %s", buf.String())
	}
}

func TestRender_ReportsUncoveredLinks(t *testing.T) {
	l := &fakeLauncher{site: &fakeSite{pages: map[string]string{
		base + "/": `<html><body>
			<a href="/about">About</a>
			<a href="/pricing#plans">Pricing</a>
			<a href="/contact/">Contact</a>
			<a href="https://elsewhere.test/x">Out</a>
		</body></html>`,
		base + "/about": `<html><body><a href="/">Home</a><a href="/pricing">Pricing</a><a href="/team">Team</a></body></html>`,
	}}}
	job, _ := newTestJob(t, route.MustNew("/"), route.MustNew("/about"), route.MustNew("/contact").SetInactive())

	report, err := job.Start(context.Background(), NewRenderer(l))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []string{"/pricing", "/team"}
	if strings.Join(report.Uncovered, ",") != strings.Join(want, ",") {
		t.Errorf("Uncovered = %v, want %v", report.Uncovered, want)
	}
	if got := report.Routes[0].Links; len(got) != 3 {
		t.Errorf("links of / = %v, want 3 internal links", got)
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://a.test", "/", "http://a.test/"},
		{"http://a.test/", "/", "http://a.test/"},
		{"http://a.test", "about", "http://a.test/about"},
		{"http://a.test/", "about", "http://a.test/about"},
		{"http://a.test/app", "/about", "http://a.test/app/about"},
		{"http://a.test", "?q=1", "http://a.test?q=1"},
	}
	for _, tt := range tests {
		if got := joinURL(tt.base, tt.path); got != tt.want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}
