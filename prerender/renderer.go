package prerender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/use-agent/prerender/cleaner"
	"github.com/use-agent/prerender/engine"
	"github.com/use-agent/prerender/models"
	"github.com/use-agent/prerender/output"
	"github.com/use-agent/prerender/route"
	"golang.org/x/sync/errgroup"
)

// Renderer executes jobs against a browser launcher. A Renderer holds no
// per-job state and may be reused, but each Render call owns its own
// browser session.
type Renderer struct {
	launcher engine.Launcher
	writer   output.Writer
	cleaner  *cleaner.Cleaner
	logger   *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWriter replaces the filesystem writer.
func WithWriter(w output.Writer) Option {
	return func(r *Renderer) { r.writer = w }
}

// WithCleaner replaces the Markdown cleaner.
func WithCleaner(c *cleaner.Cleaner) Option {
	return func(r *Renderer) { r.cleaner = c }
}

// WithLogger sets the logger used for jobs in debug mode.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer creates a Renderer that launches browsers with l.
func NewRenderer(l engine.Launcher, opts ...Option) *Renderer {
	r := &Renderer{
		launcher: l,
		writer:   output.DiskWriter{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cleaner == nil {
		r.cleaner = cleaner.NewCleaner()
	}
	return r
}

// Render snapshots every active route of job, in order, through a single
// browser session.
//
// Lifecycle:
//
//  1. Pre-flight      – job.Check, before any browser exists
//  2. Launch          – one session for the whole job
//  3. DEFER: close    – the session is closed on every exit path
//  4. Per route       – open page, navigate, wait, extract, write, close page
//
// A route that fails to navigate, wait, extract or write is recorded as
// skipped and the job moves on. Only pre-flight, launch and page-open
// failures are returned, together with the partial report.
func (r *Renderer) Render(ctx context.Context, job *Job) (*models.Report, error) {
	// ── 1. Pre-flight ─────────────────────────────────────────────────
	if err := job.Check(); err != nil {
		return nil, err
	}

	log := r.logger
	if !job.Debug() {
		log = slog.New(slog.DiscardHandler)
	}

	start := time.Now()
	report := &models.Report{
		BaseURL:     job.BaseURL(),
		Destination: job.DestinationDir(),
		Driver:      r.launcher.Name(),
	}
	defer func() { report.TotalMs = time.Since(start).Milliseconds() }()

	routes := job.Routes()
	active := 0
	for _, rt := range routes {
		if rt.Active() {
			active++
		}
	}
	log.Info("prerendering started",
		"baseURL", job.BaseURL(),
		"destination", job.DestinationDir(),
		"routes", len(routes),
		"active", active,
		"timeout", job.Timeout(),
	)

	var browser engine.Browser
	if active > 0 {
		// ── 2. Launch ─────────────────────────────────────────────────
		launchStart := time.Now()
		b, err := r.launcher.Launch(ctx, engine.LaunchOptions{Viewport: job.Viewport()})
		if err != nil {
			return report, models.NewPrerenderError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
		}
		browser = b
		log.Info("browser launched", "driver", r.launcher.Name(), "ms", time.Since(launchStart).Milliseconds())

		// ── 3. DEFER: close the session ───────────────────────────────
		defer func() {
			if err := browser.Close(); err != nil {
				log.Warn("browser close failed", "error", err)
			}
			log.Info("browser closed")
		}()
	}

	// ── 4. Routes, strictly one at a time ─────────────────────────────
	for _, rt := range routes {
		if !rt.Active() {
			log.Info("route inactive, skipping", "path", rt.Path())
			report.Add(&models.RouteResult{Path: rt.Path(), Status: models.RouteInactive})
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := r.renderRoute(ctx, log, browser, job, rt)
		report.Add(res)
		if err != nil {
			return report, err
		}
	}

	report.Uncovered = uncoveredLinks(routes, report.Routes)
	if len(report.Uncovered) > 0 {
		log.Info("linked paths without a route", "paths", report.Uncovered)
	}

	log.Info("prerendering finished",
		"rendered", report.Rendered,
		"skipped", report.Skipped,
		"inactive", report.Inactive,
		"ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// renderRoute processes one route on its own page. The returned error is
// non-nil only when the browser itself failed; route-level failures are
// recorded in the result.
func (r *Renderer) renderRoute(ctx context.Context, log *slog.Logger, browser engine.Browser, job *Job, rt *route.Route) (*models.RouteResult, error) {
	start := time.Now()
	res := &models.RouteResult{
		Path: rt.Path(),
		URL:  joinURL(job.BaseURL(), rt.Path()),
	}
	defer func() { res.Timing.TotalMs = time.Since(start).Milliseconds() }()

	log.Info("prerendering route", "path", res.Path, "url", res.URL)

	page, err := browser.NewPage(ctx, engine.PageOptions{
		Headers:          job.Headers(),
		Stealth:          job.Stealth(),
		BlockedResources: job.BlockedResources(),
		Viewport:         job.Viewport(),
	})
	if err != nil {
		perr := models.NewPrerenderError(models.ErrCodeBrowserCrash, "failed to open page", err)
		skip(log, res, perr)
		return res, perr
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn("page close failed", "path", res.Path, "error", err)
		}
	}()

	// ── Navigate ──────────────────────────────────────────────────────
	navStart := time.Now()
	err = withTimeout(ctx, job.Timeout(), func(ctx context.Context) error {
		return page.Navigate(ctx, res.URL)
	})
	res.Timing.NavigationMs = time.Since(navStart).Milliseconds()
	if err != nil {
		skip(log, res, categorizeError(err, models.ErrCodeNavigation, "navigation to route failed"))
		return res, nil
	}

	// ── Wait for every readiness selector at once ─────────────────────
	if rt.HasSelectors() {
		waitStart := time.Now()
		err = withTimeout(ctx, job.Timeout(), func(ctx context.Context) error {
			return waitSelectors(ctx, page, rt.Selectors())
		})
		res.Timing.WaitMs = time.Since(waitStart).Milliseconds()
		if err != nil {
			skip(log, res, categorizeError(err, models.ErrCodeSelectorWait, "waiting for selectors failed"))
			return res, nil
		}
	}

	// ── Extract ───────────────────────────────────────────────────────
	var html string
	err = withTimeout(ctx, job.Timeout(), func(ctx context.Context) error {
		var herr error
		html, herr = page.HTML(ctx)
		return herr
	})
	if err != nil {
		skip(log, res, categorizeError(err, models.ErrCodeExtraction, "failed to extract page HTML"))
		return res, nil
	}

	html, err = cleaner.StripSelectors(html, job.StripSelectors())
	if err != nil {
		skip(log, res, models.NewPrerenderError(models.ErrCodeExtraction, "failed to strip selectors", err))
		return res, nil
	}

	// ── Write ─────────────────────────────────────────────────────────
	writeStart := time.Now()
	outPath, err := output.Path(job.DestinationDir(), rt.CleanPath())
	if err == nil {
		err = r.writer.WriteFile(outPath, []byte(html))
	}
	if err != nil {
		skip(log, res, models.NewPrerenderError(models.ErrCodeWrite, "failed to write snapshot", err))
		return res, nil
	}
	res.OutputPath = outPath
	res.Bytes = len(html)
	res.Title = cleaner.Title(html)
	res.Links = cleaner.InternalLinks(html, res.URL, job.BaseURL())

	if job.Markdown() {
		r.writeMarkdown(log, job, rt, res, html)
	}
	res.Timing.WriteMs = time.Since(writeStart).Milliseconds()

	res.Status = models.RouteRendered
	log.Info("route rendered",
		"path", res.Path,
		"output", res.OutputPath,
		"bytes", res.Bytes,
		"navigation_ms", res.Timing.NavigationMs,
		"wait_ms", res.Timing.WaitMs,
		"total_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// writeMarkdown writes the optional sidecar. Its failure never undoes the
// HTML snapshot.
func (r *Renderer) writeMarkdown(log *slog.Logger, job *Job, rt *route.Route, res *models.RouteResult, html string) {
	md, err := r.cleaner.Markdown(html, res.URL)
	if err == nil {
		var mdPath string
		if mdPath, err = output.MarkdownPath(job.DestinationDir(), rt.CleanPath()); err == nil {
			if err = r.writer.WriteFile(mdPath, []byte(md)); err == nil {
				res.MarkdownPath = mdPath
				return
			}
		}
	}
	log.Warn("markdown sidecar failed", "path", res.Path, "error", err)
}

// waitSelectors waits for all selectors concurrently. The first failure
// cancels the remaining waits.
func waitSelectors(ctx context.Context, page engine.Page, selectors []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sel := range selectors {
		g.Go(func() error {
			if err := page.WaitSelector(gctx, sel); err != nil {
				return fmt.Errorf("selector %q: %w", sel, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func skip(log *slog.Logger, res *models.RouteResult, err *models.PrerenderError) {
	res.Status = models.RouteSkipped
	res.Error = err.ToDetail()
	log.Warn("route skipped", "path", res.Path, "code", err.Code, "error", err)
}

// categorizeError maps deadline errors to SCRAPE_TIMEOUT and everything
// else to code.
func categorizeError(err error, code, msg string) *models.PrerenderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewPrerenderError(models.ErrCodeTimeout, msg, err)
	}
	return models.NewPrerenderError(code, msg, err)
}

// uncoveredLinks collects the links of every result that do not match a
// route of the job, sorted.
func uncoveredLinks(routes []*route.Route, results []*models.RouteResult) []string {
	known := make(map[string]struct{}, len(routes))
	for _, rt := range routes {
		known[normalizePath(rt.CleanPath())] = struct{}{}
	}

	var out []string
	for _, res := range results {
		for _, link := range res.Links {
			p := normalizePath(link)
			if _, ok := known[p]; ok {
				continue
			}
			known[p] = struct{}{}
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

func normalizePath(p string) string {
	return "/" + strings.Trim(p, "/")
}

// joinURL appends a route path to the base URL with exactly one slash at
// the seam.
func joinURL(base, path string) string {
	baseSlash := strings.HasSuffix(base, "/")
	pathSlash := strings.HasPrefix(path, "/")
	switch {
	case baseSlash && pathSlash:
		return base + path[1:]
	case !baseSlash && !pathSlash && !strings.HasPrefix(path, "?") && !strings.HasPrefix(path, "#"):
		return base + "/" + path
	default:
		return base + path
	}
}
