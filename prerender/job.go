// Package prerender renders client-side routes to static HTML snapshots.
//
// A Job describes what to render; a Renderer drives one browser session
// through every active route of the job and writes one index.html per route.
package prerender

import (
	"context"
	"maps"
	"math"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/use-agent/prerender/cleaner"
	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/engine"
	"github.com/use-agent/prerender/models"
	"github.com/use-agent/prerender/output"
	"github.com/use-agent/prerender/route"
)

// DefaultTimeout bounds navigation and the selector wait of every route
// when a job does not set its own timeout.
const DefaultTimeout = 30 * time.Second

// maxTimeoutMs is the largest timeout_ms that fits in a time.Duration.
const maxTimeoutMs = math.MaxInt64 / int64(time.Millisecond)

// Job is a validated render configuration. Every setter validates its
// input and leaves the job unchanged when it returns an error.
type Job struct {
	baseURL          string
	destinationDir   string
	timeout          time.Duration
	debug            bool
	routes           []*route.Route
	viewport         engine.Viewport
	headers          map[string]string
	stealth          bool
	blockedResources []string
	stripSelectors   []string
	markdown         bool
}

// NewJob returns an empty job with the default timeout and viewport.
func NewJob() *Job {
	return &Job{
		timeout:  DefaultTimeout,
		viewport: engine.DefaultViewport,
	}
}

// SetBaseURL sets the absolute http(s) URL every route path is appended to.
func (j *Job) SetBaseURL(baseURL string) error {
	if strings.TrimSpace(baseURL) == "" {
		return models.Invalid("the base URL should be filled")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return models.NewPrerenderError(models.ErrCodeInvalidInput, "invalid base URL (got: "+baseURL+")", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.Invalid("the base URL should start with http:// or https:// (got: %s)", baseURL)
	}
	j.baseURL = baseURL
	return nil
}

// SetDestinationDir sets where snapshots are written. The directory does
// not need to exist yet, but if something exists at path it must be a
// directory.
func (j *Job) SetDestinationDir(path string) error {
	if err := output.CheckDir(path); err != nil {
		return models.NewPrerenderError(models.ErrCodeInvalidInput,
			"the destination should be a directory (got: "+path+")", err)
	}
	j.destinationDir = path
	return nil
}

// SetTimeout bounds navigation and the combined selector wait of each
// route. Zero is allowed and makes every wait fail immediately.
func (j *Job) SetTimeout(d time.Duration) error {
	if d < 0 {
		return models.Invalid("the timeout should be zero or positive (got: %s)", d)
	}
	j.timeout = d
	return nil
}

// SetDebugMode toggles progress and timing logs.
func (j *Job) SetDebugMode(debug bool) {
	j.debug = debug
}

// AddRoute appends a route; routes render in insertion order.
func (j *Job) AddRoute(r *route.Route) error {
	if err := checkRoute(r); err != nil {
		return err
	}
	j.routes = append(j.routes, r)
	return nil
}

// SetRoutes replaces every route. Either the whole list is accepted or the
// job keeps its previous routes.
func (j *Job) SetRoutes(routes []*route.Route) error {
	for _, r := range routes {
		if err := checkRoute(r); err != nil {
			return err
		}
	}
	j.routes = slices.Clone(routes)
	return nil
}

func checkRoute(r *route.Route) error {
	if r == nil {
		return models.Invalid("the route should not be nil")
	}
	if strings.TrimSpace(r.Path()) == "" {
		return models.Invalid(`the route should have a path (use "route.SetPath(\"/about\")")`)
	}
	return nil
}

// SetViewport sets the browser window size.
func (j *Job) SetViewport(width, height int) error {
	if width <= 0 || height <= 0 {
		return models.Invalid("the viewport should be positive (got: %dx%d)", width, height)
	}
	j.viewport = engine.Viewport{Width: width, Height: height}
	return nil
}

// SetHeaders sets extra HTTP headers sent with every request of every route.
func (j *Job) SetHeaders(headers map[string]string) {
	j.headers = maps.Clone(headers)
}

// SetStealth toggles anti-bot-detection evasions.
func (j *Job) SetStealth(stealth bool) {
	j.stealth = stealth
}

// SetBlockedResources sets the resource types pages must not load.
func (j *Job) SetBlockedResources(types []string) error {
	for _, t := range types {
		if !engine.IsResourceType(t) {
			return models.Invalid("unknown resource type %q (allowed: %s)", t, strings.Join(engine.ResourceTypes, ", "))
		}
	}
	j.blockedResources = slices.Clone(types)
	return nil
}

// SetStripSelectors sets CSS selectors whose matches are removed from the
// captured HTML before it is written.
func (j *Job) SetStripSelectors(selectors []string) error {
	if _, err := cleaner.CompileSelectors(selectors); err != nil {
		return models.NewPrerenderError(models.ErrCodeInvalidInput, "invalid strip selector", err)
	}
	j.stripSelectors = slices.Clone(selectors)
	return nil
}

// SetMarkdown toggles writing index.md next to every index.html.
func (j *Job) SetMarkdown(markdown bool) {
	j.markdown = markdown
}

func (j *Job) BaseURL() string { return j.baseURL }
func (j *Job) DestinationDir() string { return j.destinationDir }
func (j *Job) Timeout() time.Duration { return j.timeout }
func (j *Job) Debug() bool { return j.debug }
func (j *Job) Routes() []*route.Route { return slices.Clone(j.routes) }
func (j *Job) Viewport() engine.Viewport { return j.viewport }
func (j *Job) Headers() map[string]string { return maps.Clone(j.headers) }
func (j *Job) Stealth() bool { return j.stealth }
func (j *Job) BlockedResources() []string { return slices.Clone(j.blockedResources) }
func (j *Job) StripSelectors() []string { return slices.Clone(j.stripSelectors) }
func (j *Job) Markdown() bool { return j.markdown }

// Check is the pre-flight run by Start before any browser is launched.
func (j *Job) Check() error {
	if strings.TrimSpace(j.destinationDir) == "" {
		return models.NewPrerenderError(models.ErrCodeConfiguration,
			"no destination directory found (did you forget to use Job.SetDestinationDir?)", nil)
	}
	if strings.TrimSpace(j.baseURL) == "" {
		return models.NewPrerenderError(models.ErrCodeConfiguration,
			"no base URL found (did you forget to use Job.SetBaseURL?)", nil)
	}
	return nil
}

// Start renders the job with r. It returns once every active route has
// been attempted and the browser is closed.
func (j *Job) Start(ctx context.Context, r *Renderer) (*models.Report, error) {
	return r.Render(ctx, j)
}

// JobFromFile builds a Job from its declarative form. It stops at the first
// invalid field.
func JobFromFile(jf *config.JobFile) (*Job, error) {
	j := NewJob()

	if jf.BaseURL != "" {
		if err := j.SetBaseURL(jf.BaseURL); err != nil {
			return nil, err
		}
	}
	if jf.Destination != "" {
		if err := j.SetDestinationDir(jf.Destination); err != nil {
			return nil, err
		}
	}
	if jf.TimeoutMs != nil {
		if *jf.TimeoutMs > maxTimeoutMs {
			return nil, models.Invalid("the timeout should be at most %d ms (got: %d)", int64(maxTimeoutMs), *jf.TimeoutMs)
		}
		if err := j.SetTimeout(time.Duration(*jf.TimeoutMs) * time.Millisecond); err != nil {
			return nil, err
		}
	}
	j.SetDebugMode(jf.Debug)
	if jf.Viewport != nil {
		if err := j.SetViewport(jf.Viewport.Width, jf.Viewport.Height); err != nil {
			return nil, err
		}
	}
	j.SetHeaders(jf.Headers)
	j.SetStealth(jf.Stealth)
	if err := j.SetBlockedResources(jf.BlockedResources); err != nil {
		return nil, err
	}
	if err := j.SetStripSelectors(jf.StripSelectors); err != nil {
		return nil, err
	}
	j.SetMarkdown(jf.Markdown)

	routes := make([]*route.Route, 0, len(jf.Routes))
	for _, rf := range jf.Routes {
		r, err := route.Parse(rf.Path, rf.WaitFor...)
		if err != nil {
			return nil, err
		}
		if !rf.IsActive() {
			r.SetInactive()
		}
		routes = append(routes, r)
	}
	if err := j.SetRoutes(routes); err != nil {
		return nil, err
	}
	return j, nil
}
