package models

// Route statuses recorded in a Report.
const (
	RouteRendered = "rendered"
	RouteSkipped  = "skipped"
	RouteInactive = "inactive"
)

// Report summarises one render job. Files on disk are the real output;
// the report tells the caller which routes produced them.
type Report struct {
	BaseURL     string         `json:"base_url"`
	Destination string         `json:"destination"`
	Driver      string         `json:"driver,omitempty"`
	Routes      []*RouteResult `json:"routes"`
	Rendered    int            `json:"rendered"`
	Skipped     int            `json:"skipped"`
	Inactive    int            `json:"inactive"`
	TotalMs     int64          `json:"total_ms"`

	// Uncovered lists paths linked from rendered pages that are not routes
	// of the job, active or not.
	Uncovered []string `json:"uncovered,omitempty"`
}

// RouteResult is the outcome of a single route.
type RouteResult struct {
	Path         string       `json:"path"`
	URL          string       `json:"url,omitempty"`
	Status       string       `json:"status"`
	OutputPath   string       `json:"output_path,omitempty"`
	MarkdownPath string       `json:"markdown_path,omitempty"`
	Title        string       `json:"title,omitempty"`
	Bytes        int          `json:"bytes,omitempty"`
	Links        []string     `json:"links,omitempty"`
	Timing       RouteTiming  `json:"timing"`
	Error        *ErrorDetail `json:"error,omitempty"`
}

// RouteTiming breaks down the time spent in each phase of a route.
type RouteTiming struct {
	TotalMs      int64 `json:"total_ms"`
	NavigationMs int64 `json:"navigation_ms"`
	WaitMs       int64 `json:"wait_ms"`
	WriteMs      int64 `json:"write_ms"`
}

// Add appends a result and updates the totals.
func (r *Report) Add(res *RouteResult) {
	r.Routes = append(r.Routes, res)
	switch res.Status {
	case RouteRendered:
		r.Rendered++
	case RouteSkipped:
		r.Skipped++
	case RouteInactive:
		r.Inactive++
	}
}
