// Package route describes a single client-side route to prerender.
package route

import (
	"slices"
	"strings"

	"github.com/use-agent/prerender/models"
)

// Route is one page of the application, addressed relative to the job's
// base URL. The zero value is inactive and has no path; use New.
type Route struct {
	path      string
	selectors []string
	active    bool
}

// New returns an empty active route.
func New() *Route {
	return &Route{active: true}
}

// Parse builds an active route from a path and its readiness selectors.
func Parse(path string, selectors ...string) (*Route, error) {
	r := New()
	if err := r.SetPath(path); err != nil {
		return nil, err
	}
	if err := r.SetSelectors(selectors); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNew is like Parse but panics on invalid input.
func MustNew(path string, selectors ...string) *Route {
	r, err := Parse(path, selectors...)
	if err != nil {
		panic(err)
	}
	return r
}

// SetPath validates and stores the router path. The router path must be
// relative: the host comes from the job's base URL.
func (r *Route) SetPath(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	r.path = path
	return nil
}

// AddSelector appends a selector to wait for before capturing the page.
func (r *Route) AddSelector(selector string) error {
	if err := ValidateSelector(selector); err != nil {
		return err
	}
	r.selectors = append(r.selectors, selector)
	return nil
}

// SetSelectors replaces all selectors. Either every selector is accepted or
// the route keeps its previous selectors.
func (r *Route) SetSelectors(selectors []string) error {
	next := make([]string, 0, len(selectors))
	for _, s := range selectors {
		if err := ValidateSelector(s); err != nil {
			return err
		}
		next = append(next, s)
	}
	r.selectors = next
	return nil
}

// SetActive marks the route to be rendered.
func (r *Route) SetActive() *Route {
	r.active = true
	return r
}

// SetInactive keeps the route in the job but skips it at render time.
func (r *Route) SetInactive() *Route {
	r.active = false
	return r
}

func (r *Route) Path() string { return r.path }

// Selectors returns a copy of the readiness selectors in insertion order.
func (r *Route) Selectors() []string { return slices.Clone(r.selectors) }

func (r *Route) HasSelectors() bool { return len(r.selectors) > 0 }

func (r *Route) Active() bool { return r.active }

// CleanPath returns the path without its query string and fragment.
func (r *Route) CleanPath() string {
	return CleanPath(r.path)
}

// CleanPath cuts p at the first '?' or '#'.
func CleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}

// ValidatePath reports why p cannot be used as a router path, or nil.
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return models.Invalid("the route path should be filled")
	}
	if strings.TrimSpace(p) != p {
		return models.Invalid("the route path should not start or end with whitespace (got: %q)", p)
	}
	if strings.HasPrefix(p, "//") || hasScheme(p) {
		return models.Invalid("the route path should be relative to the base URL, not an absolute URL (got: %s)", p)
	}
	return nil
}

// hasScheme reports whether p starts with a URL scheme such as "http:".
// Only the part before the first '/', '?' or '#' can hold one.
func hasScheme(p string) bool {
	head := p
	if i := strings.IndexAny(p, "/?#"); i >= 0 {
		head = p[:i]
	}
	i := strings.IndexByte(head, ':')
	if i <= 0 {
		return false
	}
	for j, c := range head[:i] {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case j > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// ValidateSelector reports why s cannot be waited for, or nil.
func ValidateSelector(s string) error {
	if strings.TrimSpace(s) == "" {
		return models.Invalid("the selector to wait for should be filled")
	}
	return nil
}
