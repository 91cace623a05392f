package engine

import (
	"context"
	"fmt"

	"github.com/use-agent/prerender/config"
)

// Launcher starts browser sessions. A Launcher is reusable; each Launch
// returns an independent session.
type Launcher interface {
	// Name returns the driver identifier (e.g. "rod", "chromedp").
	Name() string

	// Launch starts a browser and returns a connected session.
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is one running browser session.
type Browser interface {
	// NewPage opens a fresh tab configured with opts.
	NewPage(ctx context.Context, opts PageOptions) (Page, error)

	// Close shuts the browser down.
	Close() error
}

// Page is a single tab. A Page is used by one route at a time, but
// WaitSelector may be called concurrently for the same page.
type Page interface {
	// Navigate loads url and waits for the load event. The deadline of ctx
	// bounds the whole navigation.
	Navigate(ctx context.Context, url string) error

	// WaitSelector blocks until at least one element matches selector.
	WaitSelector(ctx context.Context, selector string) error

	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)

	// Close closes the tab.
	Close() error
}

// Viewport is the browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport is used when a job does not set one.
var DefaultViewport = Viewport{Width: 1920, Height: 1080}

// LaunchOptions configures a browser session.
type LaunchOptions struct {
	Viewport Viewport
}

// PageOptions configures a tab before it navigates anywhere.
type PageOptions struct {
	// Headers are sent with every request the page makes.
	Headers map[string]string

	// Stealth injects anti-bot-detection evasions before navigation.
	Stealth bool

	// BlockedResources lists resource types the page must not load.
	BlockedResources []string

	// Viewport overrides the session viewport for this page.
	Viewport Viewport
}

// ResourceTypes lists the names accepted in PageOptions.BlockedResources.
var ResourceTypes = []string{"Image", "Stylesheet", "Font", "Media", "Script"}

// NewLauncher returns the launcher for the configured driver.
func NewLauncher(cfg config.BrowserConfig) (Launcher, error) {
	switch cfg.Driver {
	case "", "rod":
		return NewRodLauncher(cfg), nil
	case "chromedp":
		return NewChromedpLauncher(cfg), nil
	default:
		return nil, fmt.Errorf("engine: unknown browser driver %q", cfg.Driver)
	}
}
