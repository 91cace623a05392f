package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/prerender/config"
	"github.com/ysmood/gson"
)

// RodLauncher starts Chromium through go-rod's launcher.
type RodLauncher struct {
	cfg config.BrowserConfig
}

// NewRodLauncher creates a RodLauncher for the given browser settings.
func NewRodLauncher(cfg config.BrowserConfig) *RodLauncher {
	return &RodLauncher{cfg: cfg}
}

func (l *RodLauncher) Name() string { return "rod" }

// Launch starts a local Chromium process and connects to it over CDP.
func (l *RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = DefaultViewport
	}

	ln := launcher.New().
		Context(ctx).
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)

	if l.cfg.BrowserBin != "" {
		ln = ln.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.DefaultProxy != "" {
		ln = ln.Proxy(l.cfg.DefaultProxy)
	}

	ln.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", vp.Width, vp.Height))
	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	ln.Set(flags.Flag("disable-background-timer-throttling"))
	ln.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	ln.Set(flags.Flag("disable-renderer-backgrounding"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("no-first-run"))

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("rod: launch browser: %w", err)
	}
	slog.Debug("browser launched", "driver", "rod", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("rod: connect to browser: %w", err)
	}

	return &rodBrowser{browser: browser, launcher: ln, viewport: vp}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	viewport Viewport
}

func (b *rodBrowser) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("rod: create page: %w", err)
	}
	// Detach from the caller's context: page lifetime ends at Close.
	page = page.Context(context.Background())

	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = b.viewport
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("rod: set viewport: %w", err)
	}

	// Stealth and hijacking only affect navigations that happen after they
	// are installed.
	if opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if len(opts.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(opts.Headers)}).Call(page); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("rod: set extra headers: %w", err)
		}
	}

	p := &rodPage{page: page}
	p.router = setupHijack(page, opts.BlockedResources)
	return p, nil
}

// Close closes the browser over CDP, then makes sure the process is gone
// and its temporary profile removed.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	cp := p.page.Context(ctx)
	if err := cp.Navigate(url); err != nil {
		return err
	}
	return cp.WaitLoad()
}

func (p *rodPage) WaitSelector(ctx context.Context, selector string) error {
	return p.page.Context(ctx).WaitElementsMoreThan(selector, 0)
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
