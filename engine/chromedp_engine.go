package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/use-agent/prerender/config"
)

// ChromedpLauncher starts Chromium through chromedp's exec allocator.
type ChromedpLauncher struct {
	cfg config.BrowserConfig
}

// NewChromedpLauncher creates a ChromedpLauncher for the given browser settings.
func NewChromedpLauncher(cfg config.BrowserConfig) *ChromedpLauncher {
	return &ChromedpLauncher{cfg: cfg}
}

func (l *ChromedpLauncher) Name() string { return "chromedp" }

// Launch allocates a browser process and opens its first target. The
// session outlives ctx; it ends at Close.
func (l *ChromedpLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = DefaultViewport
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(vp.Width, vp.Height),
	)
	if l.cfg.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if l.cfg.BrowserBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.cfg.BrowserBin))
	}
	if l.cfg.DefaultProxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(l.cfg.DefaultProxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process. Abort it if the caller gives up.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("chromedp: launch browser: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chromedp: launch browser: %w", err)
	}
	slog.Debug("browser launched", "driver", "chromedp")

	return &chromedpBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		viewport:    vp,
	}, nil
}

type chromedpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	viewport    Viewport
}

func (b *chromedpBrowser) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	if len(opts.BlockedResources) > 0 {
		slog.Warn("chromedp driver does not block resources, ignoring",
			"blocked", opts.BlockedResources)
	}

	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = b.viewport
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)

	setup := []chromedp.Action{
		chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height)),
	}
	if opts.Stealth {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		setup = append(setup, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	// The first Run on tabCtx creates the target, so it must use tabCtx
	// itself rather than a derived timeout context.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, setup...)
	stop()
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("chromedp: create page: %w", err)
	}

	return &chromedpPage{ctx: tabCtx, cancel: tabCancel}, nil
}

func (b *chromedpBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	return err
}

type chromedpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by the caller's ctx.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromedpPage) WaitSelector(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromedpPage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
