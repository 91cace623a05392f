package prerender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/use-agent/prerender/engine"
)

// fakeSite describes how every URL behaves in the fake browser.
type fakeSite struct {
	// pages maps URL to the HTML served for it. Unknown URLs fail to navigate.
	pages map[string]string
	// selectors maps URL to the selectors that exist on the page. Waiting
	// for any other selector blocks until the context is done.
	selectors map[string][]string
	// hang lists URLs whose navigation never completes on its own.
	hang map[string]bool
	// selectorDelay is how long each present selector takes to appear.
	selectorDelay time.Duration
}

type fakeLauncher struct {
	site      *fakeSite
	launchErr error
	pageErr   error

	mu       sync.Mutex
	launches int
	browsers []*fakeBrowser
}

func (l *fakeLauncher) Name() string { return "fake" }

func (l *fakeLauncher) Launch(_ context.Context, _ engine.LaunchOptions) (engine.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	b := &fakeBrowser{launcher: l}
	l.browsers = append(l.browsers, b)
	return b, nil
}

func (l *fakeLauncher) closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, b := range l.browsers {
		n += b.closed
	}
	return n
}

type fakeBrowser struct {
	launcher *fakeLauncher
	closed   int
	pages    []*fakePage
	opts     []engine.PageOptions
}

func (b *fakeBrowser) NewPage(_ context.Context, opts engine.PageOptions) (engine.Page, error) {
	if b.launcher.pageErr != nil {
		return nil, b.launcher.pageErr
	}
	p := &fakePage{site: b.launcher.site}
	b.pages = append(b.pages, p)
	b.opts = append(b.opts, opts)
	return p, nil
}

func (b *fakeBrowser) Close() error {
	b.launcher.mu.Lock()
	defer b.launcher.mu.Unlock()
	b.closed++
	return nil
}

type fakePage struct {
	site    *fakeSite
	url     string
	visited []string
	closed  bool
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.visited = append(p.visited, url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.site.hang[url] {
		<-ctx.Done()
		return ctx.Err()
	}
	if _, ok := p.site.pages[url]; !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}
	p.url = url
	return nil
}

func (p *fakePage) WaitSelector(ctx context.Context, selector string) error {
	for _, s := range p.site.selectors[p.url] {
		if s == selector {
			select {
			case <-time.After(p.site.selectorDelay):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, ok := p.site.pages[p.url]
	if !ok {
		return "", errors.New("no document")
	}
	return html, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}
