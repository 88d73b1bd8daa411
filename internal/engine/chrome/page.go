package chrome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/auth"
	"github.com/law-makers/catalog/internal/proxy"
	"github.com/law-makers/catalog/internal/utils/headers"
)

// Page is one chromedp tab with its own browser process
type Page struct {
	ctx    context.Context // tab context from chromedp.NewContext
	cancel context.CancelFunc

	tracker *idleTracker

	proxyAddr string
	proxies   *proxy.Pool

	mu        sync.Mutex
	clickSeq  uint64
	lastNavOK bool
	closeOnce sync.Once
}

func newPage(tabCtx context.Context, cancel context.CancelFunc, proxyAddr string, proxies *proxy.Pool) *Page {
	p := &Page{
		ctx:       tabCtx,
		cancel:    cancel,
		tracker:   newIdleTracker(),
		proxyAddr: proxyAddr,
		proxies:   proxies,
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)
	return p
}

func (p *Page) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.tracker.requestStarted(ev.RequestID)
	case *network.EventLoadingFinished:
		p.tracker.requestDone(ev.RequestID)
	case *network.EventLoadingFailed:
		p.tracker.requestDone(ev.RequestID)
	case *network.EventResponseReceived:
		if ev.Type == network.ResourceTypeDocument && ev.Response != nil {
			p.tracker.documentResponse(ev.Response.Status)
		}
	case *cdppage.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ParentID == "" {
			p.tracker.frameNavigated()
		}
	}
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for its load event. Server errors on the main
// document are reported as errors.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.tracker.resetDocument()

	err := p.run(ctx, chromedp.Navigate(url))
	if err == nil {
		if status := p.tracker.documentStatus(); status >= 500 {
			err = fmt.Errorf("HTTP %d loading %s", status, url)
		}
	}

	p.mu.Lock()
	p.lastNavOK = err == nil
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitSettled waits for the network to go quiet
func (p *Page) WaitSettled(ctx context.Context, idle, ceiling time.Duration) bool {
	return p.tracker.waitIdle(ctx, idle, ceiling)
}

// Exists checks selector without waiting for it to appear
func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// Type clears the field, focuses it and sends one key event per rune
func (p *Page) Type(ctx context.Context, selector, text string, keystrokeDelay time.Duration) error {
	return p.run(ctx,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, r := range text {
				if err := chromedp.KeyEvent(string(r)).Do(ctx); err != nil {
					return err
				}
				if keystrokeDelay <= 0 {
					continue
				}
				timer := time.NewTimer(keystrokeDelay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				}
			}
			return nil
		}),
	)
}

// Click clicks selector and remembers the navigation count for WaitNavigation
func (p *Page) Click(ctx context.Context, selector string) error {
	seq := p.tracker.navigations()
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return err
	}
	p.mu.Lock()
	p.clickSeq = seq
	p.mu.Unlock()
	return nil
}

// WaitNavigation waits for a main-frame navigation after the last Click
func (p *Page) WaitNavigation(ctx context.Context) error {
	p.mu.Lock()
	after := p.clickSeq
	p.mu.Unlock()
	return p.tracker.waitNavigation(ctx, after)
}

// WaitSelector waits until selector is in the DOM
func (p *Page) WaitSelector(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Cookies returns every cookie visible to the tab
func (p *Page) Cookies(ctx context.Context) ([]auth.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	out := make([]auth.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, auth.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

// SetCookies injects stored cookies before the first navigation
func (p *Page) SetCookies(ctx context.Context, cookies []auth.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	return p.run(ctx, network.SetCookies(toCookieParams(cookies)))
}

func (p *Page) SetExtraHeaders(ctx context.Context, h map[string]string) error {
	return p.run(ctx, network.SetExtraHTTPHeaders(network.Headers(headers.ToInterfaceMap(h))))
}

// Close kills the tab and its browser process and reports proxy health
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()

		if p.proxyAddr == "" {
			return
		}
		p.mu.Lock()
		ok := p.lastNavOK
		p.mu.Unlock()
		if ok {
			p.proxies.MarkHealthy(p.proxyAddr)
		} else {
			log.Warn().Str("proxy", p.proxyAddr).Msg("Marking proxy as failed")
			p.proxies.MarkFailed(p.proxyAddr)
		}
	})
	return nil
}

func toCookieParams(cookies []auth.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param.Expires = &expires
		}
		switch c.SameSite {
		case "Strict":
			param.SameSite = network.CookieSameSiteStrict
		case "Lax":
			param.SameSite = network.CookieSameSiteLax
		case "None":
			param.SameSite = network.CookieSameSiteNone
		}
		params = append(params, param)
	}
	return params
}
