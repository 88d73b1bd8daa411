// Package chrome implements engine.Browser on headless Chrome via chromedp.
package chrome

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/engine"
	"github.com/law-makers/catalog/internal/proxy"
)

// Options configures browser processes
type Options struct {
	ExecPath  string // empty means FindChrome
	Headless  bool
	UserAgent string
	Proxies   *proxy.Pool
}

// Browser starts one Chrome process per page. Scrapes are rare and serialized,
// so nothing is pooled.
type Browser struct {
	opts     Options
	execPath string
}

// New creates a Browser, resolving the Chrome executable once
func New(opts Options) *Browser {
	return &Browser{opts: opts, execPath: FindChrome(opts.ExecPath)}
}

// NewPage launches Chrome and opens a tab. The process lives until the page
// is closed or ctx ends.
func (b *Browser) NewPage(ctx context.Context) (engine.Page, error) {
	proxyAddr := b.opts.Proxies.Next()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions(proxyAddr)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	page := newPage(tabCtx, cancel, proxyAddr, b.opts.Proxies)

	// the first Run starts the browser
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		cancel()
		if proxyAddr != "" {
			b.opts.Proxies.MarkFailed(proxyAddr)
		}
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug().
		Str("exec", b.execPath).
		Str("proxy", proxyAddr).
		Bool("headless", b.opts.Headless).
		Msg("Browser session started")

	return page, nil
}

func (b *Browser) allocatorOptions(proxyAddr string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-features", "site-per-process,TranslateUI,BlinkGenPropertyTrees"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1920, 1080),
	}

	if b.execPath != "" {
		opts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(b.execPath)}, opts...)
	}
	if b.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if b.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.opts.UserAgent))
	}
	if proxyAddr != "" {
		opts = append(opts, chromedp.ProxyServer(proxyAddr))
	}
	return opts
}
