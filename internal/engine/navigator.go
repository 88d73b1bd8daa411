package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/auth"
	"github.com/law-makers/catalog/internal/ratelimit"
	"github.com/law-makers/catalog/internal/retry"
	"github.com/law-makers/catalog/pkg/models"
)

// DefaultProductSelector is waited on before the catalog page is captured
const DefaultProductSelector = `.product, .product-item, .product-card, [class*="product"]`

// Options tunes a Navigator
type Options struct {
	LoginURL   string
	CatalogURL string

	NavigationTimeout time.Duration // per page load, and the post-submit navigation wait
	SettleIdle        time.Duration // quiet window for the settle condition
	SettleTimeout     time.Duration // settle ceiling; reaching it is not an error
	SelectorTimeout   time.Duration // product container wait
	ActionTimeout     time.Duration // probe, click and per-field typing budget
	KeystrokeDelay    time.Duration

	ProductSelector string
	Retry           retry.Config
	Headers         map[string]string
	SessionName     string
}

// DefaultOptions returns the timings the vendor's storefront has needed
func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 30 * time.Second,
		SettleIdle:        500 * time.Millisecond,
		SettleTimeout:     30 * time.Second,
		SelectorTimeout:   10 * time.Second,
		ActionTimeout:     5 * time.Second,
		KeystrokeDelay:    50 * time.Millisecond,
		ProductSelector:   DefaultProductSelector,
		Retry:             retry.DefaultConfig(),
	}
}

// Navigator opens the catalog page, logging in first when it can
type Navigator struct {
	browser  Browser
	limiter  ratelimit.RateLimiter
	sessions SessionStore
	opts     Options
	now      func() time.Time
}

// NewNavigator creates a Navigator. limiter and sessions may be nil.
func NewNavigator(browser Browser, opts Options, limiter ratelimit.RateLimiter, sessions SessionStore) *Navigator {
	def := DefaultOptions()
	if opts.ProductSelector == "" {
		opts.ProductSelector = def.ProductSelector
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = def.Retry
	}
	return &Navigator{
		browser:  browser,
		limiter:  limiter,
		sessions: sessions,
		opts:     opts,
		now:      time.Now,
	}
}

// FetchCatalogPage returns the rendered catalog document. Login problems are
// never fatal; only a missing browser session or an unreachable catalog page is.
func (n *Navigator) FetchCatalogPage(ctx context.Context, creds *models.Credentials) (*RenderedPage, error) {
	start := n.now()

	page, err := n.browser.NewPage(ctx)
	if err != nil {
		return nil, NewError(ErrCodeSession, "failed to open browser page", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close browser page")
		}
	}()

	if len(n.opts.Headers) > 0 {
		if err := page.SetExtraHeaders(ctx, n.opts.Headers); err != nil {
			log.Warn().Err(err).Msg("Failed to set extra headers")
		}
	}

	n.restoreSession(ctx, page)

	login := n.login(ctx, page, creds)
	logLogin(login)

	if err := n.loadCatalog(ctx, page); err != nil {
		return nil, err
	}

	if n.opts.SelectorTimeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, n.opts.SelectorTimeout)
		if err := page.WaitSelector(waitCtx, n.opts.ProductSelector); err != nil {
			log.Warn().Err(err).Dur("timeout", n.opts.SelectorTimeout).Msg("Product containers did not appear, capturing anyway")
		}
		cancel()
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, NewError(ErrCodeSession, "failed to capture catalog page", err)
	}

	finalURL, err := page.URL(ctx)
	if err != nil || finalURL == "" {
		finalURL = n.opts.CatalogURL
	}

	if login.Outcome == LoginSucceeded {
		n.saveSession(ctx, page)
	}

	log.Info().
		Str("url", finalURL).
		Str("login", string(login.Outcome)).
		Int("html_bytes", len(html)).
		Dur("elapsed", n.now().Sub(start)).
		Msg("Catalog page captured")

	return &RenderedPage{
		URL:       finalURL,
		HTML:      html,
		Login:     login,
		FetchedAt: n.now(),
	}, nil
}

// navigate waits for the host's rate limit, then loads url within the navigation timeout
func (n *Navigator) navigate(ctx context.Context, page Page, url string) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx, url); err != nil {
			return err
		}
	}

	navCtx, cancel := withOptionalTimeout(ctx, n.opts.NavigationTimeout)
	defer cancel()
	return page.Navigate(navCtx, url)
}

func (n *Navigator) settle(ctx context.Context, page Page) {
	if n.opts.SettleTimeout <= 0 {
		return
	}
	if !page.WaitSettled(ctx, n.opts.SettleIdle, n.opts.SettleTimeout) {
		log.Debug().Dur("ceiling", n.opts.SettleTimeout).Msg("Page did not settle, proceeding")
	}
}

func (n *Navigator) loadCatalog(ctx context.Context, page Page) error {
	err := retry.WithRetry(ctx, n.opts.Retry, func(attempt int) error {
		log.Debug().Str("url", n.opts.CatalogURL).Int("attempt", attempt).Msg("Loading catalog page")
		err := n.navigate(ctx, page, n.opts.CatalogURL)
		if err != nil && ctx.Err() != nil {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return NewError(ErrCodeUnreachable, "failed to load catalog page", err).
			WithDetail("url", n.opts.CatalogURL)
	}

	n.settle(ctx, page)
	return nil
}

func (n *Navigator) restoreSession(ctx context.Context, page Page) {
	if n.sessions == nil || n.opts.SessionName == "" {
		return
	}

	session, err := n.sessions.Load(n.opts.SessionName)
	if err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			log.Debug().Str("session", n.opts.SessionName).Msg("No saved session")
		} else {
			log.Warn().Err(err).Str("session", n.opts.SessionName).Msg("Failed to load session")
		}
		return
	}

	if err := page.SetCookies(ctx, session.Cookies); err != nil {
		log.Warn().Err(err).Str("session", n.opts.SessionName).Msg("Failed to restore session cookies")
		return
	}
	log.Debug().Str("session", n.opts.SessionName).Int("cookies", len(session.Cookies)).Msg("Session cookies restored")
}

func (n *Navigator) saveSession(ctx context.Context, page Page) {
	if n.sessions == nil || n.opts.SessionName == "" {
		return
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cookies after login")
		return
	}
	if len(cookies) == 0 {
		return
	}

	err = n.sessions.Save(&auth.SessionData{
		Name:      n.opts.SessionName,
		URL:       n.opts.LoginURL,
		Cookies:   cookies,
		CreatedAt: n.now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("session", n.opts.SessionName).Msg("Failed to save session")
		return
	}
	log.Debug().Str("session", n.opts.SessionName).Int("cookies", len(cookies)).Msg("Session saved")
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func logLogin(r LoginResult) {
	ev := log.Info()
	if r.Outcome == LoginFailed {
		ev = log.Warn()
	}
	ev.Str("outcome", string(r.Outcome)).Str("reason", r.Reason).Msg("Login step finished")
}
