// Package app wires configuration into the scrape pipeline and cache and
// owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/auth"
	"github.com/law-makers/catalog/internal/cache"
	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/config"
	"github.com/law-makers/catalog/internal/engine"
	"github.com/law-makers/catalog/internal/engine/chrome"
	"github.com/law-makers/catalog/internal/extract"
	"github.com/law-makers/catalog/internal/proxy"
	"github.com/law-makers/catalog/internal/ratelimit"
	"github.com/law-makers/catalog/internal/retry"
	"github.com/law-makers/catalog/internal/server"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per command run and shared by the CLI commands.
// Use Close() to stop background work.
type Application struct {
	Config      *config.Config
	Proxies     *proxy.Pool
	RateLimiter *ratelimit.DomainLimiter
	Sessions    *auth.Store
	Browser     *chrome.Browser
	Navigator   *engine.Navigator
	Pipeline    *catalog.Pipeline
	Catalog     *cache.Manager
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures the global zerolog logger
//   - Builds the proxy pool and the per-host rate limiter
//   - Creates the Chrome browser factory and the cookie session store
//   - Creates the Navigator and the scrape Pipeline
//   - Creates the catalog cache, starting its background refresher if configured
//
// No browser is started here; Chrome only runs while a scrape is in flight.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	SetupLogging(cfg)

	proxies := proxy.NewPool(cfg.Proxies, proxy.DefaultCooldown)
	limiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	log.Debug().
		Int("proxies", proxies.Len()).
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Network policy initialized")

	browser := chrome.New(chrome.Options{
		ExecPath:  cfg.ChromePath,
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
		Proxies:   proxies,
	})
	sessions := auth.NewStore(auth.StoreOptions{})

	navigator := engine.NewNavigator(browser, navigatorOptions(cfg), limiter, sessions)
	pipeline := catalog.NewPipeline(navigator, extract.New(), cfg.Credentials)

	manager := cache.NewManager(pipeline, cache.Options{
		TTL:               cfg.CacheTTL,
		MarkupRate:        cfg.MarkupRate,
		ScrapeTimeout:     cfg.ScrapeTimeout,
		ServeStaleOnError: cfg.ServeStale,
		RefreshInterval:   cfg.RefreshInterval,
	})

	log.Debug().
		Str("catalog_url", cfg.CatalogURL).
		Bool("login", cfg.Credentials() != nil).
		Dur("ttl", cfg.CacheTTL).
		Float64("markup", cfg.MarkupRate).
		Msg("Application initialized")

	return &Application{
		Config:      cfg,
		Proxies:     proxies,
		RateLimiter: limiter,
		Sessions:    sessions,
		Browser:     browser,
		Navigator:   navigator,
		Pipeline:    pipeline,
		Catalog:     manager,
		startTime:   time.Now(),
	}, nil
}

// SetupLogging points the global logger at stderr, as console output or JSON lines
func SetupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = os.Stderr
	if !cfg.JSONLog {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

func navigatorOptions(cfg *config.Config) engine.Options {
	opts := engine.DefaultOptions()
	opts.LoginURL = cfg.LoginURL
	opts.CatalogURL = cfg.CatalogURL
	opts.NavigationTimeout = cfg.NavigationTimeout
	opts.SettleIdle = cfg.SettleIdle
	opts.SettleTimeout = cfg.SettleTimeout
	opts.SelectorTimeout = cfg.SelectorTimeout
	opts.ActionTimeout = cfg.ActionTimeout
	opts.KeystrokeDelay = cfg.KeystrokeDelay
	opts.Headers = cfg.Headers
	opts.SessionName = cfg.SessionName

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.RetryAttempts
	opts.Retry = rc
	return opts
}

// Server builds the HTTP API on top of the catalog cache
func (a *Application) Server() *server.Server {
	return server.New(a.Catalog, server.Options{
		Addr:       a.Config.ListenAddr(),
		CORSOrigin: a.Config.CORSOrigin,
		Payment:    a.Config.PaymentInfo(),
	})
}

// Close stops the background refresher and cancels any scrape in flight.
// Chrome processes belong to their scrape and exit with it.
func (a *Application) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.Catalog.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Timed out waiting for the catalog cache to close")
		return ctx.Err()
	}

	log.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
