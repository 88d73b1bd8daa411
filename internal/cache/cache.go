// internal/cache/cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/pricing"
	"github.com/law-makers/catalog/pkg/models"
)

// ErrNoCatalog is returned when a scrape fails and there is no snapshot to fall back on
var ErrNoCatalog = errors.New("no catalog available")

const (
	DefaultTTL           = time.Hour
	DefaultScrapeTimeout = 3 * time.Minute
	flightKey            = "catalog"
)

// Scraper produces a fresh set of listings; *catalog.Pipeline implements it
type Scraper interface {
	Run(ctx context.Context) (*catalog.Result, error)
}

// Options configures a Manager
type Options struct {
	TTL               time.Duration
	MarkupRate        float64
	ScrapeTimeout     time.Duration
	ServeStaleOnError bool
	// RefreshInterval > 0 starts a background refresher
	RefreshInterval time.Duration
}

// DefaultOptions returns a one hour cache that serves stale data on failure
func DefaultOptions() Options {
	return Options{
		TTL:               DefaultTTL,
		MarkupRate:        pricing.DefaultMarkupRate,
		ScrapeTimeout:     DefaultScrapeTimeout,
		ServeStaleOnError: true,
	}
}

// entry pairs a snapshot with its marked-up view, computed once
type entry struct {
	snapshot *models.Snapshot
	view     []models.MarkedUpListing
}

// Stats is a point-in-time view of cache activity
type Stats struct {
	Scrapes     uint64        `json:"scrapes"`
	Failures    uint64        `json:"failures"`
	Hits        uint64        `json:"hits"`
	Misses      uint64        `json:"misses"`
	StaleServed uint64        `json:"stale_served"`
	Listings    int           `json:"listings"`
	FetchedAt   time.Time     `json:"fetched_at,omitempty"`
	Age         time.Duration `json:"age_ns,omitempty"`
	Fresh       bool          `json:"fresh"`
	TTL         time.Duration `json:"ttl_ns"`
	LastError   string        `json:"last_error,omitempty"`
}

// Manager holds the single catalog snapshot and makes sure at most one
// scrape runs at a time. Readers never see a partially built snapshot.
type Manager struct {
	scraper Scraper
	opts    Options
	now     func() time.Time

	mu      sync.RWMutex
	current *entry
	lastErr string

	group singleflight.Group

	scrapes     atomic.Uint64
	failures    atomic.Uint64
	hits        atomic.Uint64
	misses      atomic.Uint64
	staleServed atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager and starts the background refresher if configured
func NewManager(scraper Scraper, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ScrapeTimeout <= 0 {
		opts.ScrapeTimeout = DefaultScrapeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		scraper: scraper,
		opts:    opts,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}

	if opts.RefreshInterval > 0 {
		m.wg.Add(1)
		go m.refreshLoop(opts.RefreshInterval)
	}

	return m
}

// GetCatalog returns the cached catalog while it is fresh, otherwise joins or
// starts a scrape. On failure a stale snapshot is served if allowed.
func (m *Manager) GetCatalog(ctx context.Context) ([]models.MarkedUpListing, error) {
	if view, ok := m.fresh(); ok {
		m.hits.Add(1)
		return slices.Clone(view), nil
	}
	m.misses.Add(1)

	view, err := m.refresh(ctx, true)
	if err == nil {
		return slices.Clone(view), nil
	}

	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	if current == nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCatalog, err)
	}
	if m.opts.ServeStaleOnError && ctx.Err() == nil {
		m.staleServed.Add(1)
		log.Warn().
			Err(err).
			Time("fetched_at", current.snapshot.FetchedAt).
			Msg("Refresh failed, serving stale catalog")
		return slices.Clone(current.view), nil
	}
	return nil, err
}

// ForceRefresh scrapes regardless of freshness, joining a scrape already in
// flight. Errors are always returned and the previous snapshot is kept.
func (m *Manager) ForceRefresh(ctx context.Context) ([]models.MarkedUpListing, error) {
	view, err := m.refresh(ctx, false)
	if err != nil {
		if m.Snapshot() == nil {
			return nil, fmt.Errorf("%w: %w", ErrNoCatalog, err)
		}
		return nil, err
	}
	return slices.Clone(view), nil
}

// Warm populates the cache ahead of the first request
func (m *Manager) Warm(ctx context.Context) error {
	_, err := m.GetCatalog(ctx)
	return err
}

// Snapshot returns a copy of the current snapshot, or nil before the first scrape
func (m *Manager) Snapshot() *models.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return &models.Snapshot{
		Listings:  slices.Clone(m.current.snapshot.Listings),
		FetchedAt: m.current.snapshot.FetchedAt,
	}
}

// Stats returns cache counters and snapshot age
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	current := m.current
	lastErr := m.lastErr
	m.mu.RUnlock()

	s := Stats{
		Scrapes:     m.scrapes.Load(),
		Failures:    m.failures.Load(),
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		StaleServed: m.staleServed.Load(),
		TTL:         m.opts.TTL,
		LastError:   lastErr,
	}
	if current != nil {
		s.Listings = len(current.snapshot.Listings)
		s.FetchedAt = current.snapshot.FetchedAt
		s.Age = m.now().Sub(current.snapshot.FetchedAt)
		s.Fresh = s.Age < m.opts.TTL
	}
	return s
}

// Close stops the background refresher and cancels any scrape in flight
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
	log.Debug().Msg("Catalog cache closed")
}

func (m *Manager) fresh() ([]models.MarkedUpListing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, false
	}
	if m.now().Sub(m.current.snapshot.FetchedAt) >= m.opts.TTL {
		return nil, false
	}
	return m.current.view, true
}

// refresh runs or joins the single flight. The scrape itself is detached from
// the caller: a caller that gives up stops waiting, the scrape still completes
// and stores its result.
func (m *Manager) refresh(ctx context.Context, onlyIfStale bool) ([]models.MarkedUpListing, error) {
	ch := m.group.DoChan(flightKey, func() (interface{}, error) {
		if onlyIfStale {
			if view, ok := m.fresh(); ok {
				return view, nil
			}
		}

		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ScrapeTimeout)
		defer cancel()
		stop := context.AfterFunc(m.ctx, cancel)
		defer stop()

		return m.scrape(flightCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug().Msg("Joined in-flight scrape")
		}
		return res.Val.([]models.MarkedUpListing), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) scrape(ctx context.Context) ([]models.MarkedUpListing, error) {
	m.scrapes.Add(1)
	start := m.now()

	res, err := m.scraper.Run(ctx)
	if err != nil {
		m.failures.Add(1)
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
		log.Error().Err(err).Dur("elapsed", m.now().Sub(start)).Msg("Catalog scrape failed")
		return nil, err
	}

	snap := &models.Snapshot{
		Listings:  slices.Clone(res.Listings),
		FetchedAt: m.now(),
	}
	next := &entry{
		snapshot: snap,
		view:     pricing.ApplyAll(snap.Listings, m.opts.MarkupRate),
	}

	m.mu.Lock()
	m.current = next
	m.lastErr = ""
	m.mu.Unlock()

	log.Info().
		Int("listings", len(snap.Listings)).
		Dur("elapsed", m.now().Sub(start)).
		Dur("ttl", m.opts.TTL).
		Msg("Catalog cached")

	return next.view, nil
}

func (m *Manager) refreshLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.ForceRefresh(m.ctx); err != nil && m.ctx.Err() == nil {
				log.Warn().Err(err).Msg("Background refresh failed")
			}
		case <-m.ctx.Done():
			log.Debug().Msg("Background refresher stopped")
			return
		}
	}
}
