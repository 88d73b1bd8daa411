package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/engine"
	"github.com/law-makers/catalog/pkg/models"
)

type fakeScraper struct {
	calls    atomic.Int32
	mu       sync.Mutex
	listings []models.Listing
	err      error
	started  chan struct{}
	release  chan struct{}
}

func newFakeScraper(listings ...models.Listing) *fakeScraper {
	return &fakeScraper{listings: listings}
}

func (f *fakeScraper) Run(ctx context.Context) (*catalog.Result, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.Result{Listings: f.listings}, nil
}

func (f *fakeScraper) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(s Scraper, opts Options) (*Manager, *clock) {
	clk := &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(s, opts)
	m.now = clk.Now
	return m, clk
}

var geometry = models.Listing{Name: "Geometry", Price: 15.99}

func TestGetCatalog_CachesWithinTTL(t *testing.T) {
	s := newFakeScraper(geometry)
	m, clk := newTestManager(s, DefaultOptions())
	defer m.Close()

	first, err := m.GetCatalog(context.Background())
	if err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	if len(first) != 1 || first[0].Price != 16.79 || first[0].OriginalPrice != 15.99 {
		t.Fatalf("Unexpected view %+v", first)
	}

	clk.Advance(59 * time.Minute)
	if _, err := m.GetCatalog(context.Background()); err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	if n := s.calls.Load(); n != 1 {
		t.Errorf("Expected 1 scrape within TTL, got %d", n)
	}

	clk.Advance(2 * time.Minute)
	if _, err := m.GetCatalog(context.Background()); err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	if n := s.calls.Load(); n != 2 {
		t.Errorf("Expected exactly one new scrape after TTL, got %d total", n)
	}

	st := m.Stats()
	if st.Hits != 1 || st.Misses != 2 || st.Scrapes != 2 {
		t.Errorf("Unexpected stats %+v", st)
	}
}

func TestForceRefresh_AlwaysScrapes(t *testing.T) {
	s := newFakeScraper(geometry)
	m, _ := newTestManager(s, DefaultOptions())
	defer m.Close()

	for i := 1; i <= 3; i++ {
		if _, err := m.ForceRefresh(context.Background()); err != nil {
			t.Fatalf("ForceRefresh failed: %v", err)
		}
		if n := s.calls.Load(); n != int32(i) {
			t.Errorf("Expected %d scrapes, got %d", i, n)
		}
	}
}

func TestGetCatalog_ConcurrentCallersShareOneScrape(t *testing.T) {
	s := newFakeScraper(geometry)
	s.started = make(chan struct{}, 1)
	s.release = make(chan struct{})
	m, _ := newTestManager(s, DefaultOptions())
	defer m.Close()

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := m.GetCatalog(context.Background())
			if err == nil && len(view) != 1 {
				err = errors.New("unexpected view")
			}
			errs <- err
		}()
	}

	<-s.started
	time.Sleep(20 * time.Millisecond)
	close(s.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Caller failed: %v", err)
		}
	}
	if n := s.calls.Load(); n != 1 {
		t.Errorf("Expected one shared scrape, got %d", n)
	}
}

func TestGetCatalog_ServesStaleOnError(t *testing.T) {
	s := newFakeScraper(geometry)
	m, clk := newTestManager(s, DefaultOptions())
	defer m.Close()

	if _, err := m.GetCatalog(context.Background()); err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	before := m.Snapshot()

	clk.Advance(2 * time.Hour)
	s.fail(engine.NewError(engine.ErrCodeUnreachable, "down", nil))

	view, err := m.GetCatalog(context.Background())
	if err != nil {
		t.Fatalf("Expected stale catalog, got %v", err)
	}
	if len(view) != 1 || view[0].Name != "Geometry" {
		t.Errorf("Unexpected stale view %+v", view)
	}
	if st := m.Stats(); st.StaleServed != 1 || st.Failures != 1 || st.LastError == "" {
		t.Errorf("Unexpected stats %+v", st)
	}

	if _, err := m.ForceRefresh(context.Background()); !errors.Is(err, engine.ErrCatalogUnreachable) {
		t.Errorf("Expected ForceRefresh to surface the error, got %v", err)
	}
	if after := m.Snapshot(); !after.FetchedAt.Equal(before.FetchedAt) {
		t.Error("Failed refresh must keep the previous snapshot")
	}
}

func TestGetCatalog_StaleDisabled(t *testing.T) {
	s := newFakeScraper(geometry)
	opts := DefaultOptions()
	opts.ServeStaleOnError = false
	m, clk := newTestManager(s, opts)
	defer m.Close()

	if _, err := m.GetCatalog(context.Background()); err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	clk.Advance(2 * time.Hour)
	s.fail(engine.NewError(engine.ErrCodeSession, "no chrome", nil))

	if _, err := m.GetCatalog(context.Background()); !errors.Is(err, engine.ErrSessionUnavailable) {
		t.Errorf("Expected session error, got %v", err)
	}
}

func TestGetCatalog_NoSnapshotError(t *testing.T) {
	s := newFakeScraper()
	s.fail(engine.NewError(engine.ErrCodeUnreachable, "down", nil))
	m, _ := newTestManager(s, DefaultOptions())
	defer m.Close()

	view, err := m.GetCatalog(context.Background())
	if !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("Expected ErrNoCatalog, got %v", err)
	}
	if !errors.Is(err, engine.ErrCatalogUnreachable) {
		t.Errorf("Expected cause to be kept, got %v", err)
	}
	if view != nil {
		t.Errorf("Expected no view, got %+v", view)
	}
	if m.Snapshot() != nil {
		t.Error("Expected no snapshot")
	}
}

func TestGetCatalog_CallerCancelDoesNotAbortScrape(t *testing.T) {
	s := newFakeScraper(geometry)
	s.started = make(chan struct{}, 1)
	s.release = make(chan struct{})
	m, _ := newTestManager(s, DefaultOptions())
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.GetCatalog(ctx)
		done <- err
	}()

	<-s.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected caller to see context.Canceled, got %v", err)
	}

	close(s.release)
	deadline := time.Now().Add(2 * time.Second)
	for m.Snapshot() == nil {
		if time.Now().After(deadline) {
			t.Fatal("Scrape did not complete after the caller left")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetCatalog_ReturnsCopies(t *testing.T) {
	m, _ := newTestManager(newFakeScraper(geometry), DefaultOptions())
	defer m.Close()

	view, _ := m.GetCatalog(context.Background())
	view[0].Price = 0

	again, _ := m.GetCatalog(context.Background())
	if again[0].Price != 16.79 {
		t.Errorf("Cached view was mutated through a returned slice: %+v", again[0])
	}
}

func TestBackgroundRefresh_StopsOnClose(t *testing.T) {
	s := newFakeScraper(geometry)
	opts := DefaultOptions()
	opts.RefreshInterval = 10 * time.Millisecond
	m := NewManager(s, opts)

	deadline := time.Now().Add(2 * time.Second)
	for s.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("Background refresher did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.Close()
	n := s.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := s.calls.Load(); got != n {
		t.Errorf("Refresher kept running after Close: %d -> %d", n, got)
	}
}
