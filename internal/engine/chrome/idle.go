package chrome

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// MaxIdleInflight is how many requests may stay open while a page counts as settled
const MaxIdleInflight = 2

const pollInterval = 25 * time.Millisecond

// idleTracker follows in-flight requests and top-level navigations of one tab.
// It is fed from the target event listener and read by the page methods.
type idleTracker struct {
	mu          sync.Mutex
	inflight    map[network.RequestID]struct{}
	belowSince  time.Time // when inflight last dropped to MaxIdleInflight or fewer
	navSeq      uint64
	navChanged  chan struct{}
	docStatus   int64
	now         func() time.Time
	maxInflight int
}

func newIdleTracker() *idleTracker {
	t := &idleTracker{
		inflight:    make(map[network.RequestID]struct{}),
		navChanged:  make(chan struct{}),
		now:         time.Now,
		maxInflight: MaxIdleInflight,
	}
	t.belowSince = t.now()
	return t
}

func (t *idleTracker) requestStarted(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	if len(t.inflight) > t.maxInflight {
		t.belowSince = time.Time{}
	}
}

func (t *idleTracker) requestDone(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return
	}
	delete(t.inflight, id)
	if len(t.inflight) <= t.maxInflight && t.belowSince.IsZero() {
		t.belowSince = t.now()
	}
}

func (t *idleTracker) documentResponse(status int64) {
	t.mu.Lock()
	t.docStatus = status
	t.mu.Unlock()
}

// resetDocument forgets the last document status before a new navigation
func (t *idleTracker) resetDocument() {
	t.documentResponse(0)
}

func (t *idleTracker) documentStatus() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.docStatus
}

func (t *idleTracker) frameNavigated() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.navSeq++
	close(t.navChanged)
	t.navChanged = make(chan struct{})
}

func (t *idleTracker) navigations() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.navSeq
}

func (t *idleTracker) inflightCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// waitNavigation blocks until a navigation newer than after is seen
func (t *idleTracker) waitNavigation(ctx context.Context, after uint64) error {
	for {
		t.mu.Lock()
		if t.navSeq > after {
			t.mu.Unlock()
			return nil
		}
		changed := t.navChanged
		t.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitIdle reports true once few enough requests have been open for the whole
// idle window, measured from the call at the earliest. It gives up and
// returns false at the ceiling or when ctx ends.
func (t *idleTracker) waitIdle(ctx context.Context, idle, ceiling time.Duration) bool {
	start := t.now()
	deadline := start.Add(ceiling)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		t.mu.Lock()
		quietFrom := t.belowSince
		t.mu.Unlock()

		now := t.now()
		if !quietFrom.IsZero() {
			if quietFrom.Before(start) {
				quietFrom = start
			}
			if now.Sub(quietFrom) >= idle {
				return true
			}
		}
		if !now.Before(deadline) {
			return false
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false
		}
	}
}
