// Package engine drives a remote browser session to the vendor's catalog page.
package engine

import (
	"context"
	"time"

	"github.com/law-makers/catalog/internal/auth"
)

// Browser opens pages on a remote browser session
type Browser interface {
	// NewPage starts a session and opens one tab. The returned Page owns the
	// session; closing it tears the session down.
	NewPage(ctx context.Context) (Page, error)
}

// Page is one browser tab. Methods block until done or ctx ends.
type Page interface {
	// Navigate loads url and returns once the main document has committed.
	Navigate(ctx context.Context, url string) error

	// WaitSettled waits until at most two network requests have been in flight
	// for the idle window, giving up at the ceiling. It reports whether the
	// page settled before the ceiling.
	WaitSettled(ctx context.Context, idle, ceiling time.Duration) bool

	// Exists reports whether selector matches anything right now.
	Exists(ctx context.Context, selector string) (bool, error)

	// Type focuses selector and sends text one key at a time.
	Type(ctx context.Context, selector, text string, keystrokeDelay time.Duration) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// WaitNavigation waits for a top-level navigation started after the most
	// recent Click.
	WaitNavigation(ctx context.Context) error

	// WaitSelector waits until selector matches something.
	WaitSelector(ctx context.Context, selector string) error

	// HTML returns the document's outer HTML.
	HTML(ctx context.Context) (string, error)

	// URL returns the page's current location.
	URL(ctx context.Context) (string, error)

	Cookies(ctx context.Context) ([]auth.Cookie, error)
	SetCookies(ctx context.Context, cookies []auth.Cookie) error

	// SetExtraHeaders adds headers to every request the page makes.
	SetExtraHeaders(ctx context.Context, headers map[string]string) error

	Close() error
}

// SessionStore is the subset of auth.Store the Navigator needs
type SessionStore interface {
	Load(name string) (*auth.SessionData, error)
	Save(session *auth.SessionData) error
}

// LoginOutcome is the tri-state result of a login attempt
type LoginOutcome string

const (
	LoginSkipped   LoginOutcome = "skipped"
	LoginSucceeded LoginOutcome = "succeeded"
	LoginFailed    LoginOutcome = "failed"
)

// LoginResult records what happened on the login page
type LoginResult struct {
	Outcome LoginOutcome `json:"outcome"`
	Reason  string       `json:"reason,omitempty"`
}

func skipped(reason string) LoginResult { return LoginResult{Outcome: LoginSkipped, Reason: reason} }
func failed(reason string) LoginResult  { return LoginResult{Outcome: LoginFailed, Reason: reason} }

// RenderedPage is the catalog document as captured after rendering
type RenderedPage struct {
	URL       string
	HTML      string
	Login     LoginResult
	FetchedAt time.Time
}
