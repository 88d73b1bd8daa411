package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/law-makers/catalog/internal/auth"
	"github.com/law-makers/catalog/internal/retry"
	"github.com/law-makers/catalog/pkg/models"
)

const catalogHTML = `<html><body><div class="product-card"><h3>Geometry</h3><span class="price">$15.99</span></div></body></html>`

type fakePage struct {
	mu sync.Mutex

	present     map[string]bool
	clickErr    map[string]error
	navigateErr map[string]error
	html        string
	url         string
	cookies     []auth.Cookie

	navigations   []string
	typed         map[string]string
	clicked       []string
	navWaits      int
	setCookies    []auth.Cookie
	extraHeaders  map[string]string
	selectorWaits []string
	closed        bool
}

func newFakePage() *fakePage {
	return &fakePage{
		present:     map[string]bool{},
		clickErr:    map[string]error{},
		navigateErr: map[string]error{},
		typed:       map[string]string{},
		html:        catalogHTML,
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	if err := p.navigateErr[url]; err != nil {
		return err
	}
	p.url = url
	return nil
}

func (p *fakePage) WaitSettled(context.Context, time.Duration, time.Duration) bool { return true }

func (p *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[selector], nil
}

func (p *fakePage) Type(_ context.Context, selector, text string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[selector] = text
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.clickErr[selector]; err != nil {
		return err
	}
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) WaitNavigation(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navWaits++
	return nil
}

func (p *fakePage) WaitSelector(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectorWaits = append(p.selectorWaits, selector)
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) { return p.html, nil }
func (p *fakePage) URL(context.Context) (string, error)  { return p.url, nil }

func (p *fakePage) Cookies(context.Context) ([]auth.Cookie, error) { return p.cookies, nil }

func (p *fakePage) SetCookies(_ context.Context, cookies []auth.Cookie) error {
	p.setCookies = cookies
	return nil
}

func (p *fakePage) SetExtraHeaders(_ context.Context, headers map[string]string) error {
	p.extraHeaders = headers
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeBrowser struct {
	page *fakePage
	err  error
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.page, nil
}

type memorySessions struct {
	saved map[string]*auth.SessionData
}

func (m *memorySessions) Load(name string) (*auth.SessionData, error) {
	if s, ok := m.saved[name]; ok {
		return s, nil
	}
	return nil, auth.ErrSessionNotFound
}

func (m *memorySessions) Save(s *auth.SessionData) error {
	m.saved[s.Name] = s
	return nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.LoginURL = "https://shop.test/account/login"
	opts.CatalogURL = "https://shop.test/collections/coffee"
	opts.Retry = retry.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
	opts.KeystrokeDelay = 0
	return opts
}

var testCreds = &models.Credentials{Identifier: "buyer@example.com", Secret: "hunter2"}

func TestFetchCatalogPage_NoLoginForm(t *testing.T) {
	page := newFakePage()
	nav := NewNavigator(&fakeBrowser{page: page}, testOptions(), nil, nil)

	got, err := nav.FetchCatalogPage(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("Expected no error without a login form, got %v", err)
	}
	if got.Login.Outcome != LoginSkipped {
		t.Errorf("Expected skipped login, got %+v", got.Login)
	}
	if got.HTML != catalogHTML {
		t.Errorf("Unexpected HTML %q", got.HTML)
	}
	if got.URL != "https://shop.test/collections/coffee" {
		t.Errorf("Unexpected URL %q", got.URL)
	}
	if len(page.typed) != 0 || len(page.clicked) != 0 {
		t.Errorf("Expected no interaction, typed=%v clicked=%v", page.typed, page.clicked)
	}
	if !page.closed {
		t.Error("Expected page to be closed")
	}
	if diff := cmp.Diff([]string{DefaultProductSelector}, page.selectorWaits); diff != "" {
		t.Errorf("Product wait mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchCatalogPage_LoginSucceeds(t *testing.T) {
	page := newFakePage()
	page.present[`input[name="email"]`] = true
	page.present[`input#password`] = true
	page.present[`button.login-button`] = true
	page.cookies = []auth.Cookie{{Name: "_secure_session_id", Value: "s", Domain: "shop.test", Path: "/"}}

	store := &memorySessions{saved: map[string]*auth.SessionData{}}
	opts := testOptions()
	opts.SessionName = "onyx"
	nav := NewNavigator(&fakeBrowser{page: page}, opts, nil, store)

	got, err := nav.FetchCatalogPage(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("FetchCatalogPage failed: %v", err)
	}
	if got.Login.Outcome != LoginSucceeded {
		t.Fatalf("Expected succeeded login, got %+v", got.Login)
	}

	wantTyped := map[string]string{
		`input[name="email"]`: "buyer@example.com",
		`input#password`:      "hunter2",
	}
	if diff := cmp.Diff(wantTyped, page.typed); diff != "" {
		t.Errorf("Typed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`button.login-button`}, page.clicked); diff != "" {
		t.Errorf("Clicked mismatch (-want +got):\n%s", diff)
	}
	if page.navWaits != 1 {
		t.Errorf("Expected one post-submit navigation wait, got %d", page.navWaits)
	}
	if diff := cmp.Diff([]string{opts.LoginURL, opts.CatalogURL}, page.navigations); diff != "" {
		t.Errorf("Navigation mismatch (-want +got):\n%s", diff)
	}

	saved, ok := store.saved["onyx"]
	if !ok {
		t.Fatal("Expected session cookies to be saved")
	}
	if len(saved.Cookies) != 1 || saved.Cookies[0].Name != "_secure_session_id" {
		t.Errorf("Unexpected saved cookies %+v", saved.Cookies)
	}
}

func TestFetchCatalogPage_SubmitFallsThrough(t *testing.T) {
	page := newFakePage()
	page.present[`input[type="email"]`] = true
	page.present[`input[type="password"]`] = true
	page.present[`button[type="submit"]`] = true
	page.present[`input[type="submit"]`] = true
	page.clickErr[`button[type="submit"]`] = errors.New("element not visible")

	nav := NewNavigator(&fakeBrowser{page: page}, testOptions(), nil, nil)
	got, err := nav.FetchCatalogPage(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("FetchCatalogPage failed: %v", err)
	}
	if got.Login.Outcome != LoginSucceeded {
		t.Errorf("Expected succeeded login, got %+v", got.Login)
	}
	if diff := cmp.Diff([]string{`input[type="submit"]`}, page.clicked); diff != "" {
		t.Errorf("Clicked mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchCatalogPage_SubmitFailsIsNotFatal(t *testing.T) {
	page := newFakePage()
	page.present[`input[type="email"]`] = true
	page.present[`input[type="password"]`] = true
	page.present[`button[type="submit"]`] = true
	page.clickErr[`button[type="submit"]`] = errors.New("detached")

	nav := NewNavigator(&fakeBrowser{page: page}, testOptions(), nil, nil)
	got, err := nav.FetchCatalogPage(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("Login failure must not be fatal, got %v", err)
	}
	if got.Login.Outcome != LoginFailed {
		t.Errorf("Expected failed login, got %+v", got.Login)
	}
	if page.navWaits != 0 {
		t.Errorf("Expected no navigation wait without a click, got %d", page.navWaits)
	}
	if got.HTML == "" {
		t.Error("Expected catalog HTML despite failed login")
	}
}

func TestFetchCatalogPage_NoCredentials(t *testing.T) {
	page := newFakePage()
	page.present[`input[type="email"]`] = true
	page.present[`input[type="password"]`] = true

	nav := NewNavigator(&fakeBrowser{page: page}, testOptions(), nil, nil)
	for _, creds := range []*models.Credentials{nil, {Identifier: "only@example.com"}} {
		got, err := nav.FetchCatalogPage(context.Background(), creds)
		if err != nil {
			t.Fatalf("FetchCatalogPage failed: %v", err)
		}
		if got.Login.Outcome != LoginSkipped {
			t.Errorf("Expected skipped login, got %+v", got.Login)
		}
	}
	if len(page.typed) != 0 {
		t.Errorf("Expected nothing typed, got %v", page.typed)
	}
}

func TestFetchCatalogPage_LoginPageUnreachable(t *testing.T) {
	page := newFakePage()
	opts := testOptions()
	page.navigateErr[opts.LoginURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	nav := NewNavigator(&fakeBrowser{page: page}, opts, nil, nil)
	got, err := nav.FetchCatalogPage(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("Expected login page failure to be absorbed, got %v", err)
	}
	if got.Login.Outcome != LoginSkipped {
		t.Errorf("Expected skipped login, got %+v", got.Login)
	}
}

func TestFetchCatalogPage_CatalogUnreachable(t *testing.T) {
	page := newFakePage()
	opts := testOptions()
	page.navigateErr[opts.CatalogURL] = errors.New("net::ERR_CONNECTION_REFUSED")

	nav := NewNavigator(&fakeBrowser{page: page}, opts, nil, nil)
	_, err := nav.FetchCatalogPage(context.Background(), nil)
	if !errors.Is(err, ErrCatalogUnreachable) {
		t.Fatalf("Expected ErrCatalogUnreachable, got %v", err)
	}
	if CodeOf(err) != ErrCodeUnreachable {
		t.Errorf("Expected code %s, got %s", ErrCodeUnreachable, CodeOf(err))
	}

	attempts := 0
	for _, u := range page.navigations {
		if u == opts.CatalogURL {
			attempts++
		}
	}
	if attempts != opts.Retry.MaxAttempts {
		t.Errorf("Expected %d catalog attempts, got %d", opts.Retry.MaxAttempts, attempts)
	}
	if !page.closed {
		t.Error("Expected page to be closed after failure")
	}
}

func TestFetchCatalogPage_SessionUnavailable(t *testing.T) {
	nav := NewNavigator(&fakeBrowser{err: errors.New("chrome not found")}, testOptions(), nil, nil)
	_, err := nav.FetchCatalogPage(context.Background(), testCreds)
	if !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("Expected ErrSessionUnavailable, got %v", err)
	}
	if errors.Is(err, ErrCatalogUnreachable) {
		t.Error("Session failure must not match ErrCatalogUnreachable")
	}
}

func TestFetchCatalogPage_RestoresSessionAndHeaders(t *testing.T) {
	page := newFakePage()
	cookies := []auth.Cookie{{Name: "cart", Value: "1", Domain: "shop.test", Path: "/"}}
	store := &memorySessions{saved: map[string]*auth.SessionData{
		"onyx": {Name: "onyx", Cookies: cookies},
	}}

	opts := testOptions()
	opts.SessionName = "onyx"
	opts.Headers = map[string]string{"Accept-Language": "en-US"}
	nav := NewNavigator(&fakeBrowser{page: page}, opts, nil, store)

	if _, err := nav.FetchCatalogPage(context.Background(), nil); err != nil {
		t.Fatalf("FetchCatalogPage failed: %v", err)
	}
	if diff := cmp.Diff(cookies, page.setCookies); diff != "" {
		t.Errorf("Restored cookies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(opts.Headers, page.extraHeaders); diff != "" {
		t.Errorf("Headers mismatch (-want +got):\n%s", diff)
	}
}

func TestCredentialsNotInLoginReason(t *testing.T) {
	page := newFakePage()
	page.present[`input[type="email"]`] = true
	page.present[`input[type="password"]`] = true

	nav := NewNavigator(&fakeBrowser{page: page}, testOptions(), nil, nil)
	got, err := nav.FetchCatalogPage(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("FetchCatalogPage failed: %v", err)
	}
	for _, secret := range []string{testCreds.Identifier, testCreds.Secret} {
		if strings.Contains(got.Login.Reason, secret) {
			t.Errorf("Login reason leaks credentials: %q", got.Login.Reason)
		}
	}
}
