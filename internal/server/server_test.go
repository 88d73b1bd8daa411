package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/law-makers/catalog/internal/cache"
	"github.com/law-makers/catalog/internal/engine"
	"github.com/law-makers/catalog/internal/reqctx"
	"github.com/law-makers/catalog/pkg/models"
)

type fakeCatalog struct {
	view      []models.MarkedUpListing
	err       error
	gets      atomic.Int32
	refreshes atomic.Int32
}

func (f *fakeCatalog) GetCatalog(ctx context.Context) ([]models.MarkedUpListing, error) {
	f.gets.Add(1)
	return f.view, f.err
}

func (f *fakeCatalog) ForceRefresh(ctx context.Context) ([]models.MarkedUpListing, error) {
	f.refreshes.Add(1)
	return f.view, f.err
}

func (f *fakeCatalog) Stats() cache.Stats {
	return cache.Stats{Scrapes: 3, Listings: len(f.view)}
}

var geometry = models.MarkedUpListing{
	Name:          "Geometry",
	Price:         16.79,
	OriginalPrice: 15.99,
	MarkupRate:    0.05,
	URL:           "https://onyxcoffeelab.com/products/geometry",
}

func newTestServer(c Catalog) *httptest.Server {
	s := New(c, Options{
		CORSOrigin: "*",
		Payment: models.PaymentInfo{
			Method:        "venmo",
			VenmoUsername: "@coffee-club",
			Instructions:  "Include your order number.",
		},
	})
	return httptest.NewServer(s.Handler())
}

func TestProducts(t *testing.T) {
	fc := &fakeCatalog{view: []models.MarkedUpListing{geometry}}
	ts := newTestServer(fc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/products")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Unexpected content type %q", ct)
	}
	if resp.Header.Get(reqctx.HeaderRequestID) == "" {
		t.Error("Expected a request id header")
	}

	var got []models.MarkedUpListing
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff([]models.MarkedUpListing{geometry}, got); diff != "" {
		t.Errorf("Products mismatch (-want +got):\n%s", diff)
	}
	if fc.gets.Load() != 1 || fc.refreshes.Load() != 0 {
		t.Errorf("Expected one cached read, got gets=%d refreshes=%d", fc.gets.Load(), fc.refreshes.Load())
	}
}

func TestProducts_WireFormat(t *testing.T) {
	ts := newTestServer(&fakeCatalog{view: []models.MarkedUpListing{geometry}})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/products")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var raw []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for _, key := range []string{"name", "price", "originalPrice", "markup", "url"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("Expected key %q in %v", key, raw[0])
		}
	}
}

func TestRefresh(t *testing.T) {
	fc := &fakeCatalog{view: []models.MarkedUpListing{geometry}}
	ts := newTestServer(fc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/products/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if fc.refreshes.Load() != 1 || fc.gets.Load() != 0 {
		t.Errorf("Expected one forced refresh, got gets=%d refreshes=%d", fc.gets.Load(), fc.refreshes.Load())
	}
}

func TestRefresh_RejectsGet(t *testing.T) {
	ts := newTestServer(&fakeCatalog{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/products/refresh")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestProducts_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unreachable",
			err:        fmt.Errorf("%w: %w", cache.ErrNoCatalog, engine.NewError(engine.ErrCodeUnreachable, "timeout", nil)),
			wantStatus: http.StatusBadGateway,
			wantCode:   "CATALOG_UNREACHABLE",
		},
		{
			name:       "session",
			err:        fmt.Errorf("%w: %w", cache.ErrNoCatalog, engine.NewError(engine.ErrCodeSession, "no chrome", nil)),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "SESSION_UNAVAILABLE",
		},
		{
			name:       "other",
			err:        fmt.Errorf("%w: %w", cache.ErrNoCatalog, errors.New("boom")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(&fakeCatalog{err: tt.err})
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/api/products")
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			var body ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if body.Code != tt.wantCode || body.Error == "" {
				t.Errorf("Unexpected error body %+v", body)
			}
			if body.RequestID != resp.Header.Get(reqctx.HeaderRequestID) {
				t.Errorf("Request id mismatch: body %q header %q", body.RequestID, resp.Header.Get(reqctx.HeaderRequestID))
			}
		})
	}
}

func TestPaymentInfo(t *testing.T) {
	ts := newTestServer(&fakeCatalog{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/payment-info")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := map[string]string{
		"method":        "venmo",
		"venmoUsername": "@coffee-club",
		"instructions":  "Include your order number.",
	}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Errorf("Payment info mismatch (-want +got):\n%s", diff)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&fakeCatalog{view: []models.MarkedUpListing{geometry}})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if body.Status != "ok" || body.Cache.Scrapes != 3 || body.Cache.Listings != 1 {
		t.Errorf("Unexpected health %+v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(&fakeCatalog{})
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/products/refresh", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Unexpected allow origin %q", got)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(&fakeCatalog{})
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/payment-info", nil)
	req.Header.Set(reqctx.HeaderRequestID, "abc123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get(reqctx.HeaderRequestID); got != "abc123" {
		t.Errorf("Expected request id to be echoed, got %q", got)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(&fakeCatalog{}, Options{ShutdownTimeout: time.Second})
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Server did not shut down")
	}
}
